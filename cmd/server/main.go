// Command server runs the auto-reply backend: the HTTP API (webhooks,
// tracked-link redirect, settings, analytics, queue introspection) plus the
// two background loops: the outbound queue drain and the hourly follow-up
// batch.
//
//	@title			DM Checkout Auto-Reply API
//	@version		1.0
//	@description	Automates outbound replies to inbound social messages with at-most-once reply guarantees, delayed follow-ups, and purchase attribution.
//	@BasePath		/api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/config"
	httpapi "github.com/s99865834-alt/dm-checkout-ai-sub001/internal/http"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/observability"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/repo"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/scheduler"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/services"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// .env is optional; real deployments configure via the environment.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath, cfg.OTEL.Enabled)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	provider := services.NewLogProvider()

	// Background loops share the services the HTTP layer uses; the claim
	// semantics make concurrent HTTP-triggered and scheduled runs safe.
	queueSvc := &services.QueueService{
		DB:          db,
		Provider:    provider,
		MaxAttempts: cfg.Queue.MaxAttempts,
		BaseBackoff: cfg.Queue.BaseBackoff,
	}
	queueLoop, err := scheduler.New("queue-drain", cfg.Queue.Interval, func(ctx context.Context) {
		if _, err := queueSvc.ProcessDue(ctx, cfg.Queue.Batch); err != nil {
			log.Error().Err(err).Msg("queue drain failed")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("queue scheduler init failed")
	}

	followupSvc := &services.FollowupService{
		DB:            db,
		Provider:      provider,
		WindowFarAge:  cfg.Followup.WindowFar,
		WindowNearAge: cfg.Followup.WindowNear,
	}
	followupLoop, err := scheduler.New("followup-batch", cfg.Followup.Interval, func(ctx context.Context) {
		stats, err := followupSvc.Run(ctx)
		if err != nil {
			log.Error().Err(err).Msg("follow-up batch failed")
			return
		}
		log.Info().
			Int("tenants", stats.Tenants).
			Int("sent", stats.Sent).
			Int("skipped", stats.Skipped).
			Int("failed", stats.Failed).
			Msg("follow-up batch done")
	})
	if err != nil {
		log.Fatal().Err(err).Msg("follow-up scheduler init failed")
	}

	queueLoop.Start()
	followupLoop.Start()

	r := gin.New()
	httpapi.RegisterRoutes(r, db, provider, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	followupLoop.Stop()
	queueLoop.Stop()

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
