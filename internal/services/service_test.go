package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/repo"
)

// newTestDB opens a throwaway SQLite database with the full schema applied.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA busy_timeout=5000;")

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// seedShop creates an active shop on the given plan.
func seedShop(t *testing.T, db *gorm.DB, dom, plan string) *domain.Shop {
	t.Helper()
	s, err := repo.EnsureShop(context.Background(), db, dom, plan)
	if err != nil {
		t.Fatalf("seed shop %s: %v", dom, err)
	}
	if plan != domain.PlanFree {
		// EnsureShop only sets the plan on first create; force it for tests
		// reusing a domain.
		db.Model(&domain.Shop{}).Where("id = ?", s.ID).Update("plan", plan)
		s.Plan = plan
	}
	return s
}

// fakeProvider records outbound sends and can be told to fail.
type fakeProvider struct {
	mu    sync.Mutex
	sends []fakeSend
	fail  bool
}

type fakeSend struct {
	ShopDomain  string
	RecipientID string
	Text        string
}

func (p *fakeProvider) SendDM(ctx context.Context, shopDomain, recipientID, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return fmt.Errorf("provider unavailable")
	}
	p.sends = append(p.sends, fakeSend{shopDomain, recipientID, text})
	return nil
}

func (p *fakeProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sends)
}

func (p *fakeProvider) setFail(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = v
}
