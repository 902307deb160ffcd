// Package handlers – handler set and dependency injection.
package handlers

import (
	"gorm.io/gorm"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/services"
)

// Handlers bundles the application services the HTTP layer delegates to.
// Handlers are transport-thin: validate and normalize inputs, call one
// service method, map sentinel errors to envelopes.
type Handlers struct {
	db          *gorm.DB
	intake      *services.IntakeService
	attribution *services.AttributionService
	followups   *services.FollowupService
	queue       *services.QueueService
	analytics   *services.AnalyticsService
	settings    *services.SettingsService
}

// New constructs the handler set.
func New(
	db *gorm.DB,
	intake *services.IntakeService,
	attribution *services.AttributionService,
	followups *services.FollowupService,
	queue *services.QueueService,
	analytics *services.AnalyticsService,
	settings *services.SettingsService,
) *Handlers {
	return &Handlers{
		db:          db,
		intake:      intake,
		attribution: attribution,
		followups:   followups,
		queue:       queue,
		analytics:   analytics,
		settings:    settings,
	}
}
