package database

import (
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	err := db.AutoMigrate(
		&model.CallbackEvent{},
		&model.WorkflowAuditLog{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	logger.Info("Creating custom indexes...")
	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomIndexes creates custom indexes that GORM doesn't handle automatically
func createCustomIndexes(db *gorm.DB) error {
	// Callbacks still waiting for a workflow run
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_callback_events_unprocessed ON callback_events (created_at) WHERE processing_status IN ('pending', 'failed')`).Error; err != nil {
		return err
	}

	// Failed runs are what operators look at
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_logs_failed ON audit_logs (created_at) WHERE success = false`).Error; err != nil {
		return err
	}

	return nil
}
