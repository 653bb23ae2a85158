package repository

import (
	"context"
	"fmt"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/model"
	domainRepo "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type auditLogRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewAuditLogRepository creates a new workflow audit log repository
func NewAuditLogRepository(db *gorm.DB, logger *zap.Logger) domainRepo.AuditLogRepository {
	return &auditLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts one workflow run row
func (r *auditLogRepository) Create(ctx context.Context, entry *model.WorkflowAuditLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		r.logger.Error("Failed to write workflow audit log",
			zap.String("run_id", entry.RunID.String()),
			zap.String("invoice_id", entry.InvoiceID),
			zap.Error(err))
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
