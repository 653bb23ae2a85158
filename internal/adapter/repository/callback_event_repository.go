package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/model"
	domainRepo "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type callbackEventRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCallbackEventRepository creates a new callback event repository
func NewCallbackEventRepository(db *gorm.DB, logger *zap.Logger) domainRepo.CallbackEventRepository {
	return &callbackEventRepository{
		db:     db,
		logger: logger,
	}
}

// SaveEvent inserts a callback event; redeliveries of the same event are ignored
func (r *callbackEventRepository) SaveEvent(ctx context.Context, event *model.CallbackEvent) (bool, error) {
	if event.ProcessingStatus == "" {
		event.ProcessingStatus = model.ProcessingStatusPending
	}

	// Use ON CONFLICT to handle duplicate deliveries
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event)

	if result.Error != nil {
		r.logger.Error("Failed to save callback event",
			zap.String("provider", event.Provider),
			zap.String("transaction_id", event.TransactionID),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to save callback event: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// GetEvent retrieves a callback event by its unique key
func (r *callbackEventRepository) GetEvent(ctx context.Context, provider, transactionID, status string) (*model.CallbackEvent, error) {
	var event model.CallbackEvent

	err := r.db.WithContext(ctx).
		Where("provider = ? AND transaction_id = ? AND callback_status = ?", provider, transactionID, status).
		First(&event).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get callback event",
			zap.String("provider", provider),
			zap.String("transaction_id", transactionID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get callback event: %w", err)
	}

	return &event, nil
}

// MarkProcessed records the processing outcome of a callback event
func (r *callbackEventRepository) MarkProcessed(ctx context.Context, id int64, status model.ProcessingStatus, errMsg string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processing_status": status,
		"processed_at":      now,
		"processing_count":  gorm.Expr("processing_count + 1"),
		"updated_at":        now,
	}
	if errMsg != "" {
		updates["last_error"] = errMsg
	} else {
		updates["last_error"] = nil
	}

	result := r.db.WithContext(ctx).
		Model(&model.CallbackEvent{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		r.logger.Error("Failed to update callback event",
			zap.Int64("id", id),
			zap.String("status", string(status)),
			zap.Error(result.Error))
		return fmt.Errorf("failed to update callback event: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("callback event not found: %d", id)
	}

	return nil
}
