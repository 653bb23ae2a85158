package repository

import (
	"context"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/model"
)

// CallbackEventRepository stores received provider callbacks
type CallbackEventRepository interface {
	// SaveEvent inserts the event; created is false when an identical event already exists
	SaveEvent(ctx context.Context, event *model.CallbackEvent) (created bool, err error)

	// GetEvent looks up an event by its unique key
	GetEvent(ctx context.Context, provider, transactionID, status string) (*model.CallbackEvent, error)

	// MarkProcessed records the final processing status of an event
	MarkProcessed(ctx context.Context, id int64, status model.ProcessingStatus, errMsg string) error
}

// AuditLogRepository stores workflow run audit rows
type AuditLogRepository interface {
	Create(ctx context.Context, entry *model.WorkflowAuditLog) error
}
