package model

import (
	"database/sql/driver"
	"time"
)

// ProcessingStatus represents the processing status of a provider callback
type ProcessingStatus string

const (
	ProcessingStatusPending    ProcessingStatus = "pending"
	ProcessingStatusProcessing ProcessingStatus = "processing"
	ProcessingStatusCompleted  ProcessingStatus = "completed"
	ProcessingStatusFailed     ProcessingStatus = "failed"
	ProcessingStatusIgnored    ProcessingStatus = "ignored"
)

// Scan implements sql.Scanner interface
func (s *ProcessingStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = ProcessingStatus(v)
	case []byte:
		*s = ProcessingStatus(v)
	default:
		*s = ProcessingStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (s ProcessingStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// CallbackEvent is a received provider notification or browser return.
// (provider, transaction_id, callback_status) is unique so a redelivery of the same
// event is stored once.
type CallbackEvent struct {
	ID               int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider         string           `gorm:"not null;size:50;uniqueIndex:uq_callback_event" json:"provider"`
	TransactionID    string           `gorm:"not null;size:200;uniqueIndex:uq_callback_event" json:"transaction_id"`
	CallbackStatus   string           `gorm:"not null;size:50;uniqueIndex:uq_callback_event" json:"callback_status"`
	EventID          *string          `gorm:"size:255" json:"event_id,omitempty"`
	Source           string           `gorm:"not null;size:20" json:"source"`
	InvoiceID        string           `gorm:"not null;size:100;index" json:"invoice_id"`
	Amount           string           `gorm:"size:40" json:"amount"`
	Currency         string           `gorm:"size:3" json:"currency"`
	ProcessingStatus ProcessingStatus `gorm:"size:20;default:'pending';index" json:"processing_status"`
	ProcessedAt      *time.Time       `json:"processed_at,omitempty"`
	ProcessingCount  int              `gorm:"default:0" json:"processing_count"`
	LastError        *string          `json:"last_error,omitempty"`
	EventData        JSONB            `gorm:"type:jsonb" json:"event_data"`
	RemoteAddr       *string          `gorm:"size:45" json:"remote_addr,omitempty"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (CallbackEvent) TableName() string {
	return "callback_events"
}
