package model

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowAuditLog records one authorize-capture-provision run. It is write-only:
// step state is always recomputed from the billing backend, never read back from here.
type WorkflowAuditLog struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID         uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"run_id"`
	Action        string    `gorm:"not null;size:100" json:"action"`
	OrderID       string    `gorm:"size:100;index:idx_audit_logs_order_invoice" json:"order_id"`
	InvoiceID     string    `gorm:"size:100;index:idx_audit_logs_order_invoice" json:"invoice_id"`
	TransactionID string    `gorm:"size:200;index" json:"transaction_id"`
	PaymentMethod string    `gorm:"size:50" json:"payment_method"`
	Success       bool      `json:"success"`
	Authorize     string    `gorm:"size:20" json:"authorize"`
	Capture       string    `gorm:"size:20" json:"capture"`
	Provision     string    `gorm:"size:20" json:"provision"`
	Request       JSONB     `gorm:"type:jsonb" json:"request"`
	Result        JSONB     `gorm:"type:jsonb" json:"result"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName specifies the table name for GORM
func (WorkflowAuditLog) TableName() string {
	return "audit_logs"
}
