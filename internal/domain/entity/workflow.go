package entity

import (
	"github.com/shopspring/decimal"
)

// StepStatus is the state of one workflow step
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusReady     StepStatus = "ready"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepMethod records which path carried a step
type StepMethod string

const (
	StepMethodGateway         StepMethod = "gateway"
	StepMethodDirectBypass    StepMethod = "direct-bypass"
	StepMethodAlreadyRecorded StepMethod = "already-recorded"
	StepMethodReconciliation  StepMethod = "credit-reconciliation"
	StepMethodProvisioning    StepMethod = "provisioning-hooks"
)

// WorkflowState is the per-step status of one authorize-capture-provision run
type WorkflowState struct {
	AuthorizePayment StepStatus `json:"authorizePayment"`
	CapturePayment   StepStatus `json:"capturePayment"`
	Provision        StepStatus `json:"provision"`
}

// NewWorkflowState starts every step as pending.
func NewWorkflowState() WorkflowState {
	return WorkflowState{
		AuthorizePayment: StepStatusPending,
		CapturePayment:   StepStatusPending,
		Provision:        StepStatusPending,
	}
}

// AuthorizeSatisfied reports whether capture is allowed to run.
func (w WorkflowState) AuthorizeSatisfied() bool {
	return w.AuthorizePayment == StepStatusCompleted || w.AuthorizePayment == StepStatusSkipped
}

// StepAttempt is one call made while executing a step
type StepAttempt struct {
	Method    StepMethod `json:"method"`
	Success   bool       `json:"success"`
	ErrorKind string     `json:"errorKind,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// StepDetail carries the raw per-step outcome for operators
type StepDetail struct {
	Status                StepStatus    `json:"status"`
	Method                StepMethod    `json:"method,omitempty"`
	Attempts              []StepAttempt `json:"attempts,omitempty"`
	Error                 string        `json:"error,omitempty"`
	BalanceState          string        `json:"balanceState,omitempty"`
	InvoiceStatus         InvoiceStatus `json:"invoiceStatus,omitempty"`
	ReconciliationWarning string        `json:"reconciliationWarning,omitempty"`
	Message               string        `json:"message,omitempty"`
}

// WorkflowDetails groups step details; nil entries were never reached
type WorkflowDetails struct {
	Authorize      *StepDetail      `json:"authorize,omitempty"`
	Capture        *StepDetail      `json:"capture,omitempty"`
	Provision      *StepDetail      `json:"provision,omitempty"`
	Reconciliation *ReconcileResult `json:"reconciliation,omitempty"`
}

// WorkflowRequest is the orchestrator entry point payload
type WorkflowRequest struct {
	OrderID       string          `json:"orderId" validate:"required"`
	InvoiceID     string          `json:"invoiceId" validate:"required"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency" validate:"omitempty,len=3"`
	PaymentMethod string          `json:"paymentMethod"`
	Notes         string          `json:"notes" validate:"max=500"`
	SkipAuthorize bool            `json:"skipAuthorize"`
}

// AccountingStatus is the advisory outcome of the downstream accounting export
type AccountingStatus string

const (
	AccountingStatusExported AccountingStatus = "exported"
	AccountingStatusSkipped  AccountingStatus = "skipped"
	AccountingStatusFailed   AccountingStatus = "failed"
)

// AccountingOutcome never influences the workflow's success
type AccountingOutcome struct {
	Status  AccountingStatus `json:"status"`
	Message string           `json:"message,omitempty"`
}

// WorkflowResult is returned to the storefront/admin caller
type WorkflowResult struct {
	Success       bool               `json:"success"`
	Message       string             `json:"message"`
	RunID         string             `json:"runId"`
	TransactionID string             `json:"transactionId,omitempty"`
	Workflow      WorkflowState      `json:"workflow"`
	Details       WorkflowDetails    `json:"details"`
	NextSteps     []string           `json:"nextSteps"`
	Accounting    *AccountingOutcome `json:"accounting,omitempty"`
}

// ReconcileResult describes a deferred Credit-Balance reconciliation
type ReconcileResult struct {
	InvoiceID    string          `json:"invoiceId"`
	Applied      bool            `json:"applied"`
	SkipReason   string          `json:"skipReason,omitempty"`
	CreditBefore decimal.Decimal `json:"creditBefore"`
	CreditAfter  decimal.Decimal `json:"creditAfter"`
	Adjustment   decimal.Decimal `json:"adjustment"`
	Status       InvoiceStatus   `json:"status,omitempty"`
}

// ProvisioningResult is returned by an independent provisioning retry
type ProvisioningResult struct {
	OrderID  string     `json:"orderId"`
	Status   StepStatus `json:"status"`
	Message  string     `json:"message,omitempty"`
	Accounts []string   `json:"accounts,omitempty"`
}

// AccountingRecord is handed to the accounting exporter after a completed capture
type AccountingRecord struct {
	RunID         string          `json:"runId"`
	OrderID       string          `json:"orderId"`
	InvoiceID     string          `json:"invoiceId"`
	TransactionID string          `json:"transactionId"`
	PaymentMethod string          `json:"paymentMethod"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	ClientID      string          `json:"clientId,omitempty"`
	Items         []LineItem      `json:"items,omitempty"`
}
