package repository

import (
	"context"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// GatewayCallResult is the outcome of a gateway-mediated authorize or capture
type GatewayCallResult struct {
	// BalanceState is the backend's balance marker (Authorized, Completed, Incomplete);
	// it is optional and absent for most gateways
	BalanceState string `json:"balance_state,omitempty"`
	Message      string `json:"message,omitempty"`
}

// PaymentEntry is the direct-bypass ledger entry added to an invoice
type PaymentEntry struct {
	InvoiceID     string
	Amount        decimal.Decimal
	ModuleLabel   string
	TransactionID string
	Note          string
}

// PaymentEntryResult reports what the backend did with an AddInvoicePayment call
type PaymentEntryResult struct {
	PaymentID string `json:"payment_id,omitempty"`
	// Duplicate is set when the backend recognized the transaction id and added nothing
	Duplicate bool `json:"duplicate"`
}

// ProvisioningOutcome lists the accounts the backend created or activated. Services
// that were already active are listed in Skipped.
type ProvisioningOutcome struct {
	Accounts []string `json:"accounts,omitempty"`
	Skipped  []string `json:"skipped,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// CreditAdjustment is the result of an applyCredit call
type CreditAdjustment struct {
	InvoiceID   string          `json:"invoice_id"`
	Applied     decimal.Decimal `json:"applied"`
	CreditAfter decimal.Decimal `json:"credit_after"`
}

// BillingBackend defines the RPC surface of the external billing system.
// Failures are *errors.PaymentError of kind BACKEND_UNAVAILABLE, BACKEND_REJECTED
// or GATEWAY_LOAD_FAILURE.
type BillingBackend interface {
	// GetOrderDetails returns the order with its first service sub-record
	GetOrderDetails(ctx context.Context, orderID string) (*entity.Order, error)

	// GetInvoiceDetails returns status, amounts, credit and recorded transactions
	GetInvoiceDetails(ctx context.Context, invoiceID string) (*entity.Invoice, error)

	// AuthorizeViaGateway asks the backend's own gateway module to authorize the payment
	AuthorizeViaGateway(ctx context.Context, orderID, invoiceID, transactionID string, amount decimal.Decimal) (*GatewayCallResult, error)

	// CaptureViaGateway asks the backend's own gateway module to capture the payment
	CaptureViaGateway(ctx context.Context, invoiceID, transactionID string, amount decimal.Decimal) (*GatewayCallResult, error)

	// SetOrderActive activates the order directly, skipping the gateway module
	SetOrderActive(ctx context.Context, orderID string) error

	// AddInvoicePayment records a payment directly; the transaction id is the backend's dedup key
	AddInvoicePayment(ctx context.Context, entry PaymentEntry) (*PaymentEntryResult, error)

	// RunProvisioningHooks triggers account creation for every service of the order
	RunProvisioningHooks(ctx context.Context, orderID string) (*ProvisioningOutcome, error)

	// ApplyCredit applies a signed credit adjustment to the invoice
	ApplyCredit(ctx context.Context, invoiceID string, amount decimal.Decimal) (*CreditAdjustment, error)

	// SetInvoiceStatus overrides the invoice status
	SetInvoiceStatus(ctx context.Context, invoiceID string, status entity.InvoiceStatus) error
}

// ApplyNegativeCredit removes amount from the invoice credit regardless of the sign passed in.
func ApplyNegativeCredit(ctx context.Context, backend BillingBackend, invoiceID string, amount decimal.Decimal) (*CreditAdjustment, error) {
	return backend.ApplyCredit(ctx, invoiceID, amount.Abs().Neg())
}
