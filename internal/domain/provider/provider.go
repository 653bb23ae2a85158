package provider

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentProvider defines the interface for payment providers (Comgate, PayU, Stripe, bank transfer)
type PaymentProvider interface {
	// InitializePayment starts an external payment session; it never touches invoice state
	InitializePayment(ctx context.Context, req *InitializePaymentRequest) (*InitializePaymentResponse, error)

	// ParseCallback verifies and decodes an asynchronous notification or a browser return
	ParseCallback(ctx context.Context, cb *RawCallback) (*CallbackEvent, error)

	// GetProviderName returns the provider name
	GetProviderName() string
}

// InitializePaymentRequest represents a provider-agnostic payment initialization request
type InitializePaymentRequest struct {
	OrderID       string          `json:"order_id"`
	InvoiceID     string          `json:"invoice_id"`
	Amount        decimal.Decimal `json:"amount"` // major units
	Currency      string          `json:"currency"`
	Description   string          `json:"description"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	CustomerIP    string          `json:"customer_ip,omitempty"`
	// Attempt distinguishes repeated sessions for the same invoice
	Attempt  int               `json:"attempt,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// InitializePaymentResponse represents the response from payment initialization
type InitializePaymentResponse struct {
	TransactionID    string            `json:"transaction_id,omitempty"`
	PaymentURL       string            `json:"payment_url,omitempty"`
	RedirectRequired bool              `json:"redirect_required"`
	Status           string            `json:"status"`
	ProviderData     map[string]string `json:"provider_data,omitempty"`
}

// CallbackSource tells a provider which channel delivered the callback
type CallbackSource string

const (
	CallbackSourceWebhook CallbackSource = "webhook"
	CallbackSourceReturn  CallbackSource = "return"
)

// RawCallback is the undecoded callback as received over HTTP
type RawCallback struct {
	Source  CallbackSource
	Params  url.Values
	Body    []byte
	Headers http.Header
}

// CallbackEvent is a verified provider notification in provider-neutral form
type CallbackEvent struct {
	EventID       string          `json:"event_id,omitempty"`
	TransactionID string          `json:"transaction_id"`
	InvoiceID     string          `json:"invoice_id"`
	RawStatus     string          `json:"raw_status"`
	Status        PaymentStatus   `json:"status"`
	Amount        decimal.Decimal `json:"amount"` // major units
	Currency      string          `json:"currency"`
	Method        string          `json:"method,omitempty"`
	// Verified is set when the provider proved authenticity (signature or status API)
	Verified   bool      `json:"verified"`
	ReceivedAt time.Time `json:"received_at"`
}

// PaymentStatus represents the status of a payment as reported by a provider
type PaymentStatus string

const (
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

// ProviderType represents the type of payment provider
type ProviderType string

const (
	ProviderTypeComgate      ProviderType = "comgate"
	ProviderTypePayU         ProviderType = "payu"
	ProviderTypeStripe       ProviderType = "stripe"
	ProviderTypeBankTransfer ProviderType = "banktransfer"
)

// Provider error codes
const (
	ErrCodeInvalidSignature = "INVALID_SIGNATURE"
	ErrCodeMalformed        = "MALFORMED_CALLBACK"
	ErrCodeRequest          = "REQUEST_ERROR"
	ErrCodeAPI              = "API_ERROR"
	ErrCodeResponse         = "RESPONSE_ERROR"
	ErrCodeParse            = "PARSE_ERROR"
	ErrCodeNotConfigured    = "NOT_CONFIGURED"
	// ErrCodeIgnoredEvent marks a notification type that carries no payment state
	ErrCodeIgnoredEvent = "IGNORED_EVENT"
)

// Error types for provider operations
type ProviderError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *ProviderError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}
