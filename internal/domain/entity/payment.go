package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentSelection is the normalized form of a storefront payment-method token
type PaymentSelection struct {
	Token           string `json:"token"`
	PaymentModuleID string `json:"paymentModuleId"`
	GatewayID       string `json:"gatewayId"`
	// Defaulted is set when the token was empty or unknown and resolved to Credit-Balance
	Defaulted bool `json:"defaulted,omitempty"`
}

// CreditBalanceModuleID is the billing backend's module id for Credit-Balance
const CreditBalanceModuleID = "0"

// IsCreditBalance reports whether the selection settles through Credit-Balance.
func (s PaymentSelection) IsCreditBalance() bool {
	return s.PaymentModuleID == CreditBalanceModuleID
}

// CallbackStatus is the normalized status of a provider notification
type CallbackStatus string

const (
	CallbackStatusPaid       CallbackStatus = "paid"
	CallbackStatusPending    CallbackStatus = "pending"
	CallbackStatusAuthorized CallbackStatus = "authorized"
	CallbackStatusCancelled  CallbackStatus = "cancelled"
)

// Transaction is issued by the payment provider and treated as authoritative
type Transaction struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Method    string          `json:"method"`
	OrderID   string          `json:"orderId,omitempty"`
	InvoiceID string          `json:"invoiceId"`
	Timestamp time.Time       `json:"timestamp"`
}

// GatewaySession is the outcome of starting a payment with an external provider
type GatewaySession struct {
	Provider         string `json:"provider"`
	TransactionID    string `json:"transactionId,omitempty"`
	PaymentURL       string `json:"paymentUrl,omitempty"`
	RedirectRequired bool   `json:"redirectRequired"`
}

// CallbackResult is what the ingestor hands to the orchestrator
type CallbackResult struct {
	Provider      string          `json:"provider"`
	Status        CallbackStatus  `json:"status"`
	TransactionID string          `json:"transactionId"`
	InvoiceID     string          `json:"invoiceId"`
	OrderID       string          `json:"orderId,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Method        string          `json:"method"`
	// EventID identifies the delivery for redelivery detection; defaults to the transaction id
	EventID string `json:"eventId,omitempty"`
	// Verified is false for unsigned browser returns that were not confirmed with the provider
	Verified bool `json:"verified"`
}

// CheckoutRequest starts a payment for an existing order and invoice
type CheckoutRequest struct {
	OrderID       string `json:"orderId" validate:"required"`
	InvoiceID     string `json:"invoiceId" validate:"required"`
	PaymentMethod string `json:"paymentMethod"`
	CustomerIP    string `json:"-"`
	// Attempt is bumped by the storefront when the customer retries the same invoice
	Attempt int `json:"attempt" validate:"omitempty,min=1"`
}

// CheckoutResult is returned to the storefront after a session was started
type CheckoutResult struct {
	OrderID   string           `json:"orderId"`
	InvoiceID string           `json:"invoiceId"`
	Amount    decimal.Decimal  `json:"amount"`
	Currency  string           `json:"currency"`
	Selection PaymentSelection `json:"selection"`
	Session   GatewaySession   `json:"session"`
}

// CallbackAction is what the service did with an ingested callback
type CallbackAction string

const (
	CallbackActionCaptured      CallbackAction = "captured"
	CallbackActionCaptureFailed CallbackAction = "capture_failed"
	CallbackActionRecorded      CallbackAction = "recorded"
	CallbackActionDuplicate     CallbackAction = "duplicate"
	CallbackActionIgnored       CallbackAction = "ignored"
	CallbackActionUnverified    CallbackAction = "unverified"
)

// CallbackOutcome is returned after a callback was processed
type CallbackOutcome struct {
	Action   CallbackAction  `json:"action"`
	Callback *CallbackResult `json:"callback,omitempty"`
	Workflow *WorkflowResult `json:"workflow,omitempty"`
}
