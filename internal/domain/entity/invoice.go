package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is opaque beyond the values named here
type InvoiceStatus string

const (
	InvoiceStatusUnpaid    InvoiceStatus = "Unpaid"
	InvoiceStatusPaid      InvoiceStatus = "Paid"
	InvoiceStatusCancelled InvoiceStatus = "Cancelled"
)

// LedgerEntry is a payment already recorded on an invoice
type LedgerEntry struct {
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Module        string          `json:"module,omitempty"`
	Date          *time.Time      `json:"date,omitempty"`
}

// Invoice mirrors the billing backend's invoice record. This service never mutates
// it locally; every change goes through the backend RPC surface.
type Invoice struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"orderId,omitempty"`
	Status          InvoiceStatus   `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	Credit          decimal.Decimal `json:"credit"`
	Currency        string          `json:"currency"`
	PaymentModuleID string          `json:"paymentModuleId,omitempty"`
	GatewayID       string          `json:"gatewayId,omitempty"`
	CreatedAt       *time.Time      `json:"createdAt,omitempty"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	Transactions    []LedgerEntry   `json:"transactions,omitempty"`
}

// HasTransaction reports whether a ledger entry with the given transaction id exists.
func (i *Invoice) HasTransaction(transactionID string) bool {
	if i == nil || transactionID == "" {
		return false
	}
	for _, tx := range i.Transactions {
		if tx.TransactionID == transactionID {
			return true
		}
	}
	return false
}

// RecordedTotal sums all recorded ledger entries.
func (i *Invoice) RecordedTotal() decimal.Decimal {
	total := decimal.Zero
	if i == nil {
		return total
	}
	for _, tx := range i.Transactions {
		total = total.Add(tx.Amount)
	}
	return total
}

// InvoiceStatusView is the read projection served to the storefront and pollers
type InvoiceStatusView struct {
	InvoiceID string          `json:"invoiceId"`
	Status    InvoiceStatus   `json:"status"`
	IsPaid    bool            `json:"isPaid"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	DatePaid  *time.Time      `json:"datePaid,omitempty"`
}
