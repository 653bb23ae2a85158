package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Billing cycles as reported by the billing backend
const (
	BillingCycleOneTime      = "One Time"
	BillingCycleFree         = "Free"
	BillingCycleMonthly      = "Monthly"
	BillingCycleQuarterly    = "Quarterly"
	BillingCycleSemiAnnually = "Semi-Annually"
	BillingCycleAnnually     = "Annually"
	BillingCycleBiennially   = "Biennially"
	BillingCycleTriennially  = "Triennially"
)

// LineItem is a single product line of an order
type LineItem struct {
	ProductID    string          `json:"productId"`
	Name         string          `json:"name,omitempty"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	BillingCycle string          `json:"billingCycle"`
}

// Service is the hosting/service sub-record attached to an order
type Service struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"productId"`
	Domain       string          `json:"domain,omitempty"`
	Status       string          `json:"status"`
	BillingCycle string          `json:"billingCycle"`
	Amount       decimal.Decimal `json:"amount"`
}

// Order is created by the storefront checkout and owned by the billing backend.
// Only status fields change after creation, and only on the backend side.
type Order struct {
	ID              string          `json:"id"`
	InvoiceID       string          `json:"invoiceId"`
	ClientID        string          `json:"clientId"`
	ClientEmail     string          `json:"clientEmail,omitempty"`
	Status          string          `json:"status"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency"`
	GatewayID       string          `json:"gatewayId,omitempty"`
	PaymentModuleID string          `json:"paymentModuleId,omitempty"`
	Items           []LineItem      `json:"items,omitempty"`
	Service         *Service        `json:"service,omitempty"`
	CreatedAt       *time.Time      `json:"createdAt,omitempty"`
}

// BillingCycle returns the cycle of the first service, falling back to the first line item.
func (o *Order) BillingCycle() string {
	if o == nil {
		return ""
	}
	if o.Service != nil && o.Service.BillingCycle != "" {
		return o.Service.BillingCycle
	}
	for _, item := range o.Items {
		if item.BillingCycle != "" {
			return item.BillingCycle
		}
	}
	return ""
}
