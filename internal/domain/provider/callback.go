package provider

import (
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// firstParam returns the first non-empty value among the given keys.
func firstParam(params url.Values, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(params.Get(key)); v != "" {
			return v
		}
	}
	return ""
}

// NormalizeStatus maps provider status words onto the four callback statuses.
// Unknown words are reported as pending so nothing is captured on them.
func NormalizeStatus(raw string) PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PAID", "COMPLETED", "SUCCESS", "SUCCEEDED", "OK":
		return PaymentStatusPaid
	case "AUTHORIZED", "WAITING_FOR_CONFIRMATION":
		return PaymentStatusAuthorized
	case "CANCELLED", "CANCELED", "FAILED", "EXPIRED", "REJECTED":
		return PaymentStatusCancelled
	default:
		return PaymentStatusPending
	}
}

// ParseGenericReturn decodes the unsigned browser return used by bank transfer and the
// test harness: transactionId|transId, invoiceId|refId, amount (major units), currency, status.
// The result is never marked verified.
func ParseGenericReturn(params url.Values) *CallbackEvent {
	event := &CallbackEvent{
		TransactionID: firstParam(params, "transactionId", "transId", "id"),
		InvoiceID:     firstParam(params, "invoiceId", "refId"),
		Currency:      strings.ToUpper(firstParam(params, "currency", "curr")),
		Method:        firstParam(params, "method", "paymentMethod"),
		RawStatus:     firstParam(params, "status"),
		ReceivedAt:    time.Now(),
	}
	event.Status = NormalizeStatus(event.RawStatus)
	if amount, err := decimal.NewFromString(firstParam(params, "amount")); err == nil {
		event.Amount = amount
	}
	return event
}
