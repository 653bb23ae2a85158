package repository

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// The billing backend returns loosely typed JSON: ids and amounts arrive as strings,
// numbers or null depending on the call. The records below absorb that once so the
// rest of the service only sees entity types.

// flexString accepts a JSON string, number, bool or null
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	*f = flexString(string(data))
	return nil
}

// flexDecimal accepts "100.00", 100, "" or null; empty values decode to zero
type flexDecimal struct {
	decimal.Decimal
}

func (f *flexDecimal) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		f.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(string(s))
	if err != nil {
		f.Decimal = decimal.Zero
		return nil
	}
	f.Decimal = d
	return nil
}

// flexCurrency accepts "CZK" or {"code":"CZK", ...}
type flexCurrency string

func (f *flexCurrency) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Code flexString `json:"code"`
			ISO  flexString `json:"iso"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		code := obj.Code
		if code == "" {
			code = obj.ISO
		}
		*f = flexCurrency(strings.ToUpper(string(code)))
		return nil
	}
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	*f = flexCurrency(strings.ToUpper(string(s)))
	return nil
}

// backendTimeLayouts are the date formats seen in backend payloads
var backendTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

// parseBackendTime returns nil for empty or zero dates ("0000-00-00").
func parseBackendTime(s flexString) *time.Time {
	v := strings.TrimSpace(string(s))
	if v == "" || strings.HasPrefix(v, "0000-00-00") {
		return nil
	}
	for _, layout := range backendTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}

// rpcEnvelope is common to every backend response
type rpcEnvelope struct {
	Success *bool           `json:"success"`
	Error   json.RawMessage `json:"error"`
}

// errorText flattens the error field, which is a string or an array of strings.
func (e rpcEnvelope) errorText() string {
	raw := bytes.TrimSpace(e.Error)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("false")) {
		return ""
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// failed reports a structured failure: success=false or a non-empty error field.
func (e rpcEnvelope) failed() bool {
	if e.errorText() != "" {
		return true
	}
	return e.Success != nil && !*e.Success
}

type orderDetailsRecord struct {
	Details struct {
		ID            flexString   `json:"id"`
		InvoiceID     flexString   `json:"invoice_id"`
		ClientID      flexString   `json:"client_id"`
		Email         flexString   `json:"email"`
		Status        flexString   `json:"status"`
		Total         flexDecimal  `json:"total"`
		Currency      flexCurrency `json:"currency"`
		GatewayID     flexString   `json:"gateway_id"`
		Module        flexString   `json:"module"`
		PaymentModule flexString   `json:"payment_module"`
		Date          flexString   `json:"date_created"`
	} `json:"details"`
	Hosting []serviceRecord `json:"hosting"`
	Items   []struct {
		ProductID    flexString  `json:"product_id"`
		Name         flexString  `json:"name"`
		Quantity     flexString  `json:"qty"`
		Amount       flexDecimal `json:"amount"`
		BillingCycle flexString  `json:"billingcycle"`
	} `json:"items"`
}

type serviceRecord struct {
	ID           flexString  `json:"id"`
	ProductID    flexString  `json:"product_id"`
	Domain       flexString  `json:"domain"`
	Status       flexString  `json:"status"`
	BillingCycle flexString  `json:"billingcycle"`
	Total        flexDecimal `json:"total"`
}

func (s serviceRecord) toEntity() *entity.Service {
	return &entity.Service{
		ID:           string(s.ID),
		ProductID:    string(s.ProductID),
		Domain:       string(s.Domain),
		Status:       string(s.Status),
		BillingCycle: string(s.BillingCycle),
		Amount:       s.Total.Decimal,
	}
}

func (r *orderDetailsRecord) toEntity() *entity.Order {
	d := r.Details
	module := d.PaymentModule
	if module == "" {
		module = d.Module
	}
	order := &entity.Order{
		ID:              string(d.ID),
		InvoiceID:       string(d.InvoiceID),
		ClientID:        string(d.ClientID),
		ClientEmail:     string(d.Email),
		Status:          string(d.Status),
		Total:           d.Total.Decimal,
		Currency:        string(d.Currency),
		GatewayID:       string(d.GatewayID),
		PaymentModuleID: string(module),
		CreatedAt:       parseBackendTime(d.Date),
	}
	for _, item := range r.Items {
		qty, err := strconv.Atoi(string(item.Quantity))
		if err != nil || qty < 1 {
			qty = 1
		}
		order.Items = append(order.Items, entity.LineItem{
			ProductID:    string(item.ProductID),
			Name:         string(item.Name),
			Quantity:     qty,
			UnitPrice:    item.Amount.Decimal,
			BillingCycle: string(item.BillingCycle),
		})
	}
	if len(r.Hosting) > 0 {
		order.Service = r.Hosting[0].toEntity()
	}
	return order
}

type invoiceDetailsRecord struct {
	Invoice struct {
		ID            flexString   `json:"id"`
		OrderID       flexString   `json:"order_id"`
		Status        flexString   `json:"status"`
		Total         flexDecimal  `json:"total"`
		Credit        flexDecimal  `json:"credit"`
		Currency      flexCurrency `json:"currency"`
		PaymentModule flexString   `json:"payment_module"`
		GatewayID     flexString   `json:"gateway_id"`
		Date          flexString   `json:"date"`
		DatePaid      flexString   `json:"datepaid"`
		Transactions  []struct {
			TransID flexString  `json:"trans_id"`
			Amount  flexDecimal `json:"amount"`
			Module  flexString  `json:"module"`
			Date    flexString  `json:"date"`
		} `json:"transactions"`
	} `json:"invoice"`
}

func (r *invoiceDetailsRecord) toEntity() *entity.Invoice {
	inv := r.Invoice
	out := &entity.Invoice{
		ID:              string(inv.ID),
		OrderID:         string(inv.OrderID),
		Status:          entity.InvoiceStatus(inv.Status),
		Amount:          inv.Total.Decimal,
		Credit:          inv.Credit.Decimal,
		Currency:        string(inv.Currency),
		PaymentModuleID: string(inv.PaymentModule),
		GatewayID:       string(inv.GatewayID),
		CreatedAt:       parseBackendTime(inv.Date),
		PaidAt:          parseBackendTime(inv.DatePaid),
	}
	for _, tx := range inv.Transactions {
		out.Transactions = append(out.Transactions, entity.LedgerEntry{
			TransactionID: string(tx.TransID),
			Amount:        tx.Amount.Decimal,
			Module:        string(tx.Module),
			Date:          parseBackendTime(tx.Date),
		})
	}
	return out
}

type gatewayCallRecord struct {
	Balance flexString `json:"balance"`
	Info    flexString `json:"info"`
}

type paymentEntryRecord struct {
	PaymentID flexString `json:"payment_id"`
	Duplicate bool       `json:"duplicate"`
}

type creditRecord struct {
	Credit flexDecimal `json:"credit"`
}
