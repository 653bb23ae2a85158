package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ExternalID is an order, invoice or transaction id supplied by a caller. Storefronts
// send these as JSON strings or numbers.
type ExternalID string

func (id *ExternalID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ExternalID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number, got %s", data)
	}
	*id = ExternalID(n.String())
	return nil
}

// UnmarshalJSON accepts numeric ids alongside strings
func (r *WorkflowRequest) UnmarshalJSON(data []byte) error {
	type plain WorkflowRequest
	aux := struct {
		*plain
		OrderID       ExternalID `json:"orderId"`
		InvoiceID     ExternalID `json:"invoiceId"`
		TransactionID ExternalID `json:"transactionId"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.OrderID = string(aux.OrderID)
	r.InvoiceID = string(aux.InvoiceID)
	r.TransactionID = string(aux.TransactionID)
	return nil
}

// UnmarshalJSON accepts numeric ids alongside strings
func (r *CheckoutRequest) UnmarshalJSON(data []byte) error {
	type plain CheckoutRequest
	aux := struct {
		*plain
		OrderID   ExternalID `json:"orderId"`
		InvoiceID ExternalID `json:"invoiceId"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.OrderID = string(aux.OrderID)
	r.InvoiceID = string(aux.InvoiceID)
	return nil
}
