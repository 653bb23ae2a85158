package banktransfer

import (
	"context"
	"net/url"
	"testing"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/config"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/provider"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBankTransferProvider_InitializePayment(t *testing.T) {
	p := NewBankTransferProvider(config.BankTransferConfig{
		InvoiceURL: "https://shop.example.com/invoices/{invoice_id}",
	}, zap.NewNop())

	resp, err := p.InitializePayment(context.Background(), &provider.InitializePaymentRequest{
		InvoiceID: "446",
		Amount:    decimal.NewFromInt(100),
		Currency:  "CZK",
	})

	require.NoError(t, err)
	assert.False(t, resp.RedirectRequired)
	assert.Empty(t, resp.TransactionID)
	assert.Equal(t, "https://shop.example.com/invoices/446", resp.PaymentURL)
}

func TestBankTransferProvider_ParseCallback(t *testing.T) {
	p := NewBankTransferProvider(config.BankTransferConfig{}, zap.NewNop())

	event, err := p.ParseCallback(context.Background(), &provider.RawCallback{
		Source: provider.CallbackSourceReturn,
		Params: url.Values{"transactionId": {"VS446"}, "invoiceId": {"446"}, "amount": {"100"}, "status": {"paid"}},
	})

	require.NoError(t, err)
	assert.False(t, event.Verified)
	assert.Equal(t, provider.PaymentStatusPaid, event.Status)
	assert.True(t, decimal.NewFromInt(100).Equal(event.Amount))
}
