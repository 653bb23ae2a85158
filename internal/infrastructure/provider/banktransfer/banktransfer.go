package banktransfer

import (
	"context"
	"strings"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/config"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/provider"
	"go.uber.org/zap"
)

// BankTransferProvider shows the customer the invoice with transfer instructions.
// There is no gateway session; the payment is settled when the transfer is matched.
type BankTransferProvider struct {
	invoiceURL string
	logger     *zap.Logger
}

// NewBankTransferProvider creates a new bank transfer provider
func NewBankTransferProvider(cfg config.BankTransferConfig, logger *zap.Logger) *BankTransferProvider {
	return &BankTransferProvider{
		invoiceURL: cfg.InvoiceURL,
		logger:     logger,
	}
}

// GetProviderName returns the provider name
func (p *BankTransferProvider) GetProviderName() string {
	return string(provider.ProviderTypeBankTransfer)
}

// InitializePayment returns the invoice page for the customer; no redirect to a gateway
func (p *BankTransferProvider) InitializePayment(ctx context.Context, req *provider.InitializePaymentRequest) (*provider.InitializePaymentResponse, error) {
	paymentURL := strings.ReplaceAll(p.invoiceURL, "{invoice_id}", req.InvoiceID)

	p.logger.Info("BankTransferProvider: Awaiting transfer",
		zap.String("invoice_id", req.InvoiceID),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("currency", req.Currency))

	return &provider.InitializePaymentResponse{
		PaymentURL:       paymentURL,
		RedirectRequired: false,
		Status:           string(provider.PaymentStatusPending),
	}, nil
}

// ParseCallback decodes an unsigned return; the event is never verified
func (p *BankTransferProvider) ParseCallback(ctx context.Context, cb *provider.RawCallback) (*provider.CallbackEvent, error) {
	return provider.ParseGenericReturn(cb.Params), nil
}
