package provider

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/config"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/provider"
	bankTransferProvider "github.com/Traderpoint/CloudVPS-2-sub003/internal/infrastructure/provider/banktransfer"
	comgateProvider "github.com/Traderpoint/CloudVPS-2-sub003/internal/infrastructure/provider/comgate"
	payuProvider "github.com/Traderpoint/CloudVPS-2-sub003/internal/infrastructure/provider/payu"
	stripeProvider "github.com/Traderpoint/CloudVPS-2-sub003/internal/infrastructure/provider/stripe"
	"go.uber.org/zap"
)

// Factory creates payment providers based on the provider type.
// Instances are cached so provider state (PayU OAuth token) survives between requests.
type Factory struct {
	config *config.Config
	logger *zap.Logger

	mu        sync.Mutex
	providers map[provider.ProviderType]provider.PaymentProvider
}

// NewFactory creates a new provider factory
func NewFactory(config *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		config:    config,
		logger:    logger,
		providers: make(map[provider.ProviderType]provider.PaymentProvider),
	}
}

// GetProvider returns a payment provider based on the provider type
func (f *Factory) GetProvider(providerType provider.ProviderType) (provider.PaymentProvider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.providers[providerType]; ok {
		return p, nil
	}

	var (
		p   provider.PaymentProvider
		err error
	)
	switch providerType {
	case provider.ProviderTypeComgate:
		p, err = f.createComgateProvider()
	case provider.ProviderTypePayU:
		p, err = f.createPayUProvider()
	case provider.ProviderTypeStripe:
		p, err = f.createStripeProvider()
	case provider.ProviderTypeBankTransfer:
		p = bankTransferProvider.NewBankTransferProvider(f.config.Providers.BankTransfer, f.logger)
	default:
		return nil, &provider.ProviderError{
			Code:    provider.ErrCodeNotConfigured,
			Message: fmt.Sprintf("unsupported provider type: %s", providerType),
		}
	}
	if err != nil {
		return nil, err
	}

	f.providers[providerType] = p
	return p, nil
}

// GetProviderFromString returns a payment provider from a string type
func (f *Factory) GetProviderFromString(providerStr string) (provider.PaymentProvider, error) {
	return f.GetProvider(provider.ProviderType(strings.ToLower(strings.TrimSpace(providerStr))))
}

// ForSelection picks the provider for a normalized payment selection. The gateway id is
// tried first; numeric gateway ids fall back to the selection token.
func (f *Factory) ForSelection(sel entity.PaymentSelection) (provider.PaymentProvider, error) {
	for _, candidate := range []string{sel.GatewayID, sel.Token} {
		switch provider.ProviderType(candidate) {
		case provider.ProviderTypeComgate, provider.ProviderTypePayU,
			provider.ProviderTypeStripe, provider.ProviderTypeBankTransfer:
			return f.GetProvider(provider.ProviderType(candidate))
		}
	}
	if sel.Token == "card" {
		return f.GetProvider(provider.ProviderTypeStripe)
	}
	return f.GetProvider(provider.ProviderTypeBankTransfer)
}

func (f *Factory) createComgateProvider() (provider.PaymentProvider, error) {
	cfg := f.config.Providers.Comgate
	if cfg.MerchantID == "" || cfg.Secret == "" {
		return nil, notConfigured("Comgate merchant id or secret not configured")
	}
	return comgateProvider.NewComgateProvider(cfg, f.logger), nil
}

func (f *Factory) createPayUProvider() (provider.PaymentProvider, error) {
	cfg := f.config.Providers.PayU
	if cfg.PosID == "" || cfg.ClientSecret == "" || cfg.SecondKey == "" {
		return nil, notConfigured("PayU POS id, client secret or second key not configured")
	}
	return payuProvider.NewPayUProvider(cfg, payuProvider.URLs{
		NotifyURL:   f.publicURL("/webhook/payu"),
		ContinueURL: f.publicURL("/payments/return/payu"),
	}, f.logger), nil
}

func (f *Factory) createStripeProvider() (provider.PaymentProvider, error) {
	cfg := f.config.Providers.Stripe
	if cfg.SecretKey == "" {
		return nil, notConfigured("Stripe secret key not configured")
	}
	return stripeProvider.NewStripeProvider(cfg, stripeProvider.URLs{
		SuccessURL: f.publicURL("/payments/return/stripe"),
		CancelURL:  strings.TrimRight(f.config.Service.StorefrontURL, "/"),
	}, nil, f.logger), nil
}

func (f *Factory) publicURL(path string) string {
	return strings.TrimRight(f.config.Service.PublicURL, "/") + path
}

func notConfigured(msg string) error {
	return &provider.ProviderError{
		Code:    provider.ErrCodeNotConfigured,
		Message: msg,
	}
}
