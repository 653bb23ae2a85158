package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	domainErrors "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/errors"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/provider"
	"go.uber.org/zap"
)

// ErrCallbackIgnored is returned for notifications that carry no payment state
var ErrCallbackIgnored = errors.New("callback carries no payment state")

// ProviderRegistry looks up a provider by name
type ProviderRegistry interface {
	GetProviderFromString(name string) (provider.PaymentProvider, error)
}

// CallbackIngestor verifies and normalizes provider notifications and browser returns
type CallbackIngestor struct {
	providers ProviderRegistry
	logger    *zap.Logger
}

// NewCallbackIngestor creates a new callback ingestor
func NewCallbackIngestor(providers ProviderRegistry, logger *zap.Logger) *CallbackIngestor {
	return &CallbackIngestor{
		providers: providers,
		logger:    logger,
	}
}

// Ingest decodes the callback with the named provider. Amounts come back in major units.
// Signature problems are INVALID_SIGNATURE, missing identifiers MALFORMED_CALLBACK.
func (i *CallbackIngestor) Ingest(ctx context.Context, providerName string, raw *provider.RawCallback) (*entity.CallbackResult, error) {
	providerName = strings.ToLower(strings.TrimSpace(providerName))
	p, err := i.providers.GetProviderFromString(providerName)
	if err != nil {
		return nil, domainErrors.NewMalformedCallbackError(providerName, "unknown or unconfigured provider: "+err.Error())
	}

	event, err := p.ParseCallback(ctx, raw)
	if err != nil {
		return nil, i.classify(providerName, err)
	}

	if event.TransactionID == "" {
		return nil, domainErrors.NewMalformedCallbackError(providerName, "transaction id is missing")
	}
	if event.InvoiceID == "" {
		return nil, domainErrors.NewMalformedCallbackError(providerName, "invoice id is missing")
	}
	if event.Amount.IsNegative() {
		return nil, domainErrors.NewMalformedCallbackError(providerName, "amount is negative")
	}

	eventID := event.EventID
	if eventID == "" {
		eventID = event.TransactionID
	}

	result := &entity.CallbackResult{
		Provider:      p.GetProviderName(),
		Status:        entity.CallbackStatus(event.Status),
		TransactionID: event.TransactionID,
		InvoiceID:     event.InvoiceID,
		Amount:        event.Amount,
		Currency:      event.Currency,
		Method:        event.Method,
		EventID:       eventID,
		Verified:      event.Verified,
	}

	i.logger.Info("Callback ingested",
		zap.String("provider", result.Provider),
		zap.String("source", string(raw.Source)),
		zap.String("transaction_id", result.TransactionID),
		zap.String("invoice_id", result.InvoiceID),
		zap.String("status", string(result.Status)),
		zap.String("raw_status", event.RawStatus),
		zap.String("amount", result.Amount.String()),
		zap.Bool("verified", result.Verified))

	return result, nil
}

func (i *CallbackIngestor) classify(providerName string, err error) error {
	var providerErr *provider.ProviderError
	if !errors.As(err, &providerErr) {
		return err
	}

	switch providerErr.Code {
	case provider.ErrCodeInvalidSignature:
		i.logger.Warn("Callback signature rejected",
			zap.String("provider", providerName),
			zap.String("message", providerErr.Message))
		return domainErrors.NewInvalidSignatureError(providerName, providerErr)
	case provider.ErrCodeMalformed, provider.ErrCodeParse:
		return domainErrors.NewMalformedCallbackError(providerName, providerErr.Error())
	case provider.ErrCodeIgnoredEvent:
		i.logger.Debug("Callback ignored",
			zap.String("provider", providerName),
			zap.String("details", providerErr.Details))
		return ErrCallbackIgnored
	default:
		return err
	}
}
