package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	domainErrors "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/errors"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/provider"
	domainRepo "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProviderResolver picks the payment provider for a normalized selection
type ProviderResolver interface {
	ForSelection(sel entity.PaymentSelection) (provider.PaymentProvider, error)
}

// GatewaySessionRequest carries everything a provider needs to open a session
type GatewaySessionRequest struct {
	Order      *entity.Order
	Invoice    *entity.Invoice
	Selection  entity.PaymentSelection
	Amount     decimal.Decimal
	Currency   string
	CustomerIP string
	Attempt    int
}

// GatewaySessionService starts external payment sessions. It never changes invoice state.
type GatewaySessionService struct {
	backend   domainRepo.BillingBackend
	providers ProviderResolver
	methods   *PaymentMethodTable
	logger    *zap.Logger
}

// NewGatewaySessionService creates a new gateway session service
func NewGatewaySessionService(
	backend domainRepo.BillingBackend,
	providers ProviderResolver,
	methods *PaymentMethodTable,
	logger *zap.Logger,
) *GatewaySessionService {
	return &GatewaySessionService{
		backend:   backend,
		providers: providers,
		methods:   methods,
		logger:    logger,
	}
}

// Initialize opens a session with the provider chosen by the selection.
// Any provider failure is returned as a GATEWAY_INIT_FAILED error.
func (s *GatewaySessionService) Initialize(ctx context.Context, req GatewaySessionRequest) (*entity.GatewaySession, error) {
	if req.Invoice == nil || req.Invoice.ID == "" {
		return nil, domainErrors.NewInvalidRequestError("gateway.initialize", "invoice is required")
	}
	if !req.Amount.IsPositive() {
		return nil, domainErrors.NewInvalidRequestError("gateway.initialize", "amount must be positive")
	}

	p, err := s.providers.ForSelection(req.Selection)
	if err != nil {
		return nil, domainErrors.NewGatewayInitFailedError(req.Selection.GatewayID, "payment provider unavailable", err)
	}

	initReq := &provider.InitializePaymentRequest{
		InvoiceID:   req.Invoice.ID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: fmt.Sprintf("Invoice %s", req.Invoice.ID),
		CustomerIP:  req.CustomerIP,
		Attempt:     req.Attempt,
	}
	if req.Order != nil {
		initReq.OrderID = req.Order.ID
		initReq.CustomerEmail = req.Order.ClientEmail
	}

	s.logger.Info("Initializing gateway session",
		zap.String("provider", p.GetProviderName()),
		zap.String("invoice_id", req.Invoice.ID),
		zap.String("amount", req.Amount.String()),
		zap.String("currency", req.Currency),
		zap.Int("attempt", req.Attempt))

	resp, err := p.InitializePayment(ctx, initReq)
	if err != nil {
		message := "payment provider rejected the session"
		var providerErr *provider.ProviderError
		if errors.As(err, &providerErr) {
			message = providerErr.Error()
		}
		s.logger.Error("Gateway session initialization failed",
			zap.String("provider", p.GetProviderName()),
			zap.String("invoice_id", req.Invoice.ID),
			zap.Error(err))
		return nil, domainErrors.NewGatewayInitFailedError(p.GetProviderName(), message, err)
	}

	return &entity.GatewaySession{
		Provider:         p.GetProviderName(),
		TransactionID:    resp.TransactionID,
		PaymentURL:       resp.PaymentURL,
		RedirectRequired: resp.RedirectRequired,
	}, nil
}

// Checkout loads the order and invoice from the billing backend, normalizes the payment
// method and opens the gateway session for the invoice amount.
func (s *GatewaySessionService) Checkout(ctx context.Context, req entity.CheckoutRequest) (*entity.CheckoutResult, error) {
	order, err := s.backend.GetOrderDetails(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	invoice, err := s.backend.GetInvoiceDetails(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}

	selection := s.methods.Normalize(req.PaymentMethod)
	if selection.Defaulted {
		s.logger.Info("Payment method defaulted to Credit-Balance",
			zap.String("order_id", req.OrderID),
			zap.String("token", req.PaymentMethod))
	}

	currency := invoice.Currency
	if currency == "" {
		currency = order.Currency
	}
	attempt := req.Attempt
	if attempt < 1 {
		attempt = 1
	}

	session, err := s.Initialize(ctx, GatewaySessionRequest{
		Order:      order,
		Invoice:    invoice,
		Selection:  selection,
		Amount:     invoice.Amount,
		Currency:   currency,
		CustomerIP: req.CustomerIP,
		Attempt:    attempt,
	})
	if err != nil {
		return nil, err
	}

	return &entity.CheckoutResult{
		OrderID:   order.ID,
		InvoiceID: invoice.ID,
		Amount:    invoice.Amount,
		Currency:  currency,
		Selection: selection,
		Session:   *session,
	}, nil
}
