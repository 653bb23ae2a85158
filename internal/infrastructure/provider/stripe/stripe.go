package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/config"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/provider"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"
)

// SignatureHeader carries the webhook signature
const SignatureHeader = "Stripe-Signature"

// URLs are the browser destinations after Checkout
type URLs struct {
	SuccessURL string
	CancelURL  string
}

// StripeProvider implements the PaymentProvider interface for Stripe Checkout
type StripeProvider struct {
	api           *client.API
	webhookSecret string
	urls          URLs
	logger        *zap.Logger
}

// NewStripeProvider creates a new Stripe provider. A nil backends value uses the live API.
func NewStripeProvider(cfg config.StripeConfig, urls URLs, backends *stripe.Backends, logger *zap.Logger) *StripeProvider {
	api := &client.API{}
	api.Init(cfg.SecretKey, backends)
	return &StripeProvider{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		urls:          urls,
		logger:        logger,
	}
}

// GetProviderName returns the provider name
func (s *StripeProvider) GetProviderName() string {
	return string(provider.ProviderTypeStripe)
}

// InitializePayment creates a Checkout Session in payment mode
func (s *StripeProvider) InitializePayment(ctx context.Context, req *provider.InitializePaymentRequest) (*provider.InitializePaymentResponse, error) {
	description := req.Description
	if description == "" {
		description = "Invoice " + req.InvoiceID
	}
	attempt := req.Attempt
	if attempt < 1 {
		attempt = 1
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.urls.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.urls.CancelURL),
		ClientReferenceID: stripe.String(req.InvoiceID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(provider.ToMinorUnits(req.Amount, req.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				"invoice_id": req.InvoiceID,
				"order_id":   req.OrderID,
			},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata("invoice_id", req.InvoiceID)
	params.AddMetadata("order_id", req.OrderID)
	params.SetIdempotencyKey(fmt.Sprintf("invoice-%s-session-%d", req.InvoiceID, attempt))
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		s.logger.Error("StripeProvider: Checkout session creation failed",
			zap.String("invoice_id", req.InvoiceID),
			zap.Error(err))
		return nil, toProviderError(err)
	}

	s.logger.Info("StripeProvider: Checkout session created",
		zap.String("invoice_id", req.InvoiceID),
		zap.String("session_id", sess.ID))

	return &provider.InitializePaymentResponse{
		TransactionID:    sess.ID,
		PaymentURL:       sess.URL,
		RedirectRequired: true,
		Status:           string(provider.PaymentStatusPending),
	}, nil
}

// ParseCallback verifies webhook signatures with stripe-go; browser returns are confirmed
// by retrieving the session.
func (s *StripeProvider) ParseCallback(ctx context.Context, cb *provider.RawCallback) (*provider.CallbackEvent, error) {
	if cb.Source != provider.CallbackSourceWebhook {
		sessionID := cb.Params.Get("session_id")
		if sessionID == "" {
			return provider.ParseGenericReturn(cb.Params), nil
		}
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		sess, err := s.api.CheckoutSessions.Get(sessionID, params)
		if err != nil {
			return nil, toProviderError(err)
		}
		event := eventFromSession(sess, "")
		event.Status = sessionStatus(sess)
		event.Verified = true
		return event, nil
	}

	if s.webhookSecret == "" {
		return nil, &provider.ProviderError{
			Code:    provider.ErrCodeNotConfigured,
			Message: "Stripe webhook secret not configured",
		}
	}

	evt, err := webhook.ConstructEventWithOptions(
		cb.Body,
		cb.Headers.Get(SignatureHeader),
		s.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		s.logger.Warn("StripeProvider: Webhook signature verification failed", zap.Error(err))
		return nil, &provider.ProviderError{
			Code:    provider.ErrCodeInvalidSignature,
			Message: "Stripe webhook signature verification failed",
			Details: err.Error(),
		}
	}

	var status provider.PaymentStatus
	switch evt.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		status = "" // decided from payment_status below
	case stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		status = provider.PaymentStatusPaid
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed, stripe.EventTypeCheckoutSessionExpired:
		status = provider.PaymentStatusCancelled
	default:
		s.logger.Debug("StripeProvider: Ignoring event", zap.String("type", string(evt.Type)))
		return nil, &provider.ProviderError{
			Code:    provider.ErrCodeIgnoredEvent,
			Message: "event type carries no payment state",
			Details: string(evt.Type),
		}
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
		return nil, &provider.ProviderError{
			Code:    provider.ErrCodeMalformed,
			Message: "Error parsing checkout session",
			Details: err.Error(),
		}
	}

	event := eventFromSession(&sess, evt.ID)
	if status == "" {
		status = sessionStatus(&sess)
	}
	event.Status = status
	event.RawStatus = string(evt.Type)
	event.Verified = true
	return event, nil
}

func eventFromSession(sess *stripe.CheckoutSession, eventID string) *provider.CallbackEvent {
	currency := strings.ToUpper(string(sess.Currency))
	invoiceID := sess.ClientReferenceID
	if invoiceID == "" && sess.Metadata != nil {
		invoiceID = sess.Metadata["invoice_id"]
	}
	return &provider.CallbackEvent{
		EventID:       eventID,
		TransactionID: sess.ID,
		InvoiceID:     invoiceID,
		RawStatus:     string(sess.PaymentStatus),
		Amount:        provider.FromMinorUnits(sess.AmountTotal, currency),
		Currency:      currency,
		Method:        "card",
		ReceivedAt:    time.Now(),
	}
}

func sessionStatus(sess *stripe.CheckoutSession) provider.PaymentStatus {
	switch sess.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return provider.PaymentStatusPaid
	}
	if sess.Status == stripe.CheckoutSessionStatusExpired {
		return provider.PaymentStatusCancelled
	}
	return provider.PaymentStatusPending
}

func toProviderError(err error) *provider.ProviderError {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		code := string(stripeErr.Code)
		if code == "" {
			code = string(stripeErr.Type)
		}
		return &provider.ProviderError{
			Code:    "STRIPE_" + strings.ToUpper(code),
			Message: stripeErr.Msg,
			Details: stripeErr.RequestID,
		}
	}
	return &provider.ProviderError{
		Code:    provider.ErrCodeAPI,
		Message: "Stripe API request failed",
		Details: err.Error(),
	}
}
