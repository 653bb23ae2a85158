package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/config"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	domainErrors "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/errors"
	domainRepo "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/repository"
	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RPC call names understood by the billing backend
const (
	callGetOrderDetails   = "getOrderDetails"
	callGetInvoiceDetails = "getInvoiceDetails"
	callAuthorizePayment  = "authorizePayment"
	callCapturePayment    = "capturePayment"
	callSetOrderActive    = "setOrderActive"
	callAddInvoicePayment = "addInvoicePayment"
	callAccountCreate     = "accountCreate"
	callApplyCredit       = "applyCredit"
	callSetInvoiceStatus  = "setInvoiceStatus"
)

// serviceStatusActive marks a service that was already provisioned
const serviceStatusActive = "Active"

// duplicatePaymentMarkers identify a rejected addInvoicePayment whose transaction id was
// already recorded
var duplicatePaymentMarkers = []string{
	"already exists",
	"duplicate transaction",
	"transaction already recorded",
}

// maxResponseBytes bounds how much of a backend response is read
const maxResponseBytes = 4 << 20

// HTTPBillingBackendRepository implements the billing backend RPC client over HTTP
type HTTPBillingBackendRepository struct {
	client       *http.Client
	baseURL      string
	apiID        string
	apiKey       string
	timeout      time.Duration
	attempts     int
	retryDelay   time.Duration
	loadPatterns []string
	logger       *zap.Logger
}

// NewHTTPBillingBackendRepository creates a new billing backend client
func NewHTTPBillingBackendRepository(cfg config.BillingConfig, logger *zap.Logger) *HTTPBillingBackendRepository {
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	patterns := make([]string, 0, len(cfg.GatewayLoadPatterns))
	for _, p := range cfg.GatewayLoadPatterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			patterns = append(patterns, p)
		}
	}
	return &HTTPBillingBackendRepository{
		// Per-attempt deadlines come from the context; the client timeout is a backstop.
		client: &http.Client{
			Timeout: cfg.Timeout + 5*time.Second,
		},
		baseURL:      cfg.URL,
		apiID:        cfg.APIID,
		apiKey:       cfg.APIKey,
		timeout:      cfg.Timeout,
		attempts:     attempts,
		retryDelay:   cfg.RetryBackoff,
		loadPatterns: patterns,
		logger:       logger,
	}
}

var _ domainRepo.BillingBackend = (*HTTPBillingBackendRepository)(nil)

// GetOrderDetails fetches the order with its first service record
func (r *HTTPBillingBackendRepository) GetOrderDetails(ctx context.Context, orderID string) (*entity.Order, error) {
	record, err := r.fetchOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order := record.toEntity()
	if order.ID == "" {
		order.ID = orderID
	}
	return order, nil
}

func (r *HTTPBillingBackendRepository) fetchOrder(ctx context.Context, orderID string) (*orderDetailsRecord, error) {
	var record orderDetailsRecord
	params := url.Values{"id": {orderID}}
	if err := r.call(ctx, callGetOrderDetails, params, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// GetInvoiceDetails fetches invoice status, amount, credit and recorded transactions
func (r *HTTPBillingBackendRepository) GetInvoiceDetails(ctx context.Context, invoiceID string) (*entity.Invoice, error) {
	var record invoiceDetailsRecord
	params := url.Values{"id": {invoiceID}}
	if err := r.call(ctx, callGetInvoiceDetails, params, &record); err != nil {
		return nil, err
	}
	invoice := record.toEntity()
	if invoice.ID == "" {
		invoice.ID = invoiceID
	}
	return invoice, nil
}

// AuthorizeViaGateway requests authorization through the backend's gateway module
func (r *HTTPBillingBackendRepository) AuthorizeViaGateway(ctx context.Context, orderID, invoiceID, transactionID string, amount decimal.Decimal) (*domainRepo.GatewayCallResult, error) {
	var record gatewayCallRecord
	params := url.Values{
		"id":       {invoiceID},
		"order_id": {orderID},
		"trans_id": {transactionID},
		"amount":   {amount.StringFixed(2)},
	}
	if err := r.call(ctx, callAuthorizePayment, params, &record); err != nil {
		return nil, err
	}
	return &domainRepo.GatewayCallResult{
		BalanceState: string(record.Balance),
		Message:      string(record.Info),
	}, nil
}

// CaptureViaGateway requests capture through the backend's gateway module
func (r *HTTPBillingBackendRepository) CaptureViaGateway(ctx context.Context, invoiceID, transactionID string, amount decimal.Decimal) (*domainRepo.GatewayCallResult, error) {
	var record gatewayCallRecord
	params := url.Values{
		"id":       {invoiceID},
		"trans_id": {transactionID},
		"amount":   {amount.StringFixed(2)},
	}
	if err := r.call(ctx, callCapturePayment, params, &record); err != nil {
		return nil, err
	}
	return &domainRepo.GatewayCallResult{
		BalanceState: string(record.Balance),
		Message:      string(record.Info),
	}, nil
}

// SetOrderActive activates the order directly
func (r *HTTPBillingBackendRepository) SetOrderActive(ctx context.Context, orderID string) error {
	return r.call(ctx, callSetOrderActive, url.Values{"id": {orderID}}, nil)
}

// AddInvoicePayment records a payment entry. The transaction id travels as transnumber,
// which the backend uses to drop duplicates.
func (r *HTTPBillingBackendRepository) AddInvoicePayment(ctx context.Context, entry domainRepo.PaymentEntry) (*domainRepo.PaymentEntryResult, error) {
	if entry.TransactionID == "" {
		return nil, domainErrors.NewInvalidRequestError(callAddInvoicePayment, "transaction id is required")
	}

	var record paymentEntryRecord
	params := url.Values{
		"id":            {entry.InvoiceID},
		"amount":        {entry.Amount.StringFixed(2)},
		"paymentmodule": {entry.ModuleLabel},
		"transnumber":   {entry.TransactionID},
		"notes":         {entry.Note},
	}
	err := r.call(ctx, callAddInvoicePayment, params, &record)
	if err != nil {
		var pe *domainErrors.PaymentError
		if stderrors.As(err, &pe) && pe.Kind == domainErrors.KindBackendRejected && isDuplicatePayment(pe.Message) {
			r.logger.Info("BillingBackend: payment already recorded for transaction",
				zap.String("invoice_id", entry.InvoiceID),
				zap.String("transaction_id", entry.TransactionID))
			return &domainRepo.PaymentEntryResult{Duplicate: true}, nil
		}
		return nil, err
	}

	return &domainRepo.PaymentEntryResult{
		PaymentID: string(record.PaymentID),
		Duplicate: record.Duplicate,
	}, nil
}

func isDuplicatePayment(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range duplicatePaymentMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// RunProvisioningHooks triggers accountCreate for every service attached to the order
// that is not already Active
func (r *HTTPBillingBackendRepository) RunProvisioningHooks(ctx context.Context, orderID string) (*domainRepo.ProvisioningOutcome, error) {
	record, err := r.fetchOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	outcome := &domainRepo.ProvisioningOutcome{}
	if len(record.Hosting) == 0 {
		outcome.Message = "order has no services to provision"
		return outcome, nil
	}

	for _, svc := range record.Hosting {
		if svc.ID == "" {
			continue
		}
		if strings.EqualFold(string(svc.Status), serviceStatusActive) {
			outcome.Skipped = append(outcome.Skipped, string(svc.ID))
			continue
		}
		if err := r.call(ctx, callAccountCreate, url.Values{"id": {string(svc.ID)}}, nil); err != nil {
			r.logger.Warn("BillingBackend: account creation failed",
				zap.String("order_id", orderID),
				zap.String("account_id", string(svc.ID)),
				zap.Error(err))
			return outcome, err
		}
		outcome.Accounts = append(outcome.Accounts, string(svc.ID))
	}
	if len(outcome.Accounts) == 0 && len(outcome.Skipped) > 0 {
		outcome.Message = "all services already active"
	}
	return outcome, nil
}

// ApplyCredit applies a signed credit adjustment to the invoice
func (r *HTTPBillingBackendRepository) ApplyCredit(ctx context.Context, invoiceID string, amount decimal.Decimal) (*domainRepo.CreditAdjustment, error) {
	var record creditRecord
	params := url.Values{
		"id":     {invoiceID},
		"amount": {amount.StringFixed(2)},
	}
	if err := r.call(ctx, callApplyCredit, params, &record); err != nil {
		return nil, err
	}
	return &domainRepo.CreditAdjustment{
		InvoiceID:   invoiceID,
		Applied:     amount,
		CreditAfter: record.Credit.Decimal,
	}, nil
}

// SetInvoiceStatus overrides the invoice status
func (r *HTTPBillingBackendRepository) SetInvoiceStatus(ctx context.Context, invoiceID string, status entity.InvoiceStatus) error {
	params := url.Values{
		"id":     {invoiceID},
		"status": {string(status)},
	}
	return r.call(ctx, callSetInvoiceStatus, params, nil)
}

// call issues one RPC with the bounded retry policy. Only BACKEND_UNAVAILABLE is retried.
func (r *HTTPBillingBackendRepository) call(ctx context.Context, op string, params url.Values, out interface{}) error {
	attempt := 0
	operation := func() error {
		attempt++
		startTime := time.Now()
		err := r.callOnce(ctx, op, params, out)
		if err == nil {
			r.logger.Debug("BillingBackend: call succeeded",
				zap.String("call", op),
				zap.Int("attempt", attempt),
				zap.Duration("duration", time.Since(startTime)))
			return nil
		}

		if !domainErrors.IsRetryable(err) {
			r.logger.Warn("BillingBackend: call rejected",
				zap.String("call", op),
				zap.String("kind", string(domainErrors.KindOf(err))),
				zap.Error(err))
			return backoff.Permanent(err)
		}

		r.logger.Warn("BillingBackend: call failed",
			zap.String("call", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.attempts),
			zap.Duration("duration", time.Since(startTime)),
			zap.Error(err))
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.retryDelay), uint64(r.attempts-1)),
		ctx,
	)
	err := backoff.Retry(operation, policy)
	if err != nil && ctx.Err() != nil && stderrors.Is(err, ctx.Err()) && domainErrors.KindOf(err) == "" {
		return domainErrors.NewBackendUnavailableError(op, err)
	}
	return err
}

func (r *HTTPBillingBackendRepository) callOnce(ctx context.Context, op string, params url.Values, out interface{}) error {
	if ctx.Err() != nil {
		return domainErrors.NewBackendUnavailableError(op, ctx.Err())
	}

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("api_id", r.apiID)
	form.Set("api_key", r.apiKey)
	form.Set("call", op)

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, r.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return domainErrors.NewBackendUnavailableError(op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return domainErrors.NewBackendUnavailableError(op, fmt.Errorf("http request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domainErrors.NewBackendUnavailableError(op, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return domainErrors.NewBackendUnavailableError(op, fmt.Errorf("billing backend returned status %d", resp.StatusCode))
	}

	var envelope rpcEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		r.logger.Error("BillingBackend: malformed response",
			zap.String("call", op),
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("response_body", truncate(body, 512)))
		return domainErrors.NewBackendRejectedError(op, fmt.Sprintf("malformed response (status %d)", resp.StatusCode))
	}

	if envelope.failed() || resp.StatusCode >= http.StatusBadRequest {
		message := envelope.errorText()
		if message == "" {
			message = fmt.Sprintf("call %s failed (status %d)", op, resp.StatusCode)
		}
		if r.isGatewayLoadFailure(message) {
			return domainErrors.NewGatewayLoadFailureError(op, message)
		}
		return domainErrors.NewBackendRejectedError(op, message)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return domainErrors.NewBackendRejectedError(op, fmt.Sprintf("unexpected response shape: %v", err))
		}
	}
	return nil
}

func (r *HTTPBillingBackendRepository) isGatewayLoadFailure(message string) bool {
	lower := strings.ToLower(message)
	for _, pattern := range r.loadPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
