package comgate

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/config"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/provider"
	"go.uber.org/zap"
)

const (
	createPath = "/v1.0/create"
	statusPath = "/v1.0/status"
)

// ComgateProvider implements the PaymentProvider interface for Comgate
type ComgateProvider struct {
	client     *http.Client
	baseURL    string
	merchantID string
	secret     string
	test       bool
	method     string
	country    string
	lang       string
	logger     *zap.Logger
}

// NewComgateProvider creates a new Comgate provider
func NewComgateProvider(cfg config.ComgateConfig, logger *zap.Logger) *ComgateProvider {
	method := cfg.Method
	if method == "" {
		method = "ALL"
	}
	return &ComgateProvider{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		merchantID: cfg.MerchantID,
		secret:     cfg.Secret,
		test:       cfg.Test,
		method:     method,
		country:    cfg.Country,
		lang:       cfg.Lang,
		logger:     logger,
	}
}

// GetProviderName returns the provider name
func (p *ComgateProvider) GetProviderName() string {
	return string(provider.ProviderTypeComgate)
}

// InitializePayment creates a Comgate transaction in prepareOnly mode and returns its redirect URL
func (p *ComgateProvider) InitializePayment(ctx context.Context, req *provider.InitializePaymentRequest) (*provider.InitializePaymentResponse, error) {
	label := req.Description
	if label == "" {
		label = "Invoice " + req.InvoiceID
	}
	label = truncateLabel(label, maxLabelLength)

	form := url.Values{
		"merchant":    {p.merchantID},
		"secret":      {p.secret},
		"price":       {strconv.FormatInt(provider.ToMinorUnits(req.Amount, req.Currency), 10)},
		"curr":        {strings.ToUpper(req.Currency)},
		"label":       {label},
		"refId":       {req.InvoiceID},
		"method":      {p.method},
		"prepareOnly": {"true"},
		"test":        {strconv.FormatBool(p.test)},
	}
	if req.CustomerEmail != "" {
		form.Set("email", req.CustomerEmail)
	}
	if p.country != "" {
		form.Set("country", p.country)
	}
	if p.lang != "" {
		form.Set("lang", p.lang)
	}

	p.logger.Info("ComgateProvider: Creating payment",
		zap.String("invoice_id", req.InvoiceID),
		zap.String("price", form.Get("price")),
		zap.String("currency", form.Get("curr")),
		zap.Bool("test", p.test))

	values, err := p.post(ctx, createPath, form)
	if err != nil {
		return nil, err
	}

	if code := values.Get("code"); code != "0" {
		p.logger.Error("ComgateProvider: Payment creation rejected",
			zap.String("invoice_id", req.InvoiceID),
			zap.String("code", code),
			zap.String("message", values.Get("message")))
		return nil, &provider.ProviderError{
			Code:    "COMGATE_" + code,
			Message: "Comgate rejected payment creation",
			Details: values.Get("message"),
		}
	}

	transID := values.Get("transId")
	redirect := values.Get("redirect")
	if transID == "" || redirect == "" {
		return nil, &provider.ProviderError{
			Code:    provider.ErrCodeResponse,
			Message: "Comgate response is missing transId or redirect",
		}
	}

	p.logger.Info("ComgateProvider: Payment created",
		zap.String("invoice_id", req.InvoiceID),
		zap.String("trans_id", transID))

	return &provider.InitializePaymentResponse{
		TransactionID:    transID,
		PaymentURL:       redirect,
		RedirectRequired: true,
		Status:           string(provider.PaymentStatusPending),
	}, nil
}

// ParseCallback handles both the server-to-server notification (signed with the shared
// secret) and the browser return, which is confirmed through the status API.
func (p *ComgateProvider) ParseCallback(ctx context.Context, cb *provider.RawCallback) (*provider.CallbackEvent, error) {
	switch cb.Source {
	case provider.CallbackSourceWebhook:
		params, err := url.ParseQuery(string(cb.Body))
		if err != nil {
			return nil, &provider.ProviderError{
				Code:    provider.ErrCodeMalformed,
				Message: "Comgate notification body is not form-encoded",
				Details: err.Error(),
			}
		}
		for k, v := range cb.Params {
			if _, ok := params[k]; !ok {
				params[k] = v
			}
		}
		if !p.secretMatches(params.Get("secret")) {
			p.logger.Warn("ComgateProvider: Notification secret mismatch",
				zap.String("trans_id", params.Get("transId")))
			return nil, &provider.ProviderError{
				Code:    provider.ErrCodeInvalidSignature,
				Message: "Comgate notification secret does not match",
			}
		}
		event := p.eventFromParams(params)
		event.Verified = true
		return event, nil

	default:
		transID := cb.Params.Get("id")
		if transID == "" {
			transID = cb.Params.Get("transId")
		}
		if transID == "" {
			// Nothing to confirm; let the ingestor report the missing id
			return p.eventFromParams(cb.Params), nil
		}
		return p.GetStatus(ctx, transID)
	}
}

// GetStatus asks Comgate for the authoritative state of a transaction
func (p *ComgateProvider) GetStatus(ctx context.Context, transID string) (*provider.CallbackEvent, error) {
	form := url.Values{
		"merchant": {p.merchantID},
		"transId":  {transID},
		"secret":   {p.secret},
	}

	values, err := p.post(ctx, statusPath, form)
	if err != nil {
		return nil, err
	}
	if code := values.Get("code"); code != "0" {
		return nil, &provider.ProviderError{
			Code:    "COMGATE_" + code,
			Message: "Comgate status lookup failed",
			Details: values.Get("message"),
		}
	}

	event := p.eventFromParams(values)
	if event.TransactionID == "" {
		event.TransactionID = transID
	}
	event.Verified = true

	p.logger.Info("ComgateProvider: Status confirmed",
		zap.String("trans_id", transID),
		zap.String("status", event.RawStatus),
		zap.String("ref_id", event.InvoiceID))

	return event, nil
}

func (p *ComgateProvider) eventFromParams(params url.Values) *provider.CallbackEvent {
	currency := strings.ToUpper(params.Get("curr"))
	event := &provider.CallbackEvent{
		TransactionID: params.Get("transId"),
		InvoiceID:     params.Get("refId"),
		RawStatus:     params.Get("status"),
		Currency:      currency,
		Method:        params.Get("method"),
		ReceivedAt:    time.Now(),
	}
	event.Status = provider.NormalizeStatus(event.RawStatus)
	if price, err := strconv.ParseInt(params.Get("price"), 10, 64); err == nil {
		event.Amount = provider.FromMinorUnits(price, currency)
	}
	return event
}

func (p *ComgateProvider) secretMatches(got string) bool {
	if p.secret == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(p.secret)) == 1
}

// post sends a form request and decodes the form-encoded answer
func (p *ComgateProvider) post(ctx context.Context, path string, form url.Values) (url.Values, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    provider.ErrCodeRequest,
			Message: "Failed to create request",
			Details: err.Error(),
		}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.Error("ComgateProvider: Request failed", zap.String("path", path), zap.Error(err))
		return nil, &provider.ProviderError{
			Code:    provider.ErrCodeAPI,
			Message: "Comgate API request failed",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    provider.ErrCodeResponse,
			Message: "Failed to read response",
			Details: err.Error(),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &provider.ProviderError{
			Code:    provider.ErrCodeAPI,
			Message: fmt.Sprintf("Comgate API returned status %d", resp.StatusCode),
			Details: string(body),
		}
	}

	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    provider.ErrCodeParse,
			Message: "Failed to parse response",
			Details: err.Error(),
		}
	}
	return values, nil
}

// maxLabelLength is Comgate's label limit in characters
const maxLabelLength = 16

func truncateLabel(label string, limit int) string {
	runes := []rune(label)
	if len(runes) <= limit {
		return label
	}
	return string(runes[:limit])
}
