package payu

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/config"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/provider"
	"go.uber.org/zap"
)

const (
	oauthPath  = "/pl/standard/user/oauth/authorize"
	ordersPath = "/api/v2_1/orders"

	// SignatureHeader carries the notification signature
	SignatureHeader = "OpenPayu-Signature"
)

// URLs are the endpoints PayU calls back on
type URLs struct {
	NotifyURL   string
	ContinueURL string
}

// PayUProvider implements the PaymentProvider interface for PayU (REST API v2.1)
type PayUProvider struct {
	client       *http.Client
	baseURL      string
	posID        string
	clientID     string
	clientSecret string
	secondKey    string
	urls         URLs
	logger       *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayUProvider creates a new PayU provider
func NewPayUProvider(cfg config.PayUConfig, urls URLs, logger *zap.Logger) *PayUProvider {
	return &PayUProvider{
		client: &http.Client{
			Timeout: 15 * time.Second,
			// Order creation answers 302 with a JSON body; the redirect is for the buyer.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		posID:        cfg.PosID,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		secondKey:    cfg.SecondKey,
		urls:         urls,
		logger:       logger,
	}
}

// GetProviderName returns the provider name
func (p *PayUProvider) GetProviderName() string {
	return string(provider.ProviderTypePayU)
}

type orderRequest struct {
	NotifyURL     string         `json:"notifyUrl,omitempty"`
	ContinueURL   string         `json:"continueUrl,omitempty"`
	CustomerIP    string         `json:"customerIp"`
	MerchantPosID string         `json:"merchantPosId"`
	Description   string         `json:"description"`
	CurrencyCode  string         `json:"currencyCode"`
	TotalAmount   string         `json:"totalAmount"`
	ExtOrderID    string         `json:"extOrderId"`
	Buyer         *orderBuyer    `json:"buyer,omitempty"`
	Products      []orderProduct `json:"products"`
}

type orderBuyer struct {
	Email string `json:"email"`
}

type orderProduct struct {
	Name      string `json:"name"`
	UnitPrice string `json:"unitPrice"`
	Quantity  string `json:"quantity"`
}

type orderResponse struct {
	Status struct {
		StatusCode string `json:"statusCode"`
		StatusDesc string `json:"statusDesc"`
	} `json:"status"`
	RedirectURI string `json:"redirectUri"`
	OrderID     string `json:"orderId"`
	ExtOrderID  string `json:"extOrderId"`
}

// InitializePayment creates a PayU order and returns the buyer redirect
func (p *PayUProvider) InitializePayment(ctx context.Context, req *provider.InitializePaymentRequest) (*provider.InitializePaymentResponse, error) {
	token, err := p.token(ctx)
	if err != nil {
		return nil, err
	}

	total := strconv.FormatInt(provider.ToMinorUnits(req.Amount, req.Currency), 10)
	description := req.Description
	if description == "" {
		description = "Invoice " + req.InvoiceID
	}
	customerIP := req.CustomerIP
	if customerIP == "" {
		customerIP = "127.0.0.1"
	}

	body := orderRequest{
		NotifyURL:     p.urls.NotifyURL,
		ContinueURL:   p.urls.ContinueURL,
		CustomerIP:    customerIP,
		MerchantPosID: p.posID,
		Description:   description,
		CurrencyCode:  strings.ToUpper(req.Currency),
		TotalAmount:   total,
		ExtOrderID:    ExtOrderID(req.InvoiceID, req.Attempt),
		Products: []orderProduct{
			{Name: description, UnitPrice: total, Quantity: "1"},
		},
	}
	if req.CustomerEmail != "" {
		body.Buyer = &orderBuyer{Email: req.CustomerEmail}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "MARSHAL_ERROR",
			Message: "Failed to prepare request",
			Details: err.Error(),
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+ordersPath, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    provider.ErrCodeRequest,
			Message: "Failed to create request",
			Details: err.Error(),
		}
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	p.logger.Info("PayUProvider: Creating order",
		zap.String("invoice_id", req.InvoiceID),
		zap.String("ext_order_id", body.ExtOrderID),
		zap.String("total_amount", total),
		zap.String("currency", body.CurrencyCode))

	respBody, status, err := p.do(httpReq)
	if err != nil {
		return nil, err
	}

	var result orderResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &provider.ProviderError{
			Code:    provider.ErrCodeParse,
			Message: "Failed to parse response",
			Details: err.Error(),
		}
	}

	if result.Status.StatusCode != "SUCCESS" || status >= http.StatusBadRequest {
		p.logger.Error("PayUProvider: Order creation failed",
			zap.String("invoice_id", req.InvoiceID),
			zap.Int("status_code", status),
			zap.String("payu_status", result.Status.StatusCode),
			zap.String("payu_desc", result.Status.StatusDesc))
		return nil, &provider.ProviderError{
			Code:    "PAYU_" + result.Status.StatusCode,
			Message: "PayU rejected order creation",
			Details: result.Status.StatusDesc,
		}
	}

	p.logger.Info("PayUProvider: Order created",
		zap.String("invoice_id", req.InvoiceID),
		zap.String("order_id", result.OrderID))

	return &provider.InitializePaymentResponse{
		TransactionID:    result.OrderID,
		PaymentURL:       result.RedirectURI,
		RedirectRequired: true,
		Status:           string(provider.PaymentStatusPending),
		ProviderData:     map[string]string{"extOrderId": body.ExtOrderID},
	}, nil
}

// ExtOrderID builds the merchant order id; PayU requires it to be unique per attempt.
func ExtOrderID(invoiceID string, attempt int) string {
	if attempt < 1 {
		attempt = 1
	}
	return fmt.Sprintf("%s-%d", invoiceID, attempt)
}

// InvoiceIDFromExtOrderID strips the attempt suffix.
func InvoiceIDFromExtOrderID(ext string) string {
	if i := strings.LastIndex(ext, "-"); i > 0 {
		return ext[:i]
	}
	return ext
}

type notification struct {
	Order struct {
		OrderID      string `json:"orderId"`
		ExtOrderID   string `json:"extOrderId"`
		CurrencyCode string `json:"currencyCode"`
		TotalAmount  string `json:"totalAmount"`
		Status       string `json:"status"`
		PayMethod    struct {
			Type string `json:"type"`
		} `json:"payMethod"`
	} `json:"order"`
	Properties []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"properties"`
}

// ParseCallback verifies the OpenPayu-Signature of a notification. Browser returns carry
// nothing signed and fall back to the generic return format.
func (p *PayUProvider) ParseCallback(ctx context.Context, cb *provider.RawCallback) (*provider.CallbackEvent, error) {
	if cb.Source != provider.CallbackSourceWebhook {
		return provider.ParseGenericReturn(cb.Params), nil
	}

	if err := p.verifySignature(cb.Body, cb.Headers.Get(SignatureHeader)); err != nil {
		p.logger.Warn("PayUProvider: Notification signature rejected", zap.Error(err))
		return nil, err
	}

	var n notification
	if err := json.Unmarshal(cb.Body, &n); err != nil {
		return nil, &provider.ProviderError{
			Code:    provider.ErrCodeMalformed,
			Message: "PayU notification is not valid JSON",
			Details: err.Error(),
		}
	}

	currency := strings.ToUpper(n.Order.CurrencyCode)
	event := &provider.CallbackEvent{
		TransactionID: n.Order.OrderID,
		InvoiceID:     InvoiceIDFromExtOrderID(n.Order.ExtOrderID),
		RawStatus:     n.Order.Status,
		Status:        provider.NormalizeStatus(n.Order.Status),
		Currency:      currency,
		Method:        n.Order.PayMethod.Type,
		Verified:      true,
		ReceivedAt:    time.Now(),
	}
	if minor, err := strconv.ParseInt(n.Order.TotalAmount, 10, 64); err == nil {
		event.Amount = provider.FromMinorUnits(minor, currency)
	}
	for _, prop := range n.Properties {
		if prop.Name == "PAYMENT_ID" {
			event.EventID = prop.Value
		}
	}
	return event, nil
}

// verifySignature checks "sender=...;signature=...;algorithm=MD5|SHA-256;content=DOCUMENT".
func (p *PayUProvider) verifySignature(body []byte, header string) error {
	if header == "" {
		return &provider.ProviderError{
			Code:    provider.ErrCodeInvalidSignature,
			Message: "missing " + SignatureHeader + " header",
		}
	}

	fields := map[string]string{}
	for _, part := range strings.Split(header, ";") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) == 2 {
			fields[strings.ToLower(kv[0])] = kv[1]
		}
	}

	got := strings.ToLower(fields["signature"])
	if got == "" {
		return &provider.ProviderError{
			Code:    provider.ErrCodeInvalidSignature,
			Message: "signature field missing from header",
		}
	}

	payload := append(append([]byte{}, body...), p.secondKey...)
	var expected string
	switch strings.ToUpper(strings.ReplaceAll(fields["algorithm"], "-", "")) {
	case "", "MD5":
		sum := md5.Sum(payload)
		expected = hex.EncodeToString(sum[:])
	case "SHA256":
		sum := sha256.Sum256(payload)
		expected = hex.EncodeToString(sum[:])
	default:
		return &provider.ProviderError{
			Code:    provider.ErrCodeInvalidSignature,
			Message: "unsupported signature algorithm",
			Details: fields["algorithm"],
		}
	}

	if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
		return &provider.ProviderError{
			Code:    provider.ErrCodeInvalidSignature,
			Message: "PayU signature does not match",
		}
	}
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// token returns a cached OAuth client_credentials token
func (p *PayUProvider) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && time.Now().Before(p.tokenExpiry) {
		return p.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {p.clientID},
		"client_secret": {p.clientSecret},
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+oauthPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &provider.ProviderError{
			Code:    provider.ErrCodeRequest,
			Message: "Failed to create token request",
			Details: err.Error(),
		}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, status, err := p.do(httpReq)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &provider.ProviderError{
			Code:    "PAYU_AUTH_FAILED",
			Message: "PayU OAuth token request failed",
			Details: string(body),
		}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
		return "", &provider.ProviderError{
			Code:    provider.ErrCodeParse,
			Message: "Failed to parse OAuth token",
			Details: string(body),
		}
	}

	p.accessToken = tok.AccessToken
	// refresh a minute early
	p.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return p.accessToken, nil
}

func (p *PayUProvider) do(httpReq *http.Request) ([]byte, int, error) {
	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.Error("PayUProvider: Request failed",
			zap.String("path", httpReq.URL.Path),
			zap.Error(err))
		return nil, 0, &provider.ProviderError{
			Code:    provider.ErrCodeAPI,
			Message: "PayU API request failed",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &provider.ProviderError{
			Code:    provider.ErrCodeResponse,
			Message: "Failed to read response",
			Details: err.Error(),
		}
	}
	return body, resp.StatusCode, nil
}
