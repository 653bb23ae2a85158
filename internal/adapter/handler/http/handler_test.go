package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	domainErrors "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/errors"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/provider"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockCheckoutStarter struct {
	mock.Mock
}

func (m *MockCheckoutStarter) Checkout(ctx context.Context, req entity.CheckoutRequest) (*entity.CheckoutResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.CheckoutResult), args.Error(1)
}

type MockWorkflowRunner struct {
	mock.Mock
}

func (m *MockWorkflowRunner) Run(ctx context.Context, req entity.WorkflowRequest) (*entity.WorkflowResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.WorkflowResult), args.Error(1)
}

type MockCallbackProcessor struct {
	mock.Mock
}

func (m *MockCallbackProcessor) Process(ctx context.Context, providerName string, raw *provider.RawCallback, remoteAddr string) (*entity.CallbackOutcome, error) {
	args := m.Called(ctx, providerName, raw, remoteAddr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.CallbackOutcome), args.Error(1)
}

type MockInvoiceServices struct {
	mock.Mock
}

func (m *MockInvoiceServices) GetStatus(ctx context.Context, invoiceID string) (*entity.InvoiceStatusView, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.InvoiceStatusView), args.Error(1)
}

func (m *MockInvoiceServices) ReconcileInvoice(ctx context.Context, invoiceID, orderID string) (*entity.ReconcileResult, error) {
	args := m.Called(ctx, invoiceID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ReconcileResult), args.Error(1)
}

func (m *MockInvoiceServices) ProvisionOrder(ctx context.Context, orderID string) (*entity.ProvisioningResult, error) {
	args := m.Called(ctx, orderID)
	var result *entity.ProvisioningResult
	if args.Get(0) != nil {
		result = args.Get(0).(*entity.ProvisioningResult)
	}
	return result, args.Error(1)
}

func newJSONRequest(method, target, body string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req, httptest.NewRecorder()
}

func TestPaymentHandler_Checkout(t *testing.T) {
	starter := new(MockCheckoutStarter)
	starter.On("Checkout", mock.Anything, mock.MatchedBy(func(req entity.CheckoutRequest) bool {
		return req.OrderID == "426" && req.InvoiceID == "446" && req.PaymentMethod == "comgate"
	})).Return(&entity.CheckoutResult{
		OrderID:   "426",
		InvoiceID: "446",
		Amount:    decimal.NewFromInt(100),
		Currency:  "CZK",
		Session:   entity.GatewaySession{Provider: "comgate", TransactionID: "AB12", RedirectRequired: true},
	}, nil)

	handler := NewPaymentHandler(starter, new(MockWorkflowRunner), zap.NewNop())
	e := echo.New()

	req, rec := newJSONRequest(http.MethodPost, "/api/v1/payments/checkout", `{"orderId":"426","invoiceId":"446","paymentMethod":"comgate"}`)
	require.NoError(t, handler.Checkout(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	var result entity.CheckoutResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "AB12", result.Session.TransactionID)
	starter.AssertExpectations(t)
}

func TestPaymentHandler_ProcessAcceptsNumericIDs(t *testing.T) {
	runner := new(MockWorkflowRunner)
	runner.On("Run", mock.Anything, mock.MatchedBy(func(req entity.WorkflowRequest) bool {
		return req.OrderID == "426" && req.InvoiceID == "446" && req.TransactionID == "AB12" &&
			req.Amount.Equal(decimal.NewFromInt(100))
	})).Return(&entity.WorkflowResult{Success: true}, nil)

	handler := NewPaymentHandler(new(MockCheckoutStarter), runner, zap.NewNop())
	req, rec := newJSONRequest(http.MethodPost, "/api/v1/payments/process",
		`{"orderId":426,"invoiceId":446,"transactionId":"AB12","amount":100,"currency":"CZK","paymentMethod":"comgate"}`)
	require.NoError(t, handler.Process(echo.New().NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)
	runner.AssertExpectations(t)
}

func TestPaymentHandler_CheckoutErrors(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		err          error
		expectedCode int
	}{
		{
			name:         "missing invoice",
			body:         `{"orderId":"426"}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "malformed body",
			body:         `{"orderId":`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "gateway init failed",
			body:         `{"orderId":"426","invoiceId":"446"}`,
			err:          domainErrors.NewGatewayInitFailedError("comgate", "rejected", nil),
			expectedCode: http.StatusBadGateway,
		},
		{
			name:         "backend unavailable",
			body:         `{"orderId":"426","invoiceId":"446"}`,
			err:          domainErrors.NewBackendUnavailableError("getOrderDetails", context.DeadlineExceeded),
			expectedCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			starter := new(MockCheckoutStarter)
			starter.On("Checkout", mock.Anything, mock.Anything).Return(nil, tt.err)

			handler := NewPaymentHandler(starter, new(MockWorkflowRunner), zap.NewNop())
			req, rec := newJSONRequest(http.MethodPost, "/api/v1/payments/checkout", tt.body)
			require.NoError(t, handler.Checkout(echo.New().NewContext(req, rec)))

			assert.Equal(t, tt.expectedCode, rec.Code)
			if tt.err != nil {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, string(domainErrors.KindOf(tt.err)), body["code"])
			} else {
				starter.AssertNotCalled(t, "Checkout", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestPaymentHandler_ProcessAndCapture(t *testing.T) {
	body := `{"orderId":"426","invoiceId":"446","transactionId":"AB12","amount":"100","currency":"CZK","paymentMethod":"comgate"}`

	tests := []struct {
		name          string
		target        string
		call          func(h *PaymentHandler, c echo.Context) error
		skipAuthorize bool
	}{
		{name: "process", target: "/api/v1/payments/process", call: (*PaymentHandler).Process},
		{name: "capture", target: "/api/v1/payments/capture", call: (*PaymentHandler).Capture, skipAuthorize: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := new(MockWorkflowRunner)
			runner.On("Run", mock.Anything, mock.MatchedBy(func(req entity.WorkflowRequest) bool {
				return req.TransactionID == "AB12" && req.SkipAuthorize == tt.skipAuthorize &&
					req.Amount.Equal(decimal.NewFromInt(100))
			})).Return(&entity.WorkflowResult{
				Success:   false,
				Message:   "capture failed",
				NextSteps: []string{"Retry capture manually with the same transaction id AB12"},
			}, nil)

			handler := NewPaymentHandler(new(MockCheckoutStarter), runner, zap.NewNop())
			req, rec := newJSONRequest(http.MethodPost, tt.target, body)
			require.NoError(t, tt.call(handler, echo.New().NewContext(req, rec)))

			assert.Equal(t, http.StatusOK, rec.Code)
			var result entity.WorkflowResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
			assert.False(t, result.Success)
			assert.Len(t, result.NextSteps, 1)
			runner.AssertExpectations(t)
		})
	}
}

func TestInvoiceHandler(t *testing.T) {
	services := new(MockInvoiceServices)
	services.On("GetStatus", mock.Anything, "446").Return(&entity.InvoiceStatusView{
		InvoiceID: "446",
		Status:    entity.InvoiceStatusPaid,
		IsPaid:    true,
	}, nil)
	services.On("ReconcileInvoice", mock.Anything, "897", "500").Return(&entity.ReconcileResult{
		InvoiceID: "897",
		Applied:   true,
	}, nil)
	services.On("ProvisionOrder", mock.Anything, "426").Return(&entity.ProvisioningResult{
		OrderID: "426",
		Status:  entity.StepStatusFailed,
	}, domainErrors.NewProvisioningFailedError("426", context.DeadlineExceeded))

	handler := NewInvoiceHandler(services, services, services, zap.NewNop())
	e := echo.New()

	t.Run("status", func(t *testing.T) {
		req, rec := newJSONRequest(http.MethodGet, "/api/v1/invoices/446/status", "")
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("446")
		require.NoError(t, handler.GetStatus(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"isPaid":true`)
	})

	t.Run("reconcile credit", func(t *testing.T) {
		req, rec := newJSONRequest(http.MethodPost, "/api/v1/invoices/897/reconcile-credit", `{"orderId":"500"}`)
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("897")
		require.NoError(t, handler.ReconcileCredit(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("provision failure reports result", func(t *testing.T) {
		req, rec := newJSONRequest(http.MethodPost, "/api/v1/orders/426/provision", "")
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("426")
		require.NoError(t, handler.ProvisionOrder(c))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"failed"`)
	})

	services.AssertExpectations(t)
}

func TestWebhookHandler_HandleWebhook(t *testing.T) {
	tests := []struct {
		name         string
		provider     string
		err          error
		expectedCode int
		expectedBody string
	}{
		{name: "comgate acknowledgement", provider: "comgate", expectedCode: http.StatusOK, expectedBody: "code=0&message=OK"},
		{name: "payu json", provider: "payu", expectedCode: http.StatusOK, expectedBody: `"action":"captured"`},
		{name: "bad signature", provider: "stripe", err: domainErrors.NewInvalidSignatureError("stripe", nil), expectedCode: http.StatusUnauthorized},
		{name: "malformed", provider: "payu", err: domainErrors.NewMalformedCallbackError("payu", "missing orderId"), expectedCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := new(MockCallbackProcessor)
			processor.On("Process", mock.Anything, tt.provider, mock.MatchedBy(func(raw *provider.RawCallback) bool {
				return raw.Source == provider.CallbackSourceWebhook && string(raw.Body) == "transId=AB12&status=PAID"
			}), mock.Anything).Return(&entity.CallbackOutcome{Action: entity.CallbackActionCaptured}, tt.err)

			handler := NewWebhookHandler(processor, "https://shop.example", zap.NewNop())
			req := httptest.NewRequest(http.MethodPost, "/webhook/"+tt.provider, strings.NewReader("transId=AB12&status=PAID"))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
			rec := httptest.NewRecorder()
			c := echo.New().NewContext(req, rec)
			c.SetParamNames("provider")
			c.SetParamValues(tt.provider)

			require.NoError(t, handler.HandleWebhook(c))
			assert.Equal(t, tt.expectedCode, rec.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, rec.Body.String(), tt.expectedBody)
			}
		})
	}
}

func TestWebhookHandler_HandleReturnRedirects(t *testing.T) {
	processor := new(MockCallbackProcessor)
	processor.On("Process", mock.Anything, "comgate", mock.MatchedBy(func(raw *provider.RawCallback) bool {
		return raw.Source == provider.CallbackSourceReturn && raw.Params.Get("id") == "AB12"
	}), mock.Anything).Return(&entity.CallbackOutcome{
		Action:   entity.CallbackActionCaptured,
		Callback: &entity.CallbackResult{InvoiceID: "446", TransactionID: "AB12"},
	}, nil)

	handler := NewWebhookHandler(processor, "https://shop.example/payment/result", zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/payments/return/comgate?id=AB12", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.SetParamNames("provider")
	c.SetParamValues("comgate")

	require.NoError(t, handler.HandleReturn(c))
	assert.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, "shop.example", location.Host)
	assert.Equal(t, "captured", location.Query().Get("status"))
	assert.Equal(t, "446", location.Query().Get("invoiceId"))
}
