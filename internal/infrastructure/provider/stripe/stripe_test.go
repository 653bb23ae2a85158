package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/config"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/provider"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test"

func newTestProvider(serverURL string) *StripeProvider {
	backends := &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(serverURL),
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		}),
	}
	return NewStripeProvider(config.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
	}, URLs{
		SuccessURL: "https://shop.example.com/payments/return/stripe",
		CancelURL:  "https://shop.example.com/cart",
	}, backends, zap.NewNop())
}

func sign(payload string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(eventType, paymentStatus string) string {
	return fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":"2024-06-20","type":%q,"data":{"object":{"id":"cs_test_1","object":"checkout.session","client_reference_id":"446","amount_total":10000,"currency":"czk","payment_status":%q,"status":"complete","metadata":{"invoice_id":"446","order_id":"426"}}}}`, eventType, paymentStatus)
}

func TestStripeProvider_InitializePayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "invoice-446-session-1", r.Header.Get("Idempotency-Key"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "446", r.PostForm.Get("client_reference_id"))
		assert.Equal(t, "10000", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "czk", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "426", r.PostForm.Get("metadata[order_id]"))
		assert.Contains(t, r.PostForm.Get("success_url"), "session_id={CHECKOUT_SESSION_ID}")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1","payment_status":"unpaid","status":"open"}`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	resp, err := p.InitializePayment(context.Background(), &provider.InitializePaymentRequest{
		OrderID:   "426",
		InvoiceID: "446",
		Amount:    decimal.NewFromInt(100),
		Currency:  "CZK",
	})

	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", resp.TransactionID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", resp.PaymentURL)
	assert.True(t, resp.RedirectRequired)
}

func TestStripeProvider_ParseCallback_Webhook(t *testing.T) {
	p := newTestProvider("http://unused")

	tests := []struct {
		name           string
		payload        string
		signature      func(payload string) string
		expectedStatus provider.PaymentStatus
		expectError    string
	}{
		{
			name:           "completed and paid",
			payload:        eventPayload("checkout.session.completed", "paid"),
			signature:      func(p string) string { return sign(p, time.Now()) },
			expectedStatus: provider.PaymentStatusPaid,
		},
		{
			name:           "completed but awaiting async payment",
			payload:        eventPayload("checkout.session.completed", "unpaid"),
			signature:      func(p string) string { return sign(p, time.Now()) },
			expectedStatus: provider.PaymentStatusPending,
		},
		{
			name:           "expired",
			payload:        eventPayload("checkout.session.expired", "unpaid"),
			signature:      func(p string) string { return sign(p, time.Now()) },
			expectedStatus: provider.PaymentStatusCancelled,
		},
		{
			name:        "unrelated event",
			payload:     eventPayload("customer.created", "paid"),
			signature:   func(p string) string { return sign(p, time.Now()) },
			expectError: provider.ErrCodeIgnoredEvent,
		},
		{
			name:        "bad signature",
			payload:     eventPayload("checkout.session.completed", "paid"),
			signature:   func(string) string { return fmt.Sprintf("t=%d,v1=deadbeef", time.Now().Unix()) },
			expectError: provider.ErrCodeInvalidSignature,
		},
		{
			name:        "stale timestamp",
			payload:     eventPayload("checkout.session.completed", "paid"),
			signature:   func(p string) string { return sign(p, time.Now().Add(-time.Hour)) },
			expectError: provider.ErrCodeInvalidSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			headers.Set(SignatureHeader, tt.signature(tt.payload))

			event, err := p.ParseCallback(context.Background(), &provider.RawCallback{
				Source:  provider.CallbackSourceWebhook,
				Body:    []byte(tt.payload),
				Headers: headers,
			})

			if tt.expectError != "" {
				var providerErr *provider.ProviderError
				require.ErrorAs(t, err, &providerErr)
				assert.Equal(t, tt.expectError, providerErr.Code)
				return
			}

			require.NoError(t, err)
			assert.True(t, event.Verified)
			assert.Equal(t, "evt_1", event.EventID)
			assert.Equal(t, "cs_test_1", event.TransactionID)
			assert.Equal(t, "446", event.InvoiceID)
			assert.Equal(t, "CZK", event.Currency)
			assert.True(t, decimal.NewFromInt(100).Equal(event.Amount))
			assert.Equal(t, tt.expectedStatus, event.Status)
		})
	}
}

func TestStripeProvider_ParseCallback_ReturnRetrievesSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/checkout/sessions/cs_test_1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","client_reference_id":"446","amount_total":10000,"currency":"czk","payment_status":"paid","status":"complete"}`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	event, err := p.ParseCallback(context.Background(), &provider.RawCallback{
		Source: provider.CallbackSourceReturn,
		Params: url.Values{"session_id": {"cs_test_1"}},
	})

	require.NoError(t, err)
	assert.True(t, event.Verified)
	assert.Equal(t, provider.PaymentStatusPaid, event.Status)
	assert.Equal(t, "446", event.InvoiceID)
}
