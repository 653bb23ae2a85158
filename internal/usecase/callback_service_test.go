package usecase

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/config"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	domainErrors "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/errors"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/model"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/provider"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockPaymentProvider is a mock implementation of PaymentProvider
type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) InitializePayment(ctx context.Context, req *provider.InitializePaymentRequest) (*provider.InitializePaymentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.InitializePaymentResponse), args.Error(1)
}

func (m *MockPaymentProvider) ParseCallback(ctx context.Context, cb *provider.RawCallback) (*provider.CallbackEvent, error) {
	args := m.Called(ctx, cb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.CallbackEvent), args.Error(1)
}

func (m *MockPaymentProvider) GetProviderName() string {
	return m.Called().String(0)
}

// stubRegistry resolves every name and selection to the same provider
type stubRegistry struct {
	provider provider.PaymentProvider
	err      error
}

func (s *stubRegistry) GetProviderFromString(name string) (provider.PaymentProvider, error) {
	return s.provider, s.err
}

func (s *stubRegistry) ForSelection(sel entity.PaymentSelection) (provider.PaymentProvider, error) {
	return s.provider, s.err
}

// memoryEventStore is an in-memory CallbackEventRepository keyed like the database index
type memoryEventStore struct {
	events map[string]*model.CallbackEvent
	nextID int64
}

func newMemoryEventStore() *memoryEventStore {
	return &memoryEventStore{events: make(map[string]*model.CallbackEvent)}
}

func (s *memoryEventStore) key(p, tx, status string) string {
	return p + "|" + tx + "|" + status
}

func (s *memoryEventStore) SaveEvent(ctx context.Context, event *model.CallbackEvent) (bool, error) {
	k := s.key(event.Provider, event.TransactionID, event.CallbackStatus)
	if _, ok := s.events[k]; ok {
		return false, nil
	}
	s.nextID++
	event.ID = s.nextID
	stored := *event
	s.events[k] = &stored
	return true, nil
}

func (s *memoryEventStore) GetEvent(ctx context.Context, p, tx, status string) (*model.CallbackEvent, error) {
	return s.events[s.key(p, tx, status)], nil
}

func (s *memoryEventStore) MarkProcessed(ctx context.Context, id int64, status model.ProcessingStatus, errMsg string) error {
	for _, e := range s.events {
		if e.ID == id {
			e.ProcessingStatus = status
			e.ProcessingCount++
			return nil
		}
	}
	return errors.New("event not found")
}

func paidEvent(verified bool) *provider.CallbackEvent {
	return &provider.CallbackEvent{
		TransactionID: "AB12-CD34-EF56",
		InvoiceID:     "446",
		RawStatus:     "PAID",
		Status:        provider.PaymentStatusPaid,
		Amount:        decimal.NewFromInt(100),
		Currency:      "CZK",
		Verified:      verified,
		ReceivedAt:    time.Now(),
	}
}

func TestCallbackIngestor_Ingest(t *testing.T) {
	tests := []struct {
		name         string
		event        *provider.CallbackEvent
		parseErr     error
		expectedKind domainErrors.Kind
		expectIgnore bool
	}{
		{
			name:  "valid paid notification",
			event: paidEvent(true),
		},
		{
			name:         "missing transaction id",
			event:        &provider.CallbackEvent{InvoiceID: "446", Status: provider.PaymentStatusPaid},
			expectedKind: domainErrors.KindMalformedCallback,
		},
		{
			name:         "missing invoice id",
			event:        &provider.CallbackEvent{TransactionID: "AB12", Status: provider.PaymentStatusPaid},
			expectedKind: domainErrors.KindMalformedCallback,
		},
		{
			name:         "signature mismatch",
			parseErr:     &provider.ProviderError{Code: provider.ErrCodeInvalidSignature, Message: "bad"},
			expectedKind: domainErrors.KindInvalidSignature,
		},
		{
			name:         "undecodable body",
			parseErr:     &provider.ProviderError{Code: provider.ErrCodeMalformed, Message: "bad json"},
			expectedKind: domainErrors.KindMalformedCallback,
		},
		{
			name:         "ignored event type",
			parseErr:     &provider.ProviderError{Code: provider.ErrCodeIgnoredEvent, Message: "customer.created"},
			expectIgnore: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := new(MockPaymentProvider)
			p.On("GetProviderName").Return("comgate")
			if tt.parseErr != nil {
				p.On("ParseCallback", mock.Anything, mock.Anything).Return(nil, tt.parseErr)
			} else {
				p.On("ParseCallback", mock.Anything, mock.Anything).Return(tt.event, nil)
			}

			ingestor := NewCallbackIngestor(&stubRegistry{provider: p}, zap.NewNop())
			result, err := ingestor.Ingest(context.Background(), "comgate", &provider.RawCallback{Source: provider.CallbackSourceWebhook})

			switch {
			case tt.expectIgnore:
				assert.ErrorIs(t, err, ErrCallbackIgnored)
			case tt.expectedKind != "":
				require.Error(t, err)
				assert.Equal(t, tt.expectedKind, domainErrors.KindOf(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, entity.CallbackStatusPaid, result.Status)
				assert.Equal(t, "AB12-CD34-EF56", result.EventID)
				assert.True(t, result.Verified)
				assert.True(t, decimal.NewFromInt(100).Equal(result.Amount))
			}
		})
	}
}

func newTestCallbackService(backend *fakeBackend, p provider.PaymentProvider, events *memoryEventStore, allowUnverified bool) *CallbackService {
	logger := zap.NewNop()
	workflow := NewPaymentWorkflowService(
		backend,
		NewPaymentMethodTable(nil, logger),
		NewCreditReconciler(backend, config.DefaultDeferredCycles(), logger),
		nil,
		nil,
		config.WorkflowConfig{AutoProvision: true},
		logger,
	)
	svc := NewCallbackService(NewCallbackIngestor(&stubRegistry{provider: p}, logger), workflow, backend, nil, allowUnverified, logger)
	if events != nil {
		svc.events = events
	}
	return svc
}

func TestCallbackService_PaidCallbackCaptures(t *testing.T) {
	backend := newFakeBackend()
	backend.addOrder("426", "446", decimal.NewFromInt(100), "CZK", entity.BillingCycleMonthly)
	events := newMemoryEventStore()

	p := new(MockPaymentProvider)
	p.On("GetProviderName").Return("comgate")
	p.On("ParseCallback", mock.Anything, mock.Anything).Return(paidEvent(true), nil)

	svc := newTestCallbackService(backend, p, events, false)
	raw := &provider.RawCallback{Source: provider.CallbackSourceWebhook, Params: url.Values{}}

	outcome, err := svc.Process(context.Background(), "comgate", raw, "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, entity.CallbackActionCaptured, outcome.Action)
	require.NotNil(t, outcome.Workflow)
	assert.Equal(t, entity.StepStatusCompleted, outcome.Workflow.Workflow.CapturePayment)
	assert.Equal(t, entity.InvoiceStatusPaid, backend.invoice("446").Status)

	// redelivery short-circuits before the backend is called again
	calls := len(backend.calls)
	again, err := svc.Process(context.Background(), "comgate", raw, "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, entity.CallbackActionDuplicate, again.Action)
	assert.Len(t, backend.calls, calls)
	assert.Len(t, backend.invoice("446").Transactions, 1)
}

func TestCallbackService_UnverifiedReturnDoesNotCapture(t *testing.T) {
	backend := newFakeBackend()
	backend.addOrder("426", "446", decimal.NewFromInt(100), "CZK", entity.BillingCycleMonthly)

	p := new(MockPaymentProvider)
	p.On("GetProviderName").Return("banktransfer")
	p.On("ParseCallback", mock.Anything, mock.Anything).Return(paidEvent(false), nil)

	outcome, err := newTestCallbackService(backend, p, nil, false).
		Process(context.Background(), "banktransfer", &provider.RawCallback{Source: provider.CallbackSourceReturn}, "")
	require.NoError(t, err)
	assert.Equal(t, entity.CallbackActionUnverified, outcome.Action)
	assert.Empty(t, backend.calls)

	// the test harness may capture unsigned returns
	outcome, err = newTestCallbackService(backend, p, nil, true).
		Process(context.Background(), "banktransfer", &provider.RawCallback{Source: provider.CallbackSourceReturn}, "")
	require.NoError(t, err)
	assert.Equal(t, entity.CallbackActionCaptured, outcome.Action)
}

func TestCallbackService_NonPaidStatusesOnlyRecorded(t *testing.T) {
	for _, status := range []provider.PaymentStatus{provider.PaymentStatusPending, provider.PaymentStatusAuthorized, provider.PaymentStatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			backend := newFakeBackend()
			backend.addOrder("426", "446", decimal.NewFromInt(100), "CZK", entity.BillingCycleMonthly)

			event := paidEvent(true)
			event.Status = status

			p := new(MockPaymentProvider)
			p.On("GetProviderName").Return("payu")
			p.On("ParseCallback", mock.Anything, mock.Anything).Return(event, nil)

			outcome, err := newTestCallbackService(backend, p, newMemoryEventStore(), false).
				Process(context.Background(), "payu", &provider.RawCallback{Source: provider.CallbackSourceWebhook}, "")
			require.NoError(t, err)
			assert.Equal(t, entity.CallbackActionRecorded, outcome.Action)
			assert.Nil(t, outcome.Workflow)
			assert.Empty(t, backend.calls)
		})
	}
}

func TestCallbackService_AmountDefaultsToInvoice(t *testing.T) {
	backend := newFakeBackend()
	backend.addOrder("426", "446", decimal.NewFromInt(100), "CZK", entity.BillingCycleMonthly)

	event := paidEvent(true)
	event.Amount = decimal.Zero
	event.Currency = ""

	p := new(MockPaymentProvider)
	p.On("GetProviderName").Return("stripe")
	p.On("ParseCallback", mock.Anything, mock.Anything).Return(event, nil)

	outcome, err := newTestCallbackService(backend, p, nil, false).
		Process(context.Background(), "stripe", &provider.RawCallback{Source: provider.CallbackSourceWebhook}, "")
	require.NoError(t, err)
	assert.Equal(t, entity.CallbackActionCaptured, outcome.Action)

	inv := backend.invoice("446")
	require.Len(t, inv.Transactions, 1)
	assert.True(t, decimal.NewFromInt(100).Equal(inv.Transactions[0].Amount))
}
