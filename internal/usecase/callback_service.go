package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	domainErrors "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/errors"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/model"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/provider"
	domainRepo "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/repository"
	"go.uber.org/zap"
)

// WorkflowRunner runs the authorize-capture-provision workflow
type WorkflowRunner interface {
	Run(ctx context.Context, req entity.WorkflowRequest) (*entity.WorkflowResult, error)
}

// CallbackService turns ingested callbacks into workflow runs
type CallbackService struct {
	ingestor *CallbackIngestor
	workflow WorkflowRunner
	backend  domainRepo.BillingBackend
	events   domainRepo.CallbackEventRepository
	// allowUnverified lets unsigned returns capture; only for the test harness
	allowUnverified bool
	logger          *zap.Logger
}

// NewCallbackService creates a new callback service. events may be nil.
func NewCallbackService(
	ingestor *CallbackIngestor,
	workflow WorkflowRunner,
	backend domainRepo.BillingBackend,
	events domainRepo.CallbackEventRepository,
	allowUnverified bool,
	logger *zap.Logger,
) *CallbackService {
	return &CallbackService{
		ingestor:        ingestor,
		workflow:        workflow,
		backend:         backend,
		events:          events,
		allowUnverified: allowUnverified,
		logger:          logger,
	}
}

// Process ingests a callback and, for a paid status, runs the workflow. Redeliveries of an
// event that was already processed are answered without touching the backend.
func (s *CallbackService) Process(ctx context.Context, providerName string, raw *provider.RawCallback, remoteAddr string) (*entity.CallbackOutcome, error) {
	cb, err := s.ingestor.Ingest(ctx, providerName, raw)
	if err != nil {
		if errors.Is(err, ErrCallbackIgnored) {
			return &entity.CallbackOutcome{Action: entity.CallbackActionIgnored}, nil
		}
		return nil, err
	}

	outcome := &entity.CallbackOutcome{Callback: cb}

	eventID, duplicate := s.recordEvent(ctx, cb, raw, remoteAddr)
	if duplicate {
		s.logger.Info("Callback already processed",
			zap.String("provider", cb.Provider),
			zap.String("transaction_id", cb.TransactionID),
			zap.String("status", string(cb.Status)))
		outcome.Action = entity.CallbackActionDuplicate
		return outcome, nil
	}

	switch cb.Status {
	case entity.CallbackStatusPaid:
		if !cb.Verified && !s.allowUnverified {
			s.logger.Warn("Unverified paid callback not captured",
				zap.String("provider", cb.Provider),
				zap.String("transaction_id", cb.TransactionID))
			outcome.Action = entity.CallbackActionUnverified
			s.markProcessed(ctx, eventID, model.ProcessingStatusIgnored, "unverified return")
			return outcome, nil
		}

	case entity.CallbackStatusAuthorized:
		// Capture follows with a later paid notification
		outcome.Action = entity.CallbackActionRecorded
		s.markProcessed(ctx, eventID, model.ProcessingStatusCompleted, "")
		return outcome, nil

	default:
		outcome.Action = entity.CallbackActionRecorded
		s.markProcessed(ctx, eventID, model.ProcessingStatusIgnored, "")
		return outcome, nil
	}

	req, err := s.workflowRequest(ctx, cb)
	if err != nil {
		s.markProcessed(ctx, eventID, model.ProcessingStatusFailed, err.Error())
		return nil, err
	}

	result, err := s.workflow.Run(ctx, req)
	if err != nil {
		s.markProcessed(ctx, eventID, model.ProcessingStatusFailed, err.Error())
		return nil, err
	}

	outcome.Workflow = result
	if result.Success {
		outcome.Action = entity.CallbackActionCaptured
		s.markProcessed(ctx, eventID, model.ProcessingStatusCompleted, "")
	} else {
		outcome.Action = entity.CallbackActionCaptureFailed
		s.markProcessed(ctx, eventID, model.ProcessingStatusFailed, result.Message)
	}
	return outcome, nil
}

// workflowRequest fills the order id and, when the provider sent none, the amount and
// currency from the invoice.
func (s *CallbackService) workflowRequest(ctx context.Context, cb *entity.CallbackResult) (entity.WorkflowRequest, error) {
	req := entity.WorkflowRequest{
		OrderID:       cb.OrderID,
		InvoiceID:     cb.InvoiceID,
		TransactionID: cb.TransactionID,
		Amount:        cb.Amount,
		Currency:      cb.Currency,
		PaymentMethod: cb.Provider,
		Notes:         "Captured from " + cb.Provider + " callback",
	}

	invoice, err := s.backend.GetInvoiceDetails(ctx, cb.InvoiceID)
	if err != nil {
		return req, err
	}
	if req.OrderID == "" {
		req.OrderID = invoice.OrderID
	}
	if req.OrderID == "" {
		return req, domainErrors.NewMalformedCallbackError(cb.Provider, "order for invoice "+cb.InvoiceID+" could not be resolved")
	}
	if req.Amount.IsZero() {
		req.Amount = invoice.Amount
	} else if !req.Amount.Equal(invoice.Amount) {
		s.logger.Warn("Callback amount differs from invoice amount",
			zap.String("invoice_id", cb.InvoiceID),
			zap.String("callback_amount", req.Amount.String()),
			zap.String("invoice_amount", invoice.Amount.String()))
	}
	if req.Currency == "" {
		req.Currency = invoice.Currency
	}
	return req, nil
}

// recordEvent stores the callback. It returns the row id (0 without a store) and whether
// an earlier delivery of the same event finished processing.
func (s *CallbackService) recordEvent(ctx context.Context, cb *entity.CallbackResult, raw *provider.RawCallback, remoteAddr string) (int64, bool) {
	if s.events == nil {
		return 0, false
	}

	event := &model.CallbackEvent{
		Provider:         cb.Provider,
		TransactionID:    cb.TransactionID,
		CallbackStatus:   string(cb.Status),
		EventID:          &cb.EventID,
		Source:           string(raw.Source),
		InvoiceID:        cb.InvoiceID,
		Amount:           cb.Amount.String(),
		Currency:         cb.Currency,
		ProcessingStatus: model.ProcessingStatusProcessing,
		EventData:        model.ToJSONB(cb),
	}
	if remoteAddr != "" {
		event.RemoteAddr = &remoteAddr
	}

	created, err := s.events.SaveEvent(ctx, event)
	if err != nil {
		// The store is an optimization; the backend still deduplicates captures
		s.logger.Warn("Failed to store callback event", zap.Error(err))
		return 0, false
	}
	if created {
		return event.ID, false
	}

	existing, err := s.events.GetEvent(ctx, cb.Provider, cb.TransactionID, string(cb.Status))
	if err != nil || existing == nil {
		return 0, false
	}
	switch existing.ProcessingStatus {
	case model.ProcessingStatusCompleted, model.ProcessingStatusIgnored:
		return existing.ID, true
	}
	return existing.ID, false
}

func (s *CallbackService) markProcessed(ctx context.Context, id int64, status model.ProcessingStatus, errMsg string) {
	if s.events == nil || id == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.events.MarkProcessed(ctx, id, status, errMsg); err != nil {
		s.logger.Warn("Failed to update callback event",
			zap.Int64("event_id", id),
			zap.Error(err))
	}
}
