package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/config"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	domainErrors "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/errors"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/model"
	domainRepo "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentWorkflowService drives authorize, capture and provision against the billing
// backend. Step state is never stored; every run recomputes it from backend responses.
type PaymentWorkflowService struct {
	backend    domainRepo.BillingBackend
	methods    *PaymentMethodTable
	reconciler *CreditReconciler
	exporter   domainRepo.AccountingExporter
	auditLogs  domainRepo.AuditLogRepository
	cfg        config.WorkflowConfig
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewPaymentWorkflowService creates a new workflow service. exporter and auditLogs may be nil.
func NewPaymentWorkflowService(
	backend domainRepo.BillingBackend,
	methods *PaymentMethodTable,
	reconciler *CreditReconciler,
	exporter domainRepo.AccountingExporter,
	auditLogs domainRepo.AuditLogRepository,
	cfg config.WorkflowConfig,
	logger *zap.Logger,
) *PaymentWorkflowService {
	return &PaymentWorkflowService{
		backend:    backend,
		methods:    methods,
		reconciler: reconciler,
		exporter:   exporter,
		auditLogs:  auditLogs,
		cfg:        cfg,
		validate:   validator.New(),
		logger:     logger,
	}
}

// workflowRun holds the per-invocation state of Run
type workflowRun struct {
	req       entity.WorkflowRequest
	selection entity.PaymentSelection
	order     *entity.Order
	result    *entity.WorkflowResult
	logger    *zap.Logger
}

func (r *workflowRun) nextStep(format string, args ...interface{}) {
	r.result.NextSteps = append(r.result.NextSteps, fmt.Sprintf(format, args...))
}

// Run executes one authorize-capture-provision attempt. The returned error is non-nil only
// for an invalid request; step failures are reported inside the result.
func (s *PaymentWorkflowService) Run(ctx context.Context, req entity.WorkflowRequest) (*entity.WorkflowResult, error) {
	started := time.Now()

	selection := s.methods.Normalize(req.PaymentMethod)
	if err := s.validateRequest(req, selection); err != nil {
		return nil, err
	}

	runID := uuid.New()
	run := &workflowRun{
		req:       req,
		selection: selection,
		result: &entity.WorkflowResult{
			RunID:         runID.String(),
			TransactionID: req.TransactionID,
			Workflow:      entity.NewWorkflowState(),
			NextSteps:     []string{},
		},
		logger: s.logger.With(
			zap.String("run_id", runID.String()),
			zap.String("order_id", req.OrderID),
			zap.String("invoice_id", req.InvoiceID),
			zap.String("transaction_id", req.TransactionID)),
	}

	run.logger.Info("Payment workflow started",
		zap.String("payment_method", run.selection.Token),
		zap.String("payment_module_id", run.selection.PaymentModuleID),
		zap.Bool("skip_authorize", req.SkipAuthorize),
		zap.String("amount", req.Amount.String()))

	s.execute(ctx, run)

	run.logger.Info("Payment workflow finished",
		zap.Bool("success", run.result.Success),
		zap.String("authorize", string(run.result.Workflow.AuthorizePayment)),
		zap.String("capture", string(run.result.Workflow.CapturePayment)),
		zap.String("provision", string(run.result.Workflow.Provision)),
		zap.Duration("duration", time.Since(started)))

	s.writeAuditLog(ctx, runID, run, time.Since(started))

	return run.result, nil
}

func (s *PaymentWorkflowService) validateRequest(req entity.WorkflowRequest, sel entity.PaymentSelection) error {
	if err := s.validate.Struct(req); err != nil {
		return domainErrors.NewInvalidRequestError("workflow.run", err.Error())
	}
	if !req.Amount.IsPositive() {
		return domainErrors.NewInvalidRequestError("workflow.run", "amount must be positive")
	}
	// Credit-Balance may run without a transaction id on deferred cycles, decided later
	if req.TransactionID == "" && !sel.IsCreditBalance() {
		return domainErrors.NewInvalidRequestError("workflow.run", "transaction id is required")
	}
	return nil
}

func (s *PaymentWorkflowService) execute(ctx context.Context, run *workflowRun) {
	result := run.result
	deferred := false

	// Credit-Balance needs the billing cycle to decide between capture and reconciliation
	if run.selection.IsCreditBalance() {
		order, err := s.backend.GetOrderDetails(ctx, run.req.OrderID)
		if err != nil {
			run.logger.Error("Failed to load order for Credit-Balance payment", zap.Error(err))
			result.Message = "Could not load the order from the billing backend: " + err.Error()
			run.nextStep("Retry the payment once the billing backend is reachable")
			return
		}
		run.order = order
		deferred = s.reconciler.Applies(run.selection.PaymentModuleID, order.BillingCycle())
	}

	if !deferred && run.req.TransactionID == "" {
		result.Message = "A transaction id is required to capture the payment"
		result.Details.Capture = &entity.StepDetail{
			Status: entity.StepStatusFailed,
			Error:  "missing transaction id",
		}
		result.Workflow.CapturePayment = entity.StepStatusFailed
		run.nextStep("Resubmit with the transaction id issued by the payment provider")
		return
	}

	s.authorize(ctx, run)
	if !result.Workflow.AuthorizeSatisfied() {
		result.Message = "Payment authorization failed"
		run.nextStep("Check details.authorize for the billing backend error")
		run.nextStep("Retry capture manually with skipAuthorize=true once the order is active")
		return
	}

	if deferred {
		s.reconcileDeferred(ctx, run)
		return
	}

	s.capture(ctx, run)
	if result.Workflow.CapturePayment != entity.StepStatusCompleted {
		result.Message = "Payment capture failed"
		run.nextStep("Retry capture manually with the same transaction id %s", run.req.TransactionID)
		return
	}

	// Payment has been taken; nothing after this point can fail the run
	result.Success = true
	s.provision(ctx, run)
	if result.Details.Capture.Method == entity.StepMethodAlreadyRecorded {
		result.Accounting = &entity.AccountingOutcome{
			Status:  entity.AccountingStatusSkipped,
			Message: "transaction was exported when first captured",
		}
	} else {
		s.export(ctx, run)
	}

	switch result.Workflow.Provision {
	case entity.StepStatusCompleted:
		result.Message = "Payment captured and services provisioned"
	case entity.StepStatusFailed:
		result.Message = "Payment captured; provisioning failed"
	default:
		result.Message = "Payment captured; provisioning is ready to run"
	}
}

func (s *PaymentWorkflowService) authorize(ctx context.Context, run *workflowRun) {
	result := run.result
	if run.req.SkipAuthorize {
		result.Workflow.AuthorizePayment = entity.StepStatusSkipped
		result.Details.Authorize = &entity.StepDetail{
			Status:  entity.StepStatusSkipped,
			Message: "capture-only mode",
		}
		return
	}

	detail := &entity.StepDetail{}
	result.Details.Authorize = detail

	gatewayResult, err := s.backend.AuthorizeViaGateway(ctx, run.req.OrderID, run.req.InvoiceID, run.req.TransactionID, run.req.Amount)
	detail.Attempts = append(detail.Attempts, attempt(entity.StepMethodGateway, err))
	if err == nil {
		detail.Status = entity.StepStatusCompleted
		detail.Method = entity.StepMethodGateway
		detail.BalanceState = gatewayResult.BalanceState
		detail.Message = gatewayResult.Message
		result.Workflow.AuthorizePayment = entity.StepStatusCompleted
		if strings.EqualFold(gatewayResult.BalanceState, "Authorized") {
			run.logger.Info("Gateway reported Authorized balance state")
		}
		return
	}

	if !domainErrors.IsGatewayLoadFailure(err) {
		run.logger.Warn("Gateway authorization failed", zap.Error(err))
		s.failStep(detail, err)
		result.Workflow.AuthorizePayment = entity.StepStatusFailed
		return
	}

	run.logger.Warn("Gateway module failed to load, activating order directly", zap.Error(err))
	bypassErr := s.backend.SetOrderActive(ctx, run.req.OrderID)
	detail.Attempts = append(detail.Attempts, attempt(entity.StepMethodDirectBypass, bypassErr))
	if bypassErr != nil {
		run.logger.Error("Direct order activation failed", zap.Error(bypassErr))
		s.failStep(detail, bypassErr)
		result.Workflow.AuthorizePayment = entity.StepStatusFailed
		return
	}

	detail.Status = entity.StepStatusCompleted
	detail.Method = entity.StepMethodDirectBypass
	detail.Message = "order activated directly after gateway load failure"
	result.Workflow.AuthorizePayment = entity.StepStatusCompleted
}

func (s *PaymentWorkflowService) capture(ctx context.Context, run *workflowRun) {
	result := run.result
	detail := &entity.StepDetail{}
	result.Details.Capture = detail

	invoice, err := s.backend.GetInvoiceDetails(ctx, run.req.InvoiceID)
	if err != nil {
		// The backend still deduplicates by transaction id
		run.logger.Warn("Idempotency pre-check failed, continuing with capture", zap.Error(err))
	} else if invoice.HasTransaction(run.req.TransactionID) {
		detail.Status = entity.StepStatusCompleted
		detail.Method = entity.StepMethodAlreadyRecorded
		detail.InvoiceStatus = invoice.Status
		detail.Message = "transaction already recorded on the invoice"
		result.Workflow.CapturePayment = entity.StepStatusCompleted
		if !isPaid(invoice) {
			detail.ReconciliationWarning = fmt.Sprintf("invoice status is %s after capture", invoice.Status)
		}
		return
	}

	gatewayResult, err := s.backend.CaptureViaGateway(ctx, run.req.InvoiceID, run.req.TransactionID, run.req.Amount)
	detail.Attempts = append(detail.Attempts, attempt(entity.StepMethodGateway, err))
	switch {
	case err == nil:
		detail.Method = entity.StepMethodGateway
		detail.BalanceState = gatewayResult.BalanceState
		detail.Message = gatewayResult.Message

	case domainErrors.IsGatewayLoadFailure(err):
		run.logger.Warn("Gateway module failed to load, recording payment directly", zap.Error(err))
		entry, bypassErr := s.backend.AddInvoicePayment(ctx, domainRepo.PaymentEntry{
			InvoiceID:     run.req.InvoiceID,
			Amount:        run.req.Amount,
			ModuleLabel:   s.moduleLabel(run.selection),
			TransactionID: run.req.TransactionID,
			Note:          s.paymentNote(run.req),
		})
		detail.Attempts = append(detail.Attempts, attempt(entity.StepMethodDirectBypass, bypassErr))
		if bypassErr != nil {
			run.logger.Error("Direct payment entry failed", zap.Error(bypassErr))
			s.failStep(detail, bypassErr)
			result.Workflow.CapturePayment = entity.StepStatusFailed
			return
		}
		detail.Method = entity.StepMethodDirectBypass
		if entry.Duplicate {
			detail.Message = "billing backend already had this transaction"
		} else {
			detail.Message = "payment recorded directly after gateway load failure"
		}

	default:
		run.logger.Warn("Gateway capture failed", zap.Error(err))
		s.failStep(detail, err)
		result.Workflow.CapturePayment = entity.StepStatusFailed
		return
	}

	detail.Status = entity.StepStatusCompleted
	result.Workflow.CapturePayment = entity.StepStatusCompleted

	confirmed, err := s.backend.GetInvoiceDetails(ctx, run.req.InvoiceID)
	if err != nil {
		detail.ReconciliationWarning = "could not confirm invoice status: " + err.Error()
		return
	}
	detail.InvoiceStatus = confirmed.Status
	if !isPaid(confirmed) {
		detail.ReconciliationWarning = fmt.Sprintf("invoice status is %s after capture", confirmed.Status)
		run.logger.Warn("Invoice not Paid after capture",
			zap.String("status", string(confirmed.Status)),
			zap.String("recorded_total", confirmed.RecordedTotal().String()),
			zap.String("invoice_amount", confirmed.Amount.String()))
	}
}

func (s *PaymentWorkflowService) reconcileDeferred(ctx context.Context, run *workflowRun) {
	result := run.result
	result.Workflow.CapturePayment = entity.StepStatusSkipped
	result.Details.Capture = &entity.StepDetail{
		Status:  entity.StepStatusSkipped,
		Method:  entity.StepMethodReconciliation,
		Message: fmt.Sprintf("Credit-Balance on a %s cycle is settled manually", run.order.BillingCycle()),
	}

	reconciled, err := s.reconciler.ReconcileDeferredCredit(ctx, run.req.InvoiceID, run.req.Amount, run.order.BillingCycle(), run.selection.PaymentModuleID)
	if err != nil {
		result.Details.Capture.Error = err.Error()
		result.Message = "Deferred credit reconciliation failed"
		run.nextStep("Retry credit reconciliation for invoice %s", run.req.InvoiceID)
		return
	}

	result.Details.Reconciliation = reconciled
	result.Success = true
	result.Message = "Invoice left Unpaid for manual settlement"
	run.nextStep("Settle invoice %s manually, then trigger provisioning for order %s", run.req.InvoiceID, run.req.OrderID)
}

func (s *PaymentWorkflowService) provision(ctx context.Context, run *workflowRun) {
	result := run.result
	if !s.cfg.AutoProvision {
		result.Workflow.Provision = entity.StepStatusReady
		result.Details.Provision = &entity.StepDetail{
			Status:  entity.StepStatusReady,
			Message: "automatic provisioning disabled",
		}
		run.nextStep("Trigger provisioning for order %s", run.req.OrderID)
		return
	}

	detail := &entity.StepDetail{Method: entity.StepMethodProvisioning}
	result.Details.Provision = detail

	outcome, err := s.backend.RunProvisioningHooks(ctx, run.req.OrderID)
	detail.Attempts = append(detail.Attempts, attempt(entity.StepMethodProvisioning, err))
	if err != nil {
		provErr := domainErrors.NewProvisioningFailedError(run.req.OrderID, err)
		run.logger.Warn("Provisioning failed after capture", zap.Error(provErr))
		s.failStep(detail, provErr)
		result.Workflow.Provision = entity.StepStatusFailed
		run.nextStep("Retry provisioning for order %s", run.req.OrderID)
		return
	}

	detail.Status = entity.StepStatusCompleted
	detail.Message = outcome.Message
	result.Workflow.Provision = entity.StepStatusCompleted
}

func (s *PaymentWorkflowService) export(ctx context.Context, run *workflowRun) {
	if s.exporter == nil {
		return
	}
	record := entity.AccountingRecord{
		RunID:         run.result.RunID,
		OrderID:       run.req.OrderID,
		InvoiceID:     run.req.InvoiceID,
		TransactionID: run.req.TransactionID,
		PaymentMethod: run.selection.Token,
		Amount:        run.req.Amount,
		Currency:      run.req.Currency,
	}
	if run.order != nil {
		record.ClientID = run.order.ClientID
		record.Items = run.order.Items
	}
	outcome := s.exporter.Export(ctx, record)
	run.result.Accounting = &outcome
}

func (s *PaymentWorkflowService) failStep(detail *entity.StepDetail, err error) {
	detail.Status = entity.StepStatusFailed
	detail.Error = err.Error()
}

func (s *PaymentWorkflowService) moduleLabel(sel entity.PaymentSelection) string {
	if sel.IsCreditBalance() && s.cfg.ModuleLabel != "" {
		return s.cfg.ModuleLabel
	}
	if sel.Token != "" {
		return sel.Token
	}
	return sel.GatewayID
}

func (s *PaymentWorkflowService) paymentNote(req entity.WorkflowRequest) string {
	if req.Notes != "" {
		return req.Notes
	}
	return fmt.Sprintf("Recorded by payment workflow for order %s", req.OrderID)
}

func (s *PaymentWorkflowService) writeAuditLog(ctx context.Context, runID uuid.UUID, run *workflowRun, elapsed time.Duration) {
	if s.auditLogs == nil {
		return
	}
	entry := &model.WorkflowAuditLog{
		RunID:         runID,
		Action:        "payment.workflow",
		OrderID:       run.req.OrderID,
		InvoiceID:     run.req.InvoiceID,
		TransactionID: run.req.TransactionID,
		PaymentMethod: run.selection.Token,
		Success:       run.result.Success,
		Authorize:     string(run.result.Workflow.AuthorizePayment),
		Capture:       string(run.result.Workflow.CapturePayment),
		Provision:     string(run.result.Workflow.Provision),
		Request:       model.ToJSONB(run.req),
		Result:        model.ToJSONB(run.result),
		DurationMs:    elapsed.Milliseconds(),
	}
	if err := s.auditLogs.Create(ctx, entry); err != nil {
		run.logger.Warn("Failed to write workflow audit log", zap.Error(err))
	}
}

func attempt(method entity.StepMethod, err error) entity.StepAttempt {
	a := entity.StepAttempt{Method: method, Success: err == nil}
	if err != nil {
		a.Error = err.Error()
		a.ErrorKind = string(domainErrors.KindOf(err))
	}
	return a
}
