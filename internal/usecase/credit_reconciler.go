package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	domainErrors "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/errors"
	domainRepo "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreditReconciler keeps deferred Credit-Balance invoices Unpaid with zero net credit.
// Credit-Balance is only a manual-settlement marker for prepaid cycles, so the backend's
// automatic credit application must be undone.
type CreditReconciler struct {
	backend  domainRepo.BillingBackend
	deferred map[string]struct{}
	logger   *zap.Logger
}

// NewCreditReconciler creates a new reconciler for the given deferred billing cycles
func NewCreditReconciler(backend domainRepo.BillingBackend, deferredCycles []string, logger *zap.Logger) *CreditReconciler {
	deferred := make(map[string]struct{}, len(deferredCycles))
	for _, cycle := range deferredCycles {
		deferred[normalizeCycle(cycle)] = struct{}{}
	}
	return &CreditReconciler{
		backend:  backend,
		deferred: deferred,
		logger:   logger,
	}
}

// IsDeferred reports whether the billing cycle is settled manually
func (r *CreditReconciler) IsDeferred(billingCycle string) bool {
	_, ok := r.deferred[normalizeCycle(billingCycle)]
	return ok
}

// Applies reports whether reconciliation is required for the module and cycle
func (r *CreditReconciler) Applies(paymentModuleID, billingCycle string) bool {
	return paymentModuleID == entity.CreditBalanceModuleID && r.IsDeferred(billingCycle)
}

// ReconcileDeferredCredit applies a negative credit equal to the invoice's current credit
// and restores the Unpaid status. Calling it again on a reconciled invoice changes nothing.
func (r *CreditReconciler) ReconcileDeferredCredit(
	ctx context.Context,
	invoiceID string,
	amount decimal.Decimal,
	billingCycle string,
	paymentModuleID string,
) (*entity.ReconcileResult, error) {
	result := &entity.ReconcileResult{InvoiceID: invoiceID}

	if paymentModuleID != entity.CreditBalanceModuleID {
		result.SkipReason = fmt.Sprintf("payment module %q is not Credit-Balance", paymentModuleID)
		return result, nil
	}
	if !r.IsDeferred(billingCycle) {
		result.SkipReason = fmt.Sprintf("billing cycle %q settles immediately", billingCycle)
		return result, nil
	}

	invoice, err := r.backend.GetInvoiceDetails(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	result.CreditBefore = invoice.Credit
	result.CreditAfter = invoice.Credit
	result.Status = invoice.Status

	if invoice.Credit.IsPositive() {
		if !amount.IsZero() && !invoice.Credit.Equal(amount) {
			r.logger.Warn("Invoice credit differs from the payment amount",
				zap.String("invoice_id", invoiceID),
				zap.String("credit", invoice.Credit.String()),
				zap.String("amount", amount.String()))
		}

		adjustment, err := domainRepo.ApplyNegativeCredit(ctx, r.backend, invoiceID, invoice.Credit)
		if err != nil {
			r.logger.Error("Failed to apply negative credit",
				zap.String("invoice_id", invoiceID),
				zap.Error(err))
			return nil, err
		}
		result.Applied = true
		result.Adjustment = adjustment.Applied

		if invoice, err = r.backend.GetInvoiceDetails(ctx, invoiceID); err != nil {
			return nil, err
		}
		result.CreditAfter = invoice.Credit
		result.Status = invoice.Status
	} else {
		result.SkipReason = "invoice credit already zero"
	}

	// Only a real recorded payment may keep the invoice Paid
	if isPaid(invoice) && invoice.RecordedTotal().LessThan(invoice.Amount) {
		if err := r.backend.SetInvoiceStatus(ctx, invoiceID, entity.InvoiceStatusUnpaid); err != nil {
			r.logger.Error("Failed to restore Unpaid status",
				zap.String("invoice_id", invoiceID),
				zap.Error(err))
			return nil, err
		}
		result.Applied = true
		result.SkipReason = ""
		result.Status = entity.InvoiceStatusUnpaid
	}

	r.logger.Info("Deferred credit reconciled",
		zap.String("invoice_id", invoiceID),
		zap.Bool("applied", result.Applied),
		zap.String("credit_before", result.CreditBefore.String()),
		zap.String("credit_after", result.CreditAfter.String()),
		zap.String("status", string(result.Status)))

	return result, nil
}

// ReconcileInvoice resolves module and billing cycle from the backend records and
// reconciles. orderID may be empty when the invoice carries its order id.
func (r *CreditReconciler) ReconcileInvoice(ctx context.Context, invoiceID, orderID string) (*entity.ReconcileResult, error) {
	if invoiceID == "" {
		return nil, domainErrors.NewInvalidRequestError("invoice.reconcile", "invoice id is required")
	}

	invoice, err := r.backend.GetInvoiceDetails(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if orderID == "" {
		orderID = invoice.OrderID
	}
	if orderID == "" {
		return nil, domainErrors.NewInvalidRequestError("invoice.reconcile", "order id is required to resolve the billing cycle")
	}

	order, err := r.backend.GetOrderDetails(ctx, orderID)
	if err != nil {
		return nil, err
	}

	module := invoice.PaymentModuleID
	if module == "" {
		module = order.PaymentModuleID
	}

	return r.ReconcileDeferredCredit(ctx, invoiceID, invoice.Amount, order.BillingCycle(), module)
}

func normalizeCycle(cycle string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(cycle), " ", ""))
}
