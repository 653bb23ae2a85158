package usecase

import (
	"context"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	domainErrors "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/errors"
	domainRepo "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/repository"
	"go.uber.org/zap"
)

// InvoiceStatusService is a read-only projection over the billing backend
type InvoiceStatusService struct {
	backend domainRepo.BillingBackend
	logger  *zap.Logger
}

// NewInvoiceStatusService creates a new invoice status service
func NewInvoiceStatusService(backend domainRepo.BillingBackend, logger *zap.Logger) *InvoiceStatusService {
	return &InvoiceStatusService{
		backend: backend,
		logger:  logger,
	}
}

// GetStatus returns the settlement state of an invoice
func (s *InvoiceStatusService) GetStatus(ctx context.Context, invoiceID string) (*entity.InvoiceStatusView, error) {
	if invoiceID == "" {
		return nil, domainErrors.NewInvalidRequestError("invoice.status", "invoice id is required")
	}

	invoice, err := s.backend.GetInvoiceDetails(ctx, invoiceID)
	if err != nil {
		s.logger.Warn("Failed to read invoice status",
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
		return nil, err
	}

	return NewInvoiceStatusView(invoice), nil
}

// NewInvoiceStatusView projects an invoice onto the storefront view
func NewInvoiceStatusView(invoice *entity.Invoice) *entity.InvoiceStatusView {
	return &entity.InvoiceStatusView{
		InvoiceID: invoice.ID,
		Status:    invoice.Status,
		IsPaid:    isPaid(invoice),
		Amount:    invoice.Amount,
		Currency:  invoice.Currency,
		DatePaid:  invoice.PaidAt,
	}
}

// isPaid is the only place settlement is decided. Credit is deliberately ignored:
// a deferred Credit-Balance invoice may carry credit while staying Unpaid.
func isPaid(invoice *entity.Invoice) bool {
	return invoice != nil && invoice.Status == entity.InvoiceStatusPaid
}
