package http

import (
	"context"
	"net/http"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type InvoiceStatusReader interface {
	GetStatus(ctx context.Context, invoiceID string) (*entity.InvoiceStatusView, error)
}

type CreditReconciler interface {
	ReconcileInvoice(ctx context.Context, invoiceID, orderID string) (*entity.ReconcileResult, error)
}

type OrderProvisioner interface {
	ProvisionOrder(ctx context.Context, orderID string) (*entity.ProvisioningResult, error)
}

// InvoiceHandler serves invoice status, credit reconciliation and provisioning retries
type InvoiceHandler struct {
	status     InvoiceStatusReader
	reconciler CreditReconciler
	provisions OrderProvisioner
	logger     *zap.Logger
}

func NewInvoiceHandler(status InvoiceStatusReader, reconciler CreditReconciler, provisions OrderProvisioner, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		status:     status,
		reconciler: reconciler,
		provisions: provisions,
		logger:     logger,
	}
}

// GetStatus handles GET /api/v1/invoices/:id/status
func (h *InvoiceHandler) GetStatus(c echo.Context) error {
	view, err := h.status.GetStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to get invoice status")
	}
	return c.JSON(http.StatusOK, view)
}

type reconcileCreditRequest struct {
	OrderID entity.ExternalID `json:"orderId"`
}

// ReconcileCredit handles POST /api/v1/invoices/:id/reconcile-credit
func (h *InvoiceHandler) ReconcileCredit(c echo.Context) error {
	var req reconcileCreditRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	result, err := h.reconciler.ReconcileInvoice(c.Request().Context(), c.Param("id"), string(req.OrderID))
	if err != nil {
		return respondError(c, h.logger, err, "Credit reconciliation failed")
	}
	return c.JSON(http.StatusOK, result)
}

// ProvisionOrder handles POST /api/v1/orders/:id/provision
func (h *InvoiceHandler) ProvisionOrder(c echo.Context) error {
	result, err := h.provisions.ProvisionOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		if result != nil {
			h.logger.Warn("Provisioning retry failed",
				zap.String("order_id", result.OrderID),
				zap.Error(err))
			return c.JSON(http.StatusBadGateway, result)
		}
		return respondError(c, h.logger, err, "Provisioning retry rejected")
	}
	return c.JSON(http.StatusOK, result)
}
