package http

import (
	"context"
	"net/http"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CheckoutStarter opens gateway sessions for storefront checkouts
type CheckoutStarter interface {
	Checkout(ctx context.Context, req entity.CheckoutRequest) (*entity.CheckoutResult, error)
}

// WorkflowRunner runs the authorize-capture-provision workflow
type WorkflowRunner interface {
	Run(ctx context.Context, req entity.WorkflowRequest) (*entity.WorkflowResult, error)
}

type PaymentHandler struct {
	checkout  CheckoutStarter
	workflow  WorkflowRunner
	validator *validator.Validate
	logger    *zap.Logger
}

func NewPaymentHandler(checkout CheckoutStarter, workflow WorkflowRunner, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		checkout:  checkout,
		workflow:  workflow,
		validator: validator.New(),
		logger:    logger,
	}
}

// Checkout handles POST /api/v1/payments/checkout
func (h *PaymentHandler) Checkout(c echo.Context) error {
	var req entity.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	req.CustomerIP = c.RealIP()

	result, err := h.checkout.Checkout(c.Request().Context(), req)
	if err != nil {
		return respondError(c, h.logger, err, "Checkout failed")
	}

	h.logger.Info("Checkout session created",
		zap.String("order_id", result.OrderID),
		zap.String("invoice_id", result.InvoiceID),
		zap.String("provider", result.Session.Provider),
		zap.String("transaction_id", result.Session.TransactionID))

	return c.JSON(http.StatusCreated, result)
}

// Process handles POST /api/v1/payments/process
func (h *PaymentHandler) Process(c echo.Context) error {
	var req entity.WorkflowRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	return h.run(c, req)
}

// Capture handles POST /api/v1/payments/capture. It is the manual capture retry and
// never runs authorization.
func (h *PaymentHandler) Capture(c echo.Context) error {
	var req entity.WorkflowRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.SkipAuthorize = true
	return h.run(c, req)
}

func (h *PaymentHandler) run(c echo.Context, req entity.WorkflowRequest) error {
	result, err := h.workflow.Run(c.Request().Context(), req)
	if err != nil {
		return respondError(c, h.logger, err, "Payment workflow rejected")
	}
	// a failed step is reported in the body; the call itself succeeded
	return c.JSON(http.StatusOK, result)
}
