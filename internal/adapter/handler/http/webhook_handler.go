package http

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/provider"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// maxCallbackBody bounds how much of a notification body is read
const maxCallbackBody = 1 << 20

// CallbackProcessor turns a raw provider callback into a workflow run
type CallbackProcessor interface {
	Process(ctx context.Context, providerName string, raw *provider.RawCallback, remoteAddr string) (*entity.CallbackOutcome, error)
}

// WebhookHandler receives asynchronous notifications and browser returns
type WebhookHandler struct {
	callbacks     CallbackProcessor
	storefrontURL string
	logger        *zap.Logger
}

func NewWebhookHandler(callbacks CallbackProcessor, storefrontURL string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		callbacks:     callbacks,
		storefrontURL: storefrontURL,
		logger:        logger,
	}
}

// HandleWebhook handles POST /webhook/:provider
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	providerName := c.Param("provider")

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxCallbackBody))
	if err != nil {
		h.logger.Error("Failed to read webhook body",
			zap.String("provider", providerName),
			zap.Error(err))
		return badRequest(c, "Failed to read request body")
	}

	raw := &provider.RawCallback{
		Source:  provider.CallbackSourceWebhook,
		Params:  c.QueryParams(),
		Body:    body,
		Headers: c.Request().Header.Clone(),
	}

	outcome, err := h.callbacks.Process(c.Request().Context(), providerName, raw, c.RealIP())
	if err != nil {
		return respondError(c, h.logger, err, "Failed to process webhook")
	}

	h.logger.Info("Webhook processed",
		zap.String("provider", providerName),
		zap.String("action", string(outcome.Action)))

	// Comgate expects a form-encoded acknowledgement
	if providerName == "comgate" {
		return c.String(http.StatusOK, "code=0&message=OK")
	}
	return c.JSON(http.StatusOK, outcome)
}

// HandleReturn handles GET /payments/return/:provider. The customer is always sent back
// to the storefront; the outcome travels as query parameters.
func (h *WebhookHandler) HandleReturn(c echo.Context) error {
	providerName := c.Param("provider")
	params := c.QueryParams()

	raw := &provider.RawCallback{
		Source:  provider.CallbackSourceReturn,
		Params:  params,
		Headers: c.Request().Header.Clone(),
	}

	redirect := url.Values{}
	outcome, err := h.callbacks.Process(c.Request().Context(), providerName, raw, c.RealIP())
	if err != nil {
		h.logger.Warn("Browser return could not be processed",
			zap.String("provider", providerName),
			zap.Error(err))
		redirect.Set("status", "error")
	} else {
		redirect.Set("status", string(outcome.Action))
		if outcome.Callback != nil {
			redirect.Set("invoiceId", outcome.Callback.InvoiceID)
			redirect.Set("transactionId", outcome.Callback.TransactionID)
		}
	}

	return c.Redirect(http.StatusFound, h.returnURL(redirect))
}

func (h *WebhookHandler) returnURL(q url.Values) string {
	target := h.storefrontURL
	if target == "" {
		target = "/"
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + q.Encode()
}
