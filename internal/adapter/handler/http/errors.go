package http

import (
	"net/http"

	domainErrors "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/errors"
	apperrors "github.com/Traderpoint/CloudVPS-2-sub003/pkg/errors"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// respondError writes a domain or application error as {"error", "code"} with the HTTP
// status mapped from its pkg/errors code.
func respondError(c echo.Context, logger *zap.Logger, err error, msg string) error {
	apperrors.LogError(logger, err, msg,
		zap.String("path", c.Path()),
		zap.String("method", c.Request().Method))

	code := apperrors.CodeOf(err)
	kind := string(domainErrors.KindOf(err))
	if kind == "" {
		kind = code
	}
	return c.JSON(apperrors.ToHTTPStatus(code), echo.Map{
		"error": err.Error(),
		"code":  kind,
	})
}

// badRequest is used for bodies that could not be bound or validated
func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{
		"error": message,
		"code":  apperrors.ErrInvalidArgument,
	})
}
