package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health handles GET /health
func Health(service, version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": service,
			"version": version,
		})
	}
}
