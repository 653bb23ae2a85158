package http

import (
	"context"
	"fmt"

	handlers "github.com/Traderpoint/CloudVPS-2-sub003/internal/adapter/handler/http"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/config"
	"github.com/Traderpoint/CloudVPS-2-sub003/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Handlers groups the HTTP handlers mounted by the server
type Handlers struct {
	Payment *handlers.PaymentHandler
	Invoice *handlers.InvoiceHandler
	Webhook *handlers.WebhookHandler
}

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	handlers Handlers
}

func NewServer(cfg *config.Config, log *zap.Logger, h Handlers) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	withLogging(e, log.Named("http"))
	e.Use(middleware.Recover())
	if cfg.Service.StorefrontURL != "" {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: []string{cfg.Service.StorefrontURL},
			AllowMethods: []string{echo.GET, echo.POST},
		}))
	}

	s := &Server{
		config:   cfg,
		logger:   log,
		echo:     e,
		handlers: h,
	}
	s.setupRoutes()
	return s
}

func withLogging(e *echo.Echo, l *zap.Logger) {
	logger.WithEchoLogger(e, l)
	e.Use(logger.NewEchoRequestLogger(l))
}

// Echo exposes the router for tests
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", handlers.Health(s.config.Service.Name, s.config.Service.Version))

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	payments := v1.Group("/payments")
	payments.POST("/checkout", s.handlers.Payment.Checkout)
	payments.POST("/process", s.handlers.Payment.Process)
	payments.POST("/capture", s.handlers.Payment.Capture)

	v1.POST("/orders/:id/provision", s.handlers.Invoice.ProvisionOrder)

	invoices := v1.Group("/invoices")
	invoices.GET("/:id/status", s.handlers.Invoice.GetStatus)
	invoices.POST("/:id/reconcile-credit", s.handlers.Invoice.ReconcileCredit)

	// Provider callbacks (outside API versioning)
	s.echo.POST("/webhook/:provider", s.handlers.Webhook.HandleWebhook)
	s.echo.GET("/payments/return/:provider", s.handlers.Webhook.HandleReturn)
	// PayU and the test harness may also post the return form
	s.echo.POST("/payments/return/:provider", s.handlers.Webhook.HandleReturn)
}
