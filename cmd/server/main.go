package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "github.com/Traderpoint/CloudVPS-2-sub003/internal/adapter/handler/http"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/adapter/repository"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/config"
	domainRepo "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/repository"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/infrastructure/accounting"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/infrastructure/database"
	grpcServer "github.com/Traderpoint/CloudVPS-2-sub003/internal/infrastructure/grpc"
	httpServer "github.com/Traderpoint/CloudVPS-2-sub003/internal/infrastructure/http"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/infrastructure/provider"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/usecase"
	pkglogger "github.com/Traderpoint/CloudVPS-2-sub003/pkg/logger"
	"github.com/Traderpoint/CloudVPS-2-sub003/pkg/messaging"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := pkglogger.NewZapLogger(cfg.Log,
		zap.String("service", cfg.Service.Name),
		zap.String("env", cfg.Service.Environment))
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Optional persistence for callback events and workflow audit rows
	var (
		callbackEvents domainRepo.CallbackEventRepository
		auditLogs      domainRepo.AuditLogRepository
	)
	if cfg.Database.Enabled {
		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer func() {
			if err := database.Close(db, logger); err != nil {
				logger.Error("Failed to close database connection", zap.Error(err))
			}
		}()

		if err := database.Migrate(db, logger); err != nil {
			logger.Fatal("Failed to run database migrations", zap.Error(err))
		}

		repos := database.NewRepositories(db, logger)
		callbackEvents = repos.CallbackEvents
		auditLogs = repos.AuditLogs
	} else {
		logger.Info("Database disabled; callback events and audit logs are not stored")
	}

	// Optional accounting notifications
	var publisher messaging.Publisher
	if cfg.Redis.Enabled {
		publisher, err = messaging.NewRedisPublisher(cfg.Redis.RedisOptions)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer publisher.Close()
	}

	// Billing backend, providers and the accounting exporter
	backend := repository.NewHTTPBillingBackendRepository(cfg.Billing, logger.Named("billing"))
	providers := provider.NewFactory(cfg, logger.Named("provider"))
	exporter := accounting.NewExporter(cfg.Accounting, publisher, logger.Named("accounting"))

	// Use cases
	methods := usecase.NewPaymentMethodTable(cfg.PaymentMethods, logger)
	logger.Info("Payment methods loaded", zap.Strings("tokens", methods.Tokens()))
	reconciler := usecase.NewCreditReconciler(backend, cfg.Workflow.DeferredCycles, logger)
	workflow := usecase.NewPaymentWorkflowService(backend, methods, reconciler, exporter, auditLogs, cfg.Workflow, logger.Named("workflow"))
	gateway := usecase.NewGatewaySessionService(backend, providers, methods, logger)
	callbacks := usecase.NewCallbackService(
		usecase.NewCallbackIngestor(providers, logger),
		workflow,
		backend,
		callbackEvents,
		cfg.Service.EnableTestEndpoints,
		logger.Named("callback"),
	)
	status := usecase.NewInvoiceStatusService(backend, logger)
	provisioning := usecase.NewProvisioningService(backend, logger)

	// Initialize servers
	grpcSrv := grpcServer.NewServer(cfg, logger)
	httpSrv := httpServer.NewServer(cfg, logger, httpServer.Handlers{
		Payment: handlers.NewPaymentHandler(gateway, workflow, logger),
		Invoice: handlers.NewInvoiceHandler(status, reconciler, provisioning, logger),
		Webhook: handlers.NewWebhookHandler(callbacks, cfg.Service.StorefrontURL, logger),
	})

	// Start servers
	go func() {
		if err := grpcSrv.Start(); err != nil {
			logger.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.Start(); err != nil {
			logger.Info("HTTP server stopped", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down servers...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Shutdown servers
	if err := grpcSrv.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown gRPC server", zap.Error(err))
	}

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	logger.Info("Servers shut down successfully")
}
