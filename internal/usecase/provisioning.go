package usecase

import (
	"context"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	domainErrors "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/errors"
	domainRepo "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/repository"
	"go.uber.org/zap"
)

// ProvisioningService retries provisioning independently of a payment run
type ProvisioningService struct {
	backend domainRepo.BillingBackend
	logger  *zap.Logger
}

// NewProvisioningService creates a new provisioning service
func NewProvisioningService(backend domainRepo.BillingBackend, logger *zap.Logger) *ProvisioningService {
	return &ProvisioningService{
		backend: backend,
		logger:  logger,
	}
}

// ProvisionOrder runs the provisioning hooks for an order. A failure is reported in the
// result and also returned as a PROVISIONING_FAILED error.
func (s *ProvisioningService) ProvisionOrder(ctx context.Context, orderID string) (*entity.ProvisioningResult, error) {
	if orderID == "" {
		return nil, domainErrors.NewInvalidRequestError("provision", "order id is required")
	}

	outcome, err := s.backend.RunProvisioningHooks(ctx, orderID)
	if err != nil {
		provErr := domainErrors.NewProvisioningFailedError(orderID, err)
		s.logger.Warn("Provisioning retry failed",
			zap.String("order_id", orderID),
			zap.Error(err))
		return &entity.ProvisioningResult{
			OrderID: orderID,
			Status:  entity.StepStatusFailed,
			Message: provErr.Error(),
		}, provErr
	}

	s.logger.Info("Order provisioned",
		zap.String("order_id", orderID),
		zap.Strings("accounts", outcome.Accounts),
		zap.Strings("already_active", outcome.Skipped))

	return &entity.ProvisioningResult{
		OrderID:  orderID,
		Status:   entity.StepStatusCompleted,
		Message:  outcome.Message,
		Accounts: outcome.Accounts,
	}, nil
}
