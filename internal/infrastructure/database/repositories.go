package database

import (
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/adapter/repository"
	domainRepo "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	CallbackEvents domainRepo.CallbackEventRepository
	AuditLogs      domainRepo.AuditLogRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		CallbackEvents: repository.NewCallbackEventRepository(db, logger),
		AuditLogs:      repository.NewAuditLogRepository(db, logger),
	}
}
