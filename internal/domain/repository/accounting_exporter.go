package repository

import (
	"context"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
)

// AccountingExporter notifies the accounting system about a captured payment.
// The outcome is advisory; implementations never return an error.
type AccountingExporter interface {
	Export(ctx context.Context, record entity.AccountingRecord) entity.AccountingOutcome
}
