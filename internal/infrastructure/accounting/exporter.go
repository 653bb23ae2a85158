package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/config"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	domainRepo "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/repository"
	"github.com/Traderpoint/CloudVPS-2-sub003/pkg/messaging"
	"go.uber.org/zap"
)

// Exporter hands captured payments to the accounting system. It posts the record to
// the configured URL and, when a publisher is set, announces it on the channel.
// Failures are reported in the outcome and never returned as errors.
type Exporter struct {
	client    *http.Client
	url       string
	apiKey    string
	timeout   time.Duration
	channel   string
	publisher messaging.Publisher
	logger    *zap.Logger
}

var _ domainRepo.AccountingExporter = (*Exporter)(nil)

// NewExporter creates an accounting exporter. publisher may be nil.
func NewExporter(cfg config.AccountingConfig, publisher messaging.Publisher, logger *zap.Logger) *Exporter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Exporter{
		client:    &http.Client{Timeout: timeout},
		url:       cfg.URL,
		apiKey:    cfg.APIKey,
		timeout:   timeout,
		channel:   cfg.Channel,
		publisher: publisher,
		logger:    logger,
	}
}

// Export delivers one accounting record
func (e *Exporter) Export(ctx context.Context, record entity.AccountingRecord) entity.AccountingOutcome {
	if e.url == "" && e.publisher == nil {
		e.logger.Debug("Accounting export not configured",
			zap.String("invoice_id", record.InvoiceID))
		return entity.AccountingOutcome{
			Status:  entity.AccountingStatusSkipped,
			Message: "accounting export not configured",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if e.url != "" {
		if err := e.post(ctx, record); err != nil {
			e.logger.Warn("Accounting export failed",
				zap.String("run_id", record.RunID),
				zap.String("invoice_id", record.InvoiceID),
				zap.String("transaction_id", record.TransactionID),
				zap.Error(err))
			return entity.AccountingOutcome{
				Status:  entity.AccountingStatusFailed,
				Message: err.Error(),
			}
		}
	}

	if e.publisher != nil && e.channel != "" {
		if err := e.publisher.Publish(ctx, e.channel, record); err != nil {
			e.logger.Warn("Failed to publish accounting notification",
				zap.String("channel", e.channel),
				zap.String("invoice_id", record.InvoiceID),
				zap.Error(err))
			return entity.AccountingOutcome{
				Status:  entity.AccountingStatusFailed,
				Message: fmt.Sprintf("publish to %s failed: %v", e.channel, err),
			}
		}
	}

	e.logger.Info("Payment exported to accounting",
		zap.String("run_id", record.RunID),
		zap.String("invoice_id", record.InvoiceID),
		zap.String("amount", record.Amount.String()),
		zap.String("currency", record.Currency))

	return entity.AccountingOutcome{Status: entity.AccountingStatusExported}
}

func (e *Exporter) post(ctx context.Context, record entity.AccountingRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode accounting record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build accounting request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
	// the transaction id lets the accounting side drop repeated deliveries
	req.Header.Set("Idempotency-Key", record.InvoiceID+":"+record.TransactionID)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("accounting request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("accounting returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
