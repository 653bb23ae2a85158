package config

import (
	"time"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
)

// BillingConfig configures the billing backend RPC client
type BillingConfig struct {
	URL    string `yaml:"url"`
	APIID  string `yaml:"api_id"`
	APIKey string `yaml:"api_key"`

	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`

	// GatewayLoadPatterns are matched case-insensitively against rejection text
	GatewayLoadPatterns []string `yaml:"gateway_load_patterns"`
}

// WorkflowConfig tunes the authorize-capture-provision workflow
type WorkflowConfig struct {
	AutoProvision  bool     `yaml:"auto_provision"`
	DeferredCycles []string `yaml:"deferred_cycles"`
	// ModuleLabel is recorded on direct-bypass ledger entries for Credit-Balance payments
	ModuleLabel string `yaml:"module_label"`
}

// PaymentMethodConfig overrides one entry of the payment-method table
type PaymentMethodConfig struct {
	ModuleID  string `yaml:"module_id"`
	GatewayID string `yaml:"gateway_id"`
}

// DefaultGatewayLoadPatterns returns the rejection fragments that mean the backend
// could not instantiate its own gateway module.
func DefaultGatewayLoadPatterns() []string {
	return []string{
		"unable to load",
		"gateway module",
		"payment module not found",
		"cannot instantiate",
	}
}

// DefaultDeferredCycles returns the prepaid cycles settled manually under Credit-Balance.
func DefaultDeferredCycles() []string {
	return []string{
		entity.BillingCycleQuarterly,
		entity.BillingCycleSemiAnnually,
		entity.BillingCycleAnnually,
		entity.BillingCycleBiennially,
		entity.BillingCycleTriennially,
	}
}
