package config

import (
	"fmt"
	"strings"
	"time"

	pkgconfig "github.com/Traderpoint/CloudVPS-2-sub003/pkg/config"
	"github.com/Traderpoint/CloudVPS-2-sub003/pkg/logger"
	"github.com/Traderpoint/CloudVPS-2-sub003/pkg/messaging"
)

// serviceName selects configs/{env}/payment.yaml and the PAYMENT_ env prefix
const serviceName = "payment"

type Config struct {
	Service        ServiceConfig                  `yaml:"service"`
	Database       DatabaseConfig                 `yaml:"database"`
	Server         ServerConfig                   `yaml:"server"`
	Log            logger.Config                  `yaml:"log"`
	Billing        BillingConfig                  `yaml:"billing"`
	Workflow       WorkflowConfig                 `yaml:"workflow"`
	Providers      ProvidersConfig                `yaml:"providers"`
	PaymentMethods map[string]PaymentMethodConfig `yaml:"payment_methods"`
	Accounting     AccountingConfig               `yaml:"accounting"`
	Redis          RedisConfig                    `yaml:"redis"`
}

// RedisConfig enables the accounting notification channel
type RedisConfig struct {
	Enabled                bool `yaml:"enabled"`
	messaging.RedisOptions `yaml:",inline"`
}

// LoadConfig reads the payment service configuration through pkg/config and
// decodes it on top of the defaults.
func LoadConfig() (*Config, error) {
	raw, err := pkgconfig.Load(serviceName)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := pkgconfig.Decode(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration with every tunable set to its default value.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "payment",
			Environment: "dev",
		},
		Server: ServerConfig{
			HTTP: HTTPConfig{Host: "0.0.0.0", Port: 8080},
			GRPC: GRPCConfig{Host: "0.0.0.0", Port: 9090},
		},
		Database: DatabaseConfig{
			Port:            5432,
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		Log: logger.Config{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Billing: BillingConfig{
			Timeout:             15 * time.Second,
			RetryAttempts:       3,
			RetryBackoff:        500 * time.Millisecond,
			GatewayLoadPatterns: DefaultGatewayLoadPatterns(),
		},
		Workflow: WorkflowConfig{
			AutoProvision:  true,
			DeferredCycles: DefaultDeferredCycles(),
			ModuleLabel:    "Credit Balance",
		},
		Providers: ProvidersConfig{
			Comgate: ComgateConfig{
				BaseURL: "https://payments.comgate.cz",
				Method:  "ALL",
				Country: "CZ",
				Lang:    "cs",
			},
			PayU: PayUConfig{
				BaseURL: "https://secure.payu.com",
			},
		},
		Accounting: AccountingConfig{
			Timeout: 10 * time.Second,
			Channel: "payment.captured",
		},
		Redis: RedisConfig{
			RedisOptions: messaging.RedisOptions{
				Addr:         "localhost:6379",
				DialTimeout:  5 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
		},
	}
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Billing.URL == "" {
		missing = append(missing, "billing.url")
	}
	if c.Billing.APIID == "" {
		missing = append(missing, "billing.api_id")
	}
	if c.Billing.APIKey == "" {
		missing = append(missing, "billing.api_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if c.Billing.RetryAttempts < 1 {
		return fmt.Errorf("billing.retry_attempts must be at least 1, got %d", c.Billing.RetryAttempts)
	}
	if c.Billing.Timeout <= 0 {
		return fmt.Errorf("billing.timeout must be positive")
	}
	return nil
}
