package config

import "time"

type ProvidersConfig struct {
	Comgate      ComgateConfig      `yaml:"comgate"`
	PayU         PayUConfig         `yaml:"payu"`
	Stripe       StripeConfig       `yaml:"stripe"`
	BankTransfer BankTransferConfig `yaml:"banktransfer"`
}

type ComgateConfig struct {
	BaseURL    string `yaml:"base_url"`
	MerchantID string `yaml:"merchant_id"`
	Secret     string `yaml:"secret"`
	Test       bool   `yaml:"test"`
	Method     string `yaml:"method"`
	Country    string `yaml:"country"`
	Lang       string `yaml:"lang"`
}

type PayUConfig struct {
	BaseURL      string `yaml:"base_url"`
	PosID        string `yaml:"pos_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	SecondKey    string `yaml:"second_key"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type BankTransferConfig struct {
	// InvoiceURL is a storefront URL template; {invoice_id} is substituted
	InvoiceURL string `yaml:"invoice_url"`
}

// AccountingConfig configures the downstream accounting exporter. With no URL the
// exporter is a logged no-op.
type AccountingConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
	Channel string        `yaml:"channel"`
}
