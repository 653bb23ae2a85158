package config

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	// StorefrontURL is where browser returns are redirected after a payment
	StorefrontURL string `yaml:"storefront_url"`
	// PublicURL is this service's externally reachable base URL, used for provider notify/return URLs
	PublicURL           string `yaml:"public_url"`
	EnableTestEndpoints bool   `yaml:"enable_test_endpoints"`
}
