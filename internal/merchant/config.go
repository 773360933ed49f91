// Package merchant defines the merchant configuration document that drives a
// ucpify server: catalog items, shipping options, tax rate, payment handlers,
// and the optional OAuth provider block.
package merchant

import (
	"encoding/json"
	"os"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Item is a catalog listing as declared in the merchant configuration.
// Prices are integer minor currency units (cents).
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	SKU         string `json:"sku,omitempty"`
}

// ShippingOption is a fulfillment option the merchant offers, priced in
// minor units.
type ShippingOption struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Price         int64  `json:"price"`
	EstimatedDays string `json:"estimated_days,omitempty"`
}

// PaymentHandler declares a payment provider integration. The namespace
// selects the provider ("com.stripe", "com.paypal"); Config carries
// provider-specific keys passed through to agents in the UCP profile.
type PaymentHandler struct {
	Namespace string            `json:"namespace"`
	ID        string            `json:"id"`
	Config    map[string]string `json:"config,omitempty"`
}

// OAuth provider modes.
const (
	OAuthBuiltIn  = "built-in"
	OAuthExternal = "external"
)

// OAuthConfig selects and configures the identity-linking provider.
// With the built-in provider the server runs its own authorization server;
// with an external provider only the metadata document is exposed.
type OAuthConfig struct {
	Provider              string `json:"provider"`
	Issuer                string `json:"issuer,omitempty"`
	AuthorizationEndpoint string `json:"authorization_endpoint,omitempty"`
	TokenEndpoint         string `json:"token_endpoint,omitempty"`
	RevocationEndpoint    string `json:"revocation_endpoint,omitempty"`
	JWKSURI               string `json:"jwks_uri,omitempty"`
}

// Config is the complete merchant configuration document.
type Config struct {
	Name            string           `json:"name"`
	Domain          string           `json:"domain"`
	Currency        string           `json:"currency"`
	TermsURL        string           `json:"terms_url,omitempty"`
	PrivacyURL      string           `json:"privacy_url,omitempty"`
	TaxRate         decimal.Decimal  `json:"tax_rate"`
	Items           []Item           `json:"items"`
	ShippingOptions []ShippingOption `json:"shipping_options"`
	PaymentHandlers []PaymentHandler `json:"payment_handlers,omitempty"`
	OAuth           *OAuthConfig     `json:"oauth,omitempty"`
}

// Load reads and validates a merchant configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read merchant config")
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse merchant config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural invariants of the configuration.
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New("merchant name is required")
	}
	if c.Currency == "" {
		return errors.New("currency is required")
	}
	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return errors.Errorf("tax_rate must be in [0,1], got %s", c.TaxRate)
	}

	seen := make(map[string]struct{}, len(c.Items))
	for _, item := range c.Items {
		if item.ID == "" {
			return errors.New("item id is required")
		}
		if _, dup := seen[item.ID]; dup {
			return errors.Errorf("duplicate item id %q", item.ID)
		}
		seen[item.ID] = struct{}{}
		if item.Price < 0 {
			return errors.Errorf("item %q has negative price", item.ID)
		}
	}

	for _, opt := range c.ShippingOptions {
		if opt.ID == "" {
			return errors.New("shipping option id is required")
		}
		if opt.Price < 0 {
			return errors.Errorf("shipping option %q has negative price", opt.ID)
		}
	}

	if c.OAuth != nil {
		switch c.OAuth.Provider {
		case OAuthBuiltIn:
		case OAuthExternal:
			if c.OAuth.Issuer == "" {
				return errors.New("external oauth requires issuer")
			}
		default:
			return errors.Errorf("unknown oauth provider %q", c.OAuth.Provider)
		}
	}

	return nil
}

// PaymentHandlerFor returns the first handler in the given namespace, or nil.
func (c *Config) PaymentHandlerFor(namespace string) *PaymentHandler {
	for i := range c.PaymentHandlers {
		if c.PaymentHandlers[i].Namespace == namespace {
			return &c.PaymentHandlers[i]
		}
	}
	return nil
}

// BuiltInOAuth reports whether the built-in authorization server is enabled.
func (c *Config) BuiltInOAuth() bool {
	return c.OAuth != nil && c.OAuth.Provider == OAuthBuiltIn
}
