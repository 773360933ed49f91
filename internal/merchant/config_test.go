package merchant

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, cfg *Config) string {
	t.Helper()
	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "merchant.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadSample(t *testing.T) {
	path := writeConfig(t, Sample())

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "My Store", cfg.Name)
	assert.Equal(t, "USD", cfg.Currency)
	assert.True(t, decimal.RequireFromString("0.08").Equal(cfg.TaxRate))
	assert.Len(t, cfg.Items, 2)
	assert.Len(t, cfg.ShippingOptions, 3)
	assert.True(t, cfg.BuiltInOAuth())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing name",
			mutate:  func(c *Config) { c.Name = "" },
			wantErr: "merchant name is required",
		},
		{
			name:    "missing currency",
			mutate:  func(c *Config) { c.Currency = "" },
			wantErr: "currency is required",
		},
		{
			name:    "tax rate above one",
			mutate:  func(c *Config) { c.TaxRate = decimal.RequireFromString("1.5") },
			wantErr: "tax_rate must be in [0,1]",
		},
		{
			name:    "duplicate item id",
			mutate:  func(c *Config) { c.Items[1].ID = c.Items[0].ID },
			wantErr: "duplicate item id",
		},
		{
			name:    "negative item price",
			mutate:  func(c *Config) { c.Items[0].Price = -1 },
			wantErr: "negative price",
		},
		{
			name:    "unknown oauth provider",
			mutate:  func(c *Config) { c.OAuth = &OAuthConfig{Provider: "saml"} },
			wantErr: "unknown oauth provider",
		},
		{
			name:    "external oauth without issuer",
			mutate:  func(c *Config) { c.OAuth = &OAuthConfig{Provider: OAuthExternal} },
			wantErr: "external oauth requires issuer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Sample()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPaymentHandlerFor(t *testing.T) {
	cfg := Sample()

	h := cfg.PaymentHandlerFor("com.stripe")
	require.NotNil(t, h)
	assert.Equal(t, "stripe_handler", h.ID)

	assert.Nil(t, cfg.PaymentHandlerFor("com.square"))
}
