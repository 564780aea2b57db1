package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadPricing_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadPricing("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPricing().Limits, cfg.Limits)
	assert.NoError(t, cfg.Validate())
}

func TestLoadPricing_FromYAML(t *testing.T) {
	path := writeFile(t, `
currency: usd
max_quantity_per_item: 5
max_items_in_cart: 20
free_shipping_threshold: 10000
tax_policy: subtotal_and_shipping
fallback_tax_rate: 0.05
return_window_days: 14
tax_rates:
  ny: 0.08
  WA: 0.065
promos:
  - code: spring
    type: fixed
    value: 500
    min_order: 2000
`)

	cfg, err := LoadPricing(path)
	require.NoError(t, err)

	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, CartLimits{MaxQuantityPerItem: 5, MaxItemsInCart: 20}, cfg.Limits)
	assert.Equal(t, domain.Money(10000), cfg.FreeShippingThreshold)
	assert.Equal(t, TaxSubtotalAndShipping, cfg.TaxPolicy)
	assert.True(t, cfg.FallbackTaxRate.Equal(decimal.RequireFromString("0.05")))
	assert.Equal(t, 14*24*time.Hour, cfg.ReturnWindow)
	assert.Equal(t, []string{"NY", "WA"}, cfg.Jurisdictions())
	require.Len(t, cfg.Promos, 1)
	assert.Equal(t, domain.PromoFixed, cfg.Promos[0].Type)
	assert.Equal(t, domain.Money(2000), cfg.Promos[0].MinOrder)
	// shipping methods were not overridden
	assert.Len(t, cfg.ShippingMethods, 3)
}

func TestLoadPricing_RejectsUnknownTaxPolicy(t *testing.T) {
	path := writeFile(t, "tax_policy: everything\n")
	_, err := LoadPricing(path)
	assert.ErrorContains(t, err, "unknown tax policy")
}

func TestLoadPricing_MissingFile(t *testing.T) {
	_, err := LoadPricing(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_DuplicatePromo(t *testing.T) {
	cfg := DefaultPricing()
	cfg.Promos = append(cfg.Promos, domain.PromoCode{Code: "save10", Type: domain.PromoFixed, Value: 1})
	assert.ErrorContains(t, cfg.Validate(), "duplicate promo code SAVE10")
}
