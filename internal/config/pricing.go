package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type TaxPolicy string

const (
	// TaxSubtotal taxes the item subtotal only.
	TaxSubtotal TaxPolicy = "subtotal"
	// TaxSubtotalAndShipping also taxes the shipping charge.
	TaxSubtotalAndShipping TaxPolicy = "subtotal_and_shipping"
)

type CartLimits struct {
	MaxQuantityPerItem int
	MaxItemsInCart     int
}

// Pricing is loaded once at startup and passed by value into every component that prices a cart.
type Pricing struct {
	Currency              string
	Limits                CartLimits
	FreeShippingThreshold domain.Money
	TaxPolicy             TaxPolicy
	FallbackTaxRate       decimal.Decimal
	TaxRates              map[string]decimal.Decimal
	Promos                []domain.PromoCode
	ShippingMethods       []domain.ShippingMethod
	ReturnWindow          time.Duration
}

// pricingFile is the on-disk shape of the pricing document.
type pricingFile struct {
	Currency              string                  `mapstructure:"currency"`
	MaxQuantityPerItem    int                     `mapstructure:"max_quantity_per_item"`
	MaxItemsInCart        int                     `mapstructure:"max_items_in_cart"`
	FreeShippingThreshold int64                   `mapstructure:"free_shipping_threshold"`
	TaxPolicy             string                  `mapstructure:"tax_policy"`
	FallbackTaxRate       float64                 `mapstructure:"fallback_tax_rate"`
	TaxRates              map[string]float64      `mapstructure:"tax_rates"`
	Promos                []domain.PromoCode      `mapstructure:"promos"`
	ShippingMethods       []domain.ShippingMethod `mapstructure:"shipping_methods"`
	ReturnWindowDays      int                     `mapstructure:"return_window_days"`
}

// DefaultPricing is the built-in configuration used when no pricing file is given.
func DefaultPricing() Pricing {
	return Pricing{
		Currency: "USD",
		Limits: CartLimits{
			MaxQuantityPerItem: 10,
			MaxItemsInCart:     50,
		},
		FreeShippingThreshold: 50000,
		TaxPolicy:             TaxSubtotal,
		FallbackTaxRate:       decimal.RequireFromString("0.08"),
		TaxRates: map[string]decimal.Decimal{
			"NY": decimal.RequireFromString("0.08"),
			"NJ": decimal.RequireFromString("0.06625"),
			"CA": decimal.RequireFromString("0.0725"),
			"TX": decimal.RequireFromString("0.0625"),
			"FL": decimal.RequireFromString("0.06"),
			"OR": decimal.Zero,
		},
		Promos: []domain.PromoCode{
			{Code: "SAVE10", Type: domain.PromoPercentage, Value: 10, MinOrder: 10000},
			{Code: "WELCOME20", Type: domain.PromoFixed, Value: 2000},
		},
		ShippingMethods: []domain.ShippingMethod{
			{ID: "standard", Name: "Standard Shipping", Price: 1500, EstimatedDays: 5},
			{ID: "express", Name: "Express Shipping", Price: 3500, EstimatedDays: 2, IsExpress: true},
			{ID: "overnight", Name: "Overnight Shipping", Price: 7500, EstimatedDays: 1, IsExpress: true},
		},
		ReturnWindow: 30 * 24 * time.Hour,
	}
}

// LoadPricing reads a pricing document (yaml, json or toml) and overlays it on DefaultPricing.
// An empty path returns the defaults.
func LoadPricing(path string) (Pricing, error) {
	cfg := DefaultPricing()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("PRICING")
	v.AutomaticEnv()
	setPricingDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		return Pricing{}, fmt.Errorf("read pricing config: %w", err)
	}

	var f pricingFile
	if err := v.Unmarshal(&f); err != nil {
		return Pricing{}, fmt.Errorf("decode pricing config: %w", err)
	}

	return f.toPricing(cfg)
}

func setPricingDefaults(v *viper.Viper, cfg Pricing) {
	v.SetDefault("currency", cfg.Currency)
	v.SetDefault("max_quantity_per_item", cfg.Limits.MaxQuantityPerItem)
	v.SetDefault("max_items_in_cart", cfg.Limits.MaxItemsInCart)
	v.SetDefault("free_shipping_threshold", int64(cfg.FreeShippingThreshold))
	v.SetDefault("tax_policy", string(cfg.TaxPolicy))
	v.SetDefault("fallback_tax_rate", cfg.FallbackTaxRate.InexactFloat64())
	v.SetDefault("return_window_days", int(cfg.ReturnWindow/(24*time.Hour)))
}

func (f pricingFile) toPricing(base Pricing) (Pricing, error) {
	out := base
	out.Currency = strings.ToUpper(f.Currency)
	out.Limits = CartLimits{MaxQuantityPerItem: f.MaxQuantityPerItem, MaxItemsInCart: f.MaxItemsInCart}
	out.FreeShippingThreshold = domain.Money(f.FreeShippingThreshold)
	out.TaxPolicy = TaxPolicy(f.TaxPolicy)
	out.FallbackTaxRate = decimal.NewFromFloat(f.FallbackTaxRate)
	out.ReturnWindow = time.Duration(f.ReturnWindowDays) * 24 * time.Hour

	if len(f.TaxRates) > 0 {
		out.TaxRates = make(map[string]decimal.Decimal, len(f.TaxRates))
		for state, rate := range f.TaxRates {
			out.TaxRates[strings.ToUpper(state)] = decimal.NewFromFloat(rate)
		}
	}
	if len(f.Promos) > 0 {
		out.Promos = f.Promos
	}
	if len(f.ShippingMethods) > 0 {
		out.ShippingMethods = f.ShippingMethods
	}

	if err := out.Validate(); err != nil {
		return Pricing{}, err
	}
	return out, nil
}

// Validate rejects configurations the pricing engine cannot honour.
func (p Pricing) Validate() error {
	if p.Limits.MaxQuantityPerItem < 1 || p.Limits.MaxItemsInCart < 1 {
		return fmt.Errorf("cart limits must be positive: %+v", p.Limits)
	}
	if p.TaxPolicy != TaxSubtotal && p.TaxPolicy != TaxSubtotalAndShipping {
		return fmt.Errorf("unknown tax policy %q", p.TaxPolicy)
	}
	if p.FallbackTaxRate.IsNegative() {
		return fmt.Errorf("fallback tax rate must not be negative")
	}
	for state, rate := range p.TaxRates {
		if rate.IsNegative() {
			return fmt.Errorf("tax rate for %s must not be negative", state)
		}
	}
	if p.FreeShippingThreshold < 0 {
		return fmt.Errorf("free shipping threshold must not be negative")
	}
	seen := make(map[string]bool, len(p.Promos))
	for _, promo := range p.Promos {
		code := strings.ToUpper(promo.Code)
		if code == "" {
			return fmt.Errorf("promo code must not be empty")
		}
		if seen[code] {
			return fmt.Errorf("duplicate promo code %s", code)
		}
		seen[code] = true
		if promo.Type != domain.PromoPercentage && promo.Type != domain.PromoFixed {
			return fmt.Errorf("promo %s: unknown type %q", code, promo.Type)
		}
		if promo.Value < 0 || (promo.Type == domain.PromoPercentage && promo.Value > 100) {
			return fmt.Errorf("promo %s: value %d out of range", code, promo.Value)
		}
	}
	return nil
}

// Jurisdictions lists the configured tax jurisdictions in sorted order.
func (p Pricing) Jurisdictions() []string {
	return slices.Sorted(maps.Keys(p.TaxRates))
}
