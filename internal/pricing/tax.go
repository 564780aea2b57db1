package pricing

import (
	"maps"
	"strings"

	"github.com/shopspring/decimal"
)

// TaxTable maps a jurisdiction (US state code) to its sales tax rate.
// Lookups outside the configured set take an explicit fallback branch.
type TaxTable struct {
	rates    map[string]decimal.Decimal
	fallback decimal.Decimal
}

func NewTaxTable(rates map[string]decimal.Decimal, fallback decimal.Decimal) *TaxTable {
	normalized := make(map[string]decimal.Decimal, len(rates))
	for k, v := range rates {
		normalized[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return &TaxTable{rates: normalized, fallback: fallback}
}

// Lookup returns the configured rate and true, or the fallback rate and false for an unmapped jurisdiction.
func (t *TaxTable) Lookup(jurisdiction string) (decimal.Decimal, bool) {
	rate, ok := t.rates[strings.ToUpper(strings.TrimSpace(jurisdiction))]
	if !ok {
		return t.fallback, false
	}
	return rate, true
}

func (t *TaxTable) Known(jurisdiction string) bool {
	_, ok := t.Lookup(jurisdiction)
	return ok
}

func (t *TaxTable) Rates() map[string]decimal.Decimal {
	return maps.Clone(t.rates)
}
