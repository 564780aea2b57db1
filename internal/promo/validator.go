package promo

import (
	"fmt"
	"strings"

	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	ReasonNotFound  = "not found"
	ReasonEmptyCode = "empty code"
)

// Result is the outcome of validating a code against a subtotal. A rejected code is not an error.
type Result struct {
	Code     string       `json:"code"`
	Valid    bool         `json:"valid"`
	Discount domain.Money `json:"discount"`
	Reason   string       `json:"reason,omitempty"`
	// Shortfall is how much more the customer must spend when the minimum order is not met.
	Shortfall domain.Money `json:"shortfall,omitempty"`
}

type Validator struct {
	registry map[string]domain.PromoCode
}

func NewValidator(codes []domain.PromoCode) *Validator {
	registry := make(map[string]domain.PromoCode, len(codes))
	for _, c := range codes {
		key := normalize(c.Code)
		c.Code = key
		registry[key] = c
	}
	return &Validator{registry: registry}
}

// Validate matches code case-insensitively and computes the discount it grants on subtotal.
// The discount never exceeds the subtotal.
func (v *Validator) Validate(code string, subtotal domain.Money) Result {
	key := normalize(code)
	if key == "" {
		return Result{Reason: ReasonEmptyCode}
	}

	promo, ok := v.registry[key]
	if !ok {
		return Result{Code: key, Reason: ReasonNotFound}
	}

	if subtotal < promo.MinOrder {
		shortfall := promo.MinOrder - subtotal
		return Result{
			Code:      key,
			Reason:    fmt.Sprintf("minimum order of %s not met, add %s more", promo.MinOrder, shortfall),
			Shortfall: shortfall,
		}
	}

	return Result{
		Code:     key,
		Valid:    true,
		Discount: discount(promo, subtotal),
	}
}

// Apply returns only the discount, zero when the code is rejected.
func (v *Validator) Apply(code string, subtotal domain.Money) domain.Money {
	return v.Validate(code, subtotal).Discount
}

func (v *Validator) Lookup(code string) (domain.PromoCode, bool) {
	p, ok := v.registry[normalize(code)]
	return p, ok
}

func discount(p domain.PromoCode, subtotal domain.Money) domain.Money {
	var d domain.Money
	switch p.Type {
	case domain.PromoPercentage:
		d = subtotal.ApplyRate(decimal.New(p.Value, -2))
	case domain.PromoFixed:
		d = domain.Money(p.Value)
	}
	return domain.Min(d.NonNegative(), subtotal.NonNegative())
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
