package promo

import (
	"testing"

	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/stretchr/testify/assert"
)

func newTestValidator() *Validator {
	return NewValidator([]domain.PromoCode{
		{Code: "SAVE10", Type: domain.PromoPercentage, Value: 10, MinOrder: 10000},
		{Code: "TWENTYOFF", Type: domain.PromoFixed, Value: 2000},
		{Code: "Third", Type: domain.PromoPercentage, Value: 33},
	})
}

func TestValidate(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name         string
		code         string
		subtotal     domain.Money
		wantValid    bool
		wantDiscount domain.Money
		wantReason   string
	}{
		{"percentage", "SAVE10", 24000, true, 2400, ""},
		{"case insensitive", "save10", 24000, true, 2400, ""},
		{"surrounding space", "  Save10 ", 24000, true, 2400, ""},
		{"fixed capped at subtotal", "TWENTYOFF", 1500, true, 1500, ""},
		{"fixed under subtotal", "twentyoff", 5000, true, 2000, ""},
		{"percentage rounds half up", "THIRD", 150, true, 50, ""},
		{"unknown code", "BOGUS", 24000, false, 0, ReasonNotFound},
		{"empty code", "", 24000, false, 0, ReasonEmptyCode},
		{"min order not met", "SAVE10", 8000, false, 0, "minimum order of $100.00 not met, add $20.00 more"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.code, tt.subtotal)
			assert.Equal(t, tt.wantValid, res.Valid)
			assert.Equal(t, tt.wantDiscount, res.Discount)
			assert.Equal(t, tt.wantReason, res.Reason)
		})
	}
}

func TestValidate_ShortfallReported(t *testing.T) {
	res := newTestValidator().Validate("SAVE10", 9999)
	assert.False(t, res.Valid)
	assert.Equal(t, domain.Money(1), res.Shortfall)
}

func TestValidate_DiscountNeverExceedsSubtotal(t *testing.T) {
	v := NewValidator([]domain.PromoCode{
		{Code: "ALL", Type: domain.PromoPercentage, Value: 100},
		{Code: "HUGE", Type: domain.PromoFixed, Value: 1_000_000},
	})
	for _, subtotal := range []domain.Money{0, 1, 99, 12345, 999999} {
		assert.LessOrEqual(t, v.Apply("ALL", subtotal), subtotal)
		assert.LessOrEqual(t, v.Apply("HUGE", subtotal), subtotal)
		assert.GreaterOrEqual(t, v.Apply("HUGE", subtotal), domain.Money(0))
	}
}

func TestLookup(t *testing.T) {
	p, ok := newTestValidator().Lookup("third")
	assert.True(t, ok)
	assert.Equal(t, "THIRD", p.Code)
}
