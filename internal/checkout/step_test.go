package checkout

import (
	"testing"

	d "github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/stretchr/testify/assert"
)

func validAddress() d.Address {
	return d.Address{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        "ada@example.com",
		AddressLine1: "12 Crosby St",
		City:         "New York",
		State:        "NY",
		PostalCode:   "10013",
		Country:      "US",
	}
}

func TestCanAdvance(t *testing.T) {
	full := Form{ShippingAddress: validAddress(), ShippingMethodID: "standard", PaymentToken: "tok_success"}
	incomplete := validAddress()
	incomplete.City = ""

	tests := []struct {
		name string
		step Step
		form Form
		ok   bool
	}{
		{"address with valid address", StepAddress, Form{ShippingAddress: validAddress()}, true},
		{"address missing city", StepAddress, Form{ShippingAddress: incomplete}, false},
		{"address with incomplete billing", StepAddress, Form{ShippingAddress: validAddress(), BillingAddress: &d.Address{FirstName: "x"}}, false},
		{"shipping without method", StepShipping, Form{ShippingAddress: validAddress()}, false},
		{"shipping with method", StepShipping, Form{ShippingAddress: validAddress(), ShippingMethodID: "standard"}, true},
		{"shipping with method but no address", StepShipping, Form{ShippingMethodID: "standard"}, false},
		{"payment without token", StepPayment, Form{ShippingAddress: validAddress(), ShippingMethodID: "standard"}, false},
		{"payment complete", StepPayment, full, true},
		{"review never advances", StepReview, full, false},
		{"unknown step", Step("gift-wrap"), full, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanAdvance(tt.step, tt.form)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var notReady *StepNotReadyError
			assert.ErrorAs(t, err, &notReady)
			assert.ErrorIs(t, err, d.ErrValidation)
		})
	}
}

func TestCanAdvance_ExposesMissingFields(t *testing.T) {
	err := CanAdvance(StepAddress, Form{})

	var incomplete *d.IncompleteAddressError
	assert.ErrorAs(t, err, &incomplete)
	assert.Contains(t, incomplete.Missing, "first_name")
	assert.Contains(t, incomplete.Missing, "postal_code")
}

func TestStepNavigation(t *testing.T) {
	next, ok := StepAddress.Next()
	assert.True(t, ok)
	assert.Equal(t, StepShipping, next)

	_, ok = StepReview.Next()
	assert.False(t, ok)

	prev, ok := StepReview.Prev()
	assert.True(t, ok)
	assert.Equal(t, StepPayment, prev)

	prev, ok = StepAddress.Prev()
	assert.False(t, ok)
	assert.Equal(t, StepAddress, prev)

	st, ok := ParseStep("payment")
	assert.True(t, ok)
	assert.Equal(t, StepPayment, st)
}

func TestForm_BillingDefaultsToShipping(t *testing.T) {
	f := Form{ShippingAddress: validAddress()}
	assert.Equal(t, validAddress(), f.Billing())

	other := validAddress()
	other.City = "Boston"
	f.BillingAddress = &other
	assert.Equal(t, "Boston", f.Billing().City)
}
