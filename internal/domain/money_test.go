package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestApplyRate_RoundsHalfUp(t *testing.T) {
	tests := []struct {
		name   string
		amount Money
		rate   string
		want   Money
	}{
		{"exact", 24000, "0.08", 1920},
		{"half rounds up", 50, "0.01", 1},
		{"below half rounds down", 49, "0.01", 0},
		{"zero amount", 0, "0.0875", 0},
		{"fractional rate", 12345, "0.0875", 1080},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.amount.ApplyRate(decimal.RequireFromString(tt.rate))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "$274.20", Money(27420).String())
	assert.Equal(t, "$0.05", Money(5).String())
	assert.Equal(t, "-$1.50", Money(-150).String())
}

func TestMoney_NonNegative(t *testing.T) {
	assert.Equal(t, Money(0), Money(-10).NonNegative())
	assert.Equal(t, Money(10), Money(10).NonNegative())
}

func TestErrorClasses(t *testing.T) {
	assert.True(t, errors.Is(&EmptyCartError{}, ErrValidation))
	assert.True(t, errors.Is(&InvalidTransitionError{From: OrderStatusShipped, To: OrderStatusCancelled}, ErrState))
	assert.True(t, errors.Is(&PaymentDeclinedError{}, ErrCollaborator))
	assert.True(t, IsRetryable(&CollaboratorError{Service: "payment", Err: errors.New("timeout")}))
	assert.False(t, IsRetryable(&CartSizeExceededError{Count: 51, Max: 50}))
	assert.True(t, errors.Is(ErrItemNotFound, ErrValidation))
}

func TestAddress_Validate(t *testing.T) {
	err := Address{FirstName: "Ada", City: "Albany"}.Validate()
	var addrErr *IncompleteAddressError
	if assert.ErrorAs(t, err, &addrErr) {
		assert.Equal(t, []string{"last_name", "address_line_1", "state", "postal_code"}, addrErr.Missing)
	}

	ok := Address{FirstName: "Ada", LastName: "L", AddressLine1: "1 Main", City: "Albany", State: " ny ", PostalCode: "12207"}
	assert.NoError(t, ok.Validate())
	assert.Equal(t, "NY", ok.Jurisdiction())
}
