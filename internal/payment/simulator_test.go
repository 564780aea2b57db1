package payment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStatus struct {
	st     domain.PaymentStatus
	reason string
	calls  int
}

func (m *mockStatus) GetStatus() (domain.PaymentStatus, string) {
	m.calls++
	return m.st, m.reason
}

func TestCalcStatus(t *testing.T) {
	tests := []struct {
		name   string
		roll   int
		status domain.PaymentStatus
		reason string
	}{
		{"success", 10, domain.PaymentStatusSucceeded, ""},
		{"success upper bound", 89, domain.PaymentStatusSucceeded, ""},
		{"requires action", 90, domain.PaymentStatusRequiresAction, ""},
		{"requires action upper bound", 94, domain.PaymentStatusRequiresAction, ""},
		{"unknown failure", 95, domain.PaymentStatusFailed, RefusalUnknown},
		{"first known refusal", 96, domain.PaymentStatusFailed, RefusalInsufficientFunds},
		{"last known refusal", 100, domain.PaymentStatusFailed, RefusalLimitExceeded},
		{"out of range", 101, domain.PaymentStatusFailed, RefusalUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, reason := calcStatus(tt.roll)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestCharge_IdempotentPerCheckout(t *testing.T) {
	st := &mockStatus{st: domain.PaymentStatusSucceeded}
	sim := NewSimulator(st)
	req := ChargeRequest{CheckoutID: uuid.New(), Amount: 27420, Currency: "USD"}

	first, err := sim.Charge(context.Background(), req)
	require.NoError(t, err)
	second, err := sim.Charge(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ReferenceID, second.ReferenceID)
	assert.Contains(t, first.ReferenceID, "TXN-")
	assert.Equal(t, 1, st.calls)
}

func TestCharge_DeclineIsNotRemembered(t *testing.T) {
	sim := NewSimulator(&mockStatus{st: domain.PaymentStatusSucceeded})
	ctx := context.Background()
	checkoutID := uuid.New()

	declined, err := sim.Charge(ctx, ChargeRequest{CheckoutID: checkoutID, Amount: 27420, PaymentToken: TokenDeclined})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, declined.Status)

	retried, err := sim.Charge(ctx, ChargeRequest{CheckoutID: checkoutID, Amount: 27420, PaymentToken: TokenAlwaysSucceeds})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSucceeded, retried.Status)
	assert.NotEqual(t, declined.ReferenceID, retried.ReferenceID)

	// once accepted the charge sticks, whatever token comes next
	again, err := sim.Charge(ctx, ChargeRequest{CheckoutID: checkoutID, Amount: 27420, PaymentToken: TokenDeclined})
	require.NoError(t, err)
	assert.Equal(t, retried.ReferenceID, again.ReferenceID)
	assert.Equal(t, domain.PaymentStatusSucceeded, again.Status)
}

func TestCharge_TestTokens(t *testing.T) {
	sim := NewSimulator(&mockStatus{st: domain.PaymentStatusFailed, reason: RefusalUnknown})
	ctx := context.Background()

	res, err := sim.Charge(ctx, ChargeRequest{CheckoutID: uuid.New(), Amount: 100, PaymentToken: TokenAlwaysSucceeds})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSucceeded, res.Status)

	res, err = sim.Charge(ctx, ChargeRequest{CheckoutID: uuid.New(), Amount: 100, PaymentToken: TokenRequiresAction})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRequiresAction, res.Status)

	res, err = sim.Charge(ctx, ChargeRequest{CheckoutID: uuid.New(), Amount: 100, PaymentToken: TokenDeclined})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, res.Status)
	assert.Equal(t, RefusalCardDeclined, res.Reason)
}

func TestCharge_Errors(t *testing.T) {
	sim := NewSimulator(RandomStatus{})

	_, err := sim.Charge(context.Background(), ChargeRequest{CheckoutID: uuid.New(), Amount: -1})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sim.Charge(ctx, ChargeRequest{CheckoutID: uuid.New(), Amount: 100})
	assert.ErrorIs(t, err, context.Canceled)
}
