package payment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
)

const (
	RefusalUnknown           = "unknown reason"
	RefusalInsufficientFunds = "insufficient funds"
	RefusalCardDeclined      = "card declined"
	RefusalExpiredCard       = "expired card"
	RefusalFraudSuspected    = "fraud suspected"
	RefusalLimitExceeded     = "limit exceeded"
)

var refusals = []string{
	RefusalInsufficientFunds,
	RefusalCardDeclined,
	RefusalExpiredCard,
	RefusalFraudSuspected,
	RefusalLimitExceeded,
}

// Test tokens with a fixed outcome.
const (
	TokenAlwaysSucceeds = "tok_success"
	TokenRequiresAction = "tok_requires_action"
	TokenDeclined       = "tok_declined"
)

type ChargeRequest struct {
	CheckoutID   uuid.UUID
	Amount       domain.Money
	Currency     string
	PaymentToken string
	Destination  domain.Address
}

type ChargeResult struct {
	ReferenceID string
	Status      domain.PaymentStatus
	Reason      string
}

type GetResponseStatus interface {
	GetStatus() (domain.PaymentStatus, string)
}

type RandomStatus struct{}

func (RandomStatus) GetStatus() (domain.PaymentStatus, string) {
	return calcStatus(rand.IntN(101))
}

// calcStatus maps a roll in [0,100] to an outcome: 90% settle, 5% need customer action, the rest fail.
func calcStatus(roll int) (domain.PaymentStatus, string) {
	if roll < 90 {
		return domain.PaymentStatusSucceeded, ""
	}
	if roll < 95 {
		return domain.PaymentStatusRequiresAction, ""
	}
	known := roll - 95
	if known == 0 || known > len(refusals) {
		return domain.PaymentStatusFailed, RefusalUnknown
	}
	return domain.PaymentStatusFailed, refusals[known-1]
}

// Simulator is an in-process payment processor. Accepted charges (succeeded or requires_action)
// are idempotent per checkout ID; a declined charge is not remembered, so the checkout can be
// retried with another payment method.
type Simulator struct {
	status GetResponseStatus

	mu      sync.Mutex
	charges map[uuid.UUID]*ChargeResult
}

func NewSimulator(s GetResponseStatus) *Simulator {
	return &Simulator{status: s, charges: make(map[uuid.UUID]*ChargeResult)}
}

func (s *Simulator) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Amount < 0 {
		return nil, fmt.Errorf("invalid charge amount %s", req.Amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.charges[req.CheckoutID]; ok {
		res := *prev
		return &res, nil
	}

	status, reason := s.outcome(req.PaymentToken)
	res := &ChargeResult{
		ReferenceID: fmt.Sprintf("TXN-%s", strings.ToUpper(uuid.NewString())),
		Status:      status,
		Reason:      reason,
	}
	if status != domain.PaymentStatusFailed {
		s.charges[req.CheckoutID] = res
	}

	out := *res
	return &out, nil
}

func (s *Simulator) outcome(token string) (domain.PaymentStatus, string) {
	switch token {
	case TokenAlwaysSucceeds:
		return domain.PaymentStatusSucceeded, ""
	case TokenRequiresAction:
		return domain.PaymentStatusRequiresAction, ""
	case TokenDeclined:
		return domain.PaymentStatusFailed, RefusalCardDeclined
	}
	return s.status.GetStatus()
}
