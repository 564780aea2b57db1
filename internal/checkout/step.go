package checkout

import (
	"fmt"

	d "github.com/jyush98/jason-co-ecom-sub003/internal/domain"
)

type Step string

const (
	StepAddress  Step = "address"
	StepShipping Step = "shipping"
	StepPayment  Step = "payment"
	StepReview   Step = "review"
)

var steps = []Step{StepAddress, StepShipping, StepPayment, StepReview}

func ParseStep(s string) (Step, bool) {
	for _, st := range steps {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// String representation (for logging)
func (s Step) String() string {
	return string(s)
}

func (s Step) index() int {
	for i, st := range steps {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the following step. Review has none.
func (s Step) Next() (Step, bool) {
	i := s.index()
	if i < 0 || i == len(steps)-1 {
		return s, false
	}
	return steps[i+1], true
}

// Prev returns the preceding step. Address has none.
func (s Step) Prev() (Step, bool) {
	i := s.index()
	if i <= 0 {
		return s, false
	}
	return steps[i-1], true
}

// Form is everything the customer entered during checkout.
type Form struct {
	ShippingAddress d.Address `json:"shipping_address"`
	// BillingAddress nil means billing equals shipping.
	BillingAddress   *d.Address `json:"billing_address,omitempty"`
	ShippingMethodID string     `json:"shipping_method_id,omitempty"`
	PaymentToken     string     `json:"payment_token,omitempty"`
	PromoCode        string     `json:"promo_code,omitempty"`
	OrderNotes       string     `json:"order_notes,omitempty"`
}

// Billing resolves the effective billing address.
func (f Form) Billing() d.Address {
	if f.BillingAddress == nil {
		return f.ShippingAddress
	}
	return *f.BillingAddress
}

// StepNotReadyError reports why the form cannot leave Step.
type StepNotReadyError struct {
	Step   Step
	Reason string
	Err    error
}

func (e *StepNotReadyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot leave %s step: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("cannot leave %s step: %s", e.Step, e.Reason)
}

func (e *StepNotReadyError) Unwrap() error { return e.Err }

func (e *StepNotReadyError) Is(target error) bool { return target == d.ErrValidation }

// CanAdvance checks the predicate for leaving step. Each step requires everything the
// earlier steps required. Review is final and never advances.
func CanAdvance(step Step, form Form) error {
	switch step {
	case StepAddress, StepShipping, StepPayment:
	case StepReview:
		return &StepNotReadyError{Step: step, Reason: "review is the final step, place the order instead"}
	default:
		return &StepNotReadyError{Step: step, Reason: "unknown step"}
	}

	if err := form.ShippingAddress.Validate(); err != nil {
		return &StepNotReadyError{Step: step, Err: err}
	}
	if form.BillingAddress != nil {
		if err := form.BillingAddress.Validate(); err != nil {
			return &StepNotReadyError{Step: step, Reason: "billing address incomplete", Err: err}
		}
	}
	if step == StepAddress {
		return nil
	}

	if form.ShippingMethodID == "" {
		return &StepNotReadyError{Step: step, Reason: "no shipping method selected"}
	}
	if step == StepShipping {
		return nil
	}

	if form.PaymentToken == "" {
		return &StepNotReadyError{Step: step, Reason: "no payment method provided"}
	}
	return nil
}

// readyToPlace is true when every step before review is satisfied.
func readyToPlace(form Form) error {
	return CanAdvance(StepPayment, form)
}
