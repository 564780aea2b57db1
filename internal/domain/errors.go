package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error classes. Every typed error below matches exactly one of them with errors.Is.
var (
	// ErrValidation marks input the caller can fix (bad quantity, missing address field).
	ErrValidation = errors.New("validation error")
	// ErrState marks an operation not allowed in the current state (illegal transition).
	ErrState = errors.New("state error")
	// ErrCollaborator marks a failure of an external party. Such failures are retryable.
	ErrCollaborator = errors.New("collaborator failure")
)

var ErrItemNotFound = fmt.Errorf("%w: item not found in cart", ErrValidation)

type EmptyCartError struct{}

func (e *EmptyCartError) Error() string { return "cart is empty" }

func (e *EmptyCartError) Is(target error) bool { return target == ErrValidation }

type InvalidQuantityError struct {
	ProductID int64
	Quantity  int
	Max       int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %d: must be between 1 and %d", e.Quantity, e.ProductID, e.Max)
}

func (e *InvalidQuantityError) Is(target error) bool { return target == ErrValidation }

type CartSizeExceededError struct {
	Count int
	Max   int
}

func (e *CartSizeExceededError) Error() string {
	return fmt.Sprintf("cart holds %d distinct items, limit is %d", e.Count, e.Max)
}

func (e *CartSizeExceededError) Is(target error) bool { return target == ErrValidation }

type IncompleteAddressError struct {
	Missing []string
}

func (e *IncompleteAddressError) Error() string {
	return "address is missing required fields: " + strings.Join(e.Missing, ", ")
}

func (e *IncompleteAddressError) Is(target error) bool { return target == ErrValidation }

// InvalidTransitionError is returned when an order status change is not an edge of the lifecycle graph,
// or when a compare-and-set lost against a concurrent writer.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrState }

type PaymentDeclinedError struct {
	Reason string
}

func (e *PaymentDeclinedError) Error() string {
	if e.Reason == "" {
		return "payment declined"
	}
	return "payment declined: " + e.Reason
}

func (e *PaymentDeclinedError) Is(target error) bool { return target == ErrCollaborator }

// CollaboratorError wraps a transport or availability failure of an external service.
type CollaboratorError struct {
	Service string
	Err     error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

func (e *CollaboratorError) Is(target error) bool { return target == ErrCollaborator }

// IsRetryable reports whether err belongs to the collaborator class.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCollaborator)
}
