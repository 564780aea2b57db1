package order

import (
	"time"

	d "github.com/jyush98/jason-co-ecom-sub003/internal/domain"
)

var transitions = map[d.OrderStatus][]d.OrderStatus{
	d.OrderStatusPending:    {d.OrderStatusConfirmed, d.OrderStatusCancelled, d.OrderStatusFailed},
	d.OrderStatusConfirmed:  {d.OrderStatusProcessing, d.OrderStatusCancelled, d.OrderStatusFailed},
	d.OrderStatusProcessing: {d.OrderStatusShipped},
	d.OrderStatusShipped:    {d.OrderStatusDelivered},
	d.OrderStatusDelivered:  {d.OrderStatusCompleted},
}

var progress = map[d.OrderStatus]int{
	d.OrderStatusPending:    20,
	d.OrderStatusConfirmed:  40,
	d.OrderStatusProcessing: 60,
	d.OrderStatusShipped:    80,
	d.OrderStatusDelivered:  100,
	d.OrderStatusCompleted:  100,
}

// CanTransition reports whether from → to is an edge of the order lifecycle.
func CanTransition(from, to d.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from s in one step.
func NextStatuses(s d.OrderStatus) []d.OrderStatus {
	out := make([]d.OrderStatus, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// Machine applies lifecycle rules to orders. The clock is injectable for tests.
type Machine struct {
	returnWindow time.Duration
	now          func() time.Time
}

func NewMachine(returnWindow time.Duration) *Machine {
	return &Machine{returnWindow: returnWindow, now: time.Now}
}

// Transition returns a copy of o moved to status `to`. o itself is never modified.
func (m *Machine) Transition(o d.Order, to d.OrderStatus) (d.Order, error) {
	if !CanTransition(o.Status, to) {
		return o, &d.InvalidTransitionError{From: o.Status, To: to}
	}
	now := m.now().UTC()
	o.Status = to
	o.UpdatedAt = now
	stamp(&o, to, now)
	return o, nil
}

// stamp records fulfilment timestamps for statuses that carry one.
func stamp(o *d.Order, to d.OrderStatus, at time.Time) {
	switch to {
	case d.OrderStatusShipped:
		o.ShippedAt = &at
	case d.OrderStatusDelivered:
		o.DeliveredAt = &at
	}
}

func (m *Machine) IsCancellable(o d.Order) bool {
	return CanTransition(o.Status, d.OrderStatusCancelled)
}

// IsReturnable is true for delivered or completed orders still inside the return window,
// measured from order creation.
func (m *Machine) IsReturnable(o d.Order) bool {
	if o.Status != d.OrderStatusDelivered && o.Status != d.OrderStatusCompleted {
		return false
	}
	return !m.now().After(o.CreatedAt.Add(m.returnWindow))
}

// Progress is the fulfilment percentage shown to customers. Cancelled and failed orders report 0.
func (m *Machine) Progress(o d.Order) int {
	return progress[o.Status]
}
