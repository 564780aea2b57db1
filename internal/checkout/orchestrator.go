package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	d "github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/jyush98/jason-co-ecom-sub003/internal/order"
	"github.com/jyush98/jason-co-ecom-sub003/internal/payment"
	"github.com/jyush98/jason-co-ecom-sub003/internal/pricing"
	r "github.com/jyush98/jason-co-ecom-sub003/internal/repository"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	maxOrderNumberAttempts = 5
	MaxOrderNotesLength    = 1000

	// placeOverhead is the time a placement may spend outside the payment call.
	placeOverhead = 10 * time.Second
)

var ErrOrderNotesTooLong = fmt.Errorf("%w: order notes exceed %d characters", d.ErrValidation, MaxOrderNotesLength)

// CartStore is the part of the cart service checkout depends on.
type CartStore interface {
	GetCart(ctx context.Context, userID string) (*d.Cart, error)
	// LoadCart reads the stored cart, never a cached copy.
	LoadCart(ctx context.Context, userID string) (*d.Cart, error)
	ClearOrdered(ctx context.Context, userID string, ordered d.Cart) error
}

type PaymentProcessor interface {
	Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o *d.Order) error
	GetOrderByCheckoutID(ctx context.Context, checkoutID uuid.UUID) (*d.Order, error)
	GetOrderByPaymentReference(ctx context.Context, ref string) (*d.Order, error)
}

type StatusUpdater interface {
	UpdateStatus(ctx context.Context, u order.StatusUpdate) (*order.View, error)
}

type Orchestrator struct {
	sessions       SessionStore
	carts          CartStore
	engine         *pricing.Engine
	quoter         ShippingQuoter
	payments       PaymentProcessor
	orders         OrderStore
	statuses       StatusUpdater
	paymentTimeout time.Duration
	now            func() time.Time

	placing singleflight.Group // one placement per session at a time
}

func NewOrchestrator(
	sessions SessionStore,
	carts CartStore,
	engine *pricing.Engine,
	quoter ShippingQuoter,
	payments PaymentProcessor,
	orders OrderStore,
	statuses StatusUpdater,
	paymentTimeout time.Duration,
) *Orchestrator {
	return &Orchestrator{
		sessions:       sessions,
		carts:          carts,
		engine:         engine,
		quoter:         quoter,
		payments:       payments,
		orders:         orders,
		statuses:       statuses,
		paymentTimeout: paymentTimeout,
		now:            time.Now,
	}
}

// Start opens a checkout for the user's current cart.
func (o *Orchestrator) Start(ctx context.Context, userID string) (*Session, error) {
	cart, err := o.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, &d.EmptyCartError{}
	}

	now := o.now().UTC()
	s := &Session{
		ID:        uuid.New(),
		UserID:    userID,
		Step:      StepAddress,
		Form:      Form{PromoCode: cart.PromoCode},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.sessions.SaveSession(ctx, s); err != nil {
		return nil, err
	}

	log.Info().Str("checkout_id", s.ID.String()).Str("user_id", userID).Msg("checkout started")
	return s, nil
}

// Get loads a session owned by userID. Sessions of other users are reported as not found.
func (o *Orchestrator) Get(ctx context.Context, userID string, id uuid.UUID) (*Session, error) {
	s, err := o.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (o *Orchestrator) edit(ctx context.Context, userID string, id uuid.UUID, fn func(s *Session) error) (*Session, error) {
	s, err := o.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if s.Completed() {
		return nil, ErrSessionCompleted
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	s.UpdatedAt = o.now().UTC()
	if err := o.sessions.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// SetAddress stores the addresses. A nil billing address means billing equals shipping.
// A selected shipping method that is not offered for the new destination is cleared.
func (o *Orchestrator) SetAddress(ctx context.Context, userID string, id uuid.UUID, shipping d.Address, billing *d.Address) (*Session, error) {
	return o.edit(ctx, userID, id, func(s *Session) error {
		s.Form.ShippingAddress = normalizeAddress(shipping)
		if billing != nil {
			b := normalizeAddress(*billing)
			s.Form.BillingAddress = &b
		} else {
			s.Form.BillingAddress = nil
		}
		if s.Form.ShippingMethodID != "" {
			if _, err := FindMethod(ctx, o.quoter, s.Form.ShippingAddress, s.Form.ShippingMethodID); err != nil {
				s.Form.ShippingMethodID = ""
			}
		}
		return nil
	})
}

func (o *Orchestrator) SelectShipping(ctx context.Context, userID string, id uuid.UUID, methodID string) (*Session, error) {
	return o.edit(ctx, userID, id, func(s *Session) error {
		if _, err := FindMethod(ctx, o.quoter, s.Form.ShippingAddress, methodID); err != nil {
			return err
		}
		s.Form.ShippingMethodID = methodID
		return nil
	})
}

func (o *Orchestrator) SetPayment(ctx context.Context, userID string, id uuid.UUID, token string) (*Session, error) {
	return o.edit(ctx, userID, id, func(s *Session) error {
		s.Form.PaymentToken = strings.TrimSpace(token)
		return nil
	})
}

// SetNotes stores the customer's delivery notes for the order.
func (o *Orchestrator) SetNotes(ctx context.Context, userID string, id uuid.UUID, notes string) (*Session, error) {
	notes = strings.TrimSpace(notes)
	if utf8.RuneCountInString(notes) > MaxOrderNotesLength {
		return nil, ErrOrderNotesTooLong
	}
	return o.edit(ctx, userID, id, func(s *Session) error {
		s.Form.OrderNotes = notes
		return nil
	})
}

// SetPromo replaces the code carried by the session. Validation happens when pricing.
func (o *Orchestrator) SetPromo(ctx context.Context, userID string, id uuid.UUID, code string) (*Session, error) {
	return o.edit(ctx, userID, id, func(s *Session) error {
		s.Form.PromoCode = strings.TrimSpace(code)
		return nil
	})
}

func (o *Orchestrator) Advance(ctx context.Context, userID string, id uuid.UUID) (*Session, error) {
	return o.edit(ctx, userID, id, func(s *Session) error {
		if err := CanAdvance(s.Step, s.Form); err != nil {
			return err
		}
		s.Step, _ = s.Step.Next()
		return nil
	})
}

// Back returns to the previous step. Form data is kept.
func (o *Orchestrator) Back(ctx context.Context, userID string, id uuid.UUID) (*Session, error) {
	return o.edit(ctx, userID, id, func(s *Session) error {
		s.Step, _ = s.Step.Prev()
		return nil
	})
}

// Quote prices the current cart with the session's shipping selection and destination.
func (o *Orchestrator) Quote(ctx context.Context, userID string, id uuid.UUID) (*pricing.Result, error) {
	s, err := o.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	cart, err := o.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return o.price(ctx, cart, s.Form)
}

func (o *Orchestrator) price(ctx context.Context, cart *d.Cart, form Form) (*pricing.Result, error) {
	method, err := FindMethod(ctx, o.quoter, form.ShippingAddress, form.ShippingMethodID)
	if err != nil {
		return nil, err
	}
	return o.engine.Price(*cart, method, form.ShippingAddress, form.PromoCode)
}

// PlaceOrder re-prices the cart, charges the payment method and records the order.
// If payment does not go through no order exists and the cart is left as it was.
// Placing an already placed session returns the existing order.
//
// Concurrent calls for one session share a single placement. It runs detached from the
// callers' contexts, bounded by its own deadline, so a caller that gives up only stops
// waiting for it.
func (o *Orchestrator) PlaceOrder(ctx context.Context, userID string, id uuid.UUID) (*d.Order, error) {
	ch := o.placing.DoChan(userID+"/"+id.String(), func() (any, error) {
		placeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.paymentTimeout+placeOverhead)
		defer cancel()
		return o.place(placeCtx, userID, id)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*d.Order), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) place(ctx context.Context, userID string, id uuid.UUID) (*d.Order, error) {
	s, err := o.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if s.Completed() {
		return o.orders.GetOrderByCheckoutID(ctx, s.ID)
	}
	if existing, err := o.orders.GetOrderByCheckoutID(ctx, s.ID); err == nil {
		return existing, o.complete(ctx, s, existing)
	} else if !errors.Is(err, r.ErrOrderNotFound) {
		return nil, err
	}

	if s.Step != StepReview {
		return nil, &StepNotReadyError{Step: s.Step, Reason: "order can only be placed from review"}
	}
	if err := readyToPlace(s.Form); err != nil {
		return nil, err
	}

	cart, err := o.carts.LoadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	quote, err := o.price(ctx, cart, s.Form)
	if err != nil {
		return nil, err
	}

	charge, err := o.charge(ctx, s, quote)
	if err != nil {
		return nil, err
	}

	placed, err := o.createOrder(ctx, s, cart, quote, charge)
	if err != nil {
		return nil, err
	}

	if err := o.carts.ClearOrdered(ctx, userID, *cart); err != nil {
		log.Error().Err(err).Str("order_number", placed.OrderNumber).Msg("order placed but cart not cleared")
	}
	if err := o.complete(ctx, s, placed); err != nil {
		return nil, err
	}

	log.Info().
		Str("order_number", placed.OrderNumber).
		Str("checkout_id", s.ID.String()).
		Str("status", placed.Status.String()).
		Int64("total", placed.TotalPrice.Int64()).
		Msg("order placed")
	return placed, nil
}

func (o *Orchestrator) charge(ctx context.Context, s *Session, quote *pricing.Result) (*payment.ChargeResult, error) {
	payCtx, cancel := context.WithTimeout(ctx, o.paymentTimeout)
	defer cancel()

	res, err := o.payments.Charge(payCtx, payment.ChargeRequest{
		CheckoutID:   s.ID,
		Amount:       quote.Total,
		Currency:     quote.Currency,
		PaymentToken: s.Form.PaymentToken,
		Destination:  s.Form.ShippingAddress,
	})
	if err != nil {
		log.Error().Err(err).Str("checkout_id", s.ID.String()).Msg("payment charge failed")
		return nil, &d.CollaboratorError{Service: "payment", Err: err}
	}

	switch res.Status {
	case d.PaymentStatusSucceeded, d.PaymentStatusRequiresAction:
		return res, nil
	default:
		log.Warn().Str("checkout_id", s.ID.String()).Str("reason", res.Reason).Msg("payment declined")
		return nil, &d.PaymentDeclinedError{Reason: res.Reason}
	}
}

func (o *Orchestrator) createOrder(ctx context.Context, s *Session, cart *d.Cart, quote *pricing.Result, charge *payment.ChargeResult) (*d.Order, error) {
	method, err := FindMethod(ctx, o.quoter, s.Form.ShippingAddress, s.Form.ShippingMethodID)
	if err != nil {
		return nil, err
	}

	status := d.OrderStatusConfirmed
	if charge.Status == d.PaymentStatusRequiresAction {
		status = d.OrderStatusPending
	}

	items := make([]d.OrderItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, d.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			LineTotal:   it.LineTotal(),
		})
	}

	promoCode := ""
	if quote.Promo != nil && quote.Promo.Valid {
		promoCode = quote.Promo.Code
	}

	now := o.now().UTC()
	eta := now.AddDate(0, 0, method.EstimatedDays)
	placed := &d.Order{
		ID:                 uuid.New(),
		CheckoutID:         s.ID,
		UserID:             s.UserID,
		Items:              items,
		Subtotal:           quote.Subtotal,
		TaxAmount:          quote.Tax,
		ShippingAmount:     quote.Shipping,
		DiscountAmount:     quote.Discount,
		TotalPrice:         quote.Total,
		Currency:           quote.Currency,
		PromoCode:          promoCode,
		ShippingAddress:    s.Form.ShippingAddress,
		BillingAddress:     s.Form.Billing(),
		ShippingMethodID:   method.ID,
		ShippingMethodName: method.Name,
		EstimatedDelivery:  &eta,
		OrderNotes:         s.Form.OrderNotes,
		PaymentReference:   charge.ReferenceID,
		PaymentStatus:      charge.Status,
		Status:             status,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	for attempt := 1; ; attempt++ {
		placed.OrderNumber = newOrderNumber(now)
		err := o.orders.CreateOrder(ctx, placed)
		switch {
		case err == nil:
			return placed, nil
		case errors.Is(err, r.ErrDuplicateNumber) && attempt < maxOrderNumberAttempts:
			log.Warn().Str("order_number", placed.OrderNumber).Msg("order number collision, regenerating")
			continue
		case errors.Is(err, r.ErrDuplicateCheckout):
			return o.orders.GetOrderByCheckoutID(ctx, s.ID)
		default:
			log.Error().Err(err).
				Str("checkout_id", s.ID.String()).
				Str("payment_reference", charge.ReferenceID).
				Msg("payment taken but order not recorded")
			return nil, fmt.Errorf("create order: %w", err)
		}
	}
}

func (o *Orchestrator) complete(ctx context.Context, s *Session, placed *d.Order) error {
	s.OrderNumber = placed.OrderNumber
	s.UpdatedAt = o.now().UTC()
	return o.sessions.SaveSession(ctx, s)
}

// ConfirmPayment settles a requires_action payment: the pending order becomes confirmed.
// Confirming an order that is already confirmed is a no-op.
func (o *Orchestrator) ConfirmPayment(ctx context.Context, reference string) (*d.Order, error) {
	return o.settle(ctx, reference, d.OrderStatusConfirmed, "payment confirmed")
}

// FailPayment marks a pending order failed after its payment was finally refused.
func (o *Orchestrator) FailPayment(ctx context.Context, reference, reason string) (*d.Order, error) {
	if reason == "" {
		reason = "payment failed"
	}
	return o.settle(ctx, reference, d.OrderStatusFailed, reason)
}

func (o *Orchestrator) settle(ctx context.Context, reference string, to d.OrderStatus, reason string) (*d.Order, error) {
	current, err := o.orders.GetOrderByPaymentReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if current.Status == to || (to == d.OrderStatusConfirmed && pastConfirmation(current.Status)) {
		return current, nil
	}

	v, err := o.statuses.UpdateStatus(ctx, order.StatusUpdate{
		OrderNumber:  current.OrderNumber,
		ExpectedFrom: d.OrderStatusPending,
		To:           to,
		Actor:        order.ActorPayment,
		Reason:       reason,
	})
	var ite *d.InvalidTransitionError
	if errors.As(err, &ite) && ite.From == to {
		// a concurrent callback got there first
		return o.orders.GetOrderByPaymentReference(ctx, reference)
	}
	if err != nil {
		return nil, err
	}
	return v.Order, nil
}

func pastConfirmation(s d.OrderStatus) bool {
	switch s {
	case d.OrderStatusProcessing, d.OrderStatusShipped, d.OrderStatusDelivered, d.OrderStatusCompleted:
		return true
	}
	return false
}

// newOrderNumber formats JC-YYYYMMDD-XXXX with a random suffix.
func newOrderNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("JC-%s-%s", at.Format("20060102"), suffix)
}

func normalizeAddress(a d.Address) d.Address {
	a.FirstName = strings.TrimSpace(a.FirstName)
	a.LastName = strings.TrimSpace(a.LastName)
	a.Email = strings.TrimSpace(a.Email)
	a.AddressLine1 = strings.TrimSpace(a.AddressLine1)
	a.AddressLine2 = strings.TrimSpace(a.AddressLine2)
	a.City = strings.TrimSpace(a.City)
	a.State = a.Jurisdiction()
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	return a
}
