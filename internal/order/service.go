package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	d "github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	r "github.com/jyush98/jason-co-ecom-sub003/internal/repository"
	"github.com/rs/zerolog/log"
)

const (
	ActorSystem   = "system"
	ActorCustomer = "customer"
	ActorPayment  = "payment"
	ActorAdmin    = "admin"
)

const MaxInternalNotesLength = 2000

var (
	ErrEmailRequired      = fmt.Errorf("%w: email is required", d.ErrValidation)
	ErrTrackingNotAllowed = fmt.Errorf("%w: tracking number can only be set when shipping", d.ErrValidation)
	ErrNotesTooLong       = fmt.Errorf("%w: internal notes exceed %d characters", d.ErrValidation, MaxInternalNotesLength)
)

// View is an order as presented to customers and admins.
type View struct {
	*d.Order
	Cancellable bool `json:"cancellable"`
	Returnable  bool `json:"returnable"`
	Progress    int  `json:"progress"`
}

// ExportRow is one flattened order for admin export.
type ExportRow struct {
	OrderNumber string        `json:"order_number"`
	CreatedAt   time.Time     `json:"created_at"`
	Customer    string        `json:"customer"`
	Email       string        `json:"email"`
	Status      d.OrderStatus `json:"status"`
	Tracking    string        `json:"tracking_number,omitempty"`
	ItemCount   int           `json:"item_count"`
	Subtotal    d.Money       `json:"subtotal"`
	Tax         d.Money       `json:"tax"`
	Shipping    d.Money       `json:"shipping"`
	Discount    d.Money       `json:"discount"`
	Total       d.Money       `json:"total"`
}

// StatusUpdate asks to move an order to To. ExpectedFrom, when set, is the status the caller saw;
// the update fails if the order has moved on since.
type StatusUpdate struct {
	OrderNumber  string
	ExpectedFrom d.OrderStatus
	To           d.OrderStatus
	Actor        string
	Reason       string
	// TrackingNumber is only accepted together with To == shipped.
	TrackingNumber string
}

type Service struct {
	repo    r.OrderRepository
	machine *Machine
}

func NewService(repo r.OrderRepository, machine *Machine) *Service {
	return &Service{repo: repo, machine: machine}
}

func (s *Service) Machine() *Machine {
	return s.machine
}

func (s *Service) view(o *d.Order) *View {
	return &View{
		Order:       o,
		Cancellable: s.machine.IsCancellable(*o),
		Returnable:  s.machine.IsReturnable(*o),
		Progress:    s.machine.Progress(*o),
	}
}

func (s *Service) views(orders []*d.Order) []*View {
	out := make([]*View, 0, len(orders))
	for _, o := range orders {
		out = append(out, s.view(o))
	}
	return out
}

// customerView drops the staff-only fields.
func (s *Service) customerView(o *d.Order) *View {
	c := *o
	c.InternalNotes = ""
	return s.view(&c)
}

func (s *Service) customerViews(orders []*d.Order) []*View {
	out := make([]*View, 0, len(orders))
	for _, o := range orders {
		out = append(out, s.customerView(o))
	}
	return out
}

func (s *Service) Get(ctx context.Context, number string) (*View, error) {
	o, err := s.repo.GetOrderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return s.view(o), nil
}

// GetForUser hides orders that belong to someone else behind ErrOrderNotFound.
func (s *Service) GetForUser(ctx context.Context, userID, number string) (*View, error) {
	o, err := s.repo.GetOrderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, r.ErrOrderNotFound
	}
	return s.customerView(o), nil
}

func (s *Service) List(ctx context.Context, filter r.OrderFilter) ([]*View, error) {
	orders, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.views(orders), nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]*View, error) {
	orders, err := s.repo.ListOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.customerViews(orders), nil
}

// Recent returns the user's most recently placed order.
func (s *Service) Recent(ctx context.Context, userID string) (*View, error) {
	orders, err := s.repo.ListOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, r.ErrOrderNotFound
	}
	return s.customerView(orders[0]), nil
}

func (s *Service) GuestLookup(ctx context.Context, email string) ([]*View, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	orders, err := s.repo.ListOrdersByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.customerViews(orders), nil
}

// UpdateStatus checks the lifecycle graph and then commits with a compare-and-set on the stored status.
func (s *Service) UpdateStatus(ctx context.Context, u StatusUpdate) (*View, error) {
	u.TrackingNumber = strings.TrimSpace(u.TrackingNumber)
	if u.TrackingNumber != "" && u.To != d.OrderStatusShipped {
		return nil, ErrTrackingNotAllowed
	}

	from := u.ExpectedFrom
	if from == "" {
		current, err := s.repo.GetOrderByNumber(ctx, u.OrderNumber)
		if err != nil {
			return nil, err
		}
		from = current.Status
	}

	if !CanTransition(from, u.To) {
		log.Warn().
			Str("order_number", u.OrderNumber).
			Str("from", from.String()).
			Str("to", u.To.String()).
			Msg("rejected order status change")
		return nil, &d.InvalidTransitionError{From: from, To: u.To}
	}

	actor := u.Actor
	if actor == "" {
		actor = ActorSystem
	}
	change := d.StatusChange{
		OrderNumber: u.OrderNumber,
		From:        from,
		To:          u.To,
		ChangedBy:   actor,
		Reason:      u.Reason,

		TrackingNumber: u.TrackingNumber,
	}

	updated, err := s.repo.CompareAndSetStatus(ctx, change, s.machine.now().UTC())
	if err != nil {
		var ite *d.InvalidTransitionError
		if errors.As(err, &ite) {
			log.Warn().Err(err).Str("order_number", u.OrderNumber).Msg("order status changed concurrently")
		}
		return nil, err
	}

	log.Info().
		Str("order_number", u.OrderNumber).
		Str("from", from.String()).
		Str("to", u.To.String()).
		Str("actor", actor).
		Msg("order status updated")
	return s.view(updated), nil
}

// Cancel cancels a customer's own order while it is still pending or confirmed.
func (s *Service) Cancel(ctx context.Context, userID, number, reason string) (*View, error) {
	v, err := s.GetForUser(ctx, userID, number)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "cancelled by customer"
	}
	updated, err := s.UpdateStatus(ctx, StatusUpdate{
		OrderNumber:  number,
		ExpectedFrom: v.Status,
		To:           d.OrderStatusCancelled,
		Actor:        ActorCustomer,
		Reason:       reason,
	})
	if err != nil {
		return nil, err
	}
	return s.customerView(updated.Order), nil
}

// SetInternalNotes replaces the staff notes on an order.
func (s *Service) SetInternalNotes(ctx context.Context, number, notes string) (*View, error) {
	notes = strings.TrimSpace(notes)
	if len([]rune(notes)) > MaxInternalNotesLength {
		return nil, ErrNotesTooLong
	}
	o, err := s.repo.UpdateInternalNotes(ctx, number, notes, s.machine.now().UTC())
	if err != nil {
		return nil, err
	}
	log.Info().Str("order_number", number).Msg("internal notes updated")
	return s.view(o), nil
}

func (s *Service) History(ctx context.Context, number string) ([]d.StatusChange, error) {
	if _, err := s.repo.GetOrderByNumber(ctx, number); err != nil {
		return nil, err
	}
	return s.repo.StatusHistory(ctx, number)
}

func (s *Service) Export(ctx context.Context, filter r.OrderFilter) ([]ExportRow, error) {
	orders, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	rows := make([]ExportRow, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, ExportRow{
			OrderNumber: o.OrderNumber,
			CreatedAt:   o.CreatedAt,
			Customer:    o.ShippingAddress.FullName(),
			Email:       o.ShippingAddress.Email,
			Status:      o.Status,
			Tracking:    o.TrackingNumber,
			ItemCount:   o.ItemCount(),
			Subtotal:    o.Subtotal,
			Tax:         o.TaxAmount,
			Shipping:    o.ShippingAmount,
			Discount:    o.DiscountAmount,
			Total:       o.TotalPrice,
		})
	}
	return rows, nil
}
