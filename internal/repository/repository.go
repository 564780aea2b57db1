package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	// ErrCartConflict means another writer saved the cart after it was read.
	ErrCartConflict = fmt.Errorf("%w: cart was modified concurrently", domain.ErrState)

	ErrOrderNotFound     = errors.New("order not found")
	ErrDuplicateCheckout = errors.New("order for this checkout already exists")
	ErrDuplicateNumber   = errors.New("order number already taken")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// CartRepository defines the interface for cart data operations
// Consumers define this interface, not the MongoDB implementation
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	// SaveCart replaces the stored cart if its version still equals cart.Version and bumps the version.
	SaveCart(ctx context.Context, cart *domain.Cart) error
	// DeleteCart removes the cart only while it is still at version.
	DeleteCart(ctx context.Context, userID string, version int64) error
}

// OrderFilter narrows admin listings. Zero values match everything.
type OrderFilter struct {
	Status   domain.OrderStatus
	From     time.Time
	To       time.Time
	Customer string
	Limit    int
	Offset   int
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error)
	GetOrderByCheckoutID(ctx context.Context, checkoutID uuid.UUID) (*domain.Order, error)
	GetOrderByPaymentReference(ctx context.Context, ref string) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	ListOrdersByEmail(ctx context.Context, email string) ([]*domain.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]*domain.Order, error)
	// CompareAndSetStatus moves the order from `from` to `to` only if it is still in `from`,
	// recording change in the status history and an outbox event in the same transaction.
	CompareAndSetStatus(ctx context.Context, change domain.StatusChange, at time.Time) (*domain.Order, error)
	UpdateInternalNotes(ctx context.Context, number, notes string, at time.Time) (*domain.Order, error)
	StatusHistory(ctx context.Context, number string) ([]domain.StatusChange, error)
}

// OutboxEvent is a pending message for the order events topic.
type OutboxEvent struct {
	ID          int64     `db:"id"`
	AggregateID string    `db:"aggregate_id"`
	EventType   string    `db:"event_type"`
	Payload     []byte    `db:"payload"`
	CreatedAt   time.Time `db:"created_at"`
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}
