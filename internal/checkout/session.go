package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	d "github.com/jyush98/jason-co-ecom-sub003/internal/domain"
)

var (
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrSessionCompleted is returned when a session that already produced an order is edited.
	ErrSessionCompleted = fmt.Errorf("%w: checkout already completed", d.ErrState)
)

// Session is one customer's walk through the checkout steps. Its ID doubles as the
// checkout ID that makes order creation idempotent.
type Session struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"user_id"`
	Step        Step      `json:"step"`
	Form        Form      `json:"form"`
	OrderNumber string    `json:"order_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Session) Completed() bool {
	return s.OrderNumber != ""
}

type SessionStore interface {
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	SaveSession(ctx context.Context, s *Session) error
	DeleteSession(ctx context.Context, id uuid.UUID) error
}
