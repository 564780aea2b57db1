// Package breaker puts circuit breakers in front of the collaborators checkout cannot run without.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jyush98/jason-co-ecom-sub003/internal/catalog"
	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/jyush98/jason-co-ecom-sub003/internal/payment"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

// ErrOpen is returned without calling the collaborator while its breaker is open.
var ErrOpen = errors.New("circuit open")

type Config struct {
	// Failures is the number of consecutive failures that opens the breaker.
	Failures uint32
	// Cooldown is how long the breaker stays open before letting a trial call through.
	Cooldown time.Duration
}

func DefaultConfig() Config {
	return Config{Failures: 5, Cooldown: 30 * time.Second}
}

func newBreaker[T any](name string, cfg Config, successful func(error) bool) *gobreaker.CircuitBreaker[T] {
	if cfg.Failures == 0 {
		cfg.Failures = DefaultConfig().Failures
	}
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
		IsSuccessful: successful,
	})
}

// callerFault errors say nothing about the collaborator's health.
func callerFault(err error) bool {
	return err == nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, domain.ErrValidation)
}

func wrap(name string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w: %w", name, ErrOpen, err)
	}
	return err
}

type Charger interface {
	Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error)
}

// Payments guards a payment processor. A declined charge is a normal result, not a failure.
type Payments struct {
	next Charger
	cb   *gobreaker.CircuitBreaker[*payment.ChargeResult]
}

func NewPayments(next Charger, cfg Config) *Payments {
	return &Payments{
		next: next,
		cb:   newBreaker[*payment.ChargeResult]("payment", cfg, callerFault),
	}
}

func (p *Payments) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	res, err := p.cb.Execute(func() (*payment.ChargeResult, error) {
		return p.next.Charge(ctx, req)
	})
	if err != nil {
		return nil, wrap("payment", err)
	}
	return res, nil
}

func (p *Payments) State() gobreaker.State {
	return p.cb.State()
}

type ProductLookup interface {
	GetProduct(ctx context.Context, id int64) (*catalog.Product, error)
}

// Products guards catalog lookups. Unknown products do not count against the catalog.
type Products struct {
	next ProductLookup
	cb   *gobreaker.CircuitBreaker[*catalog.Product]
}

func NewProducts(next ProductLookup, cfg Config) *Products {
	return &Products{
		next: next,
		cb:   newBreaker[*catalog.Product]("catalog", cfg, callerFault),
	}
}

func (p *Products) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	product, err := p.cb.Execute(func() (*catalog.Product, error) {
		return p.next.GetProduct(ctx, id)
	})
	if err != nil {
		return nil, wrap("catalog", err)
	}
	return product, nil
}

func (p *Products) State() gobreaker.State {
	return p.cb.State()
}
