package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	d "github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	r "github.com/jyush98/jason-co-ecom-sub003/internal/repository"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// PaymentEvent is an asynchronous payment outcome published by the processor,
// typically after a customer completed a requires_action step.
type PaymentEvent struct {
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
}

var errMalformedEvent = errors.New("malformed payment event")

const (
	defaultRetryBackoffMin = 500 * time.Millisecond
	defaultRetryBackoffMax = 30 * time.Second
)

type PaymentSettler interface {
	ConfirmPayment(ctx context.Context, reference string) (*d.Order, error)
	FailPayment(ctx context.Context, reference, reason string) (*d.Order, error)
}

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	settler PaymentSettler
	reader  MessageReader

	retryBackoffMin time.Duration
	retryBackoffMax time.Duration
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewConsumer(settler PaymentSettler, reader MessageReader) *Consumer {
	return &Consumer{
		settler:         settler,
		reader:          reader,
		retryBackoffMin: defaultRetryBackoffMin,
		retryBackoffMax: defaultRetryBackoffMax,
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.Close()
	for {
		if ctx.Err() != nil {
			return nil
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing kafka reader")
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}
		log.Error().Err(err).Msg("error reading payment event")
		return
	}

	if !c.apply(ctx, m) {
		// left uncommitted so the group redelivers it after a rebalance or restart
		return
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Int64("offset", m.Offset).Msg("failed to commit payment event")
	}
}

// apply handles m until it is applied or permanently rejected, retrying transient failures
// in place so no later offset is committed past it. It reports false only when ctx ended first.
func (c *Consumer) apply(ctx context.Context, m kafka.Message) bool {
	for attempt := 0; ; attempt++ {
		err := c.handle(ctx, m.Value)
		if err == nil {
			return true
		}
		if permanent(err) {
			log.Warn().Err(err).Int64("offset", m.Offset).Msg("payment event skipped")
			return true
		}

		wait := c.calculateBackoff(attempt)
		log.Error().Err(err).
			Int64("offset", m.Offset).
			Int("attempt", attempt+1).
			Dur("retry_in", wait).
			Msg("payment event not applied, retrying")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

func (c *Consumer) calculateBackoff(attempt int) time.Duration {
	wait := c.retryBackoffMin
	for i := 0; i < attempt && wait < c.retryBackoffMax; i++ {
		wait *= 2
	}
	return min(wait, c.retryBackoffMax)
}

// permanent errors will not go away on redelivery.
func permanent(err error) bool {
	return errors.Is(err, errMalformedEvent) ||
		errors.Is(err, r.ErrOrderNotFound) ||
		errors.Is(err, d.ErrState) ||
		errors.Is(err, d.ErrValidation)
}

func (c *Consumer) handle(ctx context.Context, payload []byte) error {
	var event PaymentEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	if event.ReferenceID == "" {
		return fmt.Errorf("%w: missing reference_id", errMalformedEvent)
	}

	var (
		o   *d.Order
		err error
	)
	switch d.PaymentStatus(event.Status) {
	case d.PaymentStatusSucceeded:
		o, err = c.settler.ConfirmPayment(ctx, event.ReferenceID)
	case d.PaymentStatusFailed:
		o, err = c.settler.FailPayment(ctx, event.ReferenceID, event.Reason)
	default:
		// requires_action and unknown statuses carry nothing to apply
		return nil
	}

	if errors.Is(err, r.ErrOrderNotFound) {
		return fmt.Errorf("no order for payment %s: %w", event.ReferenceID, err)
	}
	if err != nil {
		return err
	}

	log.Info().
		Str("order_number", o.OrderNumber).
		Str("payment_reference", event.ReferenceID).
		Str("status", o.Status.String()).
		Msg("payment event applied")
	return nil
}
