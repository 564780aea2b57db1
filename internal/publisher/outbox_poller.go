package publisher

import (
	"context"
	"time"

	r "github.com/jyush98/jason-co-ecom-sub003/internal/repository"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const batchSize = 100

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

// OutboxPoller relays order events committed to the outbox table onto Kafka.
// Delivery is at least once: an event is marked processed only after the write succeeds.
type OutboxPoller struct {
	eventTick time.Duration
	repo      r.OutboxRepository
	writer    MessageWriter
}

func NewOutboxPoller(repo r.OutboxRepository, writer MessageWriter) *OutboxPoller {
	return &OutboxPoller{eventTick: time.Second, repo: repo, writer: writer}
}

func (p *OutboxPoller) Run(ctx context.Context) error {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	defer func() {
		if err := p.writer.Close(); err != nil {
			log.Warn().Err(err).Msg("close outbox writer")
		}
	}()

	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch outbox events")
		return 0
	}

	published := 0
	for _, event := range events {
		if err := p.publishToKafka(ctx, event); err != nil {
			log.Error().Err(err).Int64("event_id", event.ID).Msg("failed to publish outbox event")
			// keep ordering per order: stop and retry the rest next tick
			break
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			log.Error().Err(err).Int64("event_id", event.ID).Msg("failed to mark outbox event as processed")
			break
		}
		published++
	}
	return published
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *r.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id keeps one order's events in one partition
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
