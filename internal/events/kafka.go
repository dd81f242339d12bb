package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the forwarder needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaForwarder copies bus events to a Kafka topic from a background loop,
// so a slow broker never delays the request that published the event.
type KafkaForwarder struct {
	writer  MessageWriter
	queue   chan *Event
	timeout time.Duration
	logger  *zerolog.Logger
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func NewKafkaForwarder(writer MessageWriter, queueSize int, logger *zerolog.Logger) *KafkaForwarder {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &KafkaForwarder{
		writer:  writer,
		queue:   make(chan *Event, queueSize),
		timeout: 10 * time.Second,
		logger:  logger,
	}
}

// Attach subscribes the forwarder to every event on bus.
func (f *KafkaForwarder) Attach(bus *EventBus) {
	bus.SubscribeAll(f.Handle)
}

// Handle queues an event for delivery. A full queue drops the event.
func (f *KafkaForwarder) Handle(event *Event) error {
	select {
	case f.queue <- event:
		return nil
	default:
		return fmt.Errorf("kafka forward queue full, dropping %s", event.Type)
	}
}

// Start delivers queued events until ctx is done, then flushes what is left.
func (f *KafkaForwarder) Start(ctx context.Context) {
	f.logger.Info().Msg("Kafka forwarder started")
	for {
		select {
		case <-ctx.Done():
			f.drain()
			if err := f.writer.Close(); err != nil {
				f.logger.Warn().Err(err).Msg("failed to close kafka writer")
			}
			f.logger.Info().Msg("Kafka forwarder stopped")
			return
		case event := <-f.queue:
			f.deliver(context.Background(), event)
		}
	}
}

func (f *KafkaForwarder) drain() {
	for {
		select {
		case event := <-f.queue:
			f.deliver(context.Background(), event)
		default:
			return
		}
	}
}

func (f *KafkaForwarder) deliver(ctx context.Context, event *Event) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(messageKey(event)),
		Value: event.Payload,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			f.logger.Warn().Str("event", event.Type).Msg("kafka write timed out")
			return
		}
		f.logger.Error().Err(err).Str("event", event.Type).Msg("failed to forward event")
		return
	}
	f.logger.Debug().Str("event", event.Type).Str("key", string(msg.Key)).Msg("event forwarded")
}

// messageKey partitions by booking so one booking's events stay ordered.
func messageKey(event *Event) string {
	var ids struct {
		BookingID string `json:"booking_id"`
		UserID    string `json:"user_id"`
	}
	if err := json.Unmarshal(event.Payload, &ids); err == nil {
		if ids.BookingID != "" {
			return ids.BookingID
		}
		if ids.UserID != "" {
			return ids.UserID
		}
	}
	return event.Type
}
