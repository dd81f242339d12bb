package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
	EventPaymentRefunded  = "payment_refunded"
	EventUserRegistered   = "user_registered"
)

// AllEventTypes lists every event the core publishes.
func AllEventTypes() []string {
	return []string{
		EventBookingCreated, EventBookingConfirmed, EventBookingCancelled,
		EventPaymentRefunded, EventUserRegistered,
	}
}

// BookingEventPayload is the booking snapshot sent to event consumers.
type BookingEventPayload struct {
	BookingID  string    `json:"booking_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	TotalPrice float64   `json:"total_price"`
	PaymentID  string    `json:"payment_id,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	At         time.Time `json:"at"`
}

type UserEventPayload struct {
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	At     time.Time `json:"at"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

func NewEventBus(logger *zerolog.Logger) *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers handler for every published event type.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	for _, t := range AllEventTypes() {
		b.Subscribe(t, handler)
	}
}

// Publish runs the subscribers of the event type synchronously. Handler
// errors are logged and never reach the publisher.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil && b.logger != nil {
			b.logger.Warn().Err(err).Str("event", event.Type).Msg("event handler failed")
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
