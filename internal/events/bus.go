package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/glowkart/backend-cart/internal/obs"
)

// Event describes a cart acknowledgment fanned out to subscribers.
type Event struct {
	Topic      string    `json:"topic"`
	CartID     string    `json:"cartId"`
	Payload    any       `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Notifier reacts to emitted events (webhooks, metrics, UI acks).
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Bus fans cart events out to the configured notifiers. Delivery is
// best-effort: a failing notifier is logged and never blocks the mutation
// that produced the event.
type Bus struct {
	Notifiers []Notifier
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Emit dispatches the event to all notifiers. It never returns an error to
// the caller; failures are logged.
func (b *Bus) Emit(ctx context.Context, topic, cartID string, payload any) {
	if b == nil {
		return
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return
	}
	now := time.Now()
	if b.Now != nil {
		now = b.Now()
	}
	ev := Event{Topic: topic, CartID: cartID, Payload: payload, OccurredAt: now}
	obs.IncCartEvent(topic)

	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, ev); err != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", err))
		}
	}
	if joined != nil {
		b.Logger.Warn().Err(joined).Str("topic", topic).Str("cart_id", cartID).Msg("event delivery incomplete")
	}
}
