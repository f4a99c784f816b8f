package events

import (
	"context"
	"sync"
	"time"

	"github.com/paybridge/paybridge/infra/logger"
	"github.com/paybridge/paybridge/infra/opensearch"
)

// Event is one webhook notification delivered to subscribers
type Event struct {
	Name       string
	Provider   string
	Reference  string
	Payload    map[string]any
	ReceivedAt time.Time
}

// Subscriber consumes dispatched events
type Subscriber interface {
	Notify(ctx context.Context, event Event)
}

// SubscriberFunc adapts a function to the Subscriber interface
type SubscriberFunc func(ctx context.Context, event Event)

func (f SubscriberFunc) Notify(ctx context.Context, event Event) { f(ctx, event) }

// Dispatcher fans events out to registered subscribers. Subscribers run
// synchronously in registration order; a slow subscriber belongs behind
// its own channel.
type Dispatcher struct {
	mu   sync.RWMutex
	subs []Subscriber
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers a subscriber for all events
func (d *Dispatcher) Subscribe(sub Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, sub)
}

// Dispatch delivers one event to every subscriber. Implements the
// dispatch engine's EventSink contract.
func (d *Dispatcher) Dispatch(ctx context.Context, name, providerName, reference string, payload map[string]any) {
	event := Event{
		Name:       name,
		Provider:   providerName,
		Reference:  reference,
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	}

	d.mu.RLock()
	subs := make([]Subscriber, len(d.subs))
	copy(subs, d.subs)
	d.mu.RUnlock()

	for _, sub := range subs {
		sub.Notify(ctx, event)
	}
}

// NewAuditSubscriber returns a subscriber that records every event as a
// payment audit record in OpenSearch
func NewAuditSubscriber(osLogger *opensearch.Logger) Subscriber {
	return SubscriberFunc(func(_ context.Context, event Event) {
		osLogger.IndexPaymentEvent(opensearch.PaymentEvent{
			Timestamp: event.ReceivedAt,
			Provider:  event.Provider,
			Operation: event.Name,
			Reference: event.Reference,
			Success:   true,
		})
	})
}

// NewLogSubscriber returns a subscriber that logs every event
func NewLogSubscriber() Subscriber {
	return SubscriberFunc(func(_ context.Context, event Event) {
		logger.Info("Webhook event dispatched", logger.LogContext{
			Provider: event.Provider,
			Fields: map[string]any{
				"event":     event.Name,
				"reference": event.Reference,
			},
		})
	})
}
