package notify

import (
	"context"
	"log"
	"time"

	"team-chat/internal/rabbitmq"
)

// Notifier dispatches user notifications at message/assignment boundaries.
// Dispatch is fire-and-forget: failures are logged and never reach the
// caller. Delivery to devices is another service's concern.
type Notifier interface {
	Notify(ctx context.Context, userID, kind, title, body string, context map[string]string)
}

// Envelope is the wire shape published to the notification exchange.
type Envelope struct {
	SchemaVersion int               `json:"schema_version"`
	EventType     string            `json:"event_type"`
	OccurredAt    string            `json:"occurred_at"`
	Service       string            `json:"service"`
	Environment   string            `json:"environment"`
	UserID        string            `json:"user_id"`
	Kind          string            `json:"kind"`
	Title         string            `json:"title"`
	Body          string            `json:"body"`
	Context       map[string]string `json:"context,omitempty"`
}

// Dispatcher publishes envelopes over RabbitMQ.
type Dispatcher struct {
	publisher   rabbitmq.Publisher
	service     string
	environment string
}

// NewDispatcher builds a Dispatcher over the given publisher.
func NewDispatcher(publisher rabbitmq.Publisher, service, environment string) *Dispatcher {
	return &Dispatcher{publisher: publisher, service: service, environment: environment}
}

// Notify publishes asynchronously so the calling write never blocks on the
// broker.
func (d *Dispatcher) Notify(ctx context.Context, userID, kind, title, body string, extra map[string]string) {
	if d == nil || d.publisher == nil {
		return
	}
	envelope := Envelope{
		SchemaVersion: 1,
		EventType:     "notification",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       d.service,
		Environment:   d.environment,
		UserID:        userID,
		Kind:          kind,
		Title:         title,
		Body:          body,
		Context:       extra,
	}
	go func() {
		publishCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := d.publisher.Publish(publishCtx, "notifications."+kind, envelope, nil); err != nil {
			log.Printf("notify: publish failed user=%s kind=%s: %v", userID, kind, err)
		}
	}()
}
