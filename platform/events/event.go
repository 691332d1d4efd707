// Package events is the in-process publish/subscribe fabric. Modules react
// to each other's state changes through it instead of importing each other.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event carried on the bus.
type Event interface {
	// EventName identifies the event type, e.g. "crm.deal.stage_changed".
	EventName() string
	// OccurredAt is when the change the event describes happened.
	OccurredAt() time.Time
}

// BaseEvent carries the occurrence timestamp; domain events embed it.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a base event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events of one subscribed type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// Bus publishes domain events to subscribed handlers.
type Bus interface {
	// Publish dispatches to the event's handlers without waiting for them.
	Publish(ctx context.Context, event Event)

	// PublishSync dispatches and waits for every handler, joining errors.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler for the named event type. Registration
	// happens in the composition root, before the first Publish.
	Subscribe(eventName string, handler Handler)
}
