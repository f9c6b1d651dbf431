// Package pubsub provides a generic publish/subscribe event system used to fan
// out rendered-text changes and log entries.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// AddedEvent is published when an element is registered and first rendered.
	AddedEvent EventType = "added"
	// UpdatedEvent is published when an element's rendered text changes.
	UpdatedEvent EventType = "updated"
	// RemovedEvent is published when an element is unregistered.
	RemovedEvent EventType = "removed"
	// LoggedEvent carries a formatted log line.
	LoggedEvent EventType = "logged"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
