package shared

import "context"

// EventHandler processes domain events
type EventHandler interface {
	// Handle processes a single domain event
	Handle(ctx context.Context, event DomainEvent) error

	// EventTypes returns the event types this handler is interested in
	// An empty slice means the handler receives all events
	EventTypes() []string
}

// EventPublisher publishes domain events to subscribers
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber manages event handler subscriptions
type EventSubscriber interface {
	Subscribe(handler EventHandler, eventTypes ...string) error
	Unsubscribe(handler EventHandler, eventTypes ...string) error
}

// EventBus combines publishing and subscribing with lifecycle management
type EventBus interface {
	EventPublisher
	EventSubscriber
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// OutboxEventSaver persists domain events to the outbox within a transaction.
// The txProvider is the transaction handle of the underlying persistence layer.
type OutboxEventSaver interface {
	SaveEvents(ctx context.Context, txProvider interface{}, events ...DomainEvent) error
}
