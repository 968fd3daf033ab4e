package xroute

import "context"

// Delivery is a received envelope with Ack/Nack semantics.
type Delivery interface {
	Envelope() *Envelope
	Ack(ctx context.Context) error
	Nack(ctx context.Context, reason error) error
}

// Subscription is an active subscription that can be closed.
type Subscription interface {
	Close() error
}

// Transport is the Strategy interface for message brokers.
type Transport interface {
	// Publish sends envelopes to a topic.
	Publish(ctx context.Context, topic string, envs ...*Envelope) error
	// Subscribe binds handler to a topic within a consumer group. The
	// transport drives delivery in the background and honors ctx.
	Subscribe(ctx context.Context, topic, group string, handler func(Delivery)) (Subscription, error)
	// Close releases resources.
	Close(ctx context.Context) error
}
