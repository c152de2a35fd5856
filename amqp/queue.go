package amqp

import (
	"context"
	"io"
)

// Message represents an inbound AMQP message.
type Message interface {
	// Body returns the message Body as a reader.
	Body() io.Reader
	// Headers returns a copy of the headers delivered with the message, never nil.
	Headers() map[string]any
	// RoutingKey the routing key the message was published with.
	RoutingKey() string
	// Redelivered whether the message has been redelivered previously.
	Redelivered() bool
}

// Queue represents a single AMQP queue instance.
type Queue interface {
	// Name returns the name of the queue.
	Name() string
	// Bind attempts to bind this queue to an exchange based on the supplied routing key.
	Bind(ctx context.Context, exchange, routingKey string) error
	// Consume starts consuming messages from a queue, inbound messages are send to the returned channel.
	Consume(ctx context.Context, consumerName string, autoAck, exclusive bool) (messages <-chan Message, cancel CancelFunc, err error)
}
