package amqp

import (
	"context"
	"io"
)

// ExchangeType represents a type of exchange.
type ExchangeType string

const (
	// ExchangeTypeDirect represents a direct exchange
	// this is where a message is posted to bound queues where the routing key matches exactly.
	ExchangeTypeDirect ExchangeType = "direct"
	// ExchangeTypeFanout represents a fanout exchange
	// this is where the routing key is ignored and all bound queues receive a copy of the message.
	ExchangeTypeFanout ExchangeType = "fanout"
	// ExchangeTypeTopic represents a topic exchange
	// this extends on top of a direct exchange by allowing the routing key to be pattern based rather
	// than having to match exactly.
	ExchangeTypeTopic ExchangeType = "topic"
)

// CancelFunc a function which can be used to cancel an active consume
// this is safe to be called concurrently.
type CancelFunc = func()

// Publishing is an outbound message.
type Publishing struct {
	MessageID   string
	ContentType string
	Headers     map[string]any
	Body        []byte
}

// Channel represents a single AMQP channel.
//
// A channel is described as a lightweight connection which can be spawned from a single TCP connection
// source. All AMQP operations are derived from a Channel rather than the connection itself.
type Channel interface {
	io.Closer

	// CreateQueue attempts to declare a queue, returning the declared queue to use.
	CreateQueue(ctx context.Context, name string, durable, autoDelete, exclusive bool) (Queue, error)
	// BindQueue attempts to bind a queue to an exchange.
	BindQueue(ctx context.Context, queue, exchange, routingKey string) error
	// CreateExchange attempts to declare an exchange.
	CreateExchange(ctx context.Context, name string, typ ExchangeType, durable, autoDelete bool) error
	// Publish attempts to publish a message to an exchange using the supplied routing key.
	Publish(ctx context.Context, exchange, routingKey string, msg Publishing) error
	// Consume starts consuming messages from a queue, inbound messages are send to the returned channel.
	// The returned channel is closed when the consume is cancelled or the broker stops delivering.
	Consume(ctx context.Context, queue, consumerName string, autoAck, exclusive bool) (msgs <-chan Message, cancel CancelFunc, err error)
	// IsClosed determines if the channel is closed.
	IsClosed() bool
}
