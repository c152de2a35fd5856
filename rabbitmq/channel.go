package rabbitmq

import (
	"context"
	"errors"
	"sync"

	"github.com/rabbitmq/amqp091-go"

	"github.com/jacklaaa89/navi/amqp"
)

// channel represents a wrapped amqp091.Channel
type channel struct {
	mu     sync.RWMutex // mu a guarding mutex for the internal channel.
	closed bool         // closed whether we have called Close on this channel.

	// consumers the cancel functions of every active consume, keyed by consumer name.
	consumers map[string]context.CancelFunc

	Channel amqp091Channel // the underlying channel.
}

// CreateQueue attempts to create a new queue.
func (c *channel) CreateQueue(ctx context.Context, name string, durable, autoDelete, exclusive bool) (amqp.Queue, error) {
	var q amqp091.Queue
	err := c.onChannel(func(ch amqp091Channel) error {
		var qErr error
		q, qErr = ch.QueueDeclare(name, durable, autoDelete, exclusive, false, nil)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	return &queue{q, c}, nil
}

// BindQueue attempts to bind a queue to an exchange.
func (c *channel) BindQueue(ctx context.Context, queue, exchange, routingKey string) error {
	return c.onChannel(func(ch amqp091Channel) error {
		return ch.QueueBind(queue, routingKey, exchange, false, nil)
	})
}

// CreateExchange attempts to create a new exchange.
func (c *channel) CreateExchange(
	ctx context.Context,
	name string,
	typ amqp.ExchangeType,
	durable, autoDelete bool,
) error {
	return c.onChannel(func(ch amqp091Channel) error {
		return ch.ExchangeDeclare(name, string(typ), durable, autoDelete, false, false, nil)
	})
}

// Publish attempts to publish a message onto an exchange with the supplied routing key.
func (c *channel) Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	return c.onChannel(func(ch amqp091Channel) error {
		return ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp091.Publishing{
			Headers:     amqp091.Table(msg.Headers),
			ContentType: msg.ContentType,
			MessageId:   msg.MessageID,
			Body:        msg.Body,
		})
	})
}

// Close wraps the original close function, stopping any active consumes first.
func (c *channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	c.closed = true
	c.mu.Unlock()

	c.closeActiveConsumes()
	return c.Channel.Close()
}

// IsClosed wraps the original IsClosed function.
func (c *channel) IsClosed() bool {
	if c == nil {
		return true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return true
	}

	return isClosed(c.Channel)
}

// Consume attempts to consume from a queue, this function
// differs slightly from the original SDK's implementation where
// this function will also take the supplied context into
// consideration when consuming messages.
func (c *channel) Consume(
	ctx context.Context,
	queue, consumerName string,
	autoAck, exclusive bool,
) (messages <-chan amqp.Message, cancel amqp.CancelFunc, err error) {
	msgs := make(chan amqp.Message)
	cancel, err = c.consume(ctx, queue, consumerName, autoAck, exclusive, msgs)
	return msgs, cancel, err
}

// onChannel helper function to perform an action on the raw amqp091.Channel
func (c *channel) onChannel(fn func(ch amqp091Channel) error) error {
	if c.IsClosed() {
		return ErrClosed
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return fn(c.Channel)
}

// represents a function which does nothing.
var emptyFunc = func() {
	// intentionally empty to stop calling a nil function
	// to cancel the consume process on error.
}

// consume starts consuming on a queue, pushing new deliveries to the supplied ch.
// ch is closed once the consume finishes, either by cancellation or because the
// broker stopped delivering (channel or connection closed).
func (c *channel) consume(
	ctx context.Context,
	queue, consumerName string,
	autoAck, exclusive bool,
	ch chan<- amqp.Message,
) (amqp.CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)

	var deliveries <-chan amqp091.Delivery
	err := c.onChannel(func(raw amqp091Channel) error {
		var cErr error
		deliveries, cErr = raw.Consume(queue, consumerName, autoAck, exclusive, false, false, nil)
		return cErr
	})
	if err != nil {
		cancel()
		return emptyFunc, err
	}

	c.registerConsume(consumerName, cancel)

	go func() {
		defer close(ch)
		defer c.deregisterConsume(consumerName)
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				// the context is for the consuming context only
				// it doesn't control the entire channel connection.
				err := c.onChannel(func(raw amqp091Channel) error {
					return raw.Cancel(consumerName, false)
				})
				if err != nil && !errors.Is(err, ErrClosed) {
					logError(ctx, err)
				}
				return
			case d, ok := <-deliveries:
				if !ok {
					return // the broker will not deliver anything else.
				}
				select {
				case ch <- &message{d}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return cancel, nil
}

// registerConsume records the cancel function of an active consume.
func (c *channel) registerConsume(consumerName string, cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consumers == nil {
		c.consumers = make(map[string]context.CancelFunc)
	}

	c.consumers[consumerName] = cancel
}

// deregisterConsume removes a finished consume.
func (c *channel) deregisterConsume(consumerName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.consumers, consumerName)
}

// closeActiveConsumes cancels every active consume on the channel.
func (c *channel) closeActiveConsumes() {
	c.mu.Lock()
	consumers := c.consumers
	c.consumers = make(map[string]context.CancelFunc)
	c.mu.Unlock()

	for _, cancel := range consumers {
		cancel()
	}
}
