package rabbitmq

import (
	"context"
	"io"

	"github.com/rabbitmq/amqp091-go"
)

// the file contains interfaces for the base amqp091 library, this is so we can easily override in tests, and it also
// limits the functionality to what we need.

// dialConfig is the dialer function to use to connect to amqp091 with config
var dialConfig = dialConfigAMQP091

// see: github.com/rabbitmq/amqp091-go/channel.go
type amqp091Channel interface {
	io.Closer
	IsClosed() bool
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(queue, routingKey, exchange string, noWait bool, args amqp091.Table) error
	ExchangeDeclare(name, typ string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, routingKey string, mandatory, immediate bool, msg amqp091.Publishing) error
	Cancel(consumerName string, noWait bool) error
	Consume(
		queue, consumerName string,
		autoAck, exclusive, noLocal, noWait bool,
		args amqp091.Table,
	) (<-chan amqp091.Delivery, error)
}

// see: github.com/rabbitmq/amqp091-go/connection.go
type amqp091Connection interface {
	io.Closer
	IsClosed() bool
	Channel() (amqp091Channel, error)
	NotifyClose(rcv chan *amqp091.Error) chan *amqp091.Error
}

// amqp091Conn adapts *amqp091.Connection so Channel returns our narrowed channel interface.
type amqp091Conn struct {
	*amqp091.Connection
}

// Channel opens a new channel on the underlying connection.
func (c amqp091Conn) Channel() (amqp091Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialConfigAMQP091(addr string, c Config) (amqp091Connection, error) { //nolint // config has to be non-pointer to conform to amqp091.
	conn, err := amqp091.DialConfig(addr, c)
	if err != nil {
		return nil, err
	}
	return amqp091Conn{conn}, nil
}
