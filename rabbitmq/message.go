package rabbitmq

import (
	"bytes"
	"io"

	"github.com/rabbitmq/amqp091-go"
)

// message implements a AMQP message
type message struct {
	amqp091.Delivery
}

// Body returns the message body as an io.Reader
func (m *message) Body() io.Reader {
	return bytes.NewReader(m.Delivery.Body)
}

// Headers returns a copy of the delivered headers.
func (m *message) Headers() map[string]any {
	h := make(map[string]any, len(m.Delivery.Headers))
	for k, v := range m.Delivery.Headers {
		h[k] = v
	}
	return h
}

// RoutingKey the routing key the message was published with.
func (m *message) RoutingKey() string {
	return m.Delivery.RoutingKey
}

// Redelivered whether the message has been redelivered previously.
func (m *message) Redelivered() bool {
	return m.Delivery.Redelivered
}
