package navi

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/jacklaaa89/navi/amqp"
)

// Payload a JSON object sent or received as a message body.
type Payload = map[string]any

// Headers the AMQP headers attached to a message.
type Headers = map[string]any

// header names written by the publisher and the listener.
const (
	HeaderMessageID    = "message_id"
	HeaderPublishedAt  = "published_at"
	HeaderFromHost     = "from_host"
	HeaderListenerName = "listener_name"
	HeaderQueueName    = "queue_name"
)

// defaultLogger the logger used unless WithLogger is supplied.
var defaultLogger logrus.FieldLogger = logrus.WithField("logger", "navi")

// Option customises a Publisher or a Listener.
type Option func(*options)

type options struct {
	dialer amqp.Dialer
	logger logrus.FieldLogger
}

// WithDialer replaces the rabbitmq dialer built from the Config, every connection is opened through d.
func WithDialer(d amqp.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithLogger replaces the package logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

func newOptions(params ConnectionParams, opts []Option) options {
	o := options{logger: defaultLogger}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dialer == nil {
		o.dialer = params.Dialer(context.Background())
	}
	if o.logger == nil {
		o.logger = defaultLogger
	}
	return o
}
