package navi

import (
	"context"
)

// Publish builds a Publisher for routingKey and publishes message once.
// Only a construction error is returned, see Publisher.Publish.
func Publish(ctx context.Context, cfg *Config, routingKey string, message Payload, opts ...Option) error {
	p, err := NewPublisher(cfg, routingKey, opts...)
	if err != nil {
		return err
	}

	p.Publish(ctx, message)
	return nil
}

// Listen builds a Listener and starts it.
func Listen(cfg *Config, queueName, routingKey string, callback Callback, opts ...Option) (*Listener, error) {
	l, err := NewListener(cfg, queueName, routingKey, callback, opts...)
	if err != nil {
		return nil, err
	}

	l.Listen()
	return l, nil
}
