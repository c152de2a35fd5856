package navi

import (
	"context"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jacklaaa89/navi/amqp"
)

// publishedAtLayout the layout of the published_at header, always in UTC.
const publishedAtLayout = "2006-01-02 15:04:05.000000"

// for tests.
var (
	now      = time.Now
	hostname = os.Hostname
)

// Publisher publishes JSON messages onto the configured exchange using a fixed routing key.
//
// Every call to Publish opens and closes its own connection.
type Publisher struct {
	cfg        *Config
	routingKey string
	dial       amqp.Dialer
	logger     logrus.FieldLogger
}

// NewPublisher builds a Publisher, the routing key is required.
func NewPublisher(cfg *Config, routingKey string, opts ...Option) (*Publisher, error) {
	if routingKey == "" {
		return nil, &InitError{Reason: "routing key is required"}
	}

	params, err := newConnectionParams(cfg)
	if err != nil {
		return nil, err
	}

	o := newOptions(params, opts)
	return &Publisher{
		cfg:        cfg,
		routingKey: routingKey,
		dial:       o.dialer,
		logger:     o.logger,
	}, nil
}

// RoutingKey the routing key every message is published with.
func (p *Publisher) RoutingKey() string { return p.routingKey }

// Publish encodes message as JSON and publishes it.
//
// Publish never fails from the caller's point of view: a message which cannot be encoded is
// dropped before any connection is opened and broker failures are logged, never retried.
func (p *Publisher) Publish(ctx context.Context, message Payload) {
	exchange := p.cfg.Exchange()

	body, err := strictJSON.Marshal(message)
	if err != nil {
		p.logger.WithError(&SerializationError{Err: err}).Error("Message with invalid body.")
		publishFailuresTotal.WithLabelValues(exchange, reasonSerialization).Inc()
		return
	}

	if err := p.publish(ctx, body); err != nil {
		p.logger.WithError(err).WithField("exchange", exchange).Error("Error while publishing.")
		publishFailuresTotal.WithLabelValues(exchange, reasonBroker).Inc()
		return
	}

	publishedTotal.WithLabelValues(exchange).Inc()
	p.logger.Infof("Exchange %s: Message sent.", exchange)
}

// publish performs the broker side of Publish on a new connection.
func (p *Publisher) publish(ctx context.Context, body []byte) error {
	id := uuid.NewString()
	headers := p.headers(id)

	conn, err := p.dial()
	if err != nil {
		return &BrokerError{Op: opDial, Err: err}
	}
	defer func() {
		if cErr := conn.Close(); cErr != nil {
			p.logger.WithError(&BrokerError{Op: opClose, Err: cErr}).Warn("Error while closing publisher connection.")
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		return &BrokerError{Op: opChannel, Err: err}
	}

	if err := ch.CreateExchange(ctx, p.cfg.Exchange(), p.cfg.ExchangeType(), true, false); err != nil {
		return &BrokerError{Op: opDeclareExchange, Err: err}
	}

	err = ch.Publish(ctx, p.cfg.Exchange(), p.routingKey, amqp.Publishing{
		MessageID:   id,
		ContentType: mimetype.Detect(body).String(),
		Headers:     headers,
		Body:        body,
	})
	if err != nil {
		return &BrokerError{Op: opPublish, Err: err}
	}
	return nil
}

// headers builds the metadata headers sent with every message.
func (p *Publisher) headers(id string) Headers {
	host, err := hostname()
	if err != nil {
		p.logger.WithError(err).Warn("Could not resolve the host name.")
	}

	return Headers{
		HeaderMessageID:   id,
		HeaderPublishedAt: now().UTC().Format(publishedAtLayout),
		HeaderFromHost:    host,
	}
}
