package navi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/jacklaaa89/navi/amqp"
)

// Callback handles a single message. message is the decoded JSON body: usually a Payload,
// but any JSON value (array, string, number, bool or nil) is passed on as decoded.
// Returned errors and panics are logged and do not stop the listener.
type Callback func(headers Headers, message any) error

// State the lifecycle state of a Listener.
type State int32

const (
	StateCreated State = iota
	StateConnecting
	StateChannelOpen
	StateQueueBound
	StateConsuming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnecting:
		return "connecting"
	case StateChannelOpen:
		return "channel-open"
	case StateQueueBound:
		return "queue-bound"
	case StateConsuming:
		return "consuming"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// errClosePending returned while waiting for the broker to acknowledge a close.
var errClosePending = errors.New("connection close pending")

// newCloseBackoff the policy used to wait for a connection to report closed.
// a variable in order to reduce the wait in tests.
var newCloseBackoff = defaultCloseBackoff

func defaultCloseBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	return backoff.WithMaxRetries(b, 5)
}

// Listener consumes a queue bound to the configured exchange and hands every message to a callback.
//
// All broker interaction and every callback invocation happens sequentially on a single goroutine
// started by Listen. There is no reconnect: once the connection is lost the goroutine exits.
type Listener struct {
	cfg        *Config
	queueName  string
	routingKey string
	name       string
	callback   Callback
	dial       amqp.Dialer
	logger     logrus.FieldLogger

	state atomic.Int32
	once  sync.Once
	done  chan struct{}
}

// NewListener builds a Listener, the queue name, routing key and callback are required.
func NewListener(cfg *Config, queueName, routingKey string, callback Callback, opts ...Option) (*Listener, error) {
	if routingKey == "" {
		return nil, &InitError{Reason: "routing key is required"}
	}
	if queueName == "" {
		return nil, &InitError{Reason: "queue name is required"}
	}
	if callback == nil {
		return nil, &InitError{Reason: "callback is required"}
	}

	params, err := newConnectionParams(cfg)
	if err != nil {
		return nil, err
	}

	o := newOptions(params, opts)
	name := "navi-" + queueName
	return &Listener{
		cfg:        cfg,
		queueName:  queueName,
		routingKey: routingKey,
		name:       name,
		callback:   callback,
		dial:       o.dialer,
		logger:     o.logger.WithFields(logrus.Fields{"listener": name, "queue": queueName}),
		done:       make(chan struct{}),
	}, nil
}

// Name the listener name, "navi-" followed by the queue name.
func (l *Listener) Name() string { return l.name }

// QueueName the name of the consumed queue.
func (l *Listener) QueueName() string { return l.queueName }

// State the current lifecycle state.
func (l *Listener) State() State { return State(l.state.Load()) }

// Done is closed once the listener goroutine has exited.
func (l *Listener) Done() <-chan struct{} { return l.done }

// Listen starts consuming on a new goroutine and returns immediately.
// Only the first call has any effect.
func (l *Listener) Listen() {
	l.once.Do(func() {
		go l.run()
	})
}

func (l *Listener) setState(s State) {
	l.state.Store(int32(s))
	l.logger.Debugf("Listener state: %s.", s)
}

// run the connect/consume loop, executed on the listener goroutine.
func (l *Listener) run() {
	defer close(l.done)
	defer l.setState(StateClosed)

	ctx := context.Background()
	l.logger.Infof("Starting listener on %s...", l.queueName)
	l.setState(StateConnecting)

	conn, err := l.dial()
	if err != nil {
		l.logger.WithError(&BrokerError{Op: opDial, Err: err}).Errorf("Error while listening on %s.", l.queueName)
		return
	}

	// close reasons are handed over to this goroutine, the broker sends at most one.
	closeErrs := make(chan amqp.Error, 1)
	conn.NotifyError(func(e amqp.Error) {
		select {
		case closeErrs <- e:
		default:
		}
	})

	deliveries, err := l.onConnected(ctx, conn)
	if err != nil {
		l.drainConnectionError(closeErrs)
		l.logger.WithError(err).Errorf("Error while listening on %s. Closing connection.", l.queueName)
		l.closeConnection(conn)
		return
	}

	l.consume(deliveries, closeErrs)

	l.logger.Errorf("Stopped receiving messages on %s. Closing connection.", l.queueName)
	l.closeConnection(conn)
}

// consume handles deliveries and connection errors until the broker stops delivering.
func (l *Listener) consume(deliveries <-chan amqp.Message, closeErrs <-chan amqp.Error) {
	for {
		select {
		case msg, ok := <-deliveries:
			if !ok {
				l.drainConnectionError(closeErrs)
				return
			}
			l.handleDelivery(msg)
		case e := <-closeErrs:
			l.onConnectionError(e)
		}
	}
}

// drainConnectionError logs a close reason which is already pending, without waiting for one.
func (l *Listener) drainConnectionError(closeErrs <-chan amqp.Error) {
	select {
	case e := <-closeErrs:
		l.onConnectionError(e)
	default:
	}
}

// onConnected opens a channel once the connection is established.
func (l *Listener) onConnected(ctx context.Context, conn amqp.Connection) (<-chan amqp.Message, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, &BrokerError{Op: opChannel, Err: err}
	}
	l.setState(StateChannelOpen)

	return l.onChannelOpen(ctx, ch)
}

// onChannelOpen declares the exchange and the queue and binds them with the routing key.
// The queue is durable, exclusive to this connection and never auto deleted.
func (l *Listener) onChannelOpen(ctx context.Context, ch amqp.Channel) (<-chan amqp.Message, error) {
	if err := ch.CreateExchange(ctx, l.cfg.Exchange(), l.cfg.ExchangeType(), true, false); err != nil {
		return nil, &BrokerError{Op: opDeclareExchange, Err: err}
	}

	q, err := ch.CreateQueue(ctx, l.queueName, true, false, true)
	if err != nil {
		return nil, &BrokerError{Op: opDeclareQueue, Err: err}
	}

	if err := q.Bind(ctx, l.cfg.Exchange(), l.routingKey); err != nil {
		return nil, &BrokerError{Op: opBindQueue, Err: err}
	}
	l.setState(StateQueueBound)

	return l.onQueueDeclared(ctx, q)
}

// onQueueDeclared starts consuming with automatic acknowledgement.
func (l *Listener) onQueueDeclared(ctx context.Context, q amqp.Queue) (<-chan amqp.Message, error) {
	// the consume is never cancelled, it ends with the connection.
	deliveries, _, err := q.Consume(ctx, l.name, true, false)
	if err != nil {
		return nil, &BrokerError{Op: opConsume, Err: err}
	}
	l.setState(StateConsuming)

	return deliveries, nil
}

// handleDelivery decodes a message and invokes the callback, nothing here stops the listener.
func (l *Listener) handleDelivery(msg amqp.Message) {
	delivered := msg.Headers()
	messageID := cast.ToString(delivered[HeaderMessageID])
	l.logger.WithFields(logrus.Fields{
		"message_id":  messageID,
		"routing_key": msg.RoutingKey(),
		"redelivered": msg.Redelivered(),
	}).Debug("Message received.")

	message, err := decode(msg.Body())
	if err != nil {
		l.logger.WithError(err).Errorf("Message %s with invalid body.", messageID)
		droppedTotal.WithLabelValues(l.queueName, reasonSerialization).Inc()
		return
	}

	// broker headers take precedence over the ones we add.
	headers := Headers{
		HeaderListenerName: l.name,
		HeaderQueueName:    l.queueName,
	}
	for k, v := range delivered {
		headers[k] = v
	}

	if err := l.invoke(headers, message); err != nil {
		l.logger.WithError(&CallbackError{MessageID: messageID, Err: err}).Errorf("Error while handling message %s.", messageID)
		droppedTotal.WithLabelValues(l.queueName, reasonCallback).Inc()
		return
	}
	consumedTotal.WithLabelValues(l.queueName).Inc()
}

// invoke calls the callback, turning a panic into an error.
func (l *Listener) invoke(headers Headers, message any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	return l.callback(headers, message)
}

// onConnectionError logs the reason the broker closed the connection.
func (l *Listener) onConnectionError(e amqp.Error) {
	l.logger.WithError(e).WithFields(logrus.Fields{
		"code":        e.Code(),
		"from_server": e.FromServer(),
	}).Errorf("Connection on %s closed by the broker: %s.", l.queueName, e.Reason())
}

// closeConnection gracefully closes conn, waiting a bounded amount of time for the close to complete.
func (l *Listener) closeConnection(conn amqp.Connection) {
	if err := conn.Close(); err != nil {
		l.logger.WithError(&BrokerError{Op: opClose, Err: err}).Errorf("Error while closing connection on %s.", l.queueName)
		return
	}

	err := backoff.Retry(func() error {
		if conn.IsClosed() {
			return nil
		}
		return errClosePending
	}, newCloseBackoff())
	if err != nil {
		l.logger.WithError(&BrokerError{Op: opClose, Err: err}).Errorf("Error while closing connection on %s.", l.queueName)
	}
}

// decode reads a single JSON value from r.
func decode(r io.Reader) (any, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, &SerializationError{Err: err}
	}

	var message any
	if err := json.Unmarshal(body, &message); err != nil {
		return nil, &SerializationError{Err: err}
	}
	return message, nil
}
