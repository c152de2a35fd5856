package rabbitmq

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/jacklaaa89/navi/amqp"
)

// helper types exposed from the underlined SDK package.

type (
	Config         = amqp091.Config
	Authentication = amqp091.Authentication
	PlainAuth      = amqp091.PlainAuth
)

// ErrClosed is returned when an operation is attempted on a closed connection or channel.
var ErrClosed = amqp091.ErrClosed

// the defaults amqp091.Dial uses.
const (
	defaultHeartbeat         = 10 * time.Second
	defaultLocale            = "en_US"
	defaultConnectionTimeout = 30 * time.Second
)

// connection represents an amqp091.Connection which implements our generic implementation.
// connections are never re-dialed, once closed every operation returns ErrClosed.
type connection struct {
	mu     sync.RWMutex // variable guard.
	closed bool         // whether the connection is closed.

	Connection amqp091Connection // the connection.
}

// DialConfig attempts to connect to a rabbitmq broker using an amqp:// url while also
// supplying Config to define authentication etc.
//
// Unless c.Dial is set, ctx bounds opening the TCP connection.
func DialConfig(ctx context.Context, addr string, c Config) amqp.Dialer { //nolint // config has to be non-pointer to conform to amqp091.
	if c.Dial == nil {
		c.Dial = contextDial(ctx)
	}

	return func() (amqp.Connection, error) {
		return wrapDial(func() (amqp091Connection, error) {
			return dialConfig(addr, c)
		})
	}
}

// Dial attempts to connect to a rabbitmq broker using an amqp:// url.
// ctx bounds opening the TCP connection.
func Dial(ctx context.Context, addr string) amqp.Dialer {
	return DialConfig(ctx, addr, Config{
		Heartbeat: defaultHeartbeat,
		Locale:    defaultLocale,
	})
}

// contextDial opens TCP connections bound to ctx. The deadline covers the AMQP handshake,
// amqp091 clears it once the connection is open.
func contextDial(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: defaultConnectionTimeout}
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		if err := conn.SetDeadline(time.Now().Add(defaultConnectionTimeout)); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// wrapDial helper function to wrap an amqp091.Connection as our generic interface implementation.
func wrapDial(dial func() (amqp091Connection, error)) (amqp.Connection, error) {
	conn, err := dial()
	if err != nil {
		return nil, err
	}
	return &connection{Connection: conn}, nil
}

// Channel initialises a new AMQP channel from a connection.
func (c *connection) Channel() (amqp.Channel, error) {
	if c.IsClosed() {
		return nil, ErrClosed
	}

	c.mu.RLock()
	ch, err := c.Connection.Channel()
	c.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	return &channel{Channel: ch}, nil
}

// NotifyError registers a handler which receives the error the broker closed the connection with.
func (c *connection) NotifyError(fn amqp.ErrorNotificationFunc) {
	if fn == nil {
		return
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	handleNotifyError(c.Connection, fn)
}

// Close wraps the original close function.
func (c *connection) Close() error {
	if c.IsClosed() {
		return nil // already closed.
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	return c.Connection.Close()
}

// IsClosed wraps the original IsClosed function.
func (c *connection) IsClosed() bool {
	if c == nil {
		return true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return true
	}

	return isClosed(c.Connection)
}
