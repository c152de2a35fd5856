package navi

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/jacklaaa89/navi/amqp"
)

// operations a mockBroker can be told to fail.
const (
	failDial     = "dial"
	failChannel  = "channel"
	failExchange = "exchange"
	failQueue    = "queue"
	failBind     = "bind"
	failPublish  = "publish"
	failConsume  = "consume"
	failClose    = "close"
)

type mockExchange struct {
	typ                 amqp.ExchangeType
	durable, autoDelete bool
}

type mockQueue struct {
	name                           string
	durable, autoDelete, exclusive bool
	msgs                           chan amqp.Message
	closed                         bool
}

type mockBinding struct {
	queue, exchange, routingKey string
}

// mockBroker an in-memory broker which routes published messages to queues bound with
// exactly the same routing key.
type mockBroker struct {
	mu        sync.Mutex
	failures  map[string]error
	exchanges map[string]mockExchange
	queues    map[string]*mockQueue
	bindings  []mockBinding
	published []amqp.Publishing
	conns     []*mockConnection

	dials, closes, exchangeDeclares int
}

func newMockBroker() *mockBroker {
	return &mockBroker{
		failures:  make(map[string]error),
		exchanges: make(map[string]mockExchange),
		queues:    make(map[string]*mockQueue),
	}
}

// fail makes every future op return err.
func (b *mockBroker) fail(op string, err error) *mockBroker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = err
	return b
}

// err must be called with mu held.
func (b *mockBroker) err(op string) error {
	return b.failures[op]
}

func (b *mockBroker) dialer() amqp.Dialer {
	return func() (amqp.Connection, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.dials++
		if err := b.err(failDial); err != nil {
			return nil, err
		}
		c := &mockConnection{b: b}
		b.conns = append(b.conns, c)
		return c, nil
	}
}

// deliver pushes a raw message onto a declared queue.
func (b *mockBroker) deliver(t *testing.T, queue string, body []byte, headers map[string]any) {
	b.mu.Lock()
	q, ok := b.queues[queue]
	b.mu.Unlock()
	require.True(t, ok, "queue %s has not been declared", queue)
	q.msgs <- &mockMessage{body: body, headers: headers}
}

// disconnect ends the delivery stream of a queue, as a lost connection would.
func (b *mockBroker) disconnect(queue string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[queue]; ok && !q.closed {
		q.closed = true
		close(q.msgs)
	}
}

// notifyError simulates the broker closing every connection with e.
func (b *mockBroker) notifyError(e amqp.Error) {
	b.mu.Lock()
	conns := append([]*mockConnection(nil), b.conns...)
	b.mu.Unlock()
	for _, c := range conns {
		c.mu.Lock()
		fns := append([]amqp.ErrorNotificationFunc(nil), c.notify...)
		c.mu.Unlock()
		for _, fn := range fns {
			fn(e)
		}
	}
}

func (b *mockBroker) queue(name string) (mockQueue, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		return mockQueue{}, false
	}
	return *q, true
}

func (b *mockBroker) counts() (dials, closes, exchangeDeclares, publishes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials, b.closes, b.exchangeDeclares, len(b.published)
}

type mockConnection struct {
	mu     sync.Mutex
	b      *mockBroker
	closed bool
	notify []amqp.ErrorNotificationFunc
}

func (c *mockConnection) Channel() (amqp.Channel, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if err := c.b.err(failChannel); err != nil {
		return nil, err
	}
	return &mockChannel{b: c.b}, nil
}

func (c *mockConnection) NotifyError(fn amqp.ErrorNotificationFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = append(c.notify, fn)
}

func (c *mockConnection) Close() error {
	c.b.mu.Lock()
	c.b.closes++
	err := c.b.err(failClose)
	c.b.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return err
}

func (c *mockConnection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type mockChannel struct {
	b      *mockBroker
	closed bool
}

func (c *mockChannel) CreateExchange(_ context.Context, name string, typ amqp.ExchangeType, durable, autoDelete bool) error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	c.b.exchangeDeclares++
	if err := c.b.err(failExchange); err != nil {
		return err
	}
	c.b.exchanges[name] = mockExchange{typ: typ, durable: durable, autoDelete: autoDelete}
	return nil
}

func (c *mockChannel) CreateQueue(_ context.Context, name string, durable, autoDelete, exclusive bool) (amqp.Queue, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if err := c.b.err(failQueue); err != nil {
		return nil, err
	}
	if _, ok := c.b.queues[name]; !ok {
		c.b.queues[name] = &mockQueue{
			name:       name,
			durable:    durable,
			autoDelete: autoDelete,
			exclusive:  exclusive,
			msgs:       make(chan amqp.Message, 16),
		}
	}
	return &mockQueueHandle{name: name, ch: c}, nil
}

func (c *mockChannel) BindQueue(_ context.Context, queue, exchange, routingKey string) error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if err := c.b.err(failBind); err != nil {
		return err
	}
	c.b.bindings = append(c.b.bindings, mockBinding{queue: queue, exchange: exchange, routingKey: routingKey})
	return nil
}

func (c *mockChannel) Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if err := c.b.err(failPublish); err != nil {
		return err
	}
	c.b.published = append(c.b.published, msg)

	for _, binding := range c.b.bindings {
		if binding.exchange != exchange || binding.routingKey != routingKey {
			continue
		}
		if q, ok := c.b.queues[binding.queue]; ok && !q.closed {
			q.msgs <- &mockMessage{body: msg.Body, headers: msg.Headers, routingKey: routingKey}
		}
	}
	return nil
}

func (c *mockChannel) Consume(_ context.Context, queue, _ string, _, _ bool) (<-chan amqp.Message, amqp.CancelFunc, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if err := c.b.err(failConsume); err != nil {
		return nil, func() {}, err
	}
	return c.b.queues[queue].msgs, func() {}, nil
}

func (c *mockChannel) Close() error {
	c.closed = true
	return nil
}

func (c *mockChannel) IsClosed() bool { return c.closed }

type mockQueueHandle struct {
	name string
	ch   *mockChannel
}

func (q *mockQueueHandle) Name() string { return q.name }

func (q *mockQueueHandle) Bind(ctx context.Context, exchange, routingKey string) error {
	return q.ch.BindQueue(ctx, q.name, exchange, routingKey)
}

func (q *mockQueueHandle) Consume(ctx context.Context, consumerName string, autoAck, exclusive bool) (<-chan amqp.Message, amqp.CancelFunc, error) {
	return q.ch.Consume(ctx, q.name, consumerName, autoAck, exclusive)
}

type mockMessage struct {
	body       []byte
	headers    map[string]any
	routingKey string
}

func (m *mockMessage) Body() io.Reader    { return bytes.NewReader(m.body) }
func (m *mockMessage) RoutingKey() string { return m.routingKey }
func (m *mockMessage) Redelivered() bool  { return false }

func (m *mockMessage) Headers() map[string]any {
	h := make(map[string]any, len(m.headers))
	for k, v := range m.headers {
		h[k] = v
	}
	return h
}

type mockAMQPError struct {
	code   int
	reason string
}

func (e *mockAMQPError) Error() string    { return e.reason }
func (e *mockAMQPError) Code() int        { return e.code }
func (e *mockAMQPError) Reason() string   { return e.reason }
func (e *mockAMQPError) Recover() bool    { return false }
func (e *mockAMQPError) FromServer() bool { return true }

// newTestConfig the configuration used throughout the tests.
func newTestConfig(t *testing.T) *Config {
	cfg, err := NewConfig("test", "1234", "guest", "guest")
	require.NoError(t, err)
	return cfg
}

// newTestLogger a logger which records every entry.
func newTestLogger() (logrus.FieldLogger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

// errorEntries the entries logged at error level.
func errorEntries(hook *test.Hook) []logrus.Entry {
	var entries []logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			entries = append(entries, *e)
		}
	}
	return entries
}

// waitForState blocks until l reaches s.
func waitForState(t *testing.T, l *Listener, s State) {
	require.Eventually(t, func() bool {
		return l.State() == s
	}, time.Second, 5*time.Millisecond, "listener never reached %s, currently %s", s, l.State())
}

// waitForDone blocks until the listener goroutine exits.
func waitForDone(t *testing.T, l *Listener) {
	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("listener %s did not exit", l.Name())
	}
}

// newTCPConn an open socket to a local listener, closed when the test ends.
func newTCPConn(t *testing.T) net.Conn {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
