//go:build integration

package navi

import (
	"context"
	"os"
	"testing"
	"time"

	rh "github.com/michaelklishin/rabbit-hole/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacklaaa89/navi/amqp"
)

// vHost the virtual host the integration tests run on.
const vHost = "/navi-integration"

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func managementClient(t *testing.T) *rh.Client {
	mAPI, err := rh.NewClient(envOr("AMQP_MANAGEMENT_URL", "http://localhost:15672"), "guest", "guest")
	require.NoError(t, err)
	return mAPI
}

func setup(t *testing.T) *Config {
	m := managementClient(t)
	_, _ = m.DeleteVhost(vHost)
	_, err := m.PutVhost(vHost, rh.VhostSettings{Description: "virtual host used for navi integration testing"})
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = managementClient(t).DeleteVhost(vHost)
	})

	cfg, err := NewConfig(envOr("AMQP_HOST", "localhost"), envOr("AMQP_PORT", "5672"), "guest", "guest", WithVhost(vHost))
	require.NoError(t, err)
	return cfg
}

func TestPublishAndListen_Integration(t *testing.T) {
	cfg := setup(t)
	logger, hook := newTestLogger()
	cb, calls := recorder()

	l, err := Listen(cfg, "orders", "orders.created", cb, WithLogger(logger))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return l.State() == StateConsuming
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, Publish(context.Background(), cfg, "orders.created", Payload{"id": 1}, WithLogger(logger)))

	select {
	case r := <-calls:
		assert.Equal(t, Payload{"id": float64(1)}, r.message)
		assert.Equal(t, "navi-orders", r.headers[HeaderListenerName])
		assert.Equal(t, "orders", r.headers[HeaderQueueName])
		assert.NotEmpty(t, r.headers[HeaderMessageID])
	case <-time.After(5 * time.Second):
		t.Fatal("message was not delivered")
	}
	assert.Empty(t, errorEntries(hook))

	m := managementClient(t)
	q, err := m.GetQueue(vHost, "orders")
	require.NoError(t, err)
	assert.True(t, q.Durable)
	assert.True(t, q.Exclusive)
	assert.EqualValues(t, false, q.AutoDelete)

	ex, err := m.GetExchange(vHost, DefaultExchange)
	require.NoError(t, err)
	assert.Equal(t, string(amqp.ExchangeTypeTopic), ex.Type)

	// a lost connection ends the listener, it does not reconnect.
	conns, err := m.ListConnections()
	require.NoError(t, err)
	for _, conn := range conns {
		if conn.Vhost == vHost {
			_, err = m.CloseConnection(conn.Name)
			require.NoError(t, err)
		}
	}

	select {
	case <-l.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("listener did not exit")
	}
	assert.Equal(t, StateClosed, l.State())
}
