// Package navi is a small publish/listen layer over an AMQP broker.
//
// A Publisher opens a connection per call, declares the configured exchange and sends one JSON encoded
// message together with metadata headers (message_id, published_at, from_host). A Listener opens a long
// lived connection on its own goroutine, declares the exchange and a queue, binds them using a routing key
// and hands every inbound JSON message to a callback.
//
// Payloads holding values without a JSON form, such as raw bytes, sockets or files, are refused
// before any connection is opened.
//
// Everything runtime related (serialization failures, broker errors, callback errors) is logged rather than
// returned: Publish never fails from the caller's point of view and a Listener keeps consuming after a
// callback error. Only construction time misconfiguration is returned as an error.
//
//	cfg, err := navi.NewConfig("localhost", "5672", "guest", "guest")
//	// handle error
//
//	l, err := navi.Listen(cfg, "orders", "orders.created", func(h navi.Headers, m any) error {
//		order, ok := m.(navi.Payload)
//		// ...
//		return nil
//	})
//	// handle error
//
//	err = navi.Publish(context.Background(), cfg, "orders.created", navi.Payload{"id": 1})
//
// There is no reconnect and no way to stop a Listener, once its connection is lost the goroutine exits.
//
// The broker is reached through the interfaces in github.com/jacklaaa89/navi/amqp, the default
// implementation being github.com/jacklaaa89/navi/rabbitmq.
package navi
