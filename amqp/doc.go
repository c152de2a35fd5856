// Package amqp defines the broker-agnostic interfaces navi needs in order to talk to an AMQP broker.
// These interfaces only carry the operations navi performs (declare, bind, publish, consume), which means
// a different AMQP client can be plugged in once the bindings that implement them exist.
//
// This package knows nothing about exchanges or queues navi configures; that lives in the root package.
//
// The only implementation provided at the time of writing is:
// - rabbitmq (github.com/jacklaaa89/navi/rabbitmq)
package amqp
