package amqp

import (
	"io"
)

// Dialer represents a function which returns a connection and an error.
type Dialer func() (Connection, error)

// Error represents an error from AMQP.
type Error interface {
	error
	// Code returns the constant code from the specification
	Code() int
	// Reason returns the description of the error
	Reason() string
	// Recover returns true when this error can be recovered by retrying later or with different parameters
	Recover() bool
	// FromServer returns true when initiated from the server, false when from this library
	FromServer() bool
}

// ErrorNotificationFunc the callback function type which receives
// errors from the server.
type ErrorNotificationFunc = func(e Error)

// Connection represents a single connection to an AMQP compatible broker.
//
// Connections are never re-established, once closed (by us or by the broker) a new one
// has to be dialed.
type Connection interface {
	io.Closer

	// Channel attempts to create a new channel to perform actions against.
	Channel() (Channel, error)
	// NotifyError registers fn to be called when the broker closes the connection with an error.
	// fn is never called on a graceful close and runs on a goroutine owned by the connection.
	NotifyError(fn ErrorNotificationFunc)
	// IsClosed determines if the connection is closed.
	IsClosed() bool
}
