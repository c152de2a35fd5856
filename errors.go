package navi

import (
	"fmt"
	"strings"
)

// operations reported by BrokerError.
const (
	opDial            = "dial"
	opChannel         = "open channel"
	opDeclareExchange = "declare exchange"
	opDeclareQueue    = "declare queue"
	opBindQueue       = "bind queue"
	opPublish         = "publish"
	opConsume         = "consume"
	opClose           = "close connection"
)

// InitError is returned when a Publisher or Listener is constructed with a missing argument.
type InitError struct {
	Reason string
}

func (e *InitError) Error() string {
	return "navi: " + e.Reason
}

// ConfigError is returned by NewConfig when one or more configuration entries are invalid.
type ConfigError struct {
	Invalid []ConfigEntry // Invalid every invalid entry, in validation order.
}

func (e *ConfigError) Error() string {
	keys := make([]string, len(e.Invalid))
	for i, entry := range e.Invalid {
		keys[i] = entry.Key
	}
	return fmt.Sprintf("navi: invalid configuration: %s", strings.Join(keys, ", "))
}

// SerializationError wraps a payload that could not be JSON encoded or a body that could not be decoded.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return "navi: invalid message body: " + e.Err.Error()
}

func (e *SerializationError) Unwrap() error { return e.Err }

// BrokerError wraps a failure from the broker client, Op names the failing step.
type BrokerError struct {
	Op  string
	Err error
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("navi: %s: %s", e.Op, e.Err)
}

func (e *BrokerError) Unwrap() error { return e.Err }

// CallbackError wraps an error returned (or a panic raised) by a listener callback.
type CallbackError struct {
	MessageID string
	Err       error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("navi: error while handling message %s: %s", e.MessageID, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }
