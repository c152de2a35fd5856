package navi

import (
	"context"
	"net"
	"net/url"

	"github.com/jacklaaa89/navi/amqp"
	"github.com/jacklaaa89/navi/rabbitmq"
)

// PlainCredentials the username and password used for PLAIN authentication.
type PlainCredentials struct {
	Username string
	Password string
}

// ConnectionParams the read-only connection settings derived from a Config.
type ConnectionParams struct {
	Host        string
	Port        string
	Vhost       string
	Credentials PlainCredentials
}

// newConnectionParams derives connection parameters from cfg, it performs no I/O.
func newConnectionParams(cfg *Config) (ConnectionParams, error) {
	if cfg == nil {
		return ConnectionParams{}, &InitError{Reason: "configuration has not been initialised"}
	}
	if cfg.host == "" || cfg.username == "" || cfg.password == "" {
		return ConnectionParams{}, &InitError{Reason: "configuration is missing the broker host or credentials"}
	}

	return ConnectionParams{
		Host:  cfg.host,
		Port:  cfg.port,
		Vhost: cfg.vhost,
		Credentials: PlainCredentials{
			Username: cfg.username,
			Password: cfg.password,
		},
	}, nil
}

// URL the amqp:// address of the broker, credentials are supplied separately by AMQPConfig.
func (p ConnectionParams) URL() string {
	u := url.URL{Scheme: "amqp", Host: net.JoinHostPort(p.Host, p.Port), Path: "/"}
	return u.String()
}

// AMQPConfig the client configuration carrying the PLAIN credentials and vhost.
func (p ConnectionParams) AMQPConfig() rabbitmq.Config {
	return rabbitmq.Config{
		SASL: []rabbitmq.Authentication{&rabbitmq.PlainAuth{
			Username: p.Credentials.Username,
			Password: p.Credentials.Password,
		}},
		Vhost: p.Vhost,
	}
}

// Dialer returns a dialer which opens a new rabbitmq connection on every call.
func (p ConnectionParams) Dialer(ctx context.Context) amqp.Dialer {
	return rabbitmq.DialConfig(ctx, p.URL(), p.AMQPConfig())
}
