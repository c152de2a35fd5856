package navi

import (
	"fmt"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/jacklaaa89/navi/amqp"
)

// configuration keys, also used as the environment variable names.
const (
	KeyUsername     = "NAVI_AMQP_USERNAME"
	KeyPassword     = "NAVI_AMQP_PASSWORD"
	KeyHost         = "NAVI_AMQP_HOST"
	KeyPort         = "NAVI_AMQP_PORT"
	KeyExchange     = "NAVI_EXCHANGE"
	KeyExchangeType = "NAVI_EXCHANGE_TYPE"
)

// defaults applied when no exchange option is supplied.
const (
	DefaultExchange     = "amq.topic"
	DefaultExchangeType = amqp.ExchangeTypeTopic
	DefaultVhost        = "/"
)

// ConfigEntry a single named configuration value, used for validation.
type ConfigEntry struct {
	Key   string
	Value string
}

// Valid reports whether both the key and the value are set.
func (e ConfigEntry) Valid() bool {
	return e.Key != "" && e.Value != ""
}

// String never includes the value, so passwords do not end up in logs.
func (e ConfigEntry) String() string {
	return e.Key
}

// Config the broker settings used by every Publisher and Listener built from it.
// A Config is immutable once NewConfig returns it and is safe to share between goroutines.
type Config struct {
	username     string
	password     string
	host         string
	port         string
	exchange     string
	exchangeType string
	vhost        string
}

// ConfigOption overrides an optional setting in NewConfig.
type ConfigOption func(*Config)

// WithExchange sets the exchange name, defaults to DefaultExchange.
func WithExchange(name string) ConfigOption {
	return func(c *Config) { c.exchange = name }
}

// WithExchangeType sets the exchange type, defaults to DefaultExchangeType.
func WithExchangeType(typ amqp.ExchangeType) ConfigOption {
	return func(c *Config) { c.exchangeType = string(typ) }
}

// WithVhost sets the virtual host to connect to, defaults to DefaultVhost.
func WithVhost(vhost string) ConfigOption {
	return func(c *Config) {
		if vhost != "" {
			c.vhost = vhost
		}
	}
}

// NewConfig validates and builds a Config.
//
// Every one of username, password, host, port, exchange and exchange type has to be non empty;
// otherwise a *ConfigError listing every invalid entry is returned and no Config is built.
func NewConfig(host, port, username, password string, opts ...ConfigOption) (*Config, error) {
	c := &Config{
		username:     username,
		password:     password,
		host:         host,
		port:         port,
		exchange:     DefaultExchange,
		exchangeType: string(DefaultExchangeType),
		vhost:        DefaultVhost,
	}
	for _, opt := range opts {
		opt(c)
	}

	var invalid []ConfigEntry
	for _, entry := range c.entries() {
		if !entry.Valid() {
			invalid = append(invalid, entry)
		}
	}
	if len(invalid) > 0 {
		return nil, &ConfigError{Invalid: invalid}
	}
	return c, nil
}

func (c *Config) entries() []ConfigEntry {
	return []ConfigEntry{
		{Key: KeyUsername, Value: c.username},
		{Key: KeyPassword, Value: c.password},
		{Key: KeyHost, Value: c.host},
		{Key: KeyPort, Value: c.port},
		{Key: KeyExchange, Value: c.exchange},
		{Key: KeyExchangeType, Value: c.exchangeType},
	}
}

func (c *Config) Username() string { return c.username }
func (c *Config) Password() string { return c.password }
func (c *Config) Host() string     { return c.host }
func (c *Config) Port() string     { return c.port }
func (c *Config) Exchange() string { return c.exchange }
func (c *Config) Vhost() string    { return c.vhost }

func (c *Config) ExchangeType() amqp.ExchangeType {
	return amqp.ExchangeType(c.exchangeType)
}

// viper keys, with the "navi" env prefix these resolve to the Key* environment variables.
const (
	propHost         = "amqp_host"
	propPort         = "amqp_port"
	propUsername     = "amqp_username"
	propPassword     = "amqp_password"
	propVhost        = "amqp_vhost"
	propExchange     = "exchange"
	propExchangeType = "exchange_type"
)

// LoadConfig builds a Config from the properties held by v.
//
// The exchange and exchange type fall back to their defaults when unset. The port may be
// any value cast can turn into a string, so an integer port in a config file is accepted.
func LoadConfig(v *viper.Viper) (*Config, error) {
	port, err := cast.ToStringE(v.Get(propPort))
	if err != nil {
		return nil, &ConfigError{Invalid: []ConfigEntry{{Key: KeyPort}}}
	}

	var opts []ConfigOption
	if exchange := v.GetString(propExchange); exchange != "" {
		opts = append(opts, WithExchange(exchange))
	}
	if typ := v.GetString(propExchangeType); typ != "" {
		opts = append(opts, WithExchangeType(amqp.ExchangeType(typ)))
	}
	opts = append(opts, WithVhost(v.GetString(propVhost)))

	return NewConfig(
		v.GetString(propHost),
		port,
		v.GetString(propUsername),
		v.GetString(propPassword),
		opts...,
	)
}

// ConfigFromEnv builds a Config from the NAVI_AMQP_* and NAVI_EXCHANGE* environment variables.
func ConfigFromEnv() (*Config, error) {
	return LoadConfig(newViper())
}

// ConfigFromFile builds a Config from a file viper understands (yaml, json, toml...).
// Environment variables take precedence over the file.
func ConfigFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("navi: read config %s: %w", path, err)
	}
	return LoadConfig(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("navi")
	v.AutomaticEnv()
	return v
}
