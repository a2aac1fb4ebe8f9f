package sio

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	eioparser "github.com/karagenc/socket.io-client-go/engine.io/parser"
)

// EnvConfig is the client configuration read from SIO_* environment variables.
type EnvConfig struct {
	URL       string `env:"SIO_URL"`
	Namespace string `env:"SIO_NAMESPACE"`
	Path      string `env:"SIO_PATH" envDefault:"/socket.io"`
	EIO       int    `env:"SIO_EIO" envDefault:"4"`
	Transport string `env:"SIO_TRANSPORT" envDefault:"websocket"`
	// Comma separated key=value pairs, in order.
	Query []string `env:"SIO_QUERY" envSeparator:","`

	NoReconnection       bool          `env:"SIO_NO_RECONNECTION"`
	ReconnectionAttempts uint32        `env:"SIO_RECONNECTION_ATTEMPTS"`
	ReconnectionDelay    time.Duration `env:"SIO_RECONNECTION_DELAY" envDefault:"1s"`
	ReconnectionDelayMax time.Duration `env:"SIO_RECONNECTION_DELAY_MAX" envDefault:"5s"`
	RandomizationFactor  float32       `env:"SIO_RANDOMIZATION_FACTOR" envDefault:"0.5"`
	ConnectionTimeout    time.Duration `env:"SIO_CONNECTION_TIMEOUT" envDefault:"20s"`

	Debug bool `env:"SIO_DEBUG"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("sio: parse env: %w", err)
	}
	return nil
}

// ClientConfig converts e. The result is validated by NewClient.
func (e *EnvConfig) ClientConfig() (*ClientConfig, error) {
	query := make([]QueryParam, 0, len(e.Query))
	for _, pair := range e.Query {
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, &ConfigError{Field: "Query", Err: fmt.Errorf("%q is not a key=value pair", pair)}
		}
		query = append(query, QueryParam{Key: key, Value: value})
	}

	var (
		delay    = e.ReconnectionDelay
		delayMax = e.ReconnectionDelayMax
		factor   = e.RandomizationFactor
		timeout  = e.ConnectionTimeout
	)
	config := &ClientConfig{
		Namespace:            e.Namespace,
		Path:                 e.Path,
		Query:                query,
		NoReconnection:       e.NoReconnection,
		ReconnectionAttempts: e.ReconnectionAttempts,
		ReconnectionDelay:    &delay,
		ReconnectionDelayMax: &delayMax,
		RandomizationFactor:  &factor,
		EIO:                  eioparser.Revision(e.EIO),
		Transport:            e.Transport,
		ConnectionTimeout:    &timeout,
	}
	if e.Debug {
		config.Debugger = NewPrintDebugger()
	}
	return config, nil
}
