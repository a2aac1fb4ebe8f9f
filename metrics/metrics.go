// Package metrics exports Prometheus metrics of a Socket.IO client.
//
//	client, _ := sio.NewClient(url, nil)
//	m, err := metrics.Instrument(client, metrics.WithConstLabels(prometheus.Labels{"service": "room"}))
//	...
//	defer m.Release()
package metrics

import (
	"time"

	sio "github.com/karagenc/socket.io-client-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Config struct {
	// Default: "sio"
	Namespace string
	Subsystem string

	ConstLabels prometheus.Labels

	// Buckets of the heartbeat latency histogram.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

type Option func(*Config)

func WithNamespace(namespace string) Option {
	return func(c *Config) { c.Namespace = namespace }
}

func WithSubsystem(subsystem string) Option {
	return func(c *Config) { c.Subsystem = subsystem }
}

func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) { c.ConstLabels = labels }
}

func WithBuckets(buckets []float64) Option {
	return func(c *Config) { c.Buckets = buckets }
}

func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) { c.Registry = registry }
}

func defaultConfig() Config {
	return Config{
		Namespace: "sio",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Client is the part of *sio.Client that is instrumented.
type Client interface {
	OnConnect(handler sio.ConnectHandler) *sio.Subscription
	OnDisconnect(handler sio.DisconnectHandler) *sio.Subscription
	OnError(handler sio.ErrorHandler) *sio.Subscription
	OnReconnect(handler sio.ReconnectHandler) *sio.Subscription
	OnReconnectAttempt(handler sio.ReconnectAttemptHandler) *sio.Subscription
	OnReconnectFailed(handler sio.ReconnectFailedHandler) *sio.Subscription
	OnPong(handler sio.PongHandler) *sio.Subscription
	OnAny(handler sio.AnyHandler) *sio.Subscription
}

type Metrics struct {
	connected         prometheus.Gauge
	connectsTotal     prometheus.Counter
	disconnectsTotal  *prometheus.CounterVec
	errorsTotal       prometheus.Counter
	reconnectsTotal   prometheus.Counter
	reconnectAttempts prometheus.Counter
	reconnectFailures prometheus.Counter
	heartbeatsTotal   prometheus.Counter
	heartbeatLatency  prometheus.Histogram
	eventsReceived    *prometheus.CounterVec

	subs []*sio.Subscription
}

// Instrument registers the metrics and subscribes to the lifecycle
// notifications of client.
// It returns an error if a metric with the same name is already registered.
func Instrument(client Client, opts ...Option) (m *Metrics, err error) {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	// promauto panics on duplicate registration.
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				panic(r)
			}
			m, err = nil, e
		}
	}()
	m = newMetrics(config)

	m.subs = append(m.subs,
		client.OnConnect(func() {
			m.connected.Set(1)
			m.connectsTotal.Inc()
		}),
		client.OnDisconnect(func(reason sio.Reason) {
			m.connected.Set(0)
			m.disconnectsTotal.WithLabelValues(string(reason)).Inc()
		}),
		client.OnError(func(message string) { m.errorsTotal.Inc() }),
		client.OnReconnect(func(attempts uint32) { m.reconnectsTotal.Inc() }),
		client.OnReconnectAttempt(func(attempt uint32) { m.reconnectAttempts.Inc() }),
		client.OnReconnectFailed(func() { m.reconnectFailures.Inc() }),
		client.OnPong(func(latency time.Duration) {
			m.heartbeatsTotal.Inc()
			m.heartbeatLatency.Observe(latency.Seconds())
		}),
		client.OnAny(func(event string, res *sio.Response) {
			m.eventsReceived.WithLabelValues(event).Inc()
		}),
	)
	return m, nil
}

func newMetrics(config Config) *Metrics {
	factory := promauto.With(config.Registry)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		})
	}

	return &Metrics{
		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connected",
			Help:        "1 while the namespace is connected",
			ConstLabels: config.ConstLabels,
		}),
		connectsTotal: counter("connects_total", "Total number of successful namespace connections"),
		disconnectsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "disconnects_total",
			Help:        "Total number of disconnections by reason",
			ConstLabels: config.ConstLabels,
		}, []string{"reason"}),
		errorsTotal:       counter("errors_total", "Total number of server and connect errors"),
		reconnectsTotal:   counter("reconnects_total", "Total number of successful reconnections"),
		reconnectAttempts: counter("reconnect_attempts_total", "Total number of reconnect attempts"),
		reconnectFailures: counter("reconnect_failures_total", "Total number of exhausted reconnection loops"),
		heartbeatsTotal:   counter("heartbeats_total", "Total number of completed heartbeats"),
		heartbeatLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "heartbeat_latency_seconds",
			Help:        "Heartbeat round trip time in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),
		eventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "events_received_total",
			Help:        "Total number of events received by name",
			ConstLabels: config.ConstLabels,
		}, []string{"event"}),
	}
}

// Release unsubscribes from the client. Registered metrics keep their values.
func (m *Metrics) Release() {
	for _, sub := range m.subs {
		sub.Release()
	}
}
