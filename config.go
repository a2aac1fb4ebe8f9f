package sio

import (
	"fmt"
	"net/http"
	"time"

	eioparser "github.com/karagenc/socket.io-client-go/engine.io/parser"
	"github.com/karagenc/socket.io-client-go/engine.io/transport"
	"github.com/karagenc/socket.io-client-go/parser/json/serializer"
)

type ClientConfig struct {
	// Namespace to connect to. Empty (or "/") is the default namespace.
	Namespace string

	// Path of the Socket.IO endpoint on the server.
	// Default: /socket.io
	Path string

	// Additional query parameters. They are sent in order.
	Query []QueryParam

	// Should we disallow reconnections?
	// Default: false (allow reconnections)
	NoReconnection bool

	// How many reconnection attempts should we try?
	// Default: 0 (Infinite)
	ReconnectionAttempts uint32

	// The initial delay before a reconnection attempt.
	// Default: 1 second
	ReconnectionDelay *time.Duration

	// The max time delay between reconnection attempts.
	// Default: 5 seconds
	ReconnectionDelayMax *time.Duration

	// Scales the random part of the delay growth.
	// This value is required to be in [0, 1).
	//
	// Default: 0.5
	RandomizationFactor *float32

	// Engine.IO protocol revision. 3 or 4.
	// Default: 4
	EIO eioparser.Revision

	// websocket or polling.
	// Default: websocket
	Transport string

	// Bounds a single connection attempt, including the namespace connect.
	// Default: 20 seconds
	ConnectionTimeout *time.Duration

	// Sent with the CONNECT packet (revision 4 only).
	// Must be a struct or a map.
	Auth any

	// JSON backend. Default is encoding/json.
	JSON serializer.JSONSerializer

	// Custom WebSocket dialer to use.
	//
	// Default is nhooyr.io/websocket with default options.
	WebSocketDialer transport.WebSocketDialer

	// Additional HTTP headers to use.
	RequestHeader http.Header

	// Custom HTTP transport for polling.
	HTTPTransport http.RoundTripper

	// For debugging purposes. Leave it nil if it is of no use.
	// It is passed to Engine.IO too.
	Debugger Debugger
}

const (
	DefaultPath                         = "/socket.io"
	DefaultTransport                    = "websocket"
	DefaultRevision                     = eioparser.Revision4
	DefaultReconnectionDelay            = 1 * time.Second
	DefaultReconnectionDelayMax         = 5 * time.Second
	DefaultRandomizationFactor  float32 = 0.5
	DefaultConnectionTimeout            = 20 * time.Second
)

// Resolved copy of a ClientConfig.
type clientOptions struct {
	namespace            string
	path                 string
	query                []QueryParam
	noReconnection       bool
	reconnectionAttempts uint32
	reconnectionDelay    time.Duration
	reconnectionDelayMax time.Duration
	randomizationFactor  float32
	revision             eioparser.Revision
	transport            string
	connectionTimeout    time.Duration
}

func (config *ClientConfig) resolve() (o clientOptions, err error) {
	o.namespace = config.Namespace
	if o.namespace == "/" {
		o.namespace = ""
	}
	if o.namespace != "" && o.namespace[0] != '/' {
		o.namespace = "/" + o.namespace
	}

	o.path = config.Path
	if o.path == "" {
		o.path = DefaultPath
	}
	o.query = append([]QueryParam(nil), config.Query...)
	o.noReconnection = config.NoReconnection
	o.reconnectionAttempts = config.ReconnectionAttempts

	if config.ReconnectionDelay != nil {
		o.reconnectionDelay = *config.ReconnectionDelay
	} else {
		o.reconnectionDelay = DefaultReconnectionDelay
	}
	if o.reconnectionDelay < 0 {
		return o, &ConfigError{Field: "ReconnectionDelay", Err: fmt.Errorf("negative duration %s", o.reconnectionDelay)}
	}

	if config.ReconnectionDelayMax != nil {
		o.reconnectionDelayMax = *config.ReconnectionDelayMax
	} else {
		o.reconnectionDelayMax = DefaultReconnectionDelayMax
	}
	if o.reconnectionDelayMax < o.reconnectionDelay {
		return o, &ConfigError{Field: "ReconnectionDelayMax", Err: fmt.Errorf("%s is less than the reconnection delay", o.reconnectionDelayMax)}
	}

	if config.RandomizationFactor != nil {
		o.randomizationFactor = *config.RandomizationFactor
	} else {
		o.randomizationFactor = DefaultRandomizationFactor
	}
	if o.randomizationFactor < 0 || o.randomizationFactor >= 1 {
		return o, &ConfigError{Field: "RandomizationFactor", Err: fmt.Errorf("%v is not in [0, 1)", o.randomizationFactor)}
	}

	o.revision = config.EIO
	if o.revision == 0 {
		o.revision = DefaultRevision
	}
	if !o.revision.Valid() {
		return o, &ConfigError{Field: "EIO", Err: fmt.Errorf("unsupported revision %d", o.revision)}
	}

	o.transport = config.Transport
	if o.transport == "" {
		o.transport = DefaultTransport
	}
	if o.transport != "websocket" && o.transport != "polling" {
		return o, &ConfigError{Field: "Transport", Err: fmt.Errorf("unknown transport %q", o.transport)}
	}

	if config.ConnectionTimeout != nil {
		o.connectionTimeout = *config.ConnectionTimeout
	} else {
		o.connectionTimeout = DefaultConnectionTimeout
	}
	if o.connectionTimeout <= 0 {
		return o, &ConfigError{Field: "ConnectionTimeout", Err: fmt.Errorf("%s is not positive", o.connectionTimeout)}
	}
	return o, nil
}
