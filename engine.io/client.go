package eio

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/karagenc/socket.io-client-go/engine.io/parser"
	"github.com/karagenc/socket.io-client-go/engine.io/transport"
	"github.com/karagenc/socket.io-client-go/engine.io/transport/polling"
	"github.com/karagenc/socket.io-client-go/engine.io/transport/websocket"
)

type ClientConfig struct {
	// Protocol revision. If this is zero, the `EIO` query value
	// of the URL is used. If that is missing too, DefaultRevision is used.
	Revision parser.Revision

	// Custom WebSocket dialer to use.
	//
	// Default is nhooyr.io/websocket with default options.
	WebSocketDialer transport.WebSocketDialer

	// Additional HTTP headers to use.
	// Can be used for authentication.
	RequestHeader http.Header

	// Custom HTTP transport to use.
	//
	// If this is a http.Transport it will be cloned and timeout(s) will be set later on.
	// If not, it is the user's responsibility to set a proper timeout so when polling takes too long, we don't fail.
	HTTPTransport http.RoundTripper

	Debugger Debugger
}

// Dial connects to rawURL with the transport named by its `transport` query value
// (websocket or polling) and performs the handshake. ctx bounds the handshake only.
func Dial(ctx context.Context, rawURL string, callbacks *Callbacks, config *ClientConfig) (*ClientSocket, error) {
	if callbacks == nil {
		callbacks = new(Callbacks)
	}
	callbacks.setMissing()

	if config == nil {
		config = new(ClientConfig)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	rev, err := revisionOf(u, config.Revision)
	if err != nil {
		return nil, err
	}

	transportName := u.Query().Get("transport")
	if transportName == "" {
		transportName = DefaultTransport
	}
	normalizeScheme(u, transportName)

	socket := &ClientSocket{
		url:           u,
		revision:      rev,
		requestHeader: transport.NewRequestHeader(config.RequestHeader),
		callbacks:     *callbacks,
		pingChan:      make(chan struct{}, 1),
		pongChan:      make(chan struct{}, 1),
		closeChan:     make(chan struct{}),
	}

	if config.Debugger != nil {
		socket.debug = config.Debugger.WithDynamicContext("[eio]", func() string {
			// Set once by connect, before any other goroutine logs.
			if socket.handshake == nil {
				return ""
			}
			return "sid " + socket.handshake.SID
		})
	} else {
		socket.debug = NewNoopDebugger()
	}

	c := transport.NewCallbacks()
	switch transportName {
	case "websocket":
		dialer := config.WebSocketDialer
		if dialer == nil {
			dialer = websocket.NewDialer(nil)
		}
		socket.transport = dialer(c, rev, *u, socket.requestHeader)
	case "polling":
		socket.transport = polling.NewClientTransport(c, rev, *u, socket.requestHeader, newHTTPClient(config.HTTPTransport))
	default:
		return nil, fmt.Errorf("%w: %s", errInvalidTransport, transportName)
	}
	c.Set(socket.onPacket, socket.onDecodeError, socket.onTransportClose)
	socket.debug.Log("Transport is set to", transportName)

	err = socket.connect(ctx)
	if err != nil {
		return nil, err
	}
	return socket, nil
}

func revisionOf(u *url.URL, rev parser.Revision) (parser.Revision, error) {
	if rev == 0 {
		eio := u.Query().Get("EIO")
		if eio == "" {
			return DefaultRevision, nil
		}
		n, err := strconv.Atoi(eio)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", errInvalidRevision, eio)
		}
		rev = parser.Revision(n)
	}
	if !rev.Valid() {
		return 0, fmt.Errorf("%w: %d", errInvalidRevision, rev)
	}
	return rev, nil
}

func normalizeScheme(u *url.URL, transportName string) {
	if transportName == "polling" {
		switch u.Scheme {
		case "wss":
			u.Scheme = "https"
		case "ws":
			u.Scheme = "http"
		}
		return
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
}

func newHTTPClient(t http.RoundTripper) *http.Client {
	// Clone the transport, so that we don't change the default timeouts later on. See: polling/client.go
	// If we're unable to clone the transport, leave it as it is.
	if t == nil {
		ht, ok := http.DefaultTransport.(*http.Transport)
		if ok {
			t = ht.Clone()
		} else {
			t = http.DefaultTransport
		}
	} else {
		ht, ok := t.(*http.Transport)
		if ok {
			t = ht.Clone()
		}
	}

	return &http.Client{
		Transport: t,
		Timeout:   0,
	}
}
