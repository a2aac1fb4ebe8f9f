package sio

import (
	"context"
	"net/url"
	"strings"
	"time"

	eio "github.com/karagenc/socket.io-client-go/engine.io"
	eioparser "github.com/karagenc/socket.io-client-go/engine.io/parser"
	"github.com/karagenc/socket.io-client-go/internal/sync"
	"github.com/karagenc/socket.io-client-go/parser"
)

type transportState int

const (
	transportStateUnconnected transportState = iota
	transportStateConnecting
	transportStateOpen
	transportStateNamespaceConnecting
	transportStateNamespaceConnected
	transportStateDisconnected
)

func (s transportState) String() string {
	switch s {
	case transportStateUnconnected:
		return "unconnected"
	case transportStateConnecting:
		return "connecting"
	case transportStateOpen:
		return "open"
	case transportStateNamespaceConnecting:
		return "namespace connecting"
	case transportStateNamespaceConnected:
		return "namespace connected"
	case transportStateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// clientTransport is the Socket.IO half of one connection.
// It owns the Engine.IO socket and turns its packets into messages.
type clientTransport struct {
	client    *Client
	codec     *parser.Codec
	namespace string
	debug     Debugger

	// Engine.IO calls OnPacket from a single goroutine,
	// the mutex only protects Reset on close.
	decoderMu sync.Mutex
	decoder   *parser.Decoder

	mu     sync.RWMutex
	state  transportState
	socket *eio.ClientSocket
	sid    string

	connected  chan struct{}
	connectErr chan error

	closed      chan struct{}
	closeOnce   sync.Once
	closeReason Reason
	closeErr    error
}

func newClientTransport(c *Client) *clientTransport {
	return &clientTransport{
		client:     c,
		codec:      c.codec,
		namespace:  c.opts.namespace,
		debug:      c.debug,
		decoder:    parser.NewDecoder(c.codec),
		connected:  make(chan struct{}),
		connectErr: make(chan error, 1),
		closed:     make(chan struct{}),
	}
}

// dialTransport opens a new connection and connects to the namespace.
// It returns once the namespace is connected.
func (c *Client) dialTransport(ctx context.Context) (*clientTransport, error) {
	u, err := ResolveURL(c.url, c.opts.transport, c.opts.revision, c.opts.path, c.opts.query)
	if err != nil {
		return nil, err
	}

	t := newClientTransport(c)
	t.setState(transportStateConnecting)

	callbacks := &eio.Callbacks{
		OnPacket: t.onPackets,
		OnPing:   t.onPing,
		OnPong:   t.onPong,
		OnError:  t.onError,
		OnClose:  t.onClose,
	}
	c.debug.Log("Dialing", u.String())
	socket, err := eio.Dial(ctx, u.String(), callbacks, &c.eioConfig)
	if err != nil {
		t.setState(transportStateDisconnected)
		return nil, err
	}

	t.mu.Lock()
	t.socket = socket
	t.state = transportStateOpen
	t.mu.Unlock()
	t.publish(&parser.Message{Type: parser.MessageTypeOpened, Handshake: socket.Handshake()})

	if c.opts.revision == eioparser.Revision3 && t.namespace == "" {
		// Revision 3 servers connect the default namespace implicitly.
		t.setNamespaceConnected(socket.ID())
	} else {
		m := &parser.Message{
			Type:      parser.MessageTypeConnected,
			Namespace: t.namespace,
		}
		if c.opts.revision == eioparser.Revision3 {
			m.Query = c.connectQuery()
		} else {
			m.Auth, err = c.auth.marshal(c.json)
			if err != nil {
				t.close()
				return nil, err
			}
		}

		t.setState(transportStateNamespaceConnecting)
		err = t.send(m)
		if err != nil {
			t.close()
			return nil, err
		}
	}

	select {
	case <-t.connected:
		return t, nil
	case err := <-t.connectErr:
		t.close()
		return nil, err
	case <-t.closed:
		return nil, t.closedError()
	case <-ctx.Done():
		t.close()
		return nil, ctx.Err()
	}
}

// connectQuery is escaped like the URL query, so ',' and '&' cannot end the CONNECT frame early.
func (c *Client) connectQuery() string {
	var b strings.Builder
	for i, p := range c.opts.query {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

func (t *clientTransport) getState() transportState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *clientTransport) setState(state transportState) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
	t.debug.Log("Transport state", state)
}

func (t *clientTransport) ID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sid
}

func (t *clientTransport) setNamespaceConnected(sid string) {
	t.mu.Lock()
	if t.state != transportStateNamespaceConnecting && t.state != transportStateOpen {
		t.mu.Unlock()
		return
	}
	if sid == "" && t.socket != nil {
		sid = t.socket.ID()
	}
	t.sid = sid
	t.state = transportStateNamespaceConnected
	t.mu.Unlock()

	t.debug.Log("Namespace connected", t.namespace, "sid", sid)
	t.publish(&parser.Message{Type: parser.MessageTypeConnected, Namespace: t.namespace, SID: sid})
	close(t.connected)
}

func (t *clientTransport) onPackets(packets ...*eioparser.Packet) {
	t.decoderMu.Lock()
	defer t.decoderMu.Unlock()

	for _, p := range packets {
		// Heartbeat and close packets are handled by Engine.IO.
		if p.Type != eioparser.PacketTypeMessage {
			continue
		}
		m, err := t.decoder.Add(p)
		if err != nil {
			t.debug.Log("Dropping malformed packet", err)
			continue
		}
		if m != nil {
			t.handleMessage(m)
		}
	}
}

func (t *clientTransport) handleMessage(m *parser.Message) {
	if m.Namespace != t.namespace {
		t.debug.Log("Dropping message for namespace", m.NamespaceOrDefault())
		return
	}

	state := t.getState()
	switch m.Type {
	case parser.MessageTypeConnected:
		if state == transportStateNamespaceConnecting {
			t.setNamespaceConnected(m.SID)
		} else {
			t.debug.Log("Ignoring CONNECT in state", state)
		}
		return
	case parser.MessageTypeError:
		if state == transportStateNamespaceConnecting {
			select {
			case t.connectErr <- &ServerError{Message: m.ErrorMessage, Data: m.Data}:
			default:
			}
			return
		}
	}

	if state != transportStateNamespaceConnected {
		t.debug.Log("Dropping", m.Type, "in state", state)
		return
	}
	t.publish(m)
}

func (t *clientTransport) publish(m *parser.Message) {
	t.client.onMessage(t, m)
}

func (t *clientTransport) onPing() {
	t.publish(&parser.Message{Type: parser.MessageTypePing})
}

func (t *clientTransport) onPong(latency time.Duration) {
	t.publish(&parser.Message{Type: parser.MessageTypePong, Latency: latency})
}

func (t *clientTransport) onError(err error) {
	t.debug.Log("Engine.IO error", err)
}

func (t *clientTransport) onClose(reason eio.Reason, err error) {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.state = transportStateDisconnected
		t.closeReason = reason
		t.closeErr = err
		t.mu.Unlock()
		close(t.closed)
	})

	t.decoderMu.Lock()
	t.decoder.Reset()
	t.decoderMu.Unlock()

	t.debug.Log("Transport closed. Reason", reason)
	t.client.onTransportClose(t, reason, err)
}

func (t *clientTransport) closedError() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closeErr != nil {
		return t.closeErr
	}
	return &TransportError{Op: "connect", Err: errTransportClosed}
}

// send writes m and its attachments. Callers serialize writes.
func (t *clientTransport) send(m *parser.Message) error {
	t.mu.RLock()
	socket := t.socket
	t.mu.RUnlock()
	if socket == nil {
		return ErrNotConnected
	}

	packets, err := t.codec.Packets(m)
	if err != nil {
		return err
	}
	return socket.Send(packets...)
}

func (t *clientTransport) sendDisconnect() error {
	return t.send(&parser.Message{Type: parser.MessageTypeDisconnected, Namespace: t.namespace})
}

// close must not be called with the client's state lock held.
// The close callback runs synchronously.
func (t *clientTransport) close() {
	t.mu.RLock()
	socket := t.socket
	t.mu.RUnlock()
	if socket != nil {
		socket.Close()
	}
}
