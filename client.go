package sio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	eio "github.com/karagenc/socket.io-client-go/engine.io"
	eioparser "github.com/karagenc/socket.io-client-go/engine.io/parser"
	"github.com/karagenc/socket.io-client-go/internal/sync"
	"github.com/karagenc/socket.io-client-go/parser"
	"github.com/karagenc/socket.io-client-go/parser/json/serializer"
	"github.com/karagenc/socket.io-client-go/parser/json/serializer/stdjson"
)

// Client is a Socket.IO client bound to a single namespace.
// It reconnects on its own unless that is disabled.
type Client struct {
	url       string
	opts      clientOptions
	eioConfig eio.ClientConfig
	json      serializer.JSONSerializer
	codec     *parser.Codec
	auth      *Auth
	debug     Debugger

	backoff *backoff
	acks    *ackTable

	// Held from encoding through the send, so that
	// packet ids are increasing on the wire.
	writeMu sync.Mutex

	stateMu       sync.RWMutex
	state         clientConnectionState
	conn          *clientTransport
	loop          *connectLoop
	skipReconnect bool

	// Cancelled by Dispose.
	ctx      context.Context
	cancel   context.CancelFunc
	disposed atomic.Bool

	expectedMu     sync.RWMutex
	expectedErrors []error

	handlers clientHandlers
	queue    *dispatchQueue
}

// NewClient validates the configuration and returns an idle client.
// Call Connect or ConnectContext to connect.
func NewClient(url string, config *ClientConfig) (*Client, error) {
	if config == nil {
		config = new(ClientConfig)
	} else {
		// User can modify the config. We copy the config here in order to avoid problems.
		c := *config
		config = &c
	}

	opts, err := config.resolve()
	if err != nil {
		return nil, err
	}
	_, err = ResolveURL(url, opts.transport, opts.revision, opts.path, opts.query)
	if err != nil {
		return nil, &ConfigError{Field: "URL", Err: err}
	}

	c := &Client{
		url:      url,
		opts:     opts,
		auth:     newAuth(),
		acks:     newAckTable(),
		handlers: newClientHandlers(),
		queue:    newDispatchQueue(),
		state:    clientConnStateIdle,
	}
	err = c.auth.Set(config.Auth)
	if err != nil {
		return nil, &ConfigError{Field: "Auth", Err: err}
	}

	c.json = config.JSON
	if c.json == nil {
		c.json = stdjson.New()
	}
	c.codec = parser.NewCodec(opts.revision, c.json)

	if config.Debugger != nil {
		c.debug = config.Debugger
	} else {
		c.debug = NewNoopDebugger()
	}
	c.eioConfig = eio.ClientConfig{
		Revision:        opts.revision,
		WebSocketDialer: config.WebSocketDialer,
		RequestHeader:   config.RequestHeader,
		HTTPTransport:   config.HTTPTransport,
		Debugger:        config.Debugger,
	}
	c.debug = c.debug.WithContext("[sio] Client with URL: " + truncateURL(url))

	c.backoff = newBackoff(opts.reconnectionDelay, opts.reconnectionDelayMax, opts.randomizationFactor)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	go c.queue.run(c.onHandlerPanic)
	return c, nil
}

// ID is the session id of the namespace connection.
// Empty when not connected.
func (c *Client) ID() string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.conn == nil {
		return ""
	}
	return c.conn.ID()
}

func (c *Client) Connected() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state == clientConnStateConnected
}

// Connecting reports whether a connect or reconnect loop is running.
func (c *Client) Connecting() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state == clientConnStateConnecting || c.state == clientConnStateReconnecting
}

// Attempts is the number of failed attempts of the current reconnection loop.
func (c *Client) Attempts() uint32 { return c.backoff.attempts() }

// Namespace is "/" for the default namespace.
func (c *Client) Namespace() string {
	if c.opts.namespace == "" {
		return "/"
	}
	return c.opts.namespace
}

func (c *Client) Revision() eioparser.Revision { return c.opts.revision }

// URL is the address passed to NewClient.
func (c *Client) URL() string { return c.url }

func (c *Client) Auth() any { return c.auth.Get() }

// SetAuth replaces the auth data. It is used from the next connection on.
func (c *Client) SetAuth(v any) error { return c.auth.Set(v) }

// AddExpectedError marks connect errors matching target (with errors.Is) as expected.
// Expected errors trigger reconnection instead of failing the connect loop.
func (c *Client) AddExpectedError(target error) {
	c.expectedMu.Lock()
	c.expectedErrors = append(c.expectedErrors, target)
	c.expectedMu.Unlock()
}

func (c *Client) isExpected(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	c.expectedMu.RLock()
	defer c.expectedMu.RUnlock()
	for _, target := range c.expectedErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (c *Client) transport() (*clientTransport, error) {
	if c.disposed.Load() {
		return nil, ErrDisposed
	}
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.state != clientConnStateConnected || c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

// Emit sends an event without waiting for anything.
// []byte and parser.Binary values are sent as attachments.
func (c *Client) Emit(event string, args ...any) error {
	_, err := c.emit(event, nil, args)
	return err
}

// EmitWithAck sends an event and calls ack once the server acknowledges it.
func (c *Client) EmitWithAck(event string, ack AckHandler, args ...any) error {
	if ack == nil {
		return fmt.Errorf("sio: ack handler is nil")
	}
	_, err := c.emit(event, ack, args)
	return err
}

// EmitJSON sends each string as a JSON argument, verbatim.
func (c *Client) EmitJSON(event string, rawJSON ...string) error {
	args := make([]any, len(rawJSON))
	for i, s := range rawJSON {
		if !json.Valid([]byte(s)) {
			return fmt.Errorf("%w: argument %d", ErrInvalidJSON, i)
		}
		args[i] = json.RawMessage(s)
	}
	_, err := c.emit(event, nil, args)
	return err
}

// Request emits the event and waits for the ack.
// If ctx is done first, the pending ack is dropped.
func (c *Client) Request(ctx context.Context, event string, args ...any) (*Response, error) {
	ch := make(chan *Response, 1)
	id, err := c.emit(event, func(res *Response) { ch <- res }, args)
	if err != nil {
		return nil, err
	}

	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		c.acks.remove(id)
		return nil, ctx.Err()
	}
}

func (c *Client) emit(event string, ack AckHandler, args []any) (id uint64, err error) {
	if event == "" {
		return 0, ErrEmptyEvent
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	t, err := c.transport()
	if err != nil {
		return 0, err
	}

	raw, attachments, err := parser.EncodeArgs(c.json, args...)
	if err != nil {
		return 0, err
	}

	m := &parser.Message{
		Type:      parser.MessageTypeEvent,
		Namespace: c.opts.namespace,
		Event:     event,
		Args:      raw,
	}
	if len(attachments) > 0 {
		m.Type = parser.MessageTypeBinaryEvent
		m.Attachments = attachments
	}
	if ack != nil {
		id = c.acks.add(ack)
		m.ID = &id
	}

	err = t.send(m)
	if err != nil && ack != nil {
		c.acks.remove(id)
	}
	return id, err
}

func (c *Client) sendAck(t *clientTransport, id uint64, args []any) error {
	if c.disposed.Load() {
		return ErrDisposed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	raw, attachments, err := parser.EncodeArgs(c.json, args...)
	if err != nil {
		return err
	}
	m := &parser.Message{
		Type:      parser.MessageTypeAck,
		Namespace: c.opts.namespace,
		ID:        &id,
		Args:      raw,
	}
	if len(attachments) > 0 {
		m.Type = parser.MessageTypeBinaryAck
		m.Attachments = attachments
	}
	return t.send(m)
}

// onMessage is called on the read goroutine of t.
func (c *Client) onMessage(t *clientTransport, m *parser.Message) {
	switch m.Type {
	case parser.MessageTypeOpened:
		c.debug.Log("Opened. sid", m.Handshake.SID)
	case parser.MessageTypeConnected:
		c.debug.Log("Namespace connected")
	case parser.MessageTypePing:
		c.emitPing()
	case parser.MessageTypePong:
		c.emitPong(m.Latency)
	case parser.MessageTypeEvent, parser.MessageTypeBinaryEvent:
		res := newResponse(c, t, m)
		c.queue.add(func() { c.dispatchEvent(res) })
	case parser.MessageTypeAck, parser.MessageTypeBinaryAck:
		ack, ok := c.acks.take(*m.ID)
		if !ok {
			c.debug.Log("Unknown ack id", *m.ID)
			return
		}
		res := newResponse(c, t, m)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					c.onHandlerPanic(r)
				}
			}()
			ack(res)
		}()
	case parser.MessageTypeError:
		c.debug.Log("Server error", m.ErrorMessage)
		c.emitError(m.ErrorMessage)
	case parser.MessageTypeDisconnected:
		c.onServerDisconnect(t)
	}
}

func (c *Client) dispatchEvent(res *Response) {
	event := res.Event()
	c.handlers.any.forEach(func(h AnyHandler) { h(event, res) }, c.onHandlerPanic)

	handler, ok := c.handlers.events.get(event)
	if !ok {
		return
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				c.onHandlerPanic(r)
			}
		}()
		handler(res)
	}()
}
