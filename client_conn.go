package sio

import (
	"context"
	"time"
)

// Client methods that are directly related to
// connection, reconnection, and disconnection functionalities.

type clientConnectionState int

const (
	clientConnStateIdle clientConnectionState = iota
	clientConnStateConnecting
	clientConnStateConnected
	clientConnStateReconnecting
	clientConnStateDisconnected
)

func (s clientConnectionState) String() string {
	switch s {
	case clientConnStateIdle:
		return "idle"
	case clientConnStateConnecting:
		return "connecting"
	case clientConnStateConnected:
		return "connected"
	case clientConnStateReconnecting:
		return "reconnecting"
	case clientConnStateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// A running connect or reconnect loop. At most one exists at a time.
type connectLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Connect starts connecting in the background.
// It does nothing if the client is connected or already connecting.
func (c *Client) Connect() {
	c.startLoop(false)
}

// ConnectContext connects and waits for the result.
//
// It returns nil once the namespace is connected. If reconnection is
// enabled, failed attempts are retried until the attempts are exhausted
// (ErrReconnectFailed) or an error that is not expected occurs.
// If ctx is done first, ctx.Err() is returned.
func (c *Client) ConnectContext(ctx context.Context) error {
	loop, started := c.startLoop(false)
	if loop == nil {
		if c.disposed.Load() {
			return ErrDisposed
		}
		return nil
	}

	select {
	case <-loop.done:
		return loop.err
	case <-ctx.Done():
		if started {
			c.stopLoop(loop)
		}
		return ctx.Err()
	}
}

// startLoop returns the running loop, or starts a new one.
// It returns nil if the client is connected or disposed.
func (c *Client) startLoop(reconnecting bool) (loop *connectLoop, started bool) {
	if c.disposed.Load() {
		return nil, false
	}

	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if c.loop != nil {
		return c.loop, false
	}
	if c.state == clientConnStateConnected {
		return nil, false
	}

	if reconnecting {
		if c.skipReconnect {
			return nil, false
		}
		c.state = clientConnStateReconnecting
	} else {
		c.skipReconnect = false
		c.state = clientConnStateConnecting
	}

	ctx, cancel := context.WithCancel(c.ctx)
	loop = &connectLoop{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.loop = loop
	go c.runLoop(ctx, loop, reconnecting)
	return loop, true
}

func (c *Client) stopLoop(loop *connectLoop) {
	c.stateMu.Lock()
	loop.cancel()
	if c.loop == loop {
		c.loop = nil
		if c.state != clientConnStateConnected {
			c.state = clientConnStateDisconnected
		}
	}
	c.stateMu.Unlock()
}

func (c *Client) runLoop(ctx context.Context, loop *connectLoop, reconnecting bool) {
	defer close(loop.done)

	loop.err = c.connectLoop(ctx, loop, reconnecting)

	c.stateMu.Lock()
	if c.loop == loop {
		c.loop = nil
		if loop.err != nil {
			c.state = clientConnStateDisconnected
		}
	}
	c.stateMu.Unlock()
	loop.cancel()
}

func (c *Client) connectLoop(ctx context.Context, loop *connectLoop, reconnecting bool) error {
	// When reconnecting, every pass waits before dialing.
	wait := reconnecting
	for {
		if wait {
			attempts := c.backoff.attempts()
			if c.opts.reconnectionAttempts > 0 && attempts > c.opts.reconnectionAttempts {
				c.debug.Log("Maximum attempts reached. Attempts made so far", attempts)
				c.backoff.reset()
				c.emitReconnectFailed()
				return ErrReconnectFailed
			}

			c.setLoopState(clientConnStateReconnecting)
			delay := c.backoff.duration()
			c.debug.Log("Delay before reconnect attempt", delay)
			err := sleepContext(ctx, delay)
			if err != nil {
				return err
			}
			c.emitReconnectAttempt(attempts)
		}

		err := c.connectOnce(ctx, loop)
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !c.isExpected(err) {
			c.debug.Log("Connect failed", err)
			c.backoff.reset()
			c.emitError(err.Error())
			return err
		}
		if c.opts.noReconnection {
			c.debug.Log("Connect failed, reconnection is disabled", err)
			return err
		}

		attempts := c.backoff.increment()
		c.debug.Log("Connect attempt failed", attempts, err)
		if attempts > 1 {
			c.emitReconnectError(err)
		}
		wait = true
	}
}

func (c *Client) setLoopState(state clientConnectionState) {
	c.stateMu.Lock()
	if c.state != clientConnStateConnected {
		c.state = state
	}
	c.stateMu.Unlock()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// connectOnce runs a single attempt: URL resolution, a new transport,
// the handshake and the namespace connect.
//
// On success the transport becomes current and loop stops being the
// running loop in the same critical section, so a close that follows
// starts a new reconnect loop.
func (c *Client) connectOnce(ctx context.Context, loop *connectLoop) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.connectionTimeout)
	defer cancel()

	t, err := c.dialTransport(ctx)
	if err != nil {
		return err
	}

	// A new connection starts a new id sequence.
	c.acks.reset()

	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	// Disconnect or Dispose won the race.
	if ctx.Err() != nil {
		go t.close()
		return ctx.Err()
	}
	// Closed before it became current. The close callback was ignored.
	select {
	case <-t.closed:
		return t.closedError()
	default:
	}

	c.conn = t
	c.state = clientConnStateConnected
	if c.loop == loop {
		c.loop = nil
	}

	attempts := c.backoff.attempts()
	c.backoff.reset()
	c.debug.Log("Connected")
	// Queued under the lock so OnConnect always precedes
	// the OnDisconnect of this transport.
	c.emitConnect()
	if attempts > 0 {
		c.emitReconnect(attempts)
	}
	return nil
}

// onTransportClose handles the end of a connection.
// Transports other than the current one are ignored.
func (c *Client) onTransportClose(t *clientTransport, reason Reason, err error) {
	c.stateMu.Lock()
	if c.conn != t {
		c.stateMu.Unlock()
		return
	}
	c.conn = nil
	c.state = clientConnStateDisconnected
	skip := c.skipReconnect || c.opts.noReconnection
	c.stateMu.Unlock()

	if err != nil {
		c.debug.Log("Disconnected. Reason", reason, err)
	} else {
		c.debug.Log("Disconnected. Reason", reason)
	}
	c.emitDisconnect(reason)

	if !skip && Reconnectable(reason) {
		c.backoff.increment()
		c.startLoop(true)
	}
}

func (c *Client) onServerDisconnect(t *clientTransport) {
	c.stateMu.Lock()
	if c.conn != t {
		c.stateMu.Unlock()
		return
	}
	c.conn = nil
	c.state = clientConnStateDisconnected
	c.stateMu.Unlock()

	c.debug.Log("Disconnected by the server")
	c.emitDisconnect(ReasonIOServerDisconnect)
	// The close callback is ignored since the transport is no longer current.
	go t.close()
}

// Disconnect leaves the namespace and closes the connection.
// A running connect or reconnect loop is stopped and
// no reconnection happens until Connect is called again.
func (c *Client) Disconnect() {
	c.stateMu.Lock()
	c.skipReconnect = true
	if c.loop != nil {
		c.loop.cancel()
		c.loop = nil
	}
	t := c.conn
	c.conn = nil
	wasConnected := c.state == clientConnStateConnected
	if c.state != clientConnStateIdle {
		c.state = clientConnStateDisconnected
	}
	c.stateMu.Unlock()

	if t != nil {
		c.writeMu.Lock()
		err := t.sendDisconnect()
		c.writeMu.Unlock()
		if err != nil {
			c.debug.Log("Failed to send DISCONNECT", err)
		}
		t.close()
	}
	c.backoff.reset()

	if wasConnected {
		c.emitDisconnect(ReasonIOClientDisconnect)
	}
}

// Dispose stops everything and drops all handlers and pending acks.
// The client cannot be used afterwards.
func (c *Client) Dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}
	c.debug.Log("Disposing")

	c.stateMu.Lock()
	c.skipReconnect = true
	c.loop = nil
	t := c.conn
	c.conn = nil
	c.state = clientConnStateDisconnected
	c.cancel()
	c.stateMu.Unlock()

	c.handlers.offAll()
	c.queue.close()
	c.acks.reset()
	if t != nil {
		t.close()
	}
}
