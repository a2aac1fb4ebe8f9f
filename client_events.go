package sio

import "time"

type (
	EventHandler func(res *Response)
	AnyHandler   func(event string, res *Response)
	AckHandler   func(res *Response)

	ConnectHandler          func()
	DisconnectHandler       func(reason Reason)
	ErrorHandler            func(message string)
	ReconnectHandler        func(attempts uint32)
	ReconnectAttemptHandler func(attempt uint32)
	ReconnectErrorHandler   func(err error)
	ReconnectFailedHandler  func()
	PingHandler             func()
	PongHandler             func(latency time.Duration)
)

type clientHandlers struct {
	connect          *handlerStore[ConnectHandler]
	disconnect       *handlerStore[DisconnectHandler]
	errs             *handlerStore[ErrorHandler]
	reconnect        *handlerStore[ReconnectHandler]
	reconnectAttempt *handlerStore[ReconnectAttemptHandler]
	reconnectError   *handlerStore[ReconnectErrorHandler]
	reconnectFailed  *handlerStore[ReconnectFailedHandler]
	ping             *handlerStore[PingHandler]
	pong             *handlerStore[PongHandler]

	events *eventHandlerStore
	any    *handlerStore[AnyHandler]
}

func newClientHandlers() clientHandlers {
	return clientHandlers{
		connect:          newHandlerStore[ConnectHandler](),
		disconnect:       newHandlerStore[DisconnectHandler](),
		errs:             newHandlerStore[ErrorHandler](),
		reconnect:        newHandlerStore[ReconnectHandler](),
		reconnectAttempt: newHandlerStore[ReconnectAttemptHandler](),
		reconnectError:   newHandlerStore[ReconnectErrorHandler](),
		reconnectFailed:  newHandlerStore[ReconnectFailedHandler](),
		ping:             newHandlerStore[PingHandler](),
		pong:             newHandlerStore[PongHandler](),
		events:           newEventHandlerStore(),
		any:              newHandlerStore[AnyHandler](),
	}
}

func (h *clientHandlers) offAll() {
	h.connect.offAll()
	h.disconnect.offAll()
	h.errs.offAll()
	h.reconnect.offAll()
	h.reconnectAttempt.offAll()
	h.reconnectError.offAll()
	h.reconnectFailed.offAll()
	h.ping.offAll()
	h.pong.offAll()
	h.events.offAll()
	h.any.offAll()
}

// On sets the handler of the event. A second call replaces the first handler.
func (c *Client) On(event string, handler EventHandler) *Subscription {
	return c.handlers.events.on(event, handler)
}

func (c *Client) Off(event string) { c.handlers.events.off(event) }

func (c *Client) OffAllEvents() { c.handlers.events.offAll() }

// OnAny handlers run before the named handler, for every event.
func (c *Client) OnAny(handler AnyHandler) *Subscription { return c.handlers.any.on(handler) }

// PrependAny is OnAny, but the handler runs before the ones already registered.
func (c *Client) PrependAny(handler AnyHandler) *Subscription {
	return c.handlers.any.prepend(handler)
}

func (c *Client) OffAny(sub *Subscription) { sub.Release() }

func (c *Client) ListenersAny() []AnyHandler { return c.handlers.any.getAll() }

func (c *Client) OnConnect(handler ConnectHandler) *Subscription {
	return c.handlers.connect.on(handler)
}

func (c *Client) OnDisconnect(handler DisconnectHandler) *Subscription {
	return c.handlers.disconnect.on(handler)
}

// OnError is called for ERROR packets and for connect errors
// that are not expected.
func (c *Client) OnError(handler ErrorHandler) *Subscription {
	return c.handlers.errs.on(handler)
}

func (c *Client) OnReconnect(handler ReconnectHandler) *Subscription {
	return c.handlers.reconnect.on(handler)
}

func (c *Client) OnReconnectAttempt(handler ReconnectAttemptHandler) *Subscription {
	return c.handlers.reconnectAttempt.on(handler)
}

func (c *Client) OnReconnectError(handler ReconnectErrorHandler) *Subscription {
	return c.handlers.reconnectError.on(handler)
}

func (c *Client) OnReconnectFailed(handler ReconnectFailedHandler) *Subscription {
	return c.handlers.reconnectFailed.on(handler)
}

func (c *Client) OnPing(handler PingHandler) *Subscription { return c.handlers.ping.on(handler) }

func (c *Client) OnPong(handler PongHandler) *Subscription { return c.handlers.pong.on(handler) }

// Lifecycle notifications go through the dispatch queue, so they are
// ordered with the events around them.

func (c *Client) emitConnect() {
	c.queue.add(func() {
		c.handlers.connect.forEach(func(h ConnectHandler) { h() }, c.onHandlerPanic)
	})
}

func (c *Client) emitDisconnect(reason Reason) {
	c.queue.add(func() {
		c.handlers.disconnect.forEach(func(h DisconnectHandler) { h(reason) }, c.onHandlerPanic)
	})
}

func (c *Client) emitError(message string) {
	c.queue.add(func() {
		c.handlers.errs.forEach(func(h ErrorHandler) { h(message) }, c.onHandlerPanic)
	})
}

func (c *Client) emitReconnect(attempts uint32) {
	c.queue.add(func() {
		c.handlers.reconnect.forEach(func(h ReconnectHandler) { h(attempts) }, c.onHandlerPanic)
	})
}

func (c *Client) emitReconnectAttempt(attempt uint32) {
	c.queue.add(func() {
		c.handlers.reconnectAttempt.forEach(func(h ReconnectAttemptHandler) { h(attempt) }, c.onHandlerPanic)
	})
}

func (c *Client) emitReconnectError(err error) {
	c.queue.add(func() {
		c.handlers.reconnectError.forEach(func(h ReconnectErrorHandler) { h(err) }, c.onHandlerPanic)
	})
}

func (c *Client) emitReconnectFailed() {
	c.queue.add(func() {
		c.handlers.reconnectFailed.forEach(func(h ReconnectFailedHandler) { h() }, c.onHandlerPanic)
	})
}

func (c *Client) emitPing() {
	c.queue.add(func() {
		c.handlers.ping.forEach(func(h PingHandler) { h() }, c.onHandlerPanic)
	})
}

func (c *Client) emitPong(latency time.Duration) {
	c.queue.add(func() {
		c.handlers.pong.forEach(func(h PongHandler) { h(latency) }, c.onHandlerPanic)
	})
}

func (c *Client) onHandlerPanic(v any) {
	c.debug.Log("Handler panicked", v)
}
