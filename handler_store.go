package sio

import "github.com/karagenc/socket.io-client-go/internal/sync"

// Subscription is returned when a handler is registered.
// Release removes that handler. It is safe to call more than once.
type Subscription struct {
	once    sync.Once
	release func()
}

func newSubscription(release func()) *Subscription {
	return &Subscription{release: release}
}

func (s *Subscription) Release() {
	if s == nil {
		return
	}
	s.once.Do(s.release)
}

type handlerEntry[T any] struct {
	handler T
}

type handlerStore[T any] struct {
	mu    sync.Mutex
	funcs []*handlerEntry[T]
}

func newHandlerStore[T any]() *handlerStore[T] {
	return new(handlerStore[T])
}

func (e *handlerStore[T]) on(handler T) *Subscription {
	entry := &handlerEntry[T]{handler: handler}
	e.mu.Lock()
	e.funcs = append(e.funcs, entry)
	e.mu.Unlock()
	return newSubscription(func() { e.off(entry) })
}

func (e *handlerStore[T]) prepend(handler T) *Subscription {
	entry := &handlerEntry[T]{handler: handler}
	e.mu.Lock()
	e.funcs = append([]*handlerEntry[T]{entry}, e.funcs...)
	e.mu.Unlock()
	return newSubscription(func() { e.off(entry) })
}

func (e *handlerStore[T]) off(entry *handlerEntry[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, h := range e.funcs {
		if h == entry {
			// Copy, so that snapshots taken by getAll stay intact.
			funcs := make([]*handlerEntry[T], 0, len(e.funcs)-1)
			funcs = append(funcs, e.funcs[:i]...)
			e.funcs = append(funcs, e.funcs[i+1:]...)
			return
		}
	}
}

func (e *handlerStore[T]) offAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.funcs = nil
}

func (e *handlerStore[T]) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.funcs)
}

func (e *handlerStore[T]) getAll() (handlers []T) {
	e.mu.Lock()
	defer e.mu.Unlock()
	handlers = make([]T, len(e.funcs))
	for i, h := range e.funcs {
		handlers[i] = h.handler
	}
	return
}

// forEach calls fn with a copy of the handlers. A panic in
// one handler is passed to onPanic and does not stop the rest.
func (e *handlerStore[T]) forEach(fn func(handler T), onPanic func(v any)) {
	for _, handler := range e.getAll() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					onPanic(r)
				}
			}()
			fn(handler)
		}()
	}
}

// eventHandlerStore holds a single handler per event name.
type eventHandlerStore struct {
	mu     sync.Mutex
	events map[string]*handlerEntry[EventHandler]
}

func newEventHandlerStore() *eventHandlerStore {
	return &eventHandlerStore{
		events: make(map[string]*handlerEntry[EventHandler]),
	}
}

// on replaces the handler of the event, if any.
func (e *eventHandlerStore) on(eventName string, handler EventHandler) *Subscription {
	entry := &handlerEntry[EventHandler]{handler: handler}
	e.mu.Lock()
	e.events[eventName] = entry
	e.mu.Unlock()
	return newSubscription(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.events[eventName] == entry {
			delete(e.events, eventName)
		}
	})
}

func (e *eventHandlerStore) off(eventName string) {
	e.mu.Lock()
	delete(e.events, eventName)
	e.mu.Unlock()
}

func (e *eventHandlerStore) offAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k := range e.events {
		delete(e.events, k)
	}
}

func (e *eventHandlerStore) get(eventName string) (EventHandler, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.events[eventName]
	if !ok {
		return nil, false
	}
	return entry.handler, true
}
