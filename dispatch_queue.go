package sio

import "github.com/karagenc/socket.io-client-go/internal/sync"

// dispatchQueue runs handler invocations one by one, in the order they were added.
// The read goroutine adds to it and never blocks on user code.
type dispatchQueue struct {
	funcs []func()
	mu    sync.Mutex

	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newDispatchQueue() *dispatchQueue {
	return &dispatchQueue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (q *dispatchQueue) poll() (funcs []func(), ok bool) {
	for {
		funcs = q.get()
		if len(funcs) != 0 {
			return funcs, true
		}

		select {
		case <-q.ready:
		case <-q.done:
			return nil, false
		}
	}
}

func (q *dispatchQueue) get() (funcs []func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	funcs = q.funcs
	q.funcs = nil
	return
}

func (q *dispatchQueue) add(funcs ...func()) {
	select {
	case <-q.done:
		return
	default:
	}

	q.mu.Lock()
	q.funcs = append(q.funcs, funcs...)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// reset drops everything that has not started yet.
func (q *dispatchQueue) reset() {
	q.mu.Lock()
	q.funcs = nil
	q.mu.Unlock()
}

func (q *dispatchQueue) close() {
	q.closeOnce.Do(func() {
		close(q.done)
		q.reset()
	})
}

func (q *dispatchQueue) run(onPanic func(v any)) {
	for {
		funcs, ok := q.poll()
		if !ok {
			return
		}
		for _, fn := range funcs {
			select {
			case <-q.done:
				return
			default:
			}
			q.call(fn, onPanic)
		}
	}
}

func (q *dispatchQueue) call(fn func(), onPanic func(v any)) {
	defer func() {
		if r := recover(); r != nil {
			onPanic(r)
		}
	}()
	fn()
}
