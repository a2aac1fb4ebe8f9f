package utils

import (
	"fmt"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/karagenc/socket.io-client-go/internal/sync"
)

// Handlers run on the client's dispatch goroutine; tests wait on them with this.
const DefaultTestWaitTimeout = time.Second * 12

// TestWaiter is a sync.WaitGroup with a timeout.
type TestWaiter struct {
	wg sync.WaitGroup
}

func NewTestWaiter(delta int) *TestWaiter {
	w := new(TestWaiter)
	w.wg.Add(delta)
	return w
}

func (w *TestWaiter) Add(delta int) { w.wg.Add(delta) }

func (w *TestWaiter) Done() { w.wg.Done() }

func (w *TestWaiter) Wait() { w.wg.Wait() }

// WaitTimeout fails t if Done was not called enough times within timeout.
func (w *TestWaiter) WaitTimeout(t *testing.T, timeout time.Duration) (timedout bool) {
	t.Helper()
	return waitTimeout(t, &w.wg, timeout, nil)
}

// TestWaiterString waits for named steps. Each name must be done exactly once.
type TestWaiterString struct {
	wg      sync.WaitGroup
	pending mapset.Set[string]
}

func NewTestWaiterString() *TestWaiterString {
	return &TestWaiterString{pending: mapset.NewSet[string]()}
}

func (w *TestWaiterString) Add(s string) {
	w.pending.Add(s)
	w.wg.Add(1)
}

func (w *TestWaiterString) Done(s string) {
	if !w.pending.Contains(s) {
		panic(fmt.Errorf("TestWaiterString: Done was already called on '%s'", s))
	}
	w.pending.Remove(s)
	w.wg.Done()
}

func (w *TestWaiterString) Wait() { w.wg.Wait() }

// WaitTimeout fails t with the names still pending when timeout passes.
func (w *TestWaiterString) WaitTimeout(t *testing.T, timeout time.Duration) (timedout bool) {
	t.Helper()
	return waitTimeout(t, &w.wg, timeout, w.pending.ToSlice)
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup, timeout time.Duration, pending func() []string) bool {
	t.Helper()
	c := make(chan struct{})
	go func() {
		defer close(c)
		wg.Wait()
	}()

	select {
	case <-c:
		return false
	case <-time.After(timeout):
		if pending != nil {
			t.Errorf("timeout exceeded, still waiting for %v", pending())
		} else {
			t.Error("timeout exceeded")
		}
		return true
	}
}
