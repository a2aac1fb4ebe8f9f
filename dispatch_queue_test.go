package sio

import (
	"testing"

	"github.com/karagenc/socket.io-client-go/internal/utils"
	"github.com/stretchr/testify/assert"
)

func TestDispatchQueueAddGetReset(t *testing.T) {
	q := newDispatchQueue()

	q.add(func() {}, func() {})

	funcs := q.get()
	assert.Equal(t, 2, len(funcs))
	assert.Equal(t, 0, len(q.funcs))

	q.add(func() {})
	q.reset()
	assert.Equal(t, 0, len(q.funcs))
}

func TestDispatchQueuePoll(t *testing.T) {
	q := newDispatchQueue()

	go func() {
		q.add(func() {}, func() {})
	}()

	funcs, ok := q.poll()
	if !assert.True(t, ok) {
		return
	}
	if !assert.Equal(t, 2, len(funcs)) {
		return
	}

	q.close()
	funcs, ok = q.poll()
	assert.False(t, ok)
	assert.Nil(t, funcs)

	// Adding after close is a no-op.
	q.add(func() {})
	assert.Equal(t, 0, len(q.get()))
}

func TestDispatchQueueRun(t *testing.T) {
	q := newDispatchQueue()
	defer q.close()

	tw := utils.NewTestWaiter(1)
	var (
		order     []int
		recovered any
	)
	go q.run(func(v any) { recovered = v })

	q.add(
		func() { order = append(order, 1) },
		func() { panic("boom") },
		func() { order = append(order, 2) },
	)
	q.add(func() {
		order = append(order, 3)
		tw.Done()
	})

	tw.WaitTimeout(t, utils.DefaultTestWaitTimeout)
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, "boom", recovered)
}
