package sio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAckTable(t *testing.T) {
	a := newAckTable()

	id0 := a.add(func(res *Response) {})
	id1 := a.add(func(res *Response) {})
	assert.Equal(t, uint64(0), id0)
	assert.Equal(t, uint64(1), id1)
	assert.Equal(t, 2, a.pending())

	_, ok := a.take(id0)
	assert.True(t, ok)
	_, ok = a.take(id0)
	assert.False(t, ok, "an ack must be taken at most once")

	a.remove(id1)
	assert.Equal(t, 0, a.pending())

	_, ok = a.take(42)
	assert.False(t, ok)

	a.add(func(res *Response) {})
	a.reset()
	assert.Equal(t, 0, a.pending())
	assert.Equal(t, uint64(0), a.add(func(res *Response) {}), "ids restart after reset")
}
