package sio

import "github.com/karagenc/socket.io-client-go/internal/sync"

// ackTable maps packet ids to the acks waiting for them.
// Ids start at 0 and are reset on every new connection.
type ackTable struct {
	mu     sync.Mutex
	nextID uint64
	acks   map[uint64]AckHandler
}

func newAckTable() *ackTable {
	return &ackTable{acks: make(map[uint64]AckHandler)}
}

func (a *ackTable) add(ack AckHandler) (id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id = a.nextID
	a.nextID++
	a.acks[id] = ack
	return id
}

// take removes and returns the ack. Every ack is taken at most once.
func (a *ackTable) take(id uint64) (ack AckHandler, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ack, ok = a.acks[id]
	if ok {
		delete(a.acks, id)
	}
	return
}

func (a *ackTable) remove(id uint64) {
	a.mu.Lock()
	delete(a.acks, id)
	a.mu.Unlock()
}

func (a *ackTable) pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acks)
}

// reset drops all pending acks without calling them.
func (a *ackTable) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID = 0
	a.acks = make(map[uint64]AckHandler)
}
