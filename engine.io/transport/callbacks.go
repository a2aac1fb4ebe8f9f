package transport

import (
	"sync/atomic"

	"github.com/karagenc/socket.io-client-go/engine.io/parser"
)

type (
	PacketCallback func(packets ...*parser.Packet)
	// Called for a frame that could not be decoded. The transport keeps reading.
	DecodeErrorCallback func(transportName string, err error)
	CloseCallback       func(transportName string, err error)
)

// Callbacks can be replaced while the transport is running.
type Callbacks struct {
	onPacket      atomic.Value
	onDecodeError atomic.Value
	onClose       atomic.Value
}

func NewCallbacks() *Callbacks {
	c := new(Callbacks)
	c.Set(nil, nil, nil)
	return c
}

func (c *Callbacks) OnPacket(packets ...*parser.Packet) {
	c.onPacket.Load().(PacketCallback)(packets...)
}

func (c *Callbacks) OnDecodeError(transportName string, err error) {
	c.onDecodeError.Load().(DecodeErrorCallback)(transportName, err)
}

func (c *Callbacks) OnClose(transportName string, err error) {
	c.onClose.Load().(CloseCallback)(transportName, err)
}

// Set stores the callbacks. A nil callback is replaced with a no-op.
func (c *Callbacks) Set(onPacket PacketCallback, onDecodeError DecodeErrorCallback, onClose CloseCallback) {
	if onPacket == nil {
		onPacket = func(packets ...*parser.Packet) {}
	}
	if onDecodeError == nil {
		onDecodeError = func(transportName string, err error) {}
	}
	if onClose == nil {
		onClose = func(transportName string, err error) {}
	}
	c.onPacket.Store(onPacket)
	c.onDecodeError.Store(onDecodeError)
	c.onClose.Store(onClose)
}
