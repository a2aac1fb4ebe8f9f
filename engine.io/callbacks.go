package eio

import (
	"time"

	"github.com/karagenc/socket.io-client-go/engine.io/parser"
)

type (
	PacketCallback func(packets ...*parser.Packet)
	PingCallback   func()
	PongCallback   func(latency time.Duration)
	ErrorCallback  func(err error)
	// err can be nil. Always do a nil check.
	CloseCallback func(reason Reason, err error)
)

type Callbacks struct {
	OnPacket PacketCallback
	// Called when a ping is sent (revision 3) or received (revision 4).
	OnPing PingCallback
	// Called when the heartbeat round trip completes.
	OnPong  PongCallback
	OnError ErrorCallback
	OnClose CloseCallback
}

func (c *Callbacks) setMissing() {
	if c.OnPacket == nil {
		c.OnPacket = func(packets ...*parser.Packet) {}
	}
	if c.OnPing == nil {
		c.OnPing = func() {}
	}
	if c.OnPong == nil {
		c.OnPong = func(latency time.Duration) {}
	}
	if c.OnError == nil {
		c.OnError = func(err error) {}
	}
	if c.OnClose == nil {
		c.OnClose = func(reason Reason, err error) {}
	}
}
