package eio

import (
	"time"

	"github.com/karagenc/socket.io-client-go/engine.io/parser"
)

const (
	DefaultRevision = parser.Revision4

	// Used when the URL has no `transport` query value.
	DefaultTransport = "websocket"

	// Used when the server omits the intervals from the handshake.
	defaultPingTimeout  = time.Second * 20
	defaultPingInterval = time.Second * 25
)
