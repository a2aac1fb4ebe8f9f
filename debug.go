package sio

import eio "github.com/karagenc/socket.io-client-go/engine.io"

// Debugger is shared with the Engine.IO layer so that a single
// instance can be passed to both.
type Debugger = eio.Debugger

func NewNoopDebugger() Debugger { return eio.NewNoopDebugger() }

// NewPrintDebugger writes to the standard output.
// Each goroutine gets its own color.
func NewPrintDebugger() Debugger { return eio.NewPrintDebugger() }

func truncateURL(url string) string {
	if len(url) > 50 {
		return url[:50] + "..."
	}
	return url
}
