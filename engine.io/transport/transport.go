package transport

import (
	"context"
	"net/url"

	"github.com/karagenc/socket.io-client-go/engine.io/parser"
)

type (
	// ClientTransport owns one underlying connection to the server.
	ClientTransport interface {
		// Name of the transport in lowercase.
		Name() string

		// Connect to the server and read the OPEN packet.
		//
		// Packets that arrive together with the OPEN packet are kept
		// and delivered when Run is called.
		//
		// onPacket callback must not be called in this method.
		Handshake(ctx context.Context) (*parser.Handshake, error)

		// Read loop. Blocks until the transport is closed.
		Run()

		// Writes are serialized. On failure the transport is closed
		// and the error is returned.
		Send(packets ...*parser.Packet) error

		// Close the transport and call the onClose callback once.
		Close()
	}

	// WebSocketDialer creates a WebSocket transport for the given URL.
	// It lets callers pick the WebSocket implementation.
	WebSocketDialer func(
		callbacks *Callbacks,
		revision parser.Revision,
		url url.URL,
		requestHeader *RequestHeader,
	) ClientTransport
)

// Error wraps a failure of the underlying stream.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "transport: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// WrapError wraps err as a stream failure. nil stays nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
