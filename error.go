package sio

import (
	"fmt"

	"github.com/karagenc/socket.io-client-go/engine.io/transport"
)

var (
	ErrNotConnected       = fmt.Errorf("sio: client is not connected")
	ErrDisposed           = fmt.Errorf("sio: client is disposed")
	ErrReconnectFailed    = fmt.Errorf("sio: reconnection attempts exhausted")
	ErrUnsupportedScheme  = fmt.Errorf("sio: unsupported scheme")
	ErrEmptyEvent         = fmt.Errorf("sio: event name is empty")
	ErrInvalidJSON        = fmt.Errorf("sio: invalid JSON argument")
	ErrNoAckRequested     = fmt.Errorf("sio: the server did not request an acknowledgement")
	ErrArgumentOutOfRange = fmt.Errorf("sio: argument index out of range")
	ErrAuthInvalidValue   = fmt.Errorf("sio: auth must be a struct or a map")

	errTransportClosed = fmt.Errorf("sio: transport closed before the namespace was connected")
)

// TransportError is a failure of the underlying stream.
// Connect errors of this type are expected and trigger reconnection.
type TransportError = transport.Error

// ConfigError is returned by NewClient when the configuration is invalid.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "sio: invalid " + e.Field + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ServerError is an ERROR packet sent by the server for our namespace.
type ServerError struct {
	Message string
	// The `data` field of the packet, if any.
	Data []byte
}

func (e *ServerError) Error() string {
	return "sio: server error: " + e.Message
}

// This is a wrapper for the errors internal to socket.io-client-go.
//
// If you see this error, this means that the problem is
// neither a network error, nor an error caused by you, but
// the source of the error is socket.io-client-go. Open an issue on GitHub.
type InternalError struct {
	err error
}

func (e InternalError) Error() string {
	return "sio: internal error: " + e.err.Error()
}

func (e InternalError) Unwrap() error {
	return e.err
}

func wrapInternalError(err error) *InternalError {
	return &InternalError{err: err}
}
