package sio

import (
	mapset "github.com/deckarep/golang-set/v2"
	eio "github.com/karagenc/socket.io-client-go/engine.io"
)

type Reason = eio.Reason

const (
	// The server sent a DISCONNECT packet for our namespace.
	ReasonIOServerDisconnect Reason = "io server disconnect"
	// Disconnect was called.
	ReasonIOClientDisconnect Reason = "io client disconnect"
)

const (
	ReasonForcedClose    Reason = eio.ReasonForcedClose
	ReasonTransportClose Reason = eio.ReasonTransportClose
	ReasonTransportError Reason = eio.ReasonTransportError
	ReasonPingTimeout    Reason = eio.ReasonPingTimeout
)

var reconnectableReasons = mapset.NewSet(
	ReasonTransportClose,
	ReasonTransportError,
	ReasonPingTimeout,
)

// Reconnectable reports whether a disconnect with this reason
// starts the reconnection loop.
func Reconnectable(reason Reason) bool {
	return reconnectableReasons.Contains(reason)
}
