package eio

type Reason string

const (
	// Close was called.
	ReasonForcedClose Reason = "forced close"
	// Heartbeat was not completed in time.
	ReasonPingTimeout Reason = "ping timeout"
	// The stream ended cleanly, or the server sent a close packet.
	ReasonTransportClose Reason = "transport close"
	ReasonTransportError Reason = "transport error"
)
