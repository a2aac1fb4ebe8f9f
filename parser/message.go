package parser

import (
	"encoding/json"
	"time"

	eioparser "github.com/karagenc/socket.io-client-go/engine.io/parser"
)

type MessageType int

const (
	// Engine.IO OPEN. Carries the handshake.
	MessageTypeOpened MessageType = iota
	MessageTypePing
	MessageTypePong
	MessageTypeConnected
	MessageTypeDisconnected
	MessageTypeEvent
	MessageTypeAck
	MessageTypeError
	MessageTypeBinaryEvent
	MessageTypeBinaryAck
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeOpened:
		return "opened"
	case MessageTypePing:
		return "ping"
	case MessageTypePong:
		return "pong"
	case MessageTypeConnected:
		return "connected"
	case MessageTypeDisconnected:
		return "disconnected"
	case MessageTypeEvent:
		return "event"
	case MessageTypeAck:
		return "ack"
	case MessageTypeError:
		return "error"
	case MessageTypeBinaryEvent:
		return "binary event"
	case MessageTypeBinaryAck:
		return "binary ack"
	}
	return "unknown"
}

// IsBinary reports whether the message is followed by attachments on the wire.
func (t MessageType) IsBinary() bool {
	return t == MessageTypeBinaryEvent || t == MessageTypeBinaryAck
}

func (t MessageType) packetType() (PacketType, bool) {
	switch t {
	case MessageTypeConnected:
		return PacketTypeConnect, true
	case MessageTypeDisconnected:
		return PacketTypeDisconnect, true
	case MessageTypeEvent:
		return PacketTypeEvent, true
	case MessageTypeAck:
		return PacketTypeAck, true
	case MessageTypeError:
		return PacketTypeConnectError, true
	case MessageTypeBinaryEvent:
		return PacketTypeBinaryEvent, true
	case MessageTypeBinaryAck:
		return PacketTypeBinaryAck, true
	}
	return 0, false
}

type Message struct {
	Type MessageType

	// Empty for the default namespace.
	Namespace string

	// Set on acks and on events that expect one.
	ID *uint64

	Event string
	// Arguments are decoded lazily. Use DecodeArg.
	Args []json.RawMessage

	BinaryCount int
	Attachments [][]byte

	// Opened
	Handshake *eioparser.Handshake

	// Connected (revision 4)
	SID string
	// Outbound Connected (revision 4)
	Auth json.RawMessage
	// Outbound Connected (revision 3)
	Query string

	// Error
	ErrorMessage string
	Data         json.RawMessage

	// Ping and pong probe
	Raw []byte

	// Round trip time of the heartbeat. Not on the wire.
	Latency time.Duration
}

// NamespaceOrDefault returns "/" for the default namespace.
func (m *Message) NamespaceOrDefault() string {
	if m.Namespace == "" {
		return "/"
	}
	return m.Namespace
}
