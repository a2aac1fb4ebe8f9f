package parser

import "fmt"

// PacketType is the Socket.IO packet type carried inside
// an Engine.IO message packet.
type PacketType byte

const (
	PacketTypeConnect PacketType = iota
	PacketTypeDisconnect
	PacketTypeEvent
	PacketTypeAck
	PacketTypeConnectError
	PacketTypeBinaryEvent
	PacketTypeBinaryAck

	packetTypeMax = PacketTypeBinaryAck
)

func (p PacketType) ToChar() byte {
	b := byte(p)
	b += 48
	return b
}

func (p *PacketType) FromChar(b byte) error {
	if b < 48 || b > byte(48+packetTypeMax) {
		return fmt.Errorf("%w: packet type %q", ErrInvalidPacket, b)
	}

	b = b - 48
	*p = PacketType(b)
	return nil
}

func (p PacketType) IsBinary() bool {
	return p == PacketTypeBinaryEvent || p == PacketTypeBinaryAck
}
