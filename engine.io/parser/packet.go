package parser

import (
	"encoding/base64"
	"fmt"
)

type PacketType byte

const (
	PacketTypeOpen PacketType = iota
	PacketTypeClose
	PacketTypePing
	PacketTypePong
	PacketTypeMessage
	PacketTypeUpgrade
	PacketTypeNoop

	packetTypeMin = PacketTypeOpen
	packetTypeMax = PacketTypeNoop
)

func (p PacketType) ToChar() byte {
	b := byte(p)
	b += 48
	return b
}

func (p *PacketType) FromChar(b byte) error {
	if b < byte(48+packetTypeMin) || b > byte(48+packetTypeMax) {
		return errInvalidPacketType
	}

	b = b - 48
	*p = PacketType(b)
	return nil
}

func (p PacketType) String() string {
	switch p {
	case PacketTypeOpen:
		return "open"
	case PacketTypeClose:
		return "close"
	case PacketTypePing:
		return "ping"
	case PacketTypePong:
		return "pong"
	case PacketTypeMessage:
		return "message"
	case PacketTypeUpgrade:
		return "upgrade"
	case PacketTypeNoop:
		return "noop"
	}
	return fmt.Sprintf("unknown(%d)", byte(p))
}

const base64Prefix byte = 'b'

var (
	errInvalidPacketSize = fmt.Errorf("parser: invalid packet size")
	errInvalidPacketType = fmt.Errorf("parser: invalid packet type")
)

type Packet struct {
	IsBinary bool
	Type     PacketType
	Data     []byte
}

func NewPacket(packetType PacketType, isBinary bool, data []byte) (*Packet, error) {
	if packetType != PacketTypeMessage && isBinary {
		return nil, errInvalidPacketType
	}

	return &Packet{
		IsBinary: isBinary,
		Type:     packetType,
		Data:     data,
	}, nil
}

// Parse decodes a single packet. binaryData is true for
// frames that arrived as raw binary (not base64 text).
func Parse(rev Revision, data []byte, binaryData bool) (*Packet, error) {
	packet := new(Packet)

	if binaryData {
		packet.IsBinary = true
		packet.Type = PacketTypeMessage
		packet.Data = data
		return packet, nil
	}

	if len(data) < 1 {
		return nil, errInvalidPacketSize
	}

	if data[0] == base64Prefix {
		packet.IsBinary = true
		packet.Type = PacketTypeMessage

		data = data[1:]
		// Revision 3 keeps the packet type after the prefix: b4<base64>
		if rev == Revision3 {
			if len(data) < 1 || data[0] != PacketTypeMessage.ToChar() {
				return nil, errInvalidPacketType
			}
			data = data[1:]
		}

		dl := base64.StdEncoding.DecodedLen(len(data))
		packet.Data = make([]byte, dl)

		n, err := base64.StdEncoding.Decode(packet.Data, data)
		if err != nil {
			return nil, fmt.Errorf("parser: invalid base64 data: %w", err)
		}
		packet.Data = packet.Data[:n]
		return packet, nil
	}

	packet.IsBinary = false
	err := packet.Type.FromChar(data[0])
	if err != nil {
		return nil, err
	}
	packet.Data = data[1:]
	return packet, nil
}

func (p *Packet) Build(rev Revision, supportsBinary bool) []byte {
	if p.IsBinary {
		if supportsBinary {
			return p.Data
		}

		prefixLen := 1
		if rev == Revision3 {
			prefixLen = 2
		}
		el := base64.StdEncoding.EncodedLen(len(p.Data))
		b := make([]byte, prefixLen+el)

		b[0] = base64Prefix
		if rev == Revision3 {
			b[1] = PacketTypeMessage.ToChar()
		}
		base64.StdEncoding.Encode(b[prefixLen:], p.Data)
		return b
	}

	b := make([]byte, 1+len(p.Data))
	b[0] = p.Type.ToChar()
	copy(b[1:], p.Data)
	return b
}
