package parser

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

var revisions = []Revision{Revision3, Revision4}

func TestPacketCreate(t *testing.T) {
	var (
		packetType = PacketTypeOpen // Something other than MESSAGE
		isBinary   = true
		data       = []byte{}
	)

	_, err := NewPacket(packetType, isBinary, data)
	assert.Equal(t, errInvalidPacketType, err, "if the packet type is not MESSAGE, packet cannot contain a binary data")
}

func testPackets(t *testing.T) []*Packet {
	return []*Packet{
		mustCreatePacket(t, PacketTypeOpen, false, nil),
		mustCreatePacket(t, PacketTypeClose, false, nil),
		mustCreatePacket(t, PacketTypePing, false, []byte("testing123")),
		mustCreatePacket(t, PacketTypePong, false, []byte("testing123")),
		mustCreatePacket(t, PacketTypeMessage, false, []byte("testing123")),
		mustCreatePacket(t, PacketTypeMessage, true, []byte{0x0, 0x1, 0x2, 0x3}),
		mustCreatePacket(t, PacketTypeUpgrade, false, nil),
		mustCreatePacket(t, PacketTypeNoop, false, nil),
	}
}

func TestPacketParse(t *testing.T) {
	for _, rev := range revisions {
		for _, p1 := range testPackets(t) {
			built := p1.Build(rev, true)
			binaryData := p1.Type == PacketTypeMessage && p1.IsBinary

			p2, err := Parse(rev, built, binaryData)
			if err != nil {
				t.Fatal(err)
			}

			assert.Equal(t, p1.Type, p2.Type, "packet type doesn't match")
			assert.Equal(t, p1.IsBinary, p2.IsBinary, "isBinary doesn't match")
			assert.True(t, bytes.Equal(p1.Data, p2.Data), "packet data doesn't match")

			built = p1.Build(rev, false)

			p2, err = Parse(rev, built, false)
			if err != nil {
				t.Fatal(err)
			}

			assert.Equal(t, p1.Type, p2.Type, "packet type doesn't match")
			assert.Equal(t, p1.IsBinary, p2.IsBinary, "isBinary doesn't match")
			assert.True(t, bytes.Equal(p1.Data, p2.Data), "packet data doesn't match")
		}
	}
}

func TestEmptyPacket(t *testing.T) {
	_, err := Parse(Revision4, []byte{}, false)
	assert.Equal(t, errInvalidPacketSize, err)
}

func TestInvalidPacketType(t *testing.T) {
	p := mustCreatePacket(t, PacketTypePing, false, nil)
	built := p.Build(Revision4, false)

	built[0] = 2 // Lower than 48

	_, err := Parse(Revision4, built, false)
	assert.Equal(t, errInvalidPacketType, err)
}

func TestBase64Prefix(t *testing.T) {
	data := []byte{0xde, 0xad, 0xbe, 0xef}
	p := mustCreatePacket(t, PacketTypeMessage, true, data)
	encoded := base64.StdEncoding.EncodeToString(data)

	t.Run("revision 4", func(t *testing.T) {
		assert.Equal(t, "b"+encoded, string(p.Build(Revision4, false)))
	})

	t.Run("revision 3", func(t *testing.T) {
		assert.Equal(t, "b4"+encoded, string(p.Build(Revision3, false)))

		_, err := Parse(Revision3, []byte("b"+encoded), false)
		assert.Equal(t, errInvalidPacketType, err)
	})
}

func TestPacketBuild(t *testing.T) {
	for _, packet := range testPackets(t) {
		built := packet.Build(Revision4, true)

		if packet.Type != PacketTypeMessage || !packet.IsBinary {
			assert.GreaterOrEqual(t, len(built), 1, "minimum length for a non-binary packet is 1")
			assert.Equal(t, packet.Type.ToChar(), built[0], "packet type doesn't match")
			assert.True(t, bytes.Equal(packet.Data, built[1:]), "packet data doesn't match")
		} else {
			assert.True(t, bytes.Equal(packet.Data, built), "packet data doesn't match")
		}
	}
}

func mustCreatePacket(t *testing.T, packetType PacketType, isBinary bool, data []byte) *Packet {
	p, err := NewPacket(packetType, isBinary, data)
	if err != nil {
		t.Fatal(err)
	}
	return p
}
