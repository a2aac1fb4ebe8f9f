package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"unicode/utf8"
)

const payloadDelimiter byte = 30

var errInvalidPayloadLength = fmt.Errorf("parser: invalid payload length prefix")

// EncodePayload joins packets into a single polling body.
//
// Revision 4 separates packets with the record separator.
// Revision 3 prefixes every packet with its length: <len>:<packet>
func EncodePayload(rev Revision, packets ...*Packet) []byte {
	var buf bytes.Buffer

	for i, packet := range packets {
		built := packet.Build(rev, false)

		if rev == Revision3 {
			buf.WriteString(strconv.Itoa(utf16Len(built)))
			buf.WriteByte(':')
			buf.Write(built)
			continue
		}

		buf.Write(built)
		if i != len(packets)-1 {
			buf.WriteByte(payloadDelimiter)
		}
	}

	return buf.Bytes()
}

func DecodePayload(rev Revision, b []byte) ([]*Packet, error) {
	if rev == Revision3 {
		return decodeLengthPrefixed(b)
	}

	packets := make([]*Packet, 0, 1) // Minimum 1 packet expected
	splitted := bytes.Split(b, []byte{payloadDelimiter})

	for _, sp := range splitted {
		packet, err := Parse(rev, sp, false)
		if err != nil {
			return nil, err
		}
		packets = append(packets, packet)
	}

	return packets, nil
}

// ScanPayload decodes what it can of a polling body. A packet that fails
// to parse is passed to onError and skipped. A broken revision 3 length
// prefix ends the scan, since the packet boundaries are lost.
func ScanPayload(rev Revision, b []byte, onError func(err error)) []*Packet {
	var packets []*Packet
	if rev != Revision3 {
		for _, sp := range bytes.Split(b, []byte{payloadDelimiter}) {
			packet, err := Parse(rev, sp, false)
			if err != nil {
				onError(err)
				continue
			}
			packets = append(packets, packet)
		}
		return packets
	}

	if len(b) == 0 {
		onError(errInvalidPacketSize)
		return nil
	}
	for len(b) > 0 {
		end, rest, err := nextLengthPrefixed(b)
		if err != nil {
			onError(err)
			return packets
		}
		packet, err := Parse(Revision3, rest[:end], false)
		if err != nil {
			onError(err)
		} else {
			packets = append(packets, packet)
		}
		b = rest[end:]
	}
	return packets
}

// DecodeFrame decodes a single WebSocket frame. Under revision 3 a
// text frame may carry length-prefixed packets; they are all returned.
func DecodeFrame(rev Revision, data []byte, binary bool) ([]*Packet, error) {
	if !binary && rev == Revision3 && hasLengthPrefix(data) {
		return decodeLengthPrefixed(data)
	}

	packet, err := Parse(rev, data, binary)
	if err != nil {
		return nil, err
	}
	return []*Packet{packet}, nil
}

func hasLengthPrefix(data []byte) bool {
	for i, c := range data {
		if c == ':' {
			return i > 0
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return false
}

func decodeLengthPrefixed(b []byte) ([]*Packet, error) {
	if len(b) == 0 {
		return nil, errInvalidPacketSize
	}

	var packets []*Packet
	for len(b) > 0 {
		end, rest, err := nextLengthPrefixed(b)
		if err != nil {
			return nil, err
		}
		packet, err := Parse(Revision3, rest[:end], false)
		if err != nil {
			return nil, err
		}
		packets = append(packets, packet)
		b = rest[end:]
	}
	return packets, nil
}

// nextLengthPrefixed reads a <len>: prefix. The packet is rest[:end].
func nextLengthPrefixed(b []byte) (end int, rest []byte, err error) {
	colon := bytes.IndexByte(b, ':')
	if colon < 1 {
		return 0, nil, errInvalidPayloadLength
	}
	n, err := strconv.Atoi(string(b[:colon]))
	if err != nil || n < 1 {
		return 0, nil, errInvalidPayloadLength
	}
	rest = b[colon+1:]
	end = utf16Offset(rest, n)
	if end < 0 {
		return 0, nil, errInvalidPayloadLength
	}
	return end, rest, nil
}

// Lengths in revision 3 payloads count UTF-16 code units.
func utf16Len(b []byte) int {
	n := 0
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		n += runeUnits(r)
		b = b[size:]
	}
	return n
}

// utf16Offset returns the byte offset that covers the first n UTF-16
// code units of b, or -1 if b is too short or n splits a surrogate pair.
func utf16Offset(b []byte, n int) int {
	i := 0
	for n > 0 {
		if i >= len(b) {
			return -1
		}
		r, size := utf8.DecodeRune(b[i:])
		n -= runeUnits(r)
		i += size
	}
	if n < 0 {
		return -1
	}
	return i
}

func runeUnits(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}
