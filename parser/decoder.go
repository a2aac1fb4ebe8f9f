package parser

import (
	"fmt"

	eioparser "github.com/karagenc/socket.io-client-go/engine.io/parser"
)

var (
	errUnexpectedAttachment = fmt.Errorf("%w: attachment without a binary message", ErrInvalidPacket)
	errIncompleteBinary     = fmt.Errorf("%w: binary message interrupted before all attachments arrived", ErrInvalidPacket)
)

// Decoder reassembles binary messages from a packet stream.
// It is not safe for concurrent use.
type Decoder struct {
	codec   *Codec
	pending *Message
}

func NewDecoder(codec *Codec) *Decoder {
	return &Decoder{codec: codec}
}

// Add returns the complete message, or nil while attachments are still expected.
func (d *Decoder) Add(p *eioparser.Packet) (*Message, error) {
	if p.IsBinary {
		if d.pending == nil {
			return nil, errUnexpectedAttachment
		}
		d.pending.Attachments = append(d.pending.Attachments, p.Data)
		if len(d.pending.Attachments) < d.pending.BinaryCount {
			return nil, nil
		}
		m := d.pending
		d.pending = nil
		return d.complete(m)
	}

	if d.pending != nil && p.Type == eioparser.PacketTypeMessage {
		d.pending = nil
		return nil, errIncompleteBinary
	}

	m, err := d.codec.ReadPacket(p)
	if err != nil {
		return nil, err
	}
	if m.Type.IsBinary() {
		if m.BinaryCount > 0 {
			d.pending = m
			return nil, nil
		}
		return d.complete(m)
	}
	return m, nil
}

// complete checks that every placeholder of a binary message
// points to one of its attachments.
func (d *Decoder) complete(m *Message) (*Message, error) {
	for i, arg := range m.Args {
		var tree any
		err := d.codec.json.Unmarshal(arg, &tree)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d: %w", ErrInvalidPacket, i, err)
		}
		_, err = ReconstructValue(tree, m.Attachments)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d", err, i)
		}
	}
	return m, nil
}

// Reset drops the pending message, if any.
func (d *Decoder) Reset() {
	d.pending = nil
}
