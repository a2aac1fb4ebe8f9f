package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	eioparser "github.com/karagenc/socket.io-client-go/engine.io/parser"
	"github.com/karagenc/socket.io-client-go/parser/json/serializer"
	"github.com/karagenc/socket.io-client-go/parser/json/serializer/stdjson"
)

var (
	// The Engine.IO connection is being closed by the server.
	ErrClosePacket = fmt.Errorf("parser: close packet")
	// NOOP and UPGRADE packets carry nothing for the client.
	ErrIgnoredPacket = fmt.Errorf("parser: ignored packet")
	ErrInvalidPacket = fmt.Errorf("parser: invalid packet")

	errUnexpectedBinary = fmt.Errorf("%w: unexpected binary packet", ErrInvalidPacket)
	errEmptyPacket      = fmt.Errorf("%w: empty packet", ErrInvalidPacket)
	errNoID             = fmt.Errorf("%w: ack without id", ErrInvalidPacket)
)

// Codec converts between wire frames and Messages for one protocol revision.
type Codec struct {
	rev  eioparser.Revision
	json serializer.JSONSerializer
}

// NewCodec returns a codec for rev. If s is nil, encoding/json is used.
func NewCodec(rev eioparser.Revision, s serializer.JSONSerializer) *Codec {
	if s == nil {
		s = stdjson.New()
	}
	return &Codec{rev: rev, json: s}
}

func (c *Codec) Revision() eioparser.Revision { return c.rev }

func (c *Codec) Serializer() serializer.JSONSerializer { return c.json }

// Read parses one text frame, including its Engine.IO type prefix.
func (c *Codec) Read(frame []byte) (*Message, error) {
	p, err := eioparser.Parse(c.rev, frame, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPacket, err)
	}
	return c.ReadPacket(p)
}

// ReadPacket parses an Engine.IO packet that was already split out of a payload.
func (c *Codec) ReadPacket(p *eioparser.Packet) (*Message, error) {
	if p.IsBinary {
		return nil, errUnexpectedBinary
	}

	switch p.Type {
	case eioparser.PacketTypeOpen:
		hs, err := eioparser.ParseHandshake(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPacket, err)
		}
		return &Message{Type: MessageTypeOpened, Handshake: hs}, nil
	case eioparser.PacketTypeClose:
		return nil, ErrClosePacket
	case eioparser.PacketTypePing, eioparser.PacketTypePong:
		m := &Message{Type: MessageTypePing}
		if p.Type == eioparser.PacketTypePong {
			m.Type = MessageTypePong
		}
		if len(p.Data) > 0 {
			m.Raw = p.Data
		}
		return m, nil
	case eioparser.PacketTypeMessage:
		return c.readMessage(p.Data)
	default:
		return nil, ErrIgnoredPacket
	}
}

func (c *Codec) readMessage(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, errEmptyPacket
	}

	var pt PacketType
	err := pt.FromChar(data[0])
	if err != nil {
		return nil, err
	}
	rest := data[1:]

	m := new(Message)
	switch pt {
	case PacketTypeConnect:
		m.Type = MessageTypeConnected
		err = c.readConnect(m, rest)
	case PacketTypeDisconnect:
		m.Type = MessageTypeDisconnected
		m.Namespace, _ = splitNamespace(rest, ",")
	case PacketTypeEvent:
		m.Type = MessageTypeEvent
		err = c.readEvent(m, rest, false, true)
	case PacketTypeBinaryEvent:
		m.Type = MessageTypeBinaryEvent
		err = c.readEvent(m, rest, true, true)
	case PacketTypeAck:
		m.Type = MessageTypeAck
		err = c.readEvent(m, rest, false, false)
	case PacketTypeBinaryAck:
		m.Type = MessageTypeBinaryAck
		err = c.readEvent(m, rest, true, false)
	case PacketTypeConnectError:
		m.Type = MessageTypeError
		err = c.readError(m, rest)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// splitNamespace reads a leading namespace that ends at any byte of terminators.
// The trailing comma, if any, is consumed.
func splitNamespace(b []byte, terminators string) (ns string, rest []byte) {
	if len(b) == 0 || b[0] != '/' {
		return "", b
	}
	i := bytes.IndexAny(b, terminators)
	if i < 0 {
		return normalizeNamespace(string(b)), nil
	}
	ns = normalizeNamespace(string(b[:i]))
	rest = b[i:]
	if rest[0] == ',' {
		rest = rest[1:]
	}
	return ns, rest
}

func normalizeNamespace(ns string) string {
	if ns == "/" {
		return ""
	}
	return ns
}

func (c *Codec) readConnect(m *Message, rest []byte) error {
	if c.rev == eioparser.Revision3 {
		ns, rest := splitNamespace(rest, "?,")
		m.Namespace = ns
		if len(rest) > 0 && rest[0] == '?' {
			q := rest[1:]
			if i := bytes.IndexByte(q, ','); i >= 0 {
				q = q[:i]
			}
			m.Query = string(q)
		}
		return nil
	}

	m.Namespace, rest = splitNamespace(rest, ",")
	if len(rest) == 0 {
		return nil
	}

	var body map[string]json.RawMessage
	err := c.json.Unmarshal(rest, &body)
	if err != nil {
		return fmt.Errorf("%w: connect body: %s", ErrInvalidPacket, err)
	}
	if sid, ok := body["sid"]; ok {
		return c.json.Unmarshal(sid, &m.SID)
	}
	m.Auth = json.RawMessage(rest)
	return nil
}

func (c *Codec) readEvent(m *Message, rest []byte, binary, isEvent bool) error {
	if binary {
		i := bytes.IndexByte(rest, '-')
		if i < 1 {
			return fmt.Errorf("%w: missing attachment count", ErrInvalidPacket)
		}
		n, err := strconv.ParseUint(string(rest[:i]), 10, 31)
		if err != nil {
			return fmt.Errorf("%w: attachment count: %s", ErrInvalidPacket, err)
		}
		m.BinaryCount = int(n)
		rest = rest[i+1:]
	}

	i := bytes.IndexByte(rest, '[')
	if i < 0 {
		return fmt.Errorf("%w: missing body", ErrInvalidPacket)
	}
	prefix, body := rest[:i], rest[i:]

	idPart := prefix
	// A namespace containing a comma is ambiguous here. The last comma wins.
	if j := bytes.LastIndexByte(prefix, ','); j >= 0 {
		m.Namespace = normalizeNamespace(string(prefix[:j]))
		idPart = prefix[j+1:]
	}
	if len(idPart) > 0 {
		id, err := strconv.ParseUint(string(idPart), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: id %q", ErrInvalidPacket, idPart)
		}
		m.ID = &id
	}

	var arr []json.RawMessage
	err := c.json.Unmarshal(body, &arr)
	if err != nil {
		return fmt.Errorf("%w: body: %s", ErrInvalidPacket, err)
	}

	if isEvent {
		if len(arr) == 0 {
			return fmt.Errorf("%w: event without name", ErrInvalidPacket)
		}
		err = c.json.Unmarshal(arr[0], &m.Event)
		if err != nil {
			return fmt.Errorf("%w: event name: %s", ErrInvalidPacket, err)
		}
		arr = arr[1:]
	} else if m.ID == nil {
		return errNoID
	}

	if len(arr) > 0 {
		m.Args = arr
	}
	return nil
}

type errorBody struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (c *Codec) readError(m *Message, rest []byte) error {
	m.Namespace, rest = splitNamespace(rest, ",")
	if len(rest) == 0 {
		return nil
	}

	if !json.Valid(rest) {
		// Revision 3 servers may send bare text.
		m.ErrorMessage = string(rest)
		return nil
	}

	switch rest[0] {
	case '"':
		return c.json.Unmarshal(rest, &m.ErrorMessage)
	case '{':
		var body errorBody
		err := c.json.Unmarshal(rest, &body)
		if err != nil {
			return fmt.Errorf("%w: error body: %s", ErrInvalidPacket, err)
		}
		m.ErrorMessage = body.Message
		if len(body.Data) > 0 {
			m.Data = body.Data
		}
	default:
		m.ErrorMessage = string(rest)
	}
	return nil
}

// Write produces the text frame of m, including its Engine.IO type prefix.
func (c *Codec) Write(m *Message) ([]byte, error) {
	buf := new(bytes.Buffer)

	switch m.Type {
	case MessageTypeOpened:
		if m.Handshake == nil {
			return nil, fmt.Errorf("%w: opened without handshake", ErrInvalidPacket)
		}
		p, err := m.Handshake.Packet()
		if err != nil {
			return nil, err
		}
		return p.Build(c.rev, false), nil
	case MessageTypePing:
		buf.WriteByte(eioparser.PacketTypePing.ToChar())
		buf.Write(m.Raw)
		return buf.Bytes(), nil
	case MessageTypePong:
		buf.WriteByte(eioparser.PacketTypePong.ToChar())
		buf.Write(m.Raw)
		return buf.Bytes(), nil
	}

	pt, ok := m.Type.packetType()
	if !ok {
		return nil, fmt.Errorf("%w: message type %d", ErrInvalidPacket, m.Type)
	}
	buf.WriteByte(eioparser.PacketTypeMessage.ToChar())
	buf.WriteByte(pt.ToChar())

	var err error
	switch m.Type {
	case MessageTypeConnected:
		err = c.writeConnect(buf, m)
	case MessageTypeDisconnected:
		writeNamespace(buf, m.Namespace)
	case MessageTypeEvent, MessageTypeBinaryEvent, MessageTypeAck, MessageTypeBinaryAck:
		err = c.writeEvent(buf, m)
	case MessageTypeError:
		err = c.writeError(buf, m)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeNamespace(buf *bytes.Buffer, ns string) {
	if ns != "" && ns != "/" {
		buf.WriteString(ns)
		buf.WriteByte(',')
	}
}

func (c *Codec) writeConnect(buf *bytes.Buffer, m *Message) error {
	if c.rev == eioparser.Revision3 {
		if m.Namespace == "" || m.Namespace == "/" {
			return nil
		}
		buf.WriteString(m.Namespace)
		if m.Query != "" {
			buf.WriteByte('?')
			buf.WriteString(m.Query)
		}
		buf.WriteByte(',')
		return nil
	}

	writeNamespace(buf, m.Namespace)
	switch {
	case len(m.Auth) > 0:
		buf.Write(m.Auth)
	case m.SID != "":
		b, err := c.json.Marshal(&struct {
			SID string `json:"sid"`
		}{SID: m.SID})
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}

func (c *Codec) writeEvent(buf *bytes.Buffer, m *Message) error {
	isEvent := m.Type == MessageTypeEvent || m.Type == MessageTypeBinaryEvent

	if m.Type.IsBinary() {
		n := m.BinaryCount
		if len(m.Attachments) > 0 {
			n = len(m.Attachments)
		}
		buf.WriteString(strconv.Itoa(n))
		buf.WriteByte('-')
	}
	writeNamespace(buf, m.Namespace)

	if m.ID != nil {
		buf.WriteString(strconv.FormatUint(*m.ID, 10))
	} else if !isEvent {
		return errNoID
	}

	buf.WriteByte('[')
	if isEvent {
		name, err := c.json.Marshal(m.Event)
		if err != nil {
			return err
		}
		buf.Write(name)
		if len(m.Args) > 0 {
			buf.WriteByte(',')
		}
	}
	for i, arg := range m.Args {
		if i > 0 {
			buf.WriteByte(',')
		}
		if len(arg) == 0 {
			buf.WriteString("null")
			continue
		}
		buf.Write(arg)
	}
	buf.WriteByte(']')
	return nil
}

func (c *Codec) writeError(buf *bytes.Buffer, m *Message) error {
	writeNamespace(buf, m.Namespace)

	var (
		b   []byte
		err error
	)
	if c.rev == eioparser.Revision3 && len(m.Data) == 0 {
		b, err = c.json.Marshal(m.ErrorMessage)
	} else {
		b, err = c.json.Marshal(&errorBody{Message: m.ErrorMessage, Data: m.Data})
	}
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// Packets returns the text packet of m followed by one binary packet per attachment.
func (c *Codec) Packets(m *Message) ([]*eioparser.Packet, error) {
	frame, err := c.Write(m)
	if err != nil {
		return nil, err
	}
	p, err := eioparser.Parse(c.rev, frame, false)
	if err != nil {
		return nil, err
	}

	packets := make([]*eioparser.Packet, 0, 1+len(m.Attachments))
	packets = append(packets, p)
	for _, a := range m.Attachments {
		bp, err := eioparser.NewPacket(eioparser.PacketTypeMessage, true, a)
		if err != nil {
			return nil, err
		}
		packets = append(packets, bp)
	}
	return packets, nil
}
