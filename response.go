package sio

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/karagenc/socket.io-client-go/internal/sync"
	"github.com/karagenc/socket.io-client-go/parser"
)

var ErrAckAlreadySent = fmt.Errorf("sio: acknowledgement was already sent")

// Response wraps an inbound event or ack.
// Arguments are decoded on demand.
type Response struct {
	client    *Client
	transport *clientTransport
	message   *parser.Message

	ackMu   sync.Mutex
	ackSent bool
}

func newResponse(c *Client, t *clientTransport, m *parser.Message) *Response {
	return &Response{client: c, transport: t, message: m}
}

// Event name. Empty for acks.
func (r *Response) Event() string { return r.message.Event }

func (r *Response) Len() int { return len(r.message.Args) }

// Raw returns the JSON text of the argument at i, or nil if i is out of range.
// Binary values are placeholder objects.
func (r *Response) Raw(i int) json.RawMessage {
	if i < 0 || i >= len(r.message.Args) {
		return nil
	}
	return r.message.Args[i]
}

// Decode unmarshals the argument at i into v. Attachments are restored.
func (r *Response) Decode(i int, v any) error {
	raw := r.Raw(i)
	if raw == nil {
		return fmt.Errorf("%w: %d", ErrArgumentOutOfRange, i)
	}
	return parser.DecodeArg(r.client.json, raw, r.message.Attachments, v)
}

func (r *Response) Attachments() [][]byte { return r.message.Attachments }

// ID of the packet. For events, ok is true when the server expects an ack.
func (r *Response) ID() (id uint64, ok bool) {
	if r.message.ID == nil {
		return 0, false
	}
	return *r.message.ID, true
}

// String returns the arguments as a JSON array.
func (r *Response) String() string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, arg := range r.message.Args {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(arg)
	}
	buf.WriteByte(']')
	return buf.String()
}

// Ack replies to a server event that carried an id.
// It can be sent only once.
func (r *Response) Ack(args ...any) error {
	id, ok := r.ID()
	if !ok || r.message.Type == parser.MessageTypeAck || r.message.Type == parser.MessageTypeBinaryAck {
		return ErrNoAckRequested
	}

	r.ackMu.Lock()
	defer r.ackMu.Unlock()
	if r.ackSent {
		return ErrAckAlreadySent
	}
	err := r.client.sendAck(r.transport, id, args)
	if err == nil {
		r.ackSent = true
	}
	return err
}

// ResponseValue decodes the argument at i as T.
func ResponseValue[T any](r *Response, i int) (T, error) {
	var v T
	err := r.Decode(i, &v)
	return v, err
}
