package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/karagenc/socket.io-client-go/engine.io/parser"
	"github.com/karagenc/socket.io-client-go/engine.io/transport"
	"github.com/karagenc/socket.io-client-go/internal/sync"
	"nhooyr.io/websocket"
)

const defaultReadLimit int64 = 100 << 20

type ClientTransport struct {
	revision      parser.Revision
	url           *url.URL
	requestHeader *transport.RequestHeader

	dialOptions *websocket.DialOptions
	conn        *websocket.Conn
	writeMu     sync.Mutex

	// Packets that arrived in the same frame as OPEN.
	initialPackets []*parser.Packet

	callbacks *transport.Callbacks

	once sync.Once
}

// NewDialer returns a dialer that creates transports using nhooyr.io/websocket.
// dialOptions can be nil.
func NewDialer(dialOptions *websocket.DialOptions) transport.WebSocketDialer {
	return func(
		callbacks *transport.Callbacks,
		revision parser.Revision,
		url url.URL,
		requestHeader *transport.RequestHeader,
	) transport.ClientTransport {
		return NewClientTransport(callbacks, revision, url, requestHeader, dialOptions)
	}
}

func NewClientTransport(
	callbacks *transport.Callbacks,
	revision parser.Revision,
	url url.URL,
	requestHeader *transport.RequestHeader,
	dialOptions *websocket.DialOptions,
) *ClientTransport {
	return &ClientTransport{
		revision:      revision,
		url:           &url,
		requestHeader: requestHeader,
		callbacks:     callbacks,
		dialOptions:   dialOptions,
	}
}

func (t *ClientTransport) Name() string { return "websocket" }

func (t *ClientTransport) Handshake(ctx context.Context) (*parser.Handshake, error) {
	opts := new(websocket.DialOptions)
	if t.dialOptions != nil {
		*opts = *t.dialOptions
	}
	opts.HTTPHeader = mergeHeader(opts.HTTPHeader, t.requestHeader.Header())

	conn, _, err := websocket.Dial(ctx, t.url.String(), opts)
	if err != nil {
		return nil, transport.WrapError("dial", err)
	}
	conn.SetReadLimit(defaultReadLimit)
	t.conn = conn

	packets, err := t.nextPackets(ctx)
	if err != nil {
		conn.Close(websocket.StatusProtocolError, "")
		return nil, err
	}

	hr, err := parser.ParseHandshake(packets[0])
	if err != nil {
		conn.Close(websocket.StatusProtocolError, "")
		return nil, err
	}
	t.initialPackets = packets[1:]
	return hr, nil
}

func (t *ClientTransport) Run() {
	if len(t.initialPackets) > 0 {
		t.callbacks.OnPacket(t.initialPackets...)
		// Set to nil for garbage collection.
		t.initialPackets = nil
	}

	for {
		mt, data, err := t.conn.Read(context.Background())
		if err != nil {
			t.close(err)
			return
		}
		packets, err := decodeFrame(t.revision, mt, data)
		if err != nil {
			t.callbacks.OnDecodeError(t.Name(), err)
			continue
		}
		t.callbacks.OnPacket(packets...)
	}
}

func (t *ClientTransport) nextPackets(ctx context.Context) ([]*parser.Packet, error) {
	mt, data, err := t.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return decodeFrame(t.revision, mt, data)
}

func decodeFrame(rev parser.Revision, mt websocket.MessageType, data []byte) ([]*parser.Packet, error) {
	packets, err := parser.DecodeFrame(rev, data, mt == websocket.MessageBinary)
	if err != nil {
		return nil, err
	}
	if len(packets) == 0 {
		return nil, fmt.Errorf("websocket: empty frame")
	}
	return packets, nil
}

func (t *ClientTransport) Send(packets ...*parser.Packet) error {
	// Write must not be called concurrently.
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	for _, packet := range packets {
		mt := websocket.MessageText
		if packet.IsBinary {
			mt = websocket.MessageBinary
		}

		err := t.conn.Write(context.Background(), mt, packet.Build(t.revision, true))
		if err != nil {
			err = transport.WrapError("write", err)
			go t.close(err)
			return err
		}
	}
	return nil
}

func (t *ClientTransport) close(err error) {
	t.once.Do(func() {
		status := websocket.CloseStatus(err)
		for _, expected := range expectedCloseCodes {
			if status == expected {
				err = nil
				break
			}
		}
		if err != nil && !errors.As(err, new(*transport.Error)) {
			err = transport.WrapError("read", err)
		}

		defer t.callbacks.OnClose(t.Name(), err)

		if t.conn != nil {
			t.conn.Close(websocket.StatusNormalClosure, "")
		}
	})
}

func (t *ClientTransport) Close() {
	t.close(nil)
}

func mergeHeader(dst, src http.Header) http.Header {
	if dst == nil {
		dst = make(http.Header)
	} else {
		dst = dst.Clone()
	}
	for k, v := range src {
		for _, s := range v {
			dst.Add(k, s)
		}
	}
	return dst
}
