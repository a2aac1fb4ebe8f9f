// Package gorilla provides a WebSocket transport built on gorilla/websocket.
package gorilla

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/karagenc/socket.io-client-go/engine.io/parser"
	"github.com/karagenc/socket.io-client-go/engine.io/transport"
	"github.com/karagenc/socket.io-client-go/internal/sync"
)

const closeGracePeriod = time.Second

type ClientTransport struct {
	revision      parser.Revision
	url           *url.URL
	requestHeader *transport.RequestHeader

	dialer  *websocket.Dialer
	conn    *websocket.Conn
	writeMu sync.Mutex

	initialPackets []*parser.Packet

	callbacks *transport.Callbacks

	once sync.Once
}

// NewDialer returns a dialer that creates transports using gorilla/websocket.
// If dialer is nil, websocket.DefaultDialer is used.
func NewDialer(dialer *websocket.Dialer) transport.WebSocketDialer {
	return func(
		callbacks *transport.Callbacks,
		revision parser.Revision,
		url url.URL,
		requestHeader *transport.RequestHeader,
	) transport.ClientTransport {
		return NewClientTransport(callbacks, revision, url, requestHeader, dialer)
	}
}

func NewClientTransport(
	callbacks *transport.Callbacks,
	revision parser.Revision,
	url url.URL,
	requestHeader *transport.RequestHeader,
	dialer *websocket.Dialer,
) *ClientTransport {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &ClientTransport{
		revision:      revision,
		url:           &url,
		requestHeader: requestHeader,
		dialer:        dialer,
		callbacks:     callbacks,
	}
}

func (t *ClientTransport) Name() string { return "websocket" }

func (t *ClientTransport) Handshake(ctx context.Context) (*parser.Handshake, error) {
	u := *t.url
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}

	conn, _, err := t.dialer.DialContext(ctx, u.String(), t.requestHeader.Header())
	if err != nil {
		return nil, transport.WrapError("dial", err)
	}
	t.conn = conn

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}
	packets, err := t.nextPackets()
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetReadDeadline(time.Time{})

	hr, err := parser.ParseHandshake(packets[0])
	if err != nil {
		conn.Close()
		return nil, err
	}
	t.initialPackets = packets[1:]
	return hr, nil
}

func (t *ClientTransport) Run() {
	if len(t.initialPackets) > 0 {
		t.callbacks.OnPacket(t.initialPackets...)
		t.initialPackets = nil
	}

	for {
		mt, data, err := t.conn.ReadMessage()
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

func (t *ClientTransport) nextPackets() ([]*parser.Packet, error) {
	mt, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return decodeFrame(t.revision, mt, data)
}

func decodeFrame(rev parser.Revision, mt int, data []byte) ([]*parser.Packet, error) {
	packets, err := parser.DecodeFrame(rev, data, mt == websocket.BinaryMessage)
	if err != nil {
		return nil, err
	}
	if len(packets) == 0 {
		return nil, fmt.Errorf("gorilla: empty frame")
	}
	return packets, nil
}

func (t *ClientTransport) Send(packets ...*parser.Packet) error {
	// gorilla/websocket supports one concurrent writer.
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	for _, packet := range packets {
		mt := websocket.TextMessage
		if packet.IsBinary {
			mt = websocket.BinaryMessage
		}

		err := t.conn.WriteMessage(mt, packet.Build(t.revision, true))
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
		if websocket.IsCloseError(err, expectedCloseCodes...) {
			err = nil
		}
		if err != nil && !errors.As(err, new(*transport.Error)) {
			err = transport.WrapError("read", err)
		}

		defer t.callbacks.OnClose(t.Name(), err)

		if t.conn != nil {
			// WriteControl may be called concurrently with other methods.
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
			t.conn.Close()
		}
	})
}

func (t *ClientTransport) Close() {
	t.close(nil)
}

var expectedCloseCodes = []int{
	websocket.CloseNormalClosure,
	websocket.CloseGoingAway,
	websocket.CloseNoStatusReceived,
	websocket.CloseAbnormalClosure,
}
