package parser

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eioparser "github.com/karagenc/socket.io-client-go/engine.io/parser"
	gojson "github.com/karagenc/socket.io-client-go/parser/json/serializer/go-json"
)

func id(n uint64) *uint64 { return &n }

func raw(s ...string) []json.RawMessage {
	args := make([]json.RawMessage, len(s))
	for i := range s {
		args[i] = json.RawMessage(s[i])
	}
	return args
}

func TestReadEvent(t *testing.T) {
	for _, rev := range []eioparser.Revision{eioparser.Revision3, eioparser.Revision4} {
		c := NewCodec(rev, nil)

		t.Run("namespace and id", func(t *testing.T) {
			m, err := c.Read([]byte(`42/chat,3["message",{"text":"hi"}]`))
			require.NoError(t, err)
			assert.Equal(t, MessageTypeEvent, m.Type)
			assert.Equal(t, "/chat", m.Namespace)
			assert.Equal(t, id(3), m.ID)
			assert.Equal(t, "message", m.Event)
			assert.Equal(t, raw(`{"text":"hi"}`), m.Args)
		})

		t.Run("id only", func(t *testing.T) {
			m, err := c.Read([]byte(`422["message","hi"]`))
			require.NoError(t, err)
			assert.Equal(t, "", m.Namespace)
			assert.Equal(t, id(2), m.ID)
			assert.Equal(t, "message", m.Event)
			assert.Equal(t, raw(`"hi"`), m.Args)
		})

		t.Run("no id", func(t *testing.T) {
			m, err := c.Read([]byte(`42["ping"]`))
			require.NoError(t, err)
			assert.Nil(t, m.ID)
			assert.Equal(t, "ping", m.Event)
			assert.Nil(t, m.Args)
		})

		t.Run("default namespace is normalized", func(t *testing.T) {
			m, err := c.Read([]byte(`42/,["x"]`))
			require.NoError(t, err)
			assert.Equal(t, "", m.Namespace)
		})

		t.Run("binary event", func(t *testing.T) {
			m, err := c.Read([]byte(`452-/up,7["file",{"_placeholder":true,"num":0},{"_placeholder":true,"num":1}]`))
			require.NoError(t, err)
			assert.Equal(t, MessageTypeBinaryEvent, m.Type)
			assert.Equal(t, 2, m.BinaryCount)
			assert.Equal(t, "/up", m.Namespace)
			assert.Equal(t, id(7), m.ID)
			assert.Len(t, m.Args, 2)
		})

		t.Run("ack", func(t *testing.T) {
			m, err := c.Read([]byte(`43/chat,12[true,"ok"]`))
			require.NoError(t, err)
			assert.Equal(t, MessageTypeAck, m.Type)
			assert.Equal(t, id(12), m.ID)
			assert.Equal(t, raw(`true`, `"ok"`), m.Args)
		})
	}
}

func TestReadErrors(t *testing.T) {
	c := NewCodec(eioparser.Revision4, nil)

	tests := []struct {
		name  string
		frame string
		err   error
	}{
		{"empty message", "4", ErrInvalidPacket},
		{"invalid type", "49", ErrInvalidPacket},
		{"unparsable id", `42abc["x"]`, ErrInvalidPacket},
		{"unparsable id with namespace", `42/chat,x1["x"]`, ErrInvalidPacket},
		{"missing body", `42/chat,1`, ErrInvalidPacket},
		{"malformed body", `42["x"`, ErrInvalidPacket},
		{"event without name", `42[]`, ErrInvalidPacket},
		{"event name is not a string", `42[1]`, ErrInvalidPacket},
		{"ack without id", `43["x"]`, ErrInvalidPacket},
		{"binary without count", `45["x"]`, ErrInvalidPacket},
		{"malformed connect body", `40{"sid"`, ErrInvalidPacket},
		{"empty frame", "", ErrInvalidPacket},
		{"close", "1", ErrClosePacket},
		{"noop", "6", ErrIgnoredPacket},
		{"upgrade", "5", ErrIgnoredPacket},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m, err := c.Read([]byte(test.frame))
			assert.Nil(t, m)
			assert.ErrorIs(t, err, test.err)
		})
	}
}

func TestReadConnect(t *testing.T) {
	t.Run("revision 4", func(t *testing.T) {
		c := NewCodec(eioparser.Revision4, nil)
		m, err := c.Read([]byte(`40/admin,{"sid":"abc"}`))
		require.NoError(t, err)
		assert.Equal(t, MessageTypeConnected, m.Type)
		assert.Equal(t, "/admin", m.Namespace)
		assert.Equal(t, "abc", m.SID)
		assert.Nil(t, m.Auth)
	})

	t.Run("revision 3", func(t *testing.T) {
		c := NewCodec(eioparser.Revision3, nil)
		m, err := c.Read([]byte(`40/admin?token=1,`))
		require.NoError(t, err)
		assert.Equal(t, "/admin", m.Namespace)
		assert.Equal(t, "token=1", m.Query)
		assert.Equal(t, "", m.SID)

		m, err = c.Read([]byte(`40`))
		require.NoError(t, err)
		assert.Equal(t, MessageTypeConnected, m.Type)
		assert.Equal(t, "", m.Namespace)
	})
}

func TestReadError(t *testing.T) {
	t.Run("revision 4 object", func(t *testing.T) {
		c := NewCodec(eioparser.Revision4, nil)
		m, err := c.Read([]byte(`44/admin,{"message":"not authorized","data":{"code":403}}`))
		require.NoError(t, err)
		assert.Equal(t, MessageTypeError, m.Type)
		assert.Equal(t, "/admin", m.Namespace)
		assert.Equal(t, "not authorized", m.ErrorMessage)
		assert.JSONEq(t, `{"code":403}`, string(m.Data))
	})

	t.Run("revision 3 string", func(t *testing.T) {
		c := NewCodec(eioparser.Revision3, nil)
		m, err := c.Read([]byte(`44"Not authorized"`))
		require.NoError(t, err)
		assert.Equal(t, "Not authorized", m.ErrorMessage)
	})

	t.Run("revision 3 bare text", func(t *testing.T) {
		c := NewCodec(eioparser.Revision3, nil)
		m, err := c.Read([]byte(`44/chat,Not authorized`))
		require.NoError(t, err)
		assert.Equal(t, "/chat", m.Namespace)
		assert.Equal(t, "Not authorized", m.ErrorMessage)
	})
}

func TestReadEngineIOPackets(t *testing.T) {
	c := NewCodec(eioparser.Revision4, nil)

	m, err := c.Read([]byte(`0{"sid":"abc","upgrades":[],"pingInterval":25000,"pingTimeout":"20000"}`))
	require.NoError(t, err)
	assert.Equal(t, MessageTypeOpened, m.Type)
	assert.Equal(t, "abc", m.Handshake.SID)
	assert.Equal(t, 20*time.Second, m.Handshake.GetPingTimeout())

	m, err = c.Read([]byte("2probe"))
	require.NoError(t, err)
	assert.Equal(t, MessageTypePing, m.Type)
	assert.Equal(t, []byte("probe"), m.Raw)

	m, err = c.Read([]byte("3"))
	require.NoError(t, err)
	assert.Equal(t, MessageTypePong, m.Type)
	assert.Nil(t, m.Raw)

	_, err = c.Read([]byte(`0{}`))
	assert.ErrorIs(t, err, ErrInvalidPacket)

	_, err = c.ReadPacket(&eioparser.Packet{IsBinary: true, Type: eioparser.PacketTypeMessage, Data: []byte{1}})
	assert.ErrorIs(t, err, ErrInvalidPacket)
}

func TestWrite(t *testing.T) {
	c4 := NewCodec(eioparser.Revision4, nil)
	c3 := NewCodec(eioparser.Revision3, nil)

	tests := []struct {
		name     string
		codec    *Codec
		message  *Message
		expected string
	}{
		{"event", c4, &Message{Type: MessageTypeEvent, Event: "message", Args: raw(`"hi"`)}, `42["message","hi"]`},
		{"event with namespace and id", c4, &Message{Type: MessageTypeEvent, Namespace: "/chat", ID: id(3), Event: "message", Args: raw(`{"text":"hi"}`)}, `42/chat,3["message",{"text":"hi"}]`},
		{"binary event", c4, &Message{Type: MessageTypeBinaryEvent, Event: "up", Attachments: [][]byte{{1}}, Args: raw(`{"_placeholder":true,"num":0}`)}, `451-["up",{"_placeholder":true,"num":0}]`},
		{"ack", c4, &Message{Type: MessageTypeAck, Namespace: "/chat", ID: id(1), Args: raw(`"ok"`)}, `43/chat,1["ok"]`},
		{"empty ack", c4, &Message{Type: MessageTypeAck, ID: id(9)}, `439[]`},
		{"connect", c4, &Message{Type: MessageTypeConnected}, `40`},
		{"connect with auth", c4, &Message{Type: MessageTypeConnected, Namespace: "/admin", Auth: json.RawMessage(`{"token":"x"}`)}, `40/admin,{"token":"x"}`},
		{"connect revision 3", c3, &Message{Type: MessageTypeConnected, Namespace: "/admin", Query: "token=x"}, `40/admin?token=x,`},
		{"connect revision 3 default namespace", c3, &Message{Type: MessageTypeConnected}, `40`},
		{"disconnect", c4, &Message{Type: MessageTypeDisconnected, Namespace: "/admin"}, `41/admin,`},
		{"disconnect default namespace", c4, &Message{Type: MessageTypeDisconnected, Namespace: "/"}, `41`},
		{"ping", c3, &Message{Type: MessageTypePing}, `2`},
		{"pong probe", c4, &Message{Type: MessageTypePong, Raw: []byte("probe")}, `3probe`},
		{"error revision 3", c3, &Message{Type: MessageTypeError, ErrorMessage: "nope"}, `44"nope"`},
		{"error revision 4", c4, &Message{Type: MessageTypeError, ErrorMessage: "nope"}, `44{"message":"nope"}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b, err := test.codec.Write(test.message)
			require.NoError(t, err)
			assert.Equal(t, test.expected, string(b))
		})
	}

	_, err := c4.Write(&Message{Type: MessageTypeAck})
	assert.ErrorIs(t, err, ErrInvalidPacket)
}

func roundTripMessages(rev eioparser.Revision) []*Message {
	messages := []*Message{
		{Type: MessageTypeOpened, Handshake: &eioparser.Handshake{SID: "abc", Upgrades: []string{"websocket"}, PingInterval: 25000, PingTimeout: 20000}},
		{Type: MessageTypePing, Raw: []byte("probe")},
		{Type: MessageTypePong},
		{Type: MessageTypeDisconnected, Namespace: "/chat"},
		{Type: MessageTypeDisconnected},
		{Type: MessageTypeEvent, Event: "e"},
		{Type: MessageTypeEvent, Namespace: "/chat", ID: id(3), Event: "message", Args: raw(`{"text":"hi"}`, `[1,2]`)},
		{Type: MessageTypeAck, ID: id(5), Args: raw(`1`, `"a"`)},
		{Type: MessageTypeAck, Namespace: "/chat", ID: id(0)},
		{Type: MessageTypeBinaryEvent, Event: "up", BinaryCount: 2, Args: raw(`{"_placeholder":true,"num":0}`, `{"_placeholder":true,"num":1}`)},
		{Type: MessageTypeBinaryAck, Namespace: "/chat", ID: id(8), BinaryCount: 1, Args: raw(`{"_placeholder":true,"num":0}`)},
	}
	if rev == eioparser.Revision3 {
		return append(messages,
			&Message{Type: MessageTypeConnected, Namespace: "/chat", Query: "a=1&b=2"},
			&Message{Type: MessageTypeConnected},
			&Message{Type: MessageTypeError, ErrorMessage: "Not authorized"},
			&Message{Type: MessageTypeError, Namespace: "/chat", ErrorMessage: "x", Data: json.RawMessage(`{"code":1}`)},
		)
	}
	return append(messages,
		&Message{Type: MessageTypeConnected, Namespace: "/chat", Auth: json.RawMessage(`{"token":"abc"}`)},
		&Message{Type: MessageTypeConnected, SID: "xyz"},
		&Message{Type: MessageTypeConnected},
		&Message{Type: MessageTypeError, Namespace: "/chat", ErrorMessage: "not authorized", Data: json.RawMessage(`{"code":1}`)},
		&Message{Type: MessageTypeError, ErrorMessage: "x"},
	)
}

func TestRoundTrip(t *testing.T) {
	for _, rev := range []eioparser.Revision{eioparser.Revision3, eioparser.Revision4} {
		for _, c := range []*Codec{NewCodec(rev, nil), NewCodec(rev, gojson.New(nil, nil))} {
			for _, m := range roundTripMessages(rev) {
				b, err := c.Write(m)
				require.NoError(t, err)

				read, err := c.Read(b)
				require.NoError(t, err, string(b))
				assert.Equal(t, m, read, string(b))
			}
		}
	}
}

func TestPackets(t *testing.T) {
	c := NewCodec(eioparser.Revision4, nil)
	m := &Message{
		Type:        MessageTypeBinaryEvent,
		Event:       "up",
		Args:        raw(`{"_placeholder":true,"num":0}`, `{"_placeholder":true,"num":1}`),
		Attachments: [][]byte{{1, 2}, {3}},
	}

	packets, err := c.Packets(m)
	require.NoError(t, err)
	require.Len(t, packets, 3)

	assert.False(t, packets[0].IsBinary)
	assert.Equal(t, eioparser.PacketTypeMessage, packets[0].Type)
	assert.Equal(t, `52-["up",{"_placeholder":true,"num":0},{"_placeholder":true,"num":1}]`, string(packets[0].Data))
	assert.Equal(t, []byte{1, 2}, packets[1].Data)
	assert.True(t, packets[1].IsBinary)
	assert.Equal(t, []byte{3}, packets[2].Data)
}
