package sio

import (
	"testing"

	eioparser "github.com/karagenc/socket.io-client-go/engine.io/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base      string
		transport string
		rev       eioparser.Revision
		path      string
		query     []QueryParam
		expected  string
	}{
		{"http://localhost:3000", "websocket", eioparser.Revision4, "", nil, "ws://localhost:3000/socket.io/?EIO=4&transport=websocket"},
		{"http://localhost:3000", "polling", eioparser.Revision4, "", nil, "http://localhost:3000/socket.io/?EIO=4&transport=polling"},
		{"https://example.com", "websocket", eioparser.Revision3, "", nil, "wss://example.com/socket.io/?EIO=3&transport=websocket"},
		{"wss://example.com", "polling", eioparser.Revision4, "", nil, "https://example.com/socket.io/?EIO=4&transport=polling"},
		{"http://localhost:80", "websocket", eioparser.Revision4, "", nil, "ws://localhost/socket.io/?EIO=4&transport=websocket"},
		{"https://localhost:443", "websocket", eioparser.Revision4, "", nil, "wss://localhost/socket.io/?EIO=4&transport=websocket"},
		{"http://localhost:443", "websocket", eioparser.Revision4, "", nil, "ws://localhost:443/socket.io/?EIO=4&transport=websocket"},
		{"http://[::1]:3000", "websocket", eioparser.Revision4, "", nil, "ws://[::1]:3000/socket.io/?EIO=4&transport=websocket"},
		{"http://localhost/ignored?x=1", "websocket", eioparser.Revision4, "custom", nil, "ws://localhost/custom/?EIO=4&transport=websocket"},
		{
			"http://localhost", "websocket", eioparser.Revision4, "/sio/",
			[]QueryParam{{Key: "token", Value: "a b"}, {Key: "appid", Value: "1"}},
			"ws://localhost/sio/?EIO=4&transport=websocket&token=a+b&appid=1",
		},
	}
	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			u, err := ResolveURL(test.base, test.transport, test.rev, test.path, test.query)
			require.NoError(t, err)
			assert.Equal(t, test.expected, u.String())
		})
	}

	t.Run("should reject other schemes", func(t *testing.T) {
		_, err := ResolveURL("ftp://localhost", "websocket", eioparser.Revision4, "", nil)
		assert.ErrorIs(t, err, ErrUnsupportedScheme)
	})
}
