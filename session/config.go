package session

import (
	"strconv"
	"time"

	sio "github.com/karagenc/socket.io-client-go"
	eioparser "github.com/karagenc/socket.io-client-go/engine.io/parser"
)

const (
	DefaultPath  = "/vc_control"
	DefaultAppID = "veRTCDemo"
	DefaultUA    = "web-3.17.7"
)

// DefaultClientConfig is the client configuration the room service is deployed with.
// The device id is the current time in milliseconds.
func DefaultClientConfig() *sio.ClientConfig {
	return &sio.ClientConfig{
		Path: DefaultPath,
		Query: []sio.QueryParam{
			{Key: "appid", Value: DefaultAppID},
			{Key: "ua", Value: DefaultUA},
			{Key: "did", Value: strconv.FormatInt(time.Now().UnixMilli(), 10)},
		},
		EIO:       eioparser.Revision3,
		Transport: "websocket",
	}
}
