package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	sio "github.com/karagenc/socket.io-client-go"
	eioparser "github.com/karagenc/socket.io-client-go/engine.io/parser"
	"github.com/karagenc/socket.io-client-go/internal/utils"
	"github.com/karagenc/socket.io-client-go/parser"
	"github.com/karagenc/socket.io-client-go/parser/json/serializer/stdjson"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// roomServer answers requests with the scripted responses, keyed by event.
type roomServer struct {
	*utils.TestServer

	mu        sync.Mutex
	responses map[string]string
	requests  map[string]json.RawMessage
}

func newRoomServer(t *testing.T, onConnect func(c *utils.TestConn, namespace string)) *roomServer {
	s := &roomServer{
		responses: make(map[string]string),
		requests:  make(map[string]json.RawMessage),
	}
	codec := parser.NewCodec(eioparser.Revision4, stdjson.New())
	s.TestServer = utils.NewTestServer(t, &utils.TestServerConfig{
		AutoConnect: true,
		OnConnect:   onConnect,
		OnMessage: func(c *utils.TestConn, p *eioparser.Packet) {
			if p.IsBinary {
				return
			}
			m, err := codec.ReadPacket(p)
			if err != nil || m.Type != parser.MessageTypeEvent || m.ID == nil {
				return
			}

			s.mu.Lock()
			if len(m.Args) > 0 {
				s.requests[m.Event] = m.Args[0]
			}
			response, ok := s.responses[m.Event]
			s.mu.Unlock()
			if ok {
				c.SendMessage(fmt.Sprintf("3%d[%s]", *m.ID, response))
			}
		},
	})
	return s
}

func (s *roomServer) respond(event, response string) {
	s.mu.Lock()
	s.responses[event] = response
	s.mu.Unlock()
}

func (s *roomServer) request(event string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.requests[event])
}

func connect(t *testing.T, server *roomServer) *sio.Client {
	client, err := sio.NewClient(server.URL, nil)
	require.NoError(t, err)
	t.Cleanup(client.Dispose)
	require.NoError(t, client.ConnectContext(context.Background()))
	return client
}

func TestRequest(t *testing.T) {
	t.Run("should decode the response", func(t *testing.T) {
		server := newRoomServer(t, nil)
		server.respond(EventCreateRoom, `{"code":200,"message":"ok","timestamp":1,"response":{`+
			`"room":{"id":7,"room_id":"r1","room_name":"Village","game_status":1,"user_count":1},`+
			`"user":{"user_id":"u1","user_name":"Ada","room_role":1,"game_status":1},`+
			`"rtc_token":"token"}}`)

		s := New(connect(t, server), WithAppID("app"))
		resp, err := s.CreateRoom(context.Background(), "Village", "Ada")
		require.NoError(t, err)

		assert.Equal(t, int64(7), resp.Room.ID)
		assert.Equal(t, "r1", resp.Room.RoomID)
		assert.Equal(t, GameStatusWaiting, resp.Room.GameStatus)
		assert.Equal(t, "u1", resp.User.UserID)
		assert.Equal(t, RoomRoleHost, resp.User.RoomRole)
		assert.Equal(t, "token", resp.RTCToken)
		assert.JSONEq(t, `{"app_id":"app","room_name":"Village","user_name":"Ada"}`, server.request(EventCreateRoom))
	})

	t.Run("should leave out an empty app id", func(t *testing.T) {
		server := newRoomServer(t, nil)
		server.respond(EventGetRoomList, `{"code":200,"response":{"room_list":[{"room_id":"a"},{"room_id":"b"}]}}`)

		s := New(connect(t, server))
		resp, err := s.GetRoomList(context.Background())
		require.NoError(t, err)
		require.Len(t, resp.RoomList, 2)
		assert.Equal(t, "b", resp.RoomList[1].RoomID)
		assert.JSONEq(t, `{}`, server.request(EventGetRoomList))
	})

	t.Run("should send the ready status", func(t *testing.T) {
		server := newRoomServer(t, nil)
		server.respond(EventChangeUserGameStatus, `{"code":200,"response":{}}`)

		s := New(connect(t, server), WithAppID("app"))
		_, err := s.PrepareGame(context.Background(), "r1", "u1", true)
		require.NoError(t, err)
		assert.JSONEq(t, `{"app_id":"app","room_id":"r1","user_id":"u1","game_status":2}`, server.request(EventChangeUserGameStatus))

		_, err = s.PrepareGame(context.Background(), "r1", "u1", false)
		require.NoError(t, err)
		assert.JSONEq(t, `{"app_id":"app","room_id":"r1","user_id":"u1","game_status":1}`, server.request(EventChangeUserGameStatus))
	})

	t.Run("should send the app key", func(t *testing.T) {
		server := newRoomServer(t, nil)
		server.respond(EventSetAppInfo, `{"code":200,"response":{}}`)

		s := New(connect(t, server), WithAppID("app"), WithAppKey("key"))
		_, err := s.SetAppInfo(context.Background())
		require.NoError(t, err)
		assert.JSONEq(t, `{"app_id":"app","app_key":"key"}`, server.request(EventSetAppInfo))
	})

	t.Run("should return a response error", func(t *testing.T) {
		server := newRoomServer(t, nil)
		server.respond(EventJoinRoom, `{"code":404,"message":"room not found"}`)
		server.respond(EventStartGame, `{"code":200,"message":"ok"}`)

		s := New(connect(t, server))
		_, err := s.JoinRoom(context.Background(), "r1", "Ada")
		var respErr *ResponseError
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, 404, respErr.Code)
		assert.Equal(t, "room not found", respErr.Message)

		// Success requires a response body.
		_, err = s.StartGame(context.Background(), "r1", "u1")
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, CodeOK, respErr.Code)
	})

	t.Run("should time out", func(t *testing.T) {
		server := newRoomServer(t, nil)
		s := New(connect(t, server), WithTimeout(50*time.Millisecond))
		_, err := s.LeaveRoom(context.Background(), "r1", "u1")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("should fail when not connected", func(t *testing.T) {
		client, err := sio.NewClient("http://localhost", nil)
		require.NoError(t, err)
		defer client.Dispose()

		_, err = New(client).GetRoomList(context.Background())
		assert.ErrorIs(t, err, sio.ErrNotConnected)
	})
}

func TestRequestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	server := newRoomServer(t, nil)
	server.respond(EventGetRoomList, `{"code":200,"response":{"room_list":[]}}`)
	server.respond(EventLeaveRoom, `{"code":500,"message":"internal"}`)

	s := New(connect(t, server), WithTracerProvider(tp))
	_, err := s.GetRoomList(context.Background())
	require.NoError(t, err)
	_, err = s.LeaveRoom(context.Background(), "r1", "u1")
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, EventGetRoomList, spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("sio.event", EventGetRoomList))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("session.code", 200))

	assert.Equal(t, EventLeaveRoom, spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Contains(t, spans[1].Attributes(), attribute.Int("session.code", 500))
	require.Len(t, spans[1].Events(), 1)
	assert.Equal(t, "exception", spans[1].Events()[0].Name)
}

func TestNotifications(t *testing.T) {
	server := newRoomServer(t, func(c *utils.TestConn, namespace string) {
		c.SendMessage(`2["wolfOnJoinRoom",{"timestamp":1,"data":{"room_id":"r1","user":{"user_id":"u2","user_name":"Bob"}}}]`)
		c.SendMessage(`2["wolfOnChangeUserGameStatus",{"timestamp":2,"data":{"room_id":"r1","user_id":"u2","game_status":2,"can_start":true}}]`)
		c.SendMessage(`2["wolfOnCloseRoom",{"timestamp":3}]`)
		c.SendMessage(`2["wolfOnUserSpeak","not an object"]`)
	})

	client, err := sio.NewClient(server.URL, nil)
	require.NoError(t, err)
	t.Cleanup(client.Dispose)
	s := New(client)

	tw := utils.NewTestWaiterString()
	tw.Add(EventOnJoinRoom)
	tw.Add(EventOnChangeUserGameStatus)
	tw.Add(EventOnCloseRoom)
	tw.Add(EventOnUserSpeak)

	s.OnJoinRoom(func(n *JoinRoomNotice, err error) {
		defer tw.Done(EventOnJoinRoom)
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "r1", n.RoomID)
		assert.Equal(t, "Bob", n.User.UserName)
	})
	s.OnPrepareGame(func(n *PrepareGameNotice, err error) {
		defer tw.Done(EventOnChangeUserGameStatus)
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, UserGameStatusReady, n.GameStatus)
		assert.True(t, n.CanStart)
	})
	s.OnCloseRoom(func(n *CloseRoomNotice, err error) {
		defer tw.Done(EventOnCloseRoom)
		assert.Nil(t, n)
		assert.ErrorIs(t, err, ErrEmptyNotice)
	})
	s.OnUserSpeak(func(n *UserSpeakNotice, err error) {
		defer tw.Done(EventOnUserSpeak)
		assert.Nil(t, n)
		assert.Error(t, err)
	})

	require.NoError(t, client.ConnectContext(context.Background()))
	tw.WaitTimeout(t, utils.DefaultTestWaitTimeout)
}

type fakeClient struct {
	offAll int
}

func (c *fakeClient) Request(ctx context.Context, event string, args ...any) (*sio.Response, error) {
	return nil, sio.ErrNotConnected
}

func (c *fakeClient) On(event string, handler sio.EventHandler) *sio.Subscription { return nil }

func (c *fakeClient) OffAllEvents() { c.offAll++ }

func TestRemoveAllNotifications(t *testing.T) {
	client := &fakeClient{}
	s := New(client)
	s.RemoveAllNotifications()
	assert.Equal(t, 1, client.offAll)
}

func TestDefaultClientConfig(t *testing.T) {
	config := DefaultClientConfig()
	assert.Equal(t, "/vc_control", config.Path)
	assert.Equal(t, eioparser.Revision3, config.EIO)
	assert.Equal(t, "websocket", config.Transport)
	require.Len(t, config.Query, 3)
	assert.Equal(t, sio.QueryParam{Key: "appid", Value: DefaultAppID}, config.Query[0])
	assert.Equal(t, sio.QueryParam{Key: "ua", Value: DefaultUA}, config.Query[1])
	assert.Equal(t, "did", config.Query[2].Key)
	assert.NotEmpty(t, config.Query[2].Value)

	client, err := sio.NewClient("https://example.com", config)
	require.NoError(t, err)
	defer client.Dispose()
	assert.Equal(t, eioparser.Revision3, client.Revision())
}
