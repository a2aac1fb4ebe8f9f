package session

import (
	"context"

	sio "github.com/karagenc/socket.io-client-go"
)

// Requests
const (
	EventSetAppInfo           = "wolfSetAppInfo"
	EventGetRoomList          = "wolfGetRoomList"
	EventCreateRoom           = "wolfCreateRoom"
	EventJoinRoom             = "wolfJoinRoom"
	EventLeaveRoom            = "wolfLeaveRoom"
	EventChangeUserGameStatus = "wolfChangeUserGameStatus"
	EventStartGame            = "wolfStartGame"
)

// Notifications
const (
	EventOnJoinRoom             = "wolfOnJoinRoom"
	EventOnLeaveRoom            = "wolfOnLeaveRoom"
	EventOnCloseRoom            = "wolfOnCloseRoom"
	EventOnChangeUserGameStatus = "wolfOnChangeUserGameStatus"
	EventOnStartGame            = "wolfOnStartGame"
	EventOnChangeGameStatus     = "wolfOnChangeGameStatus"
	EventOnUserSpeak            = "wolfOnUserSpeak"
)

// GameStatus of a room.
type GameStatus int

const (
	GameStatusWaiting GameStatus = iota + 1
	GameStatusStarting
	GameStatusNight
	GameStatusDay
	GameStatusEnded
)

// UserGameStatus of a player.
type UserGameStatus int

const (
	UserGameStatusNotReady UserGameStatus = iota + 1
	UserGameStatusReady
	UserGameStatusPlaying
)

type RoomRole int

const (
	RoomRoleHost RoomRole = iota + 1
	RoomRoleMember
)

type GameRole int

const (
	GameRoleVillager GameRole = iota + 1
	GameRoleWerewolf
)

type Room struct {
	ID           int64      `json:"id"`
	AppID        string     `json:"app_id"`
	RoomID       string     `json:"room_id"`
	RoomName     string     `json:"room_name"`
	HostUserID   string     `json:"host_user_id"`
	HostUserName string     `json:"host_user_name"`
	Status       int        `json:"status"`
	GameStatus   GameStatus `json:"game_status"`
	UserCount    int        `json:"user_count"`
	CreateTime   string     `json:"create_time"`
	UpdateTime   string     `json:"update_time"`
}

type User struct {
	AppID      string         `json:"app_id"`
	RoomID     string         `json:"room_id"`
	UserID     string         `json:"user_id"`
	UserName   string         `json:"user_name"`
	NetStatus  int            `json:"net_status"`
	GameStatus UserGameStatus `json:"game_status"`
	RoomRole   RoomRole       `json:"room_role"`
	GameRole   GameRole       `json:"game_role"`
	ConnID     string         `json:"conn_id"`
	CreateTime string         `json:"create_time"`
	UpdateTime string         `json:"update_time"`
}

type SetAppInfoResponse struct{}

type GetRoomListResponse struct {
	RoomList []Room `json:"room_list"`
}

type CreateRoomResponse struct {
	Room     Room   `json:"room"`
	User     User   `json:"user"`
	RTCToken string `json:"rtc_token"`
}

type JoinRoomResponse struct {
	UserList []User `json:"user_list"`
	Room     Room   `json:"room"`
	User     User   `json:"user"`
	RTCToken string `json:"rtc_token"`
}

type LeaveRoomResponse struct{}

type PrepareGameRequest struct {
	AppID      string         `json:"app_id,omitempty"`
	RoomID     string         `json:"room_id"`
	UserID     string         `json:"user_id"`
	GameStatus UserGameStatus `json:"game_status"`
}

type PrepareGameResponse struct{}

type StartGameResponse struct {
	UserList []User `json:"user_list"`
}

type JoinRoomNotice struct {
	RoomID string `json:"room_id"`
	User   User   `json:"user"`
}

type LeaveRoomNotice struct {
	RoomID string `json:"room_id"`
	User   User   `json:"user"`
}

type CloseRoomNotice struct {
	RoomID string `json:"room_id"`
	Type   int    `json:"type"`
}

type PrepareGameNotice struct {
	RoomID     string         `json:"room_id"`
	UserID     string         `json:"user_id"`
	GameStatus UserGameStatus `json:"game_status"`
	CanStart   bool           `json:"can_start"`
}

type StartGameNotice struct {
	RoomID   string `json:"room_id"`
	UserList []User `json:"user_list"`
}

type ChangeGameStatusNotice struct {
	RoomID     string     `json:"room_id"`
	GameStatus GameStatus `json:"game_status"`
}

type UserSpeakNotice struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

// SetAppInfo registers the app id and key with the server.
func (s *Session) SetAppInfo(ctx context.Context) (*SetAppInfoResponse, error) {
	return Request[SetAppInfoResponse](ctx, s, EventSetAppInfo, map[string]string{
		"app_id":  s.appID,
		"app_key": s.appKey,
	})
}

func (s *Session) GetRoomList(ctx context.Context) (*GetRoomListResponse, error) {
	return Request[GetRoomListResponse](ctx, s, EventGetRoomList, s.withAppID(map[string]string{}))
}

func (s *Session) CreateRoom(ctx context.Context, roomName, userName string) (*CreateRoomResponse, error) {
	return Request[CreateRoomResponse](ctx, s, EventCreateRoom, s.withAppID(map[string]string{
		"room_name": roomName,
		"user_name": userName,
	}))
}

func (s *Session) JoinRoom(ctx context.Context, roomID, userName string) (*JoinRoomResponse, error) {
	return Request[JoinRoomResponse](ctx, s, EventJoinRoom, s.withAppID(map[string]string{
		"room_id":   roomID,
		"user_name": userName,
	}))
}

func (s *Session) LeaveRoom(ctx context.Context, roomID, userID string) (*LeaveRoomResponse, error) {
	return Request[LeaveRoomResponse](ctx, s, EventLeaveRoom, s.withAppID(map[string]string{
		"room_id": roomID,
		"user_id": userID,
	}))
}

// PrepareGame marks the user ready, or not ready.
func (s *Session) PrepareGame(ctx context.Context, roomID, userID string, ready bool) (*PrepareGameResponse, error) {
	status := UserGameStatusNotReady
	if ready {
		status = UserGameStatusReady
	}
	return Request[PrepareGameResponse](ctx, s, EventChangeUserGameStatus, &PrepareGameRequest{
		AppID:      s.appID,
		RoomID:     roomID,
		UserID:     userID,
		GameStatus: status,
	})
}

func (s *Session) StartGame(ctx context.Context, roomID, userID string) (*StartGameResponse, error) {
	return Request[StartGameResponse](ctx, s, EventStartGame, s.withAppID(map[string]string{
		"room_id": roomID,
		"user_id": userID,
	}))
}

func (s *Session) OnJoinRoom(handler func(*JoinRoomNotice, error)) *sio.Subscription {
	return On(s, EventOnJoinRoom, handler)
}

func (s *Session) OnLeaveRoom(handler func(*LeaveRoomNotice, error)) *sio.Subscription {
	return On(s, EventOnLeaveRoom, handler)
}

func (s *Session) OnCloseRoom(handler func(*CloseRoomNotice, error)) *sio.Subscription {
	return On(s, EventOnCloseRoom, handler)
}

// OnPrepareGame is called when a user changes their ready status.
func (s *Session) OnPrepareGame(handler func(*PrepareGameNotice, error)) *sio.Subscription {
	return On(s, EventOnChangeUserGameStatus, handler)
}

func (s *Session) OnStartGame(handler func(*StartGameNotice, error)) *sio.Subscription {
	return On(s, EventOnStartGame, handler)
}

func (s *Session) OnChangeGameStatus(handler func(*ChangeGameStatusNotice, error)) *sio.Subscription {
	return On(s, EventOnChangeGameStatus, handler)
}

func (s *Session) OnUserSpeak(handler func(*UserSpeakNotice, error)) *sio.Subscription {
	return On(s, EventOnUserSpeak, handler)
}
