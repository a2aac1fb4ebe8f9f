// Package session maps named Socket.IO events to typed request and
// notification payloads, the way the werewolf room service expects them.
//
// A request is an event emitted with an acknowledgement. The server answers
// with a single argument:
//
//	{"code": 200, "message": "ok", "timestamp": 1700000000000, "response": {...}}
//
// A notification is an event pushed by the server with a single argument:
//
//	{"timestamp": 1700000000000, "data": {...}}
package session

import (
	"context"
	"fmt"
	"time"

	sio "github.com/karagenc/socket.io-client-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/karagenc/socket.io-client-go/session"

	DefaultTimeout = 10 * time.Second

	// Code of a successful response.
	CodeOK = 200
)

var ErrEmptyNotice = fmt.Errorf("session: notice has no data")

// ResponseError is returned when the server answers with a code other
// than 200, or without a response body.
type ResponseError struct {
	Code    int
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("session: request failed with code %d: %s", e.Code, e.Message)
}

// Client is the part of *sio.Client a session uses.
type Client interface {
	Request(ctx context.Context, event string, args ...any) (*sio.Response, error)
	On(event string, handler sio.EventHandler) *sio.Subscription
	OffAllEvents()
}

type ResponseRoot[T any] struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	Response  *T     `json:"response"`
}

type NoticeRoot[T any] struct {
	Timestamp int64 `json:"timestamp"`
	Data      *T    `json:"data"`
}

type Session struct {
	client  Client
	appID   string
	appKey  string
	timeout time.Duration
	tracer  trace.Tracer
}

type Option func(s *Session)

// WithAppID adds app_id to every request.
func WithAppID(appID string) Option {
	return func(s *Session) { s.appID = appID }
}

// WithAppKey is sent along with the app id by SetAppInfo.
func WithAppKey(appKey string) Option {
	return func(s *Session) { s.appKey = appKey }
}

// WithTracerProvider sets the provider of request spans.
// Default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Session) { s.tracer = tp.Tracer(tracerName) }
}

// WithTimeout bounds every request. Default is DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Session) { s.timeout = timeout }
}

func New(client Client, opts ...Option) *Session {
	s := &Session{
		client:  client,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.GetTracerProvider().Tracer(tracerName)
	}
	return s
}

func (s *Session) AppID() string { return s.appID }

// Request emits event with data and waits for the acknowledgement.
// The response is decoded as ResponseRoot[T].
// A nil data sends the event without arguments.
func Request[T any](ctx context.Context, s *Session, event string, data any) (*T, error) {
	ctx, span := s.tracer.Start(ctx, event,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("sio.event", event)),
	)
	defer span.End()

	resp, err := request[T](ctx, s, event, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

func request[T any](ctx context.Context, s *Session, event string, data any) (*T, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var args []any
	if data != nil {
		args = append(args, data)
	}
	res, err := s.client.Request(ctx, event, args...)
	if err != nil {
		return nil, err
	}

	var root ResponseRoot[T]
	err = res.Decode(0, &root)
	if err != nil {
		return nil, fmt.Errorf("session: decode %s response: %w", event, err)
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("session.code", root.Code))

	if root.Code != CodeOK || root.Response == nil {
		return nil, &ResponseError{Code: root.Code, Message: root.Message}
	}
	return root.Response, nil
}

// On decodes every event as NoticeRoot[T] and passes its data to handler.
// A notice without data is reported as ErrEmptyNotice.
func On[T any](s *Session, event string, handler func(data *T, err error)) *sio.Subscription {
	return s.client.On(event, func(res *sio.Response) {
		var root NoticeRoot[T]
		err := res.Decode(0, &root)
		if err != nil {
			handler(nil, fmt.Errorf("session: decode %s notice: %w", event, err))
			return
		}
		if root.Data == nil {
			handler(nil, ErrEmptyNotice)
			return
		}
		handler(root.Data, nil)
	})
}

// RemoveAllNotifications drops every event handler of the client.
func (s *Session) RemoveAllNotifications() { s.client.OffAllEvents() }

// withAppID returns the request body with app_id added when it is set.
func (s *Session) withAppID(m map[string]string) map[string]string {
	if s.appID != "" {
		m["app_id"] = s.appID
	}
	return m
}
