package sio

import (
	"encoding/json"
	"reflect"

	"github.com/fatih/structs"
	"github.com/karagenc/socket.io-client-go/internal/sync"
	"github.com/karagenc/socket.io-client-go/parser/json/serializer"
)

// Auth holds the payload of the CONNECT packet.
type Auth struct {
	mu   sync.Mutex
	data any
}

func newAuth() *Auth {
	return new(Auth)
}

func validAuth(data any) bool {
	if data == nil || structs.IsStruct(data) {
		return true
	}
	rt := reflect.TypeOf(data)
	if rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	return rt.Kind() == reflect.Map
}

func (a *Auth) Set(data any) error {
	if !validAuth(data) {
		return ErrAuthInvalidValue
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = data
	return nil
}

func (a *Auth) Get() (data any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data
}

// nil when no auth is set.
func (a *Auth) marshal(s serializer.JSONMarshalUnmarshaler) (json.RawMessage, error) {
	data := a.Get()
	if data == nil {
		return nil, nil
	}
	return s.Marshal(data)
}
