package sio

import (
	"testing"

	"github.com/karagenc/socket.io-client-go/parser/json/serializer/stdjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth(t *testing.T) {
	type S struct {
		Num int `json:"num"`
	}
	s := &S{
		Num: 500,
	}
	auth := newAuth()
	err := auth.Set(s)
	require.NoError(t, err)

	s, ok := auth.Get().(*S)
	if !assert.True(t, ok) {
		t.Fail()
	}
	assert.Equal(t, s.Num, 500)

	raw, err := auth.marshal(stdjson.New())
	require.NoError(t, err)
	assert.Equal(t, `{"num":500}`, string(raw))

	err = auth.Set(map[string]string{"token": "abc"})
	assert.NoError(t, err)

	err = auth.Set("Donkey")
	assert.ErrorIs(t, err, ErrAuthInvalidValue, "err must be non-nil for a string value")

	err = auth.Set(nil)
	assert.NoError(t, err)
	raw, err = auth.marshal(stdjson.New())
	assert.NoError(t, err)
	assert.Nil(t, raw)
}
