package eio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriterDebugger(t *testing.T) {
	buf := new(bytes.Buffer)
	d := NewWriterDebugger(buf)

	d.Log("plain")
	d.WithContext("[sio]").Log("Dialing", "ws://localhost")
	sid := ""
	dynamic := d.WithDynamicContext("[eio]", func() string { return sid })
	dynamic.Log("Transport is set to", "polling")
	sid = "sid abc"
	dynamic.Log("pingInterval", 25)
	dynamic.WithContext("[other]").Log("")

	assert.Equal(t, "plain\n"+
		"[sio]: Dialing: ws://localhost\n"+
		"[eio]: Transport is set to: polling\n"+
		"[eio]: sid abc: pingInterval: 25\n"+
		"[other]\n", buf.String())
}

func TestNoopDebugger(t *testing.T) {
	d := NewNoopDebugger()
	assert.NotPanics(t, func() {
		d.WithContext("[eio]").WithDynamicContext("[eio]", nil).Log("ignored", 1)
	})
}
