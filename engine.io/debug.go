package eio

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/karagenc/socket.io-client-go/internal/sync"
	"github.com/xiegeo/coloredgoroutine"
)

type (
	// Debugger receives the internal log of the client.
	// Both the Socket.IO and the Engine.IO layers log to the same Debugger.
	Debugger interface {
		Log(main string, v ...any)
		// WithContext returns a Debugger that prefixes every line with context.
		WithContext(context string) Debugger
		// dynamicContext is called on every Log. An empty result is skipped.
		WithDynamicContext(context string, dynamicContext func() string) Debugger
	}

	noopDebugger struct{}

	writerDebugger struct {
		mu             *sync.Mutex
		w              io.Writer
		context        string
		dynamicContext func() string
	}
)

func NewNoopDebugger() Debugger {
	return noopDebugger{}
}

func (d noopDebugger) Log(main string, v ...any) {}

func (d noopDebugger) WithContext(context string) Debugger { return d }

func (d noopDebugger) WithDynamicContext(context string, _ func() string) Debugger { return d }

// NewPrintDebugger writes to the standard output, one color per goroutine.
func NewPrintDebugger() Debugger {
	return NewWriterDebugger(coloredgoroutine.Colors(os.Stdout))
}

// NewWriterDebugger writes one line per Log call to w.
// Fields are separated with ": ".
func NewWriterDebugger(w io.Writer) Debugger {
	return &writerDebugger{mu: new(sync.Mutex), w: w}
}

func (d *writerDebugger) Log(main string, v ...any) {
	fields := make([]string, 0, 3+len(v))
	if d.context != "" {
		fields = append(fields, d.context)
	}
	if d.dynamicContext != nil {
		if dc := d.dynamicContext(); dc != "" {
			fields = append(fields, dc)
		}
	}
	if main != "" {
		fields = append(fields, main)
	}
	for _, f := range v {
		fields = append(fields, fmt.Sprint(f))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.w, strings.Join(fields, ": "))
}

func (d writerDebugger) WithContext(context string) Debugger {
	d.context = context
	d.dynamicContext = nil
	return &d
}

func (d writerDebugger) WithDynamicContext(context string, dynamicContext func() string) Debugger {
	d.context = context
	d.dynamicContext = dynamicContext
	return &d
}
