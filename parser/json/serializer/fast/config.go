package fast

import (
	"github.com/bytedance/sonic"
	"github.com/goccy/go-json"
)

type Config struct {
	SonicConfig sonic.Config
	GoJSON      GoJSONConfig
}

type GoJSONConfig struct {
	EncodeOptions []json.EncodeOptionFunc
	DecodeOptions []json.DecodeOptionFunc
}

func DefaultConfig() Config {
	return Config{
		SonicConfig: sonic.Config{
			// Decoded arguments are handed to user callbacks and may outlive the frame.
			CopyString: true,
			// Frames go straight onto the wire.
			CompactMarshaler: true,
			EscapeHTML:       true,
			// Placeholder order does not depend on key order.
			SortMapKeys: false,
		},
		GoJSON: GoJSONConfig{
			EncodeOptions: []json.EncodeOptionFunc{
				json.UnorderedMap(),
			},
		},
	}
}
