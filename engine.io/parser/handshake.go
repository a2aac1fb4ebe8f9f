package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var errEmptyHandshake = fmt.Errorf("parser: empty handshake")

// Milliseconds accepts both a JSON number and a numeric string.
type Milliseconds int64

func (m *Milliseconds) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("parser: invalid millisecond value: %s", b)
		}
		n = int64(f)
	}
	*m = Milliseconds(n)
	return nil
}

func (m Milliseconds) Duration() time.Duration {
	return time.Duration(m) * time.Millisecond
}

type Handshake struct {
	SID          string       `json:"sid"`
	Upgrades     []string     `json:"upgrades"`
	PingInterval Milliseconds `json:"pingInterval"`
	PingTimeout  Milliseconds `json:"pingTimeout"`
	MaxPayload   int64        `json:"maxPayload,omitempty"`
}

func (h *Handshake) GetPingInterval() time.Duration { return h.PingInterval.Duration() }

func (h *Handshake) GetPingTimeout() time.Duration { return h.PingTimeout.Duration() }

func ParseHandshake(p *Packet) (*Handshake, error) {
	if p.Type != PacketTypeOpen {
		return nil, fmt.Errorf("parser: packet with a type of OPEN was expected, got: %s", p.Type)
	}
	if len(p.Data) == 0 {
		return nil, errEmptyHandshake
	}

	h := new(Handshake)
	err := json.Unmarshal(p.Data, h)
	if err != nil {
		return nil, fmt.Errorf("parser: invalid handshake: %w", err)
	}
	if h.SID == "" {
		return nil, fmt.Errorf("parser: handshake without sid")
	}
	return h, nil
}

func (h *Handshake) Packet() (*Packet, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return NewPacket(PacketTypeOpen, false, data)
}
