package eio

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/karagenc/socket.io-client-go/engine.io/parser"
	"github.com/karagenc/socket.io-client-go/engine.io/transport"
	"github.com/karagenc/socket.io-client-go/internal/sync"
)

type ClientSocket struct {
	transport transport.ClientTransport
	url       *url.URL
	revision  parser.Revision

	// HTTP headers to use on transports.
	requestHeader *transport.RequestHeader

	// These are set after the handshake.
	handshake    *parser.Handshake
	pingInterval time.Duration
	pingTimeout  time.Duration

	callbacks Callbacks

	// Revision 4: signalled when the server pings.
	pingChan chan struct{}
	// Revision 3: signalled when the server answers our ping.
	pongChan chan struct{}
	// Unix nano time of the last ping we sent.
	pingSentAt atomic.Int64

	closeChan chan struct{}
	closeOnce sync.Once

	debug Debugger
}

func (s *ClientSocket) connect(ctx context.Context) error {
	hr, err := s.transport.Handshake(ctx)
	if err != nil {
		s.debug.Log("Handshake failed", err)
		return err
	}
	s.handshake = hr

	s.pingInterval = hr.GetPingInterval()
	if s.pingInterval <= 0 {
		s.pingInterval = defaultPingInterval
	}
	s.pingTimeout = hr.GetPingTimeout()
	if s.pingTimeout <= 0 {
		s.pingTimeout = defaultPingTimeout
	}
	s.debug.Log("pingInterval", s.pingInterval)
	s.debug.Log("pingTimeout", s.pingTimeout)

	go s.transport.Run()

	if s.revision == parser.Revision3 {
		go s.pingLoop()
	} else {
		go s.handleTimeout()
	}
	return nil
}

func (s *ClientSocket) ID() string { return s.handshake.SID }

// Handshake returns the OPEN packet received from the server.
func (s *ClientSocket) Handshake() *parser.Handshake { return s.handshake }

func (s *ClientSocket) Revision() parser.Revision { return s.revision }

func (s *ClientSocket) TransportName() string { return s.transport.Name() }

func (s *ClientSocket) PingInterval() time.Duration { return s.pingInterval }

func (s *ClientSocket) PingTimeout() time.Duration { return s.pingTimeout }

// Revision 4: the server pings. If no ping arrives within
// pingInterval + pingTimeout, the connection is considered dead.
func (s *ClientSocket) handleTimeout() {
	timeout := s.pingInterval + s.pingTimeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-s.pingChan:
			s.debug.Log("handleTimeout", "ping received")
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(timeout)
		case <-timer.C:
			s.debug.Log("handleTimeout", "timed out")
			s.close(ReasonPingTimeout, nil)
			return
		case <-s.closeChan:
			s.debug.Log("handleTimeout", "socket was closed")
			return
		}
	}
}

// Revision 3: the client pings every pingInterval and
// expects a pong within pingTimeout.
func (s *ClientSocket) pingLoop() {
	interval := time.NewTimer(s.pingInterval)
	defer interval.Stop()

	for {
		select {
		case <-interval.C:
		case <-s.closeChan:
			s.debug.Log("pingLoop", "socket was closed")
			return
		}

		// Drop a stale pong.
		select {
		case <-s.pongChan:
		default:
		}

		ping, err := parser.NewPacket(parser.PacketTypePing, false, nil)
		if err != nil {
			s.onError(wrapInternalError(err))
			return
		}
		s.pingSentAt.Store(time.Now().UnixNano())
		s.callbacks.OnPing()
		err = s.Send(ping)
		if err != nil {
			// The transport closes itself on write failure.
			s.debug.Log("pingLoop", "send failed", err)
			return
		}

		timeout := time.NewTimer(s.pingTimeout)
		select {
		case <-s.pongChan:
			timeout.Stop()
		case <-timeout.C:
			s.debug.Log("pingLoop", "timed out")
			s.close(ReasonPingTimeout, nil)
			return
		case <-s.closeChan:
			timeout.Stop()
			return
		}
		interval.Reset(s.pingInterval)
	}
}

func (s *ClientSocket) onPacket(packets ...*parser.Packet) {
	s.callbacks.OnPacket(packets...)
	for _, packet := range packets {
		s.handlePacket(packet)
	}
}

func (s *ClientSocket) handlePacket(packet *parser.Packet) {
	switch packet.Type {
	case parser.PacketTypePing:
		received := time.Now()
		select {
		case s.pingChan <- struct{}{}:
		default:
		}
		s.callbacks.OnPing()

		pong, err := parser.NewPacket(parser.PacketTypePong, false, packet.Data)
		if err != nil {
			s.onError(wrapInternalError(err))
			return
		}
		if s.Send(pong) == nil {
			s.callbacks.OnPong(time.Since(received))
		}
	case parser.PacketTypePong:
		sentAt := s.pingSentAt.Swap(0)
		if sentAt == 0 {
			s.debug.Log("handlePacket", "unsolicited pong")
			return
		}
		select {
		case s.pongChan <- struct{}{}:
		default:
		}
		s.callbacks.OnPong(time.Since(time.Unix(0, sentAt)))
	case parser.PacketTypeClose:
		s.transport.Close()
	}
}

func (s *ClientSocket) onError(err error) {
	if err != nil {
		s.callbacks.OnError(err)
	}
}

// A malformed frame is dropped. The connection stays up.
func (s *ClientSocket) onDecodeError(name string, err error) {
	s.debug.Log("Transport", name, "dropped a malformed frame", err)
	s.onError(fmt.Errorf("%w: %w", ErrMalformedFrame, err))
}

func (s *ClientSocket) onTransportClose(name string, err error) {
	go func() {
		if err == nil {
			s.debug.Log("Transport", name, "closed")
		} else {
			s.debug.Log("Transport", name, "closed. Error", err)
		}

		select {
		case <-s.closeChan:
			return
		default:
		}

		if err == nil {
			s.close(ReasonTransportClose, nil)
		} else {
			s.close(ReasonTransportError, err)
		}
	}()
}

// Send writes the packets in order.
// On failure the transport is closed and the error is returned.
func (s *ClientSocket) Send(packets ...*parser.Packet) error {
	select {
	case <-s.closeChan:
		return ErrSocketClosed
	default:
	}
	return s.writeWritablePackets(packets...)
}

// Equivalent of `getWritablePackets` in original Socket.IO.
func (s *ClientSocket) writeWritablePackets(packets ...*parser.Packet) error {
	maxPayload := s.handshake.MaxPayload
	shouldCheckPayloadSize := maxPayload > 0 && s.transport.Name() == "polling" && len(packets) > 1
	if shouldCheckPayloadSize {
		payloadSize := 0
		for i := 0; i < len(packets); i++ {
			// Since we're dealing with the polling transport, supportsBinary argument is false.
			payloadSize += len(packets[i].Build(s.revision, false))
			if i > 0 && int64(payloadSize) > maxPayload {
				err := s.transport.Send(packets[:i]...)
				if err != nil {
					return err
				}
				packets = packets[i:]
				i = -1
				payloadSize = 0
				continue
			}
			payloadSize += 1 // Separator
		}
		s.debug.Log("payload size is", payloadSize, "maxPayload", maxPayload)
	}
	if len(packets) > 0 {
		return s.transport.Send(packets...)
	}
	return nil
}

func (s *ClientSocket) close(reason Reason, err error) {
	s.debug.Log("Going to close the socket if it is not already closed. Reason", reason)

	s.closeOnce.Do(func() {
		s.debug.Log("Going to close the socket. It is not already closed. Reason", reason)
		close(s.closeChan)
		defer s.callbacks.OnClose(reason, err)

		if reason != ReasonTransportClose && reason != ReasonTransportError {
			s.transport.Close()
		}
	})
}

func (s *ClientSocket) Close() { s.close(ReasonForcedClose, nil) }
