package utils

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/karagenc/socket.io-client-go/engine.io/parser"
	"github.com/karagenc/socket.io-client-go/internal/sync"
	"github.com/madflojo/testcerts"
	"nhooyr.io/websocket"
)

// TestServerConfig scripts the behavior of a TestServer.
type TestServerConfig struct {
	// Default is revision 4.
	Revision parser.Revision

	// Defaults are 25 and 20 seconds.
	PingInterval time.Duration
	PingTimeout  time.Duration
	MaxPayload   int64

	// Revision 4: the server never pings.
	// Revision 3: the server never answers pings.
	NoHeartbeat bool

	// Answer Socket.IO CONNECT packets with CONNECT.
	// For revision 3 the default namespace is also acknowledged right after OPEN.
	AutoConnect bool

	// Called after the OPEN packet is sent.
	OnOpen func(c *TestConn)

	// Called after a namespace is connected. Requires AutoConnect.
	OnConnect func(c *TestConn, namespace string)

	// Called for every message packet the client sends.
	OnMessage func(c *TestConn, p *parser.Packet)

	// Wraps the HTTP handler. Can be used for compression.
	Middleware func(h http.Handler) http.Handler
}

// TestServer is a minimal in-process Engine.IO/Socket.IO server.
// It speaks websocket and polling for revisions 3 and 4.
type TestServer struct {
	*httptest.Server

	config TestServerConfig

	mu     sync.Mutex
	conns  map[string]*TestConn
	nextID atomic.Int64

	// Number of accepted handshakes.
	handshakes atomic.Int64
	// Handshakes fail with 503 while this is set.
	reject atomic.Bool
}

func NewTestServer(t *testing.T, config *TestServerConfig) *TestServer {
	s := newTestServer(config)
	s.Server = httptest.NewServer(s.handler())
	t.Cleanup(s.Close)
	return s
}

// NewTLSTestServer is NewTestServer with a freshly generated certificate.
// Clients must skip verification.
func NewTLSTestServer(t *testing.T, config *TestServerConfig) *TestServer {
	certFile, keyFile, err := testcerts.GenerateCertsToTempFile(os.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Remove(certFile)
		os.Remove(keyFile)
	})
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		t.Fatal(err)
	}

	s := newTestServer(config)
	s.Server = httptest.NewUnstartedServer(s.handler())
	s.Server.TLS = &tls.Config{Certificates: []tls.Certificate{cert}}
	s.Server.StartTLS()
	t.Cleanup(s.Close)
	return s
}

func newTestServer(config *TestServerConfig) *TestServer {
	s := &TestServer{conns: make(map[string]*TestConn)}
	if config != nil {
		s.config = *config
	}
	if s.config.Revision == 0 {
		s.config.Revision = parser.Revision4
	}
	if s.config.PingInterval == 0 {
		s.config.PingInterval = 25 * time.Second
	}
	if s.config.PingTimeout == 0 {
		s.config.PingTimeout = 20 * time.Second
	}
	return s
}

func (s *TestServer) handler() http.Handler {
	var h http.Handler = http.HandlerFunc(s.serveHTTP)
	if s.config.Middleware != nil {
		h = s.config.Middleware(h)
	}
	return h
}

// Close drops every connection and stops the server.
func (s *TestServer) Close() {
	for _, c := range s.Conns() {
		c.Drop()
	}
	s.Server.Close()
}

// Handshakes returns the number of accepted handshakes so far.
func (s *TestServer) Handshakes() int { return int(s.handshakes.Load()) }

// Reject makes subsequent handshakes fail with 503 while set.
func (s *TestServer) Reject(reject bool) { s.reject.Store(reject) }

func (s *TestServer) Conns() []*TestConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	conns := make([]*TestConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	return conns
}

func (s *TestServer) serveHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("EIO") != s.config.Revision.String() {
		http.Error(w, "unsupported protocol version", http.StatusBadRequest)
		return
	}

	sid := q.Get("sid")
	if sid != "" {
		s.mu.Lock()
		c, ok := s.conns[sid]
		s.mu.Unlock()
		if !ok || c.ws != nil {
			http.Error(w, "unknown sid", http.StatusBadRequest)
			return
		}
		switch r.Method {
		case http.MethodGet:
			c.poll(w, r)
		case http.MethodPost:
			c.receivePayload(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if s.reject.Load() {
		http.Error(w, "rejected", http.StatusServiceUnavailable)
		return
	}

	switch q.Get("transport") {
	case "websocket":
		s.acceptWebSocket(w, r)
	case "polling":
		s.acceptPolling(w, r)
	default:
		http.Error(w, "unknown transport", http.StatusBadRequest)
	}
}

func (s *TestServer) newConn(r *http.Request) *TestConn {
	c := &TestConn{
		SID:      fmt.Sprintf("sid%d", s.nextID.Add(1)),
		Query:    r.URL.Query(),
		Header:   r.Header.Clone(),
		Revision: s.config.Revision,
		server:   s,
		queue:    make(chan *parser.Packet, 256),
		closed:   make(chan struct{}),
	}
	s.mu.Lock()
	s.conns[c.SID] = c
	s.mu.Unlock()
	s.handshakes.Add(1)
	return c
}

func (s *TestServer) openPacket(c *TestConn) *parser.Packet {
	hs := &parser.Handshake{
		SID:          c.SID,
		Upgrades:     []string{},
		PingInterval: parser.Milliseconds(s.config.PingInterval / time.Millisecond),
		PingTimeout:  parser.Milliseconds(s.config.PingTimeout / time.Millisecond),
		MaxPayload:   s.config.MaxPayload,
	}
	p, err := hs.Packet()
	if err != nil {
		panic(err)
	}
	return p
}

func (s *TestServer) acceptWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	c := s.newConn(r)
	c.ws = ws

	err = c.Send(s.openPacket(c))
	if err != nil {
		c.Drop()
		return
	}
	c.opened()

	for {
		mt, data, err := ws.Read(context.Background())
		if err != nil {
			c.Drop()
			return
		}
		packets, err := parser.DecodeFrame(c.Revision, data, mt == websocket.MessageBinary)
		if err != nil {
			c.Drop()
			return
		}
		for _, p := range packets {
			c.handlePacket(p)
		}
	}
}

func (s *TestServer) acceptPolling(w http.ResponseWriter, r *http.Request) {
	c := s.newConn(r)
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	w.Write(parser.EncodePayload(c.Revision, s.openPacket(c)))
	go c.opened()
}

// TestConn is one client connection accepted by a TestServer.
type TestConn struct {
	SID      string
	Query    url.Values
	Header   http.Header
	Revision parser.Revision

	server *TestServer

	// nil for polling.
	ws      *websocket.Conn
	writeMu sync.Mutex

	// Outgoing packets of a polling connection.
	queue chan *parser.Packet

	closed    chan struct{}
	closeOnce sync.Once
}

func (c *TestConn) opened() {
	cfg := &c.server.config
	if c.Revision == parser.Revision4 && !cfg.NoHeartbeat {
		go c.pingLoop()
	}
	if cfg.OnOpen != nil {
		cfg.OnOpen(c)
	}
	if c.Revision == parser.Revision3 && cfg.AutoConnect {
		// Revision 3 servers acknowledge the default namespace on their own.
		c.SendMessage("0")
		if cfg.OnConnect != nil {
			cfg.OnConnect(c, "")
		}
	}
}

func (c *TestConn) pingLoop() {
	ticker := time.NewTicker(c.server.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p, _ := parser.NewPacket(parser.PacketTypePing, false, nil)
			if c.Send(p) != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *TestConn) handlePacket(p *parser.Packet) {
	cfg := &c.server.config
	switch p.Type {
	case parser.PacketTypePing:
		if c.Revision == parser.Revision3 && !cfg.NoHeartbeat {
			pong, _ := parser.NewPacket(parser.PacketTypePong, false, p.Data)
			c.Send(pong)
		}
	case parser.PacketTypeClose:
		c.Drop()
	case parser.PacketTypeMessage:
		if !p.IsBinary && cfg.AutoConnect && len(p.Data) > 0 && p.Data[0] == '0' {
			ns := connectNamespace(string(p.Data[1:]))
			c.acknowledgeConnect(ns)
			if cfg.OnConnect != nil {
				cfg.OnConnect(c, ns)
			}
		}
		if cfg.OnMessage != nil {
			cfg.OnMessage(c, p)
		}
	}
}

func connectNamespace(s string) string {
	if !strings.HasPrefix(s, "/") {
		return ""
	}
	if i := strings.IndexAny(s, "?,"); i >= 0 {
		s = s[:i]
	}
	if s == "/" {
		return ""
	}
	return s
}

func (c *TestConn) acknowledgeConnect(ns string) {
	prefix := "0"
	if ns != "" {
		prefix += ns + ","
	}
	if c.Revision == parser.Revision3 {
		c.SendMessage(prefix)
		return
	}
	c.SendMessage(prefix + `{"sid":"` + c.SID + `"}`)
}

func (c *TestConn) poll(w http.ResponseWriter, r *http.Request) {
	var packets []*parser.Packet

	select {
	case p := <-c.queue:
		packets = append(packets, p)
	case <-c.closed:
		http.Error(w, "closed", http.StatusBadRequest)
		return
	case <-r.Context().Done():
		return
	}

drain:
	for {
		select {
		case p := <-c.queue:
			packets = append(packets, p)
		default:
			break drain
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	w.Write(parser.EncodePayload(c.Revision, packets...))

	for _, p := range packets {
		if p.Type == parser.PacketTypeClose {
			c.Drop()
		}
	}
}

func (c *TestConn) receivePayload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	packets, err := parser.DecodePayload(c.Revision, body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))

	for _, p := range packets {
		c.handlePacket(p)
	}
}

// Send writes Engine.IO packets to the client.
func (c *TestConn) Send(packets ...*parser.Packet) error {
	select {
	case <-c.closed:
		return fmt.Errorf("test server: connection closed")
	default:
	}

	if c.ws == nil {
		for _, p := range packets {
			c.queue <- p
		}
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	for _, p := range packets {
		mt := websocket.MessageText
		if p.IsBinary {
			mt = websocket.MessageBinary
		}
		err := c.ws.Write(context.Background(), mt, p.Build(c.Revision, true))
		if err != nil {
			return err
		}
	}
	return nil
}

// SendMessage sends an Engine.IO message packet. data is the Socket.IO frame without the leading 4.
func (c *TestConn) SendMessage(data string) error {
	p, err := parser.NewPacket(parser.PacketTypeMessage, false, []byte(data))
	if err != nil {
		return err
	}
	return c.Send(p)
}

// SendBinary sends a binary attachment.
func (c *TestConn) SendBinary(data []byte) error {
	p, err := parser.NewPacket(parser.PacketTypeMessage, true, bytes.Clone(data))
	if err != nil {
		return err
	}
	return c.Send(p)
}

// Close sends an Engine.IO CLOSE packet and closes the connection.
func (c *TestConn) Close() {
	p, _ := parser.NewPacket(parser.PacketTypeClose, false, nil)
	c.Send(p)
	// A polling connection is dropped once the CLOSE packet is polled.
	if c.ws != nil {
		c.drop(websocket.StatusNormalClosure)
	}
}

// Drop closes the connection without a CLOSE packet and without a close handshake.
func (c *TestConn) Drop() { c.drop(-1) }

func (c *TestConn) drop(status websocket.StatusCode) {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.server.mu.Lock()
		delete(c.server.conns, c.SID)
		c.server.mu.Unlock()
		if c.ws == nil {
			return
		}
		if status < 0 {
			c.ws.CloseNow()
		} else {
			c.ws.Close(status, "")
		}
	})
}

// Closed is closed when the connection is gone.
func (c *TestConn) Closed() <-chan struct{} { return c.closed }
