package polling

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/karagenc/socket.io-client-go/engine.io/parser"
	"github.com/karagenc/socket.io-client-go/engine.io/transport"
	"github.com/karagenc/socket.io-client-go/internal/sync"
	"github.com/tomruk/yeast"
)

type ClientTransport struct {
	sid      string
	revision parser.Revision
	url      *url.URL

	initialPackets []*parser.Packet

	requestHeader *transport.RequestHeader
	httpClient    *http.Client
	yeaster       *yeast.Yeaster

	callbacks *transport.Callbacks
	pollExit  chan struct{}
	once      sync.Once
}

func NewClientTransport(
	callbacks *transport.Callbacks,
	revision parser.Revision,
	url url.URL,
	requestHeader *transport.RequestHeader,
	httpClient *http.Client,
) *ClientTransport {
	return &ClientTransport{
		revision:      revision,
		url:           &url,
		requestHeader: requestHeader,
		httpClient:    httpClient,
		yeaster:       yeast.New(),
		callbacks:     callbacks,
		pollExit:      make(chan struct{}),
	}
}

func (t *ClientTransport) Name() string { return "polling" }

func (t *ClientTransport) Handshake(ctx context.Context) (*parser.Handshake, error) {
	packets, err := t.poll(ctx)
	if err != nil {
		return nil, err
	}
	if len(packets) < 1 {
		return nil, fmt.Errorf("polling: expected at least 1 packet")
	}

	hr, err := parser.ParseHandshake(packets[0])
	if err != nil {
		return nil, err
	}
	t.sid = hr.SID

	// If this is a http.Transport, set the timeout
	ht, ok := t.httpClient.Transport.(*http.Transport)
	if ok {
		// Maximum time to wait for a HTTP response.
		ht.ResponseHeaderTimeout = hr.GetPingInterval() + hr.GetPingTimeout()
		// Add a reasonable time so that even if the poll is held until the very end, we can still read the HTTP response.
		ht.ResponseHeaderTimeout += 10 * time.Second
	}

	// Save the rest. They will be handled later on.
	t.initialPackets = packets[1:]
	return hr, nil
}

func (t *ClientTransport) Run() {
	if len(t.initialPackets) > 0 {
		t.callbacks.OnPacket(t.initialPackets...)
		// Set to nil for garbage collection.
		t.initialPackets = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-t.pollExit
		cancel()
	}()

	for {
		select {
		case <-t.pollExit:
			return
		default:
			body, err := t.pollBody(ctx)
			if err != nil {
				t.close(err)
				return
			}
			packets := parser.ScanPayload(t.revision, body, func(err error) {
				t.callbacks.OnDecodeError(t.Name(), err)
			})
			if len(packets) > 0 {
				t.callbacks.OnPacket(packets...)
			}
		}
	}
}

func (t *ClientTransport) newRequest(ctx context.Context, method string, body io.Reader, contentLength int) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.url.String(), body)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "text/plain; charset=UTF-8")
		req.ContentLength = int64(contentLength)
	}

	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	h := t.requestHeader.Header()
	for k, v := range h {
		for _, s := range v {
			req.Header.Set(k, s)
		}
	}

	q := req.URL.Query()
	q.Set("transport", "polling")
	q.Set("EIO", t.revision.String())
	q.Set("t", t.yeaster.Yeast())

	if t.sid != "" {
		q.Set("sid", t.sid)
	}

	req.URL.RawQuery = q.Encode()
	return req, nil
}

func (t *ClientTransport) poll(ctx context.Context) ([]*parser.Packet, error) {
	body, err := t.pollBody(ctx)
	if err != nil {
		return nil, err
	}
	return parser.DecodePayload(t.revision, body)
}

func (t *ClientTransport) pollBody(ctx context.Context) ([]byte, error) {
	req, err := t.newRequest(ctx, "GET", nil, 0)
	if err != nil {
		return nil, err
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, transport.WrapError("poll", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, transport.WrapError("poll", fmt.Errorf("non-200 HTTP response received. response code: %d", resp.StatusCode))
	}

	r, err := compressedReader(resp)
	if err != nil {
		return nil, transport.WrapError("poll", err)
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, transport.WrapError("poll", err)
	}
	return body, nil
}

func (t *ClientTransport) Send(packets ...*parser.Packet) error {
	err := t.send(packets...)
	if err != nil {
		err = transport.WrapError("write", err)
		go t.close(err)
	}
	return err
}

func (t *ClientTransport) send(packets ...*parser.Packet) error {
	body := parser.EncodePayload(t.revision, packets...)

	req, err := t.newRequest(context.Background(), "POST", bytes.NewReader(body), len(body))
	if err != nil {
		return err
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("non-200 HTTP response received. response code: %d", resp.StatusCode)
	}

	r, err := compressedReader(resp)
	if err != nil {
		return err
	}
	defer r.Close()

	var respBody [2]byte
	_, err = io.ReadFull(r, respBody[:])
	if err != nil || respBody[0] != 'o' || respBody[1] != 'k' {
		return fmt.Errorf("invalid response received")
	}
	return nil
}

func (t *ClientTransport) close(err error) {
	t.once.Do(func() {
		defer t.callbacks.OnClose(t.Name(), err)
		close(t.pollExit)

		if err == nil {
			p, perr := parser.NewPacket(parser.PacketTypeClose, false, nil)
			if perr == nil {
				go t.send(p)
			}
		}
	})
}

func (t *ClientTransport) Close() {
	t.close(nil)
}
