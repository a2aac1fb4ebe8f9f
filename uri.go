package sio

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	eioparser "github.com/karagenc/socket.io-client-go/engine.io/parser"
)

// QueryParam is a query pair appended to the connection URL.
// Order is preserved.
type QueryParam struct {
	Key   string
	Value string
}

// ResolveURL builds the Engine.IO endpoint for base.
//
// http and ws map to ws (http when polling), https and wss map to wss
// (https when polling). The path defaults to DefaultPath.
func ResolveURL(base, transportName string, rev eioparser.Revision, path string, query []QueryParam) (*url.URL, error) {
	b, err := url.Parse(base)
	if err != nil {
		return nil, err
	}

	polling := transportName == "polling"
	u := new(url.URL)
	switch strings.ToLower(b.Scheme) {
	case "http", "ws":
		if polling {
			u.Scheme = "http"
		} else {
			u.Scheme = "ws"
		}
	case "https", "wss":
		if polling {
			u.Scheme = "https"
		} else {
			u.Scheme = "wss"
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, b.Scheme)
	}

	u.Host = b.Hostname()
	if strings.Contains(u.Host, ":") {
		u.Host = "[" + u.Host + "]"
	}
	if port := b.Port(); port != "" && !isDefaultPort(b.Scheme, port) {
		u.Host += ":" + port
	}

	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	u.Path = path

	var q strings.Builder
	q.WriteString("EIO=")
	q.WriteString(strconv.Itoa(int(rev)))
	q.WriteString("&transport=")
	if polling {
		q.WriteString("polling")
	} else {
		q.WriteString("websocket")
	}
	for _, p := range query {
		q.WriteByte('&')
		q.WriteString(url.QueryEscape(p.Key))
		q.WriteByte('=')
		q.WriteString(url.QueryEscape(p.Value))
	}
	u.RawQuery = q.String()
	return u, nil
}

func isDefaultPort(scheme, port string) bool {
	switch strings.ToLower(scheme) {
	case "http", "ws":
		return port == "80"
	case "https", "wss":
		return port == "443"
	}
	return false
}
