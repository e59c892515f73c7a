// Package request holds the immutable parsed form of an inbound request.
// Query parameters keep their order and may repeat; headers are multi-valued
// with case-insensitive lookup; the body is read fully at construction so
// handlers can inspect it without consuming a stream.
package request

import (
	"io"
	"net/http"
	"net/url"
	"strings"
)

// QueryParam is one decoded query pair. Order of appearance is preserved.
type QueryParam struct {
	Key   string
	Value string
}

// Request is an inbound request after parsing. Immutable for one dispatch.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Query    []QueryParam
	Header   http.Header
	Body     []byte
	Host     string
	Proto    int // major protocol version: 1 or 2
}

// New parses r into a Request, consuming the body.
func New(r *http.Request) (*Request, error) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
	}

	return &Request{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Query:    parseQuery(r.URL.RawQuery),
		Header:   r.Header.Clone(),
		Body:     body,
		Host:     r.Host,
		Proto:    r.ProtoMajor,
	}, nil
}

// NewStreaming parses r's header section only, leaving the body unconsumed.
// The HTTP/2 adapter feeds body frames to the handler incrementally instead.
func NewStreaming(r *http.Request) *Request {
	return &Request{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Query:    parseQuery(r.URL.RawQuery),
		Header:   r.Header.Clone(),
		Host:     r.Host,
		Proto:    r.ProtoMajor,
	}
}

// parseQuery decodes a raw query string preserving pair order and repeats.
// Pairs that fail to decode are dropped rather than failing the request.
func parseQuery(raw string) []QueryParam {
	if raw == "" {
		return nil
	}
	var out []QueryParam
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		k, err := url.QueryUnescape(key)
		if err != nil {
			continue
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			continue
		}
		out = append(out, QueryParam{Key: k, Value: v})
	}
	return out
}

// QueryValue returns the first value for key.
func (r *Request) QueryValue(key string) (string, bool) {
	for _, p := range r.Query {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// HeaderValue returns the first header value for name, case-insensitively.
func (r *Request) HeaderValue(name string) (string, bool) {
	vs := r.Header.Values(name)
	if len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// HeaderOr returns the first header value for name, or def when absent.
func (r *Request) HeaderOr(name, def string) string {
	if v, ok := r.HeaderValue(name); ok {
		return v
	}
	return def
}

// Hostname returns the request host without any port.
func (r *Request) Hostname() string {
	host := r.Host
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}
