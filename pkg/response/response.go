// Package response models the mutable per-request response: a status with an
// optional reason phrase, an ordered header list that preserves duplicates,
// and a buffered body writer. It also owns HTTP/1.1 wire serialization, since
// custom reason phrases, header order and as-is passthrough cannot be
// expressed through net/http's response writer.
package response

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Status is a response status code with an optional reason phrase.
// A zero Reason falls back to the standard text for the code.
type Status struct {
	Code   int
	Reason string
}

// Text returns the reason phrase, defaulting from the status code.
func (s Status) Text() string {
	if s.Reason != "" {
		return s.Reason
	}
	if t := http.StatusText(s.Code); t != "" {
		return t
	}
	return "Unknown"
}

// Header is a single response header line.
type Header struct {
	Name  string
	Value string
}

// Response is the mutable response under construction for one dispatch.
// It is created per request and discarded after serialization.
type Response struct {
	Status Status

	headers  []Header
	body     bytes.Buffer
	raw      []byte
	noLength bool
}

// New returns a Response with status 200 and no headers.
func New() *Response {
	return &Response{Status: Status{Code: http.StatusOK}}
}

// SetStatus sets the status code, keeping the default reason phrase.
func (r *Response) SetStatus(code int) {
	r.Status = Status{Code: code}
}

// SetStatusReason sets the status code with an explicit reason phrase.
func (r *Response) SetStatusReason(code int, reason string) {
	r.Status = Status{Code: code, Reason: reason}
}

// AddHeader appends a header line. Repeated names produce repeated lines.
func (r *Response) AddHeader(name, value string) {
	r.headers = append(r.headers, Header{Name: name, Value: value})
}

// SetHeader replaces every existing line for name with a single one.
func (r *Response) SetHeader(name, value string) {
	r.DelHeader(name)
	r.AddHeader(name, value)
}

// DelHeader removes every line for name. Matching is case-insensitive.
func (r *Response) DelHeader(name string) {
	kept := r.headers[:0]
	for _, h := range r.headers {
		if !strings.EqualFold(h.Name, name) {
			kept = append(kept, h)
		}
	}
	r.headers = kept
}

// GetHeader returns the first value for name, case-insensitively.
func (r *Response) GetHeader(name string) (string, bool) {
	for _, h := range r.headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Headers returns a copy of the header lines in emission order.
func (r *Response) Headers() []Header {
	out := make([]Header, len(r.headers))
	copy(out, r.headers)
	return out
}

// Write appends to the response body.
func (r *Response) Write(p []byte) (int, error) {
	return r.body.Write(p)
}

// WriteString appends a string to the response body.
func (r *Response) WriteString(s string) {
	r.body.WriteString(s)
}

// SetBody replaces the response body.
func (r *Response) SetBody(b []byte) {
	r.body.Reset()
	r.body.Write(b)
}

// Body returns the bytes written so far.
func (r *Response) Body() []byte {
	return r.body.Bytes()
}

// OmitContentLength suppresses the computed Content-Length header, so an
// explicitly empty response is distinguishable from a zero-length body.
func (r *Response) OmitContentLength() {
	r.noLength = true
}

// SetRaw switches the response to as-is mode: b already contains the full
// status line, headers and body, and is copied to the wire verbatim.
func (r *Response) SetRaw(b []byte) {
	r.raw = b
}

// Reset clears the response back to its initial state. Used when a failed
// dispatch is replaced by an error response.
func (r *Response) Reset() {
	r.Status = Status{Code: http.StatusOK}
	r.headers = nil
	r.body.Reset()
	r.raw = nil
	r.noLength = false
}

// WriteHTTP1 serializes the response as an HTTP/1.1 message.
//
// An explicit Content-Length header wins over the computed one and truncates
// a longer body, so handlers that declare a shorter length behave the same
// on a persistent connection as on a closing one.
func (r *Response) WriteHTTP1(w io.Writer) error {
	if r.raw != nil {
		_, err := w.Write(r.raw)
		return err
	}

	body := r.body.Bytes()
	headers := r.Headers()

	hasLength := false
	for _, h := range headers {
		if strings.EqualFold(h.Name, "Content-Length") {
			hasLength = true
			if n, err := strconv.Atoi(h.Value); err == nil && n >= 0 && n < len(body) {
				body = body[:n]
			}
		}
	}
	if !hasLength && !r.noLength {
		headers = append(headers, Header{Name: "Content-Length", Value: strconv.Itoa(len(body))})
	}
	if _, ok := r.GetHeader("Connection"); !ok {
		headers = append(headers, Header{Name: "Connection", Value: "close"})
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", r.Status.Code, r.Status.Text())
	for _, h := range headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h.Name, h.Value)
	}
	buf.WriteString("\r\n")
	buf.Write(body)

	_, err := w.Write(buf.Bytes())
	return err
}
