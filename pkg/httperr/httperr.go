// Package httperr defines the error taxonomy of the serving core and renders
// failures as well-formed HTTP responses. Nothing in the core is allowed to
// crash the process: every failure path ends up in Write.
package httperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ohler55/ojg/oj"

	"github.com/fixserve/fixserve/pkg/response"
)

// Error is an HTTP-mappable failure. Handlers return it (directly or
// wrapped); the engine renders it with Write.
type Error struct {
	Code    int
	Message string

	// Headers are attached to the rendered error response, e.g. the
	// Content-Range line on a 416.
	Headers []response.Header
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Code, http.StatusText(e.Code), e.Message)
}

// New creates an Error with the given status code.
func New(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing route, file or script (404).
func NotFound(format string, args ...any) *Error {
	return New(http.StatusNotFound, format, args...)
}

// Internal reports a handler contract violation or any unexpected failure (500).
func Internal(format string, args ...any) *Error {
	return New(http.StatusInternalServerError, format, args...)
}

// RangeNotSatisfiable reports that no requested range overlaps the resource
// of the given length (416 with "Content-Range: bytes */L").
func RangeNotSatisfiable(length int64) *Error {
	e := New(http.StatusRequestedRangeNotSatisfiable, "no satisfiable byte range")
	e.Headers = []response.Header{{Name: "Content-Range", Value: fmt.Sprintf("bytes */%d", length)}}
	return e
}

// From maps an arbitrary error onto the taxonomy. Unknown errors are treated
// as handler contract violations.
func From(err error) *Error {
	var he *Error
	if errors.As(err, &he) {
		return he
	}
	return Internal("%s", err.Error())
}

// Write discards whatever the failed dispatch produced and renders err as a
// structured error response. The body carries the human-readable description
// under error.message.
func Write(resp *response.Response, err error) {
	he := From(err)

	resp.Reset()
	resp.SetStatus(he.Code)
	resp.SetHeader("Content-Type", "application/json")
	for _, h := range he.Headers {
		resp.AddHeader(h.Name, h.Value)
	}

	body := map[string]any{
		"error": map[string]any{
			"code":    he.Code,
			"message": he.Message,
		},
	}
	resp.SetBody([]byte(oj.JSON(body, &oj.Options{Sort: true})))
}
