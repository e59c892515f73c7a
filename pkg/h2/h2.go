// Package h2 bridges stream-oriented HTTP/2 exchanges onto the handler
// contract. Header and body frames arrive as events; a per-stream state
// machine feeds them to a script's handle_headers and handle_data entry
// points, or buffers the body and falls back to the ordinary dispatch when
// the resource is not an incremental script. The terminal response is only
// readable once the stream is complete.
package h2

import (
	"bytes"
	"log/slog"

	"github.com/fixserve/fixserve/pkg/handlers"
	"github.com/fixserve/fixserve/pkg/httperr"
	"github.com/fixserve/fixserve/pkg/logging"
	"github.com/fixserve/fixserve/pkg/request"
	"github.com/fixserve/fixserve/pkg/response"
	"github.com/fixserve/fixserve/pkg/router"
	"github.com/fixserve/fixserve/pkg/sandbox"
)

// State tracks stream progress.
type State int

const (
	AwaitingHeaders State = iota
	AwaitingBody
	Complete
)

func (s State) String() string {
	switch s {
	case AwaitingHeaders:
		return "awaiting-headers"
	case AwaitingBody:
		return "awaiting-body"
	case Complete:
		return "complete"
	}
	return "unknown"
}

// HeadersEvent carries the stream's header frame.
type HeadersEvent struct {
	Request   *request.Request
	EndStream bool
}

// DataEvent carries one body frame.
type DataEvent struct {
	Chunk     []byte
	EndStream bool
}

// Stream is the state for one HTTP/2 request/response exchange. Each stream
// owns its own script session; nothing survives into the next stream on the
// same connection.
type Stream struct {
	log    *slog.Logger
	runner *sandbox.Runner

	// Script streams resolve to a path; everything else goes through handler.
	scriptPath string
	handler    router.Handler

	state State
	sess  *sandbox.Session
	req   *request.Request
	resp  *response.Response
	body  bytes.Buffer

	// incremental is set when the session exposes handle_headers or
	// handle_data. Otherwise the body is buffered and main runs at the end.
	incremental bool
}

// Option configures a Stream.
type Option func(*Stream)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Stream) {
		if log != nil {
			s.log = log
		}
	}
}

// NewScriptStream builds a stream that drives the script at path.
func NewScriptStream(runner *sandbox.Runner, path string, opts ...Option) *Stream {
	s := &Stream{log: logging.Nop(), runner: runner, scriptPath: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHandlerStream builds a stream for a non-script resource. The body is
// buffered and h runs once at end of stream.
func NewHandlerStream(h router.Handler, opts ...Option) *Stream {
	s := &Stream{log: logging.Nop(), handler: h}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnHeaders consumes the stream's header frame. For incremental scripts it
// invokes handle_headers immediately.
func (s *Stream) OnHeaders(ev HeadersEvent) error {
	if s.state != AwaitingHeaders {
		return httperr.Internal("headers frame in state %s", s.state)
	}
	s.req = ev.Request
	s.resp = response.New()

	if s.scriptPath != "" {
		sess, err := s.runner.Open(s.scriptPath)
		if err != nil {
			return s.fail(err)
		}
		s.sess = sess

		s.incremental = sess.Has(sandbox.EntryHeaders) || sess.Has(sandbox.EntryData)
		if !s.incremental && !sess.Has(sandbox.EntryMain) {
			return s.fail(sess.ErrNoEntryPoint())
		}
		if sess.Has(sandbox.EntryHeaders) {
			if _, err := sess.Call(sandbox.EntryHeaders, s.req, s.resp); err != nil {
				return s.fail(err)
			}
		}
	}

	if ev.EndStream {
		return s.finish()
	}
	s.state = AwaitingBody
	return nil
}

// OnData consumes one body frame. Incremental scripts see each chunk through
// handle_data; buffered streams accumulate.
func (s *Stream) OnData(ev DataEvent) error {
	if s.state != AwaitingBody {
		return httperr.Internal("data frame in state %s", s.state)
	}

	if s.incremental {
		if s.sess.Has(sandbox.EntryData) {
			rv, err := s.sess.Call(sandbox.EntryData, ev.Chunk, s.req, s.resp)
			if err != nil {
				return s.fail(err)
			}
			// A chunk handler may return bytes to append to the body.
			switch out := rv.(type) {
			case string:
				s.resp.WriteString(out)
			case []byte:
				s.resp.Write(out)
			}
		}
	} else {
		s.body.Write(ev.Chunk)
	}

	if ev.EndStream {
		return s.finish()
	}
	return nil
}

// finish runs the terminal step and seals the stream.
func (s *Stream) finish() error {
	defer s.close()

	if !s.incremental {
		s.req.Body = s.body.Bytes()
		if s.sess != nil {
			rv, err := s.sess.Call(sandbox.EntryMain, s.req, s.resp)
			if err != nil {
				return s.fail(err)
			}
			if err := handlers.Normalize(rv, s.resp); err != nil {
				return s.fail(err)
			}
		} else if err := s.handler.Handle(s.req, s.resp); err != nil {
			return s.fail(err)
		}
	}

	s.state = Complete
	return nil
}

// fail seals the stream with err rendered as its terminal response.
func (s *Stream) fail(err error) error {
	s.log.Warn("stream failed", "path", s.req.Path, "error", err)
	httperr.Write(s.resp, err)
	s.state = Complete
	s.close()
	return err
}

// Response returns the terminal response. It is only valid once Done
// reports true.
func (s *Stream) Response() *response.Response {
	return s.resp
}

// Done reports whether the stream has produced its terminal response.
func (s *Stream) Done() bool {
	return s.state == Complete
}

func (s *Stream) close() {
	if s.sess != nil {
		s.sess.Close()
	}
}
