// Package sandbox executes server-side script resources in isolation. Every
// invocation gets a fresh interpreter, so imports and globals introduced by
// one script are never observable from another, including after failures:
// the interpreter is discarded with the call. Scripts are plain Go source
// interpreted by yaegi; they import the exported "fixture" package for the
// request and response types.
package sandbox

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/fixserve/fixserve/pkg/httperr"
	"github.com/fixserve/fixserve/pkg/logging"
	"github.com/fixserve/fixserve/pkg/request"
	"github.com/fixserve/fixserve/pkg/response"
)

// Recognized entry point names. Main serves a whole HTTP/1.1 exchange;
// HandleHeaders and HandleData are the incremental HTTP/2 callbacks.
const (
	EntryMain    = "Main"
	EntryHeaders = "HandleHeaders"
	EntryData    = "HandleData"
)

// Runner loads and executes script resources.
type Runner struct {
	log *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{log: logging.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// exports is the symbol table scripts reach with `import "fixture"`.
func exports() interp.Exports {
	return interp.Exports{
		"fixture/fixture": {
			"Request":  reflect.ValueOf((*request.Request)(nil)),
			"Response": reflect.ValueOf((*response.Response)(nil)),
			"Header":   reflect.ValueOf((*response.Header)(nil)),
			"Status":   reflect.ValueOf((*response.Status)(nil)),
		},
	}
}

// Session is one loaded script instance. For HTTP/1.1 it lives for a single
// call; the HTTP/2 adapter keeps one per stream so handle_headers and
// handle_data observe the same script state, and closes it at stream end.
type Session struct {
	path  string
	funcs map[string]reflect.Value
}

// Open stats, loads and evaluates the script at path. The existence check
// runs before any load attempt, so a missing script is a 404 rather than a
// load failure.
func (r *Runner) Open(path string) (*Session, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, httperr.NotFound("script not found: %s", filepath.Base(path))
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, httperr.Internal("reading script %s: %s", filepath.Base(path), err)
	}

	// GoPath points at the script's directory, so a src/ tree next to the
	// script is importable. The whole interpreter is torn down with the
	// session, which keeps that availability transient.
	i := interp.New(interp.Options{GoPath: filepath.Dir(path)})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, httperr.Internal("script runtime: %s", err)
	}
	if err := i.Use(exports()); err != nil {
		return nil, httperr.Internal("script runtime: %s", err)
	}

	if err := safeEval(i, string(src)); err != nil {
		r.log.Warn("script failed to load", "script", path, "error", err)
		return nil, httperr.Internal("loading script %s: %s", filepath.Base(path), err)
	}

	sess := &Session{path: path, funcs: make(map[string]reflect.Value)}
	for _, name := range []string{EntryMain, EntryHeaders, EntryData} {
		if v, err := i.Eval(name); err == nil && v.Kind() == reflect.Func {
			sess.funcs[name] = v
		}
	}
	return sess, nil
}

// Invoke runs the script's main entry point for one HTTP/1.1 dispatch and
// returns its raw return value for normalization.
func (r *Runner) Invoke(path string, req *request.Request, resp *response.Response) (any, error) {
	sess, err := r.Open(path)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	if !sess.Has(EntryMain) {
		return nil, sess.ErrNoEntryPoint()
	}
	return sess.Call(EntryMain, req, resp)
}

// Has reports whether the script defines the named entry point.
func (s *Session) Has(name string) bool {
	_, ok := s.funcs[name]
	return ok
}

// ErrNoEntryPoint is the failure for a script with no recognized entry point.
func (s *Session) ErrNoEntryPoint() error {
	return httperr.Internal("No main function or handlers in script %s", filepath.Base(s.path))
}

// Call invokes an entry point. Panics inside the script surface as script
// execution errors, not process crashes.
func (s *Session) Call(name string, args ...any) (rv any, err error) {
	fn, ok := s.funcs[name]
	if !ok {
		return nil, s.ErrNoEntryPoint()
	}

	defer func() {
		if r := recover(); r != nil {
			err = httperr.Internal("script %s: %s raised: %v", filepath.Base(s.path), name, r)
		}
	}()

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		in[i] = reflect.ValueOf(arg)
	}
	out := fn.Call(in)
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

// Close releases the script instance. The interpreter holds no state outside
// itself, so dropping the session is the whole teardown.
func (s *Session) Close() {
	s.funcs = nil
}

func safeEval(i *interp.Interpreter, src string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	_, err = i.Eval(src)
	return err
}
