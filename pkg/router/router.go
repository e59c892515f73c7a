// Package router maps (method, path) pairs to handlers. Explicit exact
// registrations are checked first with last-registration-wins semantics;
// glob patterns follow, newest first. Registration may happen while requests
// are in flight, so the table is guarded by a single RWMutex.
package router

import (
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fixserve/fixserve/pkg/request"
	"github.com/fixserve/fixserve/pkg/response"
)

// AnyMethod registers a route for every HTTP method.
const AnyMethod = "*"

// Handler produces a response for one dispatched request. Returned errors
// are mapped through the httperr taxonomy by the engine.
type Handler interface {
	Handle(req *request.Request, resp *response.Response) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(req *request.Request, resp *response.Response) error

// Handle calls f.
func (f HandlerFunc) Handle(req *request.Request, resp *response.Response) error {
	return f(req, resp)
}

type patternRoute struct {
	method  string
	pattern string
	handler Handler
}

// Router is the registration table.
type Router struct {
	mu       sync.RWMutex
	exact    map[string]Handler
	patterns []patternRoute
}

// New returns an empty router.
func New() *Router {
	return &Router{exact: make(map[string]Handler)}
}

func key(method, path string) string {
	return strings.ToUpper(method) + "\x00" + path
}

// Register adds a route. A pattern containing glob metacharacters matches
// with doublestar semantics (*, **, ?, [...]); anything else is an exact
// path. Registering the same (method, exact path) again replaces the
// earlier handler.
func (r *Router) Register(method, pattern string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.ContainsAny(pattern, "*?[{") {
		r.patterns = append(r.patterns, patternRoute{
			method:  strings.ToUpper(method),
			pattern: strings.TrimPrefix(pattern, "/"),
			handler: h,
		})
		return
	}
	r.exact[key(method, pattern)] = h
}

// Match finds the handler for (method, path). Exact routes win over
// patterns; among patterns, later registrations win.
func (r *Router) Match(method, path string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.exact[key(method, path)]; ok {
		return h, true
	}
	if h, ok := r.exact[key(AnyMethod, path)]; ok {
		return h, true
	}

	trimmed := strings.TrimPrefix(path, "/")
	for i := len(r.patterns) - 1; i >= 0; i-- {
		p := r.patterns[i]
		if p.method != AnyMethod && p.method != strings.ToUpper(method) {
			continue
		}
		if ok, err := doublestar.Match(p.pattern, trimmed); err == nil && ok {
			return p.handler, true
		}
	}
	return nil, false
}
