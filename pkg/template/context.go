package template

import (
	"sync"

	"github.com/google/uuid"

	"github.com/fixserve/fixserve/pkg/request"
)

// Context carries the per-request substitution environment. Values such as
// uuid() are memoized so two tokens in one request observe the same value.
type Context struct {
	env   map[string]any
	depth int
}

// NewContext builds the environment for one request. port is the actual
// serving port; domains maps alias names to hostnames.
func NewContext(req *request.Request, domains map[string]string, port int) *Context {
	var (
		uuidOnce sync.Once
		uuidVal  string
	)

	env := map[string]any{
		"host":    req.Hostname(),
		"port":    port,
		"domains": domains,
		"header": func(args ...string) string {
			if len(args) == 0 {
				return ""
			}
			def := ""
			if len(args) > 1 {
				def = args[1]
			}
			return req.HeaderOr(args[0], def)
		},
		"query": func(name string) string {
			v, _ := req.QueryValue(name)
			return v
		},
		"uuid": func() string {
			uuidOnce.Do(func() { uuidVal = uuid.NewString() })
			return uuidVal
		},
	}
	return &Context{env: env}
}
