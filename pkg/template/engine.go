// Package template implements the token-substitution engine used by .sub.*
// resources and sidecar header values. Tokens are {{expression}} forms
// evaluated against a per-request context, optionally piped through named
// filters: {{query("pipe") | sub}}. Unrecognized tokens fail the request
// rather than passing through silently.
package template

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// maxDepth bounds re-substitution through the sub filter.
const maxDepth = 8

// tokenRegex matches {{expression}} patterns with optional whitespace.
var tokenRegex = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// Filter transforms a substituted value before it is spliced in.
type Filter func(value string, ctx *Context) (string, error)

// Engine processes substitution templates. Compiled token programs are
// cached; the engine is safe for concurrent use.
type Engine struct {
	programs sync.Map // expression source -> *vm.Program
	filters  map[string]Filter
}

// New creates an engine with the built-in filter set.
func New() *Engine {
	e := &Engine{filters: make(map[string]Filter)}
	e.filters["sub"] = func(v string, ctx *Context) (string, error) {
		// Re-applies substitution, so a query value can itself carry tokens.
		return e.process(v, ctx, ctx.depth+1)
	}
	e.filters["lower"] = func(v string, _ *Context) (string, error) {
		return strings.ToLower(v), nil
	}
	e.filters["upper"] = func(v string, _ *Context) (string, error) {
		return strings.ToUpper(v), nil
	}
	e.filters["base64"] = func(v string, _ *Context) (string, error) {
		return base64.StdEncoding.EncodeToString([]byte(v)), nil
	}
	return e
}

// RegisterFilter adds or replaces a named filter.
func (e *Engine) RegisterFilter(name string, f Filter) {
	e.filters[name] = f
}

// Process substitutes every {{...}} token in text. Any unknown token,
// evaluation failure or unknown filter fails the whole document.
func (e *Engine) Process(text string, ctx *Context) (string, error) {
	return e.process(text, ctx, 0)
}

func (e *Engine) process(text string, ctx *Context, depth int) (string, error) {
	if depth > maxDepth {
		return "", fmt.Errorf("substitution recurses deeper than %d levels", maxDepth)
	}

	matches := tokenRegex.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	sub := *ctx
	sub.depth = depth

	var out strings.Builder
	last := 0
	for _, m := range matches {
		out.WriteString(text[last:m[0]])
		value, err := e.evaluate(text[m[2]:m[3]], &sub)
		if err != nil {
			return "", err
		}
		out.WriteString(value)
		last = m[1]
	}
	out.WriteString(text[last:])
	return out.String(), nil
}

// evaluate resolves one token: an expression followed by an optional
// pipeline of named filters.
func (e *Engine) evaluate(token string, ctx *Context) (string, error) {
	segments := strings.Split(token, "|")

	value, err := e.eval(strings.TrimSpace(segments[0]), ctx)
	if err != nil {
		return "", err
	}

	for _, seg := range segments[1:] {
		name := strings.TrimSpace(seg)
		filter, ok := e.filters[name]
		if !ok {
			return "", fmt.Errorf("unknown substitution filter %q", name)
		}
		value, err = filter(value, ctx)
		if err != nil {
			return "", err
		}
	}
	return value, nil
}

func (e *Engine) eval(source string, ctx *Context) (string, error) {
	program, err := e.compile(source, ctx)
	if err != nil {
		return "", fmt.Errorf("unknown substitution token %q: %s", source, err)
	}
	result, err := expr.Run(program, ctx.env)
	if err != nil {
		return "", fmt.Errorf("substitution token %q: %s", source, err)
	}
	return stringify(result), nil
}

// compile caches per expression source. The env shape is identical across
// requests, so one compiled program serves them all.
func (e *Engine) compile(source string, ctx *Context) (*vm.Program, error) {
	if cached, ok := e.programs.Load(source); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(source, expr.Env(ctx.env))
	if err != nil {
		return nil, err
	}
	e.programs.Store(source, program)
	return program, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", v)
	}
}
