package router

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixserve/fixserve/pkg/request"
	"github.com/fixserve/fixserve/pkg/response"
)

func named(name string) Handler {
	return HandlerFunc(func(_ *request.Request, resp *response.Response) error {
		resp.SetHeader("X-Handler", name)
		return nil
	})
}

func handlerName(t *testing.T, h Handler) string {
	t.Helper()
	resp := response.New()
	require.NoError(t, h.Handle(nil, resp))
	v, _ := resp.GetHeader("X-Handler")
	return v
}

func TestExactMatch(t *testing.T) {
	r := New()
	r.Register("GET", "/test/path", named("a"))

	h, ok := r.Match("GET", "/test/path")
	require.True(t, ok)
	assert.Equal(t, "a", handlerName(t, h))

	_, ok = r.Match("POST", "/test/path")
	assert.False(t, ok)
	_, ok = r.Match("GET", "/other")
	assert.False(t, ok)
}

func TestLastRegistrationWins(t *testing.T) {
	r := New()
	r.Register("GET", "/test/path", named("first"))
	r.Register("GET", "/test/path", named("second"))

	h, ok := r.Match("GET", "/test/path")
	require.True(t, ok)
	assert.Equal(t, "second", handlerName(t, h))
}

func TestAnyMethod(t *testing.T) {
	r := New()
	r.Register(AnyMethod, "/any", named("any"))

	for _, method := range []string{"GET", "POST", "PUT"} {
		h, ok := r.Match(method, "/any")
		require.True(t, ok, method)
		assert.Equal(t, "any", handlerName(t, h))
	}
}

func TestExactBeatsPattern(t *testing.T) {
	r := New()
	r.Register("GET", "/files/*", named("glob"))
	r.Register("GET", "/files/special", named("exact"))

	h, ok := r.Match("GET", "/files/special")
	require.True(t, ok)
	assert.Equal(t, "exact", handlerName(t, h))

	h, ok = r.Match("GET", "/files/other")
	require.True(t, ok)
	assert.Equal(t, "glob", handlerName(t, h))
}

func TestDoublestarPattern(t *testing.T) {
	r := New()
	r.Register("GET", "/assets/**", named("deep"))

	h, ok := r.Match("GET", "/assets/css/site/main.css")
	require.True(t, ok)
	assert.Equal(t, "deep", handlerName(t, h))
}

func TestNewerPatternWins(t *testing.T) {
	r := New()
	r.Register("GET", "/v/*", named("old"))
	r.Register("GET", "/v/*", named("new"))

	h, ok := r.Match("GET", "/v/x")
	require.True(t, ok)
	assert.Equal(t, "new", handlerName(t, h))
}

func TestConcurrentRegisterAndMatch(t *testing.T) {
	r := New()
	r.Register("GET", "/stable", named("stable"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				r.Register("GET", "/churn", named("churn"))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, ok := r.Match("GET", "/stable")
				assert.True(t, ok)
			}
		}()
	}
	wg.Wait()
}
