package httperr

import (
	"errors"
	"testing"

	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixserve/fixserve/pkg/response"
)

func TestFromPassesThroughTypedErrors(t *testing.T) {
	orig := NotFound("no such file: %s", "missing.txt")
	assert.Same(t, orig, From(orig))
}

func TestFromWrapsUnknownErrorsAsInternal(t *testing.T) {
	he := From(errors.New("boom"))
	assert.Equal(t, 500, he.Code)
	assert.Equal(t, "boom", he.Message)
}

func TestRangeNotSatisfiableCarriesContentRange(t *testing.T) {
	he := RangeNotSatisfiable(143)
	assert.Equal(t, 416, he.Code)
	require.Len(t, he.Headers, 1)
	assert.Equal(t, "Content-Range", he.Headers[0].Name)
	assert.Equal(t, "bytes */143", he.Headers[0].Value)
}

func TestWriteReplacesPartialResponse(t *testing.T) {
	resp := response.New()
	resp.SetHeader("X-Partial", "should vanish")
	resp.WriteString("partial body")

	Write(resp, Internal("No main function or handlers in script %s", "no_main.go"))

	assert.Equal(t, 500, resp.Status.Code)
	_, ok := resp.GetHeader("X-Partial")
	assert.False(t, ok)

	ct, _ := resp.GetHeader("Content-Type")
	assert.Equal(t, "application/json", ct)

	parsed, err := oj.ParseString(string(resp.Body()))
	require.NoError(t, err)
	body, ok := parsed.(map[string]any)
	require.True(t, ok)
	inner, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, inner["message"], "No main function or handlers in script ")
}

func TestWrite416Headers(t *testing.T) {
	resp := response.New()
	Write(resp, RangeNotSatisfiable(10))

	assert.Equal(t, 416, resp.Status.Code)
	cr, ok := resp.GetHeader("Content-Range")
	require.True(t, ok)
	assert.Equal(t, "bytes */10", cr)
}
