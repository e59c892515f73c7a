package ranges

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixserve/fixserve/pkg/httperr"
	"github.com/fixserve/fixserve/pkg/response"
)

var content = []byte("abcdefghijklmnopqrstuvwxyz0123456789")

func TestSingleRange(t *testing.T) {
	resp := response.New()
	require.NoError(t, Apply("bytes=10-19", content, "text/plain", resp))

	assert.Equal(t, 206, resp.Status.Code)
	assert.Equal(t, content[10:20], resp.Body())

	cr, _ := resp.GetHeader("Content-Range")
	assert.Equal(t, fmt.Sprintf("bytes 10-19/%d", len(content)), cr)
	cl, _ := resp.GetHeader("Content-Length")
	assert.Equal(t, "10", cl)
}

func TestOpenEndedRange(t *testing.T) {
	resp := response.New()
	require.NoError(t, Apply("bytes=10-", content, "text/plain", resp))

	assert.Equal(t, content[10:], resp.Body())
	cr, _ := resp.GetHeader("Content-Range")
	assert.Equal(t, fmt.Sprintf("bytes 10-%d/%d", len(content)-1, len(content)), cr)
}

func TestSuffixRange(t *testing.T) {
	resp := response.New()
	require.NoError(t, Apply("bytes=-10", content, "text/plain", resp))

	assert.Equal(t, content[len(content)-10:], resp.Body())
	cr, _ := resp.GetHeader("Content-Range")
	assert.Equal(t, fmt.Sprintf("bytes %d-%d/%d", len(content)-10, len(content)-1, len(content)), cr)
}

func TestSuffixRangeLongerThanResource(t *testing.T) {
	resp := response.New()
	require.NoError(t, Apply(fmt.Sprintf("bytes=-%d", len(content)+5), content, "text/plain", resp))
	assert.Equal(t, content, resp.Body())
}

func TestMergeOverlappingAndAdjacent(t *testing.T) {
	merged := Merge([]Spec{{1, 2}, {5, 7}, {6, 10}})
	assert.Equal(t, []Spec{{1, 2}, {5, 10}}, merged)

	merged = Merge([]Spec{{5, 7}, {8, 10}, {1, 2}})
	assert.Equal(t, []Spec{{1, 2}, {5, 10}}, merged)
}

func TestMultipleRangesMultipart(t *testing.T) {
	resp := response.New()
	require.NoError(t, Apply("bytes=1-2,5-7,6-10", content, "text/plain", resp))
	assert.Equal(t, 206, resp.Status.Code)

	ct, _ := resp.GetHeader("Content-Type")
	require.True(t, strings.HasPrefix(ct, "multipart/byteranges; boundary="), ct)
	boundary := strings.TrimPrefix(ct, "multipart/byteranges; boundary=")

	body := resp.Body()
	require.True(t, bytes.HasPrefix(body, []byte("\r\n--"+boundary)), "body must open with the boundary")

	mr := multipart.NewReader(bytes.NewReader(body), boundary)

	expected := []struct {
		contentRange string
		data         []byte
	}{
		{fmt.Sprintf("bytes 1-2/%d", len(content)), content[1:3]},
		{fmt.Sprintf("bytes 5-10/%d", len(content)), content[5:11]},
	}
	for _, want := range expected {
		part, err := mr.NextPart()
		require.NoError(t, err)
		assert.Equal(t, "text/plain", part.Header.Get("Content-Type"))
		assert.Equal(t, want.contentRange, part.Header.Get("Content-Range"))
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		assert.Equal(t, want.data, data)
	}
	_, err := mr.NextPart()
	assert.Equal(t, io.EOF, err)
}

func TestUnsatisfiableRanges(t *testing.T) {
	for _, header := range []string{
		"bytes=11-10",
		fmt.Sprintf("bytes=%d-%d", len(content), len(content)+10),
	} {
		t.Run(header, func(t *testing.T) {
			resp := response.New()
			err := Apply(header, content, "text/plain", resp)
			require.Error(t, err)
			he := httperr.From(err)
			assert.Equal(t, 416, he.Code)
			require.Len(t, he.Headers, 1)
			assert.Equal(t, fmt.Sprintf("bytes */%d", len(content)), he.Headers[0].Value)
		})
	}
}

func TestPartiallySatisfiableSetProceeds(t *testing.T) {
	// One dead spec does not poison the set: the satisfiable subset serves.
	resp := response.New()
	require.NoError(t, Apply("bytes=5-7,100-200", content, "text/plain", resp))
	assert.Equal(t, 206, resp.Status.Code)
	assert.Equal(t, content[5:8], resp.Body())
}

func TestMalformedHeaderIgnored(t *testing.T) {
	for _, header := range []string{"", "bits=1-2", "bytes=abc", "bytes=-", "bytes="} {
		resp := response.New()
		require.NoError(t, Apply(header, content, "text/plain", resp))
		assert.Equal(t, 200, resp.Status.Code, "header %q must be ignored", header)
		assert.Equal(t, content, resp.Body(), "header %q must serve the full resource", header)
	}
}

func TestNoContentLengthHeaderRace(t *testing.T) {
	// The single-range path sets an explicit Content-Length matching the
	// slice, so serialization must not truncate or recompute.
	resp := response.New()
	require.NoError(t, Apply("bytes=0-4", content, "text/plain", resp))

	var buf bytes.Buffer
	require.NoError(t, resp.WriteHTTP1(&buf))
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\r\n\r\nabcde")), buf.String())
}
