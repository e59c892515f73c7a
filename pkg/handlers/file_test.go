package handlers

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rogpeppe/go-internal/txtar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixserve/fixserve/pkg/httperr"
	"github.com/fixserve/fixserve/pkg/request"
	"github.com/fixserve/fixserve/pkg/response"
	"github.com/fixserve/fixserve/pkg/template"
)

// extract lays out a txtar archive as a fixture tree.
func extract(t *testing.T, archive string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range txtar.Parse([]byte(archive)).Files {
		path := filepath.Join(root, filepath.FromSlash(f.Name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, f.Data, 0o644))
	}
	return root
}

func newFileHandler(root string) *FileHandler {
	tmpl := template.New()
	return &FileHandler{
		Root: root,
		Tmpl: tmpl,
		Ctx: func(req *request.Request) *template.Context {
			return template.NewContext(req, map[string]string{"": "localhost"}, 8123)
		},
	}
}

func serveFile(t *testing.T, root, target string, header map[string]string) (*response.Response, error) {
	t.Helper()
	r := httptest.NewRequest("GET", target, nil)
	r.Host = "localhost:8123"
	for k, v := range header {
		r.Header.Set(k, v)
	}
	req, err := request.New(r)
	require.NoError(t, err)
	resp := response.New()
	return resp, newFileHandler(root).Handle(req, resp)
}

func TestServeFile(t *testing.T) {
	root := extract(t, `
-- document.txt --
This is a test document.
With two lines.
`)
	resp, err := serveFile(t, root, "/document.txt", nil)
	require.NoError(t, err)

	assert.Equal(t, 200, resp.Status.Code)
	ct, _ := resp.GetHeader("Content-Type")
	assert.Equal(t, "text/plain", ct)
	assert.Equal(t, "This is a test document.\nWith two lines.\n", string(resp.Body()))
}

func TestMissingFileIs404(t *testing.T) {
	_, err := serveFile(t, t.TempDir(), "/missing.txt", nil)
	require.Error(t, err)
	assert.Equal(t, 404, httperr.From(err).Code)
}

func TestTraversalRejected(t *testing.T) {
	root := extract(t, "-- inner/doc.txt --\nok\n")
	_, err := serveFile(t, root, "/../../etc/passwd", nil)
	require.Error(t, err)
	assert.Equal(t, 404, httperr.From(err).Code)
}

func TestSidecarHeaders(t *testing.T) {
	root := extract(t, `
-- with_headers.txt --
PASS
-- with_headers.txt.headers --
Content-Type: text/html
Custom-Header: PASS
Another-Header: {{uuid()}}
Same-Value-Header: {{uuid()}}
Double-Header: PA
Double-Header: SS
`)
	resp, err := serveFile(t, root, "/with_headers.txt", nil)
	require.NoError(t, err)

	ct, _ := resp.GetHeader("Content-Type")
	assert.Equal(t, "text/html", ct)

	custom, _ := resp.GetHeader("Custom-Header")
	assert.Equal(t, "PASS", custom)

	// The templated uuid is generated once per request and reused.
	another, _ := resp.GetHeader("Another-Header")
	_, err = uuid.Parse(another)
	require.NoError(t, err)
	same, _ := resp.GetHeader("Same-Value-Header")
	assert.Equal(t, another, same)

	var doubles []string
	for _, h := range resp.Headers() {
		if strings.EqualFold(h.Name, "Double-Header") {
			doubles = append(doubles, h.Value)
		}
	}
	assert.Equal(t, []string{"PA", "SS"}, doubles)
}

func TestDirectoryHeadersApplyBeneath(t *testing.T) {
	root := extract(t, `
-- __dir__.headers --
X-Bar: 2
-- sub/doc.txt --
content
-- sub/doc.txt.headers --
X-Foo: 1
`)
	resp, err := serveFile(t, root, "/sub/doc.txt", nil)
	require.NoError(t, err)

	bar, ok := resp.GetHeader("X-Bar")
	require.True(t, ok)
	assert.Equal(t, "2", bar)
	foo, _ := resp.GetHeader("X-Foo")
	assert.Equal(t, "1", foo)
}

func TestRangeDelegation(t *testing.T) {
	root := extract(t, "-- document.txt --\n0123456789abcdefghij\n")

	resp, err := serveFile(t, root, "/document.txt", map[string]string{"Range": "bytes=10-19"})
	require.NoError(t, err)
	assert.Equal(t, 206, resp.Status.Code)
	assert.Equal(t, "abcdefghij", string(resp.Body()))
	cr, _ := resp.GetHeader("Content-Range")
	assert.Equal(t, "bytes 10-19/21", cr)
}

func TestRangeUnsatisfiable(t *testing.T) {
	root := extract(t, "-- document.txt --\nshort\n")
	_, err := serveFile(t, root, "/document.txt", map[string]string{"Range": "bytes=11-10"})
	require.Error(t, err)
	assert.Equal(t, 416, httperr.From(err).Code)
}

func TestSubstitution(t *testing.T) {
	root := extract(t, `
-- sub.sub.txt --
{{host}} {{domains[""]}} {{port}}
`)
	resp, err := serveFile(t, root, "/sub.sub.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "localhost localhost 8123", strings.TrimSpace(string(resp.Body())))
}

func TestSubstitutionHeaders(t *testing.T) {
	root := extract(t, `
-- sub_headers.sub.txt --
{{header("X-Test", "FAIL")}}
`)
	resp, err := serveFile(t, root, "/sub_headers.sub.txt", map[string]string{"X-Test": "PASS"})
	require.NoError(t, err)
	assert.Equal(t, "PASS", strings.TrimSpace(string(resp.Body())))
}

func TestSubstitutionQueryPipeline(t *testing.T) {
	root := extract(t, `
-- sub_params.sub.txt --
{{query("plus pct-20 pct-3D=") | sub}}
`)
	resp, err := serveFile(t, root, "/sub_params.sub.txt?plus+pct-20%20pct-3D%3D=PLUS+PCT-20%20PCT-3D%3D&pipe=sub", nil)
	require.NoError(t, err)
	assert.Equal(t, "PLUS PCT-20 PCT-3D=", strings.TrimSpace(string(resp.Body())))
}

func TestSubstitutionUnknownTokenFails(t *testing.T) {
	root := extract(t, "-- bad.sub.txt --\n{{no_such_token}}\n")
	_, err := serveFile(t, root, "/bad.sub.txt", nil)
	require.Error(t, err)
	assert.Equal(t, 500, httperr.From(err).Code)
}

func TestNonSubFileKeepsTokensVerbatim(t *testing.T) {
	root := extract(t, "-- plain.txt --\n{{host}}\n")
	resp, err := serveFile(t, root, "/plain.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "{{host}}", strings.TrimSpace(string(resp.Body())))
}
