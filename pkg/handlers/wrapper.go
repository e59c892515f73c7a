package handlers

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/fixserve/fixserve/pkg/httperr"
	"github.com/fixserve/fixserve/pkg/request"
	"github.com/fixserve/fixserve/pkg/response"
	"github.com/fixserve/fixserve/pkg/router"
	"github.com/fixserve/fixserve/pkg/sidecar"
)

// WrapperMeta holds directives parsed from the leading `// META:` comment
// block of a base test resource.
type WrapperMeta struct {
	Globals []string
	Scripts []string
	Title   string
}

// WrapperSpec describes one wrapper document to synthesize.
type WrapperSpec struct {
	// Path is the requested wrapper path, e.g. /foo.any.worker.html.
	Path string
	// Name is Path with the wrapper suffix removed, e.g. /foo.
	Name string
	// Base is the underlying test resource, e.g. /foo.any.js.
	Base string
	Meta WrapperMeta
}

// parseMeta reads `// META: key=value` lines from the top of a base
// resource. Scanning stops at the first line that is neither blank nor a
// line comment.
func parseMeta(src []byte) WrapperMeta {
	var meta WrapperMeta
	for _, line := range bytes.Split(src, []byte("\n")) {
		trimmed := strings.TrimSpace(string(line))
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "//") {
			break
		}
		directive, found := strings.CutPrefix(trimmed, "// META:")
		if !found {
			continue
		}
		key, value, found := strings.Cut(strings.TrimSpace(directive), "=")
		if !found {
			continue
		}
		switch key {
		case "global":
			for _, g := range strings.Split(value, ",") {
				meta.Globals = append(meta.Globals, strings.TrimSpace(g))
			}
		case "script":
			meta.Scripts = append(meta.Scripts, value)
		case "title":
			meta.Title = value
		}
	}
	return meta
}

type wrapperKind struct {
	suffix      string
	contentType string
	base        func(name string) string
	render      func(s *WrapperSpec) string
}

// wrapperKinds is ordered longest-suffix-first so .any.worker.html is not
// mistaken for .worker.html.
var wrapperKinds = []wrapperKind{
	{
		suffix:      ".any.window-module.html",
		contentType: "text/html",
		base:        anyBase,
		render: func(s *WrapperSpec) string {
			return htmlWrapper(s, fmt.Sprintf("<script type=module src=%q></script>", s.Base))
		},
	},
	{
		suffix:      ".any.sharedworker.html",
		contentType: "text/html",
		base:        anyBase,
		render: func(s *WrapperSpec) string {
			return htmlWrapper(s, fmt.Sprintf("<script>\nfetch_tests_from_worker(new SharedWorker(%q));\n</script>", s.Name+".any.worker.js"))
		},
	},
	{
		suffix:      ".any.serviceworker.html",
		contentType: "text/html",
		base:        anyBase,
		render: func(s *WrapperSpec) string {
			script := fmt.Sprintf(`<script>
(async function() {
  const scope = "does/not/exist";
  let reg = await navigator.serviceWorker.getRegistration(scope);
  if (reg) await reg.unregister();
  reg = await navigator.serviceWorker.register(%q, {scope});
  fetch_tests_from_worker(reg.installing);
})();
</script>`, s.Name+".any.worker.js")
			return htmlWrapper(s, script)
		},
	},
	{
		suffix:      ".any.worker.html",
		contentType: "text/html",
		base:        anyBase,
		render: func(s *WrapperSpec) string {
			return htmlWrapper(s, fmt.Sprintf("<script>\nfetch_tests_from_worker(new Worker(%q));\n</script>", s.Name+".any.worker.js"))
		},
	},
	{
		suffix:      ".any.worker.js",
		contentType: "text/javascript",
		base:        anyBase,
		render: func(s *WrapperSpec) string {
			var b strings.Builder
			b.WriteString("self.GLOBAL = { isWindow: function() { return false; }, isWorker: function() { return true; } };\n")
			b.WriteString("importScripts(\"/resources/testharness.js\");\n")
			for _, extra := range s.Meta.Scripts {
				fmt.Fprintf(&b, "importScripts(%q);\n", extra)
			}
			fmt.Fprintf(&b, "importScripts(%q);\n", s.Base)
			b.WriteString("done();\n")
			return b.String()
		},
	},
	{
		suffix:      ".any.html",
		contentType: "text/html",
		base:        anyBase,
		render: func(s *WrapperSpec) string {
			inner := "<script>\nself.GLOBAL = { isWindow: function() { return true; }, isWorker: function() { return false; } };\n</script>\n" +
				fmt.Sprintf("<script src=%q></script>", s.Base)
			return htmlWrapper(s, inner)
		},
	},
	{
		suffix:      ".worker.html",
		contentType: "text/html",
		base:        func(name string) string { return name + ".worker.js" },
		render: func(s *WrapperSpec) string {
			return htmlWrapper(s, fmt.Sprintf("<script>\nfetch_tests_from_worker(new Worker(%q));\n</script>", s.Base))
		},
	},
	{
		suffix:      ".window.html",
		contentType: "text/html",
		base:        func(name string) string { return name + ".window.js" },
		render: func(s *WrapperSpec) string {
			return htmlWrapper(s, fmt.Sprintf("<script src=%q></script>", s.Base))
		},
	},
}

func anyBase(name string) string {
	return name + ".any.js"
}

func htmlWrapper(s *WrapperSpec, inner string) string {
	title := s.Meta.Title
	if title == "" {
		title = strings.TrimPrefix(s.Name, "/")
	}
	var b strings.Builder
	b.WriteString("<!doctype html>\n<meta charset=utf-8>\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", title)
	b.WriteString("<script src=\"/resources/testharness.js\"></script>\n")
	b.WriteString("<script src=\"/resources/testharnessreport.js\"></script>\n")
	for _, extra := range s.Meta.Scripts {
		fmt.Fprintf(&b, "<script src=%q></script>\n", extra)
	}
	b.WriteString("<div id=log></div>\n")
	b.WriteString(inner)
	b.WriteString("\n")
	return b.String()
}

// WrapperHandler synthesizes a wrapper document for one naming convention.
type WrapperHandler struct {
	Root string
	kind wrapperKind
}

// MatchWrapper returns the wrapper handler for urlPath when its name matches
// a wrapper convention.
func MatchWrapper(root, urlPath string) (router.Handler, bool) {
	for _, kind := range wrapperKinds {
		if strings.HasSuffix(urlPath, kind.suffix) {
			return &WrapperHandler{Root: root, kind: kind}, true
		}
	}
	return nil, false
}

func (h *WrapperHandler) Handle(req *request.Request, resp *response.Response) error {
	spec := &WrapperSpec{
		Path: req.Path,
		Name: strings.TrimSuffix(req.Path, h.kind.suffix),
	}
	spec.Base = h.kind.base(spec.Name)

	basePath, err := Resolve(h.Root, spec.Base)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(basePath)
	if err != nil {
		return httperr.NotFound("no base resource for wrapper %s", req.Path)
	}
	spec.Meta = parseMeta(src)

	// Directory-level sidecars first, then the base resource's own.
	for _, hd := range sidecar.Collect(h.Root, spec.Base) {
		resp.AddHeader(hd.Name, hd.Value)
	}
	resp.SetHeader("Content-Type", h.kind.contentType)

	resp.SetBody([]byte(h.kind.render(spec)))
	return nil
}
