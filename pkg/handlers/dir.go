package handlers

import (
	"fmt"
	"html"
	"os"
	"path"
	"strings"

	"github.com/fixserve/fixserve/pkg/httperr"
	"github.com/fixserve/fixserve/pkg/request"
	"github.com/fixserve/fixserve/pkg/response"
)

// DirectoryHandler renders an HTML listing for a directory path. Trailing
// slashes are irrelevant: /subdir and /subdir/ produce the same listing.
type DirectoryHandler struct {
	Root string
}

func (h *DirectoryHandler) Handle(req *request.Request, resp *response.Response) error {
	fsPath, err := Resolve(h.Root, req.Path)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(fsPath)
	if err != nil {
		return httperr.NotFound("no such directory: %s", req.Path)
	}

	display := req.Path
	if !strings.HasSuffix(display, "/") {
		display += "/"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<!doctype html>\n<meta charset=utf-8>\n<title>Directory listing for %s</title>\n", html.EscapeString(display))
	fmt.Fprintf(&b, "<h1>Directory listing for %s</h1>\n<ul>\n", html.EscapeString(display))
	if display != "/" {
		fmt.Fprintf(&b, "  <li><a href=%q>..</a></li>\n", path.Dir(strings.TrimSuffix(display, "/"))+"/")
	}
	for _, entry := range entries {
		name := entry.Name()
		href := path.Join(display, name)
		label := name
		if entry.IsDir() {
			href += "/"
			label += "/"
			fmt.Fprintf(&b, "  <li><a href=%q>%s</a></li>\n", href, html.EscapeString(label))
			continue
		}
		size := int64(0)
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		fmt.Fprintf(&b, "  <li><a href=%q>%s</a> (%d bytes)</li>\n", href, html.EscapeString(label), size)
	}
	b.WriteString("</ul>\n")

	resp.SetHeader("Content-Type", "text/html")
	resp.SetBody([]byte(b.String()))
	return nil
}
