package handlers

import (
	"os"
	"path"
	"strings"

	"github.com/fixserve/fixserve/pkg/httperr"
	"github.com/fixserve/fixserve/pkg/ranges"
	"github.com/fixserve/fixserve/pkg/request"
	"github.com/fixserve/fixserve/pkg/response"
	"github.com/fixserve/fixserve/pkg/sidecar"
	"github.com/fixserve/fixserve/pkg/template"
)

// ContextFunc builds the substitution context for one request. The engine
// supplies it so handlers do not need to know the bound port or domain map.
type ContextFunc func(req *request.Request) *template.Context

// FileHandler serves on-disk resources: sidecar headers, byte ranges, and
// token substitution for .sub.* resources.
type FileHandler struct {
	Root string
	Tmpl *template.Engine
	Ctx  ContextFunc
}

func (h *FileHandler) Handle(req *request.Request, resp *response.Response) error {
	fsPath, err := Resolve(h.Root, req.Path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(fsPath)
	if err != nil {
		return httperr.NotFound("no such resource: %s", req.Path)
	}

	ctx := h.Ctx(req)

	// Sidecar values may carry substitution tokens; one context per request
	// keeps generated values (uuid) identical across headers.
	headers := sidecar.Merge(
		[]response.Header{{Name: "Content-Type", Value: contentTypeFor(req.Path)}},
		sidecar.Collect(h.Root, req.Path),
	)
	for _, hd := range headers {
		value, err := h.Tmpl.Process(hd.Value, ctx)
		if err != nil {
			return httperr.Internal("header %s of %s: %s", hd.Name, req.Path, err)
		}
		resp.AddHeader(hd.Name, value)
	}

	if strings.Contains(path.Base(req.Path), ".sub.") {
		substituted, err := h.Tmpl.Process(string(data), ctx)
		if err != nil {
			return httperr.Internal("substituting %s: %s", req.Path, err)
		}
		data = []byte(substituted)
	}

	contentType, _ := resp.GetHeader("Content-Type")
	if rangeHeader := req.HeaderOr("Range", ""); rangeHeader != "" {
		return ranges.Apply(rangeHeader, data, contentType, resp)
	}

	resp.SetBody(data)
	return nil
}
