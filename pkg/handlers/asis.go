package handlers

import (
	"os"

	"github.com/fixserve/fixserve/pkg/httperr"
	"github.com/fixserve/fixserve/pkg/request"
	"github.com/fixserve/fixserve/pkg/response"
)

// AsIsHandler copies a resource onto the wire verbatim. The resource itself
// contains the status line, headers and body; the handler only transports.
type AsIsHandler struct {
	Root string
}

func (h *AsIsHandler) Handle(req *request.Request, resp *response.Response) error {
	fsPath, err := Resolve(h.Root, req.Path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(fsPath)
	if err != nil {
		return httperr.NotFound("no such resource: %s", req.Path)
	}
	resp.SetRaw(data)
	return nil
}
