package handlers

import (
	"github.com/fixserve/fixserve/pkg/request"
	"github.com/fixserve/fixserve/pkg/response"
	"github.com/fixserve/fixserve/pkg/sandbox"
)

// ScriptHandler routes a request to the script resource's main entry point
// and normalizes whatever it returns, exactly like a registered function
// handler.
type ScriptHandler struct {
	Root   string
	Runner *sandbox.Runner
}

func (h *ScriptHandler) Handle(req *request.Request, resp *response.Response) error {
	fsPath, err := Resolve(h.Root, req.Path)
	if err != nil {
		return err
	}
	rv, err := h.Runner.Invoke(fsPath, req, resp)
	if err != nil {
		return err
	}
	return normalize(rv, resp, false)
}
