package engine

import (
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/fixserve/fixserve/pkg/h2"
	"github.com/fixserve/fixserve/pkg/handlers"
	"github.com/fixserve/fixserve/pkg/httperr"
	"github.com/fixserve/fixserve/pkg/request"
	"github.com/fixserve/fixserve/pkg/response"
	"github.com/fixserve/fixserve/pkg/router"
	"github.com/fixserve/fixserve/pkg/template"
)

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	if r.ProtoMajor == 2 {
		s.serveH2(w, r)
		return
	}
	s.serveHTTP1(w, r)
}

func (s *Server) serveHTTP1(w http.ResponseWriter, r *http.Request) {
	req, err := request.New(r)
	if err != nil {
		s.log.Warn("unreadable request body", "path", r.URL.Path, "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	resp := response.New()
	if err := s.handle(req, resp); err != nil {
		s.log.Warn("request failed", "method", req.Method, "path", req.Path, "error", err)
		httperr.Write(resp, err)
	}
	s.log.Debug("dispatched", "method", req.Method, "path", req.Path, "status", resp.Status.Code)
	s.writeHijacked(w, resp)
}

// handle runs the matched handler. Panics surface as 500s; nothing crosses
// the dispatch boundary.
func (s *Server) handle(req *request.Request, resp *response.Response) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = httperr.Internal("handler panicked: %v", rec)
		}
	}()
	return s.lookup(req).Handle(req, resp)
}

// lookup resolves a handler: explicit registrations first, then filesystem
// conventions against the document root.
func (s *Server) lookup(req *request.Request) router.Handler {
	if h, ok := s.router.Match(req.Method, req.Path); ok {
		return h
	}
	return s.convention(req.Path)
}

func (s *Server) convention(urlPath string) router.Handler {
	root := s.cfg.DocRoot
	fsPath, err := handlers.Resolve(root, urlPath)
	if err != nil {
		return errHandler(err)
	}
	// Directories list the same way with or without a trailing slash.
	if fi, err := os.Stat(fsPath); err == nil && fi.IsDir() {
		return &handlers.DirectoryHandler{Root: root}
	}
	if h, ok := handlers.MatchWrapper(root, urlPath); ok {
		return h
	}
	switch {
	case strings.HasSuffix(urlPath, ".asis"):
		return &handlers.AsIsHandler{Root: root}
	case strings.HasSuffix(urlPath, s.cfg.ScriptExtension):
		return &handlers.ScriptHandler{Root: root, Runner: s.runner}
	default:
		return s.fileHandler()
	}
}

func (s *Server) fileHandler() *handlers.FileHandler {
	return &handlers.FileHandler{
		Root: s.cfg.DocRoot,
		Tmpl: s.tmpl,
		Ctx: func(req *request.Request) *template.Context {
			return template.NewContext(req, s.cfg.Domains, s.Port())
		},
	}
}

func errHandler(err error) router.Handler {
	return router.HandlerFunc(func(*request.Request, *response.Response) error {
		return err
	})
}

// writeHijacked takes over the connection and serializes the response
// directly, preserving reason phrases, header order and as-is bytes that
// net/http's writer would rewrite.
func (s *Server) writeHijacked(w http.ResponseWriter, resp *response.Response) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		writeStd(w, resp)
		return
	}
	conn, bufrw, err := hj.Hijack()
	if err != nil {
		writeStd(w, resp)
		return
	}
	defer conn.Close()

	if err := resp.WriteHTTP1(bufrw); err != nil {
		// Connection dropped mid-response; abandon the write.
		s.log.Debug("response write aborted", "error", err)
		return
	}
	_ = bufrw.Flush()
}

func writeStd(w http.ResponseWriter, resp *response.Response) {
	for _, h := range resp.Headers() {
		w.Header().Add(h.Name, h.Value)
	}
	w.WriteHeader(resp.Status.Code)
	_, _ = w.Write(resp.Body())
}

func (s *Server) serveH2(w http.ResponseWriter, r *http.Request) {
	req := request.NewStreaming(r)

	var stream *h2.Stream
	if matched, ok := s.router.Match(req.Method, req.Path); ok {
		stream = h2.NewHandlerStream(matched, h2.WithLogger(s.log))
	} else if strings.HasSuffix(req.Path, s.cfg.ScriptExtension) {
		if fsPath, err := handlers.Resolve(s.cfg.DocRoot, req.Path); err != nil {
			stream = h2.NewHandlerStream(errHandler(err), h2.WithLogger(s.log))
		} else {
			stream = h2.NewScriptStream(s.runner, fsPath, h2.WithLogger(s.log))
		}
	} else {
		stream = h2.NewHandlerStream(s.convention(req.Path), h2.WithLogger(s.log))
	}

	resp := s.runStream(stream, req, r.Body)
	writeStd(w, resp)
}

// runStream feeds header and body events to the stream and returns its
// terminal response. Stream failures render their own error response.
func (s *Server) runStream(stream *h2.Stream, req *request.Request, body io.Reader) (resp *response.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			resp = response.New()
			httperr.Write(resp, httperr.Internal("handler panicked: %v", rec))
		}
	}()

	chunk := nextChunk(body)
	if err := stream.OnHeaders(h2.HeadersEvent{Request: req, EndStream: chunk == nil}); err != nil {
		s.log.Warn("request failed", "method", req.Method, "path", req.Path, "error", err)
	}
	for chunk != nil && !stream.Done() {
		next := nextChunk(body)
		if err := stream.OnData(h2.DataEvent{Chunk: chunk, EndStream: next == nil}); err != nil {
			s.log.Warn("request failed", "method", req.Method, "path", req.Path, "error", err)
		}
		chunk = next
	}

	if !stream.Done() {
		resp = response.New()
		httperr.Write(resp, httperr.Internal("stream ended before completion"))
		return resp
	}
	return stream.Response()
}

// nextChunk reads one body chunk, returning nil at end of stream.
func nextChunk(r io.Reader) []byte {
	if r == nil {
		return nil
	}
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			return buf[:n]
		}
		if err != nil {
			return nil
		}
	}
}
