// Package engine provides the fixture server engine: listener lifecycle and
// the dispatch pipeline from inbound request to serialized response.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/fixserve/fixserve/pkg/config"
	"github.com/fixserve/fixserve/pkg/logging"
	"github.com/fixserve/fixserve/pkg/router"
	"github.com/fixserve/fixserve/pkg/sandbox"
	"github.com/fixserve/fixserve/pkg/template"
)

// findFreePort finds a free port starting from the given port.
// It checks up to 100 ports from the starting port.
func findFreePort(startPort int) int {
	for port := startPort; port < startPort+100; port++ {
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			_ = listener.Close()
			return port
		}
	}
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return startPort
	}
	defer func() { _ = listener.Close() }()
	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return startPort
	}
	return tcpAddr.Port
}

// Server is the fixture server engine.
type Server struct {
	cfg    *config.Config
	log    *slog.Logger
	router *router.Router
	runner *sandbox.Runner
	tmpl   *template.Engine

	httpServer *http.Server
	listener   net.Listener
	mu         sync.RWMutex
	running    bool
	port       int
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithLogger sets the operational logger for the server.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithRouter supplies a pre-populated routing table.
func WithRouter(r *router.Router) ServerOption {
	return func(s *Server) {
		if r != nil {
			s.router = r
		}
	}
}

// NewServer creates a new Server with the given configuration.
// Optional ServerOption functions can be passed to customize the server.
func NewServer(cfg *config.Config, opts ...ServerOption) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.ApplyDefaults()

	s := &Server{
		cfg:    cfg,
		log:    logging.Nop(),
		router: router.New(),
		tmpl:   template.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runner = sandbox.New(sandbox.WithLogger(s.log))
	return s
}

// Register adds an explicit route. Registrations are safe at any time,
// including while requests are in flight; the latest registration for an
// identical (method, path) key wins.
func (s *Server) Register(method, pattern string, h router.Handler) {
	s.router.Register(method, pattern, h)
}

// Router exposes the routing table.
func (s *Server) Router() *router.Router {
	return s.router
}

// Port returns the bound port once the server has started.
func (s *Server) Port() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.port
}

// Start binds the listener and begins serving. Cleartext HTTP/2 is accepted
// alongside HTTP/1.x on the same port.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	port := s.cfg.Port
	if port == 0 {
		port = findFreePort(8000)
	}
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, port))
	if err != nil {
		return fmt.Errorf("binding %s:%d: %w", s.cfg.Host, port, err)
	}
	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	h2s := &http2.Server{}
	s.httpServer = &http.Server{
		Handler: h2c.NewHandler(http.HandlerFunc(s.dispatch), h2s),
	}
	if err := http2.ConfigureServer(s.httpServer, h2s); err != nil {
		_ = listener.Close()
		return fmt.Errorf("configuring http2: %w", err)
	}

	s.log.Info("starting fixture server", "host", s.cfg.Host, "port", s.port, "root", s.cfg.DocRoot)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("serve error", "error", err)
		}
	}()

	s.running = true
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.running = false
	return err
}
