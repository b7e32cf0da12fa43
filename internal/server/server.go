// Package server is the lansite serving layer: a gin engine that exposes the
// served root as static files to the LAN, plus a JWT-protected admin API and
// the embedded web console.
//
//	/api/*      admin API (login and health are public)
//	/ui/*       embedded console
//	everything  static files under the root, GET/HEAD only
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vesaa/lansite/internal/content"
	"github.com/vesaa/lansite/internal/history"
	"github.com/vesaa/lansite/internal/netaddr"
	"github.com/vesaa/lansite/internal/registry"
	"github.com/vesaa/lansite/internal/share"
)

// State is the serving layer's lifecycle position.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateServing
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateServing:
		return "serving"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// ErrRunning is returned by Start when the server is not stopped.
var ErrRunning = errors.New("server already running")

// BindError reports that the listener could not be opened. It is not retried.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string { return fmt.Sprintf("bind %s: %v", e.Addr, e.Err) }
func (e *BindError) Unwrap() error { return e.Err }

// Deps are the collaborators the server drives. History may be nil.
type Deps struct {
	Registry *registry.Registry
	History  *history.Store
	QR       *share.Encoder
	Preparer *content.Preparer
	Auth     *Auth
	Logger   *slog.Logger
	// QRSize is the default PNG edge length for /api/sites/:name/qr.
	QRSize int
	// Minify forces minification of content created through the API.
	Minify bool
}

// Server owns the HTTP listener and its lifecycle.
type Server struct {
	reg    *registry.Registry
	hist   *history.Store
	qr     *share.Encoder
	prep   *content.Preparer
	auth   *Auth
	hub    *Hub
	logger *slog.Logger
	qrSize int
	minify bool

	root   string
	engine *gin.Engine

	state atomic.Int32

	mu         sync.Mutex
	httpServer *http.Server
	done       chan struct{}
	host       string
	port       int
}

// New builds the engine. The served root is the registry's root.
func New(d Deps) (*Server, error) {
	if d.Registry == nil || d.Auth == nil {
		return nil, errors.New("server: registry and auth are required")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	root, err := filepath.EvalSymlinks(d.Registry.Root())
	if err != nil {
		return nil, fmt.Errorf("resolve served root: %w", err)
	}
	prep := d.Preparer
	if prep == nil {
		prep = content.NewPreparer()
	}
	qrSize := d.QRSize
	if qrSize <= 0 {
		qrSize = 256
	}

	s := &Server{
		reg:    d.Registry,
		hist:   d.History,
		qr:     d.QR,
		prep:   prep,
		auth:   d.Auth,
		hub:    NewHub(logger),
		logger: logger,
		qrSize: qrSize,
		minify: d.Minify,
		root:   root,
	}
	s.reg.Subscribe(s.hub.Publish)
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	e := gin.New()
	// site names are free text and may contain encoded slashes
	e.UseRawPath = true
	e.UnescapePathValues = true
	e.Use(gin.Recovery(), RequestID(), RequestLogger(s.logger))

	s.registerAPIRoutes(e.Group("/api"))
	if err := registerConsole(e); err != nil {
		s.logger.Warn("web console unavailable", "error", err)
	}
	e.NoRoute(s.serveStatic)
	return e
}

// Handler exposes the engine, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.engine }

// State reports the current lifecycle state.
func (s *Server) State() State { return State(s.state.Load()) }

// Start binds host:port and serves in the background; each connection gets its
// own goroutine. A bind failure returns *BindError and leaves the server stopped.
// Port 0 picks a free port; Port reports the one chosen.
func (s *Server) Start(host string, port int) error {
	if !s.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrRunning
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.state.Store(int32(StateStopped))
		return &BindError{Addr: addr, Err: err}
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	done := make(chan struct{})
	s.hub.open()

	s.mu.Lock()
	s.httpServer = srv
	s.done = done
	s.host = netaddr.Advertise(host)
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve", "error", err)
		}
	}()

	s.state.Store(int32(StateServing))
	s.logger.Info("serving", "addr", ln.Addr().String(), "url", s.BaseURL())
	return nil
}

// Stop stops accepting connections, drains in-flight requests, closes websocket
// clients and waits for the accept loop to exit.
func (s *Server) Stop(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateServing), int32(StateStopping)) {
		return nil
	}
	defer s.state.Store(int32(StateStopped))

	s.mu.Lock()
	srv, done := s.httpServer, s.done
	s.mu.Unlock()

	s.hub.Close()
	err := srv.Shutdown(ctx)
	select {
	case <-done:
	case <-ctx.Done():
		_ = srv.Close()
		<-done
	}
	s.logger.Info("stopped")
	return err
}

// Port is the bound port, valid once Start has succeeded.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// BaseURL is the LAN address of the server root.
func (s *Server) BaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return netaddr.BaseURL(s.host, s.port)
}

// SiteURL is the LAN address of a site's page.
func (s *Server) SiteURL(link string) string {
	return s.BaseURL() + s.reg.SitePath(link)
}
