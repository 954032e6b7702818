// Package web serves the Lead Synapse UI and JSON API.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/netutil"
	"tailscale.com/tsnet"

	"github.com/vinayprograms/leadsynapse/internal/config"
	"github.com/vinayprograms/leadsynapse/internal/events"
	"github.com/vinayprograms/leadsynapse/internal/leads"
	"github.com/vinayprograms/leadsynapse/internal/logging"
	"github.com/vinayprograms/leadsynapse/internal/runner"
	"github.com/vinayprograms/leadsynapse/internal/session"
)

// Title is the page title.
const Title = "Lead Synapse Mark III"

const shutdownTimeout = 10 * time.Second

//go:embed templates/*.html
var templateFS embed.FS

// Server is the web UI.
type Server struct {
	cfg      config.ServerConfig
	stateDir string
	runner   *runner.Runner
	bus      *events.Bus
	sessions *session.Manager
	keys     leads.KeyStatus
	engine   *gin.Engine
	logger   *logging.Logger

	mu   sync.Mutex
	addr net.Addr
}

// Option customizes a Server.
type Option func(*Server)

// WithSessions enables the run history list.
func WithSessions(m *session.Manager) Option {
	return func(s *Server) { s.sessions = m }
}

// WithKeys sets the API key status shown in the sidebar. Runs are refused
// while required keys are missing.
func WithKeys(k leads.KeyStatus) Option {
	return func(s *Server) { s.keys = k }
}

// WithStateDir sets where the tailnet node keeps its state.
func WithStateDir(dir string) Option {
	return func(s *Server) { s.stateDir = dir }
}

// New creates a server for runs started on r and progress published on bus.
func New(cfg config.ServerConfig, r *runner.Runner, bus *events.Bus, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		runner: r,
		bus:    bus,
		logger: logging.New().WithComponent("web"),
	}
	for _, opt := range opts {
		opt(s)
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())
	engine.SetHTMLTemplate(tmpl)
	s.engine = engine
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.engine.GET("/", s.handleIndex)
	s.engine.POST("/generate", s.handleGenerate)
	s.engine.GET("/runs/:id", s.handleRun)
	s.engine.GET("/runs/:id/events", s.handleEvents)
	s.engine.GET("/healthz", s.handleHealth)

	api := s.engine.Group("/api")
	api.GET("/runs", s.handleAPIRuns)
	api.GET("/runs/:id", s.handleAPIRun)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/healthz" {
			return
		}
		s.logger.Debug("request", map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}

// Addr returns the bound address once serving.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// listen opens a tailnet listener when a hostname is configured, otherwise
// a TCP listener capped at MaxConnections.
func (s *Server) listen() (net.Listener, io.Closer, error) {
	if s.cfg.Tailscale != "" {
		ts := &tsnet.Server{
			Hostname: s.cfg.Tailscale,
			Dir:      filepath.Join(s.stateDir, "tsnet"),
			Logf: func(format string, args ...any) {
				s.logger.Debug(fmt.Sprintf(format, args...))
			},
		}
		ln, err := ts.Listen("tcp", tailnetAddr(s.cfg.Addr))
		if err != nil {
			ts.Close()
			return nil, nil, fmt.Errorf("tailnet listen: %w", err)
		}
		return ln, ts, nil
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}
	return ln, nil, nil
}

// tailnetAddr keeps only the port of addr; tailnet nodes listen on their
// own address.
func tailnetAddr(addr string) string {
	if _, port, err := net.SplitHostPort(addr); err == nil && port != "" {
		return ":" + port
	}
	return ":80"
}

// Serve listens and serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, closer, err := s.listen()
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  config.Duration(s.cfg.ReadTimeout),
		WriteTimeout: config.Duration(s.cfg.WriteTimeout),
		IdleTimeout:  config.Duration(s.cfg.IdleTimeout),
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	s.logger.Info("listening", map[string]interface{}{"addr": ln.Addr().String()})

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
