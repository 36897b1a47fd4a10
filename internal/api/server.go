package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/medminder/internal/history"
	"github.com/nerrad567/medminder/internal/infrastructure/config"
	"github.com/nerrad567/medminder/internal/infrastructure/logging"
	"github.com/nerrad567/medminder/internal/medication"
)

const gracefulShutdownTimeout = 10 * time.Second

// WebSocket defaults, in seconds and bytes.
const (
	defaultPingInterval   = 30
	defaultPongTimeout    = 10
	defaultMaxMessageSize = 8192
)

// DoseLister reads dose history. *history.SQLiteRepository satisfies it.
type DoseLister interface {
	ListDoses(ctx context.Context, f history.Filter) (*history.ListResult, error)
}

// HealthFunc probes one dependency for GET /health.
type HealthFunc func(ctx context.Context) error

// Deps holds the dependencies of the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Service  *medication.Service

	// History is optional; without it the history route returns 503.
	History DoseLister

	// Hub is shared with the medication managers, which publish to it.
	// New creates one when nil.
	Hub *Hub

	// Checks are reported by GET /health, keyed by component name.
	Checks map[string]HealthFunc

	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	service  *medication.Service
	history  DoseLister
	hub      *Hub
	checks   map[string]HealthFunc
	version  string
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New validates deps and builds a server. Call Start to listen.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("medication service is required")
	}
	if deps.WS.PingInterval <= 0 {
		deps.WS.PingInterval = defaultPingInterval
	}
	if deps.WS.PongTimeout <= 0 {
		deps.WS.PongTimeout = defaultPongTimeout
	}
	if deps.WS.MaxMessageSize <= 0 {
		deps.WS.MaxMessageSize = defaultMaxMessageSize
	}
	hub := deps.Hub
	if hub == nil {
		hub = NewHub(deps.WS, deps.Logger)
	}
	return &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		secCfg:  deps.Security,
		logger:  deps.Logger,
		service: deps.Service,
		history: deps.History,
		hub:     hub,
		checks:  deps.Checks,
		version: deps.Version,
	}, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in the background. Bind errors are
// returned; later serve errors are logged.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	if s.secCfg.JWT.Secret == "" {
		s.logger.Warn("security.jwt.secret is empty: API authentication disabled")
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding API listener: %w", err)
	}
	s.listener = ln
	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops the hub and waits up to 10 seconds for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
