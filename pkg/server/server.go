package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/eventwire/pkg/dispatch"
)

// EngineFactory builds a dispatch engine over a private document. It is
// called once per session and once per one-shot request.
type EngineFactory func(ctx context.Context) (*dispatch.Engine, error)

// Server is the HTTP and WebSocket front end.
type Server struct {
	config   *Config
	factory  EngineFactory
	sessions *SessionManager
	upgrader websocket.Upgrader
	proxies  *proxyMatcher
	router   chi.Router
	extra    []func(http.Handler) http.Handler
	newID    func() string
	logger   *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	addr       net.Addr
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHTTPMiddleware adds HTTP middleware in front of every endpoint.
func WithHTTPMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(s *Server) {
		s.extra = append(s.extra, mw...)
	}
}

// WithSessionIDGenerator replaces the session ID generator.
func WithSessionIDGenerator(fn func() string) Option {
	return func(s *Server) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New creates a Server. config may be nil.
func New(factory EngineFactory, config *Config, opts ...Option) *Server {
	config = config.withDefaults()
	s := &Server{
		config:  config,
		factory: factory,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		newID:  uuid.NewString,
		logger: slog.Default().With("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions = NewSessionManager(config.MaxSessions, s.logger)
	s.proxies = newProxyMatcher(config.TrustedProxies, s.logger)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		s.requestLogger,
		chimw.Recoverer,
	)
	r.Use(s.extra...)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	r.Route("/api", func(r chi.Router) {
		r.Get("/routes", s.handleRoutes)
		r.Post("/events", s.handleEvents)
	})
	r.Get("/ws", s.HandleWebSocket)
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Config returns the effective configuration.
func (s *Server) Config() *Config {
	return s.config
}

// Addr returns the listening address once Serve has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// HandleWebSocket upgrades the connection and runs a session until the
// client disconnects.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.sessions.Full() {
		http.Error(w, "session limit reached", http.StatusServiceUnavailable)
		return
	}

	engine, err := s.factory(r.Context())
	if err != nil {
		s.logger.Error("session engine failed", "error", err)
		http.Error(w, "session could not be created", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sess := newSession(r.Context(), s.newID(), conn, engine, s.config.Session, s.logger)
	sess.IP = clientIP(r, s.proxies)
	sess.onClose = func(sess *Session) { s.sessions.Remove(sess.ID) }
	if err := s.sessions.Add(sess); err != nil {
		_ = sess.send(errorFrame("", err))
		sess.Close()
		return
	}

	if err := sess.send(ServerFrame{Type: FrameHello, Session: sess.ID}); err != nil {
		sess.Close()
		return
	}

	sess.Start()
	// The request context stays live while the read loop owns this
	// goroutine, so handlers see it as their context.
	sess.ReadLoop()
}

// Serve listens on the configured address and blocks until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Address, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done, then shuts down.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.router,
		BaseContext: func(net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.addr = ln.Addr()
	s.mu.Unlock()

	eg.Go(func() error {
		s.logger.Info("server starting", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Shutdown closes every session and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessions.Shutdown()

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}
	s.logger.Info("server shutdown complete")
	return nil
}

// requestLogger logs each request through slog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", chimw.GetReqID(r.Context()),
			"ip", clientIP(r, s.proxies))
	})
}
