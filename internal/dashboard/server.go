// Package dashboard serves the JSON status API, the WebSocket push feed and
// the static dashboard page.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/norelabs/dashsrv/internal/cache"
	"github.com/norelabs/dashsrv/internal/history"
	"github.com/norelabs/dashsrv/internal/status"
)

// DefaultPushInterval is how often WebSocket subscribers receive updates.
const DefaultPushInterval = 5 * time.Second

// DefaultWriteTimeout is the minimum time allowed to produce one response.
const DefaultWriteTimeout = 15 * time.Second

const contentSecurityPolicy = "default-src 'self'; img-src 'self' data:; style-src 'self' https://fonts.googleapis.com; font-src 'self' https://fonts.gstatic.com;"

// Logger is the interface for dashboard server logging
type Logger interface {
	Printf(format string, v ...interface{})
	Debugf(format string, v ...interface{})
}

// defaultLogger is the default logger that writes to stderr
type defaultLogger struct {
	logger *log.Logger
	debug  bool
}

func newDefaultLogger(debug bool) *defaultLogger {
	return &defaultLogger{
		logger: log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
		debug:  debug,
	}
}

func (l *defaultLogger) Printf(format string, v ...interface{}) {
	l.logger.Printf(format, v...)
}

func (l *defaultLogger) Debugf(format string, v ...interface{}) {
	if l.debug {
		l.logger.Printf("[DEBUG] "+format, v...)
	}
}

// StatusSource is the read side of status.Service.
type StatusSource interface {
	GameServers() []status.GameServer
	GameStatus(name string) (status.Cached[status.GameStatus], error)
	MediaServers() []status.MediaServer
	MediaStatus(name string) (status.Cached[status.MediaStatus], error)
	LocalStatus() status.Cached[status.NodeStatus]
	GetAggregateReport() status.Cached[status.AggregateReport]
	CacheSnapshot() []cache.Info
}

// HistorySource lists recorded game server samples.
type HistorySource interface {
	Recent(ctx context.Context, server string, limit int) ([]history.Sample, error)
}

// Config holds configuration for the dashboard server.
type Config struct {
	Host string
	Port int

	// Version is reported by /health
	Version string

	// StaticDir is served at / when set
	StaticDir string

	RateLimitRPS   float64
	RateLimitBurst int

	// PushInterval is the WebSocket update period
	PushInterval time.Duration

	// WriteTimeout bounds one response. It must cover a full status refresh;
	// values below DefaultWriteTimeout are raised to it.
	WriteTimeout time.Duration

	Debug bool
}

// Server is the dashboard HTTP server.
type Server struct {
	config  Config
	source  StatusSource
	history HistorySource
	limiter *RateLimiter
	logger  Logger
	hub     *hub

	handler    http.Handler
	httpServer *http.Server
	listener   net.Listener

	mu      sync.RWMutex
	running bool
}

// NewServer creates a dashboard server. hist may be nil when history is
// disabled; logger may be nil.
func NewServer(config Config, source StatusSource, hist HistorySource, logger Logger) *Server {
	if config.PushInterval <= 0 {
		config.PushInterval = DefaultPushInterval
	}
	if config.WriteTimeout < DefaultWriteTimeout {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if logger == nil {
		logger = newDefaultLogger(config.Debug)
	}

	s := &Server{
		config:  config,
		source:  source,
		history: hist,
		limiter: NewRateLimiter(config.RateLimitRPS, config.RateLimitBurst),
		logger:  logger,
	}
	s.hub = newHub(s, config.PushInterval)
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/mc", s.handleGame)
	mux.HandleFunc("GET /api/mc/history", s.handleGameHistory)
	mux.HandleFunc("GET /api/mc/{name}", s.handleGame)
	mux.HandleFunc("GET /api/jellyfin", s.handleMedia)
	mux.HandleFunc("GET /api/jellyfin/{name}", s.handleMedia)
	mux.HandleFunc("GET /api/local", s.handleLocal)
	mux.HandleFunc("GET /api/status", s.handleAggregate)
	mux.HandleFunc("GET /api/cache", s.handleCache)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.hub.handleWebSocket)
	mux.Handle("/", s.staticHandler())

	return s.requestID(s.limiter.Middleware(mux))
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// requestID tags each request with an X-Request-ID, keeping one supplied by
// the client.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		s.logger.Debugf("%s %s from %s (request %s)", r.Method, r.URL.Path, getClientIP(r), id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) staticHandler() http.Handler {
	if s.config.StaticDir == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSONError(w, ErrNotFound.Error(), http.StatusNotFound)
		})
	}
	files := http.FileServer(http.Dir(s.config.StaticDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
		files.ServeHTTP(w, r)
	})
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrServerAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	s.logger.Printf("starting dashboard on %s", addr)
	s.logger.Debugf("configuration: static_dir=%q, rate_limit=%.1f/%d, push_interval=%v, write_timeout=%v",
		s.config.StaticDir, s.config.RateLimitRPS, s.config.RateLimitBurst, s.config.PushInterval, s.config.WriteTimeout)

	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.logger.Printf("failed to start: %v", err)
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.logger.Printf("listening on %s", listener.Addr().String())

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully stops the server and disconnects WebSocket clients.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrServerNotRunning
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Printf("stopping dashboard...")

	s.limiter.Stop()
	s.hub.stop()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Printf("shutdown error: %v", err)
		return err
	}

	s.logger.Printf("dashboard stopped")
	return nil
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// with a five second grace period.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// IsRunning returns whether the server is currently running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
