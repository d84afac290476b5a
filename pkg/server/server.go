// Package server exposes the inference pipeline over HTTP and a WebSocket
// stream.
//
// Routes:
//
//	GET  /               liveness and model state
//	GET  /health         readiness
//	POST /predict        one clip (multipart field "file")
//	POST /batch-predict  many clips (multipart field "files", repeated)
//	GET  /classes        label table
//	GET  /model-info     model description
//	GET  /metrics        Prometheus exposition
//	GET  /stream         WebSocket, msgpack frames (see StreamRequest)
//
// Error bodies are {"detail": "..."}.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ecosight/ecosight/pkg/metrics"
	"github.com/ecosight/ecosight/pkg/pipeline"
)

// Config holds HTTP server settings.
type Config struct {
	Addr string `yaml:"addr" json:"addr"`

	// MaxUploadBytes bounds a request body.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" json:"max_upload_bytes"`

	// MaxBatchItems bounds the number of files in one batch request.
	MaxBatchItems int `yaml:"max_batch_items" json:"max_batch_items"`

	ReadTimeout     time.Duration `yaml:"-" json:"-"`
	WriteTimeout    time.Duration `yaml:"-" json:"-"`
	IdleTimeout     time.Duration `yaml:"-" json:"-"`
	ShutdownTimeout time.Duration `yaml:"-" json:"-"`

	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// ModelPath is reported by /model-info.
	ModelPath string `yaml:"-" json:"-"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8000",
		MaxUploadBytes:  32 << 20,
		MaxBatchItems:   32,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		CORSOrigins:     []string{"*"},
	}
}

// Server serves the pipeline.
type Server struct {
	cfg      Config
	pipeline *pipeline.Pipeline
	metrics  *metrics.Metrics
	logger   *slog.Logger
	version  string
	now      func() time.Time
	upgrader websocket.Upgrader
	handler  http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics enables request metrics and the /metrics route.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithVersion sets the version reported by /.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New creates a Server.
func New(cfg Config, p *pipeline.Pipeline, opts ...Option) *Server {
	def := DefaultConfig()
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.MaxBatchItems <= 0 {
		cfg.MaxBatchItems = def.MaxBatchItems
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	s := &Server{
		cfg:      cfg,
		pipeline: p,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	s.handle(mux, "GET /{$}", s.handleRoot)
	s.handle(mux, "GET /health", s.handleHealth)
	s.handle(mux, "POST /predict", s.handlePredict)
	s.handle(mux, "POST /batch-predict", s.handleBatch)
	s.handle(mux, "GET /classes", s.handleClasses)
	s.handle(mux, "GET /model-info", s.handleModelInfo)
	s.handle(mux, "GET /stream", s.handleStream)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return s.cors(mux)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
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

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
