// Package admin serves the HTTP control surface: health, Prometheus
// metrics, and session start/stop/inspect.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/textmode-dev/joint/pkg/joint"
	"github.com/textmode-dev/joint/pkg/textmode"
)

// maxBodySize bounds POST /sessions bodies.
const maxBodySize = 64 << 10

// Registry is the part of *joint.Registry the admin surface drives.
type Registry interface {
	Start(ctx context.Context, opts joint.StartOptions) (string, error)
	End(ctx context.Context, path string) error
	Lookup(path string) (*joint.Session, error)
	Sessions(ctx context.Context) []joint.SessionInfo
}

// Config configures the admin server.
type Config struct {
	// Address to listen on. Default: "127.0.0.1:8001".
	Address string

	// Gatherer serves /metrics. Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// ShutdownTimeout bounds graceful shutdown. Default: 5 seconds.
	ShutdownTimeout time.Duration

	// Logger receives access and error logs. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:         "127.0.0.1:8001",
		Gatherer:        prometheus.DefaultGatherer,
		ShutdownTimeout: 5 * time.Second,
		Logger:          slog.Default(),
	}
}

// Server is the admin HTTP server.
type Server struct {
	config   *Config
	registry Registry
	logger   *slog.Logger
	router   chi.Router
}

// New builds a Server. A nil config uses DefaultConfig.
func New(registry Registry, config *Config) *Server {
	def := DefaultConfig()
	if config == nil {
		config = def
	}
	c := *config
	if c.Address == "" {
		c.Address = def.Address
	}
	if c.Gatherer == nil {
		c.Gatherer = def.Gatherer
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.Logger == nil {
		c.Logger = def.Logger
	}

	s := &Server{
		config:   &c,
		registry: registry,
		logger:   c.Logger.With("component", "admin"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(c.Gatherer, promhttp.HandlerOpts{}))
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.startSession)
		r.Get("/{name}", s.getSession)
		r.Delete("/{name}", s.endSession)
	})
	s.router = r
	return s
}

// Handler returns the admin router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("admin listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "ok")
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	infos := s.registry.Sessions(r.Context())
	if infos == nil {
		infos = []joint.SessionInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}

// startRequest is the POST /sessions body.
type startRequest struct {
	Path  string `json:"path"`
	File  string `json:"file"`
	Pass  string `json:"pass"`
	Quiet bool   `json:"quiet"`
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req startRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.File == "" {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}

	path, err := s.registry.Start(r.Context(), joint.StartOptions{
		Path:  req.Path,
		File:  req.File,
		Pass:  req.Pass,
		Quiet: req.Quiet,
	})
	switch {
	case errors.Is(err, joint.ErrPathInUse):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, joint.ErrRegistryClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case errors.Is(err, textmode.ErrUnsupportedFormat):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		s.logger.Error("start failed", "file", req.File, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Lookup(chi.URLParam(r, "name"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	info, err := sess.Info(r.Context())
	if err != nil {
		// The session closed between Lookup and Info.
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.registry.Lookup(name); errors.Is(err, joint.ErrSessionNotFound) {
		http.NotFound(w, r)
		return
	}
	if err := s.registry.End(r.Context(), name); err != nil {
		// The session is unbound either way; report the failed final save.
		s.logger.Error("end failed", "path", name, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
