package joint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// Registry owns the running sessions and the listener they share.
type Registry struct {
	config   *RegistryConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   chi.Router

	mu       sync.RWMutex
	sessions map[string]*Session
	starting map[string]struct{}
	closed   bool

	// Listener (protected by listenMu)
	listenMu  sync.Mutex
	listener  net.Listener
	server    *http.Server
	serveDone chan struct{}

	// Callbacks (protected by mu)
	onSessionStart func(*Session)
	onSessionEnd   func(*Session)
}

// NewRegistry creates an empty registry. No listener is bound until the
// first Start.
func NewRegistry(config *RegistryConfig) *Registry {
	config = config.withDefaults()

	r := &Registry{
		config:   config,
		logger:   config.Logger.With("component", "registry"),
		sessions: make(map[string]*Session),
		starting: make(map[string]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
	}
	if r.upgrader.CheckOrigin == nil {
		r.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Handle("/*", http.HandlerFunc(r.ServeHTTP))
	r.router = router
	return r
}

// NormalizePath returns the registry key for a session name: lowercased
// with exactly one leading slash.
func NormalizePath(name string) string {
	return "/" + strings.ToLower(strings.TrimLeft(name, "/"))
}

// Start loads a document and serves it at its normalized path. It fails
// with a *PathConflictError if the path is already bound; the existing
// session is left untouched.
func (r *Registry) Start(ctx context.Context, opts StartOptions) (string, error) {
	name := opts.Path
	if name == "" {
		name = filepath.Base(opts.File)
	}
	path := NormalizePath(name)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrRegistryClosed
	}
	_, running := r.sessions[path]
	_, pending := r.starting[path]
	if running || pending {
		r.mu.Unlock()
		return "", &PathConflictError{Path: path}
	}
	r.starting[path] = struct{}{}
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		delete(r.starting, path)
		r.mu.Unlock()
	}

	if err := r.listen(); err != nil {
		release()
		return "", err
	}

	sess, err := newSession(ctx, path, opts, sessionDeps{
		config:    r.config.Session,
		codec:     r.config.Codec,
		snapshots: r.config.Snapshots,
		metrics:   r.config.Metrics,
		logger:    r.config.Logger,
	})
	if err != nil {
		release()
		return "", err
	}

	r.mu.Lock()
	delete(r.starting, path)
	if r.closed {
		r.mu.Unlock()
		sess.Close(context.Background())
		return "", ErrRegistryClosed
	}
	r.sessions[path] = sess
	onStart := r.onSessionStart
	r.mu.Unlock()

	r.config.Metrics.sessionStarted()
	r.logger.Info("session started", "path", path, "file", opts.File)
	if onStart != nil {
		onStart(sess)
	}
	return path, nil
}

// End closes the session bound to path and unbinds it. Unknown paths are a
// no-op.
func (r *Registry) End(ctx context.Context, path string) error {
	path = NormalizePath(path)

	r.mu.Lock()
	sess, ok := r.sessions[path]
	if ok {
		delete(r.sessions, path)
	}
	onEnd := r.onSessionEnd
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return r.finish(ctx, sess, onEnd)
}

func (r *Registry) finish(ctx context.Context, sess *Session, onEnd func(*Session)) error {
	err := sess.Close(ctx)
	r.config.Metrics.sessionEnded(sess.path)
	r.logger.Info("session ended", "path", sess.path)
	if onEnd != nil {
		onEnd(sess)
	}
	return err
}

// Has reports whether a session is bound to path.
func (r *Registry) Has(path string) bool {
	return r.Get(path) != nil
}

// Get returns the session bound to path, or nil.
func (r *Registry) Get(path string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[NormalizePath(path)]
}

// Lookup returns the session bound to path. It fails with
// ErrSessionNotFound when nothing is bound there.
func (r *Registry) Lookup(path string) (*Session, error) {
	path = NormalizePath(path)
	if sess := r.Get(path); sess != nil {
		return sess, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, path)
}

// Paths returns the bound paths in sorted order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	paths := make([]string, 0, len(r.sessions))
	for p := range r.sessions {
		paths = append(paths, p)
	}
	r.mu.RUnlock()
	sort.Strings(paths)
	return paths
}

// Sessions returns a summary of every running session, sorted by path.
func (r *Registry) Sessions(ctx context.Context) []SessionInfo {
	var infos []SessionInfo
	for _, path := range r.Paths() {
		sess := r.Get(path)
		if sess == nil {
			continue
		}
		info, err := sess.Info(ctx)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos
}

// Count returns the number of running sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SetOnSessionStart sets a callback invoked after a session starts.
func (r *Registry) SetOnSessionStart(fn func(*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSessionStart = fn
}

// SetOnSessionEnd sets a callback invoked after a session has closed.
func (r *Registry) SetOnSessionEnd(fn func(*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSessionEnd = fn
}

// CloseAll ends every session and releases the shared listener. Start
// fails with ErrRegistryClosed afterwards until Reopen is called.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.sessions = make(map[string]*Session)
	onEnd := r.onSessionEnd
	r.mu.Unlock()

	var errs []error
	for _, sess := range sessions {
		if err := r.finish(ctx, sess, onEnd); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.unlisten(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Reopen lets Start run again once CloseAll has returned. The next Start
// binds the listener anew.
func (r *Registry) Reopen() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = false
}

// Addr returns the address of the shared listener, or nil before the first
// Start.
func (r *Registry) Addr() net.Addr {
	r.listenMu.Lock()
	defer r.listenMu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Handler returns the connection router for mounting in another server.
func (r *Registry) Handler() http.Handler {
	return r.router
}

// listen binds the shared listener once.
func (r *Registry) listen() error {
	r.listenMu.Lock()
	defer r.listenMu.Unlock()

	if r.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", r.config.Address)
	if err != nil {
		return fmt.Errorf("joint: listen %s: %w", r.config.Address, err)
	}

	srv := &http.Server{
		Handler:           r.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan struct{})
	r.listener = ln
	r.server = srv
	r.serveDone = done

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("serve failed", "error", err)
		}
	}()
	r.logger.Info("listening", "addr", ln.Addr().String())
	return nil
}

func (r *Registry) unlisten(ctx context.Context) error {
	r.listenMu.Lock()
	defer r.listenMu.Unlock()

	if r.server == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.ShutdownTimeout)
		defer cancel()
	}
	err := r.server.Shutdown(ctx)
	<-r.serveDone
	r.listener = nil
	r.server = nil
	r.serveDone = nil
	return err
}

// ServeHTTP routes a websocket upgrade to the session bound to the request
// path. Requests for unbound paths get no response at all: the TCP
// connection is hijacked and closed.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	path, err := url.PathUnescape(req.URL.EscapedPath())
	if err != nil {
		path = req.URL.Path
	}
	sess := r.Get(strings.ToLower(path))
	if sess == nil || !websocket.IsWebSocketUpgrade(req) {
		r.logger.Debug("connection refused", "path", path, "remote", req.RemoteAddr)
		drop(w)
		return
	}

	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		r.logger.Warn("upgrade failed", "path", path, "error", err)
		return
	}
	sess.serve(newWSConn(ws, sess.config.WriteTimeout))
}

// drop closes the client connection without writing a response.
func drop(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	conn.Close()
}
