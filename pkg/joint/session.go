package joint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/textmode-dev/joint/pkg/protocol"
	"github.com/textmode-dev/joint/pkg/snapshot"
	"github.com/textmode-dev/joint/pkg/textmode"
)

const tracerName = "github.com/textmode-dev/joint"

// Conn is one client connection as seen by a Session.
// Send and Close must be safe to call from any goroutine.
type Conn interface {
	// ID identifies the connection in logs.
	ID() string

	// Send writes one encoded envelope.
	Send(msg []byte) error

	// Close terminates the connection.
	Close() error
}

// StartOptions describes a session to start.
type StartOptions struct {
	// Path is the routable name. If empty, the base name of File is used.
	// It is lowercased and given a leading slash.
	Path string

	// File is the document file loaded at start and saved back to.
	File string

	// Pass is the shared secret identified participants must present.
	// Empty means no secret.
	Pass string

	// Quiet suppresses the session's log output.
	Quiet bool
}

// SessionInfo is a point-in-time summary of a session.
type SessionInfo struct {
	Path         string    `json:"path"`
	File         string    `json:"file"`
	Participants int       `json:"participants"`
	Connected    int       `json:"connected"`
	Chat         int       `json:"chat"`
	Columns      int       `json:"columns"`
	Rows         int       `json:"rows"`
	Protected    bool      `json:"protected"`
	StartedAt    time.Time `json:"started_at"`
	LastSave     time.Time `json:"last_save,omitempty"`
}

// Session is one collaboratively edited document and its participants.
//
// All state below the loop marker is owned by the session goroutine and
// must only be touched from closures it runs.
type Session struct {
	path   string
	file   string
	secret string

	config    *SessionConfig
	codec     textmode.Codec
	snapshots snapshot.Store
	metrics   *Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	startedAt time.Time

	inbox     chan func()
	done      chan struct{}
	loopDone  chan struct{}
	sendMu    sync.RWMutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	// loop-owned
	doc      *textmode.Document
	roster   roster
	chat     *chatHistory
	conns    map[Conn]struct{}
	lastSave time.Time
}

type sessionDeps struct {
	config    *SessionConfig
	codec     textmode.Codec
	snapshots snapshot.Store
	metrics   *Metrics
	logger    *slog.Logger
}

// newSession loads the document and starts the session loop.
func newSession(ctx context.Context, path string, opts StartOptions, deps sessionDeps) (*Session, error) {
	logger := deps.logger
	if opts.Quiet {
		logger = slog.New(discardHandler{})
	}
	logger = logger.With("component", "session", "path", path)

	s := &Session{
		path:      path,
		file:      opts.File,
		secret:    opts.Pass,
		config:    deps.config,
		codec:     deps.codec,
		snapshots: deps.snapshots,
		metrics:   deps.metrics,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		startedAt: time.Now(),
		inbox:     make(chan func(), deps.config.MaxEventQueue),
		done:      make(chan struct{}),
		loopDone:  make(chan struct{}),
		chat:      newChatHistory(deps.config.ChatHistorySize),
		conns:     make(map[Conn]struct{}),
	}

	doc, err := s.load(ctx)
	if err != nil {
		return nil, NewSessionError(path, "load", err)
	}
	s.doc = doc

	go s.loop()
	s.logger.Info("started", "file", s.file, "columns", doc.Columns, "rows", doc.Rows)
	return s, nil
}

// load reads the document file, falling back to the latest snapshot when
// the file does not exist.
func (s *Session) load(ctx context.Context) (*textmode.Document, error) {
	doc, err := s.codec.Read(ctx, s.file)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, fs.ErrNotExist) || s.snapshots == nil {
		return nil, err
	}
	restored, serr := snapshot.LoadDocument(ctx, s.snapshots, s.path)
	if serr != nil {
		return nil, fmt.Errorf("%w (snapshot: %v)", err, serr)
	}
	if restored == nil {
		return nil, err
	}
	s.logger.Warn("document file missing, restored from snapshot", "file", s.file)
	return restored, nil
}

// discardHandler drops every record.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }

// Path returns the normalized path the session is bound to.
func (s *Session) Path() string { return s.path }

// File returns the document file.
func (s *Session) File() string { return s.file }

// loop runs queued closures and periodic saves until Close.
func (s *Session) loop() {
	defer close(s.loopDone)

	ticker := time.NewTicker(s.config.PersistInterval)
	defer ticker.Stop()

	for {
		select {
		case fn := <-s.inbox:
			s.execute(fn)

		case <-ticker.C:
			s.execute(func() { s.save(context.Background(), "interval") })

		case <-s.done:
			s.drain()
			ticker.Stop()
			s.shutdown()
			return
		}
	}
}

// drain runs closures queued before Close.
func (s *Session) drain() {
	for {
		select {
		case fn := <-s.inbox:
			s.execute(fn)
		default:
			return
		}
	}
}

// execute runs fn with panic recovery.
func (s *Session) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("dispatch panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// dispatch queues fn for the session loop. It blocks while the inbox is
// full. Sends hold sendMu for reading so that Close, which takes it for
// writing, never closes done while a send is in flight; every accepted fn
// is therefore seen by drain.
func (s *Session) dispatch(fn func()) error {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed.Load() {
		return ErrSessionClosed
	}
	select {
	case s.inbox <- fn:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// query runs fn on the session loop and waits for its result.
func query[T any](ctx context.Context, s *Session, fn func() T) (T, error) {
	var zero T
	result := make(chan T, 1)
	if err := s.dispatch(func() { result <- fn() }); err != nil {
		return zero, err
	}
	select {
	case v := <-result:
		return v, nil
	case <-s.loopDone:
		// The loop drains before exiting, so a queued query may still have
		// produced a value.
		select {
		case v := <-result:
			return v, nil
		default:
			return zero, ErrSessionClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Connect registers conn with the session. Participants are only added
// once the connection sends CONNECTED.
func (s *Session) Connect(conn Conn) error {
	return s.dispatch(func() {
		s.conns[conn] = struct{}{}
		s.logger.Debug("connection opened", "conn", conn.ID())
	})
}

// Deliver queues an envelope received from conn.
func (s *Session) Deliver(conn Conn, e *protocol.Envelope) error {
	return s.dispatch(func() { s.handle(conn, e) })
}

// Disconnect queues the departure of conn. Its open participants are
// marked closed and announced with LEAVE.
func (s *Session) Disconnect(conn Conn) error {
	return s.dispatch(func() { s.disconnect(conn) })
}

// Save writes the document now.
func (s *Session) Save(ctx context.Context) error {
	err, qerr := query(ctx, s, func() error { return s.save(ctx, "request") })
	if qerr != nil {
		return qerr
	}
	return err
}

// Info returns a summary of the session.
func (s *Session) Info(ctx context.Context) (SessionInfo, error) {
	return query(ctx, s, s.info)
}

// Participants returns a copy of the roster, closed entries included.
func (s *Session) Participants(ctx context.Context) ([]Participant, error) {
	return query(ctx, s, s.roster.snapshot)
}

// ChatHistory returns a copy of the chat history, oldest first.
func (s *Session) ChatHistory(ctx context.Context) ([]protocol.ChatMessage, error) {
	return query(ctx, s, s.chat.list)
}

// Document returns a copy of the current document.
func (s *Session) Document(ctx context.Context) (*textmode.Document, error) {
	return query(ctx, s, func() *textmode.Document { return s.doc.Clone() })
}

// Close disconnects every participant, stops the save timer and saves one
// last time. It returns the error of that save. Close is idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.sendMu.Lock()
		s.closed.Store(true)
		close(s.done)
		s.sendMu.Unlock()
	})
	select {
	case <-s.loopDone:
		return s.closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the session has shut down.
func (s *Session) Done() <-chan struct{} { return s.loopDone }

func (s *Session) shutdown() {
	for _, p := range s.roster.entries {
		if p.Closed {
			continue
		}
		p.Closed = true
		if _, ok := s.conns[p.conn]; !ok {
			p.conn.Close()
		}
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = map[Conn]struct{}{}
	s.metrics.setParticipants(s.path, 0)

	if err := s.save(context.Background(), "close"); err != nil {
		s.closeErr = NewSessionError(s.path, "save", err)
	}
	s.logger.Info("closed")
}

func (s *Session) info() SessionInfo {
	return SessionInfo{
		Path:         s.path,
		File:         s.file,
		Participants: s.roster.openCount(),
		Connected:    len(s.conns),
		Chat:         s.chat.len(),
		Columns:      s.doc.Columns,
		Rows:         s.doc.Rows,
		Protected:    s.secret != "",
		StartedAt:    s.startedAt,
		LastSave:     s.lastSave,
	}
}

// save writes the document to its file and mirrors it to the snapshot
// store. Failures are logged and counted, never retried.
func (s *Session) save(ctx context.Context, reason string) error {
	ctx, span := s.tracer.Start(ctx, "joint.save", trace.WithAttributes(
		attribute.String("joint.path", s.path),
		attribute.String("joint.file", s.file),
		attribute.String("joint.save_reason", reason),
	))
	defer span.End()

	start := time.Now()
	if err := s.codec.Write(ctx, s.doc, s.file); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.save(saveFailed, time.Since(start))
		s.logger.Error("save failed", "file", s.file, "reason", reason, "error", err)
		return err
	}
	s.lastSave = time.Now()

	result := saveOK
	if s.snapshots != nil {
		if err := snapshot.SaveDocument(ctx, s.snapshots, s.path, s.doc, s.lastSave); err != nil {
			span.RecordError(err)
			result = saveSnapshotFail
			s.logger.Warn("snapshot failed", "error", err)
		}
	}

	span.SetStatus(codes.Ok, "")
	s.metrics.save(result, time.Since(start))
	s.logger.Info("saved", "file", s.file, "reason", reason)
	return nil
}

func (s *Session) disconnect(conn Conn) {
	delete(s.conns, conn)
	for _, p := range s.roster.open(conn) {
		p.Closed = true
		if p.IsWeb() {
			s.logger.Info("web left", "id", p.ID)
		} else {
			s.logger.Info("participant left", "id", p.ID, "nick", *p.Nick)
		}
		e, _ := protocol.New(protocol.Leave, protocol.LeavePayload{ID: p.ID})
		s.broadcast(conn, excludeSender, e)
	}
	s.metrics.setParticipants(s.path, s.roster.openCount())
}
