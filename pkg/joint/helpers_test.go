package joint

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/textmode-dev/joint/pkg/protocol"
	"github.com/textmode-dev/joint/pkg/snapshot"
	"github.com/textmode-dev/joint/pkg/textmode"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// memCodec keeps documents in memory.
type memCodec struct {
	mu       sync.Mutex
	docs     map[string]*textmode.Document
	writes   map[string]int
	writeErr error
}

func newMemCodec() *memCodec {
	return &memCodec{docs: map[string]*textmode.Document{}, writes: map[string]int{}}
}

func (c *memCodec) put(t *testing.T, file string, columns, rows int) {
	t.Helper()
	doc, err := textmode.New(columns, rows)
	if err != nil {
		t.Fatalf("textmode.New failed: %v", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[file] = doc
}

func (c *memCodec) Read(ctx context.Context, file string) (*textmode.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[file]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", file, fs.ErrNotExist)
	}
	return doc.Clone(), nil
}

func (c *memCodec) Write(ctx context.Context, doc *textmode.Document, file string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.docs[file] = doc.Clone()
	c.writes[file]++
	return nil
}

func (c *memCodec) writeCount(file string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes[file]
}

func (c *memCodec) stored(file string) *textmode.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.docs[file]
}

// received is one envelope as a client sees it.
type received struct {
	Type protocol.Action `json:"type"`
	Data json.RawMessage `json:"data"`
}

// fakeConn records what a session sends to it.
type fakeConn struct {
	id string

	mu     sync.Mutex
	msgs   []received
	closed bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(msg []byte) error {
	var r received
	if err := json.Unmarshal(msg, &r); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	c.msgs = append(c.msgs, r)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) received() []received {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]received, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func (c *fakeConn) types() []protocol.Action {
	var out []protocol.Action
	for _, r := range c.received() {
		out = append(out, r.Type)
	}
	return out
}

func (c *fakeConn) last(t *testing.T) received {
	t.Helper()
	msgs := c.received()
	if len(msgs) == 0 {
		t.Fatalf("%s received nothing", c.id)
	}
	return msgs[len(msgs)-1]
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = nil
}

func decodeData[T any](t *testing.T, r received) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(r.Data, &v); err != nil {
		t.Fatalf("decode %s data %s: %v", r.Type, r.Data, err)
	}
	return v
}

func envelope(t *testing.T, raw string) *protocol.Envelope {
	t.Helper()
	e, err := protocol.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode(%s) failed: %v", raw, err)
	}
	return e
}

type testSessionOptions struct {
	file      string
	pass      string
	config    *SessionConfig
	snapshots snapshot.Store
	metrics   *Metrics
}

func newTestSession(t *testing.T, codec *memCodec, opts testSessionOptions) *Session {
	t.Helper()
	if opts.file == "" {
		opts.file = "art.ans"
	}
	if _, ok := codec.docs[opts.file]; !ok && opts.snapshots == nil {
		codec.put(t, opts.file, 4, 2)
	}
	s, err := newSession(context.Background(), NormalizePath(opts.file), StartOptions{
		File: opts.file,
		Pass: opts.pass,
	}, sessionDeps{
		config:    opts.config.withDefaults(),
		codec:     codec,
		snapshots: opts.snapshots,
		metrics:   opts.metrics,
		logger:    testLogger(),
	})
	if err != nil {
		t.Fatalf("newSession failed: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

// join connects conn and sends CONNECTED with the given data.
func join(t *testing.T, s *Session, conn Conn, data string) {
	t.Helper()
	if err := s.Connect(conn); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	deliver(t, s, conn, fmt.Sprintf(`{"type":0,"data":%s}`, data))
}

func deliver(t *testing.T, s *Session, conn Conn, raw string) {
	t.Helper()
	if err := s.Deliver(conn, envelope(t, raw)); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
}

// flush waits until everything queued so far has been processed.
func flush(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.Info(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
}
