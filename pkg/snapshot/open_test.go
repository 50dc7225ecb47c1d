package snapshot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenLocalBackends(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, Config{}, testLogger())
	if err != nil || store != nil {
		t.Fatalf("Open(none) = (%v, %v), want (nil, nil)", store, err)
	}

	store, err = Open(ctx, Config{Backend: BackendMemory}, testLogger())
	if err != nil {
		t.Fatalf("Open(memory) failed: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("Open(memory) returned %T", store)
	}

	var cfg Config
	cfg.Backend = BackendBolt
	cfg.Bolt.Path = filepath.Join(t.TempDir(), "s.db")
	store, err = Open(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Open(bolt) failed: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*BoltStore); !ok {
		t.Fatalf("Open(bolt) returned %T", store)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Config{Backend: "etcd"}, testLogger())
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("error = %v, want ErrUnknownBackend", err)
	}
}

func withZeroBackOff(t *testing.T, retries uint64) {
	t.Helper()
	prev := newBackOff
	newBackOff = func(time.Duration) backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, retries)
	}
	t.Cleanup(func() { newBackOff = prev })
}

func TestConnectRetriesUntilReady(t *testing.T) {
	withZeroBackOff(t, 5)

	calls := 0
	err := connect(context.Background(), testLogger(), time.Second, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestConnectGivesUp(t *testing.T) {
	withZeroBackOff(t, 2)

	down := errors.New("connection refused")
	calls := 0
	err := connect(context.Background(), testLogger(), time.Second, func(context.Context) error {
		calls++
		return down
	})
	if !errors.Is(err, down) {
		t.Fatalf("error = %v, want %v", err, down)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}
