package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/textmode-dev/joint/pkg/textmode"
)

// Store defines the interface for snapshot backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores data as the latest snapshot for name, replacing any
	// previous one.
	Save(ctx context.Context, name string, data []byte, savedAt time.Time) error

	// Load returns the latest snapshot for name.
	// Returns (nil, nil) if there is none.
	Load(ctx context.Context, name string) ([]byte, error)

	// Delete removes the latest snapshot for name.
	// Should not return an error if there is none.
	Delete(ctx context.Context, name string) error

	// Close releases any resources held by the store.
	Close() error
}

var (
	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("snapshot: store is closed")

	// ErrUnknownBackend is returned by Open for unsupported backend names.
	ErrUnknownBackend = errors.New("snapshot: unknown backend")
)

// CurrentVersion is the payload format version.
const CurrentVersion = 1

// Snapshot is the stored form of a session document.
type Snapshot struct {
	Version int                          `json:"version"`
	Path    string                       `json:"path"`
	SavedAt time.Time                    `json:"saved_at"`
	Doc     *textmode.CompressedDocument `json:"doc"`
}

// Marshal converts s to bytes.
func Marshal(s *Snapshot) ([]byte, error) {
	s.Version = CurrentVersion
	return json.Marshal(s)
}

// Unmarshal converts bytes back to a Snapshot.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	if s.Version > CurrentVersion {
		return nil, fmt.Errorf("snapshot: unsupported version %d", s.Version)
	}
	if s.Doc == nil {
		return nil, errors.New("snapshot: missing document")
	}
	return &s, nil
}

// SaveDocument compresses doc and stores it under path.
func SaveDocument(ctx context.Context, store Store, path string, doc *textmode.Document, at time.Time) error {
	data, err := Marshal(&Snapshot{Path: path, SavedAt: at.UTC(), Doc: textmode.Compress(doc)})
	if err != nil {
		return err
	}
	return store.Save(ctx, path, data, at)
}

// LoadDocument returns the latest document stored under path.
// Returns (nil, nil) if there is none.
func LoadDocument(ctx context.Context, store Store, path string) (*textmode.Document, error) {
	data, err := store.Load(ctx, path)
	if err != nil || data == nil {
		return nil, err
	}
	s, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return textmode.Decompress(s.Doc)
}
