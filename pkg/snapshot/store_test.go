package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/textmode-dev/joint/pkg/textmode"
)

// storeContract exercises the behavior every backend shares.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	at := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

	t.Run("LoadMissing", func(t *testing.T) {
		data, err := store.Load(ctx, "/missing.bin")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if data != nil {
			t.Fatalf("Load returned %q for missing snapshot", data)
		}
	})

	t.Run("SaveLoad", func(t *testing.T) {
		if err := store.Save(ctx, "/art.bin", []byte(`{"v":1}`), at); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := store.Save(ctx, "/art.bin", []byte(`{"v":2}`), at.Add(time.Minute)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		data, err := store.Load(ctx, "/art.bin")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if string(data) != `{"v":2}` {
			t.Fatalf("Load returned %q, want latest", data)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := store.Delete(ctx, "/art.bin"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		data, err := store.Load(ctx, "/art.bin")
		if err != nil || data != nil {
			t.Fatalf("Load after Delete = (%q, %v)", data, err)
		}
		if err := store.Delete(ctx, "/art.bin"); err != nil {
			t.Fatalf("Delete of missing snapshot failed: %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	storeContract(t, store)

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := store.Save(context.Background(), "/a", nil, time.Now()); !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("Save after Close error = %v, want ErrStoreClosed", err)
	}
}

func TestMemoryStoreCopiesData(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	data := []byte("abc")
	store.Save(ctx, "/a", data, time.Now())
	data[0] = 'x'

	got, _ := store.Load(ctx, "/a")
	if string(got) != "abc" {
		t.Fatalf("stored data mutated: %q", got)
	}
}

func TestSaveLoadDocument(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	doc, _ := textmode.New(4, 2)
	doc.Title = "Collab"
	doc.SetBlock(1, 1, textmode.Block{Code: 219, FG: 12, BG: 1})

	at := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	if err := SaveDocument(ctx, store, "/art.bin", doc, at); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}
	if got, ok := store.SavedAt("/art.bin"); !ok || !got.Equal(at) {
		t.Fatalf("SavedAt = %v, %v", got, ok)
	}

	got, err := LoadDocument(ctx, store, "/art.bin")
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	b, _ := got.At(1, 1)
	if got.Title != "Collab" || b != (textmode.Block{Code: 219, FG: 12, BG: 1}) {
		t.Fatalf("LoadDocument returned %+v", got)
	}

	missing, err := LoadDocument(ctx, store, "/other.bin")
	if err != nil || missing != nil {
		t.Fatalf("LoadDocument(missing) = (%v, %v)", missing, err)
	}
}

func TestUnmarshalRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not json", "garbage"},
		{"future version", `{"version":99,"doc":{}}`},
		{"missing doc", `{"version":1,"path":"/a"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Unmarshal([]byte(tt.in)); err == nil {
				t.Fatal("Unmarshal succeeded, want error")
			}
		})
	}
}
