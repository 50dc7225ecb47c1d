package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DefaultBoltBucket is the bucket used when none is configured.
const DefaultBoltBucket = "snapshots"

// BoltStore keeps snapshots in an embedded bbolt database file.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
}

// OpenBoltStore opens (creating if needed) the database at path.
func OpenBoltStore(path string, bucket string) (*BoltStore, error) {
	if bucket == "" {
		bucket = DefaultBoltBucket
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	s := &BoltStore{db: db, bucket: []byte(bucket)}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: create bucket %s: %w", bucket, err)
	}
	return s, nil
}

// Save implements Store.
func (s *BoltStore) Save(ctx context.Context, name string, data []byte, savedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(b *bolt.Bucket) error {
		return b.Put([]byte(name), data)
	})
}

// Load implements Store.
func (s *BoltStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		// Values are only valid for the life of the transaction.
		if v := b.Get([]byte(name)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return nil, ErrStoreClosed
	}
	return out, err
}

// Delete implements Store.
func (s *BoltStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(b *bolt.Bucket) error {
		return b.Delete([]byte(name))
	})
}

func (s *BoltStore) update(fn func(*bolt.Bucket) error) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return fn(b)
	})
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrStoreClosed
	}
	return err
}

// Close implements Store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
