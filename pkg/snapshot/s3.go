package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Store writes snapshots to an S3 bucket. Each save writes
// <prefix><name>/latest.json and, unless history is disabled, an immutable
// <prefix><name>/history/<ulid>.json so older versions stay listable in
// save order.
type S3Store struct {
	client  S3API
	bucket  string
	prefix  string
	history bool
	closed  atomic.Bool
}

// S3StoreOption configures S3Store behavior.
type S3StoreOption func(*S3Store)

// WithS3Prefix sets the key prefix.
// Default: "snapshots/".
func WithS3Prefix(prefix string) S3StoreOption {
	return func(s *S3Store) {
		s.prefix = prefix
	}
}

// WithS3History enables or disables history objects.
// Default: true.
func WithS3History(enabled bool) S3StoreOption {
	return func(s *S3Store) {
		s.history = enabled
	}
}

// NewS3Store creates an S3-backed store.
//
// Example usage:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := snapshot.NewS3Store(s3.NewFromConfig(cfg), "my-bucket")
func NewS3Store(client S3API, bucket string, opts ...S3StoreOption) *S3Store {
	s := &S3Store{client: client, bucket: bucket, prefix: "snapshots/", history: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *S3Store) base(name string) string {
	return s.prefix + strings.TrimPrefix(name, "/")
}

func (s *S3Store) latestKey(name string) string {
	return s.base(name) + "/latest.json"
}

func (s *S3Store) historyKey(name string, at time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy())
	return s.base(name) + "/history/" + id.String() + ".json"
}

func (s *S3Store) put(ctx context.Context, key string, data []byte, savedAt time.Time) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"saved-at": savedAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("snapshot: s3 put %s: %w", key, err)
	}
	return nil
}

// Save implements Store.
func (s *S3Store) Save(ctx context.Context, name string, data []byte, savedAt time.Time) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if s.history {
		if err := s.put(ctx, s.historyKey(name, savedAt), data, savedAt); err != nil {
			return err
		}
	}
	return s.put(ctx, s.latestKey(name), data, savedAt)
}

// Load implements Store.
func (s *S3Store) Load(ctx context.Context, name string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	key := s.latestKey(name)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("snapshot: s3 read %s: %w", key, err)
	}
	return data, nil
}

// Delete implements Store. History objects are kept.
func (s *S3Store) Delete(ctx context.Context, name string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.latestKey(name)),
	})
	return err
}

// Ping checks that the bucket is reachable.
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

// Close implements Store. The client holds no resources to release.
func (s *S3Store) Close() error {
	s.closed.Store(true)
	return nil
}
