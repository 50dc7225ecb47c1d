package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Backend names accepted by Open.
const (
	BackendNone     = ""
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
	BackendBolt     = "bolt"
)

// Config selects and configures a backend.
type Config struct {
	Backend string

	Redis struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}

	Postgres struct {
		URL   string
		Table string
	}

	S3 struct {
		Bucket   string
		Prefix   string
		Region   string
		Endpoint string
	}

	Bolt struct {
		Path   string
		Bucket string
	}

	// ConnectTimeout bounds the retries of the initial connection check.
	// Default: 30 seconds.
	ConnectTimeout time.Duration
}

// newBackOff is overridden in tests.
var newBackOff = func(maxElapsed time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed
	return b
}

// Open builds the store named by cfg.Backend. It returns (nil, nil) when no
// backend is configured.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "snapshot", "backend", cfg.Backend)
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	switch cfg.Backend {
	case BackendNone:
		return nil, nil

	case BackendMemory:
		return NewMemoryStore(), nil

	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := connect(ctx, logger, timeout, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}); err != nil {
			client.Close()
			return nil, err
		}
		var opts []RedisStoreOption
		if cfg.Redis.Prefix != "" {
			opts = append(opts, WithRedisPrefix(cfg.Redis.Prefix))
		}
		return NewRedisStore(client, opts...), nil

	case BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("snapshot: postgres: %w", err)
		}
		if err := connect(ctx, logger, timeout, pool.Ping); err != nil {
			pool.Close()
			return nil, err
		}
		store, err := NewPostgresStore(ctx, pool, WithPostgresTable(cfg.Postgres.Table))
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil

	case BackendS3:
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.S3.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.S3.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("snapshot: aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.S3.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
				o.UsePathStyle = true
			}
		})
		var opts []S3StoreOption
		if cfg.S3.Prefix != "" {
			opts = append(opts, WithS3Prefix(cfg.S3.Prefix))
		}
		store := NewS3Store(client, cfg.S3.Bucket, opts...)
		if err := connect(ctx, logger, timeout, store.Ping); err != nil {
			return nil, err
		}
		return store, nil

	case BackendBolt:
		return OpenBoltStore(cfg.Bolt.Path, cfg.Bolt.Bucket)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// connect retries check with exponential backoff until it succeeds, ctx is
// done or maxElapsed passes.
func connect(ctx context.Context, logger *slog.Logger, maxElapsed time.Duration, check func(context.Context) error) error {
	b := backoff.WithContext(newBackOff(maxElapsed), ctx)
	err := backoff.RetryNotify(func() error {
		return check(ctx)
	}, b, func(err error, next time.Duration) {
		logger.Warn("snapshot backend not ready", "error", err, "retry_in", next)
	})
	if err != nil {
		return fmt.Errorf("snapshot: connect: %w", err)
	}
	logger.Info("snapshot backend connected")
	return nil
}
