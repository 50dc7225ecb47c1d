package joint

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/textmode-dev/joint/pkg/snapshot"
	"github.com/textmode-dev/joint/pkg/textmode"
)

// SessionConfig holds configuration for individual sessions.
type SessionConfig struct {
	// PersistInterval is the time between periodic document saves.
	// Default: 5 minutes.
	PersistInterval time.Duration

	// WriteTimeout is the maximum time to wait when sending a message.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// ReadLimit is the maximum size of an incoming websocket message.
	// Default: 1MB.
	ReadLimit int64

	// MaxEventQueue is the size of the session's inbox. Readers block when
	// it is full.
	// Default: 256.
	MaxEventQueue int

	// ChatHistorySize is the number of chat messages replayed to joiners.
	// Default: 32.
	ChatHistorySize int
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		PersistInterval: 5 * time.Minute,
		WriteTimeout:    10 * time.Second,
		ReadLimit:       1 << 20,
		MaxEventQueue:   256,
		ChatHistorySize: 32,
	}
}

// Clone returns a copy of the SessionConfig.
func (c *SessionConfig) Clone() *SessionConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// withDefaults returns a copy with zero fields set to their defaults.
func (c *SessionConfig) withDefaults() *SessionConfig {
	d := DefaultSessionConfig()
	if c == nil {
		return d
	}
	out := c.Clone()
	if out.PersistInterval <= 0 {
		out.PersistInterval = d.PersistInterval
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.ReadLimit <= 0 {
		out.ReadLimit = d.ReadLimit
	}
	if out.MaxEventQueue <= 0 {
		out.MaxEventQueue = d.MaxEventQueue
	}
	if out.ChatHistorySize <= 0 {
		out.ChatHistorySize = d.ChatHistorySize
	}
	return out
}

// RegistryConfig holds configuration for a Registry.
type RegistryConfig struct {
	// Address is the TCP address the shared listener binds on first Start.
	// Default: ":8000".
	Address string

	// ReadBufferSize and WriteBufferSize size the websocket I/O buffers.
	// Default: 4096.
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates the Origin header of upgrade requests.
	// Default: nil (any origin is accepted; sessions are meant to be shared).
	CheckOrigin func(r *http.Request) bool

	// ShutdownTimeout bounds listener shutdown in CloseAll when the caller's
	// context has no deadline.
	// Default: 10 seconds.
	ShutdownTimeout time.Duration

	// Session is the configuration applied to every session.
	Session *SessionConfig

	// Codec reads and writes session documents.
	// Default: textmode.NewBinCodec().
	Codec textmode.Codec

	// Snapshots mirrors every save when set.
	Snapshots snapshot.Store

	// Metrics records Prometheus metrics when set.
	Metrics *Metrics

	// Logger is the base logger.
	// Default: slog.Default().
	Logger *slog.Logger
}

// DefaultRegistryConfig returns a RegistryConfig with sensible defaults.
func DefaultRegistryConfig() *RegistryConfig {
	return &RegistryConfig{
		Address:         ":8000",
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		ShutdownTimeout: 10 * time.Second,
		Session:         DefaultSessionConfig(),
		Codec:           textmode.NewBinCodec(),
		Logger:          slog.Default(),
	}
}

func (c *RegistryConfig) withDefaults() *RegistryConfig {
	d := DefaultRegistryConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Address == "" {
		out.Address = d.Address
	}
	if out.ReadBufferSize <= 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.WriteBufferSize <= 0 {
		out.WriteBufferSize = d.WriteBufferSize
	}
	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	out.Session = out.Session.withDefaults()
	if out.Codec == nil {
		out.Codec = d.Codec
	}
	if out.Logger == nil {
		out.Logger = d.Logger
	}
	return &out
}
