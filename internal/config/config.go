package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/textmode-dev/joint/internal/errors"
	"github.com/textmode-dev/joint/pkg/joint"
	"github.com/textmode-dev/joint/pkg/snapshot"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "joint.json"

	// DefaultAddress is where sessions accept connections.
	DefaultAddress = ":8000"

	// DefaultAdminAddress is where the admin surface listens.
	DefaultAdminAddress = "127.0.0.1:8001"

	// DefaultPersistInterval is the periodic save interval.
	DefaultPersistInterval = "5m"
)

// Config represents joint.json.
type Config struct {
	// Address is the shared listener for every session.
	Address string `json:"address,omitempty"`

	// AdminAddress is the admin HTTP surface. Empty disables it.
	AdminAddress string `json:"adminAddress,omitempty"`

	// PersistInterval is how often sessions save, e.g. "5m".
	PersistInterval string `json:"persistInterval,omitempty"`

	// Advertise announces running sessions over mDNS.
	Advertise bool `json:"advertise,omitempty"`

	// Sessions are started when the server starts.
	Sessions []SessionConfig `json:"sessions,omitempty"`

	// Snapshot configures the optional snapshot store.
	Snapshot SnapshotConfig `json:"snapshot,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// SessionConfig describes one session to start.
type SessionConfig struct {
	// Path is the URL path. Defaults to the file's base name.
	Path string `json:"path,omitempty"`

	// File is the document to serve.
	File string `json:"file"`

	// Pass is the shared secret for identified participants.
	Pass string `json:"pass,omitempty"`

	// Quiet silences the session's logging.
	Quiet bool `json:"quiet,omitempty"`
}

// SnapshotConfig selects a snapshot backend.
type SnapshotConfig struct {
	Backend  string         `json:"backend,omitempty"`
	Redis    RedisConfig    `json:"redis,omitempty"`
	Postgres PostgresConfig `json:"postgres,omitempty"`
	S3       S3Config       `json:"s3,omitempty"`
	Bolt     BoltConfig     `json:"bolt,omitempty"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
}

// PostgresConfig configures the postgres backend.
type PostgresConfig struct {
	URL   string `json:"url,omitempty"`
	Table string `json:"table,omitempty"`
}

// S3Config configures the s3 backend.
type S3Config struct {
	Bucket   string `json:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
	Region   string `json:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

// BoltConfig configures the bolt backend.
type BoltConfig struct {
	Path   string `json:"path,omitempty"`
	Bucket string `json:"bucket,omitempty"`
}

// Default returns a Config with default values and no sessions.
func Default() *Config {
	return &Config{
		Address:         DefaultAddress,
		AdminAddress:    DefaultAdminAddress,
		PersistInterval: DefaultPersistInterval,
	}
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("J100").
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path)).
				WithSuggestion("Pass --config or start files directly with 'joint serve art.bin'").
				Wrap(err)
		}
		return nil, errors.New("J101").Wrap(err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		jerr := errors.New("J101").Wrap(err).WithSuggestion("Check that " + filepath.Base(path) + " is valid JSON")
		var syntax *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case stderrors.As(err, &syntax):
			jerr.WithOffset(path, data, syntax.Offset)
		case stderrors.As(err, &typeErr):
			jerr.WithOffset(path, data, typeErr.Offset)
		}
		return nil, jerr
	}

	cfg.configPath = path
	cfg.applyDefaults()
	return cfg, nil
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindRoot walks up from startDir to the nearest directory containing
// joint.json.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("J100").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory").
				Wrap(os.ErrNotExist)
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads the nearest joint.json above the working
// directory. The error wraps os.ErrNotExist when there is none.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root, err := FindRoot(wd)
	if err != nil {
		return nil, err
	}
	return Load(filepath.Join(root, ConfigFileName))
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.PersistInterval == "" {
		c.PersistInterval = DefaultPersistInterval
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("J102").WithDetail("address must not be empty")
	}
	if _, err := c.Interval(); err != nil {
		return err
	}

	seen := make(map[string]int, len(c.Sessions))
	for i, s := range c.Sessions {
		if s.File == "" {
			return errors.New("J102").
				WithDetail(fmt.Sprintf("sessions[%d] has no file", i)).
				WithExample(`"sessions": [{"file": "art.bin"}]`)
		}
		path := c.sessionPath(s)
		if j, dup := seen[path]; dup {
			return errors.New("J201").
				WithDetail(fmt.Sprintf("sessions[%d] and sessions[%d] both serve %s", j, i, path)).
				WithSuggestion("Give one of them an explicit \"path\"")
		}
		seen[path] = i
	}

	return c.validateSnapshot()
}

func (c *Config) validateSnapshot() error {
	s := c.Snapshot
	missing := func(field string) error {
		return errors.New("J102").WithDetail(fmt.Sprintf("snapshot backend %q requires %s", s.Backend, field))
	}
	switch s.Backend {
	case snapshot.BackendNone, snapshot.BackendMemory:
	case snapshot.BackendRedis:
		if s.Redis.Addr == "" {
			return missing("redis.addr")
		}
	case snapshot.BackendPostgres:
		if s.Postgres.URL == "" {
			return missing("postgres.url")
		}
	case snapshot.BackendS3:
		if s.S3.Bucket == "" {
			return missing("s3.bucket")
		}
	case snapshot.BackendBolt:
		if s.Bolt.Path == "" {
			return missing("bolt.path")
		}
	default:
		return errors.New("J103").
			WithDetail(fmt.Sprintf("%q is not one of memory, redis, postgres, s3, bolt", s.Backend)).
			Wrap(snapshot.ErrUnknownBackend)
	}
	return nil
}

// Interval parses PersistInterval.
func (c *Config) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(c.PersistInterval)
	if err != nil {
		return 0, errors.New("J104").
			WithDetail(fmt.Sprintf("persistInterval %q", c.PersistInterval)).
			WithSuggestion(`Use a Go duration such as "30s" or "5m"`).
			Wrap(err)
	}
	if d <= 0 {
		return 0, errors.New("J104").WithDetail("persistInterval must be positive")
	}
	return d, nil
}

func (c *Config) sessionPath(s SessionConfig) string {
	if s.Path != "" {
		return joint.NormalizePath(s.Path)
	}
	return joint.NormalizePath(filepath.Base(s.File))
}

// StartOptions converts the configured sessions, resolving relative files
// against Dir.
func (c *Config) StartOptions() []joint.StartOptions {
	opts := make([]joint.StartOptions, 0, len(c.Sessions))
	for _, s := range c.Sessions {
		file := s.File
		if dir := c.Dir(); dir != "" && !filepath.IsAbs(file) {
			file = filepath.Join(dir, file)
		}
		opts = append(opts, joint.StartOptions{
			Path:  s.Path,
			File:  file,
			Pass:  s.Pass,
			Quiet: s.Quiet,
		})
	}
	return opts
}

// SnapshotStore returns the settings for snapshot.Open. A relative bolt
// path resolves against Dir.
func (c *Config) SnapshotStore() snapshot.Config {
	var out snapshot.Config
	s := c.Snapshot
	out.Backend = s.Backend
	out.Redis.Addr = s.Redis.Addr
	out.Redis.Password = s.Redis.Password
	out.Redis.DB = s.Redis.DB
	out.Redis.Prefix = s.Redis.Prefix
	out.Postgres.URL = s.Postgres.URL
	out.Postgres.Table = s.Postgres.Table
	out.S3.Bucket = s.S3.Bucket
	out.S3.Prefix = s.S3.Prefix
	out.S3.Region = s.S3.Region
	out.S3.Endpoint = s.S3.Endpoint
	out.Bolt.Path = s.Bolt.Path
	out.Bolt.Bucket = s.Bolt.Bucket
	if dir := c.Dir(); dir != "" && out.Bolt.Path != "" && !filepath.IsAbs(out.Bolt.Path) {
		out.Bolt.Path = filepath.Join(dir, out.Bolt.Path)
	}
	return out
}
