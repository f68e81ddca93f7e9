package genomicarray

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// StorageKind selects the store backend.
type StorageKind string

const (
	KindPersistent StorageKind = "persistent"
	KindInMemory   StorageKind = "in_memory"
)

// ParseStorageKind parses a backend name. "memory" is accepted as an alias
// for in_memory.
func ParseStorageKind(s string) (StorageKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(KindPersistent):
		return KindPersistent, nil
	case string(KindInMemory), "memory":
		return KindInMemory, nil
	}
	return "", fmt.Errorf("%w: unknown storage kind %q", ErrInvalidConfig, s)
}

func (k StorageKind) String() string { return string(k) }

// CacheDirEnv overrides the default cache root.
const CacheDirEnv = "GENOMICARRAY_CACHE_DIR"

// Config holds the settings shared by both store backends.
type Config struct {
	// Array layout
	Stranded   bool     // Keep a separate axis for the reverse strand (default: true)
	Conditions []string // Condition names, one column each (default: ["sample"])
	Resolution int      // Base pairs per cell (default: 1)
	Order      int      // Array memory order hint, 1 to 4 (default: 1)

	// Cache location
	DataTags  []string // Path components identifying the dataset
	Cache     bool     // Persist the store below CacheDir (default: true)
	Overwrite bool     // Rebuild even when a cache exists
	CacheDir  string   // Local directory or s3://bucket/prefix

	// Persisted format
	Compression   string        // "zstd" or "none" (default: "zstd")
	ChunkCacheTTL time.Duration // Lifetime of decoded chunks (default: 10m)

	// StrictReload fails a reload whose persisted layout differs from the
	// requested one instead of logging a warning.
	StrictReload bool

	// MemoryBudget caps the in-process allocation before a warning is
	// logged. Zero uses available system memory.
	MemoryBudget int64

	// Workers encode and write chunks in parallel when a persistent
	// store is committed. Zero detects the fast cores of the machine.
	Workers int

	Logger logrus.FieldLogger

	// Storage replaces the backend derived from CacheDir.
	Storage Storage
}

// NewConfig creates a Config with smart defaults
func NewConfig() *Config {
	return &Config{
		Stranded:      true,
		Conditions:    []string{"sample"},
		Resolution:    1,
		Order:         1,
		Cache:         true,
		CacheDir:      DefaultCacheDir(),
		Compression:   "zstd",
		ChunkCacheTTL: 10 * time.Minute,
		Logger:        logrus.StandardLogger(),
	}
}

// DefaultCacheDir returns $GENOMICARRAY_CACHE_DIR, or a genomicarray
// directory below the user cache directory.
func DefaultCacheDir() string {
	if dir := os.Getenv(CacheDirEnv); dir != "" {
		return dir
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "genomicarray")
}

// Validate checks configuration
func (c *Config) Validate() error {
	if c.Order < 1 || c.Order > 4 {
		return fmt.Errorf("%w: order must be between 1 and 4, got %d", ErrInvalidConfig, c.Order)
	}
	if c.Resolution <= 0 {
		return fmt.Errorf("%w: resolution must be positive, got %d", ErrInvalidConfig, c.Resolution)
	}
	if len(c.Conditions) == 0 {
		return fmt.Errorf("%w: at least one condition is required", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Conditions))
	for _, name := range c.Conditions {
		if name == "" {
			return fmt.Errorf("%w: empty condition name", ErrInvalidConfig)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate condition %q", ErrInvalidConfig, name)
		}
		seen[name] = true
	}
	if len(c.Conditions) > maxConditions {
		return fmt.Errorf("%w: at most %d conditions are supported, got %d", ErrInvalidConfig, maxConditions, len(c.Conditions))
	}
	for _, tag := range c.DataTags {
		if err := checkTag(tag); err != nil {
			return err
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.Compression != "zstd" && c.Compression != "none" {
		return fmt.Errorf("%w: unsupported compression %q", ErrInvalidConfig, c.Compression)
	}
	if c.Cache && c.CacheDir == "" && c.Storage == nil {
		return fmt.Errorf("%w: cache directory is required when caching", ErrInvalidConfig)
	}
	return nil
}

// resolve returns a validated copy of cfg with unset fields defaulted.
func resolve(cfg *Config) (*Config, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	c := *cfg
	c.Conditions = append([]string(nil), cfg.Conditions...)
	c.DataTags = append([]string(nil), cfg.DataTags...)
	if c.Conditions == nil {
		c.Conditions = []string{"sample"}
	}
	if c.Compression == "" {
		c.Compression = "zstd"
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) storage() (Storage, error) {
	if c.Storage != nil {
		return c.Storage, nil
	}
	st, err := NewStorage(c.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache directory: %w", err)
	}
	return st, nil
}

// maxWorkers bounds the chunk writers so a commit holds at most this many
// encoded chunks in memory at once.
const maxWorkers = 32

func (c *Config) workers() int {
	n := c.Workers
	if n == 0 {
		n = detectWorkers()
	}
	return max(1, min(n, maxWorkers))
}

func (c *Config) strands() int {
	if c.Stranded {
		return 2
	}
	return 1
}
