package vmmap

import (
	"fmt"
	"log/slog"
	"os"

	"sigs.k8s.io/yaml"
)

// Defaults applied by New for zero Config fields.
const (
	// DefaultMemoryBytes matches the 128 MiB of RAM of the reference board.
	DefaultMemoryBytes = 128 << 20
	// DefaultMaxProcs is the size of the process table.
	DefaultMaxProcs = 64
)

// Config holds the kernel settings that can be loaded from a file.
type Config struct {
	// MemoryBytes is the size of simulated physical RAM.
	MemoryBytes int64 `json:"memory_bytes,omitempty"`

	// MaxProcs caps the number of live processes.
	MaxProcs int `json:"max_procs,omitempty"`

	// ResidentLimitBytes caps the bytes of mapped pages resident at once
	// across all processes. 0 means unlimited.
	ResidentLimitBytes int64 `json:"resident_limit_bytes,omitempty"`

	// IOBytesPerSec caps fault-in reads and writeback. 0 means unlimited.
	IOBytesPerSec int64 `json:"io_bytes_per_sec,omitempty"`

	// RootDir is the directory relative file names resolve against.
	RootDir string `json:"root_dir,omitempty"`

	// LogLevel is one of debug, info, warn or error. Empty disables logging.
	LogLevel string `json:"log_level,omitempty"`
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	return Config{
		MemoryBytes: DefaultMemoryBytes,
		MaxProcs:    DefaultMaxProcs,
	}
}

// LoadConfig reads a YAML (or JSON) config file. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML (or JSON) document into a Config.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal encodes the config as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.MemoryBytes < 0:
		return fmt.Errorf("%w: memory_bytes %d", ErrInvalidConfig, c.MemoryBytes)
	case c.MaxProcs < 0:
		return fmt.Errorf("%w: max_procs %d", ErrInvalidConfig, c.MaxProcs)
	case c.ResidentLimitBytes < 0:
		return fmt.Errorf("%w: resident_limit_bytes %d", ErrInvalidConfig, c.ResidentLimitBytes)
	case c.IOBytesPerSec < 0:
		return fmt.Errorf("%w: io_bytes_per_sec %d", ErrInvalidConfig, c.IOBytesPerSec)
	}
	if _, _, err := c.level(); err != nil {
		return err
	}
	return nil
}

// level parses LogLevel. ok is false when logging is off.
func (c Config) level() (lvl slog.Level, ok bool, err error) {
	if c.LogLevel == "" {
		return 0, false, nil
	}
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, false, fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	return lvl, true, nil
}

func (c Config) withDefaults() Config {
	if c.MemoryBytes == 0 {
		c.MemoryBytes = DefaultMemoryBytes
	}
	if c.MaxProcs == 0 {
		c.MaxProcs = DefaultMaxProcs
	}
	return c
}
