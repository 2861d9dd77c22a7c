// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package databag

import (
	"log/slog"
	"os"
	"strings"
)

const (
	// DefaultMaxSpillFiles caps how many spill files are merged at once.
	DefaultMaxSpillFiles = 100

	// DefaultBufferSize is the bufio size used for spill file I/O.
	DefaultBufferSize = 64 * 1024

	// Merging fewer than two files per pass can never shrink the file count.
	minMaxSpillFiles = 2
)

// Threshold kinds understood by NewPolicy.
const (
	ThresholdNever  = "never"
	ThresholdCount  = "count"
	ThresholdMemory = "memory"
)

// ThresholdConfig selects and parameterises a ThresholdPolicy.
type ThresholdConfig struct {
	// Kind is one of "never", "count" or "memory". Empty means "never".
	Kind string `mapstructure:"kind"`

	// Limit is an item count for "count" and a byte count for "memory".
	Limit int64 `mapstructure:"limit"`
}

// Config contains the tunables shared by every bag flavour.
type Config struct {
	// TempDir is where spill files are created. Empty means os.TempDir().
	TempDir string `mapstructure:"temp_dir"`

	// MaxSpillFiles bounds the number of spill files opened by one merge.
	// Zero means DefaultMaxSpillFiles.
	MaxSpillFiles int `mapstructure:"max_spill_files"`

	// BufferSize is the read/write buffer per spill file. Zero means DefaultBufferSize.
	BufferSize int `mapstructure:"buffer_size"`

	Threshold ThresholdConfig `mapstructure:"threshold"`

	// Codec and Compression name the spillcodec factory used by callers that
	// build bags from configuration (see spillcodec.ByName).
	Codec       string `mapstructure:"codec"`
	Compression string `mapstructure:"compression"`
}

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() Config {
	return Config{
		MaxSpillFiles: DefaultMaxSpillFiles,
		BufferSize:    DefaultBufferSize,
		Threshold: ThresholdConfig{
			Kind:  ThresholdCount,
			Limit: 100_000,
		},
		Codec:       "cbor",
		Compression: "none",
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.MaxSpillFiles != 0 && c.MaxSpillFiles < minMaxSpillFiles {
		return &ConfigError{Field: "MaxSpillFiles", Message: "must be at least 2"}
	}
	if c.BufferSize < 0 {
		return &ConfigError{Field: "BufferSize", Message: "cannot be negative"}
	}
	if c.Threshold.Limit < 0 {
		return &ConfigError{Field: "Threshold.Limit", Message: "cannot be negative"}
	}
	switch strings.ToLower(c.Threshold.Kind) {
	case "", ThresholdNever, ThresholdCount, ThresholdMemory:
	default:
		return &ConfigError{Field: "Threshold.Kind", Message: "must be one of never, count, memory"}
	}
	if c.TempDir != "" {
		info, err := os.Stat(c.TempDir)
		if err != nil {
			return &ConfigError{Field: "TempDir", Message: err.Error()}
		}
		if !info.IsDir() {
			return &ConfigError{Field: "TempDir", Message: "is not a directory"}
		}
	}
	return nil
}

// GetTempDir returns the effective spill directory.
func (c *Config) GetTempDir() string {
	if c.TempDir != "" {
		return c.TempDir
	}
	return os.TempDir()
}

// GetMaxSpillFiles returns the effective merge fan-in.
func (c *Config) GetMaxSpillFiles() int {
	if c.MaxSpillFiles > 0 {
		return c.MaxSpillFiles
	}
	return DefaultMaxSpillFiles
}

// GetBufferSize returns the effective spill file buffer size.
func (c *Config) GetBufferSize() int {
	if c.BufferSize > 0 {
		return c.BufferSize
	}
	return DefaultBufferSize
}

// Option customises a bag at construction time.
type Option interface {
	apply(*settings)
}

type settings struct {
	config Config
	logger *slog.Logger
}

type optionFunc func(*settings)

func (f optionFunc) apply(s *settings) { f(s) }

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return optionFunc(func(s *settings) {
		s.config = cfg
	})
}

// WithTempDir sets the spill directory.
func WithTempDir(dir string) Option {
	return optionFunc(func(s *settings) {
		s.config.TempDir = dir
	})
}

// WithMaxSpillFiles sets the merge fan-in. Values below 2 are rejected.
func WithMaxSpillFiles(n int) Option {
	return optionFunc(func(s *settings) {
		s.config.MaxSpillFiles = n
	})
}

// WithLogger sets the logger used for spill and cleanup events.
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	})
}
