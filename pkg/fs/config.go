// Copyright 2025 The DirentFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fs

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"direntfs.dev/direntfs/pkg/context"
	"direntfs.dev/direntfs/pkg/log"
)

// Config tunes the dirent layer. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	// DirentCacheSize is the per-mount-source limit on pinned dirents.
	DirentCacheSize uint64 `toml:"dirent_cache_size"`

	// GlobalDirentCacheLimit caps pinned dirents across all mount
	// sources that Apply is called on. 0 disables the shared limit.
	GlobalDirentCacheLimit uint64 `toml:"global_dirent_cache_limit"`

	// LogLevel is one of "warning", "info" or "debug".
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		DirentCacheSize: DefaultDirentCacheSize,
		LogLevel:        "info",
	}
}

// LoadConfig parses the TOML file at path over the defaults. Unknown keys
// are rejected.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return Config{}, fmt.Errorf("decoding config %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config %q: unknown key %q", path, undecoded[0].String())
	}
	if err := c.validate(); err != nil {
		return Config{}, fmt.Errorf("config %q: %w", path, err)
	}
	return c, nil
}

func (c Config) validate() error {
	switch c.LogLevel {
	case "warning", "info", "debug":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

func (c Config) logLevel() log.Level {
	switch c.LogLevel {
	case "warning":
		return log.Warning
	case "debug":
		return log.Debug
	default:
		return log.Info
	}
}

// ApplyLogging sets the package-wide log level from the config.
func (c Config) ApplyLogging() {
	log.SetLevel(c.logLevel())
}

// Limiter returns a shared cache limiter for the config, or nil if no
// global limit is set.
func (c Config) Limiter() *DirentCacheLimiter {
	if c.GlobalDirentCacheLimit == 0 {
		return nil
	}
	return NewDirentCacheLimiter(c.GlobalDirentCacheLimit)
}

// Apply resizes msrc's dirent cache and attaches the shared limiter.
func (c Config) Apply(ctx context.Context, msrc *MountSource, limiter *DirentCacheLimiter) {
	msrc.SetDirentCacheMaxSize(ctx, c.DirentCacheSize)
	if limiter != nil {
		msrc.SetDirentCacheLimiter(limiter)
	}
}
