// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/inblock/pkg/analysis"
	"github.com/kraklabs/inblock/pkg/kotlin"
	"github.com/kraklabs/inblock/pkg/session"
)

const (
	configDirName  = ".inblock"
	configFileName = "config.yaml"
)

// Config is the content of .inblock/config.yaml.
//
// Example:
//
//	cache:
//	  max_depth: 8
//	check:
//	  workers: 4
//	  fail_on: warning
//	watch:
//	  debounce: 250ms
//	exclude:
//	  - generated/**
type Config struct {
	Cache   CacheConfig   `yaml:"cache"`
	Check   CheckConfig   `yaml:"check"`
	Watch   WatchConfig   `yaml:"watch"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
	Kotlin  KotlinConfig  `yaml:"kotlin"`
	Tracing TracingConfig `yaml:"tracing"`

	// Exclude replaces session.DefaultExcludes when set.
	Exclude []string `yaml:"exclude,omitempty"`
}

// CacheConfig configures the analysis cache.
type CacheConfig struct {
	MaxDepth int `yaml:"max_depth"`
}

// CheckConfig configures `inblock check`.
type CheckConfig struct {
	Workers     int    `yaml:"workers"`
	MaxFileSize int64  `yaml:"max_file_size"`
	FailOn      string `yaml:"fail_on"`
}

// WatchConfig configures `inblock watch`.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// KotlinConfig configures the Kotlin front end.
type KotlinConfig struct {
	ScriptExtensions []string `yaml:"script_extensions"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Cache:   CacheConfig{MaxDepth: analysis.DefaultMaxDepth},
		Check:   CheckConfig{Workers: runtime.NumCPU(), MaxFileSize: 1 << 20, FailOn: "error"},
		Watch:   WatchConfig{Debounce: session.DefaultDebounce},
		Logging: LoggingConfig{Level: "warn"},
		Kotlin:  KotlinConfig{ScriptExtensions: append([]string(nil), kotlin.DefaultScriptExtensions...)},
	}
}

// ConfigPath returns the default config location below dir.
func ConfigPath(dir string) string {
	return filepath.Join(dir, configDirName, configFileName)
}

// LoadConfig reads the config at path. An empty path means
// ./.inblock/config.yaml, which may be absent; an explicit path must exist.
// Values missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	explicit := path != ""
	if !explicit {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		path = ConfigPath(cwd)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the commands cannot run with.
func (c *Config) Validate() error {
	if c.Cache.MaxDepth < 1 {
		return fmt.Errorf("cache.max_depth must be at least 1, got %d", c.Cache.MaxDepth)
	}
	if c.Check.Workers < 1 {
		return fmt.Errorf("check.workers must be at least 1, got %d", c.Check.Workers)
	}
	if c.Check.MaxFileSize < 0 {
		return fmt.Errorf("check.max_file_size must not be negative")
	}
	if _, err := parseFailOn(c.Check.FailOn); err != nil {
		return err
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	for _, ext := range c.Kotlin.ScriptExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("kotlin.script_extensions: %q must start with a dot", ext)
		}
	}
	return nil
}

// SaveConfig writes cfg to path, creating the parent directory.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
