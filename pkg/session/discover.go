// Copyright 2025 KrakLabs
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
//
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultExcludes are skipped by Discover unless overridden.
var DefaultExcludes = []string{".git", ".gradle", ".idea", "build", "out", "node_modules"}

// SourceExtensions are the file extensions Discover collects.
var SourceExtensions = []string{".kt", ".kts"}

// DiscoverOptions configures Discover.
type DiscoverOptions struct {
	Logger *slog.Logger

	// Excludes are glob patterns matched against slash-separated paths
	// relative to the root and against each path element. Nil means
	// DefaultExcludes.
	Excludes []string

	// MaxFileSize skips larger files when positive.
	MaxFileSize int64
}

// Discovered is the outcome of walking a source root.
type Discovered struct {
	Root        string
	Files       []string       // relative, slash-separated, sorted by walk order
	SkipReasons map[string]int // reason -> count
}

// Discover walks root and returns the Kotlin sources below it.
func Discover(ctx context.Context, root string, opts DiscoverOptions) (*Discovered, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	excludes := opts.Excludes
	if excludes == nil {
		excludes = DefaultExcludes
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	out := &Discovered{Root: abs, SkipReasons: make(map[string]int)}
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("session.discover.error", "path", p, "err", err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, relErr := filepath.Rel(abs, p)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if excluded(rel, excludes) {
				out.SkipReasons["excluded_dir"]++
				return filepath.SkipDir
			}
			return nil
		}
		if !isSource(rel) {
			return nil
		}
		if excluded(rel, excludes) {
			out.SkipReasons["excluded"]++
			return nil
		}
		if opts.MaxFileSize > 0 {
			fi, err := d.Info()
			if err != nil {
				return nil
			}
			if fi.Size() > opts.MaxFileSize {
				out.SkipReasons["too_large"]++
				logger.Warn("session.discover.skip_large_file",
					"path", rel,
					"size", fi.Size(),
					"limit", opts.MaxFileSize,
				)
				return nil
			}
		}
		out.Files = append(out.Files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("session.discover", "root", abs, "files", len(out.Files))
	return out, nil
}

func isSource(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	for _, e := range SourceExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// excluded matches rel against each pattern. A pattern ending in "/**"
// excludes the directory and everything below it; any other pattern is
// tried against the whole path and against every path element.
func excluded(rel string, patterns []string) bool {
	parts := strings.Split(rel, "/")
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
				return true
			}
			continue
		}
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		for _, part := range parts {
			if ok, _ := path.Match(pattern, part); ok {
				return true
			}
		}
	}
	return false
}
