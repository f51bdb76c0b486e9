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
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for more changes.
const DefaultDebounce = 100 * time.Millisecond

// Op names what happened to a watched document.
type Op string

const (
	OpOpen   Op = "open"
	OpUpdate Op = "update"
	OpClose  Op = "close"
)

// Event reports one document processed after a debounce window.
type Event struct {
	Path     string
	Op       Op
	Change   Change
	Findings []Finding
	Err      error
}

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	Logger   *slog.Logger
	Debounce time.Duration

	// Excludes follow DiscoverOptions.Excludes.
	Excludes []string
}

// Watcher feeds file system changes below a root into a Workspace. Changes
// are batched per debounce window; each changed source file is reread,
// updated (or opened, or closed when gone) and re-analyzed.
type Watcher struct {
	root     string
	ws       *Workspace
	fs       *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration
	excludes []string
}

// NewWatcher starts watching every directory below root. Changes made after
// NewWatcher returns are reported by Run.
func NewWatcher(root string, ws *Workspace, opts WatcherOptions) (*Watcher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	excludes := opts.Excludes
	if excludes == nil {
		excludes = DefaultExcludes
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{root: abs, ws: ws, fs: fw, logger: logger, debounce: debounce, excludes: excludes}
	if _, err := w.addRecursive(abs); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// addRecursive watches dir and every directory below it. It returns the
// source files already present, which no event will announce.
func (w *Watcher) addRecursive(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, ok := w.rel(p)
		if !d.IsDir() {
			if ok && isSource(rel) && !excluded(rel, w.excludes) {
				files = append(files, rel)
			}
			return nil
		}
		if ok && rel != "." && excluded(rel, w.excludes) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
	return files, err
}

func (w *Watcher) rel(p string) (string, bool) {
	rel, err := filepath.Rel(w.root, p)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Close stops watching. Run closes the watcher itself; Close is for
// watchers that never run.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run processes changes until ctx is done, calling handle for every
// document it touched. It closes the watcher before returning.
func (w *Watcher) Run(ctx context.Context, handle func(Event)) error {
	defer w.fs.Close()

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			timerC = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			rel, ok := w.rel(ev.Name)
			if !ok || excluded(rel, w.excludes) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					files, err := w.addRecursive(ev.Name)
					if err != nil {
						w.logger.Warn("session.watch.add_failed", "path", rel, "err", err)
					}
					for _, f := range files {
						pending[f] = struct{}{}
					}
					if len(files) > 0 {
						schedule()
					}
					continue
				}
			}
			if !isSource(rel) {
				continue
			}
			pending[rel] = struct{}{}
			schedule()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("session.watch.error", "err", err)

		case <-timerC:
			timer, timerC = nil, nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)
			for _, p := range paths {
				ev := w.apply(ctx, p)
				if ev.Err != nil && ctx.Err() != nil {
					return nil
				}
				if handle != nil {
					handle(ev)
				}
			}
		}
	}
}

// apply brings the workspace in line with the file's current contents.
func (w *Watcher) apply(ctx context.Context, rel string) Event {
	ev := Event{Path: rel}
	text, err := os.ReadFile(filepath.Join(w.root, filepath.FromSlash(rel)))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		ev.Op = OpClose
		w.ws.Close(rel)
		w.logger.Info("session.watch.closed", "path", rel)
		return ev
	case err != nil:
		ev.Err = err
		return ev
	}

	if w.ws.IsOpen(rel) {
		ev.Op = OpUpdate
		ev.Change, ev.Err = w.ws.Update(ctx, rel, text)
	} else {
		ev.Op = OpOpen
		ev.Err = w.ws.Open(ctx, rel, text)
	}
	if ev.Err != nil {
		w.logger.Warn("session.watch.sync_failed", "path", rel, "err", ev.Err)
		return ev
	}
	if ev.Change.Unchanged {
		return ev
	}
	ev.Findings, _, ev.Err = w.ws.Diagnostics(ctx, rel)
	return ev
}
