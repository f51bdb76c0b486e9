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
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// ProgressConfig determines if and how progress should be displayed.
type ProgressConfig struct {
	// Enabled is false with --json or -q, and when stderr is not a TTY.
	Enabled bool

	// Writer is where progress output goes (os.Stderr outside tests).
	Writer io.Writer

	NoColor bool
}

// NewProgressConfig creates a progress configuration from the global flags
// and TTY detection.
func NewProgressConfig(globals GlobalFlags) ProgressConfig {
	enabled := !globals.Quiet && isatty.IsTerminal(os.Stderr.Fd())

	return ProgressConfig{
		Enabled: enabled,
		Writer:  os.Stderr,
		NoColor: globals.NoColor,
	}
}

// NewProgressBar creates a progress bar with consistent styling.
// Returns nil if progress is disabled; Progress methods accept a nil bar.
func NewProgressBar(cfg ProgressConfig, total int64, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}

	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// NewSpinner creates a spinner for phases with an unknown total.
// Returns nil if progress is disabled.
func NewSpinner(cfg ProgressConfig, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}

	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
	)
}

// phaseDescription returns the label shown for a check phase.
func phaseDescription(phase string) string {
	switch phase {
	case "discover":
		return "Finding Kotlin files"
	case "parse":
		return "Parsing files"
	case "analyze":
		return "Analyzing files"
	default:
		return phase
	}
}

// Progress reports one phase at a time. It is safe for concurrent use, so
// analysis workers can tick it directly.
type Progress struct {
	cfg ProgressConfig

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

// NewProgress returns a Progress with no active phase.
func NewProgress(cfg ProgressConfig) *Progress {
	return &Progress{cfg: cfg}
}

// Phase finishes the current phase and starts the next one. A negative
// total shows a spinner.
func (p *Progress) Phase(phase string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishLocked()
	if total < 0 {
		p.bar = NewSpinner(p.cfg, phaseDescription(phase))
		return
	}
	p.bar = NewProgressBar(p.cfg, int64(total), phaseDescription(phase))
}

// Tick advances the current phase by one.
func (p *Progress) Tick() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

// Done finishes the current phase.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishLocked()
}

func (p *Progress) finishLocked() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}
