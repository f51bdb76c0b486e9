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

// Package main implements the inblock CLI, which runs the incremental
// Kotlin analysis cache over files on disk.
//
// Usage:
//
//	inblock init                   Create .inblock/config.yaml
//	inblock check [dir]            Analyze every Kotlin file below dir
//	inblock replay <script.yaml>   Replay an edit script and report cache behavior
//	inblock watch [dir]            Re-analyze files as they change
//	inblock install-hook           Run 'inblock check' before each git commit
//	inblock version                Show version information
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// GlobalFlags are the options accepted before the command name.
type GlobalFlags struct {
	JSON        bool
	NoColor     bool
	Quiet       bool
	Verbose     int
	Trace       bool
	MetricsAddr string
}

func main() {
	var (
		globals     GlobalFlags
		showVersion bool
		configPath  string
	)

	fs := flag.NewFlagSet("inblock", flag.ExitOnError)
	fs.SetInterspersed(false)
	fs.StringVar(&configPath, "config", "", "Path to .inblock/config.yaml (default: ./.inblock/config.yaml)")
	fs.BoolVar(&globals.JSON, "json", false, "Write machine-readable JSON to stdout")
	fs.BoolVar(&globals.NoColor, "no-color", false, "Disable colored output")
	fs.BoolVarP(&globals.Quiet, "quiet", "q", false, "Suppress progress output and informational logs")
	fs.CountVarP(&globals.Verbose, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	fs.BoolVar(&globals.Trace, "trace", false, "Export OpenTelemetry spans to stderr")
	fs.StringVar(&globals.MetricsAddr, "metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
	fs.BoolVar(&showVersion, "version", false, "Show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `inblock - incremental Kotlin analysis

inblock keeps per-file analysis results and re-analyzes only the code
block an edit touched. Edits that reach outside a block drop the file's
results and start over.

Usage:
  inblock [global options] <command> [options]

Commands:
  init           Create .inblock/config.yaml
  check          Analyze every Kotlin file below a directory
  replay         Replay an edit script against the cache
  watch          Re-analyze files as they change on disk
  install-hook   Run 'inblock check' before each git commit
  version        Show version information

Global Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  inblock check ./src
  inblock --json check --fail-on warning
  inblock replay testdata/swap.yaml --report .inblock/reports/swap.json
  inblock -v watch ./src

For detailed command help: inblock <command> --help

`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	if showVersion {
		runVersion(nil, globals)
		return
	}
	// JSON output implies quiet so progress never mixes with the document.
	if globals.JSON {
		globals.Quiet = true
	}

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, globals)
	case "check":
		runCheck(cmdArgs, configPath, globals)
	case "replay":
		runReplay(cmdArgs, configPath, globals)
	case "watch":
		runWatch(cmdArgs, configPath, globals)
	case "install-hook":
		runInstallHook(cmdArgs, globals)
	case "version":
		runVersion(cmdArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		fs.Usage()
		os.Exit(1)
	}
}
