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
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/inblock/internal/errors"
	"github.com/kraklabs/inblock/internal/output"
	"github.com/kraklabs/inblock/internal/ui"
)

// initFlags holds parsed flags for the init command.
type initFlags struct {
	force    bool
	withHook bool
	failOn   string
	maxDepth int
	excludes []string
}

// initResult describes what init wrote.
type initResult struct {
	ConfigPath    string `json:"config_path"`
	GitignoreEdit bool   `json:"gitignore_updated"`
	HookPath      string `json:"hook_path,omitempty"`
}

// runInit executes the 'init' CLI command, creating .inblock/config.yaml in
// the current directory.
//
// Examples:
//
//	inblock init                      Write the default configuration
//	inblock init --fail-on warning    Fail checks on warnings too
//	inblock init --hook               Also install a git pre-commit hook
func runInit(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	var f initFlags
	fs.BoolVar(&f.force, "force", false, "Overwrite an existing configuration")
	fs.BoolVar(&f.withHook, "hook", false, "Install a git pre-commit hook that runs 'inblock check'")
	fs.StringVar(&f.failOn, "fail-on", "", "Lowest severity that fails a check: error, warning, info or none")
	fs.IntVar(&f.maxDepth, "max-depth", 0, "Deepest nesting of pending analysis layers before a rebuild")
	fs.StringSliceVar(&f.excludes, "exclude", nil, "Glob to skip during discovery (repeatable, replaces the defaults)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: inblock init [options]

Creates .inblock/config.yaml with the default settings and adds the
report directory to .gitignore.

Examples:
  inblock init
  inblock init --fail-on warning --exclude 'generated/**'
  inblock init --force --hook

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	ui.InitColors(globals.NoColor)

	cwd, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot get current directory", err.Error(), "", err), globals.JSON)
	}
	res, err := initProject(cwd, f)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	if globals.JSON {
		if err := output.JSON(res); err != nil {
			errors.FatalError(err, true)
		}
		return
	}
	printInit(os.Stdout, res)
}

// initProject writes the configuration below dir and returns what changed.
func initProject(dir string, f initFlags) (*initResult, error) {
	configPath := ConfigPath(dir)
	if _, err := os.Stat(configPath); err == nil && !f.force {
		return nil, errors.NewInputError(
			"Configuration already exists",
			configPath,
			"Run: inblock init --force",
		)
	}

	cfg := DefaultConfig()
	if f.failOn != "" {
		cfg.Check.FailOn = f.failOn
	}
	if f.maxDepth != 0 {
		cfg.Cache.MaxDepth = f.maxDepth
	}
	if len(f.excludes) > 0 {
		cfg.Exclude = f.excludes
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewInputError("Invalid init option", err.Error(), "Run: inblock init --help")
	}

	if err := SaveConfig(cfg, configPath); err != nil {
		if stderrors.Is(err, fs.ErrPermission) {
			return nil, errors.NewPermissionError("Cannot write configuration", err.Error(), "Check the directory permissions", err)
		}
		return nil, errors.NewInternalError("Cannot write configuration", err.Error(), "", err)
	}
	res := &initResult{ConfigPath: configPath}

	updated, err := addToGitignore(dir)
	if err != nil {
		return nil, errors.FromError("Cannot update .gitignore", err)
	}
	res.GitignoreEdit = updated

	if f.withHook {
		gitDir, err := findGitDir(dir)
		if err != nil {
			return nil, errors.NewNotFoundError("No git repository", err.Error(), "Run 'git init' first or drop --hook")
		}
		hookPath := filepath.Join(gitDir, "hooks", "pre-commit")
		if err := installHook(hookPath, f.force); err != nil {
			return nil, errors.NewInputError("Cannot install git hook", err.Error(), "Run: inblock install-hook --force")
		}
		res.HookPath = hookPath
	}
	return res, nil
}

func printInit(w io.Writer, res *initResult) {
	fmt.Fprintf(w, "Created %s\n", res.ConfigPath)
	if res.GitignoreEdit {
		fmt.Fprintf(w, "Added %s/%s to .gitignore\n", configDirName, reportDirName)
	}
	if res.HookPath != "" {
		fmt.Fprintf(w, "Git hook installed: %s\n", res.HookPath)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.Label("Next steps:"))
	fmt.Fprintf(w, "  1. Review %s\n", filepath.Join(configDirName, configFileName))
	fmt.Fprintln(w, "  2. Run 'inblock check' to analyze the project")
	if res.HookPath == "" {
		fmt.Fprintln(w, "  3. Run 'inblock install-hook' to check staged work before each commit")
	}
}

// reportDirName holds replay reports and stays out of version control.
const reportDirName = "reports"

// addToGitignore appends .inblock/reports/ to dir/.gitignore when the file
// exists and does not list it yet. It reports whether the file changed.
func addToGitignore(dir string) (bool, error) {
	gitignorePath := filepath.Join(dir, ".gitignore")
	content, err := os.ReadFile(gitignorePath) //nolint:gosec // G304: gitignorePath built from repo dir
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	entry := configDirName + "/" + reportDirName + "/"
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimPrefix(strings.TrimSpace(line), "/")
		if line == entry || line == strings.TrimSuffix(entry, "/") || line == configDirName || line == configDirName+"/" {
			return false, nil
		}
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_WRONLY, 0600) //nolint:gosec // G304: gitignorePath built from repo dir
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	if len(content) > 0 && content[len(content)-1] != '\n' {
		b.WriteString("\n")
	}
	b.WriteString("\n# inblock replay reports\n")
	b.WriteString(entry + "\n")
	if _, err := f.WriteString(b.String()); err != nil {
		return false, err
	}
	return true, nil
}
