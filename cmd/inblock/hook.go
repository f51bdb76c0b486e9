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
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/inblock/internal/errors"
	"github.com/kraklabs/inblock/internal/ui"
)

const hookMarker = "# inblock pre-commit hook"

const preCommitHookContent = `#!/bin/sh
# inblock pre-commit hook - blocks commits that introduce analysis errors
# Installed by: inblock install-hook
# Remove with: inblock install-hook --remove

exec inblock --quiet check
`

// runInstallHook executes the 'install-hook' CLI command, managing the git
// pre-commit hook that runs 'inblock check'.
//
// Examples:
//
//	inblock install-hook           Install the pre-commit hook
//	inblock install-hook --force   Overwrite an existing hook
//	inblock install-hook --remove  Remove the hook
func runInstallHook(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("install-hook", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite existing hook")
	remove := fs.Bool("remove", false, "Remove the hook instead of installing")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: inblock install-hook [options]

Installs a git pre-commit hook that runs 'inblock check' and rejects the
commit when the check fails (see check.fail_on in .inblock/config.yaml).

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
	gitDir, err := findGitDir(cwd)
	if err != nil {
		errors.FatalError(errors.NewNotFoundError("No git repository", err.Error(), "Run inside a git work tree"), globals.JSON)
	}
	hookPath := filepath.Join(gitDir, "hooks", "pre-commit")

	if *remove {
		if err := removeHook(hookPath); err != nil {
			errors.FatalError(errors.NewInputError("Cannot remove git hook", err.Error(), ""), globals.JSON)
		}
		if !globals.Quiet {
			ui.Success("Git hook removed.")
		}
		return
	}

	if err := installHook(hookPath, *force); err != nil {
		errors.FatalError(errors.NewInputError("Cannot install git hook", err.Error(), "Run: inblock install-hook --force"), globals.JSON)
	}
	if !globals.Quiet {
		ui.Successf("Git hook installed: %s", hookPath)
	}
}

// findGitDir walks up from dir to the enclosing .git directory. A .git file
// (worktree) is followed to the gitdir it names.
func findGitDir(dir string) (string, error) {
	for {
		gitPath := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			if info.IsDir() {
				return gitPath, nil
			}
			content, err := os.ReadFile(gitPath) //nolint:gosec // G304: path built from repo dir
			if err != nil {
				return "", fmt.Errorf("cannot read .git file: %w", err)
			}
			var gitdir string
			if _, err := fmt.Sscanf(string(content), "gitdir: %s", &gitdir); err == nil {
				if filepath.IsAbs(gitdir) {
					return gitdir, nil
				}
				return filepath.Join(dir, gitdir), nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("not a git repository (or any of the parent directories)")
}

// installHook writes the pre-commit hook. An existing foreign hook is kept
// unless force is set; an existing inblock hook is left as is.
func installHook(hookPath string, force bool) error {
	if err := os.MkdirAll(filepath.Dir(hookPath), 0750); err != nil {
		return fmt.Errorf("cannot create hooks directory: %w", err)
	}

	if content, err := os.ReadFile(hookPath); err == nil && !force { //nolint:gosec // G304: hook path below .git
		if isInblockHook(string(content)) {
			return nil
		}
		return fmt.Errorf("hook already exists at %s", hookPath)
	}

	if err := os.WriteFile(hookPath, []byte(preCommitHookContent), 0755); err != nil { //nolint:gosec // G306: hooks must be executable
		return fmt.Errorf("cannot write hook: %w", err)
	}
	return nil
}

// removeHook deletes the hook only when inblock installed it.
func removeHook(hookPath string) error {
	content, err := os.ReadFile(hookPath) //nolint:gosec // G304: hook path below .git
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("no hook found at %s", hookPath)
		}
		return fmt.Errorf("cannot read hook: %w", err)
	}
	if !isInblockHook(string(content)) {
		return fmt.Errorf("hook at %s was not installed by inblock", hookPath)
	}
	if err := os.Remove(hookPath); err != nil {
		return fmt.Errorf("cannot remove hook: %w", err)
	}
	return nil
}

func isInblockHook(content string) bool {
	return strings.Contains(content, hookMarker)
}
