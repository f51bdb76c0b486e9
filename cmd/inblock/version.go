// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/kraklabs/inblock/internal/errors"
	"github.com/kraklabs/inblock/internal/output"
)

type versionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

func runVersion(_ []string, globals GlobalFlags) {
	if err := printVersion(os.Stdout, globals.JSON); err != nil {
		errors.FatalError(err, globals.JSON)
	}
}

func printVersion(w io.Writer, jsonOutput bool) error {
	info := versionInfo{Version: version, Commit: commit, Date: date, Go: runtime.Version()}
	if jsonOutput {
		return output.JSONTo(w, info)
	}
	fmt.Fprintf(w, "inblock version %s\n", info.Version)
	fmt.Fprintf(w, "commit: %s\n", info.Commit)
	fmt.Fprintf(w, "built: %s\n", info.Date)
	return nil
}
