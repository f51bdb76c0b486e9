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

package kotlin

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/kotlin"

	"github.com/kraklabs/inblock/pkg/syntax"
)

// DefaultScriptExtensions are the file extensions parsed as Kotlin scripts.
var DefaultScriptExtensions = []string{".kts"}

// Options configures a Parser.
type Options struct {
	Logger *slog.Logger

	// ScriptExtensions overrides DefaultScriptExtensions.
	ScriptExtensions []string
}

// Parser turns Kotlin source into syntax specs. It is safe for concurrent
// use; parses are serialized on one tree-sitter parser.
type Parser struct {
	logger     *slog.Logger
	scriptExts []string

	mu sync.Mutex
	ts *sitter.Parser
}

// NewParser creates a Kotlin parser.
func NewParser(opts Options) *Parser {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	exts := opts.ScriptExtensions
	if len(exts) == 0 {
		exts = DefaultScriptExtensions
	}
	ts := sitter.NewParser()
	ts.SetLanguage(kotlin.GetLanguage())
	return &Parser{logger: logger, scriptExts: exts, ts: ts}
}

// IsScript reports whether path is parsed as a script.
func (p *Parser) IsScript(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range p.scriptExts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// Parse converts src into a spec rooted at a file node. Syntax errors do not
// fail the parse; the affected regions come back as generic expressions.
func (p *Parser) Parse(ctx context.Context, path string, src []byte) (*syntax.Spec, error) {
	start := time.Now()

	p.mu.Lock()
	tree, err := p.ts.ParseCtx(ctx, nil, src)
	p.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	errCount := 0
	if root.HasError() {
		if errCount = countErrors(root); errCount > 0 {
			p.logger.Warn("kotlin.syntax_errors",
				"path", path,
				"error_count", errCount,
			)
		}
	}

	c := &converter{src: src}
	spec := c.file(root, p.IsScript(path))
	recordParse(time.Since(start), errCount)
	return spec, nil
}

// Close releases the tree-sitter parser.
func (p *Parser) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ts.Close()
}

func countErrors(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	count := 0
	if n.IsError() || n.IsMissing() {
		count++
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		count += countErrors(n.Child(i))
	}
	return count
}
