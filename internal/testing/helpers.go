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

package testing

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kraklabs/kex/pkg/artifact"
	"github.com/kraklabs/kex/pkg/llm"
)

// WriteTree creates files under a fresh temporary directory and returns its
// path. Keys are slash-separated paths relative to the root.
//
// Example:
//
//	root := testing.WriteTree(t, map[string]string{
//	    "ops/add.cu": "__global__ void add() {}",
//	})
func WriteTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for rel, content := range files {
		WriteFile(t, filepath.Join(root, filepath.FromSlash(rel)), content)
	}
	return root
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// WriteResult writes an extraction artifact named <name>.json into dir.
func WriteResult(t *testing.T, dir, name string, res artifact.ExtractionResult) string {
	t.Helper()

	path := filepath.Join(dir, name+artifact.ResultFileExt)
	if err := artifact.WriteJSON(path, res); err != nil {
		t.Fatalf("failed to write result %s: %v", path, err)
	}
	return path
}

// Result builds an extraction result whose kernels are named names, each
// with a small body.
func Result(source string, names ...string) artifact.ExtractionResult {
	kernels := make([]artifact.KernelRecord, 0, len(names))
	for _, n := range names {
		kernels = append(kernels, artifact.KernelRecord{
			FuncName:    n,
			FuncContent: "__global__ void " + n + "() {}",
		})
	}
	return artifact.ExtractionResult{SourceFile: source, Kernels: kernels}
}

// KernelsJSON renders a model response listing the given kernel names.
func KernelsJSON(t *testing.T, source string, names ...string) string {
	t.Helper()

	data, err := json.Marshal(Result(source, names...))
	if err != nil {
		t.Fatalf("failed to marshal kernels: %v", err)
	}
	return string(data)
}

// WritePrompts writes a system prompt and a task template into a temporary
// directory and returns their paths.
func WritePrompts(t *testing.T) (systemPath, taskPath string) {
	t.Helper()

	dir := t.TempDir()
	systemPath = filepath.Join(dir, "system_prompt.txt")
	taskPath = filepath.Join(dir, "task_prompt.txt")
	WriteFile(t, systemPath, "You extract CUDA kernels and answer in JSON.")
	WriteFile(t, taskPath, "File: {file_path}\n\n{code_content}\n\nReply as {{\"kernels\": [...]}}")
	return systemPath, taskPath
}

// ScriptedGenerator answers prompts from a table of rules. The first rule
// whose Match substring occurs in the prompt wins; unmatched prompts get
// Default. A rule with Absent set yields an absent result. It is safe for
// concurrent use and records every prompt it receives.
type ScriptedGenerator struct {
	Rules   []Rule
	Default string

	mu       sync.Mutex
	prompts  []string
	inFlight int
	peak     int
}

// Rule is one scripted response.
type Rule struct {
	Match  string
	Reply  string
	Absent bool
}

// Generate implements extraction.Generator.
func (g *ScriptedGenerator) Generate(ctx context.Context, prompt, system string) llm.Result {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.inFlight++
	if g.inFlight > g.peak {
		g.peak = g.inFlight
	}
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.inFlight--
		g.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return llm.Absent(err)
	}
	for _, r := range g.Rules {
		if strings.Contains(prompt, r.Match) {
			if r.Absent {
				return llm.Absent(errors.New("scripted absent"))
			}
			return llm.Ok(r.Reply)
		}
	}
	if g.Default == "" {
		return llm.Absent(errors.New("no scripted reply"))
	}
	return llm.Ok(g.Default)
}

// Calls returns how many prompts the generator has received.
func (g *ScriptedGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// Prompts returns a copy of the received prompts.
func (g *ScriptedGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

// PeakConcurrency returns the highest number of simultaneous Generate calls.
func (g *ScriptedGenerator) PeakConcurrency() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}
