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
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/kex/internal/errors"
	kextest "github.com/kraklabs/kex/internal/testing"
)

func testConfig(t *testing.T, sources map[string]string) *Config {
	t.Helper()
	sys, task := kextest.WritePrompts(t)
	cfg := DefaultConfig()
	cfg.SourceDir = kextest.WriteTree(t, sources)
	cfg.OutputRoot = t.TempDir()
	cfg.Prompts = PromptsConfig{System: sys, Task: task}
	cfg.MaxWorkers = 2
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPipeline_EndToEnd(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"a.cu":     "__global__ void foo() {}\n__global__ void bar() {}\n",
		"b.cu":     "__global__ void foo() {}\n",
		"host.cu":  "void host() {}\n",
		"notes.md": "__global__",
	})
	gen := &kextest.ScriptedGenerator{Rules: []kextest.Rule{
		{Match: "/a.cu", Reply: kextest.KernelsJSON(t, "", "foo", "bar")},
		{Match: "/b.cu", Reply: "```json\n" + kextest.KernelsJSON(t, "", "foo") + "\n```"},
	}}

	summary, err := pipeline(context.Background(), cfg, gen, pipelineOptions{
		scrub:   true,
		globals: GlobalFlags{Quiet: true},
	}, discardLogger())
	require.NoError(t, err)

	require.NotNil(t, summary.Collect)
	assert.Equal(t, 2, summary.Collect.Files)

	require.NotNil(t, summary.Extract)
	assert.Equal(t, 2, summary.Extract.Processed)
	assert.Equal(t, 0, summary.Extract.Failed)
	assert.Equal(t, 3, summary.Extract.Kernels)

	require.NotNil(t, summary.Materialize)
	m := summary.Materialize.Manifest
	assert.Equal(t, 3, m.SuccessfullySaved)
	assert.Equal(t, 1, m.ConflictsDetected)

	var names []string
	for _, p := range m.SavedFiles {
		names = append(names, filepath.Base(p))
	}
	sort.Strings(names)
	assert.Equal(t, []string{"a_foo.cu", "b_foo.cu", "bar.cu"}, names)

	require.NotNil(t, summary.Scrub)
	assert.Equal(t, 3, summary.Scrub.Total)
	assert.Equal(t, 0, summary.Scrub.Modified)
}

func TestPipeline_PartialExtractionStillMaterializes(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"ok.cu":   "__global__ void ok() {}\n",
		"down.cu": "__global__ void down() {}\n",
	})
	gen := &kextest.ScriptedGenerator{
		Rules:   []kextest.Rule{{Match: "/down.cu", Absent: true}},
		Default: kextest.KernelsJSON(t, "", "ok"),
	}

	summary, err := pipeline(context.Background(), cfg, gen, pipelineOptions{globals: GlobalFlags{Quiet: true}}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Extract.Processed)
	assert.Equal(t, 1, summary.Extract.Failed)
	require.Len(t, summary.Extract.Failures, 1)
	assert.Equal(t, "generate", summary.Extract.Failures[0].Stage)
	assert.Equal(t, 1, summary.Materialize.Manifest.SuccessfullySaved)
	assert.Nil(t, summary.Scrub)
}

func TestPipeline_MissingSourceDir(t *testing.T) {
	cfg := testConfig(t, nil)
	cfg.SourceDir = filepath.Join(t.TempDir(), "nope")

	summary, err := pipeline(context.Background(), cfg, &kextest.ScriptedGenerator{}, pipelineOptions{}, discardLogger())
	require.Error(t, err)
	assert.Equal(t, errors.ExitNotFound, errors.ExitCode(err))
	assert.Nil(t, summary.Collect)
}

func TestPipeline_MissingPrompt(t *testing.T) {
	cfg := testConfig(t, map[string]string{"a.cu": "__global__ void a() {}"})
	cfg.Prompts.Task = filepath.Join(t.TempDir(), "missing.txt")
	gen := &kextest.ScriptedGenerator{Default: `{"kernels": []}`}

	summary, err := pipeline(context.Background(), cfg, gen, pipelineOptions{}, discardLogger())
	require.Error(t, err)
	assert.Equal(t, errors.ExitConfig, errors.ExitCode(err))
	assert.NotNil(t, summary.Collect)
	assert.Nil(t, summary.Extract)
	assert.Zero(t, gen.Calls())
}

func TestStages_MissingPreviousArtifacts(t *testing.T) {
	cfg := testConfig(t, nil)

	_, _, err := loadExtractInputs(cfg, 0)
	require.Error(t, err)
	assert.Equal(t, errors.ExitNotFound, errors.ExitCode(err))

	_, err = materializeStage(context.Background(), cfg, discardLogger())
	require.Error(t, err)
	assert.Equal(t, errors.ExitNotFound, errors.ExitCode(err))

	_, err = scrubStage(cfg.KernelsDir(), ".cu")
	require.Error(t, err)
	assert.Equal(t, errors.ExitNotFound, errors.ExitCode(err))
}

func TestLoadExtractInputs_Limit(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"a.cu": "__global__ void a() {}",
		"b.cu": "__global__ void b() {}",
		"c.cu": "__global__ void c() {}",
	})
	_, err := collectStage(context.Background(), cfg, discardLogger())
	require.NoError(t, err)

	_, files, err := loadExtractInputs(cfg, 2)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.cu", filepath.Base(files[0]))

	_, err = os.Stat(cfg.InventoryPath())
	assert.NoError(t, err)
}

func TestExtractStage_Interrupted(t *testing.T) {
	cfg := testConfig(t, map[string]string{"a.cu": "__global__ void a() {}"})
	_, err := collectStage(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	prompts, files, err := loadExtractInputs(cfg, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := extractStage(ctx, cfg, &kextest.ScriptedGenerator{}, prompts, files, extractOptions{}, discardLogger())
	require.Error(t, err)
	assert.Equal(t, errors.ExitInterrupted, errors.ExitCode(err))
	require.NotNil(t, summary)
	assert.Zero(t, summary.Processed)
}
