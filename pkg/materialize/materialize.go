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

// Package materialize writes every extracted kernel to its own file under a
// collision-free name and records the run in a manifest.
//
// Kernel names that more than one source file produced are prefixed with the
// source's base name (foo from a.cu and b.cu becomes a_foo and b_foo). When
// two such sources also share a base name, a short hash of the full source
// path is added as well, so no kernel file silently replaces another.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kraklabs/kex/pkg/artifact"
)

// ErrResultsDirNotFound is returned by New when the results directory is
// missing or not a directory.
var ErrResultsDirNotFound = errors.New("extraction results directory not found")

// Skip reasons.
const (
	SkipInvalid = "invalid"
	SkipWrite   = "write"
)

// Options tunes a Materializer. Zero values select defaults.
type Options struct {
	KernelExt string // default artifact.DefaultKernExt
	Logger    *slog.Logger
}

// Materializer turns a directory of extraction artifacts into kernel files.
type Materializer struct {
	resultsDir string
	outputDir  string
	ext        string
	logger     *slog.Logger
}

// New validates resultsDir and creates outputDir.
func New(resultsDir, outputDir string, opts Options) (*Materializer, error) {
	info, err := os.Stat(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResultsDirNotFound, resultsDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrResultsDirNotFound, resultsDir)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	ext := opts.KernelExt
	if ext == "" {
		ext = artifact.DefaultKernExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{resultsDir: resultsDir, outputDir: outputDir, ext: ext, logger: logger}, nil
}

// ManifestPath is where Run writes the manifest.
func (m *Materializer) ManifestPath() string {
	return filepath.Join(m.outputDir, artifact.ManifestFile)
}

// Run loads every artifact, writes one file per valid kernel, then writes the
// manifest. Unloadable artifacts, invalid kernels and failed kernel writes are
// logged and left out of the counts. An error is returned only if the
// results directory cannot be listed, ctx is cancelled, or the manifest
// cannot be written; no manifest exists in those cases.
func (m *Materializer) Run(ctx context.Context) (*artifact.Manifest, error) {
	start := time.Now()

	results, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		m.logger.Warn("materialize.empty", "results_dir", m.resultsDir)
	}

	conflicts := BuildConflicts(results)
	for _, name := range conflicts.Names() {
		m.logger.Warn("materialize.conflict", "kernel", name, "sources", conflicts[name])
	}

	manifest := &artifact.Manifest{
		TotalSourceFiles:  len(results),
		ConflictsDetected: len(conflicts),
		SavedFiles:        []string{},
	}
	used := make(nameSet)

	for _, r := range results {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("materialize interrupted: %w", err)
		}
		src := sourceOf(r)
		manifest.TotalKernelsExtracted += len(r.Kernels)

		for _, k := range r.Kernels {
			if !k.Valid() {
				recordSkipped(SkipInvalid)
				m.logger.Warn("materialize.kernel.invalid", "source", src, "kernel", k.FuncName)
				continue
			}

			base := conflicts.FileName(k.FuncName, src)
			name := used.claim(base)
			if name != base {
				m.logger.Warn("materialize.kernel.renamed", "source", src, "kernel", k.FuncName, "name", name)
			}

			path := filepath.Join(m.outputDir, name+m.ext)
			if err := artifact.WriteFileAtomic(path, []byte(StripIncludes(k.FuncContent)), 0644); err != nil {
				recordSkipped(SkipWrite)
				m.logger.Error("materialize.kernel.write_error", "source", src, "kernel", k.FuncName, "path", path, "err", err)
				continue
			}

			recordSaved()
			manifest.SuccessfullySaved++
			manifest.SavedFiles = append(manifest.SavedFiles, path)
			m.logger.Debug("materialize.kernel.saved", "kernel", k.FuncName, "path", path)
		}
	}

	if err := artifact.WriteJSON(m.ManifestPath(), manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	recordRun(len(conflicts), time.Since(start))
	m.logger.Info("materialize.complete",
		"source_files", manifest.TotalSourceFiles,
		"kernels", manifest.TotalKernelsExtracted,
		"saved", manifest.SuccessfullySaved,
		"conflicts", manifest.ConflictsDetected,
		"output_dir", m.outputDir,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return manifest, nil
}

// load reads every *.json artifact in directory order.
func (m *Materializer) load(ctx context.Context) ([]*artifact.ExtractionResult, error) {
	entries, err := os.ReadDir(m.resultsDir)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	var results []*artifact.ExtractionResult
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != artifact.ResultFileExt {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("materialize interrupted: %w", err)
		}

		path := filepath.Join(m.resultsDir, e.Name())
		var r artifact.ExtractionResult
		if err := artifact.ReadJSON(path, &r); err != nil {
			recordLoadFailed()
			m.logger.Error("materialize.load.error", "path", path, "err", err)
			continue
		}
		results = append(results, &r)
	}

	m.logger.Info("materialize.load.complete", "results", len(results), "results_dir", m.resultsDir)
	return results, nil
}
