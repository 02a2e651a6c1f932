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

// Package output renders --json stage summaries.
//
// Every command builds one of the summary types below and hands it to JSON
// when --json is set; the human-readable form is printed by package ui.
// Errors go through internal/errors, never through this package.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/kraklabs/kex/pkg/artifact"
	"github.com/kraklabs/kex/pkg/extraction"
	"github.com/kraklabs/kex/pkg/scrub"
)

// JSON writes data to stdout as indented JSON.
func JSON(data any) error {
	return JSONTo(os.Stdout, data)
}

// JSONTo writes data to w as indented JSON. HTML escaping is off so kernel
// snippets keep their angle brackets.
func JSONTo(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	return nil
}

// CollectSummary describes one discovery run.
type CollectSummary struct {
	SourceDirectory string         `json:"source_directory"`
	Inventory       string         `json:"inventory"`
	Candidates      int            `json:"candidates"`
	Files           int            `json:"files"`
	Skipped         map[string]int `json:"skipped,omitempty"`
}

// Failure is one failed file of an extraction batch.
type Failure struct {
	SourceFile string `json:"source_file"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
	Preview    string `json:"preview,omitempty"`
}

// ExtractSummary describes one extraction batch.
type ExtractSummary struct {
	RunID         string    `json:"run_id"`
	OutputDir     string    `json:"output_dir"`
	Files         int       `json:"files"`
	Processed     int       `json:"processed"`
	Failed        int       `json:"failed"`
	Skipped       int       `json:"skipped"`
	NotRun        int       `json:"not_run,omitempty"`
	Kernels       int       `json:"kernels"`
	MissedKernels int       `json:"missed_kernels,omitempty"`
	ElapsedMS     int64     `json:"elapsed_ms"`
	Failures      []Failure `json:"failures,omitempty"`
}

// NewExtractSummary converts a batch result. Failures are sorted by source
// path.
func NewExtractSummary(res *extraction.BatchResult, files int, outputDir string) ExtractSummary {
	s := ExtractSummary{
		RunID:         res.RunID,
		OutputDir:     outputDir,
		Files:         files,
		Processed:     res.Processed,
		Failed:        res.Failed,
		Skipped:       res.Skipped,
		NotRun:        res.NotRun,
		Kernels:       res.TotalKernels,
		MissedKernels: res.MissedKernels,
		ElapsedMS:     res.Elapsed.Milliseconds(),
	}
	for _, f := range res.Failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		s.Failures = append(s.Failures, Failure{SourceFile: f.SourceFile, Stage: f.Stage, Error: msg, Preview: f.Preview})
	}
	sort.Slice(s.Failures, func(i, j int) bool { return s.Failures[i].SourceFile < s.Failures[j].SourceFile })
	return s
}

// MaterializeSummary describes one materialization run.
type MaterializeSummary struct {
	ManifestPath string             `json:"manifest_path"`
	Manifest     *artifact.Manifest `json:"manifest"`
}

// ScrubFile is the outcome for one scrubbed file.
type ScrubFile struct {
	Path    string `json:"path"`
	Changed bool   `json:"changed"`
	Error   string `json:"error,omitempty"`
}

// ScrubSummary describes one header scrub.
type ScrubSummary struct {
	Dir      string      `json:"dir"`
	Total    int         `json:"total"`
	Modified int         `json:"modified"`
	Failed   int         `json:"failed"`
	Files    []ScrubFile `json:"files"`
}

// NewScrubSummary converts a scrub report.
func NewScrubSummary(r *scrub.Report) ScrubSummary {
	s := ScrubSummary{
		Dir:      r.Dir,
		Total:    len(r.Files),
		Modified: r.Modified(),
		Failed:   r.Failed(),
		Files:    make([]ScrubFile, 0, len(r.Files)),
	}
	for _, f := range r.Files {
		sf := ScrubFile{Path: f.Path, Changed: f.Changed}
		if f.Err != nil {
			sf.Error = f.Err.Error()
		}
		s.Files = append(s.Files, sf)
	}
	return s
}

// RunSummary aggregates every stage of `kex run`.
type RunSummary struct {
	Collect     *CollectSummary     `json:"collect,omitempty"`
	Extract     *ExtractSummary     `json:"extract,omitempty"`
	Materialize *MaterializeSummary `json:"materialize,omitempty"`
	Scrub       *ScrubSummary       `json:"scrub,omitempty"`
}

// PingSummary is the result of a single test generation.
type PingSummary struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	OK        bool   `json:"ok"`
	Attempts  int    `json:"attempts"`
	Reply     string `json:"reply,omitempty"`
	Error     string `json:"error,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}
