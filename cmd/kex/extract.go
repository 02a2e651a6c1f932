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
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/kex/internal/errors"
	"github.com/kraklabs/kex/internal/output"
	"github.com/kraklabs/kex/internal/ui"
)

// runExtract executes 'kex extract': send every inventoried file to the model
// and save one artifact per file under <output_root>/extraction_results.
//
// Flags:
//   - --workers: concurrent files (default max_workers)
//   - --limit: only the first N inventoried files
//   - --audit: compare answers against a local tree-sitter scan
//   - --metrics-addr: serve Prometheus metrics while running
//
// Examples:
//
//	kex extract
//	kex extract --workers 16 --limit 100 --audit
func runExtract(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	workers := fs.Int("workers", 0, "Concurrent files (default: max_workers from kex.yaml)")
	limit := fs.Int("limit", 0, "Process only the first N inventoried files (0 = all)")
	audit := fs.Bool("audit", false, "Log kernels the model missed, found by a local scan")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: kex extract [options]

Reads the inventory written by 'kex collect' and asks the configured model
for every __global__ kernel of each file. Failed files are reported and the
batch continues.

Options:
`)
		fs.PrintDefaults()
	}
	parseFlags(fs, args)

	if *workers < 0 || *limit < 0 {
		errors.FatalError(errors.NewInputError(
			"Invalid option value",
			"--workers and --limit must not be negative",
			"Use a positive number, or 0 for the default",
		), globals.JSON)
	}

	cfg := mustLoadConfig(globals)
	logger := newLogger(globals)
	startMetrics(*metricsAddr, logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	prompts, files, err := loadExtractInputs(cfg, *limit)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	client, err := newClient(cfg.LLM, logger)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	logger.Info("extract.client", "provider", client.Name(), "model", client.Model(), "files", len(files))

	bar := NewProgressBar(NewProgressConfig(globals), int64(len(files)), "Extracting")
	summary, err := extractStage(ctx, cfg, client, prompts, files, extractOptions{
		Workers:    *workers,
		Audit:      *audit,
		OnFileDone: fileTicker(bar),
	}, logger)
	finishProgress(bar)

	if summary != nil {
		emit(globals, summary, func() { printExtract(summary) })
	}
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
}

func printExtract(s *output.ExtractSummary) {
	ui.Header("Step 2: Extract kernels")
	stats := []ui.Stat{
		{Label: "Files", Value: s.Files},
		{Label: "Processed", Value: s.Processed},
		{Label: "Failed", Value: s.Failed, Warn: true},
		{Label: "Skipped", Value: s.Skipped, Warn: true},
		{Label: "Kernels", Value: s.Kernels},
	}
	if s.NotRun > 0 {
		stats = append(stats, ui.Stat{Label: "Not run", Value: s.NotRun, Warn: true})
	}
	if s.MissedKernels > 0 {
		stats = append(stats, ui.Stat{Label: "Missed (audit)", Value: s.MissedKernels, Warn: true})
	}
	stats = append(stats, ui.Stat{Label: "Elapsed", Value: (time.Duration(s.ElapsedMS) * time.Millisecond).String()})
	ui.Stats(stats...)

	for _, f := range s.Failures {
		ui.Errorf("%s (%s): %s", f.SourceFile, f.Stage, f.Error)
	}
	if s.Failed > 0 {
		ui.Warningf("%d of %d files failed; re-run to retry them", s.Failed, s.Files)
	}
	ui.Successf("Results saved to %s", ui.DimText(s.OutputDir))
}
