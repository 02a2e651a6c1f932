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
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/kex/internal/errors"
	"github.com/kraklabs/kex/internal/output"
	"github.com/kraklabs/kex/pkg/extraction"
)

// runPipeline executes 'kex run': collect, extract, materialize and scrub
// with one configuration. A stage that cannot complete stops the pipeline;
// the summaries of the finished stages are still printed.
func runPipeline(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	workers := fs.Int("workers", 0, "Concurrent files during extraction (default: max_workers)")
	limit := fs.Int("limit", 0, "Extract only the first N inventoried files (0 = all)")
	audit := fs.Bool("audit", false, "Log kernels the model missed")
	skipScrub := fs.Bool("skip-scrub", false, "Keep framework includes in the kernel files")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: kex run [options]

Runs collect, extract, materialize and scrub in order.

Options:
`)
		fs.PrintDefaults()
	}
	parseFlags(fs, args)

	cfg := mustLoadConfig(globals)
	logger := newLogger(globals)
	startMetrics(*metricsAddr, logger)
	ctx, cancel := signalContext(logger)
	defer cancel()

	// Prompts and backend are checked before the first stage runs.
	if _, err := extraction.LoadPrompts(cfg.Prompts.System, cfg.Prompts.Task); err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load prompt templates",
			err.Error(),
			"Set prompts.system and prompts.task in kex.yaml to existing files",
			err,
		), globals.JSON)
	}
	client, err := newClient(cfg.LLM, logger)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	summary, err := pipeline(ctx, cfg, client, pipelineOptions{
		extract: extractOptions{Workers: *workers, Limit: *limit, Audit: *audit},
		scrub:   !*skipScrub,
		globals: globals,
	}, logger)

	emit(globals, summary, func() { printRun(summary) })
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
}

type pipelineOptions struct {
	extract extractOptions
	scrub   bool
	globals GlobalFlags
}

// pipeline runs the stages in order and returns what finished.
func pipeline(ctx context.Context, cfg *Config, gen extraction.Generator, opts pipelineOptions, logger *slog.Logger) (*output.RunSummary, error) {
	var (
		summary output.RunSummary
		err     error
	)

	if summary.Collect, err = collectStage(ctx, cfg, logger); err != nil {
		return &summary, err
	}

	prompts, files, err := loadExtractInputs(cfg, opts.extract.Limit)
	if err != nil {
		return &summary, err
	}
	bar := NewProgressBar(NewProgressConfig(opts.globals), int64(len(files)), "Extracting")
	opts.extract.OnFileDone = fileTicker(bar)
	summary.Extract, err = extractStage(ctx, cfg, gen, prompts, files, opts.extract, logger)
	finishProgress(bar)
	if err != nil {
		return &summary, err
	}

	if summary.Materialize, err = materializeStage(ctx, cfg, logger); err != nil {
		return &summary, err
	}

	if opts.scrub {
		if summary.Scrub, err = scrubStage(cfg.KernelsDir(), cfg.KernelExtension); err != nil {
			return &summary, err
		}
	}
	return &summary, nil
}

func printRun(s *output.RunSummary) {
	if s.Collect != nil {
		printCollect(s.Collect)
	}
	if s.Extract != nil {
		printExtract(s.Extract)
	}
	if s.Materialize != nil {
		printMaterialize(s.Materialize)
	}
	if s.Scrub != nil {
		printScrub(s.Scrub)
	}
}
