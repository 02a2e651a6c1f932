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
	stderrors "errors"
	"log/slog"

	"github.com/kraklabs/kex/internal/errors"
	"github.com/kraklabs/kex/internal/output"
	"github.com/kraklabs/kex/pkg/discovery"
	"github.com/kraklabs/kex/pkg/extraction"
	"github.com/kraklabs/kex/pkg/materialize"
	"github.com/kraklabs/kex/pkg/scrub"
)

// Each stage returns its summary, or a *errors.UserError when the stage could
// not run to completion. Per-file failures only show up in the summary.

func collectStage(ctx context.Context, cfg *Config, logger *slog.Logger) (*output.CollectSummary, error) {
	collector := discovery.NewCollector(discovery.Config{
		Root:       cfg.SourceDir,
		Extensions: cfg.Extensions,
		Marker:     cfg.Marker,
		Exclude:    cfg.Exclude,
	}, logger)

	inv, err := collector.Collect(ctx)
	if err != nil {
		if stderrors.Is(err, discovery.ErrRootNotFound) || stderrors.Is(err, discovery.ErrRootNotDir) {
			return nil, errors.NewNotFoundError(
				"Source directory not found",
				err.Error(),
				"Set source_dir in kex.yaml to the directory holding your CUDA projects",
				err,
			)
		}
		return nil, interrupted(ctx, "Discovery", err)
	}

	path := cfg.InventoryPath()
	if err := discovery.Save(path, inv); err != nil {
		return nil, errors.NewInternalError("Cannot write inventory", err.Error(), "Check that output_root is writable", err)
	}

	return &output.CollectSummary{
		SourceDirectory: inv.SourceDirectory,
		Inventory:       path,
		Candidates:      collector.Candidates(),
		Files:           inv.TotalFiles,
		Skipped:         collector.SkipReasons(),
	}, nil
}

type extractOptions struct {
	Workers    int
	Limit      int
	Audit      bool
	OnFileDone func(string, bool)
}

// loadExtractInputs reads the prompts and the inventory; both must exist
// before any model call is made.
func loadExtractInputs(cfg *Config, limit int) (*extraction.Prompts, []string, error) {
	prompts, err := extraction.LoadPrompts(cfg.Prompts.System, cfg.Prompts.Task)
	if err != nil {
		return nil, nil, errors.NewConfigError(
			"Cannot load prompt templates",
			err.Error(),
			"Set prompts.system and prompts.task in kex.yaml to existing files",
			err,
		)
	}

	inv, err := discovery.Load(cfg.InventoryPath())
	if err != nil {
		return nil, nil, errors.NewNotFoundError(
			"Inventory not found",
			err.Error(),
			"Run 'kex collect' first",
			err,
		)
	}

	files := inv.Files
	if limit > 0 && limit < len(files) {
		files = files[:limit]
	}
	return prompts, files, nil
}

func extractStage(ctx context.Context, cfg *Config, gen extraction.Generator, prompts *extraction.Prompts, files []string, opts extractOptions, logger *slog.Logger) (*output.ExtractSummary, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = cfg.MaxWorkers
	}

	ex := extraction.New(gen, prompts, extraction.Options{
		Workers:    workers,
		Marker:     cfg.Marker,
		Audit:      opts.Audit || cfg.Audit,
		OnFileDone: opts.OnFileDone,
		Logger:     logger,
	})

	res, err := ex.ExtractBatch(ctx, files, cfg.ResultsDir())
	if res == nil {
		return nil, errors.NewInternalError("Cannot start extraction", err.Error(), "Check that output_root is writable", err)
	}
	summary := output.NewExtractSummary(res, len(files), cfg.ResultsDir())
	if err != nil {
		return &summary, interrupted(ctx, "Extraction", err)
	}
	return &summary, nil
}

func materializeStage(ctx context.Context, cfg *Config, logger *slog.Logger) (*output.MaterializeSummary, error) {
	m, err := materialize.New(cfg.ResultsDir(), cfg.KernelsDir(), materialize.Options{
		KernelExt: cfg.KernelExtension,
		Logger:    logger,
	})
	if err != nil {
		if stderrors.Is(err, materialize.ErrResultsDirNotFound) {
			return nil, errors.NewNotFoundError(
				"Extraction results not found",
				err.Error(),
				"Run 'kex extract' first",
				err,
			)
		}
		return nil, errors.NewInternalError("Cannot prepare kernel directory", err.Error(), "", err)
	}

	manifest, err := m.Run(ctx)
	if err != nil {
		return nil, interrupted(ctx, "Materialization", err)
	}
	return &output.MaterializeSummary{ManifestPath: m.ManifestPath(), Manifest: manifest}, nil
}

func scrubStage(dir, ext string) (*output.ScrubSummary, error) {
	report, err := scrub.Dir(dir, ext)
	if err != nil {
		if stderrors.Is(err, scrub.ErrDirNotFound) {
			return nil, errors.NewNotFoundError(
				"Kernel directory not found",
				err.Error(),
				"Pass an existing directory or run 'kex materialize' first",
				err,
			)
		}
		return nil, errors.NewInternalError("Cannot scrub kernels", err.Error(), "", err)
	}
	summary := output.NewScrubSummary(report)
	return &summary, nil
}
