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

package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/kex/pkg/artifact"
	"github.com/kraklabs/kex/pkg/discovery"
	"github.com/kraklabs/kex/pkg/kernelscan"
	"github.com/kraklabs/kex/pkg/llm"
)

// DefaultWorkers is the default number of files extracted concurrently.
const DefaultWorkers = 8

// Failure stages.
const (
	StageRead     = "read"
	StageGenerate = "generate"
	StageParse    = "parse"
	StageWrite    = "write"
)

// Generator produces a completion for a prompt. *llm.Client implements it.
type Generator interface {
	Generate(ctx context.Context, prompt, system string) llm.Result
}

// Options tunes an Extractor. Zero values select defaults.
type Options struct {
	Workers int
	Marker  string // re-checked before scheduling; default discovery.DefaultMarker

	// Audit compares each result against a local scan of the source and
	// logs kernels the model missed.
	Audit bool

	// OnFileDone, if set, is called once per input file that was looked at:
	// from the worker for scheduled files, and with ok=false for files the
	// prefilter dropped. Files never started after cancellation get no call.
	// It must be safe for concurrent use.
	OnFileDone func(sourceFile string, ok bool)

	Logger *slog.Logger
}

// Failure describes one file that produced no saved result.
type Failure struct {
	SourceFile string
	Stage      string
	Err        error
	Preview    string // raw response preview for parse failures
}

// BatchResult aggregates one ExtractBatch run. Partial success is normal:
// Processed + Failed + Skipped + NotRun always equals the number of input
// files.
type BatchResult struct {
	RunID     string
	Processed int
	Failed    int
	Skipped   int
	NotRun    int // scheduled but never started because ctx was cancelled

	TotalKernels  int
	MissedKernels int
	Elapsed       time.Duration

	Results  map[string]*artifact.ExtractionResult // keyed by source path
	Failures []Failure
}

// Extractor runs the per-file extraction over a worker pool.
type Extractor struct {
	gen     Generator
	prompts *Prompts
	opts    Options
	logger  *slog.Logger
}

// New creates an Extractor. The prompts are loaded once by the caller and
// shared by every file.
func New(gen Generator, prompts *Prompts, opts Options) *Extractor {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Marker == "" {
		opts.Marker = discovery.DefaultMarker
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{gen: gen, prompts: prompts, opts: opts, logger: logger}
}

// aggregate is the only state shared between workers. Each source path is
// inserted by exactly one worker, so insertion safety is all it needs.
type aggregate struct {
	mu       sync.Mutex
	results  map[string]*artifact.ExtractionResult
	failures []Failure
	kernels  int
	missed   int
}

func (a *aggregate) addResult(src string, res *artifact.ExtractionResult, missed int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[src] = res
	a.kernels += len(res.Kernels)
	a.missed += missed
}

func (a *aggregate) addFailure(f Failure) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures = append(a.failures, f)
}

// ExtractBatch extracts every file and writes one artifact per success into
// outputDir. Per-file failures are recorded in the result and never abort the
// batch. An error is returned only when outputDir cannot be created or ctx is
// cancelled; in the latter case the partial result is returned as well.
func (e *Extractor) ExtractBatch(ctx context.Context, files []string, outputDir string) (*BatchResult, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	start := time.Now()
	runID := uuid.NewString()
	logger := e.logger.With("run_id", runID)

	scheduled := e.prefilter(files)
	skipped := len(files) - len(scheduled)
	recordSkipped(skipped)
	paths := artifact.ResultPaths(outputDir, scheduled)

	logger.Info("extract.batch.start",
		"files", len(files),
		"scheduled", len(scheduled),
		"skipped", skipped,
		"workers", e.opts.Workers,
		"output_dir", outputDir,
	)

	agg := &aggregate{results: make(map[string]*artifact.ExtractionResult, len(scheduled))}

	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	started := 0
	for _, src := range scheduled {
		if ctx.Err() != nil {
			break
		}
		started++
		g.Go(func() error {
			e.processFile(ctx, logger, agg, src, paths[src])
			return nil
		})
	}
	_ = g.Wait() // workers record failures instead of returning them

	elapsed := time.Since(start)
	recordBatch(elapsed)

	res := &BatchResult{
		RunID:         runID,
		Processed:     len(agg.results),
		Failed:        len(agg.failures),
		Skipped:       skipped,
		NotRun:        len(scheduled) - started,
		TotalKernels:  agg.kernels,
		MissedKernels: agg.missed,
		Elapsed:       elapsed,
		Results:       agg.results,
		Failures:      agg.failures,
	}

	logger.Info("extract.batch.complete",
		"processed", res.Processed,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"not_run", res.NotRun,
		"kernels", res.TotalKernels,
		"missed_kernels", res.MissedKernels,
		"elapsed_ms", elapsed.Milliseconds(),
	)

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("extraction interrupted: %w", err)
	}
	return res, nil
}

// prefilter re-reads every file and keeps those that still contain the
// marker. Unreadable files and repeated paths are dropped here too.
func (e *Extractor) prefilter(files []string) []string {
	seen := make(map[string]struct{}, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		if _, dup := seen[f]; dup {
			e.fileDone(f, false)
			continue
		}
		seen[f] = struct{}{}

		content, err := discovery.ReadSource(f)
		if err != nil {
			e.logger.Debug("extract.prefilter.unreadable", "path", f, "err", err)
			e.fileDone(f, false)
			continue
		}
		if !discovery.HasMarker(content, e.opts.Marker) {
			e.logger.Debug("extract.prefilter.no_marker", "path", f)
			e.fileDone(f, false)
			continue
		}
		out = append(out, f)
	}
	return out
}

func (e *Extractor) processFile(ctx context.Context, logger *slog.Logger, agg *aggregate, src, dst string) {
	start := time.Now()
	trackInFlight(1)
	defer trackInFlight(-1)

	fail := func(stage string, err error, preview string) {
		recordFileFailed(stage, time.Since(start))
		agg.addFailure(Failure{SourceFile: src, Stage: stage, Err: err, Preview: preview})
		attrs := []any{"path", src, "stage", stage, "err", err}
		if preview != "" {
			attrs = append(attrs, "preview", preview)
		}
		logger.Warn("extract.file.failed", attrs...)
		e.fileDone(src, false)
	}

	content, err := discovery.ReadSource(src)
	if err != nil {
		fail(StageRead, err, "")
		return
	}

	prompt := e.prompts.Task.Render(src, content)
	out := e.gen.Generate(ctx, prompt, e.prompts.System)
	if !out.OK {
		err := out.Err
		if err == nil {
			err = errors.New("no response")
		}
		fail(StageGenerate, fmt.Errorf("after %d attempts: %w", out.Attempts, err), "")
		return
	}

	res, err := ParseResponse(out.Text, src)
	if err != nil {
		var pe *ParseError
		preview := ""
		if errors.As(err, &pe) {
			preview = pe.Preview
		}
		fail(StageParse, err, preview)
		return
	}
	// Results are keyed by the file that was read, whatever path the model
	// echoed back.
	if res.SourceFile != src {
		logger.Debug("extract.file.source_rewritten", "path", src, "reported", res.SourceFile)
		res.SourceFile = src
	}

	if err := artifact.WriteJSON(dst, res); err != nil {
		fail(StageWrite, err, "")
		return
	}

	missed := 0
	if e.opts.Audit {
		missed = e.audit(ctx, logger, src, content, res)
	}

	agg.addResult(src, res, missed)
	recordFileDone(time.Since(start), len(res.Kernels), missed)
	logger.Debug("extract.file.done",
		"path", src,
		"artifact", dst,
		"kernels", len(res.Kernels),
		"attempts", out.Attempts,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	e.fileDone(src, true)
}

func (e *Extractor) fileDone(src string, ok bool) {
	if e.opts.OnFileDone != nil {
		e.opts.OnFileDone(src, ok)
	}
}

// audit logs kernels present in the source but absent from the model's
// answer and returns how many there were.
func (e *Extractor) audit(ctx context.Context, logger *slog.Logger, src, content string, res *artifact.ExtractionResult) int {
	found, err := kernelscan.Scan(ctx, []byte(content))
	if err != nil {
		logger.Debug("extract.audit.error", "path", src, "err", err)
		return 0
	}
	names := make([]string, 0, len(res.Kernels))
	for _, k := range res.Kernels {
		names = append(names, k.FuncName)
	}
	missed := kernelscan.Missing(found, names)
	if len(missed) > 0 {
		logger.Warn("extract.audit.missed", "path", src, "missed", missed, "found", len(found), "extracted", len(names))
	}
	return len(missed)
}
