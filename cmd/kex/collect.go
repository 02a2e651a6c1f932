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
	"sort"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/kex/internal/errors"
	"github.com/kraklabs/kex/internal/output"
	"github.com/kraklabs/kex/internal/ui"
)

// runCollect executes 'kex collect': walk source_dir, keep the files that
// contain the marker and write the inventory.
//
// Flags:
//   - --source: override source_dir
//   - --exclude: extra exclude globs (repeatable)
func runCollect(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("collect", flag.ContinueOnError)
	source := fs.String("source", "", "Source directory (overrides source_dir)")
	exclude := fs.StringSlice("exclude", nil, "Additional exclude glob, e.g. 'third_party/**' (repeatable)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: kex collect [options]

Walks source_dir for %s files that contain the kernel marker and writes
<output_root>/cuda_files_inventory.json.

Options:
`, "*.cu/*.cuh")
		fs.PrintDefaults()
	}
	parseFlags(fs, args)

	cfg := mustLoadConfig(globals)
	if *source != "" {
		cfg.SourceDir = *source
	}
	cfg.Exclude = append(cfg.Exclude, *exclude...)

	logger := newLogger(globals)
	ctx, cancel := signalContext(logger)
	defer cancel()

	spinner := NewSpinner(NewProgressConfig(globals), "Scanning sources")
	summary, err := collectStage(ctx, cfg, logger)
	finishProgress(spinner)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	emit(globals, summary, func() { printCollect(summary) })
}

func printCollect(s *output.CollectSummary) {
	ui.Header("Step 1: Collect CUDA sources")
	ui.Stats(
		ui.Stat{Label: "Source directory", Value: s.SourceDirectory},
		ui.Stat{Label: "Candidates", Value: s.Candidates},
		ui.Stat{Label: "With kernels", Value: s.Files},
	)
	if len(s.Skipped) > 0 {
		reasons := make([]string, 0, len(s.Skipped))
		for r := range s.Skipped {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		stats := make([]ui.Stat, 0, len(reasons))
		for _, r := range reasons {
			stats = append(stats, ui.Stat{Label: "Skipped " + r, Value: s.Skipped[r]})
		}
		ui.Stats(stats...)
	}
	if s.Files == 0 {
		ui.Warning("No files contain the kernel marker")
		return
	}
	ui.Successf("Inventory saved to %s", ui.DimText(s.Inventory))
}
