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

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/kex/internal/errors"
	"github.com/kraklabs/kex/internal/output"
	"github.com/kraklabs/kex/internal/ui"
)

// runMaterialize executes 'kex materialize': write every extracted kernel to
// <output_root>/extracted_kernels under a collision-free name.
func runMaterialize(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("materialize", flag.ContinueOnError)
	ext := fs.String("ext", "", "Kernel file extension (default: kernel_extension from kex.yaml)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: kex materialize [options]

Reads every extraction artifact, writes one file per kernel and a
kernel_manifest.json. Kernels whose name appears in several source files
are prefixed with the source file name.

Options:
`)
		fs.PrintDefaults()
	}
	parseFlags(fs, args)

	cfg := mustLoadConfig(globals)
	if *ext != "" {
		cfg.KernelExtension = *ext
	}
	logger := newLogger(globals)
	ctx, cancel := signalContext(logger)
	defer cancel()

	summary, err := materializeStage(ctx, cfg, logger)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	emit(globals, summary, func() { printMaterialize(summary) })
}

func printMaterialize(s *output.MaterializeSummary) {
	m := s.Manifest
	ui.Header("Step 3: Materialize kernels")
	ui.Stats(
		ui.Stat{Label: "Source files", Value: m.TotalSourceFiles},
		ui.Stat{Label: "Kernels extracted", Value: m.TotalKernelsExtracted},
		ui.Stat{Label: "Saved", Value: m.SuccessfullySaved},
		ui.Stat{Label: "Name conflicts", Value: m.ConflictsDetected, Warn: true},
	)
	if dropped := m.TotalKernelsExtracted - m.SuccessfullySaved; dropped > 0 {
		ui.Warningf("%d kernels were invalid or could not be written", dropped)
	}
	ui.Successf("Manifest saved to %s", ui.DimText(s.ManifestPath))
}
