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
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/kex/internal/errors"
	"github.com/kraklabs/kex/internal/output"
	"github.com/kraklabs/kex/internal/ui"
)

// runScrub executes 'kex scrub [dir]': remove ATen, c10 and torch includes
// from the kernel files in dir (default <output_root>/extracted_kernels).
func runScrub(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("scrub", flag.ContinueOnError)
	ext := fs.String("ext", "", "Extension of files to scrub (default: kernel_extension from kex.yaml)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: kex scrub [options] [dir]

Removes #include <ATen/...>, <c10/...> and <torch/...> lines in place.
Files without such includes are left untouched.

Options:
`)
		fs.PrintDefaults()
	}
	parseFlags(fs, args)

	cfg := mustLoadConfig(globals)
	dir := cfg.KernelsDir()
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	if *ext == "" {
		*ext = cfg.KernelExtension
	}
	newLogger(globals)

	summary, err := scrubStage(dir, *ext)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	emit(globals, summary, func() { printScrub(summary) })
}

func printScrub(s *output.ScrubSummary) {
	ui.Header("Step 4: Scrub framework headers")
	if s.Total == 0 {
		ui.Warningf("No kernel files found in %s", s.Dir)
		return
	}
	ui.Infof("Found %d files", s.Total)
	for _, f := range s.Files {
		name := filepath.Base(f.Path)
		if f.Error != "" {
			ui.Errorf("%s: %s", name, f.Error)
			continue
		}
		ui.FileLine(name, f.Changed, "no modification needed")
	}
	ui.Successf("Modified %d/%d files", s.Modified, s.Total)
}
