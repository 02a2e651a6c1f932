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

// Package main implements the kex CLI, which extracts CUDA kernels from a
// source corpus with the help of a language model.
//
// Usage:
//
//	kex collect                 Find source files containing __global__
//	kex extract [--workers N]   Ask the model for every kernel of every file
//	kex materialize             Write one file per kernel plus a manifest
//	kex scrub [dir]             Remove ATen/c10/torch includes from kernels
//	kex run                     All of the above, in order
//	kex ping                    Send one test prompt to the configured model
package main

import (
	stderrors "errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/kex/internal/errors"
	"github.com/kraklabs/kex/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags are the options accepted before the command name.
type GlobalFlags struct {
	ConfigPath string
	JSON       bool
	NoColor    bool
	Debug      bool
	Quiet      bool
}

func usage() {
	fmt.Fprintf(os.Stderr, `kex - GPU kernel extraction pipeline

Usage:
  kex [global options] <command> [options]

Commands:
  collect       Discover .cu/.cuh files that contain kernels
  extract       Extract kernels from every discovered file with the model
  materialize   Save each extracted kernel to its own file
  scrub         Remove ATen/c10/torch includes from kernel files
  run           collect, extract, materialize and scrub in one go
  ping          Send a single test prompt to the configured model

Global Options:
  --config PATH   Path to kex.yaml (default: ./kex.yaml)
  --json          Print summaries as JSON on stdout
  --no-color      Disable colored output
  --debug         Enable debug logging
  -q, --quiet     Hide progress bars
  --version       Show version and exit

Examples:
  kex collect
  kex extract --workers 16 --audit
  kex scrub output/extracted_kernels
  kex --json run --limit 20

Environment Variables:
  KEX_LLM_PROVIDER    openai | anthropic | mock (when kex.yaml sets none)
  KEX_LLM_MODEL       Model id
  OPENAI_API_KEY      OpenAI key (OPENAI_BASE_URL for compatible servers)
  AZURE_OPENAI_*      ENDPOINT, API_KEY, API_VERSION for Azure deployments
  ANTHROPIC_API_KEY   Anthropic key

For command help: kex <command> --help

`)
}

func main() {
	var globals GlobalFlags
	var showVersion bool

	fs := flag.NewFlagSet("kex", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.Usage = usage
	fs.StringVar(&globals.ConfigPath, "config", "", "Path to kex.yaml")
	fs.BoolVar(&globals.JSON, "json", false, "Print summaries as JSON")
	fs.BoolVar(&globals.NoColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&globals.Debug, "debug", false, "Enable debug logging")
	fs.BoolVarP(&globals.Quiet, "quiet", "q", false, "Hide progress bars")
	fs.BoolVar(&showVersion, "version", false, "Show version and exit")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			os.Exit(errors.ExitSuccess)
		}
		os.Exit(errors.ExitInput)
	}

	if showVersion {
		fmt.Printf("kex version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(errors.ExitSuccess)
	}

	if globals.JSON {
		globals.Quiet = true
	}
	ui.InitColors(globals.NoColor || globals.JSON)

	args := fs.Args()
	if len(args) == 0 {
		usage()
		os.Exit(errors.ExitInput)
	}

	command, cmdArgs := args[0], args[1:]
	switch command {
	case "collect":
		runCollect(cmdArgs, globals)
	case "extract":
		runExtract(cmdArgs, globals)
	case "materialize":
		runMaterialize(cmdArgs, globals)
	case "scrub":
		runScrub(cmdArgs, globals)
	case "run":
		runPipeline(cmdArgs, globals)
	case "ping":
		runPing(cmdArgs, globals)
	case "help":
		usage()
	default:
		errors.FatalError(errors.NewInputError(
			fmt.Sprintf("Unknown command: %s", command),
			"",
			"Run 'kex --help' to list commands",
		), globals.JSON)
	}
}
