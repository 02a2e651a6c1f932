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

const (
	pingSystem = "You are a connectivity check. Answer briefly."
	pingPrompt = "Reply with the single word: pong"
)

// runPing executes 'kex ping': one generation through the configured backend
// with the normal retry policy, to check credentials and endpoint.
func runPing(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("ping", flag.ContinueOnError)
	prompt := fs.String("prompt", pingPrompt, "Prompt to send")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: kex ping [options]

Sends one prompt to the model configured in kex.yaml and prints the reply.

Options:
`)
		fs.PrintDefaults()
	}
	parseFlags(fs, args)

	cfg := mustLoadConfig(globals)
	logger := newLogger(globals)
	ctx, cancel := signalContext(logger)
	defer cancel()

	client, err := newClient(cfg.LLM, logger)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	start := time.Now()
	res := client.Generate(ctx, *prompt, pingSystem)
	summary := output.PingSummary{
		Provider:  client.Name(),
		Model:     client.Model(),
		OK:        res.OK,
		Attempts:  res.Attempts,
		Reply:     res.Text,
		ElapsedMS: time.Since(start).Milliseconds(),
	}
	if res.Err != nil {
		summary.Error = res.Err.Error()
	}

	emit(globals, summary, func() {
		ui.Header("Model check")
		ui.Stats(
			ui.Stat{Label: "Provider", Value: summary.Provider},
			ui.Stat{Label: "Model", Value: summary.Model},
			ui.Stat{Label: "Attempts", Value: summary.Attempts},
		)
		if summary.OK {
			ui.Successf("Reply: %s", summary.Reply)
		}
	})

	if !res.OK {
		errors.FatalError(errors.NewNetworkError(
			"Model did not answer",
			summary.Error,
			"Check llm.base_url, llm.api_key and llm.model_id in kex.yaml",
			res.Err,
		), globals.JSON)
	}
}
