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
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/kex/internal/errors"
	"github.com/kraklabs/kex/internal/output"
	"github.com/kraklabs/kex/pkg/llm"
)

// newLogger installs the process logger. Logs go to stdout, or to stderr
// when --json keeps stdout for the summary.
func newLogger(globals GlobalFlags) *slog.Logger {
	level := slog.LevelInfo
	if globals.Debug {
		level = slog.LevelDebug
	}
	var w io.Writer = os.Stdout
	if globals.JSON {
		w = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("shutdown.signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

// startMetrics serves Prometheus metrics on addr until the process exits.
func startMetrics(addr string, logger *slog.Logger) {
	if addr == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux}
		logger.Info("metrics.http.start", "addr", addr, "path", "/metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics.http.error", "err", err)
		}
	}()
}

// parseFlags parses a command's flags, exiting on --help or bad input.
func parseFlags(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			os.Exit(errors.ExitSuccess)
		}
		os.Exit(errors.ExitInput)
	}
}

// mustLoadConfig loads the configuration or exits with a config error.
func mustLoadConfig(globals GlobalFlags) *Config {
	cfg, err := LoadConfig(globals.ConfigPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load kex configuration",
			err.Error(),
			"Check the file passed with --config (default ./kex.yaml)",
			err,
		), globals.JSON)
	}
	return cfg
}

// newClient builds the generation client, mapping construction failures to
// config errors.
func newClient(cfg llm.Config, logger *slog.Logger) (*llm.Client, error) {
	client, err := llm.New(cfg, logger)
	if err == nil {
		return client, nil
	}
	switch {
	case stderrors.Is(err, llm.ErrUnknownProvider):
		return nil, errors.NewConfigError(
			"Unknown LLM provider",
			err.Error(),
			"Set llm.provider in kex.yaml to openai, anthropic or mock",
			err,
		)
	case stderrors.Is(err, llm.ErrMissingAPIKey):
		return nil, errors.NewConfigError(
			"LLM API key is not set",
			err.Error(),
			"Set llm.api_key in kex.yaml (for example ${OPENAI_API_KEY}) or export the key",
			err,
		)
	case stderrors.Is(err, llm.ErrMissingModel):
		return nil, errors.NewConfigError(
			"LLM model is not set",
			err.Error(),
			"Set llm.model_id in kex.yaml",
			err,
		)
	default:
		return nil, errors.NewConfigError("Cannot create LLM client", err.Error(), "", err)
	}
}

// emit prints a summary as JSON when --json is set, otherwise calls human.
func emit(globals GlobalFlags, summary any, human func()) {
	if globals.JSON {
		if err := output.JSON(summary); err != nil {
			errors.FatalError(errors.NewInternalError("Cannot encode summary", err.Error(), "", err), true)
		}
		return
	}
	human()
}

func interrupted(ctx context.Context, stage string, err error) error {
	if ctx.Err() != nil {
		return errors.NewInterruptedError(stage, err)
	}
	return errors.NewInternalError(fmt.Sprintf("%s failed", stage), err.Error(), "", err)
}
