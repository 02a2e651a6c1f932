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

// Package discovery finds kernel source candidates under a directory tree.
//
// A file is a candidate when its extension is one of the configured
// extensions and its text contains the marker token (by default
// "__global__"). The result is an artifact.Inventory whose file list is
// sorted by absolute path and free of duplicates, so two runs over the same
// snapshot produce byte-identical inventories.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/kraklabs/kex/pkg/artifact"
)

var (
	// ErrRootNotFound is returned when the source root does not exist.
	ErrRootNotFound = errors.New("source directory not found")
	// ErrRootNotDir is returned when the source root is not a directory.
	ErrRootNotDir = errors.New("source path is not a directory")
)

// DefaultExtensions are the CUDA source and header extensions.
var DefaultExtensions = []string{".cu", ".cuh"}

// Config controls a discovery run.
type Config struct {
	Root       string
	Extensions []string // matched case-sensitively against filepath.Ext
	Marker     string
	Exclude    []string // globs relative to Root
}

// Collector walks a source tree and builds an inventory.
type Collector struct {
	cfg    Config
	logger *slog.Logger

	skipReasons map[string]int
	candidates  int
}

// NewCollector creates a collector. Empty Extensions and Marker fall back to
// DefaultExtensions and DefaultMarker.
func NewCollector(cfg Config, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.Marker == "" {
		cfg.Marker = DefaultMarker
	}
	return &Collector{
		cfg:         cfg,
		logger:      logger,
		skipReasons: make(map[string]int),
	}
}

// Collect walks the root and returns the inventory of marker-bearing files.
// A missing or non-directory root is returned as an error before any file is
// read. Unreadable files are logged and skipped.
func (c *Collector) Collect(ctx context.Context) (*artifact.Inventory, error) {
	root, err := filepath.Abs(c.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve source directory: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return nil, fmt.Errorf("stat source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotDir, root)
	}
	// An unreadable root would otherwise surface only as a walk warning.
	if _, err := os.ReadDir(root); err != nil {
		return nil, fmt.Errorf("read source directory: %w", err)
	}

	c.skipReasons = make(map[string]int)
	start := time.Now()
	c.logger.Info("discovery.walk.start", "root", root, "extensions", c.cfg.Extensions, "marker", c.cfg.Marker)

	candidates, err := c.walk(ctx, root)
	if err != nil {
		return nil, err
	}
	slices.Sort(candidates)
	candidates = slices.Compact(candidates)
	c.candidates = len(candidates)

	files := make([]string, 0, len(candidates))
	for _, path := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := ReadSource(path)
		if err != nil {
			c.skipReasons["unreadable"]++
			c.logger.Warn("discovery.read.error", "path", path, "err", err)
			continue
		}
		if !HasMarker(content, c.cfg.Marker) {
			c.skipReasons["no_marker"]++
			continue
		}
		files = append(files, path)
	}

	c.logger.Info("discovery.walk.complete",
		"root", root,
		"candidates", len(candidates),
		"files", len(files),
		"skip_reasons", c.skipReasons,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &artifact.Inventory{
		SourceDirectory:  root,
		TotalFiles:       len(files),
		FilteredByGlobal: true,
		Files:            files,
	}, nil
}

func (c *Collector) walk(ctx context.Context, root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			c.logger.Warn("discovery.walk.error", "path", path, "err", err)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && excluded(rel, c.cfg.Exclude) {
				c.skipReasons["excluded_dir"]++
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		if !slices.Contains(c.cfg.Extensions, filepath.Ext(path)) {
			return nil
		}
		if excluded(rel, c.cfg.Exclude) {
			c.skipReasons["excluded"]++
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return out, nil
}

// SkipReasons returns per-reason counts from the last Collect.
func (c *Collector) SkipReasons() map[string]int {
	return c.skipReasons
}

// Candidates returns how many files matched by extension in the last Collect.
func (c *Collector) Candidates() int {
	return c.candidates
}

// Save writes inv to path atomically.
func Save(path string, inv *artifact.Inventory) error {
	return artifact.SaveInventory(path, inv)
}

// Load reads an inventory previously written by Save.
func Load(path string) (*artifact.Inventory, error) {
	return artifact.LoadInventory(path)
}
