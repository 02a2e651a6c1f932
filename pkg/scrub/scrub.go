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

// Package scrub removes framework include directives (ATen, c10 and torch)
// from materialized kernel files in place.
package scrub

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kraklabs/kex/pkg/artifact"
)

// ErrDirNotFound is returned by Dir when the target directory is missing.
var ErrDirNotFound = errors.New("scrub directory not found")

var frameworkInclude = regexp.MustCompile(`(?i)#include\s+<(?:ATen|c10|torch)/[^>]+>[ \t]*(?:\r?\n)?`)

// Clean returns content without framework includes. Clean(Clean(x)) equals
// Clean(x).
func Clean(content []byte) []byte {
	for {
		next := frameworkInclude.ReplaceAll(content, nil)
		if bytes.Equal(next, content) {
			return next
		}
		content = next
	}
}

// File scrubs one file and reports whether it changed. The file is rewritten
// only when its content changes.
func File(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	cleaned := Clean(data)
	if bytes.Equal(cleaned, data) {
		return false, nil
	}
	if err := artifact.WriteFileAtomic(path, cleaned, info.Mode().Perm()); err != nil {
		return false, err
	}
	return true, nil
}

// FileResult is the outcome for one file.
type FileResult struct {
	Path    string
	Changed bool
	Err     error
}

// Report lists every file Dir looked at, in name order.
type Report struct {
	Dir   string
	Files []FileResult
}

// Modified returns how many files were rewritten.
func (r *Report) Modified() int {
	n := 0
	for _, f := range r.Files {
		if f.Changed {
			n++
		}
	}
	return n
}

// Failed returns how many files could not be scrubbed.
func (r *Report) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// Dir scrubs every file directly inside dir whose extension is ext
// (default ".cu"). A failing file is recorded and the rest still run.
func Dir(dir, ext string) (*Report, error) {
	if ext == "" {
		ext = artifact.DefaultKernExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDirNotFound, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirNotFound, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	report := &Report{Dir: dir}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ext {
			continue
		}
		path := filepath.Join(dir, e.Name())
		changed, err := File(path)
		report.Files = append(report.Files, FileResult{Path: path, Changed: changed, Err: err})
	}
	return report, nil
}
