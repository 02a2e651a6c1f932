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
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kraklabs/kex/pkg/artifact"
)

const (
	fence = "```"

	// PreviewLimit caps the raw-response preview kept for parse failures.
	PreviewLimit = 500
)

// ParseError reports a response that is not a valid extraction result.
type ParseError struct {
	Err     error
	Preview string // first PreviewLimit bytes of the raw response
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StripFences removes a Markdown code fence around text. When the trimmed
// text starts with ``` the first line is dropped, and the last line is
// dropped if it is only ```. Unfenced text is returned trimmed.
func StripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, fence) {
		return t
	}
	lines := strings.Split(t, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == fence {
		lines = lines[:n-1]
	}
	return strings.Join(lines, "\n")
}

// ParseResponse decodes a model response into an extraction result. An
// empty source_file is filled with sourceFile; a missing kernels list
// decodes as empty.
func ParseResponse(text, sourceFile string) (*artifact.ExtractionResult, error) {
	body := StripFences(text)

	var res artifact.ExtractionResult
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		return nil, &ParseError{Err: err, Preview: Preview(text)}
	}
	if res.SourceFile == "" {
		res.SourceFile = sourceFile
	}
	if res.Kernels == nil {
		res.Kernels = []artifact.KernelRecord{}
	}
	return &res, nil
}

// Preview truncates s to PreviewLimit bytes without splitting a rune.
func Preview(s string) string {
	if len(s) <= PreviewLimit {
		return s
	}
	p := s[:PreviewLimit]
	for i := 0; i < utf8.UTFMax-1 && !utf8.RuneStart(s[len(p)]); i++ {
		p = p[:len(p)-1]
	}
	return p
}
