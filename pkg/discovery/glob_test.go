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

package discovery

import "testing"

func TestMatchesGlob(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		pattern string
		want    bool
	}{
		{"exact", "kernel.cu", "kernel.cu", true},
		{"exact miss", "kernel.cu", "other.cu", false},
		{"star ext", "kernel.cu", "*.cu", true},
		{"star ext nested", "ops/kernel.cu", "*.cu", true},
		{"star ext miss", "kernel.cuh", "*.cu", false},
		{"star stops at slash", "a/b.cu", "a*.cu", false},
		{"doublestar any depth", "a/b/c/k.cu", "**/*.cu", true},
		{"doublestar root", "k.cu", "**/*.cu", true},
		{"doublestar component only", "xk.cu", "**/k.cu", false},
		{"dir suffix", "build/gen/k.cu", "build/**", true},
		{"dir suffix itself", "build", "build/**", true},
		{"dir suffix nested", "third_party/build", "build/**", true},
		{"dir suffix no partial", "rebuild", "build/**", false},
		{"git dir", ".git", ".git/**", true},
		{"question", "k1.cu", "k?.cu", true},
		{"question miss", "k12.cu", "k?.cu", false},
		{"class range", "k7.cu", "k[0-9].cu", true},
		{"class range miss", "ka.cu", "k[0-9].cu", false},
		{"class negated", "kb.cu", "k[!a].cu", true},
		{"class negated miss", "ka.cu", "k[^a].cu", false},
		{"class unterminated literal", "k[.cu", "k[.cu", true},
		{"middle doublestar", "src/a/b/test/k.cu", "src/**/test/*.cu", true},
		{"empty pattern", "k.cu", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesGlob(tt.path, tt.pattern); got != tt.want {
				t.Errorf("matchesGlob(%q, %q) = %v, want %v", tt.path, tt.pattern, got, tt.want)
			}
		})
	}
}

func TestExcluded(t *testing.T) {
	globs := []string{".git/**", "*.generated.cu"}
	if !excluded("src/ops.generated.cu", globs) {
		t.Error("expected generated file to be excluded")
	}
	if excluded("src/ops.cu", globs) {
		t.Error("expected ops.cu to be kept")
	}
	if excluded("src/ops.cu", nil) {
		t.Error("nil globs should exclude nothing")
	}
}
