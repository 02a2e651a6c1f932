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

package materialize

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/kraklabs/kex/pkg/artifact"
)

// UnknownSource stands in for results that carry no source_file.
const UnknownSource = "unknown"

var (
	illegalChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	underscores  = regexp.MustCompile(`_+`)
	includeLine  = regexp.MustCompile(`(?m)^[ \t]*#[ \t]*include\b[^\n]*\n?`)
)

// Sanitize replaces characters that are illegal in file names with '_' and
// collapses runs of '_' into one.
func Sanitize(name string) string {
	return underscores.ReplaceAllString(illegalChars.ReplaceAllString(name, "_"), "_")
}

// StripIncludes removes every #include line from a kernel body.
func StripIncludes(body string) string {
	return includeLine.ReplaceAllString(body, "")
}

// Conflicts maps a kernel name to the distinct source files that produced
// it. Only names with two or more sources are present. It is built once per
// run and only read afterwards.
type Conflicts map[string][]string

// BuildConflicts scans every result for kernel names shared by more than one
// source file. Load order does not affect the outcome.
func BuildConflicts(results []*artifact.ExtractionResult) Conflicts {
	sources := make(map[string][]string)
	seen := make(map[string]map[string]struct{})
	for _, r := range results {
		src := sourceOf(r)
		for _, k := range r.Kernels {
			if k.FuncName == "" {
				continue
			}
			if seen[k.FuncName] == nil {
				seen[k.FuncName] = make(map[string]struct{})
			}
			if _, dup := seen[k.FuncName][src]; dup {
				continue
			}
			seen[k.FuncName][src] = struct{}{}
			sources[k.FuncName] = append(sources[k.FuncName], src)
		}
	}

	out := make(Conflicts)
	for name, srcs := range sources {
		if len(srcs) > 1 {
			sort.Strings(srcs)
			out[name] = srcs
		}
	}
	return out
}

// Names returns the conflicting kernel names in sorted order.
func (c Conflicts) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FileName returns the sanitized output name, without extension, for kernel
// produced by source. A conflicting name is prefixed with the source's base
// name; when another conflicting source has the same base name, the prefix
// also carries a hash of the full source path.
func (c Conflicts) FileName(kernel, source string) string {
	sources, ok := c[kernel]
	if !ok {
		return Sanitize(kernel)
	}
	stem := artifact.Stem(source)
	for _, other := range sources {
		if other != source && artifact.Stem(other) == stem {
			return Sanitize(stem + "_" + artifact.PathHash(source) + "_" + kernel)
		}
	}
	return Sanitize(stem + "_" + kernel)
}

// nameSet hands out output names that are unique within one run.
type nameSet map[string]struct{}

// claim returns name, or name_2, name_3, ... if it was already claimed.
func (s nameSet) claim(name string) string {
	if _, taken := s[name]; !taken {
		s[name] = struct{}{}
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if _, taken := s[candidate]; !taken {
			s[candidate] = struct{}{}
			return candidate
		}
	}
}

func sourceOf(r *artifact.ExtractionResult) string {
	if r.SourceFile == "" {
		return UnknownSource
	}
	return r.SourceFile
}
