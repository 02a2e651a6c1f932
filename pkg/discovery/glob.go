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

import (
	"path/filepath"
	"strings"
)

// excluded reports whether a slash-separated relative path matches any of
// the exclude globs.
func excluded(rel string, globs []string) bool {
	rel = filepath.ToSlash(rel)
	for _, g := range globs {
		if matchesGlob(rel, g) {
			return true
		}
	}
	return false
}

// matchesGlob matches path against a glob supporting:
//   - *      any run of non-separator characters
//   - **     any run of characters, separators included
//   - ?      one non-separator character
//   - [a-z]  character classes, negated with ! or ^
//
// A pattern may match at any component boundary of path, so "build/**"
// excludes both "build" and "third_party/build/x.cu".
func matchesGlob(path, pattern string) bool {
	pattern = filepath.ToSlash(pattern)
	if pattern == "" {
		return false
	}

	sub := path
	for {
		if matchAnchored(sub, pattern) {
			return true
		}
		i := strings.IndexByte(sub, '/')
		if i < 0 {
			return false
		}
		sub = sub[i+1:]
	}
}

func matchAnchored(name, pattern string) bool {
	// "dir/**" also names the directory itself.
	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok && matchSegments(name, prefix) {
		return true
	}
	return matchSegments(name, pattern)
}

func matchSegments(name, pattern string) bool {
	for len(pattern) > 0 {
		switch {
		case strings.HasPrefix(pattern, "**"):
			rest := pattern[2:]
			if rest == "" {
				return true
			}
			if rest[0] == '/' {
				// "**/" consumes zero or more whole components.
				rest = rest[1:]
				if matchSegments(name, rest) {
					return true
				}
				for i := 0; i < len(name); i++ {
					if name[i] == '/' && matchSegments(name[i+1:], rest) {
						return true
					}
				}
				return false
			}
			for i := 0; i <= len(name); i++ {
				if matchSegments(name[i:], rest) {
					return true
				}
			}
			return false

		case pattern[0] == '*':
			rest := pattern[1:]
			for i := 0; i <= len(name); i++ {
				if matchSegments(name[i:], rest) {
					return true
				}
				if i < len(name) && name[i] == '/' {
					break
				}
			}
			return false

		case pattern[0] == '?':
			if name == "" || name[0] == '/' {
				return false
			}
			name, pattern = name[1:], pattern[1:]

		case pattern[0] == '[':
			end := classEnd(pattern)
			if end < 0 {
				// unterminated class: literal '['
				if name == "" || name[0] != '[' {
					return false
				}
				name, pattern = name[1:], pattern[1:]
				continue
			}
			if name == "" || !inClass(name[0], pattern[1:end]) {
				return false
			}
			name, pattern = name[1:], pattern[end+1:]

		default:
			if name == "" || name[0] != pattern[0] {
				return false
			}
			name, pattern = name[1:], pattern[1:]
		}
	}
	return name == ""
}

// classEnd returns the index of the ']' closing the class that opens at
// pattern[0], or -1. A ']' right after the opener (or its negation) is
// literal.
func classEnd(pattern string) int {
	i := 1
	if i < len(pattern) && (pattern[i] == '!' || pattern[i] == '^') {
		i++
	}
	if i < len(pattern) && pattern[i] == ']' {
		i++
	}
	for ; i < len(pattern); i++ {
		if pattern[i] == ']' {
			return i
		}
	}
	return -1
}

func inClass(c byte, class string) bool {
	negated := false
	if class != "" && (class[0] == '!' || class[0] == '^') {
		negated = true
		class = class[1:]
	}

	matched := false
	for i := 0; i < len(class); {
		if i+2 < len(class) && class[i+1] == '-' {
			if c >= class[i] && c <= class[i+2] {
				matched = true
			}
			i += 3
			continue
		}
		if c == class[i] {
			matched = true
		}
		i++
	}
	return matched != negated
}
