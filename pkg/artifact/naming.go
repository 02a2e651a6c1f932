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

package artifact

import (
	"fmt"
	"path/filepath"

	"github.com/zeebo/xxh3"
)

// PathHash returns an 8-hex-digit xxh3 digest of the cleaned path. It is
// used to tell apart files that share a base name.
func PathHash(path string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(filepath.Clean(path)))[:8]
}

// ResultPaths assigns an artifact path to every source file. A file gets
// ResultPath unless another file in the batch has the same stem, in which
// case every file with that stem gets "<stem>_<hash>.json" instead so no
// artifact overwrites another.
func ResultPaths(outputDir string, sources []string) map[string]string {
	byStem := make(map[string]int, len(sources))
	for _, src := range sources {
		byStem[Stem(src)]++
	}

	out := make(map[string]string, len(sources))
	for _, src := range sources {
		stem := Stem(src)
		if byStem[stem] > 1 {
			out[src] = filepath.Join(outputDir, stem+"_"+PathHash(src)+ResultFileExt)
			continue
		}
		out[src] = ResultPath(outputDir, src)
	}
	return out
}
