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

// Package testing provides test helpers for the KEX pipeline stages.
//
// # Quick Start
//
// Build a source tree and a scripted model, then run a stage against them:
//
//	func TestMyFeature(t *testing.T) {
//	    root := kextest.WriteTree(t, map[string]string{
//	        "a.cu": "__global__ void foo() {}",
//	    })
//	    gen := &kextest.ScriptedGenerator{
//	        Default: kextest.KernelsJSON(t, "", "foo"),
//	    }
//	    // Run extraction with gen...
//	}
//
// # Fixtures
//
// Helpers for writing on-disk inputs:
//   - WriteTree: a source tree under t.TempDir()
//   - WriteFile: a single file with parent directories
//   - WriteResult: an extraction artifact for the materializer
//   - WritePrompts: a system prompt and a task template
//
// # Scripted Generation
//
// ScriptedGenerator stands in for the LLM client. Rules match substrings of
// the rendered prompt (which contains the file path), so a test can make
// specific files fail while others succeed. It also records the peak number
// of concurrent calls for worker-pool assertions.
package testing
