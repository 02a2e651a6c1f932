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

// Package artifact defines the on-disk records exchanged between pipeline
// stages and the atomic file helpers used to write them.
//
// Every stage reads the previous stage's artifact and writes its own:
//
//	discovery    -> Inventory        (cuda_files_inventory.json)
//	extraction   -> ExtractionResult (extraction_results/<stem>.json)
//	materialize  -> Manifest         (extracted_kernels/kernel_manifest.json)
//
// Stages never share in-memory state, so these types are the only contract
// between them.
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Default artifact file names.
const (
	InventoryFile  = "cuda_files_inventory.json"
	ResultsDir     = "extraction_results"
	KernelsDir     = "extracted_kernels"
	ManifestFile   = "kernel_manifest.json"
	ResultFileExt  = ".json"
	DefaultKernExt = ".cu"
)

// Inventory is the output of source discovery.
type Inventory struct {
	SourceDirectory  string   `json:"source_directory"`
	TotalFiles       int      `json:"total_files"`
	FilteredByGlobal bool     `json:"filtered_by_global"`
	Files            []string `json:"files"`
}

// ExtractionResult holds the kernels the model found in one source file.
type ExtractionResult struct {
	SourceFile string         `json:"source_file"`
	Kernels    []KernelRecord `json:"kernels"`
}

// KernelRecord is one extracted kernel. Keys the backend returns beyond
// func_name and func_content are kept in Extra and written back unchanged.
type KernelRecord struct {
	FuncName    string
	FuncContent string
	Extra       map[string]json.RawMessage
}

// Valid reports whether the record has both a name and a body.
func (k KernelRecord) Valid() bool {
	return k.FuncName != "" && k.FuncContent != ""
}

// UnmarshalJSON decodes the known keys and stashes the rest in Extra.
func (k *KernelRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*k = KernelRecord{}
	if v, ok := raw["func_name"]; ok {
		if err := decodeLenientString(v, &k.FuncName); err != nil {
			return fmt.Errorf("func_name: %w", err)
		}
		delete(raw, "func_name")
	}
	if v, ok := raw["func_content"]; ok {
		if err := decodeLenientString(v, &k.FuncContent); err != nil {
			return fmt.Errorf("func_content: %w", err)
		}
		delete(raw, "func_content")
	}
	if len(raw) > 0 {
		k.Extra = raw
	}
	return nil
}

// MarshalJSON writes func_name and func_content first, then any extra keys
// in sorted order. Strings are not HTML-escaped.
func (k KernelRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeField(&buf, "func_name", k.FuncName); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := writeField(&buf, "func_content", k.FuncContent); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(k.Extra))
	for key := range k.Extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		buf.WriteByte(',')
		if err := writeField(&buf, key, k.Extra[key]); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeField appends "key":value without HTML escaping.
func writeField(buf *bytes.Buffer, key string, value any) error {
	if err := encodeUnescaped(buf, key); err != nil {
		return err
	}
	buf.WriteByte(':')
	return encodeUnescaped(buf, value)
}

func encodeUnescaped(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// decodeLenientString accepts a JSON string or null (treated as empty).
func decodeLenientString(v json.RawMessage, dst *string) error {
	if string(v) == "null" {
		*dst = ""
		return nil
	}
	return json.Unmarshal(v, dst)
}

// Manifest is the audit record of one materialization run.
type Manifest struct {
	TotalSourceFiles      int      `json:"total_source_files"`
	TotalKernelsExtracted int      `json:"total_kernels_extracted"`
	SuccessfullySaved     int      `json:"successfully_saved"`
	ConflictsDetected     int      `json:"conflicts_detected"`
	SavedFiles            []string `json:"saved_files"`
}
