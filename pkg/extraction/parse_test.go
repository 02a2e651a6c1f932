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
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainResponse = `{"source_file": "/src/a.cu", "kernels": [{"func_name": "add", "func_content": "__global__ void add() {}", "launch": "<<<1,1>>>"}]}`

func TestParseResponse_FencedEqualsUnfenced(t *testing.T) {
	variants := map[string]string{
		"plain":          plainResponse,
		"json fence":     "```json\n" + plainResponse + "\n```",
		"bare fence":     "```\n" + plainResponse + "\n```",
		"crlf fence":     "```json\r\n" + plainResponse + "\r\n```\r\n",
		"padded":         "\n\n  ```json\n" + plainResponse + "\n```  \n",
		"no close fence": "```json\n" + plainResponse,
	}

	want, err := ParseResponse(plainResponse, "/ignored.cu")
	require.NoError(t, err)

	for name, text := range variants {
		t.Run(name, func(t *testing.T) {
			got, err := ParseResponse(text, "/ignored.cu")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"unfenced", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"inner fence kept", "```\nx\n```\ny\n```", "x\n```\ny"},
		{"fence only", "```", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestParseResponse_FillsSourceFile(t *testing.T) {
	res, err := ParseResponse(`{"kernels": [{"func_name": "k", "func_content": "body"}]}`, "/src/k.cu")
	require.NoError(t, err)
	assert.Equal(t, "/src/k.cu", res.SourceFile)
	require.Len(t, res.Kernels, 1)

	res, err = ParseResponse(`{"source_file": "/model/said.cu"}`, "/src/k.cu")
	require.NoError(t, err)
	assert.Equal(t, "/model/said.cu", res.SourceFile)
	assert.NotNil(t, res.Kernels)
	assert.Empty(t, res.Kernels)
}

func TestParseResponse_ErrorCarriesPreview(t *testing.T) {
	raw := "Sure! Here are the kernels: " + strings.Repeat("x", 2000)
	_, err := ParseResponse(raw, "/src/a.cu")
	require.Error(t, err)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Len(t, pe.Preview, PreviewLimit)
	assert.True(t, strings.HasPrefix(raw, pe.Preview))
	assert.Contains(t, err.Error(), "parse response")
}

func TestPreview_RuneBoundary(t *testing.T) {
	// 499 ASCII bytes then a 2-byte rune straddling the limit.
	s := strings.Repeat("a", PreviewLimit-1) + "é" + "tail"
	p := Preview(s)
	assert.Equal(t, strings.Repeat("a", PreviewLimit-1), p)

	assert.Equal(t, "short", Preview("short"))
}
