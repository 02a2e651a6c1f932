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
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kextest "github.com/kraklabs/kex/internal/testing"
)

func TestParseTemplate_Render(t *testing.T) {
	tmpl, err := ParseTemplate("Path: {file_path}\nCode:\n{code_content}\nFormat: {{\"kernels\": []}}")
	require.NoError(t, err)

	got := tmpl.Render("/src/a.cu", "int x = {0};")
	assert.Equal(t, "Path: /src/a.cu\nCode:\nint x = {0};\nFormat: {\"kernels\": []}", got)
}

func TestParseTemplate_RepeatedPlaceholder(t *testing.T) {
	tmpl, err := ParseTemplate("{file_path} and again {file_path}")
	require.NoError(t, err)
	assert.Equal(t, "a.cu and again a.cu", tmpl.Render("a.cu", ""))
}

func TestParseTemplate_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		msg  string
	}{
		{"unknown placeholder", "Hello {name}", "unknown placeholder {name}"},
		{"conversion flag", "{file_path!r}", "unknown placeholder"},
		{"unclosed", "start {file_path", "unclosed"},
		{"single close", "a } b", "single '}'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplate(tt.text)
			require.ErrorIs(t, err, ErrPromptTemplate)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoadPrompts(t *testing.T) {
	sys, task := kextest.WritePrompts(t)

	p, err := LoadPrompts(sys, task)
	require.NoError(t, err)
	assert.Contains(t, p.System, "CUDA kernels")
	assert.Contains(t, p.Task.Render("/x.cu", "CODE"), "File: /x.cu")
}

func TestLoadPrompts_MissingFile(t *testing.T) {
	sys, _ := kextest.WritePrompts(t)

	_, err := LoadPrompts(sys, filepath.Join(t.TempDir(), "missing.txt"))
	require.ErrorIs(t, err, ErrPromptTemplate)
	require.ErrorIs(t, err, fs.ErrNotExist)

	_, err = LoadPrompts(filepath.Join(t.TempDir(), "missing.txt"), sys)
	require.ErrorIs(t, err, fs.ErrNotExist)
}
