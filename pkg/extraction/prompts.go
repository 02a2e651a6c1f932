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
	"fmt"
	"os"
	"strings"
)

// Placeholders recognized in the task template.
const (
	FieldFilePath    = "file_path"
	FieldCodeContent = "code_content"
)

// ErrPromptTemplate is wrapped by every template loading or parsing error.
var ErrPromptTemplate = errors.New("invalid prompt template")

// Prompts holds the system message and the task template used for every
// file of a batch.
type Prompts struct {
	System string
	Task   *Template
}

// LoadPrompts reads both prompt files. A missing or malformed file is an
// error; nothing is read lazily.
func LoadPrompts(systemPath, taskPath string) (*Prompts, error) {
	system, err := os.ReadFile(systemPath)
	if err != nil {
		return nil, fmt.Errorf("%w: system prompt: %w", ErrPromptTemplate, err)
	}
	task, err := os.ReadFile(taskPath)
	if err != nil {
		return nil, fmt.Errorf("%w: task prompt: %w", ErrPromptTemplate, err)
	}
	tmpl, err := ParseTemplate(string(task))
	if err != nil {
		return nil, fmt.Errorf("task prompt %s: %w", taskPath, err)
	}
	return &Prompts{System: string(system), Task: tmpl}, nil
}

// Template is a task prompt with {file_path} and {code_content}
// placeholders. Literal braces are written doubled, {{ and }}.
type Template struct {
	parts []part
}

type part struct {
	text  string
	field string // empty for literal text
}

// ParseTemplate parses a task template. Unknown placeholders and unmatched
// single braces are rejected.
func ParseTemplate(text string) (*Template, error) {
	var (
		parts []part
		lit   strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, part{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '{' && i+1 < len(text) && text[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(text) && text[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed '{' at offset %d", ErrPromptTemplate, i)
			}
			field := text[i+1 : i+1+end]
			if field != FieldFilePath && field != FieldCodeContent {
				return nil, fmt.Errorf("%w: unknown placeholder {%s}", ErrPromptTemplate, field)
			}
			flush()
			parts = append(parts, part{field: field})
			i += end + 1
		case c == '}':
			return nil, fmt.Errorf("%w: single '}' at offset %d", ErrPromptTemplate, i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return &Template{parts: parts}, nil
}

// Render substitutes the file path and content.
func (t *Template) Render(filePath, code string) string {
	var sb strings.Builder
	for _, p := range t.parts {
		switch p.field {
		case FieldFilePath:
			sb.WriteString(filePath)
		case FieldCodeContent:
			sb.WriteString(code)
		default:
			sb.WriteString(p.text)
		}
	}
	return sb.String()
}
