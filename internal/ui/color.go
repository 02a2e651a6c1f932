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

// Package ui prints the human-readable stage summaries of the kex CLI.
//
// Colors follow one convention: red for failures, yellow for warnings and
// skipped items, green for success, cyan for counts, bold for headers.
// They are disabled by --no-color, by NO_COLOR, and when stdout is not a
// terminal.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Out is where every helper writes. Tests replace it.
var Out io.Writer = color.Output

var (
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Green  = color.New(color.FgGreen)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
	Dim    = color.New(color.Faint)
)

// InitColors forces colors off when noColor is set. Otherwise fatih/color's
// own TTY and NO_COLOR detection applies.
func InitColors(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

// Success prints "✓ msg" in green.
func Success(msg string) { _, _ = Green.Fprintln(Out, "✓ "+msg) }

// Successf is the formatted form of Success.
func Successf(format string, args ...any) { Success(fmt.Sprintf(format, args...)) }

// Warning prints "⚠ msg" in yellow.
func Warning(msg string) { _, _ = Yellow.Fprintln(Out, "⚠ "+msg) }

// Warningf is the formatted form of Warning.
func Warningf(format string, args ...any) { Warning(fmt.Sprintf(format, args...)) }

// Error prints "✗ msg" in red.
func Error(msg string) { _, _ = Red.Fprintln(Out, "✗ "+msg) }

// Errorf is the formatted form of Error.
func Errorf(format string, args ...any) { Error(fmt.Sprintf(format, args...)) }

// Info prints "ℹ msg" in cyan.
func Info(msg string) { _, _ = Cyan.Fprintln(Out, "ℹ "+msg) }

// Infof is the formatted form of Info.
func Infof(format string, args ...any) { Info(fmt.Sprintf(format, args...)) }

// Header prints a bold title underlined with '='.
//
//	Step 3: Materialize kernels
//	===========================
func Header(text string) {
	_, _ = Bold.Fprintln(Out, text)
	_, _ = fmt.Fprintln(Out, strings.Repeat("=", len([]rune(text))))
}

// Stat is one line of a stage summary.
type Stat struct {
	Label string
	Value any
	Warn  bool // highlight a non-zero failure count
}

// Stats prints an aligned block of summary lines:
//
//	  Processed:  41
//	  Failed:     2
func Stats(stats ...Stat) {
	width := 0
	for _, s := range stats {
		if n := len([]rune(s.Label)); n > width {
			width = n
		}
	}
	for _, s := range stats {
		value := Cyan.Sprint(s.Value)
		if s.Warn && !isZero(s.Value) {
			value = Yellow.Sprint(s.Value)
		}
		pad := strings.Repeat(" ", width-len([]rune(s.Label)))
		_, _ = fmt.Fprintf(Out, "  %s %s%s\n", Label(s.Label+":"), pad, value)
	}
}

// FileLine prints one per-file result: "✓ name" when changed, a dim
// "- name (detail)" otherwise.
func FileLine(name string, changed bool, detail string) {
	if changed {
		_, _ = Green.Fprintln(Out, "✓ "+name)
		return
	}
	_, _ = Dim.Fprintf(Out, "- %s (%s)\n", name, detail)
}

// Label returns text in bold.
func Label(text string) string { return Bold.Sprint(text) }

// DimText returns text dimmed, for paths and other secondary details.
func DimText(text string) string { return Dim.Sprint(text) }

// CountText returns count in cyan.
func CountText(count int) string { return Cyan.Sprint(count) }

func isZero(v any) bool {
	switch n := v.(type) {
	case int:
		return n == 0
	case int64:
		return n == 0
	case string:
		return n == "" || n == "0"
	}
	return false
}
