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

// Package errors provides the user-facing error type of the kex CLI.
//
// Pipeline packages return plain wrapped errors. Commands translate the ones
// that abort a stage into a UserError, which carries three pieces of text and
// an exit code:
//
//	return errors.NewConfigError(
//	    "Cannot load prompt templates",
//	    "template/EN/v1/task_prompt.txt does not exist",
//	    "Set prompts.task in kex.yaml to an existing file",
//	    err,
//	)
//
// FatalError prints it, colored or as JSON, and exits:
//
//	Error: Cannot load prompt templates
//	Cause: template/EN/v1/task_prompt.txt does not exist
//	Fix:   Set prompts.task in kex.yaml to an existing file
//
// # Exit Codes
//
//   - ExitSuccess (0)
//   - ExitConfig (1): missing or invalid configuration, prompts, backend
//   - ExitNetwork (3): the model endpoint could not be reached
//   - ExitInput (4): bad arguments
//   - ExitNotFound (6): missing source, results or kernel directory
//   - ExitInternal (10): bugs
//   - ExitInterrupted (130): the run was cancelled with Ctrl-C
//
// Per-file failures never produce a UserError; they are counted in the
// stage summary and the command still exits 0.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes.
const (
	ExitSuccess     = 0
	ExitConfig      = 1
	ExitNetwork     = 3
	ExitInput       = 4
	ExitNotFound    = 6
	ExitInternal    = 10
	ExitInterrupted = 130
)

// UserError is an error with a cause, a suggested fix and an exit code.
type UserError struct {
	Message  string
	Cause    string
	Fix      string
	ExitCode int
	Err      error // optional underlying error
}

// Error implements the error interface.
func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *UserError) Unwrap() error {
	return e.Err
}

func newUserError(code int, msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: code, Err: err}
}

// NewConfigError reports an unusable configuration: a bad kex.yaml, a
// missing prompt file, or an unknown or unconfigured backend.
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitConfig, msg, cause, fix, err)
}

// NewNetworkError reports a model endpoint that could not be reached.
func NewNetworkError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitNetwork, msg, cause, fix, err)
}

// NewInputError reports invalid command-line input.
func NewInputError(msg, cause, fix string) *UserError {
	return newUserError(ExitInput, msg, cause, fix, nil)
}

// NewNotFoundError reports a missing directory or artifact.
func NewNotFoundError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitNotFound, msg, cause, fix, err)
}

// NewInternalError reports a bug.
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitInternal, msg, cause, fix, err)
}

// NewInterruptedError reports a run cancelled before it finished. Artifacts
// written so far stay valid.
func NewInterruptedError(stage string, err error) *UserError {
	return newUserError(ExitInterrupted,
		fmt.Sprintf("%s interrupted", stage),
		"The run was cancelled before every file was processed",
		"Re-run the stage; finished artifacts are overwritten in place",
		err,
	)
}

// ExitCode returns the exit code carried by err, ExitInternal for other
// errors and ExitSuccess for nil.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ue *UserError
	if stderrors.As(err, &ue) {
		return ue.ExitCode
	}
	return ExitInternal
}

var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format renders the error for a terminal. Empty Cause and Fix lines are
// omitted. NO_COLOR is honored.
func (e *UserError) Format(noColor bool) string {
	// color.NoColor is global; restore it on return.
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")
	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}
	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}
	return out.String()
}

// ErrorJSON is the --json form of a UserError.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the error to its JSON form.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{Error: e.Message, Cause: e.Cause, Fix: e.Fix, ExitCode: e.ExitCode}
}

// Print writes err to w and returns the exit code to use.
func Print(w io.Writer, err error, jsonOutput, noColor bool) int {
	if err == nil {
		return ExitSuccess
	}
	var ue *UserError
	if !stderrors.As(err, &ue) {
		ue = NewInternalError(err.Error(), "", "", err)
	}
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(ue.ToJSON()) // exiting anyway
	} else {
		fmt.Fprint(w, ue.Format(noColor))
	}
	return ue.ExitCode
}

// FatalError prints err to stderr and exits with its code. It returns only
// when err is nil.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}
	os.Exit(Print(os.Stderr, err, jsonOutput, false))
}
