// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Exit codes and error display for rigrun-setup.
//
// Commands ALWAYS return errors and never call os.Exit themselves. The
// exit code travels in an *ExitError; Execute turns it into the process
// status.

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/rigrun-setup/internal/config"
	"github.com/jeranaias/rigrun-setup/internal/setup"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess = setup.ExitOK
	// ExitFatal indicates a fatal setup step or an I/O failure
	ExitFatal = setup.ExitFatal
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = setup.ExitUsage
)

// ExitError carries an exit code out of a command. Err is nil when the
// failure has already been reported, e.g. by the step report.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(err error) error {
	return &ExitError{Code: ExitUsageError, Err: err}
}

func fatalError(err error) error {
	return &ExitError{Code: ExitFatal, Err: err}
}

// ExitCode maps an error from a command onto the process exit code.
// Errors that did not come from a command body are cobra's flag and
// argument errors, so they count as usage errors.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitUsageError
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// PrintError writes err to w. Validation failures are listed one per line
// with the flag they concern.
func PrintError(w io.Writer, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}

	var verrs config.ValidateErrors
	if errors.As(err, &verrs) {
		fmt.Fprintln(w, RenderConditional(ErrorStyle, "Error: invalid options"))
		for _, v := range verrs {
			fmt.Fprintf(w, "  --%s: %s\n", v.Field, v.Message)
		}
		return
	}
	fmt.Fprintln(w, RenderConditional(ErrorStyle, "Error: "+strings.TrimSpace(err.Error())))
}
