// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"errors"
	"fmt"

	"github.com/jeranaias/rigrun-setup/internal/execx"
)

// =============================================================================
// MODEL ERRORS
// =============================================================================

// ModelErrorKind categorizes model operation failures.
type ModelErrorKind int

const (
	PullFailed ModelErrorKind = iota + 1
	RemoveFailed
	ImportFailed
	SourceNotFound
	ListFailed
)

func (k ModelErrorKind) String() string {
	switch k {
	case PullFailed:
		return "pull failed"
	case RemoveFailed:
		return "remove failed"
	case ImportFailed:
		return "import failed"
	case SourceNotFound:
		return "source not found"
	case ListFailed:
		return "list failed"
	default:
		return "model error"
	}
}

// ModelError is returned by every Manager operation. Command and ExitCode
// are set when an ollama invocation failed.
type ModelError struct {
	Kind     ModelErrorKind
	Model    string
	Command  string
	ExitCode int
	Err      error
}

func (e *ModelError) Error() string {
	msg := e.Kind.String()
	if e.Model != "" {
		msg += fmt.Sprintf(" for %q", e.Model)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

func modelError(kind ModelErrorKind, model string, err error) *ModelError {
	me := &ModelError{Kind: kind, Model: model, Err: err, ExitCode: -1}
	var cmdErr *execx.CommandError
	if errors.As(err, &cmdErr) {
		me.Command = cmdErr.Command
		me.ExitCode = cmdErr.ExitCode
	}
	return me
}

// ModelErrorKindOf returns the kind of a *ModelError in err's chain, or 0.
func ModelErrorKindOf(err error) ModelErrorKind {
	var me *ModelError
	if errors.As(err, &me) {
		return me.Kind
	}
	return 0
}

// IsSourceNotFound checks if an error is an import of a missing file.
func IsSourceNotFound(err error) bool {
	return ModelErrorKindOf(err) == SourceNotFound
}

// =============================================================================
// SERVER ERRORS
// =============================================================================

// ClientError represents a failure talking to or starting the server.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeConnection
	ErrTypeStartFailed
)

// Sentinel errors for easy checking.
var (
	ErrNotRunning = &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running"}
	ErrTimeout    = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
)

// IsNotRunning checks if an error indicates Ollama is not running.
func IsNotRunning(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeNotRunning
	}
	return false
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTimeout
	}
	return false
}
