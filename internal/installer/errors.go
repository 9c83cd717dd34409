// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package installer

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strings"

	"github.com/jeranaias/rigrun-setup/internal/execx"
)

// Kind categorizes install failures.
type Kind int

const (
	Failed Kind = iota + 1
	Unsupported
	PermissionDenied
	Network
	VerificationFailed
)

func (k Kind) String() string {
	switch k {
	case Unsupported:
		return "unsupported"
	case PermissionDenied:
		return "permission denied"
	case Network:
		return "network error"
	case VerificationFailed:
		return "verification failed"
	default:
		return "failed"
	}
}

// Attempt records one strategy that was tried.
type Attempt struct {
	Strategy string
	Kind     Kind
	Err      error
}

// InstallError is returned when no strategy made the tool present.
type InstallError struct {
	Kind     Kind
	Tool     string
	Attempts []Attempt
}

func (e *InstallError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("cannot install %s: %s", e.Tool, e.Kind)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Strategy+": "+a.Err.Error())
	}
	return fmt.Sprintf("cannot install %s (%s): %s", e.Tool, e.Kind, strings.Join(parts, "; "))
}

// Unwrap exposes every attempt's cause to errors.Is and errors.As.
func (e *InstallError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// KindOf returns the kind of an *InstallError in err's chain, or 0.
func KindOf(err error) Kind {
	var ie *InstallError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return 0
}

// IsVerificationFailed reports whether installs ran but the tool is still
// missing.
func IsVerificationFailed(err error) bool {
	return KindOf(err) == VerificationFailed
}

// kindError tags a strategy failure with a known kind.
type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

func withKind(kind Kind, err error) error {
	return &kindError{kind: kind, err: err}
}

var errConsentDenied = errors.New("not allowed to run a privileged installer without consent (use --yes)")

// classify maps a strategy error onto a Kind.
func classify(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, errConsentDenied) {
		return PermissionDenied
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return Network
	}
	var cmdErr *execx.CommandError
	if errors.As(err, &cmdErr) {
		stderr := strings.ToLower(cmdErr.Stderr)
		switch {
		case strings.Contains(stderr, "permission denied"), strings.Contains(stderr, "eacces"):
			return PermissionDenied
		case strings.Contains(stderr, "could not resolve"), strings.Contains(stderr, "network"):
			return Network
		}
	}
	return Failed
}
