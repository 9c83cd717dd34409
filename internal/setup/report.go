// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package setup

import "strings"

// Status is the outcome of one step.
type Status int

const (
	StatusOK Status = iota
	StatusWarn
	StatusSkip
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarn:
		return "warn"
	case StatusSkip:
		return "skip"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Step is one line of the run report.
type Step struct {
	Name   string
	Status Status
	Detail string
	// Remediation is the command or action that fixes a warn or fail.
	Remediation string
}

// Report is the ordered list of steps of a run.
type Report struct {
	Steps []Step
}

// Count returns how many steps ended with s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, step := range r.Steps {
		if step.Status == s {
			n++
		}
	}
	return n
}

// Find returns the first step whose name starts with prefix.
func (r *Report) Find(prefix string) (Step, bool) {
	for _, step := range r.Steps {
		if strings.HasPrefix(step.Name, prefix) {
			return step, true
		}
	}
	return Step{}, false
}

// Exit codes.
const (
	ExitOK    = 0
	ExitFatal = 1
	ExitUsage = 2
)

// Result is the outcome of Run.
type Result struct {
	Report   Report
	ExitCode int
	// Err is the fatal error when ExitCode is ExitFatal.
	Err error

	// Instructions holds markdown for the unsupported-platform path.
	Instructions string

	Model         string
	ContextTokens int
	WrapperPath   string
	EnvPath       string
}
