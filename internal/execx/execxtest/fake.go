// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package execxtest provides a scripted execx.Runner for tests.
package execxtest

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/jeranaias/rigrun-setup/internal/execx"
)

// Handler answers one command. Returning a non-nil error makes the fake
// report a *execx.CommandError with exit status 1.
type Handler func(cmd execx.Cmd) (stdout string, err error)

// Runner records every command and dispatches to handlers keyed by
// "name arg0" (the tool and its subcommand), falling back to "name".
type Runner struct {
	mu       sync.Mutex
	handlers map[string]Handler
	Calls    []execx.Cmd
}

// NewRunner returns an empty fake. Unknown commands succeed with no output.
func NewRunner() *Runner {
	return &Runner{handlers: make(map[string]Handler)}
}

// On registers h for key, e.g. "ollama list" or "brew".
func (r *Runner) On(key string, h Handler) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[key] = h
	return r
}

// Output registers a fixed stdout for key.
func (r *Runner) Output(key, stdout string) *Runner {
	return r.On(key, func(execx.Cmd) (string, error) { return stdout, nil })
}

// Fail registers a failure for key.
func (r *Runner) Fail(key, stderr string) *Runner {
	return r.On(key, func(execx.Cmd) (string, error) { return "", fmt.Errorf("%s", stderr) })
}

// Run implements execx.Runner.
func (r *Runner) Run(_ context.Context, cmd execx.Cmd) (execx.Result, error) {
	r.mu.Lock()
	r.Calls = append(r.Calls, cmd)
	h := r.lookup(cmd)
	r.mu.Unlock()

	if h == nil {
		return execx.Result{}, nil
	}
	out, err := h(cmd)
	if err != nil {
		return execx.Result{Stdout: out, Stderr: err.Error(), ExitCode: 1}, &execx.CommandError{
			Command:  cmd.String(),
			ExitCode: 1,
			Stderr:   err.Error(),
			Err:      err,
		}
	}
	return execx.Result{Stdout: out}, nil
}

func (r *Runner) lookup(cmd execx.Cmd) Handler {
	if len(cmd.Args) > 0 {
		if h, ok := r.handlers[cmd.Name+" "+cmd.Args[0]]; ok {
			return h
		}
	}
	return r.handlers[cmd.Name]
}

// Called reports whether a command line starting with prefix was run.
func (r *Runner) Called(prefix string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Calls {
		if strings.HasPrefix(c.String(), prefix) {
			return true
		}
	}
	return false
}

// LookPath is a fake search path: a set of executable names mapped to paths.
type LookPath struct {
	mu    sync.Mutex
	Found map[string]string
}

// NewLookPath returns a lookup knowing only the given name=path pairs.
func NewLookPath(pairs ...string) *LookPath {
	l := &LookPath{Found: make(map[string]string)}
	for i := 0; i+1 < len(pairs); i += 2 {
		l.Found[pairs[i]] = pairs[i+1]
	}
	return l
}

// Add makes name resolvable, as if an install just finished.
func (l *LookPath) Add(name, path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Found[name] = path
}

// Func adapts l to execx.LookPathFunc.
func (l *LookPath) Func() execx.LookPathFunc {
	return func(file string) (string, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		if p, ok := l.Found[file]; ok {
			return p, nil
		}
		return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
	}
}
