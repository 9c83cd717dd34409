// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package execx is the single boundary through which rigrun-setup runs
// external commands (package managers, the ollama CLI, bootstrap scripts).
//
// Every failure leaving this package is a *CommandError carrying the argv and
// exit status, so callers can convert it into their own error kinds without
// re-parsing strings.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/rigrun-setup/internal/logging"
)

// Cmd describes one external command invocation.
type Cmd struct {
	Name string
	Args []string
	Dir  string
	// Env is appended to the current process environment.
	Env []string
	// Stream forwards stdout/stderr to the user's terminal instead of
	// capturing them. Used for long transfers like `ollama pull`.
	Stream bool
	Stdin  io.Reader
}

// String returns the command line as typed by a user.
func (c Cmd) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result holds captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandError is returned when a command cannot be started or exits non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed", e.Command)
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" (exit status %d)", e.ExitCode)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + firstLine(s)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the executable itself was missing.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist)
}

// Runner runs external commands.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (Result, error)
}

// ExecRunner runs commands on the host with os/exec.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner returns a runner streaming to the process stdout/stderr.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes cmd and waits for it.
func (r *ExecRunner) Run(ctx context.Context, cmd Cmd) (Result, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.Stdin = cmd.Stdin

	var stdout, stderr bytes.Buffer
	if cmd.Stream {
		c.Stdout = r.Stdout
		c.Stderr = io.MultiWriter(r.Stderr, &stderr)
	} else {
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	log := logging.Log.WithFields(logrus.Fields{"cmd": cmd.String(), "dir": cmd.Dir})
	log.Debug("running command")

	err := c.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode(c, err)}
	if err != nil {
		log.WithField("exit", res.ExitCode).WithError(err).Debug("command failed")
		return res, &CommandError{
			Command:  cmd.String(),
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Err:      err,
		}
	}
	log.WithField("exit", 0).Debug("command finished")
	return res, nil
}

// Start launches cmd detached and does not wait for it. The child gets its
// own process group so it outlives this process.
func Start(cmd Cmd) error {
	c := exec.Command(cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	c.SysProcAttr = detachedAttr()
	if err := c.Start(); err != nil {
		return &CommandError{Command: cmd.String(), ExitCode: -1, Err: err}
	}
	logging.Log.WithFields(logrus.Fields{"cmd": cmd.String(), "pid": c.Process.Pid}).Debug("started background process")
	return c.Process.Release()
}

func exitCode(c *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if c.ProcessState != nil {
		return c.ProcessState.ExitCode()
	}
	return -1
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// LookPathFunc resolves an executable name against the search path.
type LookPathFunc func(file string) (string, error)

// LookPath is the host lookup.
var LookPath LookPathFunc = exec.LookPath
