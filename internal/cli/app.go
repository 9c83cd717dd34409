// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/jeranaias/rigrun-setup/internal/config"
	"github.com/jeranaias/rigrun-setup/internal/detect"
	"github.com/jeranaias/rigrun-setup/internal/execx"
	"github.com/jeranaias/rigrun-setup/internal/history"
	"github.com/jeranaias/rigrun-setup/internal/installer"
	"github.com/jeranaias/rigrun-setup/internal/logging"
	"github.com/jeranaias/rigrun-setup/internal/ollama"
	"github.com/jeranaias/rigrun-setup/internal/platform"
	"github.com/jeranaias/rigrun-setup/internal/setup"
	"github.com/jeranaias/rigrun-setup/internal/shellenv"
)

// App holds everything the commands touch on the host. Tests build one
// with fakes in place of the runner, the lookup and the orchestrator.
type App struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Version string

	Platform platform.Platform
	Runner   execx.Runner
	LookPath execx.LookPathFunc

	// CanPrompt reports whether interactive prompts are possible.
	CanPrompt func() bool
	// NewPrompter returns the prompter for interactive runs.
	NewPrompter func() setup.Prompter
	// Orchestrator builds the orchestrator for one run.
	Orchestrator func(cfg config.InstallConfig, prompter setup.Prompter) *setup.Orchestrator

	// HistoryPath is the run history database. Empty disables recording.
	HistoryPath string
}

// NewApp returns an App bound to the real host.
func NewApp(version string) (*App, error) {
	p, err := platform.Detect()
	if err != nil {
		return nil, err
	}
	a := &App{
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Version:     version,
		Platform:    p,
		Runner:      execx.NewExecRunner(),
		LookPath:    execx.LookPath,
		CanPrompt:   CanPrompt,
		NewPrompter: func() setup.Prompter { return NewSurveyPrompter() },
		HistoryPath: filepath.Join(p.StateDir(), history.FileName),
	}
	a.Orchestrator = a.defaultOrchestrator
	return a, nil
}

// Execute runs the command line and returns the process exit code.
func (a *App) Execute(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := a.NewRootCommand()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		PrintError(a.Stderr, err)
	}
	return ExitCode(err)
}

func (a *App) detector(installDir string) *detect.Detector {
	d := detect.NewDetector(a.Platform, a.Runner, installDir)
	if a.LookPath != nil {
		d.LookPath = a.LookPath
	}
	return d
}

// defaultOrchestrator wires the real components for one run.
func (a *App) defaultOrchestrator(cfg config.InstallConfig, prompter setup.Prompter) *setup.Orchestrator {
	p := a.Platform

	// Tools installed into InstallDir must resolve for the rest of the run.
	prependPath(cfg.InstallDir)

	det := a.detector(cfg.InstallDir)

	inst := installer.New(p, det, a.Runner, cfg.InstallDir)
	if a.LookPath != nil {
		inst.LookPath = a.LookPath
	}
	inst.Consent = consent(cfg, prompter)
	inst.Notify = func(msg string) {
		fmt.Fprintln(a.Stdout, "       "+RenderConditional(InfoStyle, msg))
	}

	models := ollama.NewManager(a.Runner)
	models.Host = cfg.OllamaHost

	srv := ollama.NewServer(cfg.OllamaHost)
	srv.Attempts = cfg.Server.Attempts
	srv.Backoff = cfg.Server.Backoff()

	return &setup.Orchestrator{
		Platform:   p,
		Probe:      det,
		Installer:  inst,
		Models:     models,
		Server:     srv,
		Env:        shellenv.New(p, cfg.InstallDir),
		Prompter:   prompter,
		FreeDiskGB: detect.FreeDiskGB,
	}
}

// consent grants privileged installs on --yes (or CI) and otherwise asks.
// A run that fell back to non-interactive because there is no terminal
// was never asked, so it is refused.
func consent(cfg config.InstallConfig, prompter setup.Prompter) installer.ConsentFunc {
	return func(_ context.Context, question string) bool {
		if cfg.AssumeYes {
			return true
		}
		if !cfg.Mode.Interactive() || prompter == nil {
			logging.Log.WithField("question", question).Warn("privileged install refused without --yes")
			return false
		}
		ok, err := prompter.Confirm(question, false)
		return err == nil && ok
	}
}

func prependPath(dir string) {
	if dir == "" {
		return
	}
	current := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(current) {
		if entry == dir {
			return
		}
	}
	os.Setenv("PATH", dir+string(os.PathListSeparator)+current)
}

// record appends a finished run to the history. Failures are logged only.
func (a *App) record(ctx context.Context, run history.Run) {
	if a.HistoryPath == "" {
		return
	}
	log := logging.Log.WithField("run", run.ID)
	store, err := history.Open(a.HistoryPath)
	if err != nil {
		log.WithError(err).Warn("run history unavailable")
		return
	}
	defer store.Close()
	if err := store.Record(ctx, run); err != nil {
		log.WithError(err).Warn("run not recorded")
		return
	}
	if _, err := store.Prune(ctx, history.DefaultKeep); err != nil {
		log.WithError(err).Debug("history prune failed")
	}
}

// loadHint is the command that loads the env file into the current shell.
func loadHint(p platform.Platform, envPath string) string {
	if p.Dialect() == platform.PowerShell {
		return `. "` + envPath + `"`
	}
	return ". " + strings.ReplaceAll(envPath, " ", `\ `)
}
