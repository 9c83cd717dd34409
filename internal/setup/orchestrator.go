// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package setup

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/rigrun-setup/internal/config"
	"github.com/jeranaias/rigrun-setup/internal/detect"
	"github.com/jeranaias/rigrun-setup/internal/installer"
	"github.com/jeranaias/rigrun-setup/internal/logging"
	"github.com/jeranaias/rigrun-setup/internal/platform"
	"github.com/jeranaias/rigrun-setup/internal/shellenv"
)

// Prober is the capability probe.
type Prober interface {
	Probe(ctx context.Context, tool string) detect.ToolPresence
	ProbeVRAM(ctx context.Context) int
}

// ToolInstaller installs a tool and returns its path.
type ToolInstaller interface {
	EnsureInstalled(ctx context.Context, spec installer.ToolSpec) (string, error)
}

// Models manages models held by the local runtime.
type Models interface {
	Pull(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
	List(ctx context.Context) iter.Seq2[string, error]
	Has(ctx context.Context, name string) (bool, error)
	HandleImport(ctx context.Context, path, name string) (string, error)
}

// Server brings the runtime's API up.
type Server interface {
	EnsureServing(ctx context.Context) error
}

// Environment owns the wrapper, env file and rc lines.
type Environment interface {
	EnsureWrapper(model string, contextTokens int) (string, error)
	EnsureEnvFile(vars shellenv.EnvVars) (string, error)
	EnsureSourced() ([]string, error)
	RemoveAll() (shellenv.Removal, error)
	Status() shellenv.Status
}

// Prompter asks the operator questions in the interactive modes.
type Prompter interface {
	Select(message string, options []string, def string) (string, error)
	Input(message, def string, validate func(string) error) (string, error)
	Confirm(message string, def bool) (bool, error)
}

// ErrAborted is returned when the operator declines to continue.
var ErrAborted = errors.New("setup aborted")

// Orchestrator runs one setup or uninstall.
type Orchestrator struct {
	Platform  platform.Platform
	Probe     Prober
	Installer ToolInstaller
	Models    Models
	Server    Server
	Env       Environment
	// Prompter is required for the interactive modes only.
	Prompter Prompter
	// Observe receives each step as soon as it is recorded.
	Observe func(Step)
	// FreeDiskGB reports free space for the disk check. Nil skips it.
	FreeDiskGB func(path string) (int, error)
	// RunID tags every log line of the run.
	RunID string
}

// run is the state of a single Run call.
type run struct {
	o      *Orchestrator
	cfg    config.InstallConfig
	result Result
	log    *logrus.Entry
}

func (r *run) step(s Step) {
	r.result.Report.Steps = append(r.result.Report.Steps, s)
	fields := logrus.Fields{"step": s.Name, "status": s.Status.String()}
	if s.Detail != "" {
		fields["detail"] = s.Detail
	}
	r.log.WithFields(fields).Debug("step")
	if r.o.Observe != nil {
		r.o.Observe(s)
	}
}

func (r *run) ok(name, detail string) {
	r.step(Step{Name: name, Status: StatusOK, Detail: detail})
}

func (r *run) warn(name, detail, remediation string) {
	r.step(Step{Name: name, Status: StatusWarn, Detail: detail, Remediation: remediation})
}

func (r *run) skip(name, detail string) {
	r.step(Step{Name: name, Status: StatusSkip, Detail: detail})
}

// fail records a fatal step and ends the run.
func (r *run) fail(name string, err error, remediation string) Result {
	r.step(Step{Name: name, Status: StatusFail, Detail: err.Error(), Remediation: remediation})
	r.result.ExitCode = ExitFatal
	r.result.Err = err
	return r.result
}

// Run executes the pipeline selected by cfg.Mode. The exit code is
// ExitOK unless a fatal step failed.
func (o *Orchestrator) Run(ctx context.Context, cfg config.InstallConfig) Result {
	r := &run{
		o:   o,
		cfg: cfg,
		log: logging.Log.WithField("mode", string(cfg.Mode)),
	}
	if o.RunID != "" {
		r.log = r.log.WithField("run", o.RunID)
	}
	r.log.Info("setup started")

	if cfg.Mode == config.ModeUninstall {
		return r.uninstall(ctx)
	}
	if !o.Platform.Kind.Supported() {
		return r.unsupported()
	}
	if cfg.Mode.Interactive() && o.Prompter == nil {
		return r.fail("mode", fmt.Errorf("%s mode needs a terminal", cfg.Mode), "re-run with --yes")
	}
	return r.install(ctx)
}

func (r *run) unsupported() Result {
	model := r.cfg.ModelName
	if model == "" {
		model = detect.RecommendModel(0).ModelName
	}
	contextTokens := r.cfg.ContextTokens
	if contextTokens == 0 {
		contextTokens = detect.ContextSmall
	}
	r.skip("platform", fmt.Sprintf("%s/%s is not supported, showing manual steps", r.o.Platform.Kind, r.o.Platform.Arch))
	r.result.Instructions = r.o.Platform.ManualInstructions(model, contextTokens)
	r.result.Model = model
	r.result.ContextTokens = contextTokens
	r.result.ExitCode = ExitOK
	return r.result
}
