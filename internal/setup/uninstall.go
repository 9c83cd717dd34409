// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package setup

import (
	"context"
	"strings"

	"github.com/jeranaias/rigrun-setup/internal/shellenv"
)

// StepRemoveModel is the optional model removal step.
const StepRemoveModel = "remove model"

// uninstall removes every generated artifact. Artifacts that are already
// gone are warnings, so a repeated uninstall still exits cleanly.
func (r *run) uninstall(ctx context.Context) Result {
	// The wrapper names the configured model; read it before it is deleted.
	st := r.o.Env.Status()

	removal, err := r.o.Env.RemoveAll()
	for _, a := range removal {
		name := "remove " + a.Artifact
		switch a.Outcome {
		case shellenv.Removed:
			r.ok(name, strings.Join(a.Paths, ", "))
		default:
			r.warn(name, "already absent", "")
		}
	}
	if err != nil {
		return r.fail("uninstall", err, "")
	}

	if r.cfg.RemoveModelOnUninstall {
		r.removeModel(ctx, st)
	}

	r.result.ExitCode = ExitOK
	r.log.WithField("already_absent", removal.AllAbsent()).Info("uninstall finished")
	return r.result
}

// removeModel deletes the configured model. Failures are warnings: the
// artifacts are already gone and the model can be removed by hand.
func (r *run) removeModel(ctx context.Context, st shellenv.Status) {
	model := r.cfg.ModelName
	if model == "" {
		model = st.Wrapper.TargetModel
	}
	if model == "" {
		r.warn(StepRemoveModel, "no model configured", "pass --model with --remove-model")
		return
	}
	r.result.Model = model

	if has, err := r.o.Models.Has(ctx, model); err == nil && !has {
		r.warn(StepRemoveModel, model+" already absent", "")
		return
	}
	if err := r.o.Models.Remove(ctx, model); err != nil {
		r.warn(StepRemoveModel, err.Error(), "ollama rm "+model)
		return
	}
	r.ok(StepRemoveModel, model)
}
