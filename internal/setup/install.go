// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package setup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jeranaias/rigrun-setup/internal/config"
	"github.com/jeranaias/rigrun-setup/internal/detect"
	"github.com/jeranaias/rigrun-setup/internal/installer"
	"github.com/jeranaias/rigrun-setup/internal/ollama"
	"github.com/jeranaias/rigrun-setup/internal/shellenv"
)

// Step names.
const (
	StepHardware  = "hardware"
	StepDisk      = "disk space"
	StepRuntime   = "ollama"
	StepAssistant = "claude"
	StepServer    = "ollama server"
	StepModel     = "model"
	StepWrapper   = "wrapper"
	StepEnvFile   = "env file"
	StepRcFiles   = "shell profile"
	StepVerify    = "verify"
)

// Mode choices offered by the interactive prompt.
const (
	choiceRecommended = "Recommended (detect hardware and pick defaults)"
	choiceCustom      = "Custom (choose model and context size)"
)

// diskHeadroomGB is added to the model size estimate before warning.
const diskHeadroomGB = 2

func (r *run) install(ctx context.Context) Result {
	cfg := r.cfg
	p := r.o.Platform

	mode := cfg.Mode
	if mode == config.ModeRecommended {
		choice, err := r.o.Prompter.Select("How would you like to set up rigrun?", []string{choiceRecommended, choiceCustom}, choiceRecommended)
		if err != nil {
			return r.fail("mode", err, "")
		}
		if choice == choiceCustom {
			mode = config.ModeCustom
		}
	}

	model, contextTokens, err := r.chooseModel(ctx, mode)
	if err != nil {
		return r.fail(StepModel, err, "")
	}
	r.result.Model = model
	r.result.ContextTokens = contextTokens

	r.checkDisk(model)

	if _, err := r.o.Installer.EnsureInstalled(ctx, installer.Ollama); err != nil {
		return r.fail(StepRuntime, err, installer.ManualCommand(p, installer.Ollama))
	}
	r.ok(StepRuntime, r.o.Probe.Probe(ctx, installer.Ollama.Name).String())

	if cfg.SkipAssistant {
		r.skip(StepAssistant, "skipped by --no-assistant")
	} else if _, err := r.o.Installer.EnsureInstalled(ctx, installer.Claude); err != nil {
		r.warn(StepAssistant, err.Error(), installer.ManualCommand(p, installer.Claude))
	} else {
		r.ok(StepAssistant, r.o.Probe.Probe(ctx, installer.Claude.Name).String())
	}

	if err := r.o.Server.EnsureServing(ctx); err != nil {
		r.warn(StepServer, err.Error(), "ollama serve")
	} else {
		r.ok(StepServer, "responding on "+r.host())
	}

	if cfg.GGUFImportPath != "" {
		name, err := r.o.Models.HandleImport(ctx, cfg.GGUFImportPath, cfg.ImportName)
		if err != nil {
			return r.fail(StepModel, err, importRemediation(cfg))
		}
		model = name
		r.result.Model = model
		r.ok(StepModel, "imported "+cfg.GGUFImportPath+" as "+model)
	} else {
		r.ensureModel(ctx, model)
	}

	if res, done := r.writeEnvironment(model, contextTokens); done {
		return res
	}

	r.verify(ctx, model)

	r.result.ExitCode = ExitOK
	r.log.WithField("warnings", r.result.Report.Count(StatusWarn)).Info("setup finished")
	return r.result
}

// chooseModel settles the model and context window. Explicit values win;
// VRAM is probed only when something is left to derive. The custom mode
// prompts with the resolved values as defaults.
func (r *run) chooseModel(ctx context.Context, mode config.Mode) (string, int, error) {
	cfg := r.cfg
	model := cfg.ModelName
	contextTokens := cfg.ContextTokens
	importing := cfg.GGUFImportPath != ""

	if (model == "" && !importing) || contextTokens == 0 {
		vram := r.o.Probe.ProbeVRAM(ctx)
		if vram > 0 {
			r.ok(StepHardware, fmt.Sprintf("%d GB VRAM", vram))
		} else {
			r.warn(StepHardware, "no GPU memory detected, using CPU-sized defaults", "pass --model and --context to override")
		}
		if model == "" && !importing {
			model = detect.RecommendModel(vram).ModelName
		}
		if contextTokens == 0 {
			contextTokens = detect.ContextForVRAM(vram)
		}
	}

	switch mode {
	case config.ModeRecommended:
		question := fmt.Sprintf("Install %s with a %d-token context?", modelLabel(model, cfg), contextTokens)
		yes, err := r.o.Prompter.Confirm(question, true)
		if err != nil {
			return "", 0, err
		}
		if !yes {
			return r.promptCustom(model, contextTokens)
		}
	case config.ModeCustom:
		return r.promptCustom(model, contextTokens)
	}
	return model, contextTokens, nil
}

func (r *run) promptCustom(model string, contextTokens int) (string, int, error) {
	if r.cfg.GGUFImportPath == "" {
		answer, err := r.o.Prompter.Input("Model to pull", model, config.ValidateModelName)
		if err != nil {
			return "", 0, err
		}
		model = strings.TrimSpace(answer)
	}

	answer, err := r.o.Prompter.Input("Context window (tokens)", strconv.Itoa(contextTokens), validateContext)
	if err != nil {
		return "", 0, err
	}
	contextTokens, err = strconv.Atoi(strings.TrimSpace(answer))
	if err != nil {
		return "", 0, err
	}
	return model, contextTokens, nil
}

func validateContext(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return errors.New("enter a whole number of tokens")
	}
	if n < 1 || n > config.MaxContextTokens {
		return fmt.Errorf("must be between 1 and %d", config.MaxContextTokens)
	}
	return nil
}

func modelLabel(model string, cfg config.InstallConfig) string {
	if cfg.GGUFImportPath != "" {
		return cfg.GGUFImportPath
	}
	return model
}

// checkDisk warns when the model probably does not fit. It never fails
// the run.
func (r *run) checkDisk(model string) {
	if r.o.FreeDiskGB == nil || model == "" || r.cfg.GGUFImportPath != "" {
		return
	}
	free, err := r.o.FreeDiskGB(r.o.Platform.Home)
	if err != nil {
		r.log.WithError(err).Debug("free disk check failed")
		return
	}
	need := detect.EstimateModelSizeGB(model) + diskHeadroomGB
	if free < need {
		r.warn(StepDisk, fmt.Sprintf("%d GB free, %s needs about %d GB", free, model, need), "free up disk space or choose a smaller model with --model")
		return
	}
	r.ok(StepDisk, fmt.Sprintf("%d GB free", free))
}

// ensureModel pulls model unless the runtime already has it. A failed
// pull is a warning: the environment still gets written so a later
// `ollama pull` completes the setup.
func (r *run) ensureModel(ctx context.Context, model string) {
	has, err := r.o.Models.Has(ctx, model)
	if err == nil && has {
		r.skip(StepModel, model+" already present")
		return
	}
	if err := r.o.Models.Pull(ctx, model); err != nil {
		r.warn(StepModel, err.Error(), "ollama pull "+model)
		return
	}
	r.ok(StepModel, "pulled "+model)
}

func (r *run) writeEnvironment(model string, contextTokens int) (Result, bool) {
	env := r.o.Env
	p := r.o.Platform

	wrapper, err := env.EnsureWrapper(model, contextTokens)
	if err != nil {
		return r.fail(StepWrapper, err, ""), true
	}
	r.result.WrapperPath = wrapper
	r.ok(StepWrapper, wrapper)

	vars := shellenv.StandardVars(model, contextTokens, r.host())
	vars = vars.Set(shellenv.VarPath, shellenv.PathVar(p.Dialect(), r.cfg.InstallDir).Value)
	envPath, err := env.EnsureEnvFile(vars)
	if err != nil {
		return r.fail(StepEnvFile, err, ""), true
	}
	r.result.EnvPath = envPath
	r.ok(StepEnvFile, envPath)

	rcs, err := env.EnsureSourced()
	if err != nil {
		return r.fail(StepRcFiles, err, p.SourceLine(envPath)), true
	}
	if len(rcs) == 0 {
		r.ok(StepRcFiles, "already sourced")
	} else {
		r.ok(StepRcFiles, "added to "+strings.Join(rcs, ", "))
	}
	return Result{}, false
}

func (r *run) verify(ctx context.Context, model string) {
	has, err := r.o.Models.Has(ctx, model)
	switch {
	case err != nil:
		r.warn(StepVerify, "could not list models: "+err.Error(), "ollama list")
	case !has:
		r.warn(StepVerify, model+" is not available yet", "ollama pull "+model)
	default:
		r.ok(StepVerify, model+" is ready")
	}
}

func (r *run) host() string {
	if r.cfg.OllamaHost != "" {
		return r.cfg.OllamaHost
	}
	return ollama.DefaultHost
}

func importRemediation(cfg config.InstallConfig) string {
	return fmt.Sprintf("check that %s is a readable GGUF file", cfg.GGUFImportPath)
}
