// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-setup/internal/config"
	"github.com/jeranaias/rigrun-setup/internal/execx/execxtest"
	"github.com/jeranaias/rigrun-setup/internal/history"
	"github.com/jeranaias/rigrun-setup/internal/platform"
	"github.com/jeranaias/rigrun-setup/internal/setup"
	"github.com/jeranaias/rigrun-setup/internal/shellenv"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testApp struct {
	*App
	home   string
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	runner *execxtest.Runner

	// canPrompt is returned by CanPrompt.
	canPrompt bool
	// target is the platform handed to the orchestrator. The default is
	// an unsupported one, so install runs stop at the manual steps.
	target platform.Platform
	calls  int
	cfg    config.InstallConfig
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ForceColorsEnabled(false)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, name := range []string{config.EnvModel, config.EnvContext, config.EnvInstallDir, config.EnvOllamaHost, config.EnvCI} {
		t.Setenv(name, "")
	}

	ta := &testApp{
		home:   home,
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		runner: execxtest.NewRunner(),
		target: platform.New("plan9", "amd64", home, ""),
	}
	ta.App = &App{
		Stdout:    ta.stdout,
		Stderr:    ta.stderr,
		Version:   "1.2.3",
		Platform:  platform.New("linux", "amd64", home, "/bin/bash"),
		Runner:    ta.runner,
		LookPath:  execxtest.NewLookPath().Func(),
		CanPrompt: func() bool { return ta.canPrompt },
	}
	ta.App.Orchestrator = func(cfg config.InstallConfig, prompter setup.Prompter) *setup.Orchestrator {
		ta.calls++
		ta.cfg = cfg
		return &setup.Orchestrator{
			Platform: ta.target,
			Env:      shellenv.New(ta.App.Platform, cfg.InstallDir),
			Prompter: prompter,
		}
	}
	return ta
}

func (ta *testApp) run(args ...string) int {
	ta.stdout.Reset()
	ta.stderr.Reset()
	return ta.Execute(args)
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

func TestExecute_Version(t *testing.T) {
	ta := newTestApp(t)
	assert.Equal(t, ExitSuccess, ta.run("version"))
	assert.Equal(t, "rigrun-setup 1.2.3\n", ta.stdout.String())
	assert.Zero(t, ta.calls)
}

func TestExecute_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"name without gguf", []string{"--yes", "--name", "mine"}},
		{"remove-model without uninstall", []string{"--yes", "--remove-model"}},
		{"gguf with uninstall", []string{"--uninstall", "--gguf", "/tmp/m.gguf"}},
		{"negative context", []string{"--yes", "--context=-1"}},
		{"bad model", []string{"--yes", "--model", "demo;rm"}},
		{"unknown flag", []string{"--bogus"}},
		{"positional argument", []string{"extra"}},
		{"bad log level", []string{"--yes", "--log-level", "loud"}},
		{"custom without terminal", []string{"--custom"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t)
			assert.Equal(t, ExitUsageError, ta.run(tt.args...))
			assert.Zero(t, ta.calls, "orchestrator must not run")
			assert.Contains(t, ta.stderr.String(), "Error")
		})
	}
}

func TestExecute_CustomNeedsTerminal(t *testing.T) {
	ta := newTestApp(t)
	assert.Equal(t, ExitUsageError, ta.run("--custom"))
	assert.Contains(t, ta.stderr.String(), "stdin is not a terminal; cannot choose a model and context size interactively")

	// --yes overrides the request for prompts.
	require.Equal(t, ExitSuccess, ta.run("--custom", "--yes"))
	assert.Equal(t, config.ModeNonInteractive, ta.cfg.Mode)
}

func TestExecute_ModeSelection(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		canPrompt bool
		ci        string
		mode      config.Mode
		assumeYes bool
	}{
		{"terminal", nil, true, "", config.ModeRecommended, false},
		{"custom", []string{"--custom"}, true, "", config.ModeCustom, false},
		{"no terminal", nil, false, "", config.ModeNonInteractive, false},
		{"yes", []string{"--yes"}, true, "", config.ModeNonInteractive, true},
		{"ci flag", []string{"--ci"}, true, "", config.ModeNonInteractive, true},
		{"non-interactive flag", []string{"--non-interactive"}, true, "", config.ModeNonInteractive, true},
		{"ci env", nil, true, "true", config.ModeNonInteractive, true},
		{"uninstall", []string{"--uninstall"}, true, "", config.ModeUninstall, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t)
			ta.canPrompt = tt.canPrompt
			t.Setenv(config.EnvCI, tt.ci)

			require.Equal(t, ExitSuccess, ta.run(tt.args...), ta.stderr.String())
			require.Equal(t, 1, ta.calls)
			assert.Equal(t, tt.mode, ta.cfg.Mode)
			assert.Equal(t, tt.assumeYes, ta.cfg.AssumeYes)
		})
	}
}

func TestExecute_FlagsReachConfig(t *testing.T) {
	ta := newTestApp(t)
	code := ta.run("--yes", "--model", "demo", "--context", "8192", "--no-assistant", "--install-dir", "~/bin")
	require.Equal(t, ExitSuccess, code, ta.stderr.String())

	assert.Equal(t, "demo", ta.cfg.ModelName)
	assert.Equal(t, 8192, ta.cfg.ContextTokens)
	assert.True(t, ta.cfg.SkipAssistant)
	assert.Equal(t, filepath.Join(ta.home, "bin"), ta.cfg.InstallDir)
	assert.Equal(t, "127.0.0.1:11434", ta.cfg.OllamaHost)
}

func TestExecute_Precedence(t *testing.T) {
	ta := newTestApp(t)
	dir := filepath.Join(ta.home, ".rigrun")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.toml"), []byte("model = \"fromfile\"\ncontext_tokens = 2048\n"), 0o644))

	require.Equal(t, ExitSuccess, ta.run("--yes"))
	assert.Equal(t, "fromfile", ta.cfg.ModelName)
	assert.Equal(t, 2048, ta.cfg.ContextTokens)

	t.Setenv(config.EnvModel, "fromenv")
	require.Equal(t, ExitSuccess, ta.run("--yes"))
	assert.Equal(t, "fromenv", ta.cfg.ModelName)

	require.Equal(t, ExitSuccess, ta.run("--yes", "--model", "fromflag"))
	assert.Equal(t, "fromflag", ta.cfg.ModelName)
	assert.Equal(t, 2048, ta.cfg.ContextTokens)
}

func TestExecute_BadDefaultsFile(t *testing.T) {
	ta := newTestApp(t)
	path := filepath.Join(ta.home, "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("model = \n"), 0o644))

	assert.Equal(t, ExitUsageError, ta.run("--yes", "--config", path))
	assert.Zero(t, ta.calls)
}

func TestExecute_UnsupportedPlatformShowsInstructions(t *testing.T) {
	ta := newTestApp(t)
	require.Equal(t, ExitSuccess, ta.run("--yes", "--model", "demo"))

	out := ta.stdout.String()
	assert.Contains(t, out, "Manual setup")
	assert.Contains(t, out, "[SKIP]")
	assert.Contains(t, out, "Finished.")
	assert.NotContains(t, out, "Open a new shell")
}

func TestExecute_FatalStepExitsOne(t *testing.T) {
	ta := newTestApp(t)
	ta.canPrompt = true
	ta.target = ta.App.Platform

	// An interactive run without a prompter fails before touching the host.
	assert.Equal(t, ExitFatal, ta.run())
	assert.Contains(t, ta.stdout.String(), "[FAIL]")
	assert.Contains(t, ta.stdout.String(), "Setup failed.")
	assert.Empty(t, ta.stderr.String())
}

func TestExecute_UninstallTwice(t *testing.T) {
	ta := newTestApp(t)
	env := shellenv.New(ta.App.Platform, ta.App.Platform.DefaultInstallDir())
	_, err := env.EnsureWrapper("demo", 8192)
	require.NoError(t, err)
	_, err = env.EnsureEnvFile(shellenv.StandardVars("demo", 8192, "127.0.0.1:11434"))
	require.NoError(t, err)
	_, err = env.EnsureSourced()
	require.NoError(t, err)

	require.Equal(t, ExitSuccess, ta.run("--uninstall"))
	assert.Contains(t, ta.stdout.String(), "rigrun-setup (uninstall)")
	assert.NotContains(t, ta.stdout.String(), "already absent")
	assert.NoFileExists(t, env.WrapperPath())

	require.Equal(t, ExitSuccess, ta.run("--uninstall"))
	assert.Contains(t, ta.stdout.String(), "already absent")
	assert.Contains(t, ta.stdout.String(), "Finished with 3 warnings.")
}

func TestExecute_RecordsHistory(t *testing.T) {
	ta := newTestApp(t)
	ta.HistoryPath = filepath.Join(ta.home, ".rigrun", "history.db")

	require.Equal(t, ExitSuccess, ta.run("history"))
	assert.Contains(t, ta.stdout.String(), "No runs recorded.")

	require.Equal(t, ExitSuccess, ta.run("--yes", "--model", "demo"))
	require.Equal(t, ExitSuccess, ta.run("--uninstall"))

	require.Equal(t, ExitSuccess, ta.run("history"))
	out := ta.stdout.String()
	assert.Contains(t, out, "non-interactive")
	assert.Contains(t, out, "uninstall")
	assert.Contains(t, out, "demo")

	store, err := history.Open(ta.HistoryPath)
	require.NoError(t, err)
	runs, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.Len(t, runs, 2)

	var install history.Run
	for _, r := range runs {
		if r.Mode == config.ModeNonInteractive {
			install = r
		}
	}
	require.NotEmpty(t, install.ID)

	require.Equal(t, ExitSuccess, ta.run("history", "show", install.ShortID()))
	out = ta.stdout.String()
	assert.Contains(t, out, "Run "+install.ID)
	assert.Contains(t, out, "[SKIP]")
	assert.Contains(t, out, "platform")

	assert.Equal(t, ExitFatal, ta.run("history", "show", "does-not-exist"))
	assert.Contains(t, ta.stderr.String(), "run not found")
}

func TestHistory_Disabled(t *testing.T) {
	ta := newTestApp(t)
	require.Equal(t, ExitSuccess, ta.run("history"))
	assert.Contains(t, ta.stdout.String(), "No runs recorded.")
	assert.Equal(t, ExitFatal, ta.run("history", "show", "abc"))
}

// =============================================================================
// SUBCOMMANDS
// =============================================================================

func TestConfigInit(t *testing.T) {
	ta := newTestApp(t)
	path := filepath.Join(ta.home, ".rigrun", "setup.toml")

	require.Equal(t, ExitSuccess, ta.run("config", "init"))
	assert.Contains(t, ta.stdout.String(), path)

	cfg := config.Default()
	require.NoError(t, config.LoadTOML(cfg, path))
	assert.Equal(t, config.Default(), cfg)

	assert.Equal(t, ExitFatal, ta.run("config", "init"))
	assert.Contains(t, ta.stderr.String(), "already exists")
}

func TestConfigInit_RejectsNonTOML(t *testing.T) {
	ta := newTestApp(t)
	assert.Equal(t, ExitUsageError, ta.run("config", "init", "--config", filepath.Join(ta.home, "setup.yaml")))
}

func TestConfigShow(t *testing.T) {
	ta := newTestApp(t)

	require.Equal(t, ExitSuccess, ta.run("config", "show", "--install-dir", "/opt/rigrun"))
	assert.Contains(t, ta.stdout.String(), `install_dir = "/opt/rigrun"`)

	require.Equal(t, ExitSuccess, ta.run("config", "show", "--format", "yaml"))
	assert.Contains(t, ta.stdout.String(), "ollama_host:")
	assert.Contains(t, ta.stdout.String(), "127.0.0.1:11434")

	assert.Equal(t, ExitUsageError, ta.run("config", "show", "--format", "json"))
}

func TestStatus(t *testing.T) {
	ta := newTestApp(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Ollama is running")
	}))
	defer srv.Close()
	t.Setenv(config.EnvOllamaHost, srv.Listener.Addr().String())
	ta.runner.Output("ollama list", "NAME    ID    SIZE    MODIFIED\ndemo:latest    abc    1 GB    now\n")

	require.Equal(t, ExitSuccess, ta.run("status"), ta.stderr.String())
	out := ta.stdout.String()
	assert.Contains(t, out, "linux/amd64")
	assert.Contains(t, out, "running at "+srv.URL)
	assert.Contains(t, out, "demo:latest")
	assert.Contains(t, out, "qwen2.5-coder:1.5b")
	assert.Contains(t, out, "not installed")
	assert.Zero(t, ta.calls)
}

func TestStatus_ServerDown(t *testing.T) {
	ta := newTestApp(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().String()
	srv.Close()
	t.Setenv(config.EnvOllamaHost, addr)

	require.Equal(t, ExitSuccess, ta.run("status"))
	assert.Contains(t, ta.stdout.String(), "not running")
	assert.False(t, ta.runner.Called("ollama list"))
}

// =============================================================================
// RENDERING AND ERRORS
// =============================================================================

func TestRenderStep(t *testing.T) {
	ForceColorsEnabled(false)

	got := RenderStep(setup.Step{Name: "model", Status: setup.StatusWarn, Detail: "pull failed", Remediation: "ollama pull demo"})
	want := "[WARN] " + fmt.Sprintf("%-16s", "model") + " pull failed\n       fix: ollama pull demo"
	assert.Equal(t, want, got)

	got = RenderStep(setup.Step{Name: "wrapper", Status: setup.StatusOK, Detail: "/x", Remediation: "ignored"})
	assert.Equal(t, "[OK]   "+fmt.Sprintf("%-16s", "wrapper")+" /x", got)
}

func TestRenderSummary(t *testing.T) {
	ForceColorsEnabled(false)

	warn := setup.Step{Status: setup.StatusWarn}
	assert.Equal(t, "Finished.", RenderSummary(setup.Result{}))
	assert.Equal(t, "Finished with 1 warning.", RenderSummary(setup.Result{Report: setup.Report{Steps: []setup.Step{warn}}}))
	assert.Equal(t, "Finished with 2 warnings.", RenderSummary(setup.Result{Report: setup.Report{Steps: []setup.Step{warn, warn}}}))
	assert.Equal(t, "Setup failed.", RenderSummary(setup.Result{ExitCode: setup.ExitFatal}))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitFatal, ExitCode(fatalError(errors.New("boom"))))
	assert.Equal(t, ExitUsageError, ExitCode(usageError(errors.New("bad"))))
	assert.Equal(t, ExitUsageError, ExitCode(errors.New("unknown command")))
	assert.Equal(t, ExitFatal, ExitCode(fmt.Errorf("wrapped: %w", &ExitError{Code: ExitFatal})))
}

func TestPrintError(t *testing.T) {
	ForceColorsEnabled(false)

	var buf bytes.Buffer
	PrintError(&buf, usageError(config.ValidateErrors{
		{Field: "name", Message: "--name requires --gguf"},
		{Field: "context", Message: "out of range"},
	}))
	assert.Equal(t, "Error: invalid options\n  --name: --name requires --gguf\n  --context: out of range\n", buf.String())

	buf.Reset()
	PrintError(&buf, &ExitError{Code: ExitFatal})
	assert.Empty(t, buf.String())
}

func TestLoadHint(t *testing.T) {
	assert.Equal(t, ". /home/u/.rigrun/env", loadHint(platform.New("linux", "amd64", "/home/u", ""), "/home/u/.rigrun/env"))
	assert.Equal(t, `. "C:\Users\u\.rigrun\env.ps1"`, loadHint(platform.New("windows", "amd64", `C:\Users\u`, ""), `C:\Users\u\.rigrun\env.ps1`))
}

type answerPrompter struct {
	answer bool
	asked  int
}

func (p *answerPrompter) Select(string, []string, string) (string, error) { return "", nil }
func (p *answerPrompter) Input(string, string, func(string) error) (string, error) {
	return "", nil
}
func (p *answerPrompter) Confirm(string, bool) (bool, error) {
	p.asked++
	return p.answer, nil
}

func TestConsent(t *testing.T) {
	tests := []struct {
		name      string
		mode      config.Mode
		assumeYes bool
		prompter  *answerPrompter
		want      bool
		asked     int
	}{
		{"yes flag", config.ModeNonInteractive, true, nil, true, 0},
		{"no terminal fallback", config.ModeNonInteractive, false, nil, false, 0},
		{"interactive accepted", config.ModeRecommended, false, &answerPrompter{answer: true}, true, 1},
		{"interactive declined", config.ModeCustom, false, &answerPrompter{answer: false}, false, 1},
		{"interactive without prompter", config.ModeRecommended, false, nil, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prompter setup.Prompter
			if tt.prompter != nil {
				prompter = tt.prompter
			}
			cfg := config.InstallConfig{Mode: tt.mode, AssumeYes: tt.assumeYes}
			got := consent(cfg, prompter)(context.Background(), "Install ollama?")
			assert.Equal(t, tt.want, got)
			if tt.prompter != nil {
				assert.Equal(t, tt.asked, tt.prompter.asked)
			}
		})
	}
}
