// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-setup/internal/config"
	"github.com/jeranaias/rigrun-setup/internal/history"
	"github.com/jeranaias/rigrun-setup/internal/logging"
	"github.com/jeranaias/rigrun-setup/internal/setup"
)

// rootOptions are the flags of the root command.
type rootOptions struct {
	yes            bool
	ci             bool
	nonInteractive bool
	custom         bool

	model         string
	contextTokens int
	installDir    string
	noAssistant   bool

	gguf string
	name string

	uninstall   bool
	removeModel bool

	configPath string
	logLevel   string

	// cfg is loaded by PersistentPreRunE.
	cfg        *config.Config
	configFile string
}

// NewRootCommand builds the command tree.
func (a *App) NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "rigrun-setup",
		Short: "Install a local coding model and wire up your shell",
		Long: `rigrun-setup installs Ollama and the Claude Code CLI, pulls a coding model
sized for your GPU, and writes a wrapper script and environment file so the
assistant talks to the local model.

Running it again is safe: nothing is reinstalled and no file is duplicated.`,
		Example: `  rigrun-setup
  rigrun-setup --yes --model qwen2.5-coder:7b --context 32768
  rigrun-setup --gguf ./model.Q4_K_M.gguf --name mymodel
  rigrun-setup --uninstall --remove-model`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig(cmd, opts)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSetup(cmd, opts)
		},
	}
	cmd.SetOut(a.Stdout)
	cmd.SetErr(a.Stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "defaults file (TOML or YAML; default ~/.rigrun/setup.toml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "diagnostic log level (debug, info, warn, error)")
	pf.StringVar(&opts.installDir, "install-dir", "", "directory for downloaded binaries and the wrapper")

	f := cmd.Flags()
	f.BoolVarP(&opts.yes, "yes", "y", false, "run without prompts, accepting defaults and privileged installs")
	f.BoolVar(&opts.ci, "ci", false, "alias for --yes")
	f.BoolVar(&opts.nonInteractive, "non-interactive", false, "alias for --yes")
	f.BoolVar(&opts.custom, "custom", false, "skip the mode menu and choose model and context")
	f.StringVarP(&opts.model, "model", "m", "", "model to pull (default: chosen from GPU memory)")
	f.IntVarP(&opts.contextTokens, "context", "c", 0, "context window in tokens (default: chosen from GPU memory)")
	f.BoolVar(&opts.noAssistant, "no-assistant", false, "do not install the Claude Code CLI")
	f.StringVar(&opts.gguf, "gguf", "", "import a local GGUF file instead of pulling")
	f.StringVar(&opts.name, "name", "", "model name for --gguf (default: derived from the file name)")
	f.BoolVar(&opts.uninstall, "uninstall", false, "remove the wrapper, env file and profile lines")
	f.BoolVar(&opts.removeModel, "remove-model", false, "with --uninstall, also remove the model")

	cmd.AddCommand(
		a.newStatusCommand(opts),
		a.newConfigCommand(opts),
		a.newHistoryCommand(),
		a.newVersionCommand(),
	)
	return cmd
}

// loadConfig merges defaults, the defaults file, the environment and the
// flags, in that order, and configures logging.
func (a *App) loadConfig(cmd *cobra.Command, opts *rootOptions) error {
	cfg, path, err := config.Load(config.ExpandHome(opts.configPath, a.Platform.Home))
	if err != nil {
		return usageError(err)
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return usageError(err)
	}

	var o config.Overrides
	flags := cmd.Flags()
	if flags.Changed("model") {
		o.Model = &opts.model
	}
	if flags.Changed("context") {
		o.ContextTokens = &opts.contextTokens
	}
	if flags.Changed("install-dir") {
		o.InstallDir = &opts.installDir
	}
	if flags.Changed("no-assistant") {
		o.SkipAssistant = &opts.noAssistant
	}
	if flags.Changed("log-level") {
		o.LogLevel = &opts.logLevel
	}
	cfg.ApplyOverrides(o)

	if err := config.ValidateLogLevel(cfg.LogLevel); err != nil {
		return usageError(err)
	}
	if err := logging.InitWithOutput(cfg.LogLevel, a.Stderr); err != nil {
		return usageError(err)
	}
	if path != "" {
		logging.Log.WithField("path", path).Debug("defaults file loaded")
	}

	opts.cfg = cfg
	opts.configFile = path
	return nil
}

func (o *rootOptions) assumeYes() bool {
	return o.yes || o.ci || o.nonInteractive || config.CI()
}

// mode picks the pipeline. Anything that rules out prompting selects the
// non-interactive one.
func (o *rootOptions) mode(canPrompt bool) config.Mode {
	switch {
	case o.uninstall:
		return config.ModeUninstall
	case o.assumeYes() || !canPrompt:
		return config.ModeNonInteractive
	case o.custom:
		return config.ModeCustom
	default:
		return config.ModeRecommended
	}
}

func (a *App) resolve(opts *rootOptions) (config.InstallConfig, error) {
	canPrompt := a.CanPrompt != nil && a.CanPrompt()
	// --custom asks for prompts; falling back silently would ignore it.
	if opts.custom && !canPrompt && !opts.assumeYes() && !opts.uninstall {
		return config.InstallConfig{}, &TTYRequiredError{Operation: "choose a model and context size"}
	}
	req := config.Request{
		Mode:              opts.mode(canPrompt),
		GGUFPath:          opts.gguf,
		ImportName:        opts.name,
		RemoveModel:       opts.removeModel,
		AssumeYes:         opts.assumeYes(),
		Home:              a.Platform.Home,
		DefaultInstallDir: a.Platform.DefaultInstallDir(),
	}
	return opts.cfg.Resolve(req)
}

func (a *App) runSetup(cmd *cobra.Command, opts *rootOptions) error {
	ic, err := a.resolve(opts)
	if err != nil {
		return usageError(err)
	}

	var prompter setup.Prompter
	if ic.Mode.Interactive() && a.NewPrompter != nil {
		prompter = a.NewPrompter()
	}

	out := cmd.OutOrStdout()
	title := "rigrun-setup"
	if ic.Mode == config.ModeUninstall {
		title += " (uninstall)"
	}
	fmt.Fprintln(out, RenderConditional(TitleStyle, title))
	fmt.Fprintln(out, RenderSeparator())

	started := time.Now()
	orch := a.Orchestrator(ic, prompter)
	orch.RunID = history.NewID()
	orch.Observe = func(s setup.Step) {
		fmt.Fprintln(out, RenderStep(s))
	}
	res := orch.Run(cmd.Context(), ic)

	// Record even when the run was interrupted.
	a.record(context.WithoutCancel(cmd.Context()), history.FromResult(orch.RunID, ic.Mode, started, res))

	if res.Instructions != "" {
		fmt.Fprintln(out, renderMarkdown(res.Instructions))
	}
	fmt.Fprintln(out, RenderSeparator())
	fmt.Fprintln(out, RenderSummary(res))

	if res.ExitCode == setup.ExitOK && res.EnvPath != "" {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Open a new shell, or load the settings now with:\n  %s\n", loadHint(a.Platform, res.EnvPath))
		fmt.Fprintf(out, "Then run %s or claude.\n", a.Platform.WrapperName())
	}

	if res.ExitCode != setup.ExitOK {
		return &ExitError{Code: res.ExitCode}
	}
	return nil
}

// renderMarkdown renders md for the terminal, falling back to the raw
// text when rendering fails.
func renderMarkdown(md string) string {
	opt := glamour.WithStandardStyle("notty")
	if ColorsEnabled() {
		opt = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(GetTerminalWidth()-4))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
