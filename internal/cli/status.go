// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-setup/internal/config"
	"github.com/jeranaias/rigrun-setup/internal/detect"
	"github.com/jeranaias/rigrun-setup/internal/ollama"
	"github.com/jeranaias/rigrun-setup/internal/shellenv"
)

// statusTimeout bounds the whole status report.
const statusTimeout = 15 * time.Second

func (a *App) newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what is installed and configured",
		Long: `Show the detected tools and GPU, the recommended model, whether the
Ollama server answers, and which generated files are in place.

Nothing is changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
			defer cancel()
			return a.printStatus(ctx, cmd.OutOrStdout(), opts.cfg)
		},
	}
}

func (a *App) printStatus(ctx context.Context, w io.Writer, cfg *config.Config) error {
	p := a.Platform
	installDir := config.ExpandHome(cfg.InstallDir, p.Home)
	if installDir == "" {
		installDir = p.DefaultInstallDir()
	}
	det := a.detector(installDir)

	row := func(label, value string) {
		fmt.Fprintf(w, "%s %s\n", renderLabel(label), value)
	}

	fmt.Fprintln(w, RenderConditional(TitleStyle, "rigrun-setup status"))
	fmt.Fprintln(w, RenderSeparator())

	row("Platform", fmt.Sprintf("%s/%s", p.Kind, p.Arch))
	for _, tool := range []string{"ollama", "claude"} {
		row(tool, presence(det.Probe(ctx, tool)))
	}

	gpu := det.DetectGPU(ctx)
	vram := 0
	if gpu != nil {
		vram = gpu.VramGB
		row("GPU", gpu.String())
	} else {
		row("GPU", RenderConditional(DimStyle, "none detected"))
	}
	rec := detect.RecommendModel(vram)
	row("Recommended", fmt.Sprintf("%s, %d tokens (%s)", rec.ModelName, detect.ContextForVRAM(vram), rec.Quality))

	srv := ollama.NewServer(cfg.OllamaHost)
	if err := srv.CheckRunning(ctx); ollama.IsTimeout(err) {
		row("Server", RenderConditional(WarningStyle, "not answering at "+srv.BaseURL))
	} else if err != nil {
		row("Server", RenderConditional(WarningStyle, "not running at "+srv.BaseURL))
	} else {
		row("Server", RenderConditional(SuccessStyle, "running at "+srv.BaseURL))
		models := ollama.NewManager(a.Runner)
		models.Host = cfg.OllamaHost
		var names []string
		for name, err := range models.List(ctx) {
			if err != nil {
				break
			}
			names = append(names, name)
		}
		if len(names) == 0 {
			row("Models", RenderConditional(DimStyle, "none"))
		} else {
			row("Models", strings.Join(names, ", "))
		}
	}

	st := shellenv.New(p, installDir).Status()
	if st.WrapperPresent {
		row("Wrapper", fmt.Sprintf("%s (%s, %d tokens)", st.Wrapper.Path, st.Wrapper.TargetModel, st.Wrapper.ContextTokens))
	} else {
		row("Wrapper", RenderConditional(DimStyle, "not installed"))
	}
	if st.EnvPresent {
		row("Env file", st.EnvPath)
	} else {
		row("Env file", RenderConditional(DimStyle, "not installed"))
	}
	if len(st.SourcedIn) > 0 {
		row("Profiles", strings.Join(st.SourcedIn, ", "))
	} else {
		row("Profiles", RenderConditional(DimStyle, "none"))
	}
	return nil
}

func presence(t detect.ToolPresence) string {
	if !t.Found {
		return RenderConditional(WarningStyle, "not installed")
	}
	s := t.Path
	if t.Version != "" {
		s += " (" + t.Version + ")"
	}
	return s
}

func renderLabel(label string) string {
	if ColorsEnabled() {
		return LabelStyle.Render(label)
	}
	return fmt.Sprintf("%-16s", label)
}
