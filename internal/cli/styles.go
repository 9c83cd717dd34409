// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Output styling for rigrun-setup.
//
// Colors are disabled for non-TTY output and when NO_COLOR is set, so
// CI logs stay readable.

package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigrun-setup/internal/setup"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for the banner and section headers.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")) // Cyan

	// LabelStyle pads step names into a column.
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(16)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	// DimStyle is used for details and hints.
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")) // Blue
)

// RenderSeparator renders a horizontal rule, 60 characters unless width
// is given.
func RenderSeparator(width ...int) string {
	w := 60
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return RenderConditional(SeparatorStyle, strings.Repeat("-", w))
}

// RenderStatus renders a fixed-width status tag.
func RenderStatus(s setup.Status) string {
	switch s {
	case setup.StatusOK:
		return RenderConditional(SuccessStyle, "[OK]  ")
	case setup.StatusWarn:
		return RenderConditional(WarningStyle, "[WARN]")
	case setup.StatusSkip:
		return RenderConditional(DimStyle, "[SKIP]")
	case setup.StatusFail:
		return RenderConditional(ErrorStyle, "[FAIL]")
	default:
		return "[" + strings.ToUpper(s.String()) + "]"
	}
}

// RenderStep renders one report line, with the remediation indented
// below it.
func RenderStep(s setup.Step) string {
	line := fmt.Sprintf("%s %s %s", RenderStatus(s.Status), renderLabel(s.Name), RenderConditional(DimStyle, s.Detail))
	line = strings.TrimRight(line, " ")
	if s.Remediation != "" && (s.Status == setup.StatusWarn || s.Status == setup.StatusFail) {
		line += "\n       " + RenderConditional(InfoStyle, "fix: "+s.Remediation)
	}
	return line
}

// RenderSummary renders the closing line of a run.
func RenderSummary(r setup.Result) string {
	warns := r.Report.Count(setup.StatusWarn)
	switch {
	case r.ExitCode != setup.ExitOK:
		return RenderConditional(ErrorStyle, "Setup failed.")
	case warns == 1:
		return RenderConditional(WarningStyle, "Finished with 1 warning.")
	case warns > 1:
		return RenderConditional(WarningStyle, fmt.Sprintf("Finished with %d warnings.", warns))
	default:
		return RenderConditional(SuccessStyle, "Finished.")
	}
}

// RenderConditional renders text with style if colors are enabled,
// otherwise returns the text unmodified.
func RenderConditional(style lipgloss.Style, text string) string {
	if !ColorsEnabled() || text == "" {
		return text
	}
	return style.Render(text)
}
