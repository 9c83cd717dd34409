// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-setup/internal/history"
	"github.com/jeranaias/rigrun-setup/internal/setup"
)

func (a *App) newHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previous setup and uninstall runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, ok, err := a.openHistory()
			if err != nil {
				return err
			}
			if !ok {
				printRuns(cmd.OutOrStdout(), nil)
				return nil
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return fatalError(err)
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show (0 for all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show the steps of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ok, err := a.openHistory()
			if err != nil {
				return err
			}
			if !ok {
				return fatalError(fmt.Errorf("%w: %s", history.ErrNotFound, args[0]))
			}
			defer store.Close()

			run, err := store.Get(cmd.Context(), args[0])
			if errors.Is(err, history.ErrAmbiguous) {
				return usageError(err)
			}
			if err != nil {
				return fatalError(err)
			}
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	})
	return cmd
}

// openHistory opens the store. ok is false when nothing was ever recorded.
func (a *App) openHistory() (*history.Store, bool, error) {
	if a.HistoryPath == "" {
		return nil, false, nil
	}
	if _, err := os.Stat(a.HistoryPath); errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	store, err := history.Open(a.HistoryPath)
	if err != nil {
		return nil, false, fatalError(err)
	}
	return store, true, nil
}

func printRuns(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range runs {
		model := r.Model
		if model == "" {
			model = "-"
		}
		fmt.Fprintf(w, "%s  %-15s %-16s exit %d  %s  %s\n",
			r.ShortID(), r.Mode, model, r.ExitCode, warningCount(r.Warnings), humanize.Time(r.StartedAt))
	}
}

func printRun(w io.Writer, r history.Run) {
	fmt.Fprintln(w, RenderConditional(TitleStyle, "Run "+r.ID))
	fmt.Fprintln(w, RenderSeparator())
	fmt.Fprintf(w, "%s %s (%s)\n", renderLabel("Started"), r.StartedAt.Format("2006-01-02 15:04:05"), humanize.Time(r.StartedAt))
	fmt.Fprintf(w, "%s %s\n", renderLabel("Duration"), r.Duration)
	fmt.Fprintf(w, "%s %s\n", renderLabel("Mode"), r.Mode)
	if r.Model != "" {
		fmt.Fprintf(w, "%s %s, %d tokens\n", renderLabel("Model"), r.Model, r.ContextTokens)
	}
	fmt.Fprintf(w, "%s %d\n", renderLabel("Exit code"), r.ExitCode)
	fmt.Fprintln(w, RenderSeparator())
	for _, s := range r.Steps {
		fmt.Fprintln(w, RenderStep(setup.Step{
			Name:        s.Name,
			Status:      parseStatus(s.Status),
			Detail:      s.Detail,
			Remediation: s.Remediation,
		}))
	}
}

func parseStatus(s string) setup.Status {
	for _, st := range []setup.Status{setup.StatusOK, setup.StatusWarn, setup.StatusSkip, setup.StatusFail} {
		if st.String() == s {
			return st
		}
	}
	return setup.StatusWarn
}

func warningCount(n int) string {
	switch n {
	case 0:
		return "no warnings"
	case 1:
		return "1 warning"
	default:
		return fmt.Sprintf("%d warnings", n)
	}
}
