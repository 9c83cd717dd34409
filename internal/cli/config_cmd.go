// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/rigrun-setup/internal/config"
)

func (a *App) newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the defaults file",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(a.newConfigInitCommand(opts), a.newConfigShowCommand(opts))
	return cmd
}

// defaultsPath is --config, or the TOML file in the state directory.
func (a *App) defaultsPath(opts *rootOptions) string {
	if opts.configPath != "" {
		return config.ExpandHome(opts.configPath, a.Platform.Home)
	}
	return filepath.Join(a.Platform.StateDir(), "setup.toml")
}

func (a *App) newConfigInitCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a defaults file with the built-in values",
		Long: `Write the built-in defaults to ~/.rigrun/setup.toml (or --config) so they
can be edited. An existing file is never overwritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.defaultsPath(opts)
			if filepath.Ext(path) != ".toml" {
				return usageError(fmt.Errorf("config init writes TOML; %s does not end in .toml", path))
			}
			if err := config.SaveTOML(config.Default(), path); err != nil {
				if errors.Is(err, fs.ErrExist) {
					return fatalError(fmt.Errorf("%s already exists", path))
				}
				return fatalError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
}

func (a *App) newConfigShowCommand(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after the defaults file, the environment and the
flags have been applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if opts.configFile != "" {
				fmt.Fprintf(out, "# loaded from %s\n", opts.configFile)
			}
			switch format {
			case "toml":
				if err := toml.NewEncoder(out).Encode(opts.cfg); err != nil {
					return fatalError(err)
				}
				return nil
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(opts.cfg); err != nil {
					return fatalError(err)
				}
				return enc.Close()
			default:
				return usageError(fmt.Errorf("unknown format %q (want toml or yaml)", format))
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "toml", "output format: toml or yaml")
	return cmd
}

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rigrun-setup %s\n", a.Version)
		},
	}
}
