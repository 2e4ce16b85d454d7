// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/invowk/tplcache/internal/config"
	"github.com/invowk/tplcache/internal/issue"
)

// newConfigCommand creates the `tplcache config` command tree.
func newConfigCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage tplcache configuration",
		Long: `Manage tplcache configuration.

A project file in the current directory takes precedence:
  tplcache.cue, tplcache.toml, tplcache.yaml or tplcache.yml

Otherwise the user file is read from:
  - Linux: ~/.config/tplcache/config.{cue,toml,yaml}
  - macOS: ~/Library/Application Support/tplcache/config.{cue,toml,yaml}
  - Windows: %APPDATA%\tplcache\config.{cue,toml,yaml}

TPLCACHE_* environment variables override file values, for example
TPLCACHE_MODULE or TPLCACHE_ESCAPE_QUOTES.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var showFormat string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app, rootFlags, showFormat)
		},
	}
	showCmd.Flags().StringVar(&showFormat, "format", string(config.FormatCUE), "output format: cue, toml or yaml")

	var (
		initFormat string
		initGlobal bool
		initForce  bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file with the defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app, initFormat, initGlobal, initForce)
		},
	}
	initCmd.Flags().StringVar(&initFormat, "format", string(config.FormatCUE), "file format: cue, toml or yaml")
	initCmd.Flags().BoolVar(&initGlobal, "global", false, "write the user config instead of ./tplcache.<format>")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")

	cfgCmd.AddCommand(showCmd, initCmd, &cobra.Command{
		Use:   "path",
		Short: "Show which configuration file is used",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(app, rootFlags)
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App, rootFlags *rootFlagValues, formatName string) error {
	format, err := config.ParseFormat(formatName)
	if err != nil {
		return err
	}

	cfg, _, err := app.Config.Load(ctx, config.LoadOptions{ConfigFilePath: rootFlags.configPath})
	if err != nil {
		renderIssue(app.stderr, err, config.ColorSchemeAuto)
		return &ExitError{Code: 1, Err: err}
	}

	data, err := config.Encode(cfg, format)
	if err != nil {
		return err
	}
	_, err = app.stdout.Write(data)
	return err
}

func initConfig(app *App, formatName string, global, force bool) error {
	format, err := config.ParseFormat(formatName)
	if err != nil {
		return err
	}

	path := config.LocalConfigPath(".", format)
	if global {
		cfgDir, dirErr := config.ConfigDir()
		if dirErr != nil {
			return dirErr
		}
		path = filepath.Join(cfgDir, config.ConfigFileName+"."+string(format))
	}

	if err := config.WriteFile(config.DefaultConfig(), path, force); err != nil {
		return issue.WrapWithContext(err, "create config", path)
	}

	fmt.Fprintf(app.stdout, "%s Created %s\n", SuccessStyle.Render("✓"), PathStyle.Render(path))
	return nil
}

func showConfigPath(app *App, rootFlags *rootFlagValues) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	path, err := app.Config.Locate(config.LoadOptions{ConfigFilePath: rootFlags.configPath})
	if err != nil {
		return err
	}
	if path == "" {
		path = SubtitleStyle.Render("(none, using defaults)")
	}

	fmt.Fprintf(app.stdout, "Config file: %s\n", path)
	fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
	return nil
}
