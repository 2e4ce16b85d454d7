// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/invowk/tplcache/internal/config"
	"github.com/invowk/tplcache/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlagValues holds the persistent flags shared by every subcommand.
type rootFlagValues struct {
	configPath string
	verbose    bool
}

func newRootCommand(app *App, flags *rootFlagValues) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tplcache",
		Short: "Concatenate AngularJS templates into $templateCache",
		Long: TitleStyle.Render("tplcache") + SubtitleStyle.Render(" - AngularJS template cache generator") + `

tplcache reads HTML templates and writes one JavaScript file that
registers each of them in AngularJS's $templateCache, so the
application never fetches a template over the network.

` + SubtitleStyle.Render("Examples:") + `
  tplcache build                          Cache every **/*.html into ./templates.js
  tplcache build 'app/**/*.html' -o dist  Choose sources and output directory
  tplcache build --module-system es6      Wrap the output as an ES module
  tplcache build --watch                  Rebuild whenever a template changes
  tplcache config init --format toml      Create ./tplcache.toml`,
		SilenceUsage: true,
	}
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default ./tplcache.{cue,toml,yaml})")

	rootCmd.AddCommand(newBuildCommand(app, flags))
	rootCmd.AddCommand(newConfigCommand(app, flags))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Main runs the CLI with the process arguments and returns the exit code.
func Main() int {
	return run(context.Background(), NewApp(Dependencies{}), os.Args[1:])
}

// Execute runs the CLI and exits the process. It is called by main.main().
func Execute() {
	os.Exit(Main())
}

func run(ctx context.Context, app *App, args []string) int {
	flags := &rootFlagValues{}
	rootCmd := newRootCommand(app, flags)
	rootCmd.SetArgs(args)

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	err := fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			var ae *issue.ActionableError
			if errors.As(err, &ae) {
				fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, flags.verbose))
				return
			}
			fang.DefaultErrorHandler(w, styles, err)
		}),
	)
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// renderIssue writes the catalog guide linked to err, if any.
func renderIssue(w io.Writer, err error, scheme config.ColorScheme) {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || ae.Issue() == nil {
		return
	}
	rendered, renderErr := ae.Issue().Render(string(scheme))
	if renderErr != nil {
		return
	}
	fmt.Fprint(w, rendered)
}

// newLogger returns the stderr logger every component shares.
func newLogger(w io.Writer, verbose bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          "tplcache",
		ReportTimestamp: false,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}
