// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/invowk/tplcache/internal/config"
	"github.com/invowk/tplcache/internal/issue"
	"github.com/invowk/tplcache/internal/vfs"
	"github.com/invowk/tplcache/internal/watch"
	"github.com/invowk/tplcache/pkg/templatecache"
	"github.com/invowk/tplcache/pkg/tmpl"
	"github.com/invowk/tplcache/pkg/vfile"
)

type (
	// buildFlagValues holds the build command's flags. Only flags the user
	// changed override the configuration.
	buildFlagValues struct {
		out            string
		filename       string
		root           string
		base           string
		module         string
		standalone     bool
		moduleSystem   string
		templateBody   string
		templateHeader string
		templateFooter string
		rewrite        []string
		stdout         bool
		watch          bool
		dot            bool
	}

	// builder runs one build per call with a fixed configuration.
	builder struct {
		app      *App
		cfg      *config.Config
		opts     templatecache.Options
		patterns []string
		cwd      string
		stdout   bool
		dot      bool
		logger   *log.Logger
	}
)

func newBuildCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &buildFlagValues{}

	buildCmd := &cobra.Command{
		Use:   "build [patterns...]",
		Short: "Generate the template cache file",
		Long: `Generate the template cache file.

Patterns are doublestar globs relative to the current directory; a leading
"!" excludes matches. Without arguments the config "src" list is used,
which defaults to **/*.html.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, app, rootFlags, flags, args)
		},
	}

	bf := buildCmd.Flags()
	bf.StringVarP(&flags.out, "out", "o", ".", "output directory")
	bf.StringVar(&flags.filename, "filename", templatecache.DefaultFilename, "name of the generated file")
	bf.StringVar(&flags.root, "root", "", "prefix for template URLs")
	bf.StringVar(&flags.base, "base", "", "directory stripped from template paths (default: each pattern's static prefix)")
	bf.StringVar(&flags.module, "module", templatecache.DefaultModule, "AngularJS module name")
	bf.BoolVar(&flags.standalone, "standalone", false, "declare a new module instead of reusing an existing one")
	bf.StringVar(&flags.moduleSystem, "module-system", "", "wrap the output for requirejs, browserify, es6 or iife")
	bf.StringVar(&flags.templateBody, "template-body", "", "template for each $templateCache.put statement")
	bf.StringVar(&flags.templateHeader, "template-header", "", "template opening the module (empty removes it)")
	bf.StringVar(&flags.templateFooter, "template-footer", "", "template closing the module (empty removes it)")
	bf.StringArrayVar(&flags.rewrite, "rewrite", nil, "rewrite URLs with REGEXP=REPLACEMENT (repeatable)")
	bf.BoolVar(&flags.stdout, "stdout", false, "print the generated file instead of writing it")
	bf.BoolVarP(&flags.watch, "watch", "w", false, "rebuild when templates change")
	bf.BoolVar(&flags.dot, "dot", false, "include files and directories starting with a dot")

	return buildCmd
}

func runBuild(cmd *cobra.Command, app *App, rootFlags *rootFlagValues, flags *buildFlagValues, args []string) error {
	ctx := cmd.Context()

	cfg, cfgPath, err := app.Config.Load(ctx, config.LoadOptions{ConfigFilePath: rootFlags.configPath})
	if err != nil {
		renderIssue(app.stderr, err, config.ColorSchemeAuto)
		return &ExitError{Code: 1, Err: err}
	}

	logger := newLogger(app.stderr, rootFlags.verbose || cfg.UI.Verbose)
	if cfgPath != "" {
		logger.Debug("Loaded configuration", "file", cfgPath)
	}

	if err := applyBuildFlags(cmd.Flags(), cfg, flags); err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	b, err := newBuilder(app, cfg, args, flags, logger)
	if err != nil {
		renderIssue(app.stderr, err, cfg.UI.ColorScheme)
		return &ExitError{Code: 1, Err: err}
	}

	if flags.watch {
		return b.watch(ctx, cfg)
	}

	if err := b.build(ctx); err != nil {
		renderIssue(app.stderr, err, cfg.UI.ColorScheme)
		return &ExitError{Code: 1, Err: err}
	}
	return nil
}

// applyBuildFlags copies every changed flag onto cfg and revalidates it.
func applyBuildFlags(flagSet *pflag.FlagSet, cfg *config.Config, flags *buildFlagValues) error {
	changed := flagSet.Changed

	if changed("out") {
		cfg.Out = flags.out
	}
	if changed("filename") {
		cfg.Filename = flags.filename
	}
	if changed("root") {
		cfg.Root = flags.root
	}
	if changed("base") {
		cfg.Base = flags.base
	}
	if changed("module") {
		cfg.Module = flags.module
	}
	if changed("standalone") {
		cfg.Standalone = flags.standalone
	}
	if changed("module-system") {
		cfg.ModuleSystem = flags.moduleSystem
	}
	if changed("template-body") {
		cfg.Templates.Body = flags.templateBody
	}
	if changed("template-header") {
		cfg.Templates.Header = &flags.templateHeader
	}
	if changed("template-footer") {
		cfg.Templates.Footer = &flags.templateFooter
	}
	if changed("rewrite") {
		rules, err := parseRewriteFlags(flags.rewrite)
		if err != nil {
			return err
		}
		cfg.Rewrite = rules
	}

	if valid, errs := cfg.IsValid(); !valid {
		return issue.NewErrorContext().
			WithOperation("validate build options").
			WithSuggestion("Check the flag values against 'tplcache build --help'").
			WithIssue(issue.ConfigInvalidId).
			Wrap(errors.Join(errs...)).
			BuildError()
	}
	return nil
}

// parseRewriteFlags splits REGEXP=REPLACEMENT at the first "=".
func parseRewriteFlags(values []string) ([]config.RewriteRule, error) {
	rules := make([]config.RewriteRule, 0, len(values))
	for _, v := range values {
		pattern, replace, ok := strings.Cut(v, "=")
		if !ok || pattern == "" {
			return nil, fmt.Errorf("invalid --rewrite %q: want REGEXP=REPLACEMENT", v)
		}
		rules = append(rules, config.RewriteRule{Pattern: pattern, Replace: replace})
	}
	return rules, nil
}

func newBuilder(app *App, cfg *config.Config, args []string, flags *buildFlagValues, logger *log.Logger) (*builder, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	opts, known, err := cfg.TemplateCacheOptions()
	if err != nil {
		return nil, err
	}
	if !known {
		logger.Warn("Unknown module system, output will not be wrapped",
			"module_system", cfg.ModuleSystem,
			"valid", templatecache.ModuleSystems())
		if logger.GetLevel() <= log.DebugLevel {
			if guide, renderErr := issue.Get(issue.InvalidModuleSystemId).Render(string(cfg.UI.ColorScheme)); renderErr == nil {
				fmt.Fprint(app.stderr, guide)
			}
		}
	}
	// File paths are absolute, so a relative base must be too.
	if opts.Base != "" && !filepath.IsAbs(opts.Base) {
		opts.Base = filepath.Join(cwd, opts.Base)
	}
	opts.Logger = logger

	// Validate options once up front so a bad template fails before watching.
	if _, err := templatecache.New(opts); err != nil {
		return nil, classifyBuildError(err, "")
	}

	patterns := args
	if len(patterns) == 0 {
		for _, p := range cfg.Src {
			patterns = append(patterns, p.String())
		}
	}

	return &builder{
		app:      app,
		cfg:      cfg,
		opts:     opts,
		patterns: patterns,
		cwd:      cwd,
		stdout:   flags.stdout,
		dot:      flags.dot,
		logger:   logger,
	}, nil
}

// build runs the whole pipeline once: collect, render, write.
func (b *builder) build(ctx context.Context) error {
	files, err := vfs.Src(ctx, vfs.SrcOptions{
		Patterns: b.patterns,
		Cwd:      b.cwd,
		Dot:      b.dot,
		Logger:   b.logger,
	})
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("collect templates").
			WithResource(strings.Join(b.patterns, " ")).
			WithIssue(issue.NoTemplatesFoundId).
			Wrap(err).
			BuildError()
	}
	if !slices.ContainsFunc(files, func(f *vfile.File) bool { return !f.IsDirectory() }) {
		b.logger.Warn("No templates matched; the generated module will be empty", "patterns", b.patterns)
	}

	pipeline, err := templatecache.New(b.opts)
	if err != nil {
		return classifyBuildError(err, "")
	}
	out, err := pipeline.Run(ctx, slices.Values(files))
	if err != nil {
		return classifyBuildError(err, "")
	}

	if b.stdout {
		if _, err := b.app.stdout.Write(out.Contents); err != nil {
			return issue.WrapWithOperation(err, "write to stdout")
		}
		return nil
	}

	path, err := vfs.Dest(b.cfg.Out, out)
	if err != nil {
		return classifyBuildError(err, filepath.Join(b.cfg.Out, out.Relative()))
	}
	fmt.Fprintf(b.app.stdout, "%s Wrote %s %s\n",
		SuccessStyle.Render("✓"),
		PathStyle.Render(path),
		SubtitleStyle.Render(fmt.Sprintf("(%d templates, %d bytes)", pipeline.Count(), len(out.Contents))))
	return nil
}

// watch builds once, then rebuilds on every relevant change until ctx ends.
func (b *builder) watch(ctx context.Context, cfg *config.Config) error {
	if b.stdout {
		return errors.New("--watch and --stdout cannot be used together")
	}

	if err := b.build(ctx); err != nil {
		// The user may fix the template and save again.
		b.logger.Error("Initial build failed", "err", formatErrorForDisplay(err, false))
	}

	ignore := slices.Clone(cfg.Watch.Ignore)
	if rel, err := filepath.Rel(b.cwd, filepath.Join(b.cfg.Out, b.opts.Filename)); err == nil {
		ignore = append(ignore, filepath.ToSlash(rel))
	}

	w, err := watch.New(watch.Config{
		BaseDir:     b.cwd,
		Patterns:    b.patterns,
		Ignore:      ignore,
		Debounce:    cfg.Watch.Debounce.Duration(),
		ClearScreen: cfg.Watch.ClearScreen,
		Stdout:      b.app.stdout,
		Logger:      b.logger,
		Rebuild: func(ctx context.Context, changed []string) error {
			b.logger.Info("Rebuilding", "changed", len(changed))
			return b.build(ctx)
		},
	})
	if err != nil {
		return b.watchError(err)
	}
	if err := w.Run(ctx); err != nil {
		return b.watchError(err)
	}
	return nil
}

func (b *builder) watchError(err error) error {
	wrapped := issue.NewErrorContext().
		WithOperation("watch templates").
		WithResource(b.cwd).
		WithIssue(issue.WatchFailedId).
		Wrap(err).
		BuildError()
	renderIssue(b.app.stderr, wrapped, b.cfg.UI.ColorScheme)
	return &ExitError{Code: 1, Err: wrapped}
}

// classifyBuildError links pipeline and output failures to their catalog
// entries.
func classifyBuildError(err error, resource string) error {
	ec := issue.NewErrorContext().WithResource(resource).Wrap(err)

	switch {
	case errors.Is(err, tmpl.ErrSyntax):
		ec.WithOperation("compile templates").
			WithIssue(issue.TemplateSyntaxErrorId).
			WithSuggestion("Fix the template flag or the templates section of your config")
	case errors.Is(err, tmpl.ErrMissingValue):
		ec.WithOperation("render templates").
			WithIssue(issue.TemplateRenderFailedId)
	case errors.Is(err, templatecache.ErrInvalidFilename):
		ec.WithOperation("validate output filename").
			WithIssue(issue.InvalidOutputFilenameId).
			WithSuggestion("Pass a relative name such as --filename templates.js")
	case errors.Is(err, fs.ErrPermission):
		ec.WithOperation("write template cache").
			WithIssue(issue.PermissionDeniedId)
	case errors.Is(err, templatecache.ErrNullContents), errors.Is(err, templatecache.ErrMissingPath):
		ec.WithOperation("read templates")
	case resource != "":
		ec.WithOperation("write template cache").
			WithIssue(issue.OutputWriteFailedId).
			WithSuggestion("Use --stdout to print the result instead")
	default:
		ec.WithOperation("build template cache")
	}
	return ec.BuildError()
}
