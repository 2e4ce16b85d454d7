// SPDX-License-Identifier: MPL-2.0

// Package watch rebuilds the template cache when source templates change.
//
// A Watcher registers every non-ignored directory below BaseDir with
// fsnotify, filters events through the source patterns and calls Rebuild
// once per quiet period with the set of changed paths.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce applies when Config.Debounce is not positive.
const DefaultDebounce = 300 * time.Millisecond

var (
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("watch: Run called more than once")
	// ErrInvalidPattern is the sentinel error wrapped by InvalidPatternError.
	ErrInvalidPattern = errors.New("invalid watch pattern")

	// defaultIgnores are never watched: VCS metadata, dependency trees and
	// editor scratch files.
	defaultIgnores = []string{
		"**/.git/**",
		"**/node_modules/**",
		"**/bower_components/**",
		"**/*.swp",
		"**/*.swo",
		"**/*~",
		"**/.DS_Store",
	}
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// BaseDir is the directory patterns are relative to. Empty means the
		// working directory.
		BaseDir string

		// Patterns select the files that trigger a rebuild. A leading "!"
		// excludes matches. An empty slice matches every non-ignored file.
		Patterns []string

		// Ignore lists extra patterns that never trigger a rebuild, typically
		// the generated file itself.
		Ignore []string

		// Debounce is the quiet period after the last event.
		Debounce time.Duration

		// ClearScreen writes an ANSI clear sequence to Stdout before each rebuild.
		ClearScreen bool

		// Rebuild receives the sorted changed paths, relative to BaseDir.
		Rebuild func(ctx context.Context, changed []string) error

		Stdout io.Writer
		Logger *log.Logger
	}

	// InvalidPatternError is returned by New for a malformed glob.
	// It wraps ErrInvalidPattern for errors.Is() compatibility.
	InvalidPatternError struct {
		Kind    string
		Pattern string
		Cause   error
	}

	// Watcher monitors BaseDir. Run must be called at most once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		include  []string
		exclude  []string
		ignores  []string
		baseDir  string
		debounce time.Duration
		stdout   io.Writer
		logger   *log.Logger
		started  atomic.Bool
		rebuilds atomic.Int64
	}
)

// New validates cfg, creates the fsnotify watcher and registers the
// directory tree below BaseDir.
func New(cfg Config) (*Watcher, error) {
	include, exclude := splitPatterns(cfg.Patterns)
	if err := validatePatterns("source", include, exclude); err != nil {
		return nil, err
	}
	if err := validatePatterns("ignore", cfg.Ignore); err != nil {
		return nil, err
	}

	baseDir := cfg.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("watch: determine working directory: %w", err)
		}
		baseDir = wd
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve base directory: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		include:  include,
		exclude:  exclude,
		ignores:  slices.Concat(defaultIgnores, cfg.Ignore),
		baseDir:  absBase,
		debounce: cfg.Debounce,
		stdout:   cfg.Stdout,
		logger:   cfg.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.stdout == nil {
		w.stdout = os.Stdout
	}
	if w.logger == nil {
		w.logger = log.New(io.Discard)
	}

	w.fsw, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	if err := w.addTree(absBase); err != nil {
		w.fsw.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}
	return w, nil
}

// Rebuilds reports how many times Rebuild has been called.
func (w *Watcher) Rebuilds() int64 { return w.rebuilds.Load() }

// Run processes events until ctx is canceled. Rebuild runs on the event
// loop, so events that arrive while it works are batched into the next
// round instead of overlapping it. Run returns nil on cancellation and an
// error when the watcher itself breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("Closing file watcher failed", "err", err)
		}
	}()

	w.logger.Info("Watching for changes", "dir", w.baseDir, "debounce", w.debounce)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			rel, relevant := w.classify(evt)
			if !relevant {
				continue
			}
			w.logger.Debug("File changed", "path", rel, "op", evt.Op.String())
			pending[rel] = struct{}{}
			timer.Reset(w.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := slices.Sorted(maps.Keys(pending))
			clear(pending)
			w.rebuild(ctx, changed)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isResourceExhausted(err) {
				return fmt.Errorf("watch: file watcher exhausted system resources: %w", err)
			}
			w.logger.Warn("File watcher error", "err", err)
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context, changed []string) {
	if ctx.Err() != nil {
		return
	}
	if w.cfg.ClearScreen {
		fmt.Fprint(w.stdout, "\033[2J\033[H")
	}
	w.rebuilds.Add(1)
	if w.cfg.Rebuild == nil {
		return
	}
	if err := w.cfg.Rebuild(ctx, changed); err != nil {
		// Keep watching; the next save may fix the template.
		w.logger.Error("Rebuild failed", "err", err)
	}
}

// classify maps an event to a BaseDir-relative path and reports whether it
// should schedule a rebuild. New directories are registered as a side effect.
func (w *Watcher) classify(evt fsnotify.Event) (string, bool) {
	rel, err := filepath.Rel(w.baseDir, evt.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if w.isIgnored(rel) {
		return "", false
	}

	if evt.Has(fsnotify.Create) {
		if info, statErr := os.Stat(evt.Name); statErr == nil && info.IsDir() {
			if addErr := w.addTree(evt.Name); addErr != nil {
				w.logger.Warn("Cannot watch new directory", "dir", rel, "err", addErr)
			}
			return "", false
		}
	}
	if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write) {
		return "", false
	}

	return rel, w.matches(rel)
}

// addTree registers root and every non-ignored directory below it.
// Unreadable directories are skipped with a warning.
func (w *Watcher) addTree(root string) error {
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("Skipping inaccessible path", "path", path, "err", err)
			return nil //nolint:nilerr // unreadable directories are skipped, not fatal
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.baseDir, path)
		if relErr != nil {
			return nil //nolint:nilerr // not below BaseDir
		}
		rel = filepath.ToSlash(rel)
		if rel != "." && (w.isIgnored(rel) || w.isIgnored(rel+"/")) {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, addErr)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk directory tree: %w", walkErr)
	}
	return nil
}

func (w *Watcher) isIgnored(rel string) bool {
	return matchAny(w.ignores, rel)
}

// matches applies the source patterns: any include and no exclude.
func (w *Watcher) matches(rel string) bool {
	if len(w.include) > 0 && !matchAny(w.include, rel) {
		return false
	}
	return !matchAny(w.exclude, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}

// splitPatterns separates "!" exclusions and strips a leading "./".
func splitPatterns(patterns []string) (include, exclude []string) {
	for _, p := range patterns {
		negated := strings.HasPrefix(p, "!")
		p = strings.TrimPrefix(strings.TrimPrefix(p, "!"), "./")
		if negated {
			exclude = append(exclude, p)
		} else {
			include = append(include, p)
		}
	}
	return include, exclude
}

func validatePatterns(kind string, groups ...[]string) error {
	for _, patterns := range groups {
		for _, pat := range patterns {
			if !doublestar.ValidatePattern(pat) {
				return &InvalidPatternError{Kind: kind, Pattern: pat, Cause: doublestar.ErrBadPattern}
			}
		}
	}
	return nil
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

// Error implements the error interface for InvalidPatternError.
func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("watch: invalid %s pattern %q: %v", e.Kind, e.Pattern, e.Cause)
}

// Unwrap returns ErrInvalidPattern for errors.Is() compatibility.
func (e *InvalidPatternError) Unwrap() error { return ErrInvalidPattern }
