// SPDX-License-Identifier: MPL-2.0

// Package vfs reads template files from disk into vfile records and writes
// the generated artifact back.
package vfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/invowk/tplcache/pkg/vfile"
)

var (
	// ErrNoPatterns is returned by Src when no positive pattern is given.
	ErrNoPatterns = errors.New("vfs: no source patterns")
	// ErrBadPattern wraps doublestar.ErrBadPattern with the offending pattern.
	ErrBadPattern = doublestar.ErrBadPattern
)

// SrcOptions configures Src.
type SrcOptions struct {
	// Patterns are doublestar globs relative to Cwd. A leading "!" excludes
	// matches of earlier and later patterns alike.
	Patterns []string
	// Cwd defaults to the working directory.
	Cwd string
	// Dot includes paths with a segment starting with ".".
	Dot    bool
	Logger *log.Logger
}

type source struct {
	base    string
	pattern string
}

// Src expands the patterns and reads every match. Results follow pattern
// order, sorted within a pattern, with each path reported once. A file's
// Base is the static prefix of the pattern that matched it. Directories are
// returned with their stat and no contents.
func Src(ctx context.Context, opts SrcOptions) ([]*vfile.File, error) {
	cwd := opts.Cwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("vfs: determine working directory: %w", err)
		}
		cwd = wd
	}
	cwd, err := filepath.Abs(cwd)
	if err != nil {
		return nil, fmt.Errorf("vfs: resolve working directory: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	var (
		sources  []source
		excludes []string
	)
	for _, p := range opts.Patterns {
		negated := strings.HasPrefix(p, "!")
		abs := filepath.ToSlash(absPattern(cwd, strings.TrimPrefix(p, "!")))
		if !doublestar.ValidatePattern(abs) {
			return nil, fmt.Errorf("vfs: pattern %q: %w", p, ErrBadPattern)
		}
		if negated {
			excludes = append(excludes, abs)
			continue
		}
		base, _ := doublestar.SplitPattern(abs)
		sources = append(sources, source{base: filepath.FromSlash(base), pattern: abs})
	}
	if len(sources) == 0 {
		return nil, ErrNoPatterns
	}

	seen := make(map[string]struct{})
	var files []*vfile.File
	for _, src := range sources {
		matches, err := doublestar.FilepathGlob(filepath.FromSlash(src.pattern))
		if err != nil {
			return nil, fmt.Errorf("vfs: glob %q: %w", src.pattern, err)
		}
		slices.Sort(matches)

		for _, match := range matches {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("vfs: read canceled: %w", err)
			}
			if _, dup := seen[match]; dup {
				continue
			}
			if excluded(excludes, match) || (!opts.Dot && hasDotSegment(src.base, match)) {
				continue
			}
			seen[match] = struct{}{}

			f, err := read(match, src.base, cwd)
			if err != nil {
				return nil, err
			}
			logger.Debug("Matched source", "path", f.Relative(), "dir", f.IsDirectory())
			files = append(files, f)
		}
	}
	return files, nil
}

func absPattern(cwd, pattern string) string {
	pattern = filepath.FromSlash(pattern)
	if filepath.IsAbs(pattern) {
		return pattern
	}
	return filepath.Join(cwd, pattern)
}

func excluded(excludes []string, path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pat := range excludes {
		if ok, err := doublestar.Match(pat, slashed); err == nil && ok {
			return true
		}
	}
	return false
}

func hasDotSegment(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	for seg := range strings.SplitSeq(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(seg, ".") && seg != "." && seg != ".." {
			return true
		}
	}
	return false
}

func read(path, base, cwd string) (*vfile.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("vfs: stat %s: %w", path, err)
	}
	var contents []byte
	if !info.IsDir() {
		contents, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("vfs: read %s: %w", path, err)
		}
	}
	f, err := vfile.New(path, base, contents)
	if err != nil {
		return nil, err
	}
	f.Cwd = cwd
	f.Stat = info
	return f, nil
}

// Dest writes f below dir at its relative path, creating directories as
// needed, and returns the written path.
func Dest(dir string, f *vfile.File) (string, error) {
	target := filepath.Join(dir, f.Relative())
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("vfs: create %s: %w", filepath.Dir(target), err)
	}
	if err := os.WriteFile(target, f.Contents, 0o644); err != nil {
		return "", fmt.Errorf("vfs: write %s: %w", target, err)
	}
	return target, nil
}
