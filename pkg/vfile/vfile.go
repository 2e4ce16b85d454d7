// SPDX-License-Identifier: MPL-2.0

// Package vfile defines the file record that flows through a build pipeline.
//
// A File carries a path, the base directory the path is relative to, the
// working directory it was collected from, its contents and optional stat
// metadata. Files are values: pipeline stages never mutate a File they
// receive, they derive a new one with WithContents or Clone.
package vfile

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
)

// ErrEmptyPath is returned when a File is created without a path.
var ErrEmptyPath = errors.New("file path must not be empty")

// File is a single unit of input or output in a pipeline.
type File struct {
	// Path is the file's location, using the host's path separator.
	Path string
	// Base is the directory Path is relative to. It never ends with a separator.
	Base string
	// Cwd is the working directory the file was collected from.
	Cwd string
	// Contents holds the file bytes. A nil slice marks a null file (no contents),
	// which is distinct from an empty file.
	Contents []byte
	// Stat is optional file-system metadata.
	Stat fs.FileInfo
	// Processed is set once a template-cache stage has rendered this file.
	Processed bool
}

// New returns a File for path with the given base and contents. An empty
// base defaults to the directory of path.
func New(path, base string, contents []byte) (*File, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	path = filepath.Clean(path)
	if base == "" {
		base = filepath.Dir(path)
	}
	return &File{
		Path:     path,
		Base:     CleanBase(base),
		Contents: contents,
	}, nil
}

// CleanBase normalizes a base directory: cleaned, with no trailing separator
// (except for the file-system root itself).
func CleanBase(base string) string {
	if base == "" {
		return ""
	}
	return filepath.Clean(base)
}

// Relative returns Path relative to Base. When Path is not inside Base the
// cleaned Path is returned unchanged.
func (f *File) Relative() string {
	p := filepath.Clean(f.Path)
	if f.Base == "" {
		return p
	}
	rel, err := filepath.Rel(f.Base, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return rel
}

// Basename returns the last element of Path.
func (f *File) Basename() string { return filepath.Base(f.Path) }

// Extname returns the extension of Path, including the dot.
func (f *File) Extname() string { return filepath.Ext(f.Path) }

// Stem returns the base name without its extension.
func (f *File) Stem() string { return strings.TrimSuffix(f.Basename(), f.Extname()) }

// Dirname returns the directory of Path.
func (f *File) Dirname() string { return filepath.Dir(f.Path) }

// IsDirectory reports whether stat metadata marks the file as a directory.
// Files without stat metadata are not directories.
func (f *File) IsDirectory() bool {
	return f.Stat != nil && f.Stat.IsDir()
}

// IsNull reports whether the file has no contents.
func (f *File) IsNull() bool { return f.Contents == nil }

// Clone returns a copy of f. The contents slice is copied so the clone can be
// handed to another owner.
func (f *File) Clone() *File {
	c := *f
	if f.Contents != nil {
		c.Contents = append([]byte(nil), f.Contents...)
	}
	return &c
}

// WithContents returns a copy of f holding contents and marked as processed.
func (f *File) WithContents(contents []byte) *File {
	c := *f
	c.Contents = contents
	c.Processed = true
	return &c
}

// TemplateData exposes the file's path attributes to templates.
func (f *File) TemplateData() map[string]any {
	return map[string]any{
		"path":     f.Path,
		"base":     f.Base,
		"cwd":      f.Cwd,
		"relative": f.Relative(),
		"basename": f.Basename(),
		"stem":     f.Stem(),
		"extname":  f.Extname(),
		"dirname":  f.Dirname(),
	}
}
