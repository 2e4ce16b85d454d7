// SPDX-License-Identifier: MPL-2.0

package templatecache

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/invowk/tplcache/pkg/jsesc"
	"github.com/invowk/tplcache/pkg/platform"
	"github.com/invowk/tplcache/pkg/vfile"
)

const (
	// DefaultFilename is the name of the generated file.
	DefaultFilename = "templates.js"
	// DefaultModule is the AngularJS module the templates are registered in.
	DefaultModule = "templates"

	// DefaultTemplateHeader opens the module declaration and run block.
	DefaultTemplateHeader = "angular.module('<%= module %>'<%= standalone %>).run(['$templateCache', function($templateCache) {"
	// DefaultTemplateBody registers one template in the cache.
	DefaultTemplateBody = "$templateCache.put('<%= url %>','<%= contents %>');"
	// DefaultTemplateFooter closes the run block opened by DefaultTemplateHeader.
	DefaultTemplateFooter = "}]);"

	standaloneMarker = ", []"
)

var (
	// ErrAmbiguousFilename is returned when NewWithFilename receives a filename
	// that differs from Options.Filename.
	ErrAmbiguousFilename = errors.New("filename given both as argument and option")
	// ErrConflictingBase is returned when both Base and BaseFunc are set.
	ErrConflictingBase = errors.New("base and base function are mutually exclusive")
	// ErrInvalidFilename is the sentinel error wrapped by InvalidFilenameError.
	ErrInvalidFilename = errors.New("invalid output filename")
	// ErrMissingPath is returned when a file without a path is written.
	ErrMissingPath = errors.New("file has no path")
	// ErrNullContents is returned when a non-directory file has no contents.
	ErrNullContents = errors.New("file has no contents")
)

type (
	// Options configures a template cache pipeline. The zero value produces
	// the default templates.js output.
	Options struct {
		// Filename is the name of the generated file. Defaults to DefaultFilename.
		Filename string
		// Root is prefixed to every URL. A root of "." or one starting with
		// "./" keeps its leading "./".
		Root string
		// Base is the directory stripped from file paths to form URLs.
		// Defaults to each file's own base.
		Base string
		// BaseFunc computes the URL suffix for a file. Mutually exclusive with Base.
		BaseFunc func(f *vfile.File) string
		// TransformURL rewrites the final URL, after Root has been applied.
		TransformURL func(url string) string
		// EscapeOptions controls how file contents are escaped.
		EscapeOptions jsesc.Options
		// TemplateBody renders one file. Defaults to DefaultTemplateBody.
		TemplateBody string
		// TemplateHeader is prepended to the output. Nil means
		// DefaultTemplateHeader; an empty string adds nothing.
		TemplateHeader *string
		// TemplateFooter is appended to the output. Nil means
		// DefaultTemplateFooter; an empty string adds nothing.
		TemplateFooter *string
		// Module is the AngularJS module name. Defaults to DefaultModule.
		Module string
		// Standalone declares a new module instead of reusing an existing one.
		Standalone bool
		// ModuleSystem wraps the output for a module loader.
		ModuleSystem ModuleSystem
		// Logger receives debug events. Nil discards them.
		Logger *log.Logger
	}

	// InvalidFilenameError is returned when the output filename is absolute,
	// escapes the output directory, or is a reserved device name on Windows.
	// It wraps ErrInvalidFilename for errors.Is() compatibility.
	InvalidFilenameError struct {
		Value string
	}
)

// Error implements the error interface for InvalidFilenameError.
func (e *InvalidFilenameError) Error() string {
	return fmt.Sprintf("invalid output filename %q (must be a relative path inside the output directory)", e.Value)
}

// Unwrap returns ErrInvalidFilename for errors.Is() compatibility.
func (e *InvalidFilenameError) Unwrap() error { return ErrInvalidFilename }

func validateFilename(name string) error {
	return validateFilenameFor(runtime.GOOS, name)
}

// validateFilenameFor accepts relative paths that stay inside the output
// directory. Absolute paths are rejected because the file is always joined
// onto the output directory. Device names such as CON or NUL are only
// rejected when goos is Windows, the one host where they cannot be created.
func validateFilenameFor(goos, name string) error {
	clean := filepath.Clean(name)
	if name == "" || filepath.IsAbs(name) || clean == "." || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return &InvalidFilenameError{Value: name}
	}
	if goos == platform.Windows && platform.IsWindowsReservedName(filepath.Base(clean)) {
		return &InvalidFilenameError{Value: name}
	}
	return nil
}

// withDefaults returns a copy of o with defaults applied and the base
// directory normalized to end with a separator.
func (o Options) withDefaults() Options {
	if o.Filename == "" {
		o.Filename = DefaultFilename
	}
	if o.Module == "" {
		o.Module = DefaultModule
	}
	if o.TemplateBody == "" {
		o.TemplateBody = DefaultTemplateBody
	}
	if o.TemplateHeader == nil {
		header := DefaultTemplateHeader
		o.TemplateHeader = &header
	}
	if o.TemplateFooter == nil {
		footer := DefaultTemplateFooter
		o.TemplateFooter = &footer
	}
	if o.Base != "" && !strings.HasSuffix(o.Base, string(filepath.Separator)) {
		o.Base += string(filepath.Separator)
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o
}

// standalone returns the marker bound into the header template.
func (o Options) standalone() string {
	if o.Standalone {
		return standaloneMarker
	}
	return ""
}
