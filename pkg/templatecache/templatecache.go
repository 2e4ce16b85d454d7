// SPDX-License-Identifier: MPL-2.0

// Package templatecache builds one JavaScript file that registers a set of
// HTML templates in AngularJS's $templateCache.
//
// A Pipeline receives files one at a time. Each file becomes a
// $templateCache.put(url, contents) statement keyed by a URL derived from its
// path; End joins the statements, wraps them in a module declaration and an
// optional module-system envelope, and returns the single generated file.
//
//	p, err := templatecache.New(templatecache.Options{Module: "app.templates"})
//	if err != nil {
//		return err
//	}
//	out, err := p.Run(ctx, slices.Values(files))
package templatecache

import (
	"context"
	"fmt"
	"iter"

	"github.com/invowk/tplcache/pkg/stream"
	"github.com/invowk/tplcache/pkg/tmpl"
	"github.com/invowk/tplcache/pkg/vfile"
)

// Pipeline turns template files into one generated file.
// It is not safe for concurrent use.
type Pipeline struct {
	opts  Options
	files *fileTransform
	inner *stream.Pipeline
	out   *vfile.File
}

// New returns a Pipeline configured by opts. The output file is named
// opts.Filename, or DefaultFilename when that is empty.
func New(opts Options) (*Pipeline, error) {
	if ok, errs := opts.ModuleSystem.IsValid(); !ok {
		return nil, errs[0]
	}
	if opts.Base != "" && opts.BaseFunc != nil {
		return nil, ErrConflictingBase
	}

	opts = opts.withDefaults()
	if err := validateFilename(opts.Filename); err != nil {
		return nil, err
	}

	body, err := tmpl.Compile("template body", opts.TemplateBody)
	if err != nil {
		return nil, err
	}
	header, err := compileOptional("template header", *opts.TemplateHeader)
	if err != nil {
		return nil, err
	}
	footer, err := compileOptional("template footer", *opts.TemplateFooter)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{opts: opts, files: newFileTransform(opts, body)}
	p.inner = stream.Compose(p.collect,
		p.files,
		stream.Concat(opts.Filename, "\n"),
		stream.Header(header, map[string]any{"module": opts.Module, "standalone": opts.standalone()}),
		stream.Footer(footer, map[string]any{"module": opts.Module}),
		stream.Text(opts.ModuleSystem.Header(), true),
		stream.Text(opts.ModuleSystem.Footer(), false),
	)
	return p, nil
}

// NewWithFilename is New with the output filename given separately. If
// opts.Filename is also set it must be equal to filename.
func NewWithFilename(filename string, opts Options) (*Pipeline, error) {
	if filename == "" {
		return nil, &InvalidFilenameError{Value: filename}
	}
	if opts.Filename != "" && opts.Filename != filename {
		return nil, fmt.Errorf("%w: %q and %q", ErrAmbiguousFilename, filename, opts.Filename)
	}
	opts.Filename = filename
	return New(opts)
}

// Write renders f and buffers the result. Errors fail the pipeline.
func (p *Pipeline) Write(ctx context.Context, f *vfile.File) error {
	return p.inner.Write(ctx, f)
}

// End finishes the run and returns the generated file. It returns an error,
// and no file, if any Write failed.
func (p *Pipeline) End(ctx context.Context) (*vfile.File, error) {
	if err := p.inner.End(ctx); err != nil {
		return nil, err
	}
	p.opts.Logger.Debug("Generated template cache",
		"file", p.out.Relative(), "templates", p.files.rendered, "bytes", len(p.out.Contents))
	return p.out, nil
}

// Run writes every file of files and ends the pipeline.
func (p *Pipeline) Run(ctx context.Context, files iter.Seq[*vfile.File]) (*vfile.File, error) {
	for f := range files {
		if err := p.Write(ctx, f); err != nil {
			return nil, err
		}
	}
	return p.End(ctx)
}

// Count returns the number of templates rendered so far.
func (p *Pipeline) Count() int { return p.files.rendered }

func (p *Pipeline) collect(_ context.Context, f *vfile.File) error {
	p.out = f
	return nil
}

// compileOptional compiles src, returning a nil template for empty text so
// the corresponding stage passes files through.
func compileOptional(name, src string) (*tmpl.Template, error) {
	if src == "" {
		return nil, nil //nolint:nilnil // an empty template adds nothing
	}
	return tmpl.Compile(name, src)
}
