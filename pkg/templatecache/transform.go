// SPDX-License-Identifier: MPL-2.0

package templatecache

import (
	"context"
	"fmt"
	"weak"

	"github.com/invowk/tplcache/pkg/jsesc"
	"github.com/invowk/tplcache/pkg/stream"
	"github.com/invowk/tplcache/pkg/tmpl"
	"github.com/invowk/tplcache/pkg/vfile"
)

// fileTransform renders each eligible file into one $templateCache.put
// fragment.
type fileTransform struct {
	opts Options
	body *tmpl.Template
	// seen holds weak pointers so written records can be collected while
	// the run is still going.
	seen     map[weak.Pointer[vfile.File]]struct{}
	rendered int
}

func newFileTransform(opts Options, body *tmpl.Template) *fileTransform {
	return &fileTransform{opts: opts, body: body, seen: make(map[weak.Pointer[vfile.File]]struct{})}
}

// Transform applies, in order: duplicate records are dropped, processed
// records pass through, directories are dropped, and everything else is
// rendered into a new processed record.
func (t *fileTransform) Transform(ctx context.Context, f *vfile.File, emit stream.Emit) error {
	log := t.opts.Logger

	key := weak.Make(f)
	if _, dup := t.seen[key]; dup {
		log.Debug("Skipping file written twice", "path", f.Path)
		return nil
	}
	t.seen[key] = struct{}{}

	if f.Processed {
		log.Debug("Passing through processed file", "path", f.Path)
		return emit(ctx, f)
	}
	if f.Path == "" {
		return ErrMissingPath
	}
	if f.IsDirectory() {
		log.Debug("Skipping directory", "path", f.Path)
		return nil
	}
	if f.IsNull() {
		return fmt.Errorf("%s: %w", f.Path, ErrNullContents)
	}

	url := resolveURL(f, t.opts)
	fragment, err := renderFragment(t.body, url, jsesc.Escape(string(f.Contents), t.opts.EscapeOptions), f)
	if err != nil {
		return fmt.Errorf("%s: %w", f.Path, err)
	}

	t.rendered++
	log.Debug("Registered template", "url", url, "path", f.Path)
	return emit(ctx, f.WithContents([]byte(fragment)))
}

// Flush forgets the records seen in this run. Fragments were already
// emitted as they were rendered.
func (t *fileTransform) Flush(context.Context, stream.Emit) error {
	clear(t.seen)
	return nil
}

// renderFragment executes the body template for one file.
func renderFragment(body *tmpl.Template, url, contents string, f *vfile.File) (string, error) {
	return body.Execute(map[string]any{
		"url":      url,
		"contents": contents,
		"file":     f.TemplateData(),
	})
}
