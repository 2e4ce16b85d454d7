// SPDX-License-Identifier: MPL-2.0

package stream

import (
	"context"
	"fmt"
	"maps"

	"github.com/invowk/tplcache/pkg/tmpl"
	"github.com/invowk/tplcache/pkg/vfile"
)

// wrap renders a template per file and prepends or appends it.
type wrap struct {
	tpl     *tmpl.Template
	data    map[string]any
	prepend bool
}

// Header returns a stage that prepends the rendered tpl to every file.
// The template sees data plus "file" (the file's TemplateData) and
// "filename" (the file's base name). A nil tpl passes files through.
func Header(tpl *tmpl.Template, data map[string]any) Transform {
	if tpl == nil {
		return Passthrough()
	}
	return TransformFunc((&wrap{tpl: tpl, data: data, prepend: true}).transform)
}

// Footer returns a stage that appends the rendered tpl to every file,
// with the same data as Header.
func Footer(tpl *tmpl.Template, data map[string]any) Transform {
	if tpl == nil {
		return Passthrough()
	}
	return TransformFunc((&wrap{tpl: tpl, data: data}).transform)
}

// Text returns a stage that prepends (or appends) fixed text without
// template processing.
func Text(text string, prepend bool) Transform {
	if text == "" {
		return Passthrough()
	}
	return TransformFunc(func(ctx context.Context, f *vfile.File, emit Emit) error {
		return emit(ctx, withContents(f, join(f.Contents, []byte(text), prepend)))
	})
}

func (w *wrap) transform(ctx context.Context, f *vfile.File, emit Emit) error {
	data := make(map[string]any, len(w.data)+2)
	maps.Copy(data, w.data)
	data["file"] = f.TemplateData()
	data["filename"] = f.Basename()

	text, err := w.tpl.Execute(data)
	if err != nil {
		return fmt.Errorf("stream: render %s: %w", w.tpl.Name(), err)
	}

	return emit(ctx, withContents(f, join(f.Contents, []byte(text), w.prepend)))
}

func join(contents, text []byte, prepend bool) []byte {
	out := make([]byte, 0, len(contents)+len(text))
	if prepend {
		out = append(out, text...)
		return append(out, contents...)
	}
	out = append(out, contents...)
	return append(out, text...)
}

// withContents copies f with new contents, leaving the processed flag as is.
func withContents(f *vfile.File, contents []byte) *vfile.File {
	out := *f
	out.Contents = contents
	return &out
}
