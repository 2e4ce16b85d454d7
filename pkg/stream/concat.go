// SPDX-License-Identifier: MPL-2.0

package stream

import (
	"bytes"
	"context"
	"path/filepath"

	"github.com/invowk/tplcache/pkg/vfile"
)

// concat buffers every file and emits one joined file on Flush.
type concat struct {
	filename string
	sep      []byte
	first    *vfile.File
	parts    [][]byte
}

// Concat returns a stage that collects every file it receives and, on Flush,
// emits exactly one file named filename whose contents are the received
// contents joined by sep, in arrival order.
//
// The output takes its Base and Cwd from the first received file and its Path
// is filename joined to that base. When nothing was received the output is
// empty and its Path is filename itself.
func Concat(filename, sep string) Transform {
	return &concat{filename: filename, sep: []byte(sep)}
}

func (c *concat) Transform(_ context.Context, f *vfile.File, _ Emit) error {
	if c.first == nil {
		c.first = f
	}
	c.parts = append(c.parts, f.Contents)
	return nil
}

func (c *concat) Flush(ctx context.Context, emit Emit) error {
	out := &vfile.File{
		Path:     c.filename,
		Contents: bytes.Join(c.parts, c.sep),
	}
	if c.first != nil {
		out.Base = c.first.Base
		out.Cwd = c.first.Cwd
		out.Path = filepath.Join(c.first.Base, c.filename)
	}
	if out.Contents == nil {
		out.Contents = []byte{}
	}
	return emit(ctx, out)
}
