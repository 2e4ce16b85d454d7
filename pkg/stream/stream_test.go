// SPDX-License-Identifier: MPL-2.0

package stream

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/invowk/tplcache/pkg/tmpl"
	"github.com/invowk/tplcache/pkg/vfile"
)

// collect returns a sink that appends every emitted file to out.
func collect(out *[]*vfile.File) Emit {
	return func(_ context.Context, f *vfile.File) error {
		*out = append(*out, f)
		return nil
	}
}

func file(name, contents string) *vfile.File {
	base := filepath.Join(string(filepath.Separator), "src")
	return &vfile.File{Path: filepath.Join(base, name), Base: base, Contents: []byte(contents)}
}

func TestPipeline_Passthrough(t *testing.T) {
	t.Parallel()

	var got []*vfile.File
	p := Compose(collect(&got), Passthrough(), Passthrough())

	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		if err := p.Write(ctx, file(name, name)); err != nil {
			t.Fatalf("Write(%s) error: %v", name, err)
		}
	}
	if err := p.End(ctx); err != nil {
		t.Fatalf("End() error: %v", err)
	}

	var names []string
	for _, f := range got {
		names = append(names, string(f.Contents))
	}
	if !slices.Equal(names, []string{"a", "b", "c"}) {
		t.Errorf("emitted %v, want [a b c]", names)
	}
}

func TestPipeline_EndTwice(t *testing.T) {
	t.Parallel()

	p := Compose(nil)
	ctx := context.Background()
	if err := p.End(ctx); err != nil {
		t.Fatalf("End() error: %v", err)
	}
	if err := p.End(ctx); !errors.Is(err, ErrEnded) {
		t.Errorf("second End() = %v, want ErrEnded", err)
	}
	if err := p.Write(ctx, file("a", "")); !errors.Is(err, ErrEnded) {
		t.Errorf("Write() after End = %v, want ErrEnded", err)
	}
}

func TestPipeline_ErrorIsSticky(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var got []*vfile.File
	failing := TransformFunc(func(ctx context.Context, f *vfile.File, emit Emit) error {
		if string(f.Contents) == "bad" {
			return boom
		}
		return emit(ctx, f)
	})
	p := Compose(collect(&got), failing, Concat("out.js", "\n"))

	ctx := context.Background()
	if err := p.Write(ctx, file("a", "ok")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := p.Write(ctx, file("b", "bad")); !errors.Is(err, boom) {
		t.Fatalf("Write() = %v, want boom", err)
	}
	if err := p.Write(ctx, file("c", "ok")); !errors.Is(err, boom) {
		t.Errorf("Write() after failure = %v, want boom", err)
	}
	if err := p.End(ctx); !errors.Is(err, boom) {
		t.Errorf("End() after failure = %v, want boom", err)
	}
	if len(got) != 0 {
		t.Errorf("failed pipeline emitted %d files, want 0", len(got))
	}
	if !errors.Is(p.Err(), boom) {
		t.Errorf("Err() = %v, want boom", p.Err())
	}
}

func TestPipeline_NilFileAndCanceledContext(t *testing.T) {
	t.Parallel()

	if err := Compose(nil).Write(context.Background(), nil); !errors.Is(err, ErrNilFile) {
		t.Errorf("Write(nil) = %v, want ErrNilFile", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Compose(nil).Write(ctx, file("a", "")); !errors.Is(err, context.Canceled) {
		t.Errorf("Write() with canceled context = %v, want context.Canceled", err)
	}
}

func TestConcat(t *testing.T) {
	t.Parallel()

	var got []*vfile.File
	p := Compose(collect(&got), Concat("templates.js", "\n"))
	err := p.Run(context.Background(), slices.Values([]*vfile.File{file("a.html", "A"), file("b.html", "B"), file("c.html", "")}))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("emitted %d files, want 1", len(got))
	}
	out := got[0]
	if string(out.Contents) != "A\nB\n" {
		t.Errorf("contents = %q, want %q", out.Contents, "A\nB\n")
	}
	if out.Relative() != "templates.js" {
		t.Errorf("Relative() = %q, want templates.js", out.Relative())
	}
}

func TestConcat_Empty(t *testing.T) {
	t.Parallel()

	var got []*vfile.File
	p := Compose(collect(&got), Concat("templates.js", "\n"))
	if err := p.End(context.Background()); err != nil {
		t.Fatalf("End() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("emitted %d files, want 1", len(got))
	}
	if got[0].Path != "templates.js" || got[0].Contents == nil || len(got[0].Contents) != 0 {
		t.Errorf("empty concat output = %+v", got[0])
	}
}

func TestHeaderFooter(t *testing.T) {
	t.Parallel()

	header := tmpl.MustCompile("header", "/* <%= name %> <%= filename %> */")
	footer := tmpl.MustCompile("footer", "/* end <%= file.relative %> */")

	var got []*vfile.File
	p := Compose(collect(&got),
		Header(header, map[string]any{"name": "x"}),
		Footer(footer, nil),
		Text("(", true),
		Text(")", false),
		Header(nil, nil),
		Text("", true),
	)
	if err := p.Write(context.Background(), file("a.js", "body")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	want := "(/* x a.js */body/* end a.js */)"
	if len(got) != 1 || string(got[0].Contents) != want {
		t.Fatalf("contents = %q, want %q", got[0].Contents, want)
	}
	if got[0].Processed {
		t.Error("wrapping must not mark a file as processed")
	}
}

func TestHeader_MissingValue(t *testing.T) {
	t.Parallel()

	p := Compose(nil, Header(tmpl.MustCompile("header", "<%= missing %>"), nil))
	err := p.Write(context.Background(), file("a.js", ""))
	if !errors.Is(err, tmpl.ErrMissingValue) {
		t.Fatalf("Write() = %v, want tmpl.ErrMissingValue", err)
	}
	if !strings.Contains(err.Error(), "header") {
		t.Errorf("error %q should name the template", err)
	}
}

func TestHeader_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := file("a.js", "body")
	p := Compose(nil, Text("x", true))
	if err := p.Write(context.Background(), in); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if string(in.Contents) != "body" {
		t.Errorf("input contents changed to %q", in.Contents)
	}
}
