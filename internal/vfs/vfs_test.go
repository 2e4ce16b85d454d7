// SPDX-License-Identifier: MPL-2.0

package vfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/invowk/tplcache/internal/testutil"
	"github.com/invowk/tplcache/pkg/vfile"
)

func relatives(files []*vfile.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = filepath.ToSlash(f.Relative())
	}
	return out
}

func TestSrc(t *testing.T) {
	t.Parallel()

	dir := testutil.WriteTree(t, map[string]string{
		"app/index.html":             "<main></main>",
		"app/views/home.html":        "<h1>home</h1>",
		"app/views/about.html":       "<h1>about</h1>",
		"app/vendor/widget.html":     "<w></w>",
		"app/.hidden/secret.html":    "secret",
		"app/views/readme.md":        "# readme",
		"partials/nav.tpl.html":      "<nav></nav>",
		"partials/footer.tpl.html":   "<footer></footer>",
		"partials/footer.draft.html": "draft",
	})

	tests := []struct {
		name     string
		patterns []string
		dot      bool
		want     []string
	}{
		{
			name:     "recursive",
			patterns: []string{"app/**/*.html"},
			want:     []string{"index.html", "vendor/widget.html", "views/about.html", "views/home.html"},
		},
		{
			name:     "negation",
			patterns: []string{"app/**/*.html", "!app/vendor/**"},
			want:     []string{"index.html", "views/about.html", "views/home.html"},
		},
		{
			name:     "negation listed first",
			patterns: []string{"!**/*.draft.html", "partials/*.html"},
			want:     []string{"footer.tpl.html", "nav.tpl.html"},
		},
		{
			name:     "pattern order then dedupe",
			patterns: []string{"partials/nav.tpl.html", "partials/*.tpl.html"},
			want:     []string{"nav.tpl.html", "footer.tpl.html"},
		},
		{
			name:     "dot files opt in",
			patterns: []string{"app/.hidden/*.html"},
			dot:      true,
			want:     []string{"secret.html"},
		},
		{
			name:     "dot files skipped",
			patterns: []string{"app/**/secret.html"},
			want:     []string{},
		},
		{
			name:     "no match",
			patterns: []string{"**/*.jade"},
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			files, err := Src(context.Background(), SrcOptions{Patterns: tt.patterns, Cwd: dir, Dot: tt.dot})
			if err != nil {
				t.Fatalf("Src() error: %v", err)
			}
			if got := relatives(files); !slices.Equal(got, tt.want) {
				t.Errorf("Src() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSrc_Records(t *testing.T) {
	t.Parallel()

	dir := testutil.WriteTree(t, map[string]string{"app/views/home.html": "<h1>home</h1>"})
	if err := os.Mkdir(filepath.Join(dir, "app", "views", "dir.html"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, err := Src(context.Background(), SrcOptions{Patterns: []string{"app/**/*.html"}, Cwd: dir})
	if err != nil {
		t.Fatalf("Src() error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Src() returned %d files, want 2", len(files))
	}

	d, f := files[0], files[1]
	if !d.IsDirectory() || d.Contents != nil {
		t.Errorf("directory match should have stat and no contents: %+v", d)
	}
	if f.IsDirectory() || string(f.Contents) != "<h1>home</h1>" {
		t.Errorf("file contents = %q", f.Contents)
	}
	if want := filepath.Join(dir, "app"); f.Base != want {
		t.Errorf("Base = %q, want %q", f.Base, want)
	}
	if f.Cwd != dir || !filepath.IsAbs(f.Path) {
		t.Errorf("Cwd/Path = %q/%q", f.Cwd, f.Path)
	}
}

func TestSrc_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	if _, err := Src(context.Background(), SrcOptions{Patterns: []string{"!**/*.html"}, Cwd: dir}); !errors.Is(err, ErrNoPatterns) {
		t.Errorf("only negations: err = %v, want ErrNoPatterns", err)
	}
	if _, err := Src(context.Background(), SrcOptions{Cwd: dir}); !errors.Is(err, ErrNoPatterns) {
		t.Errorf("no patterns: err = %v, want ErrNoPatterns", err)
	}
	if _, err := Src(context.Background(), SrcOptions{Patterns: []string{"[broken"}, Cwd: dir}); !errors.Is(err, ErrBadPattern) {
		t.Errorf("bad pattern: err = %v, want ErrBadPattern", err)
	}

	populated := testutil.WriteTree(t, map[string]string{"a.html": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Src(ctx, SrcOptions{Patterns: []string{"*.html"}, Cwd: populated}); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled: err = %v, want context.Canceled", err)
	}
}

func TestDest(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	f, err := vfile.New(filepath.Join("js", "templates.js"), ".", []byte("angular.module('templates');"))
	if err != nil {
		t.Fatal(err)
	}

	path, err := Dest(out, f)
	if err != nil {
		t.Fatalf("Dest() error: %v", err)
	}
	if want := filepath.Join(out, "js", "templates.js"); path != want {
		t.Errorf("Dest() = %q, want %q", path, want)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "angular.module('templates');" {
		t.Errorf("written contents = %q", got)
	}
}
