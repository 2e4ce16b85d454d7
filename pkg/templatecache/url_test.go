// SPDX-License-Identifier: MPL-2.0

package templatecache

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/invowk/tplcache/pkg/vfile"
)

func TestResolveURL(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("expected URLs use POSIX paths")
	}

	file := &vfile.File{Path: "/src/app/views/home.html", Base: "/src/app"}

	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"file base", Options{}, "/views/home.html"},
		{"root", Options{Root: "/static"}, "/static/views/home.html"},
		{"root without slash", Options{Root: "static"}, "static/views/home.html"},
		{"root dot", Options{Root: "."}, "./views/home.html"},
		{"root dot slash", Options{Root: "./"}, "./views/home.html"},
		{"root dot slash dir", Options{Root: "./assets"}, "./assets/views/home.html"},
		{"hidden root", Options{Root: ".cache"}, ".cache/views/home.html"},
		{"base option", Options{Base: "/src/app/views"}, "home.html"},
		{"base option with separator", Options{Base: "/src/app/views/"}, "home.html"},
		{"base does not strip partial names", Options{Base: "/src/ap"}, "/src/app/views/home.html"},
		{"base not a prefix", Options{Base: "/other"}, "/src/app/views/home.html"},
		{"base inside the path", Options{Base: "/app/views/"}, "/src/app/views/home.html"},
		{"base function", Options{BaseFunc: func(f *vfile.File) string { return f.Basename() }, Root: "tpl"}, "tpl/home.html"},
		{"transform", Options{Root: "/r", TransformURL: func(u string) string { return u + "?v=1" }}, "/r/views/home.html?v=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := resolveURL(file, tt.opts.withDefaults()); got != tt.want {
				t.Errorf("resolveURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveURL_FileBaseOnlyStripsPrefix(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("expected URLs use POSIX paths")
	}

	// The file base appears twice; only the leading occurrence is removed.
	f := &vfile.File{Path: "/app/pages/app/pages/a.html", Base: "/app/pages"}
	if got := resolveURL(f, Options{}.withDefaults()); got != "/app/pages/a.html" {
		t.Errorf("resolveURL() = %q, want %q", got, "/app/pages/a.html")
	}
}

func TestResolveURL_UncleanPath(t *testing.T) {
	t.Parallel()

	f := &vfile.File{
		Path: filepath.Join(testDir, "sub") + string(filepath.Separator) + ".." + string(filepath.Separator) + "a.html",
		Base: testDir,
	}
	want := string(filepath.Separator) + "a.html"
	if runtime.GOOS == "windows" {
		want = "/a.html"
	}
	if got := resolveURL(f, Options{}.withDefaults()); got != want {
		t.Errorf("resolveURL() = %q, want %q", got, want)
	}
}

func TestResolveURL_EmptySuffix(t *testing.T) {
	t.Parallel()

	f := &vfile.File{Path: testDir, Base: testDir}
	if got := resolveURL(f, Options{}.withDefaults()); got != "." {
		t.Errorf("resolveURL() = %q, want %q", got, ".")
	}
}
