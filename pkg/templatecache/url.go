// SPDX-License-Identifier: MPL-2.0

package templatecache

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/invowk/tplcache/pkg/platform"
	"github.com/invowk/tplcache/pkg/vfile"
)

// resolveURL computes the cache key of f. opts must have its defaults applied.
//
// The suffix is either BaseFunc(f) or the path with the base prefix removed;
// it is joined to Root, a "./" root marker is restored, TransformURL runs
// last, and on Windows separators become forward slashes.
func resolveURL(f *vfile.File, opts Options) string {
	p := filepath.Clean(f.Path)

	// The base is only stripped when the path starts with it. A base that
	// occurs later in the path, as in "/src/app/views" with base
	// "/app/views/", leaves the path untouched.
	var suffix string
	switch {
	case opts.BaseFunc != nil:
		suffix = opts.BaseFunc(f)
	case opts.Base != "":
		suffix = strings.TrimPrefix(p, opts.Base)
	default:
		suffix = strings.TrimPrefix(p, f.Base)
	}

	url := filepath.Join(opts.Root, suffix)
	if url == "" {
		url = "."
	}
	if opts.Root == "." || strings.HasPrefix(opts.Root, "./") {
		url = "./" + url
	}

	if opts.TransformURL != nil {
		url = opts.TransformURL(url)
	}

	if runtime.GOOS == platform.Windows {
		url = strings.ReplaceAll(url, `\`, "/")
	}
	return url
}
