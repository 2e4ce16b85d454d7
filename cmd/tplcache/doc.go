// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the tplcache command tree.
//
// `tplcache build` collects template files, runs them through the
// templatecache pipeline and writes the generated JavaScript file, once or
// on every change with --watch. `tplcache config` inspects and creates
// configuration files.
package cmd
