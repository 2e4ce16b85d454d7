// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE documents against an embedded schema.
//
// ParseAndDecode compiles the schema, unifies the user document with one of
// its definitions, validates the result and decodes it:
//
//	//go:embed config_schema.cue
//	var schema []byte
//
//	res, err := cueutil.ParseAndDecode[map[string]any](schema, data, "#Config",
//		cueutil.WithFilename("tplcache.cue"))
//
// Errors name the offending field in JSON-path form (for example
// "rewrite[1].pattern") so users can find it in their file.
package cueutil
