// SPDX-License-Identifier: MPL-2.0

// Package benchmark provides benchmarks for PGO profile generation.
// They cover the hot paths of a tplcache build:
//   - JavaScript string escaping
//   - template compilation and rendering
//   - configuration loading and CUE validation
//   - the end-to-end build from glob expansion to the generated module
//
// To generate a PGO profile, run:
//
//	go test ./internal/benchmark -run '^$' -bench . -cpuprofile default.pgo
package benchmark
