// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers that fail the test on error, so test
// bodies stay focused on behavior.
//
// It covers environment variables (MustSetenv, MustUnsetenv, SetHomeDir),
// the working directory (MustChdir) and template fixtures (WriteTree,
// MustReadFile).
package testutil
