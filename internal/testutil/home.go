// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"runtime"
	"testing"

	"github.com/invowk/tplcache/pkg/platform"
)

// homeEnvVar is the variable os.UserHomeDir reads on this platform.
func homeEnvVar() string {
	if runtime.GOOS == platform.Windows {
		return "USERPROFILE"
	}
	return "HOME"
}

// SetHomeDir points os.UserHomeDir at dir and returns a function that
// restores the previous value. Pass it to t.Cleanup:
//
//	t.Cleanup(testutil.SetHomeDir(t, t.TempDir()))
func SetHomeDir(t testing.TB, dir string) func() {
	t.Helper()
	return MustSetenv(t, homeEnvVar(), dir)
}
