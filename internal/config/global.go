// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride replaces the platform lookup of ConfigDir when set.
// Tests use it so user config files never leak into a run.
var configDirOverride string

// Reset clears the config directory override.
func Reset() {
	configDirOverride = ""
}

// SetConfigDirOverride makes ConfigDir return dir until Reset is called.
// LoadOptions.ConfigDirPath is the per-call alternative.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}
