// SPDX-License-Identifier: MPL-2.0

package platform

// OS names for runtime.GOOS comparisons.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)
