// SPDX-License-Identifier: MPL-2.0

// Package platform holds the few OS-specific facts tplcache needs: GOOS
// names and the file names Windows reserves for devices.
package platform
