// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// remediation hints. Longer guides live in a catalog of markdown issues,
// looked up by Id and rendered for the terminal with glamour.
package issue
