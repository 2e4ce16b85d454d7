// SPDX-License-Identifier: MPL-2.0

package templatecache

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ModuleSystemNone leaves the output without an outer wrapper.
	ModuleSystemNone ModuleSystem = iota
	// ModuleSystemRequireJS wraps the output in an AMD define() call.
	ModuleSystemRequireJS
	// ModuleSystemBrowserify assigns the module to module.exports.
	ModuleSystemBrowserify
	// ModuleSystemES6 exports the module as the default ES module export.
	ModuleSystemES6
	// ModuleSystemIIFE wraps the output in an immediately-invoked function.
	ModuleSystemIIFE
)

// ErrInvalidModuleSystem is the sentinel error wrapped by InvalidModuleSystemError.
var ErrInvalidModuleSystem = errors.New("invalid module system")

type (
	// ModuleSystem selects the outer envelope placed around the generated module.
	ModuleSystem int

	// InvalidModuleSystemError is returned when a module system name is not recognized.
	// It wraps ErrInvalidModuleSystem for errors.Is() compatibility.
	InvalidModuleSystemError struct {
		Value string
	}
)

// ModuleSystems lists every module system with an envelope, in display order.
func ModuleSystems() []ModuleSystem {
	return []ModuleSystem{ModuleSystemRequireJS, ModuleSystemBrowserify, ModuleSystemES6, ModuleSystemIIFE}
}

// ParseModuleSystem maps a case-insensitive name to a ModuleSystem.
// An empty name is ModuleSystemNone with ok == true; an unknown name is
// ModuleSystemNone with ok == false.
func ParseModuleSystem(name string) (ms ModuleSystem, ok bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return ModuleSystemNone, true
	case "requirejs":
		return ModuleSystemRequireJS, true
	case "browserify":
		return ModuleSystemBrowserify, true
	case "es6":
		return ModuleSystemES6, true
	case "iife":
		return ModuleSystemIIFE, true
	default:
		return ModuleSystemNone, false
	}
}

// String returns the lower-case name of the module system.
func (m ModuleSystem) String() string {
	switch m {
	case ModuleSystemNone:
		return "none"
	case ModuleSystemRequireJS:
		return "requirejs"
	case ModuleSystemBrowserify:
		return "browserify"
	case ModuleSystemES6:
		return "es6"
	case ModuleSystemIIFE:
		return "iife"
	default:
		return fmt.Sprintf("ModuleSystem(%d)", int(m))
	}
}

// IsValid returns whether the ModuleSystem is one of the defined variants.
func (m ModuleSystem) IsValid() (bool, []error) {
	switch m {
	case ModuleSystemNone, ModuleSystemRequireJS, ModuleSystemBrowserify, ModuleSystemES6, ModuleSystemIIFE:
		return true, nil
	default:
		return false, []error{&InvalidModuleSystemError{Value: m.String()}}
	}
}

// Header returns the literal text placed before the generated module.
func (m ModuleSystem) Header() string {
	switch m {
	case ModuleSystemRequireJS:
		return "define(['angular'], function(angular) { 'use strict'; return "
	case ModuleSystemBrowserify:
		return "'use strict'; module.exports = "
	case ModuleSystemES6:
		return "import angular from 'angular'; export default "
	case ModuleSystemIIFE:
		return "(function(){'use strict';"
	case ModuleSystemNone:
		return ""
	default:
		return ""
	}
}

// Footer returns the literal text placed after the generated module.
func (m ModuleSystem) Footer() string {
	switch m {
	case ModuleSystemRequireJS:
		return "});"
	case ModuleSystemIIFE:
		return "})();"
	case ModuleSystemNone, ModuleSystemBrowserify, ModuleSystemES6:
		return ""
	default:
		return ""
	}
}

// Error implements the error interface for InvalidModuleSystemError.
func (e *InvalidModuleSystemError) Error() string {
	return fmt.Sprintf("invalid module system %q (valid: requirejs, browserify, es6, iife)", e.Value)
}

// Unwrap returns ErrInvalidModuleSystem for errors.Is() compatibility.
func (e *InvalidModuleSystemError) Unwrap() error { return ErrInvalidModuleSystem }
