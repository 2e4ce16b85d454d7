// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/invowk/tplcache/pkg/jsesc"
	"github.com/invowk/tplcache/pkg/templatecache"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// DefaultDebounce is the quiet period before a watch rebuild.
	DefaultDebounce Duration = "300ms"
	// DefaultSrc matches every HTML file below the working directory.
	DefaultSrc = "**/*.html"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidDuration is the sentinel error wrapped by InvalidDurationError.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrInvalidRewriteRule is the sentinel error wrapped by InvalidRewriteRuleError.
	ErrInvalidRewriteRule = errors.New("invalid rewrite rule")
	// ErrInvalidSrcPattern is the sentinel error wrapped by InvalidSrcPatternError.
	ErrInvalidSrcPattern = errors.New("invalid source pattern")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// Duration is a positive Go duration string such as "300ms".
	Duration string

	// InvalidDurationError is returned when a Duration does not parse or is not positive.
	// It wraps ErrInvalidDuration for errors.Is() compatibility.
	InvalidDurationError struct {
		Value Duration
	}

	// SrcPattern is a doublestar glob. A leading "!" turns it into an exclusion.
	SrcPattern string

	// InvalidSrcPatternError is returned when a SrcPattern is blank.
	// It wraps ErrInvalidSrcPattern for errors.Is() compatibility.
	InvalidSrcPatternError struct {
		Value SrcPattern
	}

	// RewriteRule replaces every match of Pattern in a template URL with Replace.
	// Replace may reference groups as $1 or ${name}.
	RewriteRule struct {
		Pattern string `json:"pattern" mapstructure:"pattern" toml:"pattern" yaml:"pattern"`
		Replace string `json:"replace" mapstructure:"replace" toml:"replace" yaml:"replace"`
	}

	// InvalidRewriteRuleError is returned when a rewrite pattern does not compile.
	// It wraps ErrInvalidRewriteRule for errors.Is() compatibility.
	InvalidRewriteRuleError struct {
		Index int
		Rule  RewriteRule
		Cause error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Src lists the template patterns used when none are given on the command line.
		Src []SrcPattern `json:"src" mapstructure:"src" toml:"src" yaml:"src"`
		// Out is the output directory.
		Out string `json:"out" mapstructure:"out" toml:"out" yaml:"out"`
		// Filename is the name of the generated file.
		Filename string `json:"filename" mapstructure:"filename" toml:"filename" yaml:"filename"`
		// Root is prefixed to every template URL.
		Root string `json:"root" mapstructure:"root" toml:"root,omitempty" yaml:"root,omitempty"`
		// Base is stripped from template paths to form URLs.
		Base string `json:"base" mapstructure:"base" toml:"base,omitempty" yaml:"base,omitempty"`
		// Module is the AngularJS module name.
		Module string `json:"module" mapstructure:"module" toml:"module" yaml:"module"`
		// Standalone declares a new module.
		Standalone bool `json:"standalone" mapstructure:"standalone" toml:"standalone" yaml:"standalone"`
		// ModuleSystem names the outer envelope (requirejs, browserify, es6, iife).
		ModuleSystem string `json:"module_system" mapstructure:"module_system" toml:"module_system,omitempty" yaml:"module_system,omitempty"`
		// Templates overrides the generated code templates.
		Templates TemplatesConfig `json:"templates" mapstructure:"templates" toml:"templates" yaml:"templates"`
		// Escape controls how template contents are escaped.
		Escape EscapeConfig `json:"escape" mapstructure:"escape" toml:"escape" yaml:"escape"`
		// Rewrite lists URL rewrites applied after Root.
		Rewrite []RewriteRule `json:"rewrite" mapstructure:"rewrite" toml:"rewrite,omitempty" yaml:"rewrite,omitempty"`
		// Watch configures watch mode.
		Watch WatchConfig `json:"watch" mapstructure:"watch" toml:"watch" yaml:"watch"`
		// UI configures the user interface.
		UI UIConfig `json:"ui" mapstructure:"ui" toml:"ui" yaml:"ui"`
	}

	// TemplatesConfig overrides the code templates. A nil header or footer
	// keeps the default; an empty one removes it.
	TemplatesConfig struct {
		Body   string  `json:"body" mapstructure:"body" toml:"body,omitempty" yaml:"body,omitempty"`
		Header *string `json:"header" mapstructure:"header" toml:"header,omitempty" yaml:"header,omitempty"`
		Footer *string `json:"footer" mapstructure:"footer" toml:"footer,omitempty" yaml:"footer,omitempty"`
	}

	// EscapeConfig mirrors jsesc.Options.
	EscapeConfig struct {
		Quotes           jsesc.QuoteStyle `json:"quotes" mapstructure:"quotes" toml:"quotes" yaml:"quotes"`
		ES6              bool             `json:"es6" mapstructure:"es6" toml:"es6" yaml:"es6"`
		Minimal          bool             `json:"minimal" mapstructure:"minimal" toml:"minimal" yaml:"minimal"`
		ScriptContext    bool             `json:"script_context" mapstructure:"script_context" toml:"script_context" yaml:"script_context"`
		LowercaseHex     bool             `json:"lowercase_hex" mapstructure:"lowercase_hex" toml:"lowercase_hex" yaml:"lowercase_hex"`
		EscapeEverything bool             `json:"escape_everything" mapstructure:"escape_everything" toml:"escape_everything" yaml:"escape_everything"`
	}

	// WatchConfig configures watch mode.
	WatchConfig struct {
		// Debounce is the quiet period before rebuilding.
		Debounce Duration `json:"debounce" mapstructure:"debounce" toml:"debounce" yaml:"debounce"`
		// Ignore lists extra glob patterns that never trigger a rebuild.
		Ignore []string `json:"ignore" mapstructure:"ignore" toml:"ignore" yaml:"ignore"`
		// ClearScreen clears the terminal before each rebuild.
		ClearScreen bool `json:"clear_screen" mapstructure:"clear_screen" toml:"clear_screen" yaml:"clear_screen"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme" toml:"color_scheme" yaml:"color_scheme"`
		// Verbose enables debug logging
		Verbose bool `json:"verbose" mapstructure:"verbose" toml:"verbose" yaml:"verbose"`
	}
)

// IsValid returns whether the Config has valid fields, collecting every
// field error into one InvalidConfigError.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	for _, p := range c.Src {
		if valid, fieldErrs := p.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if valid, fieldErrs := c.Escape.Quotes.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if _, err := c.rewriteRegexps(); err != nil {
		errs = append(errs, err)
	}
	if valid, fieldErrs := c.Watch.Debounce.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// TemplateCacheOptions maps the configuration onto pipeline options. An
// unknown module system name is reported through the returned ok flag and
// leaves the output unwrapped.
func (c Config) TemplateCacheOptions() (opts templatecache.Options, moduleSystemOK bool, err error) {
	regexps, err := c.rewriteRegexps()
	if err != nil {
		return templatecache.Options{}, false, err
	}

	ms, ok := templatecache.ParseModuleSystem(c.ModuleSystem)

	opts = templatecache.Options{
		Filename: c.Filename,
		Root:     c.Root,
		Base:     c.Base,
		EscapeOptions: jsesc.Options{
			Quotes:           c.Escape.Quotes,
			ES6:              c.Escape.ES6,
			Minimal:          c.Escape.Minimal,
			ScriptContext:    c.Escape.ScriptContext,
			LowercaseHex:     c.Escape.LowercaseHex,
			EscapeEverything: c.Escape.EscapeEverything,
		},
		TemplateBody:   c.Templates.Body,
		TemplateHeader: c.Templates.Header,
		TemplateFooter: c.Templates.Footer,
		Module:         c.Module,
		Standalone:     c.Standalone,
		ModuleSystem:   ms,
	}
	if len(regexps) > 0 {
		rules := c.Rewrite
		opts.TransformURL = func(url string) string {
			for i, re := range regexps {
				url = re.ReplaceAllString(url, rules[i].Replace)
			}
			return url
		}
	}
	return opts, ok, nil
}

func (c Config) rewriteRegexps() ([]*regexp.Regexp, error) {
	regexps := make([]*regexp.Regexp, 0, len(c.Rewrite))
	for i, rule := range c.Rewrite {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, &InvalidRewriteRuleError{Index: i, Rule: rule, Cause: err}
		}
		regexps = append(regexps, re)
	}
	return regexps, nil
}

// Error implements the error interface for InvalidRewriteRuleError.
func (e *InvalidRewriteRuleError) Error() string {
	return fmt.Sprintf("invalid rewrite rule %d (%q): %v", e.Index, e.Rule.Pattern, e.Cause)
}

// Unwrap returns ErrInvalidRewriteRule for errors.Is() compatibility.
func (e *InvalidRewriteRuleError) Unwrap() error { return ErrInvalidRewriteRule }

// String returns the string representation of the SrcPattern.
func (p SrcPattern) String() string { return string(p) }

// IsExclude reports whether the pattern starts with "!".
func (p SrcPattern) IsExclude() bool { return strings.HasPrefix(string(p), "!") }

// IsValid returns whether the SrcPattern is usable: non-blank, and not a
// bare "!".
func (p SrcPattern) IsValid() (bool, []error) {
	if strings.TrimSpace(strings.TrimPrefix(string(p), "!")) == "" {
		return false, []error{&InvalidSrcPatternError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidSrcPatternError.
func (e *InvalidSrcPatternError) Error() string {
	return fmt.Sprintf("invalid source pattern %q: must not be blank", e.Value)
}

// Unwrap returns ErrInvalidSrcPattern for errors.Is() compatibility.
func (e *InvalidSrcPatternError) Unwrap() error { return ErrInvalidSrcPattern }

// String returns the string representation of the Duration.
func (d Duration) String() string { return string(d) }

// Duration parses d. Call IsValid first; invalid values return 0.
func (d Duration) Duration() time.Duration {
	parsed, err := time.ParseDuration(string(d))
	if err != nil {
		return 0
	}
	return parsed
}

// IsValid returns whether d parses as a positive duration.
func (d Duration) IsValid() (bool, []error) {
	parsed, err := time.ParseDuration(string(d))
	if err != nil || parsed <= 0 {
		return false, []error{&InvalidDurationError{Value: d}}
	}
	return true, nil
}

// Error implements the error interface for InvalidDurationError.
func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("invalid duration %q (want a positive value such as 300ms)", e.Value)
}

// Unwrap returns ErrInvalidDuration for errors.Is() compatibility.
func (e *InvalidDurationError) Unwrap() error { return ErrInvalidDuration }

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error {
	return ErrInvalidColorScheme
}

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Src:      []SrcPattern{DefaultSrc},
		Out:      ".",
		Filename: templatecache.DefaultFilename,
		Module:   templatecache.DefaultModule,
		Escape: EscapeConfig{
			Quotes: jsesc.QuoteSingle,
		},
		Rewrite: []RewriteRule{},
		Watch: WatchConfig{
			Debounce: DefaultDebounce,
			Ignore:   []string{},
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}
