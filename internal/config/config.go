// SPDX-License-Identifier: MPL-2.0

package config

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/invowk/tplcache/internal/issue"
	"github.com/invowk/tplcache/pkg/cueutil"
	"github.com/invowk/tplcache/pkg/platform"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// AppName is the application name.
	AppName = "tplcache"
	// ConfigFileName is the name of the user config file (without extension).
	ConfigFileName = "config"
	// MaxFileSize bounds the size of a configuration file.
	MaxFileSize int64 = 1 << 20
	// EnvPrefix prefixes every environment override, e.g. TPLCACHE_MODULE.
	EnvPrefix = "TPLCACHE"

	// FormatCUE is the default config file format.
	FormatCUE Format = "cue"
	// FormatTOML reads and writes TOML config files.
	FormatTOML Format = "toml"
	// FormatYAML reads and writes YAML config files.
	FormatYAML Format = "yaml"
)

// ErrUnsupportedFormat is the sentinel error wrapped by UnsupportedFormatError.
var ErrUnsupportedFormat = errors.New("unsupported config format")

//go:embed config_schema.cue
var configSchema []byte

type (
	// Format is a config file format.
	Format string

	// UnsupportedFormatError is returned for a file extension or format name
	// that is not cue, toml, yaml or yml.
	UnsupportedFormatError struct {
		Value string
	}
)

// Formats lists the supported formats in lookup order.
func Formats() []Format {
	return []Format{FormatCUE, FormatTOML, FormatYAML}
}

// ParseFormat accepts a format name as typed on the command line.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cue":
		return FormatCUE, nil
	case "toml":
		return FormatTOML, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", &UnsupportedFormatError{Value: name}
	}
}

// FormatOf derives the format from a file extension.
func FormatOf(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", &UnsupportedFormatError{Value: path}
	}
	return ParseFormat(ext)
}

// Error implements the error interface for UnsupportedFormatError.
func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported config format %q (valid: cue, toml, yaml)", e.Value)
}

// Unwrap returns ErrUnsupportedFormat for errors.Is() compatibility.
func (e *UnsupportedFormatError) Unwrap() error { return ErrUnsupportedFormat }

// ConfigDir returns the tplcache configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// LocalConfigPath returns the project config file name for a format, e.g.
// "tplcache.toml".
func LocalConfigPath(dir string, format Format) string {
	return filepath.Join(dir, AppName+"."+string(format))
}

// locate finds the config file to load. An explicit path wins, then a
// project file in the base directory, then the user config directory.
// No file at all is not an error; the returned path is then empty.
func locate(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'tplcache config init' to create one").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	baseDir := opts.BaseDir
	if baseDir == "" {
		baseDir = "."
	}
	candidates := make([]string, 0, 2*len(Formats())+1)
	for _, format := range Formats() {
		candidates = append(candidates, LocalConfigPath(baseDir, format))
	}
	candidates = append(candidates, filepath.Join(baseDir, AppName+".yml"))

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	for _, format := range Formats() {
		candidates = append(candidates, filepath.Join(cfgDir, ConfigFileName+"."+string(format)))
	}

	for _, candidate := range candidates {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Optional pointers have no default for AutomaticEnv to discover.
	for _, key := range []string{"templates.header", "templates.footer"} {
		if err := v.BindEnv(key); err != nil {
			return nil, "", fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	resolvedPath, err := locate(opts)
	if err != nil {
		return nil, "", err
	}

	if resolvedPath != "" {
		if err := loadFileIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check the file syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'tplcache config show' to see the effective configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	// Environment values bypass the schema, so the typed checks run on the
	// merged result.
	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Fix the fields listed above").
			WithSuggestion("Check TPLCACHE_* environment variables").
			WithIssue(issue.ConfigInvalidId).
			Wrap(errors.Join(errs...)).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("src", defaults.Src)
	v.SetDefault("out", defaults.Out)
	v.SetDefault("filename", defaults.Filename)
	v.SetDefault("root", defaults.Root)
	v.SetDefault("base", defaults.Base)
	v.SetDefault("module", defaults.Module)
	v.SetDefault("standalone", defaults.Standalone)
	v.SetDefault("module_system", defaults.ModuleSystem)
	v.SetDefault("templates.body", defaults.Templates.Body)
	v.SetDefault("escape.quotes", defaults.Escape.Quotes)
	v.SetDefault("escape.es6", defaults.Escape.ES6)
	v.SetDefault("escape.minimal", defaults.Escape.Minimal)
	v.SetDefault("escape.script_context", defaults.Escape.ScriptContext)
	v.SetDefault("escape.lowercase_hex", defaults.Escape.LowercaseHex)
	v.SetDefault("escape.escape_everything", defaults.Escape.EscapeEverything)
	v.SetDefault("rewrite", defaults.Rewrite)
	v.SetDefault("watch.debounce", defaults.Watch.Debounce)
	v.SetDefault("watch.ignore", defaults.Watch.Ignore)
	v.SetDefault("watch.clear_screen", defaults.Watch.ClearScreen)
	v.SetDefault("ui.color_scheme", defaults.UI.ColorScheme)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadFileIntoViper validates a config file of any supported format against
// the #Config schema and merges its contents into Viper.
func loadFileIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	configMap, err := decodeConfig(data, path)
	if err != nil {
		return err
	}

	// Merge into Viper (preserves defaults, allows env overrides)
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// decodeConfig turns file contents into a schema-checked map. TOML and YAML
// are decoded first and re-encoded as JSON, which CUE reads natively, so one
// schema covers all three formats.
func decodeConfig(data []byte, path string) (map[string]any, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	if err := cueutil.CheckFileSize(data, MaxFileSize, path); err != nil {
		return nil, err
	}

	var doc map[string]any
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	case FormatCUE:
	}

	if format != FormatCUE {
		if doc == nil {
			doc = map[string]any{}
		}
		data, err = json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	// Re-encoded JSON can be larger than the TOML or YAML it came from.
	result, err := cueutil.ParseAndDecode[map[string]any](configSchema, data, "#Config",
		cueutil.WithFilename(path),
		cueutil.WithMaxFileSize(2*MaxFileSize))
	if err != nil {
		return nil, err
	}
	return *result.Value, nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// Encode renders cfg in the given format.
func Encode(cfg *Config, format Format) ([]byte, error) {
	switch format {
	case FormatCUE:
		return []byte(GenerateCUE(cfg)), nil
	case FormatTOML:
		var buf bytes.Buffer
		enc := toml.NewEncoder(&buf)
		enc.SetIndentTables(true)
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode TOML: %w", err)
		}
		return buf.Bytes(), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, &UnsupportedFormatError{Value: string(format)}
	}
}

// WriteFile writes cfg to path in the format implied by its extension. An
// existing file is only replaced when force is set.
func WriteFile(cfg *Config, path string, force bool) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := Encode(cfg, format)
	if err != nil {
		return err
	}

	if !force && fileExists(path) {
		return fmt.Errorf("%s: %w", path, os.ErrExist)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// tplcache configuration file\n\n")

	sb.WriteString("src: [")
	for i, p := range cfg.Src {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", string(p))
	}
	sb.WriteString("]\n")
	fmt.Fprintf(&sb, "out: %q\n", cfg.Out)
	fmt.Fprintf(&sb, "filename: %q\n", cfg.Filename)
	if cfg.Root != "" {
		fmt.Fprintf(&sb, "root: %q\n", cfg.Root)
	}
	if cfg.Base != "" {
		fmt.Fprintf(&sb, "base: %q\n", cfg.Base)
	}
	fmt.Fprintf(&sb, "module: %q\n", cfg.Module)
	fmt.Fprintf(&sb, "standalone: %v\n", cfg.Standalone)
	if cfg.ModuleSystem != "" {
		fmt.Fprintf(&sb, "module_system: %q\n", cfg.ModuleSystem)
	}

	if cfg.Templates.Body != "" || cfg.Templates.Header != nil || cfg.Templates.Footer != nil {
		sb.WriteString("\ntemplates: {\n")
		if cfg.Templates.Body != "" {
			fmt.Fprintf(&sb, "\tbody: %q\n", cfg.Templates.Body)
		}
		if cfg.Templates.Header != nil {
			fmt.Fprintf(&sb, "\theader: %q\n", *cfg.Templates.Header)
		}
		if cfg.Templates.Footer != nil {
			fmt.Fprintf(&sb, "\tfooter: %q\n", *cfg.Templates.Footer)
		}
		sb.WriteString("}\n")
	}

	sb.WriteString("\nescape: {\n")
	fmt.Fprintf(&sb, "\tquotes: %q\n", cfg.Escape.Quotes)
	fmt.Fprintf(&sb, "\tes6: %v\n", cfg.Escape.ES6)
	fmt.Fprintf(&sb, "\tminimal: %v\n", cfg.Escape.Minimal)
	fmt.Fprintf(&sb, "\tscript_context: %v\n", cfg.Escape.ScriptContext)
	fmt.Fprintf(&sb, "\tlowercase_hex: %v\n", cfg.Escape.LowercaseHex)
	fmt.Fprintf(&sb, "\tescape_everything: %v\n", cfg.Escape.EscapeEverything)
	sb.WriteString("}\n")

	if len(cfg.Rewrite) > 0 {
		sb.WriteString("\nrewrite: [\n")
		for _, rule := range cfg.Rewrite {
			fmt.Fprintf(&sb, "\t{pattern: %q, replace: %q},\n", rule.Pattern, rule.Replace)
		}
		sb.WriteString("]\n")
	}

	sb.WriteString("\nwatch: {\n")
	fmt.Fprintf(&sb, "\tdebounce: %q\n", cfg.Watch.Debounce)
	if len(cfg.Watch.Ignore) > 0 {
		sb.WriteString("\tignore: [")
		for i, p := range cfg.Watch.Ignore {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%q", p)
		}
		sb.WriteString("]\n")
	}
	fmt.Fprintf(&sb, "\tclear_screen: %v\n", cfg.Watch.ClearScreen)
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}
