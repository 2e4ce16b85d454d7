// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/invowk/tplcache/internal/config"
	"github.com/invowk/tplcache/internal/issue"
	"github.com/invowk/tplcache/internal/testutil"
	"github.com/invowk/tplcache/pkg/templatecache"
	"github.com/invowk/tplcache/pkg/tmpl"
)

// runCLI executes the CLI inside dir with an isolated config directory.
// Tests using it change the working directory and must not run in parallel.
func runCLI(t *testing.T, dir string, args ...string) (code int, stdout, stderr string) {
	t.Helper()

	t.Cleanup(testutil.MustChdir(t, dir))
	config.SetConfigDirOverride(filepath.Join(dir, ".tplcache-config"))
	t.Cleanup(config.Reset)
	for _, key := range []string{"TPLCACHE_MODULE", "TPLCACHE_FILENAME", "TPLCACHE_MODULE_SYSTEM", "TPLCACHE_STANDALONE"} {
		t.Cleanup(testutil.MustUnsetenv(t, key))
	}

	var out, errOut bytes.Buffer
	app := NewApp(Dependencies{Stdout: &out, Stderr: &errOut})
	code = run(context.Background(), app, args)
	return code, out.String(), errOut.String()
}

func TestBuild_WritesDefaultModule(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"views/home.html":  "<h1>home</h1>",
		"views/about.html": "<p>it's</p>",
	})

	code, stdout, stderr := runCLI(t, dir, "build", "views/*.html")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "Wrote") || !strings.Contains(stdout, "2 templates") {
		t.Errorf("stdout = %q, want a success line for 2 templates", stdout)
	}

	got := testutil.MustReadFile(t, filepath.Join(dir, "templates.js"))
	want := "angular.module('templates').run(['$templateCache', function($templateCache) {" +
		"$templateCache.put('about.html','<p>it\\'s</p>');\n" +
		"$templateCache.put('home.html','<h1>home</h1>');" +
		"}]);"
	if got != want {
		t.Errorf("templates.js =\n%s\nwant\n%s", got, want)
	}
}

func TestBuild_Flags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains []string
	}{
		{
			name: "standalone with root",
			args: []string{"--standalone", "--root", "/tpl", "--module", "app.views"},
			contains: []string{
				"angular.module('app.views', [])",
				"$templateCache.put('/tpl/home.html'",
			},
		},
		{
			name:     "browserify",
			args:     []string{"--module-system", "browserify"},
			contains: []string{"'use strict'; module.exports = angular.module('templates')"},
		},
		{
			name:     "module system names are case insensitive",
			args:     []string{"--module-system", "ES6"},
			contains: []string{"import angular from 'angular'; export default angular.module("},
		},
		{
			name:     "rewrite",
			args:     []string{"--rewrite", `\.html$=.tpl`, "--root", "views"},
			contains: []string{"$templateCache.put('views/home.tpl'"},
		},
		{
			name:     "empty header and footer",
			args:     []string{"--template-header", "", "--template-footer", "", "--template-body", "<%= url %>;"},
			contains: []string{"home.html;"},
		},
		{
			name:     "double quotes",
			args:     []string{"--template-body", `$templateCache.put("<%= url %>","<%= contents %>");`},
			contains: []string{`$templateCache.put("home.html","<h1>home</h1>");`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := testutil.WriteTree(t, map[string]string{"views/home.html": "<h1>home</h1>"})

			args := append([]string{"build", "views/*.html", "--stdout"}, tt.args...)
			code, stdout, stderr := runCLI(t, dir, args...)
			if code != 0 {
				t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
			}
			for _, want := range tt.contains {
				if !strings.Contains(stdout, want) {
					t.Errorf("output missing %q:\n%s", want, stdout)
				}
			}
		})
	}
}

func TestBuild_UsesProjectConfig(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"app/partials/nav.html": "<nav></nav>",
		"tplcache.toml": `src = ["app/**/*.html"]
out = "dist"
filename = "views.js"
module = "app.partials"
module_system = "iife"
`,
	})

	code, _, stderr := runCLI(t, dir, "build")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}

	got := testutil.MustReadFile(t, filepath.Join(dir, "dist", "views.js"))
	if !strings.HasPrefix(got, "(function(){'use strict';angular.module('app.partials')") {
		t.Errorf("views.js = %q", got)
	}
	if !strings.Contains(got, "$templateCache.put('partials/nav.html','<nav></nav>');") {
		t.Errorf("views.js should register partials/nav.html: %q", got)
	}
}

func TestBuild_UnknownModuleSystemWarns(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{"home.html": "<h1>home</h1>"})

	code, stdout, stderr := runCLI(t, dir, "build", "*.html", "--stdout", "--module-system", "systemjs")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(stderr, "Unknown module system") {
		t.Errorf("stderr should warn about the module system: %q", stderr)
	}
	if !strings.HasPrefix(stdout, "angular.module('templates')") {
		t.Errorf("output should not be wrapped: %q", stdout)
	}
	if strings.Contains(stderr, "Unknown module system!") {
		t.Error("the module system guide should only be shown with --verbose")
	}

	code, _, stderr = runCLI(t, dir, "build", "*.html", "--stdout", "--module-system", "systemjs", "--verbose")
	if code != 0 {
		t.Fatalf("verbose exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(stderr, "Unknown module system!") {
		t.Errorf("verbose stderr should include the module system guide: %q", stderr)
	}
}

func TestBuild_EmptyMatchStillWrites(t *testing.T) {
	dir := t.TempDir()

	code, stdout, stderr := runCLI(t, dir, "build", "**/*.html", "--stdout")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(stderr, "No templates matched") {
		t.Errorf("stderr should warn about the empty match: %q", stderr)
	}
	if want := "angular.module('templates').run(['$templateCache', function($templateCache) {}]);"; stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		args    []string
		wantErr string
	}{
		{
			name:    "template syntax",
			args:    []string{"--template-body", "<%= url"},
			wantErr: "compile templates",
		},
		{
			name:    "escaping filename",
			args:    []string{"--filename", "../templates.js"},
			wantErr: "validate output filename",
		},
		{
			name:    "bad rewrite flag",
			args:    []string{"--rewrite", "no-separator"},
			wantErr: "REGEXP=REPLACEMENT",
		},
		{
			name:    "bad rewrite regexp",
			args:    []string{"--rewrite", "(=x"},
			wantErr: "validate build options",
		},
		{
			name:    "bad pattern",
			args:    []string{"[broken"},
			wantErr: "collect templates",
		},
		{
			name:    "watch with stdout",
			args:    []string{"--watch", "--stdout"},
			wantErr: "cannot be used together",
		},
		{
			name:    "invalid config",
			files:   map[string]string{"tplcache.yaml": "escape:\n  quotes: curly\n"},
			wantErr: "tplcache.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := map[string]string{"home.html": "<h1>home</h1>"}
			for k, v := range tt.files {
				files[k] = v
			}
			dir := testutil.WriteTree(t, files)

			args := append([]string{"build"}, tt.args...)
			code, _, stderr := runCLI(t, dir, args...)
			if code == 0 {
				t.Fatal("exit code = 0, want failure")
			}
			if !strings.Contains(stderr, tt.wantErr) {
				t.Errorf("stderr missing %q:\n%s", tt.wantErr, stderr)
			}
		})
	}
}

func TestParseRewriteFlags(t *testing.T) {
	t.Parallel()

	rules, err := parseRewriteFlags([]string{`^views/=`, `a=b=c`})
	if err != nil {
		t.Fatalf("parseRewriteFlags() error: %v", err)
	}
	want := []config.RewriteRule{{Pattern: "^views/", Replace: ""}, {Pattern: "a", Replace: "b=c"}}
	if len(rules) != len(want) || rules[0] != want[0] || rules[1] != want[1] {
		t.Errorf("rules = %+v, want %+v", rules, want)
	}

	for _, bad := range []string{"", "=x", "noequals"} {
		if _, err := parseRewriteFlags([]string{bad}); err == nil {
			t.Errorf("parseRewriteFlags(%q) should fail", bad)
		}
	}
}

func TestClassifyBuildError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		res     string
		wantIss issue.Id
	}{
		{"syntax", &tmpl.SyntaxError{Template: "<%= x", Offset: 0, Msg: "unterminated tag"}, "", issue.TemplateSyntaxErrorId},
		{"filename", &templatecache.InvalidFilenameError{Value: "/abs.js"}, "", issue.InvalidOutputFilenameId},
		{"write", errors.New("disk full"), "dist/templates.js", issue.OutputWriteFailedId},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := classifyBuildError(tt.err, tt.res)
			if !errors.Is(err, tt.err) {
				t.Errorf("classified error should wrap the cause")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("error should be *issue.ActionableError, got %T", err)
			}
			if ae.Issue() == nil || ae.Issue().Id() != tt.wantIss {
				t.Errorf("issue = %v, want %v", ae.Issue(), tt.wantIss)
			}
		})
	}
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()

	code, stdout, stderr := runCLI(t, dir, "config", "path")
	if code != 0 {
		t.Fatalf("config path exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "using defaults") {
		t.Errorf("config path without a file = %q", stdout)
	}

	code, stdout, stderr = runCLI(t, dir, "config", "init", "--format", "yaml")
	if code != 0 {
		t.Fatalf("config init exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "Created") {
		t.Errorf("config init stdout = %q", stdout)
	}
	if got := testutil.MustReadFile(t, filepath.Join(dir, "tplcache.yaml")); !strings.Contains(got, "filename: templates.js") {
		t.Errorf("tplcache.yaml = %q", got)
	}

	code, _, stderr = runCLI(t, dir, "config", "init", "--format", "yaml")
	if code == 0 {
		t.Error("config init over an existing file should fail without --force")
	}
	if !strings.Contains(stderr, "failed to create config: tplcache.yaml") {
		t.Errorf("config init stderr = %q", stderr)
	}
	if code, _, stderr = runCLI(t, dir, "config", "init", "--format", "yaml", "--force"); code != 0 {
		t.Errorf("config init --force exit code = %d, stderr:\n%s", code, stderr)
	}

	code, stdout, _ = runCLI(t, dir, "config", "path")
	if code != 0 || !strings.Contains(stdout, "tplcache.yaml") {
		t.Errorf("config path = %q (code %d), want tplcache.yaml", stdout, code)
	}

	code, stdout, stderr = runCLI(t, dir, "config", "show", "--format", "toml")
	if code != 0 {
		t.Fatalf("config show exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "module = 'templates'") && !strings.Contains(stdout, `module = "templates"`) {
		t.Errorf("config show = %q", stdout)
	}

	if code, _, _ = runCLI(t, dir, "config", "show", "--format", "json"); code == 0 {
		t.Error("config show with an unsupported format should fail")
	}
}

func TestConfigInit_Global(t *testing.T) {
	dir := t.TempDir()

	code, _, stderr := runCLI(t, dir, "config", "init", "--global")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	got := testutil.MustReadFile(t, filepath.Join(dir, ".tplcache-config", "config.cue"))
	if !strings.Contains(got, `module: "templates"`) {
		t.Errorf("config.cue = %q", got)
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := &ExitError{Code: 3, Err: cause}
	if err.Error() != "boom" || !errors.Is(err, cause) {
		t.Errorf("ExitError should expose its cause, got %q", err.Error())
	}
	if got := (&ExitError{Code: 2}).Error(); got != "exit status 2" {
		t.Errorf("Error() = %q, want exit status 2", got)
	}
}

func TestGetVersionString(t *testing.T) {
	t.Parallel()

	if got := getVersionString(); Version == "dev" && got != "dev (built from source)" {
		t.Errorf("getVersionString() = %q", got)
	}
}

// failingWriter rejects every write.
type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestBuild_StdoutWriteError(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{"views/home.html": "<h1>home</h1>"})
	t.Cleanup(testutil.MustChdir(t, dir))
	config.SetConfigDirOverride(filepath.Join(dir, ".tplcache-config"))
	t.Cleanup(config.Reset)

	var errOut bytes.Buffer
	app := NewApp(Dependencies{Stdout: failingWriter{}, Stderr: &errOut})
	if code := run(context.Background(), app, []string{"build", "--stdout", "views/*.html"}); code == 0 {
		t.Fatal("build --stdout into a failing writer should exit non-zero")
	}
	if got := errOut.String(); !strings.Contains(got, "failed to write to stdout: broken pipe") {
		t.Errorf("stderr = %q", got)
	}
}
