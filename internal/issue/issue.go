// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

const (
	NoTemplatesFoundId Id = iota + 1
	TemplateSyntaxErrorId
	TemplateRenderFailedId
	ConfigLoadFailedId
	ConfigInvalidId
	InvalidModuleSystemId
	InvalidOutputFilenameId
	OutputWriteFailedId
	PermissionDeniedId
	WatchFailedId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink  // project documentation for this issue type
		extLinks []HttpLink  // external links that might be useful for the user
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue's markdown, plus its links, with a glamour style
// ("dark", "light", "notty", ...).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	noTemplatesFoundIssue = &Issue{
		id: NoTemplatesFoundId,
		mdMsg: `
# No templates matched!

None of the source patterns matched a file, so the generated module would be empty.

## Things you can try:
- Check the patterns you passed, or the ` + "`src`" + ` list in your config file
- Patterns are relative to the current directory and use ` + "`**`" + ` for any depth:
~~~
$ tplcache build 'app/**/*.html'
~~~

- Negated patterns (` + "`!pattern`" + `) only remove files matched by earlier patterns`,
		extLinks: []HttpLink{"https://github.com/bmatcuk/doublestar#patterns"},
	}

	templateSyntaxErrorIssue = &Issue{
		id: TemplateSyntaxErrorId,
		mdMsg: `
# Invalid template!

A body, header or footer template could not be parsed.

## Supported syntax:
- ` + "`<%= name %>`" + ` inserts a value
- ` + "`<%- name %>`" + ` inserts an HTML-escaped value
- ` + "`${name}`" + ` inserts a value
- Dotted paths such as ` + "`file.relative`" + ` read nested values

## Things you can try:
- Close every ` + "`<%`" + ` with ` + "`%>`" + ` and every ` + "`${`" + ` with ` + "`}`" + `
- Remove evaluate blocks such as ` + "`<% if (x) { %>`" + `; only interpolation is supported`,
	}

	templateRenderFailedIssue = &Issue{
		id: TemplateRenderFailedId,
		mdMsg: `
# Failed to render a template!

A template referenced a value that does not exist.

## Available values:
- Body: ` + "`url`, `contents`, `file.*`" + `
- Header: ` + "`module`, `standalone`, `file.*`, `filename`" + `
- Footer: ` + "`module`, `file.*`, `filename`" + `

Where ` + "`file.*`" + ` is one of ` + "`path`, `base`, `cwd`, `relative`, `basename`, `stem`, `extname`, `dirname`" + `.`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or parsed.

## Search locations (in order of precedence):
1. The file given with ` + "`--config`" + `
2. ` + "`tplcache.cue`, `tplcache.toml`, `tplcache.yaml`" + ` in the current directory
3. ` + "`config.cue`, `config.toml`, `config.yaml`" + ` in the user config directory

## Things you can try:
- Print the effective configuration:
~~~
$ tplcache config show
~~~

- Write a fresh default file:
~~~
$ tplcache config init
~~~`,
	}

	configInvalidIssue = &Issue{
		id: ConfigInvalidId,
		mdMsg: `
# Invalid configuration!

The configuration parsed, but some values are not allowed.

## Common issues:
- ` + "`ui.color_scheme`" + ` must be one of auto, dark, light
- ` + "`escape.quotes`" + ` must be one of single, double, backtick
- ` + "`rewrite`" + ` patterns must be valid regular expressions
- ` + "`watch.debounce`" + ` must be a positive duration such as ` + "`300ms`",
	}

	invalidModuleSystemIssue = &Issue{
		id: InvalidModuleSystemId,
		mdMsg: `
# Unknown module system!

The generated module can be wrapped for a module loader.

## Supported module systems:
| Name | Output |
|------|--------|
| requirejs | ` + "`define(['angular'], function(angular) { ... });`" + ` |
| browserify | ` + "`module.exports = ...`" + ` |
| es6 | ` + "`export default ...`" + ` |
| iife | ` + "`(function(){ ... })();`" + ` |

The build continues without a wrapper. Leave the option empty for a plain
script.`,
	}

	invalidOutputFilenameIssue = &Issue{
		id: InvalidOutputFilenameId,
		mdMsg: `
# Invalid output filename!

The generated file is written below the output directory, so its name must be
a relative path that stays inside it.

## Things you can try:
- Use ` + "`--out`" + ` to choose the directory and ` + "`--filename`" + ` for the name:
~~~
$ tplcache build -o dist --filename templates.js
~~~

- Avoid names reserved by Windows such as ` + "`con.js`" + ` or ` + "`nul.js`",
	}

	outputWriteFailedIssue = &Issue{
		id: OutputWriteFailedId,
		mdMsg: `
# Failed to write the generated file!

## Things you can try:
- Check that the output directory is writable
- Check that there is enough disk space
- Print the result instead:
~~~
$ tplcache build --stdout
~~~`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

A template, config or output file could not be accessed.

## Things you can try:
- Check file and directory permissions
- Run tplcache from a directory you own`,
	}

	watchFailedIssue = &Issue{
		id: WatchFailedId,
		mdMsg: `
# Watch mode stopped!

The file watcher could not be started or failed while running.

## Things you can try:
- On Linux, raise the inotify watch limit:
~~~
$ sudo sysctl fs.inotify.max_user_watches=524288
~~~

- Narrow the watched patterns so fewer directories are watched`,
		extLinks: []HttpLink{"https://github.com/fsnotify/fsnotify#platform-specific-notes"},
	}

	issues = map[Id]*Issue{
		noTemplatesFoundIssue.Id():      noTemplatesFoundIssue,
		templateSyntaxErrorIssue.Id():   templateSyntaxErrorIssue,
		templateRenderFailedIssue.Id():  templateRenderFailedIssue,
		configLoadFailedIssue.Id():      configLoadFailedIssue,
		configInvalidIssue.Id():         configInvalidIssue,
		invalidModuleSystemIssue.Id():   invalidModuleSystemIssue,
		invalidOutputFilenameIssue.Id(): invalidOutputFilenameIssue,
		outputWriteFailedIssue.Id():     outputWriteFailedIssue,
		permissionDeniedIssue.Id():      permissionDeniedIssue,
		watchFailedIssue.Id():           watchFailedIssue,
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

func Get(id Id) *Issue {
	return issues[id]
}
