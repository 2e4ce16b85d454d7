// SPDX-License-Identifier: MPL-2.0

package tmpl

import (
	"errors"
	"testing"
)

func TestExecute(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"url":        "/a.html",
		"contents":   `I\'m A`,
		"standalone": "",
		"count":      3,
		"html":       `<b class="x">&'</b>`,
		"file":       map[string]any{"relative": "a.html"},
		"nothing":    nil,
	}

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"literal only", "}]);", "}]);"},
		{"empty", "", ""},
		{"interpolate", "put('<%= url %>','<%= contents %>');", `put('/a.html','I\'m A');`},
		{"no spaces", "<%=url%>", "/a.html"},
		{"empty value", "m('x'<%= standalone %>)", "m('x')"},
		{"es interpolate", "${url}", "/a.html"},
		{"nested path", "<%= file.relative %>", "a.html"},
		{"number", "<%= count %>", "3"},
		{"nil renders empty", "[<%= nothing %>]", "[]"},
		{"html escape", "<%- html %>", "&lt;b class=&quot;x&quot;&gt;&amp;&#39;&lt;/b&gt;"},
		{"dollar without brace", "$templateCache.put", "$templateCache.put"},
		{"percent without tag", "100% <%= count %>%", "100% 3%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tpl, err := Compile(tt.name, tt.src)
			if err != nil {
				t.Fatalf("Compile(%q) error: %v", tt.src, err)
			}
			got, err := tpl.Execute(data)
			if err != nil {
				t.Fatalf("Execute() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Execute() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompile_SyntaxErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
	}{
		{"unclosed", "put('<%= url ');"},
		{"empty expression", "<%=   %>"},
		{"evaluate block", "<% if (x) { %>y<% } %>"},
		{"invalid expression", "<%= url + 1 %>"},
		{"unclosed es", "${url"},
		{"empty es", "${}"},
		{"trailing dot", "<%= file. %>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Compile(tt.name, tt.src)
			if err == nil {
				t.Fatalf("Compile(%q) succeeded, want error", tt.src)
			}
			if !errors.Is(err, ErrSyntax) {
				t.Errorf("error should wrap ErrSyntax, got: %v", err)
			}
			var se *SyntaxError
			if !errors.As(err, &se) || se.Template != tt.name {
				t.Errorf("error should be *SyntaxError for %q, got: %#v", tt.name, err)
			}
		})
	}
}

func TestExecute_MissingValue(t *testing.T) {
	t.Parallel()

	tpl := MustCompile("footer", "}]); // <%= standalone %>")
	_, err := tpl.Execute(map[string]any{"module": "templates"})
	if !errors.Is(err, ErrMissingValue) {
		t.Fatalf("Execute() error = %v, want ErrMissingValue", err)
	}

	tpl = MustCompile("nested", "<%= file.path.x %>")
	if _, err := tpl.Execute(map[string]any{"file": map[string]any{"path": "a"}}); !errors.Is(err, ErrMissingValue) {
		t.Errorf("Execute() on non-map intermediate = %v, want ErrMissingValue", err)
	}
}

func TestMustCompile_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("MustCompile did not panic on invalid template")
		}
	}()
	MustCompile("bad", "<%= %>")
}

func TestTemplate_Name(t *testing.T) {
	t.Parallel()

	if got := MustCompile("body", "x").Name(); got != "body" {
		t.Errorf("Name() = %q, want %q", got, "body")
	}
}
