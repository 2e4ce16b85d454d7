// SPDX-License-Identifier: MPL-2.0

// Package tmpl implements the interpolation subset of lodash templates used by
// template-cache builds.
//
// Three forms are recognized:
//
//	<%= expr %>   inserts the value of expr
//	<%- expr %>   inserts the value of expr, HTML-escaped
//	${expr}       inserts the value of expr
//
// expr is a dotted identifier path (for example "file.relative") resolved
// against nested map[string]any data. Evaluate blocks ("<% ... %>") are not
// supported and are rejected when the template is compiled.
package tmpl

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSyntax is the sentinel error wrapped by SyntaxError.
	ErrSyntax = errors.New("template syntax error")
	// ErrMissingValue is the sentinel error wrapped by MissingValueError.
	ErrMissingValue = errors.New("template value not found")

	htmlEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
)

const (
	segText segmentKind = iota
	segValue
	segEscapedValue
)

type (
	segmentKind uint8

	segment struct {
		kind segmentKind
		text string   // literal text for segText
		path []string // identifier path for value segments
	}

	// Template is a compiled template. It is safe for concurrent use.
	Template struct {
		name     string
		segments []segment
	}

	// SyntaxError reports a malformed template. It wraps ErrSyntax.
	SyntaxError struct {
		Template string
		Offset   int
		Msg      string
	}

	// MissingValueError reports an expression that has no value in the data.
	// It wraps ErrMissingValue.
	MissingValueError struct {
		Template string
		Expr     string
	}
)

// Error implements the error interface for SyntaxError.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("template %q: offset %d: %s", e.Template, e.Offset, e.Msg)
}

// Unwrap returns ErrSyntax for errors.Is() compatibility.
func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// Error implements the error interface for MissingValueError.
func (e *MissingValueError) Error() string {
	return fmt.Sprintf("template %q: %q is not defined", e.Template, e.Expr)
}

// Unwrap returns ErrMissingValue for errors.Is() compatibility.
func (e *MissingValueError) Unwrap() error { return ErrMissingValue }

// MustCompile is like Compile but panics on error. It is meant for templates
// that are compile-time constants.
func MustCompile(name, src string) *Template {
	t, err := Compile(name, src)
	if err != nil {
		panic(err)
	}
	return t
}

// Compile parses src. name is only used in error messages.
func Compile(name, src string) (*Template, error) {
	t := &Template{name: name}
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			t.segments = append(t.segments, segment{kind: segText, text: text.String()})
			text.Reset()
		}
	}

	for i := 0; i < len(src); {
		switch {
		case strings.HasPrefix(src[i:], "<%"):
			kind, open, err := delimiterKind(name, src, i)
			if err != nil {
				return nil, err
			}
			end := strings.Index(src[i+open:], "%>")
			if end == -1 {
				return nil, &SyntaxError{Template: name, Offset: i, Msg: "unclosed template expression"}
			}
			path, err := parseExpr(name, src[i+open:i+open+end], i)
			if err != nil {
				return nil, err
			}
			flush()
			t.segments = append(t.segments, segment{kind: kind, path: path})
			i += open + end + len("%>")

		case strings.HasPrefix(src[i:], "${"):
			end := strings.IndexByte(src[i+2:], '}')
			if end == -1 {
				return nil, &SyntaxError{Template: name, Offset: i, Msg: "unclosed ${ expression"}
			}
			path, err := parseExpr(name, src[i+2:i+2+end], i)
			if err != nil {
				return nil, err
			}
			flush()
			t.segments = append(t.segments, segment{kind: segValue, path: path})
			i += 2 + end + 1

		default:
			text.WriteByte(src[i])
			i++
		}
	}
	flush()

	return t, nil
}

// delimiterKind classifies the "<%" tag starting at offset i and returns the
// length of its opening delimiter.
func delimiterKind(name, src string, i int) (segmentKind, int, error) {
	if i+2 < len(src) {
		switch src[i+2] {
		case '=':
			return segValue, 3, nil
		case '-':
			return segEscapedValue, 3, nil
		}
	}
	return 0, 0, &SyntaxError{Template: name, Offset: i, Msg: "evaluate blocks are not supported, use <%= %>"}
}

func parseExpr(name, expr string, offset int) ([]string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, &SyntaxError{Template: name, Offset: offset, Msg: "empty template expression"}
	}
	parts := strings.Split(expr, ".")
	for _, p := range parts {
		if !isIdentifier(p) {
			return nil, &SyntaxError{Template: name, Offset: offset, Msg: fmt.Sprintf("invalid expression %q", expr)}
		}
	}
	return parts, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_' || c == '$':
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Name returns the name the template was compiled with.
func (t *Template) Name() string { return t.name }

// Execute renders the template against data.
func (t *Template) Execute(data map[string]any) (string, error) {
	var out strings.Builder
	for _, seg := range t.segments {
		if seg.kind == segText {
			out.WriteString(seg.text)
			continue
		}
		v, ok := lookup(data, seg.path)
		if !ok {
			return "", &MissingValueError{Template: t.name, Expr: strings.Join(seg.path, ".")}
		}
		s := stringify(v)
		if seg.kind == segEscapedValue {
			s = htmlEscaper.Replace(s)
		}
		out.WriteString(s)
	}
	return out.String(), nil
}

func lookup(data map[string]any, path []string) (any, bool) {
	var cur any = data
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// stringify converts a value the way string interpolation would; nil renders
// as the empty string.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
