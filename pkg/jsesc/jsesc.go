// SPDX-License-Identifier: MPL-2.0

// Package jsesc escapes arbitrary text so it can be embedded in a quoted
// JavaScript string literal.
//
// The output matches the string handling of the jsesc npm package, which is
// what AngularJS template-cache builds have historically relied on. Escape
// never fails: invalid UTF-8 bytes are decoded as U+FFFD before escaping.
package jsesc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// QuoteSingle escapes single quotes. This is the default.
	QuoteSingle QuoteStyle = "single"
	// QuoteDouble escapes double quotes.
	QuoteDouble QuoteStyle = "double"
	// QuoteBacktick escapes backticks and `${` for template literals.
	QuoteBacktick QuoteStyle = "backtick"
)

// ErrInvalidQuoteStyle is the sentinel error wrapped by InvalidQuoteStyleError.
var ErrInvalidQuoteStyle = errors.New("invalid quote style")

type (
	// QuoteStyle selects the quote character the escaped text will be placed in.
	// The zero value ("") behaves as QuoteSingle.
	QuoteStyle string

	// InvalidQuoteStyleError is returned when a QuoteStyle value is not recognized.
	// It wraps ErrInvalidQuoteStyle for errors.Is() compatibility.
	InvalidQuoteStyleError struct {
		Value QuoteStyle
	}

	// Options controls escaping. The zero value produces jsesc's defaults.
	Options struct {
		// Quotes selects which quote character is escaped.
		Quotes QuoteStyle
		// Wrap surrounds the result with the quote character.
		Wrap bool
		// ES6 uses \u{...} escapes for astral symbols instead of surrogate pairs.
		ES6 bool
		// EscapeEverything escapes printable ASCII as well.
		EscapeEverything bool
		// Minimal only escapes what is required for a valid literal, plus the
		// Unicode whitespace characters that break some parsers.
		Minimal bool
		// ScriptContext escapes "</script", "</style" and "<!--" so the output
		// can be inlined in an HTML <script> element.
		ScriptContext bool
		// JSON emits JSON-compatible output. Implies double quotes and Wrap.
		JSON bool
		// LowercaseHex uses lower case hex digits in escape sequences.
		LowercaseHex bool
	}
)

// String returns the string representation of the QuoteStyle.
func (q QuoteStyle) String() string { return string(q) }

// IsValid returns whether the QuoteStyle is one of the defined styles.
// The zero value is valid and means QuoteSingle.
func (q QuoteStyle) IsValid() (bool, []error) {
	switch q {
	case "", QuoteSingle, QuoteDouble, QuoteBacktick:
		return true, nil
	default:
		return false, []error{&InvalidQuoteStyleError{Value: q}}
	}
}

// Error implements the error interface for InvalidQuoteStyleError.
func (e *InvalidQuoteStyleError) Error() string {
	return fmt.Sprintf("invalid quote style %q (valid: single, double, backtick)", e.Value)
}

// Unwrap returns ErrInvalidQuoteStyle for errors.Is() compatibility.
func (e *InvalidQuoteStyleError) Unwrap() error { return ErrInvalidQuoteStyle }

// quoteChar returns the quote rune selected by the options.
func (o Options) quoteChar() rune {
	if o.JSON {
		return '"'
	}
	switch o.Quotes {
	case QuoteDouble:
		return '"'
	case QuoteBacktick:
		return '`'
	default:
		return '\''
	}
}

// Escape returns s escaped for inclusion in a JavaScript string literal
// delimited by the quote character selected in opts.
func Escape(s string, opts Options) string {
	quote := opts.quoteChar()

	var sb strings.Builder
	sb.Grow(len(s) + len(s)/8)

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		writeRune(&sb, r, s[i:], quote, opts)
	}

	out := sb.String()
	if quote == '`' {
		out = strings.ReplaceAll(out, "${", `\${`)
	}
	if opts.ScriptContext {
		out = escapeScriptContext(out, opts.JSON)
	}
	if opts.Wrap || opts.JSON {
		q := string(quote)
		out = q + out + q
	}
	return out
}

// writeRune appends the escaped form of r. rest is the unconsumed input and
// is only inspected to decide how NUL is written.
func writeRune(sb *strings.Builder, r rune, rest string, quote rune, opts Options) {
	if !opts.EscapeEverything && isSafeASCII(r) {
		sb.WriteRune(r)
		return
	}

	// Astral symbols are a surrogate pair in JavaScript strings.
	if r > 0xFFFF {
		switch {
		case opts.Minimal:
			sb.WriteRune(r)
		case opts.ES6:
			sb.WriteString(`\u{`)
			sb.WriteString(hex(int(r), opts.LowercaseHex))
			sb.WriteByte('}')
		default:
			hi, lo := surrogates(r)
			writeFourHex(sb, hi, opts.LowercaseHex)
			writeFourHex(sb, lo, opts.LowercaseHex)
		}
		return
	}

	if r == 0 && !opts.JSON && !startsWithDigit(rest) {
		sb.WriteString(`\0`)
		return
	}

	if r == '\'' || r == '"' || r == '`' {
		if r == quote || opts.EscapeEverything {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
		return
	}

	if esc, ok := singleEscape(r); ok {
		sb.WriteString(esc)
		return
	}

	if opts.Minimal && !isSpecialWhitespace(r) {
		sb.WriteRune(r)
		return
	}

	if opts.JSON || r > 0xFF {
		writeFourHex(sb, int(r), opts.LowercaseHex)
		return
	}
	h := hex(int(r), opts.LowercaseHex)
	sb.WriteString(`\x`)
	if len(h) < 2 {
		sb.WriteByte('0')
	}
	sb.WriteString(h)
}

// isSafeASCII reports whether r is printable ASCII that needs no escaping in
// any quote style: space through tilde, minus the quote characters and the
// backslash.
func isSafeASCII(r rune) bool {
	if r < 0x20 || r > 0x7E {
		return false
	}
	switch r {
	case '"', '\'', '\\', '`':
		return false
	}
	return true
}

func singleEscape(r rune) (string, bool) {
	switch r {
	case '\\':
		return `\\`, true
	case '\b':
		return `\b`, true
	case '\f':
		return `\f`, true
	case '\n':
		return `\n`, true
	case '\r':
		return `\r`, true
	case '\t':
		return `\t`, true
	}
	return "", false
}

// isSpecialWhitespace reports whether r is one of the non-ASCII whitespace
// characters that Minimal mode still escapes.
func isSpecialWhitespace(r rune) bool {
	switch {
	case r == 0xA0, r == 0x1680, r == 0x2028, r == 0x2029, r == 0x202F, r == 0x205F, r == 0x3000:
		return true
	case r >= 0x2000 && r <= 0x200A:
		return true
	}
	return false
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

func surrogates(r rune) (hi, lo int) {
	v := int(r) - 0x10000
	return 0xD800 + (v >> 10), 0xDC00 + (v & 0x3FF)
}

func hex(v int, lower bool) string {
	h := strconv.FormatInt(int64(v), 16)
	if lower {
		return h
	}
	return strings.ToUpper(h)
}

func writeFourHex(sb *strings.Builder, v int, lower bool) {
	h := hex(v, lower)
	sb.WriteString(`\u`)
	for i := len(h); i < 4; i++ {
		sb.WriteByte('0')
	}
	sb.WriteString(h)
}

// escapeScriptContext neutralizes sequences that would close or comment out
// an enclosing HTML <script> element.
func escapeScriptContext(s string, json bool) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); {
		switch {
		case s[i] == '<' && i+1 < len(s) && s[i+1] == '/' && hasFoldPrefix(s[i+2:], "script", "style"):
			sb.WriteString(`<\/`)
			i += 2
		case strings.HasPrefix(s[i:], "<!--"):
			if json {
				sb.WriteString("\\u003C!--")
			} else {
				sb.WriteString(`\x3C!--`)
			}
			i += 4
		default:
			sb.WriteByte(s[i])
			i++
		}
	}
	return sb.String()
}

func hasFoldPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if len(s) >= len(p) && strings.EqualFold(s[:len(p)], p) {
			return true
		}
	}
	return false
}
