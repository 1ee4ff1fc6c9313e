package ingest

import (
	"regexp"
	"strings"
)

var (
	fenceOpener = regexp.MustCompile("^\\s*```[A-Za-z0-9_+-]*[ \\t]*\\r?\\n")
	fenceCloser = regexp.MustCompile("\\r?\\n[ \\t]*```[ \\t]*\\s*$")
	fenceLine   = regexp.MustCompile("(?m)^[ \\t]*```[A-Za-z0-9_+-]*[ \\t]*\\r?(?:\\n|$)")
)

// maxSanitizePasses bounds the fixed-point loop in Sanitize.
const maxSanitizePasses = 4

// Sanitize removes markdown fences, comments, surrounding prose and trailing
// commas from a model response. Applying it twice yields the same text as
// applying it once.
func Sanitize(text string) string {
	out := text
	for i := 0; i < maxSanitizePasses; i++ {
		next := sanitizePass(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func sanitizePass(text string) string {
	s := stripFences(text)
	s = fenceLine.ReplaceAllString(s, "")
	s = stripComments(s)
	s = anchor(s)
	s = stripTrailingCommas(s)
	return strings.TrimSpace(s)
}

// stripFences removes a leading fence opener and trailing fence closer when
// the text is wrapped as a whole.
func stripFences(text string) string {
	loc := fenceOpener.FindStringIndex(text)
	if loc == nil {
		return text
	}
	body := text[loc[1]:]
	if c := fenceCloser.FindStringIndex(body); c != nil {
		body = body[:c[0]]
	}
	return body
}

// stripComments drops // line comments and /* */ block comments that sit
// outside JSON strings. Block comments become a single space. A raw newline
// ends any open string since valid JSON strings never span lines.
func stripComments(text string) string {
	if !strings.Contains(text, "/") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	var st stringState
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\n' {
			st = stringState{}
			b.WriteByte(c)
			continue
		}
		if !st.structural(c) || c != '/' || i+1 >= len(text) {
			b.WriteByte(c)
			continue
		}
		switch text[i+1] {
		case '/':
			j := strings.IndexByte(text[i:], '\n')
			if j < 0 {
				return b.String()
			}
			i += j - 1
		case '*':
			j := strings.Index(text[i+2:], "*/")
			b.WriteByte(' ')
			if j < 0 {
				return b.String()
			}
			i += j + 3
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// anchor narrows the text to the first balanced object that looks like a JSON
// object (its first token is a key or the closing brace). Prose such as
// "use {braces}" before the document is skipped. Unbalanced text is returned
// unchanged.
func anchor(text string) string {
	first := FirstObject(text, 0)
	if !first.Balanced {
		return text
	}
	for span := first; span.Start >= 0; span = FirstObject(text, span.Start+1) {
		if !span.Balanced {
			break
		}
		if looksLikeObject(text[span.Start:span.End]) {
			return text[span.Start:span.End]
		}
	}
	return text[first.Start:first.End]
}

func looksLikeObject(obj string) bool {
	rest := strings.TrimLeft(obj[1:], " \t\r\n")
	return rest != "" && (rest[0] == '"' || rest[0] == '}')
}

// stripTrailingCommas drops every comma (including runs of commas) whose next
// significant character is a closing brace or bracket.
func stripTrailingCommas(text string) string {
	if !strings.Contains(text, ",") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	var st stringState
	for i := 0; i < len(text); i++ {
		c := text[i]
		if st.structural(c) && c == ',' && closesNext(text, i+1) {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func closesNext(text string, from int) bool {
	for j := from; j < len(text); j++ {
		switch text[j] {
		case ' ', '\t', '\r', '\n', ',':
			continue
		case '}', ']':
			return true
		default:
			return false
		}
	}
	return false
}
