package ingest

import "strings"

type tokenKind int

const (
	tokSpace tokenKind = iota
	tokString
	tokPunct
	tokBare
)

// token is a lexeme of loosely JSON-shaped text. Concatenating every token's
// text reproduces the input exactly.
type token struct {
	kind tokenKind
	text string
}

func (t token) is(punct byte) bool {
	return t.kind == tokPunct && t.text[0] == punct
}

// content returns the unquoted body of a string token.
func (t token) content() string {
	body := strings.TrimPrefix(t.text, `"`)
	if strings.HasSuffix(body, `"`) && !strings.HasSuffix(body, `\"`) {
		body = body[:len(body)-1]
	}
	return body
}

// lex splits text into tokens. An unterminated string ends at the next raw
// newline so one broken value cannot swallow the rest of the document.
func lex(text string) []token {
	var toks []token
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			j := i + 1
			for j < len(text) && strings.IndexByte(" \t\r\n", text[j]) >= 0 {
				j++
			}
			toks = append(toks, token{kind: tokSpace, text: text[i:j]})
			i = j
		case c == '"':
			j := i + 1
			for j < len(text) {
				if text[j] == '\\' && j+1 < len(text) && text[j+1] != '\n' {
					j += 2
					continue
				}
				if text[j] == '\n' {
					break
				}
				j++
				if text[j-1] == '"' {
					break
				}
			}
			toks = append(toks, token{kind: tokString, text: text[i:j]})
			i = j
		case strings.IndexByte("{}[]:,", c) >= 0:
			toks = append(toks, token{kind: tokPunct, text: text[i : i+1]})
			i++
		default:
			j := i + 1
			for j < len(text) && strings.IndexByte(" \t\r\n\"{}[]:,", text[j]) < 0 {
				j++
			}
			toks = append(toks, token{kind: tokBare, text: text[i:j]})
			i = j
		}
	}
	return toks
}

func join(toks []token) string {
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.text)
	}
	return b.String()
}

// nextSignificant returns the index of the first non-space token at or after i,
// or -1.
func nextSignificant(toks []token, i int) int {
	for ; i < len(toks); i++ {
		if toks[i].kind != tokSpace {
			return i
		}
	}
	return -1
}

// prevSignificant returns the index of the last non-space token before i, or -1.
func prevSignificant(toks []token, i int) int {
	for i--; i >= 0; i-- {
		if toks[i].kind != tokSpace {
			return i
		}
	}
	return -1
}

// matching returns the index of the token that closes the container opened at
// open, or -1 when the text ends first.
func matching(toks []token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		t := toks[i]
		if t.kind != tokPunct {
			continue
		}
		switch t.text[0] {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// containers returns, for every token, the opening punctuation of the
// innermost container enclosing it (0 at top level).
func containers(toks []token) []byte {
	out := make([]byte, len(toks))
	var stack []byte
	for i, t := range toks {
		if len(stack) > 0 {
			out[i] = stack[len(stack)-1]
		}
		if t.kind != tokPunct {
			continue
		}
		switch t.text[0] {
		case '{', '[':
			stack = append(stack, t.text[0])
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return out
}

// cutElement removes toks[from..to] together with one adjacent comma so the
// surrounding list stays well formed. The preceding comma is preferred.
func cutElement(toks []token, from, to int) []token {
	if p := prevSignificant(toks, from); p >= 0 && toks[p].is(',') {
		from = p
	} else if n := nextSignificant(toks, to+1); n >= 0 && toks[n].is(',') {
		to = n
	}
	out := make([]token, 0, len(toks)-(to-from+1))
	out = append(out, toks[:from]...)
	return append(out, toks[to+1:]...)
}
