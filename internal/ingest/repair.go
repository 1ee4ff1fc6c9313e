package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rule is one named rewrite for a known model failure mode. Every rule is
// idempotent and leaves the contents of well-formed strings untouched.
type Rule struct {
	Name  string
	Apply func(string) string
}

// Rules is the repair order. Malformed objects are removed before bare values
// are quoted so the quoting heuristic sees fewer false positives.
var Rules = []Rule{
	{Name: "empty-tuples", Apply: RemoveEmptyTuples},
	{Name: "placeholder-objects", Apply: RemovePlaceholderObjects},
	{Name: "bare-values", Apply: QuoteBareValues},
	{Name: "placeholder-fields", Apply: RemovePlaceholderFields},
	{Name: "separators", Apply: CollapseSeparators},
}

// Repair runs every rule in order and returns the rewritten text together with
// the names of the rules that changed it.
func Repair(text string) (string, []string) {
	var applied []string
	for _, r := range Rules {
		next := r.Apply(text)
		if next != text {
			applied = append(applied, r.Name)
			text = next
		}
	}
	return text, applied
}

// RemoveEmptyTuples drops stray "" tokens that sit where an object key is
// expected but are not followed by a colon, e.g. {"title": "", "", ""}.
func RemoveEmptyTuples(text string) string {
	toks := lex(text)
	changed := false
	for {
		idx := -1
		owner := containers(toks)
		for i, t := range toks {
			if t.kind != tokString || t.text != `""` || owner[i] != '{' || !inKeyPosition(toks, i) {
				continue
			}
			if n := nextSignificant(toks, i+1); n >= 0 && toks[n].is(':') {
				continue
			}
			idx = i
			break
		}
		if idx < 0 {
			break
		}
		toks = cutElement(toks, idx, idx)
		changed = true
	}
	if !changed {
		return text
	}
	return join(toks)
}

// RemovePlaceholderObjects drops array elements that are flat objects with a
// type or category field and nothing but blank values otherwise.
func RemovePlaceholderObjects(text string) string {
	toks := lex(text)
	changed := false
	for {
		from, to := -1, -1
		owner := containers(toks)
		for i, t := range toks {
			if !t.is('{') || owner[i] != '[' {
				continue
			}
			end := matching(toks, i)
			if end < 0 {
				continue
			}
			if fields, ok := flatObject(toks[i+1 : end]); ok && isPlaceholderObject(fields) {
				from, to = i, end
				break
			}
		}
		if from < 0 {
			break
		}
		toks = cutElement(toks, from, to)
		changed = true
	}
	if !changed {
		return text
	}
	return join(toks)
}

// flatObject reads key/value pairs whose values are strings or null. ok is
// false for anything nested or malformed.
func flatObject(body []token) (map[string]string, bool) {
	fields := make(map[string]string)
	i := nextSignificant(body, 0)
	for i >= 0 {
		if body[i].is(',') {
			i = nextSignificant(body, i+1)
			continue
		}
		if body[i].kind != tokString {
			return nil, false
		}
		key := body[i].content()
		colon := nextSignificant(body, i+1)
		if colon < 0 || !body[colon].is(':') {
			return nil, false
		}
		v := nextSignificant(body, colon+1)
		if v < 0 {
			return nil, false
		}
		switch {
		case body[v].kind == tokString:
			fields[key] = body[v].content()
		case body[v].kind == tokBare && body[v].text == "null":
			fields[key] = ""
		default:
			return nil, false
		}
		i = nextSignificant(body, v+1)
	}
	return fields, true
}

func isPlaceholderObject(fields map[string]string) bool {
	_, hasType := fields["type"]
	_, hasCategory := fields["category"]
	if !hasType && !hasCategory {
		return false
	}
	for k, v := range fields {
		if k == "type" || k == "category" {
			continue
		}
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// QuoteBareValues wraps unquoted textual values that follow a key, as in
// "title": Slow scripts. A value that is only missing its opening quote
// ("title": Slow scripts",) keeps its full text. Literals and numbers are
// left alone.
func QuoteBareValues(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 16)
	var st stringState
	afterKey := false
	changed := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		wasInString := st.inString
		if !st.structural(c) {
			b.WriteByte(c)
			if wasInString && !st.inString {
				afterKey = true
			}
			continue
		}
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			b.WriteByte(c)
			continue
		}
		if c != ':' || !afterKey {
			afterKey = false
			b.WriteByte(c)
			continue
		}
		afterKey = false
		b.WriteByte(c)
		j := i + 1
		for j < len(text) && (text[j] == ' ' || text[j] == '\t') {
			j++
		}
		value, next, ok := bareValue(text, j)
		if !ok {
			continue
		}
		b.WriteString(text[i+1 : j])
		b.WriteString(quoteString(value))
		changed = true
		i = next - 1
	}
	if !changed {
		return text
	}
	return b.String()
}

// bareValue inspects the value starting at pos. It returns the value text and
// the offset to resume scanning from.
func bareValue(text string, pos int) (string, int, bool) {
	if pos >= len(text) {
		return "", 0, false
	}
	r, _ := utf8.DecodeRuneInString(text[pos:])
	if !unicode.IsLetter(r) {
		return "", 0, false
	}
	lineEnd := strings.IndexAny(text[pos:], "\r\n")
	if lineEnd < 0 {
		lineEnd = len(text)
	} else {
		lineEnd += pos
	}
	line := text[pos:lineEnd]

	// Missing opening quote: the first quote on the line closes the value.
	if q := strings.IndexByte(line, '"'); q >= 0 {
		rest := strings.TrimLeft(line[q+1:], " \t")
		if rest == "" || strings.IndexByte(",}]", rest[0]) >= 0 {
			value := strings.TrimSpace(line[:q])
			if isLiteral(value) {
				return "", 0, false
			}
			return value, pos + q + 1, true
		}
	}

	stop := bareStop(line)
	value := strings.TrimRight(line[:stop], " \t")
	if value == "" || isLiteral(value) {
		return "", 0, false
	}
	return value, pos + len(value), true
}

// bareStop returns where a bare value on line ends. A comma ends it only
// when a quoted key or element follows, or nothing does.
func bareStop(line string) int {
	from := 0
	for {
		rel := strings.IndexAny(line[from:], ",}]")
		if rel < 0 {
			return len(line)
		}
		stop := from + rel
		if line[stop] != ',' {
			return stop
		}
		rest := strings.TrimLeft(line[stop+1:], " \t")
		if rest == "" || rest[0] == '"' {
			return stop
		}
		from = stop + 1
	}
}

func isLiteral(v string) bool {
	switch v {
	case "true", "false", "null":
		return true
	}
	return isNumeric(v)
}

func isNumeric(v string) bool {
	if v == "" {
		return false
	}
	digits := 0
	for i, r := range v {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '-' && i == 0, r == '.', r == 'e', r == 'E', r == '+':
		default:
			return false
		}
	}
	return digits > 0
}

func quoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// RemovePlaceholderFields drops object members whose key follows a
// placeholder or comment naming convention.
func RemovePlaceholderFields(text string) string {
	toks := lex(text)
	changed := false
	for {
		from, to := -1, -1
		owner := containers(toks)
		for i, t := range toks {
			if t.kind != tokString || owner[i] != '{' || !inKeyPosition(toks, i) {
				continue
			}
			colon := nextSignificant(toks, i+1)
			if colon < 0 || !toks[colon].is(':') || !IsPlaceholderKey(t.content()) {
				continue
			}
			from, to = i, valueEnd(toks, colon)
			break
		}
		if from < 0 {
			break
		}
		toks = cutElement(toks, from, to)
		changed = true
	}
	if !changed {
		return text
	}
	return join(toks)
}

// IsPlaceholderKey reports whether key names a placeholder or comment field.
func IsPlaceholderKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	switch {
	case k == "":
		return false
	case strings.Contains(k, "placeholder"), strings.Contains(k, "_comment_"), strings.Contains(k, "_insights_"), strings.Contains(k, "___"):
		return true
	case strings.HasPrefix(k, "//"), strings.HasPrefix(k, "#"):
		return true
	case len(k) > 2 && strings.HasPrefix(k, "_") && strings.HasSuffix(k, "_"):
		return true
	}
	return false
}

// valueEnd returns the index of the last token of the value after colon.
func valueEnd(toks []token, colon int) int {
	last := colon
	depth := 0
	for i := colon + 1; i < len(toks); i++ {
		t := toks[i]
		if t.kind == tokPunct {
			switch t.text[0] {
			case '{', '[':
				depth++
			case '}', ']':
				if depth == 0 {
					return last
				}
				depth--
			case ',':
				if depth == 0 {
					return last
				}
			}
		}
		if t.kind != tokSpace {
			last = i
		}
	}
	return last
}

// CollapseSeparators removes duplicated commas and commas directly after an
// opening or before a closing brace or bracket.
func CollapseSeparators(text string) string {
	toks := lex(text)
	out := make([]token, 0, len(toks))
	var prev byte
	changed := false
	for i, t := range toks {
		if t.is(',') {
			if prev == '{' || prev == '[' || prev == ',' || closerFollows(toks, i+1) {
				changed = true
				continue
			}
		}
		out = append(out, t)
		switch t.kind {
		case tokSpace:
		case tokPunct:
			prev = t.text[0]
		default:
			prev = 'v'
		}
	}
	if !changed {
		return text
	}
	return join(out)
}

func closerFollows(toks []token, from int) bool {
	for i := from; i < len(toks); i++ {
		t := toks[i]
		if t.kind == tokSpace || t.is(',') {
			continue
		}
		return t.is('}') || t.is(']')
	}
	return false
}

func inKeyPosition(toks []token, i int) bool {
	p := prevSignificant(toks, i)
	return p >= 0 && (toks[p].is('{') || toks[p].is(','))
}
