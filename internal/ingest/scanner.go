package ingest

import "strings"

// Span is the byte range of a top-level brace-delimited object. End is
// exclusive. When Balanced is false no complete object was found and the span
// must not be used to slice the text.
type Span struct {
	Start    int
	End      int
	Balanced bool
}

// stringState tracks whether the scan position is inside a JSON string.
type stringState struct {
	inString   bool
	escapeNext bool
}

// structural feeds c into the state and reports whether c sits outside any
// string (quote characters themselves are never structural).
func (s *stringState) structural(c byte) bool {
	if s.escapeNext {
		s.escapeNext = false
		return false
	}
	if s.inString {
		switch c {
		case '\\':
			s.escapeNext = true
		case '"':
			s.inString = false
		}
		return false
	}
	if c == '"' {
		s.inString = true
		return false
	}
	return true
}

// FirstObject returns the span of the first top-level object that starts at
// or after from.
func FirstObject(text string, from int) Span {
	if from < 0 {
		from = 0
	}
	if from >= len(text) {
		return Span{Start: -1, End: -1}
	}
	rel := strings.IndexByte(text[from:], '{')
	if rel < 0 {
		return Span{Start: -1, End: -1}
	}
	start := from + rel
	var st stringState
	depth := 0
	for i := start; i < len(text); i++ {
		c := text[i]
		if !st.structural(c) {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return Span{Start: start, End: i + 1, Balanced: true}
			}
		}
	}
	return Span{Start: start, End: len(text)}
}

// LastObject scans the whole text from the first '{' and pairs that start with
// the last offset where brace depth returned to zero. It is used on text that
// was cut off mid-stream: everything up to the last closed object usually
// parses even though the full text does not.
func LastObject(text string) Span {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return Span{Start: -1, End: -1}
	}
	var st stringState
	depth := 0
	lastEnd := -1
	for i := start; i < len(text); i++ {
		c := text[i]
		if !st.structural(c) {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				lastEnd = i + 1
			}
		}
	}
	if lastEnd < 0 {
		return Span{Start: start, End: len(text)}
	}
	return Span{Start: start, End: lastEnd, Balanced: true}
}

// frame is a container that is still open during a scan.
type frame struct {
	kind  byte
	start int
}

// CloseTruncated repairs a top-level object that never closes. The cut point
// is the last place inside the top-level object where a value was known to be
// complete: right after a nested container closed, or just before a
// separating comma. Closers for the containers open at that point are then
// appended. An object that is an array element and was still open at the cut
// is dropped whole, so a truncated array keeps only its complete elements. ok
// is false when the object is not truncated or no cut point exists.
func CloseTruncated(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	var st stringState
	var stack []frame
	cut := -1
	var open []frame
	for i := start; i < len(text); i++ {
		c := text[i]
		if !st.structural(c) {
			continue
		}
		switch c {
		case '{', '[':
			stack = append(stack, frame{kind: c, start: i})
		case '}', ']':
			if len(stack) == 0 {
				continue
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return "", false
			}
			cut = i + 1
			open = append(open[:0], stack...)
		case ',':
			if len(stack) == 0 {
				continue
			}
			cut = i
			open = append(open[:0], stack...)
		}
	}
	if cut < 0 {
		return "", false
	}
	for k := 1; k < len(open); k++ {
		if open[k].kind == '{' && open[k-1].kind == '[' {
			cut = open[k].start
			open = open[:k]
			break
		}
	}
	body := strings.TrimRight(text[start:cut], " \t\r\n")
	body = strings.TrimRight(strings.TrimSuffix(body, ","), " \t\r\n")

	var b strings.Builder
	b.Grow(len(body) + len(open))
	b.WriteString(body)
	for i := len(open) - 1; i >= 0; i-- {
		if open[i].kind == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String(), true
}
