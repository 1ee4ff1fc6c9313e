package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Stage is a state of the parse cascade.
type Stage string

const (
	StageRaw       Stage = "raw"
	StageSanitized Stage = "sanitized"
	StageRepaired  Stage = "repaired"
	StageFailed    Stage = "failed"
)

var (
	errBlankInput = errors.New("blank input")
	errNotObject  = errors.New("top-level value is not an object")
)

// StageError records why a cascade stage did not produce a document.
type StageError struct {
	Stage Stage
	Err   error
}

func (e StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// CascadeResult is the outcome of Parse. Document is nil exactly when Stage is
// StageFailed.
type CascadeResult struct {
	Document  map[string]any
	Stage     Stage
	Truncated bool
	Rules     []string
	Errors    []StageError
}

// Parse runs the cascade raw -> sanitized -> repaired and stops at the first
// stage that yields an object. Cheaper, less invasive stages go first so a
// response that was already valid is never rewritten.
func Parse(text string) CascadeResult {
	var res CascadeResult
	if strings.TrimSpace(text) == "" {
		res.Stage = StageFailed
		res.Errors = append(res.Errors, StageError{Stage: StageRaw, Err: errBlankInput})
		return res
	}

	doc, err := decodeObject(text)
	if err == nil {
		res.Document, res.Stage = doc, StageRaw
		return res
	}
	res.Errors = append(res.Errors, StageError{Stage: StageRaw, Err: err})

	sanitized := Sanitize(text)
	if doc, err = decodeObject(sanitized); err == nil {
		res.Document, res.Stage = doc, StageSanitized
		return res
	}
	res.Errors = append(res.Errors, StageError{Stage: StageSanitized, Err: err})
	if doc, ok := recoverTruncated(sanitized); ok {
		res.Document, res.Stage, res.Truncated = doc, StageSanitized, true
		return res
	}

	repaired, rules := Repair(sanitized)
	res.Rules = rules
	if doc, err = decodeObject(repaired); err == nil {
		res.Document, res.Stage = doc, StageRepaired
		return res
	}
	res.Errors = append(res.Errors, StageError{Stage: StageRepaired, Err: err})
	if doc, ok := recoverTruncated(repaired); ok {
		res.Document, res.Stage, res.Truncated = doc, StageRepaired, true
		return res
	}

	res.Stage = StageFailed
	return res
}

// recoverTruncated tries the last complete object first and then closes the
// containers that were left open.
func recoverTruncated(text string) (map[string]any, bool) {
	if span := LastObject(text); span.Balanced && span.End-span.Start < len(text) {
		if doc, err := decodeObject(text[span.Start:span.End]); err == nil {
			return doc, true
		}
	}
	if closed, ok := CloseTruncated(text); ok {
		if doc, err := decodeObject(closed); err == nil {
			return doc, true
		}
	}
	return nil, false
}

// decodeObject parses exactly one JSON object. Numbers stay json.Number so the
// normalizer decides how to coerce them.
func decodeObject(text string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}
