package ingest

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "whole text fenced",
			in:   "```json\n{\"a\":1}\n```",
			want: `{"a":1}`,
		},
		{
			name: "fence with prose before and after",
			in:   "Here you go:\n```json\n{\"summary\":\"ok\",}\n```\nThanks!",
			want: `{"summary":"ok"}`,
		},
		{
			name: "line and block comments",
			in:   "{\"a\": 1, // first\n\"b\": /* second */ 2}",
			want: "{\"a\": 1, \n\"b\":   2}",
		},
		{
			name: "comment markers inside strings survive",
			in:   `{"url": "https://example.com/a", "glob": "/* not a comment */"}`,
			want: `{"url": "https://example.com/a", "glob": "/* not a comment */"}`,
		},
		{
			name: "trailing commas including runs",
			in:   `{"a": [1, 2,, ], "b": {"c": 3,},}`,
			want: `{"a": [1, 2 ], "b": {"c": 3}}`,
		},
		{
			name: "commas inside strings untouched",
			in:   `{"a": "x,}"}`,
			want: `{"a": "x,}"}`,
		},
		{
			name: "prose braces before the document",
			in:   `Use {curly} braces. {"a": 1}`,
			want: `{"a": 1}`,
		},
		{
			name: "unbalanced text is not sliced",
			in:   `note {"a": [1, 2`,
			want: `note {"a": [1, 2`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Fatalf("Sanitize() mismatch (-want +got):\n%s", cmp.Diff(tt.want, got))
			}
		})
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"```json\n{\"a\":1,}\n```",
		"Intro \"quoted\n{\"a\": 1 // c\n}",
		"/* lead */ {\"a\": \"b\" /* x */, }",
		`{"a": [1,,,], "b": "//keep"}`,
		"```\n```json\n{}\n```\n```",
		`{"a": "unterminated`,
		string(loadFixture(t, "testdata/fenced_response.txt")),
		string(loadFixture(t, "testdata/broken_response.txt")),
		string(loadFixture(t, "testdata/truncated_response.txt")),
	}
	for _, in := range inputs {
		once := Sanitize(in)
		twice := Sanitize(once)
		if once != twice {
			t.Fatalf("Sanitize not idempotent for %q (-once +twice):\n%s", in, cmp.Diff(once, twice))
		}
	}
}

func TestSanitizeFencedMatchesUnwrapped(t *testing.T) {
	doc := `{"summary": "ok", "problems": [], "prediction": "faster"}`
	wrapped := "Sure, here is the JSON you asked for:\n\n```json\n" + doc + "\n```\n\nHope this helps."

	want, err := decodeObject(doc)
	if err != nil {
		t.Fatalf("decode plain: %v", err)
	}
	got, err := decodeObject(Sanitize(wrapped))
	if err != nil {
		t.Fatalf("decode sanitized: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestStripCommentsUnterminatedBlock(t *testing.T) {
	got := stripComments(`{"a": 1} /* never closed`)
	if strings.Contains(got, "never") {
		t.Fatalf("expected block comment removed, got %q", got)
	}
}
