package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestParseNameCandidate(t *testing.T) {
	cases := []struct {
		input string
		want  string
		err   error
	}{
		{input: "  Mary-Jane O'Neil ", want: "Mary-Jane O'Neil"},
		{input: "   ", err: ErrEmptyName},
		{input: strings.Repeat("a", MaxNameLength+1), err: ErrNameTooLong},
		{input: "John123", err: ErrInvalidCharacters},
		{input: "Zoë", err: ErrInvalidCharacters},
	}
	for _, tc := range cases {
		got, err := ParseNameCandidate(tc.input)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Fatalf("%q: expected %v, got %v", tc.input, tc.err, err)
			}
			if !got.IsZero() {
				t.Fatalf("%q: expected zero candidate on error, got %q", tc.input, got)
			}
			continue
		}
		if err != nil || got.String() != tc.want {
			t.Fatalf("%q: expected %q, got %q (%v)", tc.input, tc.want, got, err)
		}
	}
}

func TestNameCandidateZeroValue(t *testing.T) {
	var c NameCandidate
	if !c.IsZero() || c.String() != "" {
		t.Fatalf("expected empty zero value, got %q", c)
	}
}
