package services

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateName_Accepts(t *testing.T) {
	cases := map[string]string{
		"John":              "John",
		"  Mary Ann  ":      "Mary Ann",
		"Jean-Luc":          "Jean-Luc",
		"O'Brien":           "O'Brien",
		"\tDavid\n":         "David",
		strings.Repeat("a", 50): strings.Repeat("a", 50),
	}
	for input, want := range cases {
		candidate, err := ValidateName(input)
		if err != nil {
			t.Fatalf("ValidateName(%q) returned error: %v", input, err)
		}
		if candidate.String() != want {
			t.Fatalf("ValidateName(%q) expected %q got %q", input, want, candidate.String())
		}
	}
}

func TestValidateName_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		reason error
	}{
		{name: "empty", input: "", reason: ErrEmptyName},
		{name: "whitespace only", input: "   \t", reason: ErrEmptyName},
		{name: "too long", input: strings.Repeat("a", 51), reason: ErrNameTooLong},
		{name: "digits", input: "John2", reason: ErrInvalidCharacters},
		{name: "han characters", input: "张三", reason: ErrInvalidCharacters},
		{name: "accented letters", input: "José", reason: ErrInvalidCharacters},
		{name: "punctuation", input: "John!", reason: ErrInvalidCharacters},
		{name: "markup", input: "<b>John</b>", reason: ErrInvalidCharacters},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateName(tc.input)
			if err == nil {
				t.Fatalf("expected error for %q", tc.input)
			}
			if !errors.Is(err, tc.reason) {
				t.Fatalf("expected %v, got %v", tc.reason, err)
			}
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if validationErr.Message == "" {
				t.Fatalf("expected user-facing message")
			}
		})
	}
}

func TestValidateName_LengthCountsCharactersAfterTrim(t *testing.T) {
	input := "  " + strings.Repeat("b", 50) + "  "
	if _, err := ValidateName(input); err != nil {
		t.Fatalf("expected surrounding whitespace to be ignored, got %v", err)
	}
}

func TestMissingNameError(t *testing.T) {
	err := MissingNameError()
	if !errors.Is(err, ErrMissingName) {
		t.Fatalf("expected ErrMissingName, got %v", err)
	}
	if err.Error() != msgMissingName {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
