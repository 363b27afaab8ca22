package services

import (
	"errors"

	domain "github.com/hanko-field/namegen/internal/domain"
)

// MaxNameLength bounds the trimmed input, counted in characters.
const MaxNameLength = domain.MaxNameLength

var (
	// ErrMissingName indicates the request carried no usable name value at all.
	ErrMissingName = errors.New("name_validation: missing name")
	// ErrEmptyName indicates the name was blank after trimming.
	ErrEmptyName = domain.ErrEmptyName
	// ErrNameTooLong indicates the name exceeds MaxNameLength characters.
	ErrNameTooLong = domain.ErrNameTooLong
	// ErrInvalidCharacters indicates the name contains characters outside the allowed set.
	ErrInvalidCharacters = domain.ErrInvalidCharacters
)

const (
	msgMissingName       = "Please provide a valid English name"
	msgEmptyName         = "English name cannot be empty"
	msgNameTooLong       = "English name cannot exceed 50 characters"
	msgInvalidCharacters = "English name may only contain letters, spaces, hyphens, and apostrophes"
)

// ValidationError carries the user-facing message for a rejected name.
type ValidationError struct {
	Reason  error
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap exposes the sentinel so callers can match with errors.Is.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Reason
}

func newValidationError(reason error, message string) *ValidationError {
	return &ValidationError{Reason: reason, Message: message}
}

// MissingNameError is returned by callers that could not extract a string name from their input.
func MissingNameError() error {
	return newValidationError(ErrMissingName, msgMissingName)
}

// ValidateName trims raw input and checks it against the accepted name shape.
// Rejections carry the user-facing message.
func ValidateName(raw string) (domain.NameCandidate, error) {
	candidate, err := domain.ParseNameCandidate(raw)
	switch {
	case err == nil:
		return candidate, nil
	case errors.Is(err, ErrEmptyName):
		return domain.NameCandidate{}, newValidationError(ErrEmptyName, msgEmptyName)
	case errors.Is(err, ErrNameTooLong):
		return domain.NameCandidate{}, newValidationError(ErrNameTooLong, msgNameTooLong)
	default:
		return domain.NameCandidate{}, newValidationError(ErrInvalidCharacters, msgInvalidCharacters)
	}
}
