package emv

import (
	"errors"
	"fmt"
)

// ErrMalformedField is returned when a buffer is too short or ill-formed for
// the EMV data object being parsed. It is always caller-visible; the codec
// never repairs input.
var ErrMalformedField = errors.New("malformed field")

// ErrUnsupportedDialect is returned for a kernel dialect name other than
// "mastercard" or "visa".
var ErrUnsupportedDialect = errors.New("unsupported dialect")

// FieldError describes which field failed to parse and why.
// It matches ErrMalformedField with errors.Is.
type FieldError struct {
	Field string // e.g. "AIP", "AFL", "TC"
	Need  int    // minimum length in bytes, 0 when the problem is not a length
	Got   int
	Err   error // underlying decode error, if any
}

func (e *FieldError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", ErrMalformedField, e.Field, e.Err)
	case e.Need > 0:
		return fmt.Sprintf("%s: %s needs at least %d bytes, got %d", ErrMalformedField, e.Field, e.Need, e.Got)
	default:
		return fmt.Sprintf("%s: %s", ErrMalformedField, e.Field)
	}
}

func (e *FieldError) Is(target error) bool {
	return target == ErrMalformedField
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func tooShort(field string, need, got int) error {
	return &FieldError{Field: field, Need: need, Got: got}
}
