package wire

import (
	"errors"
	"fmt"
)

var (
	ErrUnexpectedEnd   = errors.New("wire: unexpected end of stream")
	ErrInvalidEncoding = errors.New("wire: invalid utf-8 encoding")
	ErrValueTooLarge   = errors.New("wire: value too large")
	ErrSequenceTooLong = errors.New("wire: sequence length exceeds limit")
	ErrUnsupportedType = errors.New("wire: unsupported type")
)

// FieldError reports the struct field whose encode or decode failed.
type FieldError struct {
	Type  string
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("wire: %s.%s: %v", e.Type, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
