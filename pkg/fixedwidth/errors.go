package fixedwidth

import (
	"errors"
	"fmt"
)

var (
	ErrFieldOverflow        = errors.New("field_overflow")
	ErrInvalidField         = errors.New("invalid_field")
	ErrUnexpectedRecordType = errors.New("unexpected_record_type")
	ErrLineWidth            = errors.New("invalid_line_width")

	ErrInvalidHeader       = errors.New("invalid_header")
	ErrInvalidFooter       = errors.New("invalid_footer")
	ErrRecordCountMismatch = errors.New("record_count_mismatch")
	ErrChecksumMismatch    = errors.New("checksum_mismatch")
)

// EnvelopeErrorKind identifies which envelope invariant a file violated.
type EnvelopeErrorKind int

const (
	InvalidHeader EnvelopeErrorKind = iota + 1
	InvalidFooter
	RecordCountMismatch
	ChecksumMismatch
)

func (k EnvelopeErrorKind) String() string {
	switch k {
	case InvalidHeader:
		return "invalid_header"
	case InvalidFooter:
		return "invalid_footer"
	case RecordCountMismatch:
		return "record_count_mismatch"
	case ChecksumMismatch:
		return "checksum_mismatch"
	default:
		return "unknown"
	}
}

func (k EnvelopeErrorKind) sentinel() error {
	switch k {
	case InvalidHeader:
		return ErrInvalidHeader
	case InvalidFooter:
		return ErrInvalidFooter
	case RecordCountMismatch:
		return ErrRecordCountMismatch
	case ChecksumMismatch:
		return ErrChecksumMismatch
	default:
		return nil
	}
}

// EnvelopeError is fatal for the whole file: no record of the file is accepted.
type EnvelopeError struct {
	Kind     EnvelopeErrorKind
	Spec     string
	Expected string
	Actual   string
}

func (e *EnvelopeError) Error() string {
	return fmt.Sprintf("%s: %s (expected %q, got %q)", e.Spec, e.Kind, e.Expected, e.Actual)
}

func (e *EnvelopeError) Unwrap() error {
	return e.Kind.sentinel()
}

// RecordError reports a single malformed line or field. Callers skip the record
// and continue with the rest of the file.
type RecordError struct {
	Line  int
	Field string
	Value string
	Err   error
}

func (e *RecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: field %s (%q): %v", e.Line, e.Field, e.Value, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// AsRecordError wraps err as a RecordError for the given line unless it already is one.
func AsRecordError(line int, err error) *RecordError {
	if err == nil {
		return nil
	}
	var recErr *RecordError
	if errors.As(err, &recErr) {
		if recErr.Line == 0 {
			recErr.Line = line
		}
		return recErr
	}
	return &RecordError{Line: line, Err: err}
}
