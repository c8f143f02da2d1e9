package searchindex

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFormat matches every FormatError via errors.Is.
var ErrFormat = errors.New("malformed search index payload")

// FormatError reports a payload that does not parse into a sequence of page records.
type FormatError struct {
	// Reason is a human-readable description of the problem.
	Reason string
	// Record is the zero-based position of the offending record, or -1.
	Record int
	// Field is the offending record field, if known.
	Field string
	// Err is the underlying decode or validation error, if any.
	Err error
}

func newFormatError(reason string, err error) *FormatError {
	return &FormatError{Reason: reason, Record: -1, Err: err}
}

func (e *FormatError) Error() string {
	var sb strings.Builder
	sb.WriteString(ErrFormat.Error())
	if e.Record >= 0 {
		fmt.Fprintf(&sb, ": record %d", e.Record)
		if e.Field != "" {
			fmt.Fprintf(&sb, " field %q", e.Field)
		}
	}
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}
