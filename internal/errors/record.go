package errors

import (
	stdErrors "errors"
	"fmt"
)

var (
	// ErrMalformedRecord marks a catalog line with too few fields.
	ErrMalformedRecord = stdErrors.New("malformed record")
	// ErrEmptyLibID marks a catalog line whose lib-id field is blank.
	ErrEmptyLibID = stdErrors.New("empty lib id")
)

// RecordError describes a single catalog line that could not be turned into a book.
// It is never fatal to a load.
type RecordError struct {
	Line   string
	Fields int
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%v (%d fields)", e.Err, e.Fields)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// IsMalformedRecord reports whether err marks a line with too few fields.
func IsMalformedRecord(err error) bool {
	return stdErrors.Is(err, ErrMalformedRecord)
}
