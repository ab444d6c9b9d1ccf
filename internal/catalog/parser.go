package catalog

import (
	"strconv"
	"strings"

	apperrors "github.com/lepinkainen/librarian/internal/errors"
)

// INPX field layout.
const (
	FieldSeparator  = "\x04"
	authorSeparator = ":"
	namePartSep     = ","

	fieldAuthors     = 0
	fieldGenre       = 1
	fieldTitle       = 2
	fieldSeries      = 3
	fieldLibID       = 5
	fieldSeriesOrder = 10
	fieldLanguage    = 12

	// MinFields is the number of fields a line needs to be usable.
	MinFields = 7
)

// ParseRecord decodes one INPX line into a book and its authors.
//
// Lines with fewer than MinFields fields return a *RecordError wrapping
// ErrMalformedRecord; a blank lib id returns one wrapping ErrEmptyLibID.
// Both are meant to be skipped by the caller.
func ParseRecord(line string) (Record, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, FieldSeparator)
	if len(fields) < MinFields {
		return Record{}, &apperrors.RecordError{Line: line, Fields: len(fields), Err: apperrors.ErrMalformedRecord}
	}

	libID := strings.Trim(strings.TrimSpace(fields[fieldLibID]), `"`)
	libID = strings.TrimSpace(libID)
	if libID == "" {
		return Record{}, &apperrors.RecordError{Line: line, Fields: len(fields), Err: apperrors.ErrEmptyLibID}
	}

	book := NewBook(libID, fields[fieldTitle])
	book.Genre = optional(fields[fieldGenre])
	book.Series = optional(fields[fieldSeries])
	book.SeriesOrder = parseOrder(fieldAt(fields, fieldSeriesOrder))
	book.Language = optional(fieldAt(fields, fieldLanguage))

	return Record{Book: book, Authors: parseAuthors(libID, fields[fieldAuthors])}, nil
}

func fieldAt(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

func parseOrder(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}

// parseAuthors splits "Last,First,Middle:Last,First,Middle:" into authors.
// Groups with no name parts at all (the trailing ":" INPX writes) are dropped.
func parseAuthors(libID, field string) []Author {
	var authors []Author
	for _, group := range strings.Split(field, authorSeparator) {
		parts := strings.Split(group, namePartSep)
		a := Author{BookLibID: libID}
		a.LastName = optional(fieldAt(parts, 0))
		a.FirstName = optional(fieldAt(parts, 1))
		a.MiddleName = optional(fieldAt(parts, 2))
		if a.LastName == nil && a.FirstName == nil && a.MiddleName == nil {
			continue
		}
		authors = append(authors, a)
	}
	return authors
}
