package errors

import (
	stdErrors "errors"
	"fmt"
)

// FetchKind classifies archive lookup failures. Each kind maps to its own
// user-facing message.
type FetchKind int

const (
	// KindInvalidID means the requested book id is not numeric.
	KindInvalidID FetchKind = iota + 1
	// KindNoShardForID means no shard range contains the id.
	KindNoShardForID
	// KindPayloadNotFound means the shard was found but has no entry for the id.
	KindPayloadNotFound
)

func (k FetchKind) String() string {
	switch k {
	case KindInvalidID:
		return "invalid book id"
	case KindNoShardForID:
		return "no archive for book id"
	case KindPayloadNotFound:
		return "book file not found in archive"
	default:
		return "fetch failure"
	}
}

// FetchError is returned by the archive resolver.
type FetchError struct {
	Kind   FetchKind
	BookID string
	Shard  string
	Err    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.BookID)
	if e.Shard != "" {
		msg += " in " + e.Shard
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown to an end user for this failure.
func (e *FetchError) UserMessage() string {
	switch e.Kind {
	case KindInvalidID:
		return fmt.Sprintf("Invalid book id %q", e.BookID)
	case KindNoShardForID:
		return fmt.Sprintf("No archive holds book %s", e.BookID)
	case KindPayloadNotFound:
		return fmt.Sprintf("File for book %s was not found", e.BookID)
	default:
		return "Could not fetch the book file"
	}
}

// NewFetchError creates a FetchError for bookID.
func NewFetchError(kind FetchKind, bookID string, err error) *FetchError {
	return &FetchError{Kind: kind, BookID: bookID, Err: err}
}

// AsFetchError extracts a FetchError from err, even when wrapped.
func AsFetchError(err error) (*FetchError, bool) {
	var fetchErr *FetchError
	if stdErrors.As(err, &fetchErr) {
		return fetchErr, true
	}
	return nil, false
}

func isFetchKind(err error, kind FetchKind) bool {
	fetchErr, ok := AsFetchError(err)
	return ok && fetchErr.Kind == kind
}

// IsInvalidID reports whether err is a FetchError for a non-numeric id.
func IsInvalidID(err error) bool { return isFetchKind(err, KindInvalidID) }

// IsNoShardForID reports whether err is a FetchError for an id outside every shard.
func IsNoShardForID(err error) bool { return isFetchKind(err, KindNoShardForID) }

// IsPayloadNotFound reports whether err is a FetchError for a missing shard entry.
func IsPayloadNotFound(err error) bool { return isFetchKind(err, KindPayloadNotFound) }
