package errors

import (
	stdErrors "errors"
	"fmt"
)

// IngestKind classifies why a catalog load failed.
type IngestKind int

const (
	// KindUnexpected covers failures that are neither missing input nor storage.
	KindUnexpected IngestKind = iota
	// KindSourceNotFound means the configured INPX bundle does not exist.
	KindSourceNotFound
	// KindStorage means the catalog store failed; the rebuild was rolled back.
	KindStorage
	// KindLoadInProgress means another load already holds the rebuild transaction.
	KindLoadInProgress
)

func (k IngestKind) String() string {
	switch k {
	case KindSourceNotFound:
		return "source not found"
	case KindStorage:
		return "storage failure"
	case KindLoadInProgress:
		return "load in progress"
	default:
		return "unexpected failure"
	}
}

// IngestError is returned by the ingestion pipeline instead of being swallowed,
// so callers can tell an empty catalog from a loaded one.
type IngestError struct {
	Kind IngestKind
	Path string
	Err  error
}

func (e *IngestError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ingest %s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("ingest %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// NewIngestError wraps err with the given kind and bundle path.
func NewIngestError(kind IngestKind, path string, err error) *IngestError {
	return &IngestError{Kind: kind, Path: path, Err: err}
}

func ingestKind(err error) (IngestKind, bool) {
	var ingestErr *IngestError
	if stdErrors.As(err, &ingestErr) {
		return ingestErr.Kind, true
	}
	return KindUnexpected, false
}

// IsSourceNotFound reports whether err is an IngestError for a missing bundle.
func IsSourceNotFound(err error) bool {
	kind, ok := ingestKind(err)
	return ok && kind == KindSourceNotFound
}

// IsStorageFailure reports whether err is an IngestError raised by the store.
func IsStorageFailure(err error) bool {
	kind, ok := ingestKind(err)
	return ok && kind == KindStorage
}

// IsLoadInProgress reports whether err was caused by a concurrent load.
func IsLoadInProgress(err error) bool {
	kind, ok := ingestKind(err)
	return ok && kind == KindLoadInProgress
}
