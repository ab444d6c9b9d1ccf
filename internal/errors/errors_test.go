package errors

import (
	stdErrors "errors"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestRateLimitError(t *testing.T) {
	err := NewRateLimitError("slow down")

	if err.Error() != "slow down" {
		t.Fatalf("Error message = %q, want %q", err.Error(), "slow down")
	}

	if !IsRateLimitError(err) {
		t.Fatalf("IsRateLimitError returned false for RateLimitError")
	}

	wrapped := stdErrors.Join(err)
	if !IsRateLimitError(wrapped) {
		t.Fatalf("IsRateLimitError returned false for wrapped RateLimitError")
	}
}

func TestRateLimitErrorWithRetry(t *testing.T) {
	tests := []struct {
		name            string
		duration        time.Duration
		expectedMessage string
	}{
		{name: "zero", duration: 0, expectedMessage: "rate limited"},
		{name: "1 second", duration: time.Second, expectedMessage: "rate limited (retry after 1s)"},
		{name: "2 minutes", duration: 2 * time.Minute, expectedMessage: "rate limited (retry after 2m0s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRateLimitErrorWithRetry("rate limited", tt.duration)
			if err.Error() != tt.expectedMessage {
				t.Fatalf("Error message = %q, want %q", err.Error(), tt.expectedMessage)
			}
			if err.RetryAfter != tt.duration {
				t.Fatalf("RetryAfter = %v, want %v", err.RetryAfter, tt.duration)
			}
		})
	}
}

func TestStopProcessingError(t *testing.T) {
	err := NewStopProcessingError("user stopped")

	if err.Error() != "user stopped" {
		t.Fatalf("Error message = %q, want %q", err.Error(), "user stopped")
	}

	wrapped := fmt.Errorf("browse: %w", err)
	if !IsStopProcessingError(wrapped) {
		t.Fatalf("IsStopProcessingError returned false for wrapped StopProcessingError")
	}
}

func TestIngestErrorKinds(t *testing.T) {
	notFound := NewIngestError(KindSourceNotFound, "/tmp/lib.inpx", os.ErrNotExist)
	storage := fmt.Errorf("load: %w", NewIngestError(KindStorage, "/tmp/lib.inpx", stdErrors.New("disk full")))
	busy := NewIngestError(KindLoadInProgress, "/tmp/lib.inpx", nil)

	if !IsSourceNotFound(notFound) || IsStorageFailure(notFound) {
		t.Fatalf("source-not-found classification wrong for %v", notFound)
	}
	if !stdErrors.Is(notFound, os.ErrNotExist) {
		t.Fatalf("IngestError does not unwrap to its cause")
	}
	if !IsStorageFailure(storage) {
		t.Fatalf("IsStorageFailure returned false for wrapped storage error")
	}
	if !IsLoadInProgress(busy) {
		t.Fatalf("IsLoadInProgress returned false")
	}
	if IsLoadInProgress(stdErrors.New("plain")) {
		t.Fatalf("IsLoadInProgress returned true for plain error")
	}

	want := "ingest /tmp/lib.inpx: load in progress"
	if busy.Error() != want {
		t.Fatalf("Error message = %q, want %q", busy.Error(), want)
	}
}

func TestFetchErrorUserMessages(t *testing.T) {
	tests := []struct {
		kind    FetchKind
		check   func(error) bool
		message string
	}{
		{KindInvalidID, IsInvalidID, `Invalid book id "abc"`},
		{KindNoShardForID, IsNoShardForID, "No archive holds book abc"},
		{KindPayloadNotFound, IsPayloadNotFound, "File for book abc was not found"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := fmt.Errorf("get file: %w", NewFetchError(tt.kind, "abc", nil))
			if !tt.check(err) {
				t.Fatalf("kind check returned false for %v", err)
			}
			fetchErr, ok := AsFetchError(err)
			if !ok {
				t.Fatalf("AsFetchError failed for %v", err)
			}
			if fetchErr.UserMessage() != tt.message {
				t.Fatalf("UserMessage = %q, want %q", fetchErr.UserMessage(), tt.message)
			}
		})
	}
}

func TestRecordError(t *testing.T) {
	err := &RecordError{Line: "a\x04b\x04c", Fields: 3, Err: ErrMalformedRecord}

	if !IsMalformedRecord(err) {
		t.Fatalf("IsMalformedRecord returned false")
	}
	if stdErrors.Is(err, ErrEmptyLibID) {
		t.Fatalf("malformed record matched ErrEmptyLibID")
	}
	if err.Error() != "malformed record (3 fields)" {
		t.Fatalf("Error message = %q", err.Error())
	}
}
