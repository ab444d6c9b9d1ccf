// Package ingest rebuilds the catalog store from an INPX bundle.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lepinkainen/librarian/internal/catalog"
	"github.com/lepinkainen/librarian/internal/datastore"
	apperrors "github.com/lepinkainen/librarian/internal/errors"
)

// DefaultRecordExt is the extension of catalog entries inside a bundle.
const DefaultRecordExt = ".inp"

// Options configures a Loader.
type Options struct {
	// RecordExt selects the bundle entries that hold catalog lines.
	RecordExt string
	// Force rebuilds even when the bundle fingerprint is unchanged.
	Force bool
}

// Stats summarizes a load.
type Stats struct {
	Skipped    bool          `json:"skipped" yaml:"skipped"`
	Entries    int           `json:"entries" yaml:"entries"`
	Books      int           `json:"books" yaml:"books"`
	Authors    int           `json:"authors" yaml:"authors"`
	Duplicates int           `json:"duplicates" yaml:"duplicates"`
	Malformed  int           `json:"malformed" yaml:"malformed"`
	EmptyIDs   int           `json:"empty_ids" yaml:"empty_ids"`
	Elapsed    time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Loader replaces the catalog with the contents of a bundle.
// Only one load runs at a time; concurrent calls are rejected.
type Loader struct {
	store datastore.Store
	opts  Options
	mu    sync.Mutex
}

// NewLoader creates a loader writing into store.
func NewLoader(store datastore.Store, opts Options) *Loader {
	if opts.RecordExt == "" {
		opts.RecordExt = DefaultRecordExt
	}
	return &Loader{store: store, opts: opts}
}

// Load rebuilds the catalog from the bundle at path unless the stored
// fingerprint shows the same bundle was already loaded.
//
// On any failure the rebuild is rolled back and the previous catalog stays
// in place. The returned error is an *errors.IngestError.
func (l *Loader) Load(ctx context.Context, path string) (Stats, error) {
	return l.load(ctx, path, l.opts.Force)
}

// Reload rebuilds the catalog from the bundle at path regardless of its fingerprint.
func (l *Loader) Reload(ctx context.Context, path string) (Stats, error) {
	return l.load(ctx, path, true)
}

func (l *Loader) load(ctx context.Context, path string, force bool) (Stats, error) {
	if !l.mu.TryLock() {
		return Stats{}, apperrors.NewIngestError(apperrors.KindLoadInProgress, path, nil)
	}
	defer l.mu.Unlock()

	start := time.Now()

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Error("Collection bundle not found", "path", path)
			return Stats{}, apperrors.NewIngestError(apperrors.KindSourceNotFound, path, err)
		}
		return Stats{}, apperrors.NewIngestError(apperrors.KindUnexpected, path, err)
	}

	if !force {
		fp, err := l.store.Fingerprint(ctx)
		if err != nil {
			return Stats{}, apperrors.NewIngestError(apperrors.KindStorage, path, err)
		}
		if fp != nil && fp.Size == info.Size() {
			slog.Info("Collection unchanged, skipping load", "path", path, "size", info.Size())
			return Stats{Skipped: true, Elapsed: time.Since(start)}, nil
		}
	}

	slog.Info("Loading collection", "path", path, "size", info.Size())

	stats, err := l.rebuild(ctx, path, catalog.Fingerprint{Size: info.Size()})
	stats.Elapsed = time.Since(start)
	if err != nil {
		slog.Error("Collection load failed, previous catalog kept", "path", path, "error", err)
		return stats, err
	}

	if err := l.store.EnsureIndexes(ctx); err != nil {
		return stats, apperrors.NewIngestError(apperrors.KindStorage, path, err)
	}

	slog.Info("Collection loaded",
		"books", stats.Books,
		"authors", stats.Authors,
		"duplicates", stats.Duplicates,
		"malformed", stats.Malformed,
		"elapsed", stats.Elapsed.Round(time.Millisecond))

	return stats, nil
}

// storageError marks failures coming from the store so they can be told
// apart from bundle read failures after the walk returns.
type storageError struct{ err error }

func (e storageError) Error() string { return e.err.Error() }
func (e storageError) Unwrap() error { return e.err }

func (l *Loader) rebuild(ctx context.Context, path string, fp catalog.Fingerprint) (Stats, error) {
	var stats Stats

	rb, err := l.store.BeginRebuild(ctx)
	if err != nil {
		return stats, apperrors.NewIngestError(apperrors.KindStorage, path, err)
	}

	seen := make(map[string]struct{})
	entries, err := walkBundle(ctx, path, l.opts.RecordExt, func(entry string, lineNo int, line string) error {
		rec, err := catalog.ParseRecord(line)
		if err != nil {
			if errors.Is(err, apperrors.ErrEmptyLibID) {
				stats.EmptyIDs++
				return nil
			}
			stats.Malformed++
			slog.Warn("Skipping malformed catalog line", "entry", entry, "line", lineNo, "error", err)
			return nil
		}

		if _, dup := seen[rec.Book.LibID]; dup {
			stats.Duplicates++
			return nil
		}
		seen[rec.Book.LibID] = struct{}{}

		if err := rb.InsertBook(ctx, rec.Book); err != nil {
			return storageError{err}
		}
		if err := rb.InsertAuthors(ctx, rec.Authors); err != nil {
			return storageError{err}
		}
		stats.Books++
		stats.Authors += len(rec.Authors)
		return nil
	})
	stats.Entries = entries

	if err == nil {
		if err = rb.PutFingerprint(ctx, fp); err == nil {
			err = rb.Commit()
		}
		if err != nil {
			err = storageError{err}
		}
	}
	if err == nil {
		return stats, nil
	}

	if rbErr := rb.Rollback(); rbErr != nil {
		err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
	}

	kind := apperrors.KindUnexpected
	var se storageError
	if errors.As(err, &se) {
		kind = apperrors.KindStorage
	}
	return stats, apperrors.NewIngestError(kind, path, err)
}
