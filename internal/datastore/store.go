package datastore

import (
	"context"

	"github.com/lepinkainen/librarian/internal/catalog"
)

// Reader is the read side of the catalog used by search.
type Reader interface {
	// FindAuthorsByAnyName returns authors where any name part, folded,
	// equals one of the given folded names.
	FindAuthorsByAnyName(ctx context.Context, names []string) ([]catalog.Author, error)

	// FindBooksByIDs returns the books with the given lib ids.
	FindBooksByIDs(ctx context.Context, ids []string) ([]catalog.Book, error)

	// FindBooksByTitleTokens returns books whose normalized title contains
	// every token as a substring.
	FindBooksByTitleTokens(ctx context.Context, tokens []string) ([]catalog.Book, error)

	// FindBooksBySeries returns books with a series containing the folded fragment.
	FindBooksBySeries(ctx context.Context, fragment string) ([]catalog.Book, error)

	// AuthorsOf returns every author row of a book.
	AuthorsOf(ctx context.Context, libID string) ([]catalog.AuthorPart, error)

	// CountBooks returns the number of books in the catalog.
	CountBooks(ctx context.Context) (int, error)
}

// Store defines the interface for the local catalog storage
type Store interface {
	Reader

	// Connect establishes a connection to the data store
	Connect() error

	// Fingerprint returns the stored collection fingerprint, or nil if
	// no collection was ever loaded.
	Fingerprint(ctx context.Context) (*catalog.Fingerprint, error)

	// BeginRebuild opens the single transaction a catalog reload runs in.
	// The book and author tables are emptied inside it.
	BeginRebuild(ctx context.Context) (Rebuild, error)

	// EnsureIndexes builds the secondary indexes if they are missing.
	EnsureIndexes(ctx context.Context) error

	// Close closes the connection to the data store
	Close() error
}

// Rebuild is an open catalog reload transaction. Nothing written through it
// is visible to readers until Commit.
type Rebuild interface {
	InsertBook(ctx context.Context, book catalog.Book) error
	InsertAuthors(ctx context.Context, authors []catalog.Author) error
	PutFingerprint(ctx context.Context, fp catalog.Fingerprint) error
	Commit() error
	Rollback() error
}
