// Package library wires the catalog store, ingestion, search and archive
// lookups into the operations exposed to users.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/librarian/internal/archive"
	"github.com/lepinkainen/librarian/internal/catalog"
	"github.com/lepinkainen/librarian/internal/config"
	"github.com/lepinkainen/librarian/internal/datastore"
	apperrors "github.com/lepinkainen/librarian/internal/errors"
	"github.com/lepinkainen/librarian/internal/ingest"
	"github.com/lepinkainen/librarian/internal/search"
)

// Service is the consumer-facing facade over one collection. It owns a
// single long-lived database handle and is safe for concurrent use.
type Service struct {
	cfg      config.CatalogConfig
	store    *datastore.SQLiteStore
	loader   *ingest.Loader
	engine   *search.Engine
	resolver *archive.Resolver
}

// Open connects to the catalog database described by cfg.
func Open(cfg config.CatalogConfig) (*Service, error) {
	store := datastore.NewSQLiteStore(cfg.DBPath)
	if err := store.Connect(); err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", cfg.DBPath, err)
	}

	return &Service{
		cfg:      cfg,
		store:    store,
		loader:   ingest.NewLoader(store, ingest.Options{RecordExt: cfg.RecordExt}),
		engine:   search.New(store),
		resolver: archive.NewResolver(cfg.ArchivesDir, archive.WithPayloadExt(cfg.PayloadExt)),
	}, nil
}

// Close releases the database handle.
func (s *Service) Close() error {
	return s.store.Close()
}

// LoadCollection loads the configured bundle unless it is already loaded.
// Failures are logged and returned; a failed load leaves the previous catalog in place.
func (s *Service) LoadCollection(ctx context.Context) (ingest.Stats, error) {
	return s.logLoad(s.loader.Load(ctx, s.cfg.InpxPath))
}

// ReloadCollection loads the configured bundle even if it is unchanged.
func (s *Service) ReloadCollection(ctx context.Context) (ingest.Stats, error) {
	return s.logLoad(s.loader.Reload(ctx, s.cfg.InpxPath))
}

func (s *Service) logLoad(stats ingest.Stats, err error) (ingest.Stats, error) {
	switch {
	case err == nil:
	case apperrors.IsLoadInProgress(err):
		slog.Warn("Collection load already running", "path", s.cfg.InpxPath)
	default:
		slog.Error("Collection load failed", "path", s.cfg.InpxPath, "error", err)
	}
	return stats, err
}

// SearchBooksByAuthor finds books by author name tokens.
func (s *Service) SearchBooksByAuthor(ctx context.Context, name string) ([]catalog.Book, error) {
	return s.Search(ctx, search.ModeAuthor, name)
}

// SearchBooksByTitle finds books by whole title words.
func (s *Service) SearchBooksByTitle(ctx context.Context, title string) ([]catalog.Book, error) {
	return s.Search(ctx, search.ModeTitle, title)
}

// SearchBooksBySeries finds books by a series name fragment.
func (s *Service) SearchBooksBySeries(ctx context.Context, series string) ([]catalog.Book, error) {
	return s.Search(ctx, search.ModeSeries, series)
}

// Search runs query in the given mode.
func (s *Service) Search(ctx context.Context, mode search.Mode, query string) ([]catalog.Book, error) {
	books, err := s.engine.Search(ctx, mode, query)
	if err != nil {
		return nil, fmt.Errorf("searching by %s: %w", mode, err)
	}
	slog.Debug("Search finished", "mode", mode, "query", query, "results", len(books))
	return books, nil
}

// GetBookFile returns the payload of the book with the given id.
// Errors are *errors.FetchError values carrying a user-facing message.
func (s *Service) GetBookFile(ctx context.Context, id string) ([]byte, error) {
	data, err := s.resolver.FetchBookPayload(ctx, id)
	if err != nil {
		if fe, ok := apperrors.AsFetchError(err); ok {
			slog.Info("Book file unavailable", "id", id, "reason", fe.Kind)
		}
		return nil, err
	}
	return data, nil
}

// Shards lists the archive shards of the collection.
func (s *Service) Shards() ([]archive.Shard, error) {
	return s.resolver.Shards()
}

// CountBooks returns the number of books in the catalog.
func (s *Service) CountBooks(ctx context.Context) (int, error) {
	return s.store.CountBooks(ctx)
}

// Loaded reports whether a collection has ever been loaded into the catalog.
func (s *Service) Loaded(ctx context.Context) (bool, error) {
	fp, err := s.store.Fingerprint(ctx)
	if err != nil {
		return false, err
	}
	return fp != nil, nil
}

// PayloadExt is the extension of book files handed out by GetBookFile.
func (s *Service) PayloadExt() string {
	if s.cfg.PayloadExt == "" {
		return "fb2"
	}
	return s.cfg.PayloadExt
}

// ErrNotLoaded is returned by EnsureLoaded when the bundle is missing and
// nothing was loaded before.
var ErrNotLoaded = errors.New("collection has not been loaded")

// EnsureLoaded loads the collection and tolerates a missing bundle as long
// as an earlier load populated the catalog.
func (s *Service) EnsureLoaded(ctx context.Context) error {
	_, err := s.LoadCollection(ctx)
	if err == nil || !apperrors.IsSourceNotFound(err) {
		return err
	}
	loaded, ferr := s.Loaded(ctx)
	if ferr != nil {
		return errors.Join(err, ferr)
	}
	if !loaded {
		return errors.Join(ErrNotLoaded, err)
	}
	return nil
}
