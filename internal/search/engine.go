// Package search answers author, title and series queries against the catalog.
package search

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/lepinkainen/librarian/internal/catalog"
	"github.com/lepinkainen/librarian/internal/datastore"
)

// Mode selects which catalog field a query runs against.
type Mode string

const (
	ModeAuthor Mode = "author"
	ModeTitle  Mode = "title"
	ModeSeries Mode = "series"
)

// ParseMode converts user input into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAuthor, ModeTitle, ModeSeries:
		return m, nil
	default:
		return "", fmt.Errorf("unknown search mode %q (want author, title or series)", s)
	}
}

// Engine runs read-only queries. It holds no state of its own and is safe
// for concurrent use.
type Engine struct {
	store datastore.Reader
}

// New creates an engine reading from store.
func New(store datastore.Reader) *Engine {
	return &Engine{store: store}
}

// Search dispatches query to the search for mode.
func (e *Engine) Search(ctx context.Context, mode Mode, query string) ([]catalog.Book, error) {
	switch mode {
	case ModeAuthor:
		return e.ByAuthor(ctx, query)
	case ModeTitle:
		return e.ByTitle(ctx, query)
	case ModeSeries:
		return e.BySeries(ctx, query)
	default:
		return nil, fmt.Errorf("unknown search mode %q", mode)
	}
}

// ByAuthor returns books having at least one author whose own name parts
// contain every query token. Token order does not matter.
func (e *Engine) ByAuthor(ctx context.Context, query string) ([]catalog.Book, error) {
	tokens := catalog.QueryTokens(query)
	if len(tokens) == 0 {
		return []catalog.Book{}, nil
	}

	candidates, err := e.store.FindAuthorsByAnyName(ctx, tokens)
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := make(map[string]struct{})
	for _, a := range candidates {
		if _, ok := seen[a.BookLibID]; ok {
			continue
		}
		if !containsAll(a.FoldedNames(), tokens) {
			continue
		}
		seen[a.BookLibID] = struct{}{}
		ids = append(ids, a.BookLibID)
	}
	if len(ids) == 0 {
		return []catalog.Book{}, nil
	}

	books, err := e.store.FindBooksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return e.withAuthors(ctx, books)
}

// ByTitle returns books whose title contains every query token as a whole word.
func (e *Engine) ByTitle(ctx context.Context, query string) ([]catalog.Book, error) {
	tokens := catalog.QueryTokens(query)
	if len(tokens) == 0 {
		return []catalog.Book{}, nil
	}

	candidates, err := e.store.FindBooksByTitleTokens(ctx, tokens)
	if err != nil {
		return nil, err
	}

	books := make([]catalog.Book, 0, len(candidates))
	for _, b := range candidates {
		if containsAll(catalog.TitleWords(b.TitleNormalized), tokens) {
			books = append(books, b)
		}
	}
	return e.withAuthors(ctx, books)
}

// BySeries returns books whose series name contains the query as a
// substring. The query is not split into words.
func (e *Engine) BySeries(ctx context.Context, query string) ([]catalog.Book, error) {
	fragment := strings.TrimSpace(catalog.Fold(query))
	if fragment == "" {
		return []catalog.Book{}, nil
	}

	books, err := e.store.FindBooksBySeries(ctx, fragment)
	if err != nil {
		return nil, err
	}
	return e.withAuthors(ctx, books)
}

func (e *Engine) withAuthors(ctx context.Context, books []catalog.Book) ([]catalog.Book, error) {
	for i := range books {
		authors, err := e.store.AuthorsOf(ctx, books[i].LibID)
		if err != nil {
			return nil, err
		}
		books[i].Authors = authors
	}
	if books == nil {
		books = []catalog.Book{}
	}
	return books, nil
}

func containsAll(words, tokens []string) bool {
	for _, tok := range tokens {
		if !slices.Contains(words, tok) {
			return false
		}
	}
	return true
}
