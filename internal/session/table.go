// Package session keeps per-caller search results so they can be paged through.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/lepinkainen/librarian/internal/catalog"
)

var (
	// ErrNoSession is returned when the caller has no live search results.
	ErrNoSession = errors.New("no search results for caller")
	// ErrPageOutOfRange is returned for page numbers outside 1..Total.
	ErrPageOutOfRange = errors.New("page out of range")
)

// Page is one page of a caller's search results.
type Page struct {
	Query   string         `json:"query" yaml:"query"`
	Mode    string         `json:"mode" yaml:"mode"`
	Books   []catalog.Book `json:"books" yaml:"books"`
	Number  int            `json:"page" yaml:"page"`
	Total   int            `json:"pages" yaml:"pages"`
	Results int            `json:"results" yaml:"results"`
	HasPrev bool           `json:"has_prev" yaml:"has_prev"`
	HasNext bool           `json:"has_next" yaml:"has_next"`
}

type entry struct {
	query   string
	mode    string
	books   []catalog.Book
	touched time.Time
}

// Table maps caller ids to their most recent search. Entries expire after
// ttl without access. Safe for concurrent use.
type Table struct {
	mu       sync.Mutex
	entries  map[string]*entry
	ttl      time.Duration
	pageSize int
	now      func() time.Time
}

// NewTable creates a table. A nil now uses time.Now.
func NewTable(ttl time.Duration, pageSize int, now func() time.Time) *Table {
	if now == nil {
		now = time.Now
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Table{
		entries:  make(map[string]*entry),
		ttl:      ttl,
		pageSize: pageSize,
		now:      now,
	}
}

// Put replaces the caller's results and returns the first page.
func (t *Table) Put(callerID, query, mode string, books []catalog.Book) Page {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := &entry{query: query, mode: mode, books: books, touched: t.now()}
	t.entries[callerID] = e
	return t.page(e, 1)
}

// Page returns page n (1-based) of the caller's results.
func (t *Table) Page(callerID string, n int) (Page, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[callerID]
	if !ok {
		return Page{}, ErrNoSession
	}
	now := t.now()
	if t.expired(e, now) {
		delete(t.entries, callerID)
		return Page{}, ErrNoSession
	}
	e.touched = now

	if n < 1 || n > t.pages(len(e.books)) {
		return Page{}, ErrPageOutOfRange
	}
	return t.page(e, n), nil
}

// Sweep drops expired entries and returns how many were removed.
func (t *Table) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for id, e := range t.entries {
		if t.expired(e, now) {
			delete(t.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired ones included.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Table) expired(e *entry, now time.Time) bool {
	return t.ttl > 0 && now.Sub(e.touched) > t.ttl
}

// pages is never below 1 so an empty result still has a first page.
func (t *Table) pages(results int) int {
	return max(1, (results+t.pageSize-1)/t.pageSize)
}

func (t *Table) page(e *entry, n int) Page {
	total := t.pages(len(e.books))
	start := min((n-1)*t.pageSize, len(e.books))
	end := min(start+t.pageSize, len(e.books))

	return Page{
		Query:   e.query,
		Mode:    e.mode,
		Books:   e.books[start:end],
		Number:  n,
		Total:   total,
		Results: len(e.books),
		HasPrev: n > 1,
		HasNext: n < total,
	}
}
