// Package catalog holds the book and author records built from an INPX
// collection and the rules for parsing and normalizing them.
package catalog

import "strings"

// AuthorPart is the display projection of an author: the three name parts
// without the book reference. Absent parts are nil, never "".
type AuthorPart struct {
	LastName   *string `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	FirstName  *string `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	MiddleName *string `json:"middle_name,omitempty" yaml:"middle_name,omitempty"`
}

// DisplayName joins the present name parts as "Last First Middle".
func (a AuthorPart) DisplayName() string {
	parts := make([]string, 0, 3)
	for _, p := range []*string{a.LastName, a.FirstName, a.MiddleName} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	return strings.Join(parts, " ")
}

// FoldedNames returns the folded, non-empty name parts of the author.
func (a AuthorPart) FoldedNames() []string {
	names := make([]string, 0, 3)
	for _, p := range []*string{a.FirstName, a.LastName, a.MiddleName} {
		if p != nil && *p != "" {
			names = append(names, Fold(*p))
		}
	}
	return names
}

// Author is one author row of a book. Many authors may reference the same book.
type Author struct {
	BookLibID string `json:"book_lib_id" yaml:"book_lib_id"`
	AuthorPart
}

// Book is a catalog entry keyed by its lib id.
type Book struct {
	LibID           string  `json:"lib_id" yaml:"lib_id"`
	Title           string  `json:"title" yaml:"title"`
	TitleNormalized string  `json:"-" yaml:"-"`
	Series          *string `json:"series,omitempty" yaml:"series,omitempty"`
	SeriesOrder     *int    `json:"series_order,omitempty" yaml:"series_order,omitempty"`
	Language        *string `json:"language,omitempty" yaml:"language,omitempty"`
	Genre           *string `json:"genre,omitempty" yaml:"genre,omitempty"`

	// Authors is filled in by search only; it is never stored with the book.
	Authors []AuthorPart `json:"authors" yaml:"authors"`
}

// NewBook creates a book with its normalized title derived from title.
func NewBook(libID, title string) Book {
	b := Book{LibID: libID}
	b.SetTitle(title)
	return b
}

// SetTitle sets the display title and recomputes TitleNormalized.
func (b *Book) SetTitle(title string) {
	b.Title = title
	b.TitleNormalized = Fold(title)
}

// Fingerprint is the change-detection record of the last ingested bundle.
// Only the byte length is compared, so a different bundle of the same size
// is treated as unchanged.
type Fingerprint struct {
	Size int64
}

// Record is the result of parsing one catalog line.
type Record struct {
	Book    Book
	Authors []Author
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
