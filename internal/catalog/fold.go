package catalog

import (
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// A cases.Caser keeps state between calls and must not be shared across
// goroutines, so searches running in parallel each borrow their own.
var casers = sync.Pool{
	New: func() any {
		c := cases.Lower(language.Und)
		return &c
	},
}

// Fold lower-cases s with the locale-independent rule used for every
// stored normalized column and every query comparison.
func Fold(s string) string {
	c := casers.Get().(*cases.Caser)
	defer casers.Put(c)
	return c.String(s)
}

// QueryTokens folds query and splits it on whitespace, dropping empty tokens.
func QueryTokens(query string) []string {
	return strings.Fields(Fold(query))
}

// titleSeparators are the characters that end a word inside a title.
const titleSeparators = " ,.!?;:-—«»()"

// TitleWords splits a normalized title into whole words.
func TitleWords(normalized string) []string {
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return strings.ContainsRune(titleSeparators, r)
	})
}
