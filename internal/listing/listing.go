// Package listing renders search results for people and for machines.
package listing

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/librarian/internal/catalog"
	"github.com/lepinkainen/librarian/internal/session"
)

// Format selects how results are written.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DownloadPrefix starts the command that fetches a listed book.
const DownloadPrefix = "/download@"

// Authors joins the display names of a book's authors with "; ".
func Authors(parts []catalog.AuthorPart) string {
	names := make([]string, 0, len(parts))
	for _, a := range parts {
		if name := a.DisplayName(); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, "; ")
}

// Entry renders one numbered book:
//
//	3. Title - ru
//	Series: Name (Book 2)
//	Authors: Last First; Last First
//	Download: /download@123
func Entry(n int, b catalog.Book) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%d. %s", n, b.Title)
	if b.Language != nil && *b.Language != "" {
		sb.WriteString(" - " + *b.Language)
	}
	sb.WriteString("\n")

	if b.Series != nil && *b.Series != "" {
		sb.WriteString("Series: " + *b.Series)
		if b.SeriesOrder != nil {
			fmt.Fprintf(&sb, " (Book %d)", *b.SeriesOrder)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Authors: " + Authors(b.Authors) + "\n")
	sb.WriteString("Download: " + DownloadPrefix + b.LibID + "\n")
	return sb.String()
}

// Text renders a page of results, numbering entries across pages and
// ending with a page footer.
func Text(p session.Page, pageSize int) string {
	if p.Results == 0 {
		return "No books found.\n"
	}

	offset := (p.Number - 1) * pageSize
	entries := make([]string, 0, len(p.Books))
	for i, b := range p.Books {
		entries = append(entries, Entry(offset+i+1, b))
	}

	return strings.Join(entries, "\n") + fmt.Sprintf("\nPage %d of %d\n", p.Number, p.Total)
}

// Write encodes a page to w in the requested format.
func Write(w io.Writer, format Format, p session.Page, pageSize int) error {
	switch format {
	case FormatText, "":
		_, err := io.WriteString(w, Text(p, pageSize))
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
