package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/librarian/internal/catalog"
	apperrors "github.com/lepinkainen/librarian/internal/errors"
	"github.com/lepinkainen/librarian/internal/fileutil"
	"github.com/lepinkainen/librarian/internal/library"
	"github.com/lepinkainen/librarian/internal/listing"
	"github.com/lepinkainen/librarian/internal/ratelimit"
	"github.com/lepinkainen/librarian/internal/search"
	"github.com/lepinkainen/librarian/internal/server"
	"github.com/lepinkainen/librarian/internal/session"
	"github.com/lepinkainen/librarian/internal/tui"
)

// LoadCmd represents the load command
type LoadCmd struct {
	Force bool `short:"f" help:"Reload even if the bundle looks unchanged"`
}

// SearchCmd represents the search command
type SearchCmd struct {
	Mode        string   `arg:"" enum:"author,title,series" help:"What to search: author, title or series"`
	Query       []string `arg:"" help:"Search words"`
	Format      string   `help:"Output format" enum:"text,json,yaml" default:"text"`
	Page        int      `short:"p" help:"Page of results to show" default:"1"`
	Interactive bool     `short:"i" help:"Browse results and download the selected book"`
	Out         string   `short:"o" help:"Directory for downloaded books" default:"."`
}

// GetCmd represents the get command
type GetCmd struct {
	ID        string `arg:"" help:"Book id"`
	Out       string `short:"o" help:"Directory to write the book file to" default:"."`
	Overwrite bool   `help:"Overwrite an existing file"`
}

// ShardsCmd represents the shards command
type ShardsCmd struct {
	Format string `help:"Output format" enum:"text,json,yaml" default:"text"`
}

// ServeCmd represents the serve command
type ServeCmd struct {
	Addr string `help:"Listen address (default from config)"`
}

func (l *LoadCmd) Run(app *App) error {
	svc, err := app.open(false)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	load := svc.LoadCollection
	if l.Force {
		load = svc.ReloadCollection
	}
	stats, err := load(app.Ctx)
	if err != nil {
		return err
	}

	if stats.Skipped {
		_, err = fmt.Fprintln(app.Out, "Collection unchanged, nothing to load.")
		return err
	}
	_, err = fmt.Fprintf(app.Out, "Loaded %d books (%d authors) in %s; skipped %d duplicates, %d malformed lines, %d without id.\n",
		stats.Books, stats.Authors, stats.Elapsed.Round(time.Millisecond), stats.Duplicates, stats.Malformed, stats.EmptyIDs)
	return err
}

func (s *SearchCmd) Run(app *App) error {
	mode, err := search.ParseMode(s.Mode)
	if err != nil {
		return err
	}
	query := strings.Join(s.Query, " ")

	svc, err := app.open(true)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	books, err := svc.Search(app.Ctx, mode, query)
	if err != nil {
		return err
	}

	if s.Interactive {
		return s.browse(app, svc, query, books)
	}

	pageSize := app.Config.Session.PageSize
	table := session.NewTable(0, pageSize, nil)
	page := table.Put("cli", query, string(mode), books)
	if s.Page != 1 {
		total := page.Total
		if page, err = table.Page("cli", s.Page); err != nil {
			return fmt.Errorf("page %d of %d: %w", s.Page, total, err)
		}
	}

	return listing.Write(app.Out, listing.Format(s.Format), page, pageSize)
}

func (s *SearchCmd) browse(app *App, svc *library.Service, query string, books []catalog.Book) error {
	result, err := browseBooks(query, books)
	if err != nil {
		return err
	}
	if result.Action != tui.ActionSelected || result.Selection == nil {
		_, err = fmt.Fprintln(app.Out, "Nothing selected.")
		return err
	}
	return saveBook(app, svc, result.Selection.LibID, s.Out, false)
}

func (g *GetCmd) Run(app *App) error {
	svc, err := app.open(true)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	return saveBook(app, svc, g.ID, g.Out, g.Overwrite)
}

func saveBook(app *App, svc *library.Service, id, dir string, overwrite bool) error {
	data, err := svc.GetBookFile(app.Ctx, id)
	if err != nil {
		if fe, ok := apperrors.AsFetchError(err); ok {
			return fmt.Errorf("%s: %w", fe.UserMessage(), err)
		}
		return err
	}

	path := fileutil.BookFilePath(dir, id, svc.PayloadExt())
	written, err := fileutil.WriteFileWithOverwrite(path, data, 0644, overwrite)
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	if !written {
		_, err = fmt.Fprintf(app.Out, "%s already exists, use --overwrite to replace it.\n", path)
		return err
	}

	slog.Info("Saved book", "id", id, "path", path, "bytes", len(data))
	_, err = fmt.Fprintln(app.Out, path)
	return err
}

func (s *ShardsCmd) Run(app *App) error {
	svc, err := app.open(false)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	shards, err := svc.Shards()
	if err != nil {
		return err
	}

	switch listing.Format(s.Format) {
	case listing.FormatJSON:
		enc := json.NewEncoder(app.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(shards)
	case listing.FormatYAML:
		return yaml.NewEncoder(app.Out).Encode(shards)
	}

	tw := tabwriter.NewWriter(app.Out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SHARD\tFIRST\tLAST")
	for _, sh := range shards {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\n", sh.Name, sh.Start, sh.End)
	}
	return tw.Flush()
}

func (s *ServeCmd) Run(app *App) error {
	svc, err := app.open(false)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	if !app.NoLoad {
		if _, err := svc.LoadCollection(app.Ctx); err != nil {
			slog.Warn("Serving without a fresh collection load", "error", err)
		}
	}

	cfg := app.Config
	handler := server.NewHandler(
		svc,
		session.NewTable(cfg.Session.TTL, cfg.Session.PageSize, nil),
		ratelimit.NewKeyed("downloads", cfg.Server.DownloadRPS, cfg.Server.DownloadBurst),
		cfg.Session.PageSize,
	)
	return server.New(cfg.Server.Addr, handler).Run(app.Ctx)
}
