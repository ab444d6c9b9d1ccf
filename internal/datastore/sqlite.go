package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/lepinkainen/librarian/internal/catalog"
	_ "modernc.org/sqlite"
)

const (
	// maxQueryArgs keeps IN lists well below SQLite's bound-variable limit.
	maxQueryArgs = 500

	bookColumns   = "lib_id, title, title_normalized, series, series_order, language, genre"
	authorColumns = "book_lib_id, first_name, last_name, middle_name"

	insertBookSQL = `INSERT INTO books (lib_id, title, title_normalized, series, series_normalized, series_order, language, genre)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	insertAuthorSQL = `INSERT INTO authors (book_lib_id, first_name, last_name, middle_name,
		first_name_normalized, last_name_normalized, middle_name_normalized)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
)

// SQLiteStore implements the Store interface for local SQLite storage
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLiteStore instance
func NewSQLiteStore(dbPath string) *SQLiteStore {
	return &SQLiteStore{
		dbPath: dbPath,
	}
}

// dsn adds the pragmas the store relies on: WAL so searches keep reading
// while a load writes, and a busy timeout instead of immediate SQLITE_BUSY.
func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Connect opens the SQLite database and makes sure the catalog tables exist
func (s *SQLiteStore) Connect() error {
	db, err := sql.Open("sqlite", dsn(s.dbPath))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		closeErr := db.Close()
		return errors.Join(fmt.Errorf("failed to connect to database: %w", err), closeErr)
	}

	for _, schema := range AllSchemas {
		if _, err := db.Exec(schema); err != nil {
			closeErr := db.Close()
			return errors.Join(fmt.Errorf("failed to create table: %w", err), closeErr)
		}
	}

	s.db = db
	return nil
}

// EnsureIndexes builds the secondary indexes if they are missing
func (s *SQLiteStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, IndexSchema); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Fingerprint returns the stored collection fingerprint, or nil if none exists
func (s *SQLiteStore) Fingerprint(ctx context.Context) (*catalog.Fingerprint, error) {
	var fp catalog.Fingerprint
	err := s.db.QueryRowContext(ctx, "SELECT size FROM collection_meta WHERE id = 1").Scan(&fp.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection fingerprint: %w", err)
	}
	return &fp, nil
}

// BeginRebuild starts the reload transaction and empties the catalog tables
// inside it, so a rollback restores the previous catalog.
func (s *SQLiteStore) BeginRebuild(ctx context.Context) (Rebuild, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	r := &sqliteRebuild{tx: tx}
	if err := r.prepare(ctx); err != nil {
		return nil, errors.Join(err, r.Rollback())
	}
	return r, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CountBooks returns the number of books in the catalog
func (s *SQLiteStore) CountBooks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM books").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return n, nil
}

// FindAuthorsByAnyName returns authors with any folded name part in names
func (s *SQLiteStore) FindAuthorsByAnyName(ctx context.Context, names []string) ([]catalog.Author, error) {
	names = uniqueStrings(names)
	if len(names) == 0 {
		return nil, nil
	}

	// Each name is bound once per name column.
	chunkSize := maxQueryArgs / 3
	byRow := make(map[int64]catalog.Author)
	for start := 0; start < len(names); start += chunkSize {
		end := min(start+chunkSize, len(names))
		if err := s.collectAuthors(ctx, names[start:end], byRow); err != nil {
			return nil, err
		}
	}

	rowIDs := make([]int64, 0, len(byRow))
	for id := range byRow {
		rowIDs = append(rowIDs, id)
	}
	slices.Sort(rowIDs)

	authors := make([]catalog.Author, 0, len(rowIDs))
	for _, id := range rowIDs {
		authors = append(authors, byRow[id])
	}
	return authors, nil
}

func (s *SQLiteStore) collectAuthors(ctx context.Context, names []string, byRow map[int64]catalog.Author) error {
	in := placeholders(len(names))
	query := fmt.Sprintf(
		"SELECT rowid, %s FROM authors WHERE first_name_normalized IN (%s) OR last_name_normalized IN (%s) OR middle_name_normalized IN (%s)",
		authorColumns, in, in, in,
	)
	args := make([]any, 0, 3*len(names))
	for range 3 {
		for _, n := range names {
			args = append(args, n)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query authors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var rowID int64
		var a catalog.Author
		var first, last, middle sql.NullString
		if err := rows.Scan(&rowID, &a.BookLibID, &first, &last, &middle); err != nil {
			return fmt.Errorf("failed to scan author: %w", err)
		}
		a.FirstName, a.LastName, a.MiddleName = fromNull(first), fromNull(last), fromNull(middle)
		byRow[rowID] = a
	}
	return rows.Err()
}

// FindBooksByIDs returns the books with the given lib ids
func (s *SQLiteStore) FindBooksByIDs(ctx context.Context, ids []string) ([]catalog.Book, error) {
	var books []catalog.Book
	for start := 0; start < len(ids); start += maxQueryArgs {
		end := min(start+maxQueryArgs, len(ids))
		chunk := ids[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := fmt.Sprintf("SELECT %s FROM books WHERE lib_id IN (%s) ORDER BY rowid", bookColumns, placeholders(len(chunk)))
		found, err := s.queryBooks(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		books = append(books, found...)
	}
	return books, nil
}

// FindBooksByTitleTokens returns books whose normalized title contains every token
func (s *SQLiteStore) FindBooksByTitleTokens(ctx context.Context, tokens []string) ([]catalog.Book, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	conds := make([]string, len(tokens))
	args := make([]any, len(tokens))
	for i, tok := range tokens {
		conds[i] = `title_normalized LIKE ? ESCAPE '\'`
		args[i] = likeContains(tok)
	}
	query := fmt.Sprintf("SELECT %s FROM books WHERE %s ORDER BY rowid", bookColumns, strings.Join(conds, " AND "))
	return s.queryBooks(ctx, query, args...)
}

// FindBooksBySeries returns books whose folded series contains fragment
func (s *SQLiteStore) FindBooksBySeries(ctx context.Context, fragment string) ([]catalog.Book, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM books WHERE series_normalized IS NOT NULL AND series_normalized LIKE ? ESCAPE '\' ORDER BY rowid`,
		bookColumns,
	)
	return s.queryBooks(ctx, query, likeContains(fragment))
}

// AuthorsOf returns all authors of a book in insertion order
func (s *SQLiteStore) AuthorsOf(ctx context.Context, libID string) ([]catalog.AuthorPart, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT first_name, last_name, middle_name FROM authors WHERE book_lib_id = ? ORDER BY rowid", libID)
	if err != nil {
		return nil, fmt.Errorf("failed to query authors of %s: %w", libID, err)
	}
	defer func() { _ = rows.Close() }()

	parts := []catalog.AuthorPart{}
	for rows.Next() {
		var first, last, middle sql.NullString
		if err := rows.Scan(&first, &last, &middle); err != nil {
			return nil, fmt.Errorf("failed to scan author: %w", err)
		}
		parts = append(parts, catalog.AuthorPart{
			FirstName:  fromNull(first),
			LastName:   fromNull(last),
			MiddleName: fromNull(middle),
		})
	}
	return parts, rows.Err()
}

func (s *SQLiteStore) queryBooks(ctx context.Context, query string, args ...any) ([]catalog.Book, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var books []catalog.Book
	for rows.Next() {
		var b catalog.Book
		var series, language, genre sql.NullString
		var order sql.NullInt64
		if err := rows.Scan(&b.LibID, &b.Title, &b.TitleNormalized, &series, &order, &language, &genre); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		b.Series, b.Language, b.Genre = fromNull(series), fromNull(language), fromNull(genre)
		if order.Valid {
			n := int(order.Int64)
			b.SeriesOrder = &n
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// sqliteRebuild is the reload transaction with its prepared insert statements
type sqliteRebuild struct {
	tx         *sql.Tx
	bookStmt   *sql.Stmt
	authorStmt *sql.Stmt
}

func (r *sqliteRebuild) prepare(ctx context.Context) error {
	if _, err := r.tx.ExecContext(ctx, dropCatalogSchema); err != nil {
		return fmt.Errorf("failed to drop catalog: %w", err)
	}
	for _, schema := range []string{BooksSchema, AuthorsSchema} {
		if _, err := r.tx.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	var err error
	if r.bookStmt, err = r.tx.PrepareContext(ctx, insertBookSQL); err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	if r.authorStmt, err = r.tx.PrepareContext(ctx, insertAuthorSQL); err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	return nil
}

func (r *sqliteRebuild) InsertBook(ctx context.Context, b catalog.Book) error {
	var seriesNorm *string
	if b.Series != nil {
		folded := catalog.Fold(*b.Series)
		seriesNorm = &folded
	}
	var order sql.NullInt64
	if b.SeriesOrder != nil {
		order = sql.NullInt64{Int64: int64(*b.SeriesOrder), Valid: true}
	}

	_, err := r.bookStmt.ExecContext(ctx,
		b.LibID, b.Title, b.TitleNormalized,
		toNull(b.Series), toNull(seriesNorm), order,
		toNull(b.Language), toNull(b.Genre),
	)
	if err != nil {
		return fmt.Errorf("failed to insert book %s: %w", b.LibID, err)
	}
	return nil
}

func (r *sqliteRebuild) InsertAuthors(ctx context.Context, authors []catalog.Author) error {
	for _, a := range authors {
		_, err := r.authorStmt.ExecContext(ctx,
			a.BookLibID, toNull(a.FirstName), toNull(a.LastName), toNull(a.MiddleName),
			toNull(foldPtr(a.FirstName)), toNull(foldPtr(a.LastName)), toNull(foldPtr(a.MiddleName)),
		)
		if err != nil {
			return fmt.Errorf("failed to insert author of %s: %w", a.BookLibID, err)
		}
	}
	return nil
}

func (r *sqliteRebuild) PutFingerprint(ctx context.Context, fp catalog.Fingerprint) error {
	_, err := r.tx.ExecContext(ctx,
		`INSERT INTO collection_meta (id, size) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET size = excluded.size`, fp.Size)
	if err != nil {
		return fmt.Errorf("failed to write collection fingerprint: %w", err)
	}
	return nil
}

func (r *sqliteRebuild) Commit() error {
	r.closeStatements()
	if err := r.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the reload. Rolling back an already finished transaction is a no-op.
func (r *sqliteRebuild) Rollback() error {
	r.closeStatements()
	if err := r.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

func (r *sqliteRebuild) closeStatements() {
	for _, stmt := range []*sql.Stmt{r.bookStmt, r.authorStmt} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	r.bookStmt, r.authorStmt = nil, nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likeContains builds a LIKE pattern matching s anywhere, with wildcards in s escaped.
func likeContains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func foldPtr(s *string) *string {
	if s == nil {
		return nil
	}
	folded := catalog.Fold(*s)
	return &folded
}

func toNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNull(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
