package datastore

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/lepinkainen/librarian/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "catalog.db"))
	if err := store.Connect(); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func strp(s string) *string { return &s }

func seed(t *testing.T, store *SQLiteStore, size int64, records ...catalog.Record) {
	t.Helper()
	ctx := context.Background()

	rb, err := store.BeginRebuild(ctx)
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, rb.InsertBook(ctx, rec.Book))
		require.NoError(t, rb.InsertAuthors(ctx, rec.Authors))
	}
	require.NoError(t, rb.PutFingerprint(ctx, catalog.Fingerprint{Size: size}))
	require.NoError(t, rb.Commit())
	require.NoError(t, store.EnsureIndexes(ctx))
}

func record(id, title string, series *string, authors ...catalog.AuthorPart) catalog.Record {
	book := catalog.NewBook(id, title)
	book.Series = series
	rec := catalog.Record{Book: book}
	for _, a := range authors {
		rec.Authors = append(rec.Authors, catalog.Author{BookLibID: id, AuthorPart: a})
	}
	return rec
}

func TestSQLiteStore_FingerprintLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fp, err := store.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Nil(t, fp, "fresh database has no fingerprint")

	seed(t, store, 1234)
	fp, err = store.Fingerprint(ctx)
	require.NoError(t, err)
	require.NotNil(t, fp)
	assert.Equal(t, int64(1234), fp.Size)

	seed(t, store, 99)
	fp, err = store.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(99), fp.Size, "fingerprint stays a singleton")
}

func TestSQLiteStore_InsertAndFind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ivan := catalog.AuthorPart{LastName: strp("Петров"), FirstName: strp("Иван")}
	anna := catalog.AuthorPart{LastName: strp("Сидорова"), FirstName: strp("Анна"), MiddleName: strp("Павловна")}
	seed(t, store, 10,
		record("1", "Сонет о любви", nil, ivan),
		record("2", "Последнее желание", strp("Сага о Ведьмаке"), anna, ivan),
		record("3", "100% _тест_", nil),
	)

	count, err := store.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	authors, err := store.FindAuthorsByAnyName(ctx, []string{"иван"})
	require.NoError(t, err)
	require.Len(t, authors, 2)
	assert.Equal(t, "1", authors[0].BookLibID)
	assert.Equal(t, "2", authors[1].BookLibID)

	authors, err = store.FindAuthorsByAnyName(ctx, []string{"павловна"})
	require.NoError(t, err)
	require.Len(t, authors, 1)
	assert.Equal(t, "Сидорова", *authors[0].LastName)

	books, err := store.FindBooksByIDs(ctx, []string{"2", "1", "missing"})
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "1", books[0].LibID)
	assert.Equal(t, "сонет о любви", books[0].TitleNormalized)
	require.NotNil(t, books[1].Series)
	assert.Equal(t, "Сага о Ведьмаке", *books[1].Series)
	assert.Nil(t, books[1].SeriesOrder)

	books, err = store.FindBooksByTitleTokens(ctx, []string{"сон", "люб"})
	require.NoError(t, err)
	require.Len(t, books, 1, "substring prefilter matches")
	assert.Equal(t, "1", books[0].LibID)

	books, err = store.FindBooksByTitleTokens(ctx, []string{"%"})
	require.NoError(t, err)
	require.Len(t, books, 1, "LIKE wildcards in tokens are literal")
	assert.Equal(t, "3", books[0].LibID)

	books, err = store.FindBooksBySeries(ctx, "ведьмак")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "2", books[0].LibID)

	parts, err := store.AuthorsOf(ctx, "2")
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "Сидорова Анна Павловна", parts[0].DisplayName())
	assert.Equal(t, "Петров Иван", parts[1].DisplayName())

	parts, err = store.AuthorsOf(ctx, "3")
	require.NoError(t, err)
	assert.Empty(t, parts)
}

func TestSQLiteStore_FindBooksByIDsChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var records []catalog.Record
	var ids []string
	for i := 0; i < maxQueryArgs+25; i++ {
		id := strconv.Itoa(i)
		records = append(records, record(id, "Книга "+id, nil))
		ids = append(ids, id)
	}
	seed(t, store, 1, records...)

	books, err := store.FindBooksByIDs(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, books, len(ids))
}

func TestSQLiteStore_FindAuthorsByAnyNameLongQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ivan := catalog.AuthorPart{LastName: strp("Петров"), FirstName: strp("Иван")}
	anna := catalog.AuthorPart{LastName: strp("Сидорова"), FirstName: strp("Анна")}
	seed(t, store, 10,
		record("1", "Первая", nil, anna),
		record("2", "Вторая", nil, ivan),
		record("3", "Третья", nil, anna, ivan),
	)

	// Far more names than SQLite accepts as bound variables in one statement.
	names := []string{"иван"}
	for i := 0; i < 20000; i++ {
		names = append(names, "слово"+strconv.Itoa(i))
	}
	names = append(names, "анна", "иван", "петров")

	authors, err := store.FindAuthorsByAnyName(ctx, names)
	require.NoError(t, err)
	require.Len(t, authors, 4, "each matching author row appears once")
	assert.Equal(t, "1", authors[0].BookLibID)
	assert.Equal(t, "2", authors[1].BookLibID)
	assert.Equal(t, "3", authors[2].BookLibID)
	assert.Equal(t, "Сидорова", *authors[2].LastName)
	assert.Equal(t, "3", authors[3].BookLibID)
	assert.Equal(t, "Петров", *authors[3].LastName)
}

func TestSQLiteStore_RollbackKeepsPreviousCatalog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seed(t, store, 10, record("1", "Старая книга", nil))

	rb, err := store.BeginRebuild(ctx)
	require.NoError(t, err)
	require.NoError(t, rb.InsertBook(ctx, catalog.NewBook("2", "Новая книга")))
	require.NoError(t, rb.Rollback())
	require.NoError(t, rb.Rollback(), "second rollback is a no-op")

	books, err := store.FindBooksByIDs(ctx, []string{"1", "2"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "1", books[0].LibID)

	fp, err := store.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), fp.Size)
}

func TestSQLiteStore_ConnectFailure(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "missing", "dir", "catalog.db"))
	err := store.Connect()
	if err == nil {
		_ = store.Close()
		t.Fatalf("expected connect to fail for missing directory")
	}
}
