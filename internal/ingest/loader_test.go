package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/librarian/internal/catalog"
	"github.com/lepinkainen/librarian/internal/datastore"
	apperrors "github.com/lepinkainen/librarian/internal/errors"
	"github.com/lepinkainen/librarian/internal/testutil"
)

func newStore(t *testing.T, env *testutil.TestEnv) *datastore.SQLiteStore {
	t.Helper()
	store := datastore.NewSQLiteStore(filepath.Join(env.RootDir(), "catalog.db"))
	require.NoError(t, store.Connect())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleBundle(env *testutil.TestEnv) string {
	return env.BuildBundle("library.inpx",
		testutil.Entry{Name: "fb2-000001-000100.inp", Data: testutil.Inp(
			testutil.Line{Authors: "Петров,Иван,:", Genre: "poetry:", Title: "Сонет", LibID: "1", Language: "ru"},
			testutil.Line{Authors: "Сапковский,Анджей,:", Title: "Последнее желание", Series: "Сага о Ведьмаке", LibID: "2", SeriesOrder: "1"},
			"broken\x04line\x04only",
			testutil.Line{Authors: "Никто,,:", Title: "Без номера", LibID: "  "},
		)},
		testutil.Entry{Name: "fb2-000101-000200.inp", Data: testutil.Inp(
			testutil.Line{Authors: "Другой,Автор,:", Title: "Дубликат", LibID: "1"},
			testutil.Line{Authors: "Петров,Иван,:Сидоров,Пётр,:", Title: "Соавторы", LibID: "3"},
		)},
		testutil.Entry{Name: "version.info", Data: []byte("20240101\r\n")},
	)
}

func TestLoader_Load(t *testing.T) {
	env := testutil.NewTestEnv(t)
	store := newStore(t, env)
	ctx := context.Background()

	stats, err := NewLoader(store, Options{}).Load(ctx, sampleBundle(env))
	require.NoError(t, err)

	assert.False(t, stats.Skipped)
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 3, stats.Books)
	assert.Equal(t, 4, stats.Authors)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 1, stats.Malformed)
	assert.Equal(t, 1, stats.EmptyIDs)

	count, err := store.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	books, err := store.FindBooksByIDs(ctx, []string{"1"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Сонет", books[0].Title, "first occurrence of a lib id wins")

	authors, err := store.AuthorsOf(ctx, "1")
	require.NoError(t, err)
	require.Len(t, authors, 1)
	assert.Equal(t, "Петров Иван", authors[0].DisplayName())
}

func TestLoader_SkipsUnchangedBundle(t *testing.T) {
	env := testutil.NewTestEnv(t)
	store := newStore(t, env)
	ctx := context.Background()
	path := sampleBundle(env)
	loader := NewLoader(store, Options{})

	_, err := loader.Load(ctx, path)
	require.NoError(t, err)

	stats, err := loader.Load(ctx, path)
	require.NoError(t, err)
	assert.True(t, stats.Skipped)
	assert.Zero(t, stats.Books)

	count, err := store.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "catalog untouched by a skipped load")

	stats, err = NewLoader(store, Options{Force: true}).Load(ctx, path)
	require.NoError(t, err)
	assert.False(t, stats.Skipped)
	assert.Equal(t, 3, stats.Books)

	stats, err = loader.Reload(ctx, path)
	require.NoError(t, err)
	assert.False(t, stats.Skipped)
}

func TestLoader_ReplacesPreviousCatalog(t *testing.T) {
	env := testutil.NewTestEnv(t)
	store := newStore(t, env)
	ctx := context.Background()

	_, err := NewLoader(store, Options{}).Load(ctx, sampleBundle(env))
	require.NoError(t, err)

	next := env.BuildBundle("next.inpx", testutil.Entry{Name: "a.inp", Data: testutil.Inp(
		testutil.Line{Title: "Единственная", LibID: "77"},
	)})
	stats, err := NewLoader(store, Options{Force: true}).Load(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Books)

	books, err := store.FindBooksByIDs(ctx, []string{"1", "2", "3", "77"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "77", books[0].LibID)

	fp, err := store.Fingerprint(ctx)
	require.NoError(t, err)
	require.NotNil(t, fp)
	assert.Equal(t, int64(len(env.ReadFile("next.inpx"))), fp.Size)
}

func TestLoader_SourceNotFound(t *testing.T) {
	env := testutil.NewTestEnv(t)
	store := newStore(t, env)

	_, err := NewLoader(store, Options{}).Load(context.Background(), env.Path("missing.inpx"))
	require.Error(t, err)
	assert.True(t, apperrors.IsSourceNotFound(err))

	fp, err := store.Fingerprint(context.Background())
	require.NoError(t, err)
	assert.Nil(t, fp)
}

func TestLoader_RejectsConcurrentLoad(t *testing.T) {
	env := testutil.NewTestEnv(t)
	loader := NewLoader(newStore(t, env), Options{})

	loader.mu.Lock()
	defer loader.mu.Unlock()

	_, err := loader.Load(context.Background(), sampleBundle(env))
	assert.True(t, apperrors.IsLoadInProgress(err))
}

func TestLoader_CorruptBundleKeepsCatalog(t *testing.T) {
	env := testutil.NewTestEnv(t)
	store := newStore(t, env)
	ctx := context.Background()

	_, err := NewLoader(store, Options{}).Load(ctx, sampleBundle(env))
	require.NoError(t, err)

	bad := env.WriteFile("bad.inpx", []byte("this is not a zip archive"))
	_, err = NewLoader(store, Options{}).Load(ctx, bad)
	require.Error(t, err)
	assert.False(t, apperrors.IsStorageFailure(err))

	count, err := store.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

var errDiskFull = errors.New("disk full")

// failingStore fails the second book insert of a rebuild.
type failingStore struct {
	*datastore.SQLiteStore
}

func (s failingStore) BeginRebuild(ctx context.Context) (datastore.Rebuild, error) {
	rb, err := s.SQLiteStore.BeginRebuild(ctx)
	if err != nil {
		return nil, err
	}
	return &failingRebuild{Rebuild: rb}, nil
}

type failingRebuild struct {
	datastore.Rebuild
	inserts int
}

func (r *failingRebuild) InsertBook(ctx context.Context, b catalog.Book) error {
	r.inserts++
	if r.inserts == 2 {
		return errDiskFull
	}
	return r.Rebuild.InsertBook(ctx, b)
}

func TestLoader_StorageFailureRollsBack(t *testing.T) {
	env := testutil.NewTestEnv(t)
	store := newStore(t, env)
	ctx := context.Background()

	first := env.BuildBundle("first.inpx", testutil.Entry{Name: "a.inp", Data: testutil.Inp(
		testutil.Line{Title: "Старая", LibID: "9"},
	)})
	_, err := NewLoader(store, Options{}).Load(ctx, first)
	require.NoError(t, err)

	_, err = NewLoader(failingStore{store}, Options{}).Load(ctx, sampleBundle(env))
	require.Error(t, err)
	assert.True(t, apperrors.IsStorageFailure(err))
	assert.ErrorIs(t, err, errDiskFull)

	books, err := store.FindBooksByIDs(ctx, []string{"1", "9"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "9", books[0].LibID)

	fp, err := store.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(env.ReadFile("first.inpx"))), fp.Size)
}
