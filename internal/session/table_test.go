package session

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/librarian/internal/catalog"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func books(n int) []catalog.Book {
	out := make([]catalog.Book, n)
	for i := range out {
		out[i] = catalog.NewBook(strconv.Itoa(i+1), "Книга "+strconv.Itoa(i+1))
	}
	return out
}

func TestTable_Pagination(t *testing.T) {
	table := NewTable(time.Hour, 10, nil)

	first := table.Put("alice", "петров", "author", books(23))
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 3, first.Total)
	assert.Equal(t, 23, first.Results)
	assert.Len(t, first.Books, 10)
	assert.False(t, first.HasPrev)
	assert.True(t, first.HasNext)

	last, err := table.Page("alice", 3)
	require.NoError(t, err)
	require.Len(t, last.Books, 3)
	assert.Equal(t, "21", last.Books[0].LibID)
	assert.True(t, last.HasPrev)
	assert.False(t, last.HasNext)
	assert.Equal(t, "петров", last.Query)

	for _, n := range []int{0, -1, 4} {
		_, err := table.Page("alice", n)
		assert.ErrorIs(t, err, ErrPageOutOfRange, "page %d", n)
	}
}

func TestTable_EmptyResults(t *testing.T) {
	table := NewTable(time.Hour, 10, nil)

	page := table.Put("bob", "ничего", "title", nil)
	assert.Equal(t, 1, page.Total)
	assert.Empty(t, page.Books)
	assert.False(t, page.HasNext)
}

func TestTable_CallersAreIsolated(t *testing.T) {
	table := NewTable(time.Hour, 2, nil)
	table.Put("alice", "a", "title", books(5))
	table.Put("bob", "b", "title", books(1))

	page, err := table.Page("alice", 3)
	require.NoError(t, err)
	assert.Len(t, page.Books, 1)

	_, err = table.Page("bob", 2)
	assert.ErrorIs(t, err, ErrPageOutOfRange)

	_, err = table.Page("carol", 1)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestTable_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	table := NewTable(30*time.Minute, 10, clock.now)

	table.Put("alice", "a", "title", books(3))
	table.Put("bob", "b", "title", books(3))

	clock.advance(20 * time.Minute)
	_, err := table.Page("alice", 1)
	require.NoError(t, err, "access refreshes the session")

	clock.advance(20 * time.Minute)
	assert.Equal(t, 1, table.Sweep(), "only bob expired")
	assert.Equal(t, 1, table.Len())

	clock.advance(31 * time.Minute)
	_, err = table.Page("alice", 1)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Zero(t, table.Len())
}

func TestTable_ConcurrentAccess(t *testing.T) {
	table := NewTable(time.Hour, 5, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := strconv.Itoa(i % 4)
			table.Put(id, "q", "series", books(12))
			_, _ = table.Page(id, 2)
			table.Sweep()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, table.Len())
}
