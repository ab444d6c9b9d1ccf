package archive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lepinkainen/librarian/internal/errors"
	"github.com/lepinkainen/librarian/internal/testutil"
)

func setupShards(t *testing.T) (*testutil.TestEnv, *Resolver) {
	t.Helper()
	env := testutil.NewTestEnv(t)

	env.BuildShard("archives", "a-1-1000.zip",
		testutil.Entry{Name: "500.fb2", Data: []byte("<first/>")},
	)
	env.BuildShard("archives", "a-1001-2000.zip",
		testutil.Entry{Name: "1500.fb2", Data: []byte("<second/>")},
		testutil.Entry{Name: "1600.fb2", Data: []byte("<packed/>"), Zstd: true},
	)
	env.WriteFile("archives/notes.txt", []byte("not a shard"))
	env.WriteFile("archives/broken-name.zip", []byte("not a shard either"))

	return env, NewResolver(env.Path("archives"))
}

func TestParseShardName(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		wantStart int64
		wantEnd   int64
		wantErr   bool
	}{
		{name: "simple", input: "a-1-1000.zip", wantStart: 1, wantEnd: 1000},
		{name: "zero padded", input: "fb2-000024-030559.zip", wantStart: 24, wantEnd: 30559},
		{name: "extra components", input: "f-10-20-lost.zip", wantStart: 10, wantEnd: 20},
		{name: "too few components", input: "a-1.zip", wantErr: true},
		{name: "non-numeric start", input: "a-x-10.zip", wantErr: true},
		{name: "non-numeric end", input: "a-1-y.zip", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			start, end, err := ParseShardName(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantStart, start)
			assert.Equal(t, tc.wantEnd, end)
		})
	}
}

func TestResolver_Shards(t *testing.T) {
	_, r := setupShards(t)

	shards, err := r.Shards()
	require.NoError(t, err)
	require.Len(t, shards, 2)
	assert.Equal(t, "a-1-1000.zip", shards[0].Name)
	assert.Equal(t, "a-1001-2000.zip", shards[1].Name)
	assert.True(t, shards[1].Contains(1500))
	assert.False(t, shards[0].Contains(1500))
}

func TestResolver_FetchBookPayload(t *testing.T) {
	_, r := setupShards(t)
	ctx := context.Background()

	data, err := r.FetchBookPayload(ctx, "1500")
	require.NoError(t, err)
	assert.Equal(t, "<second/>", string(data))

	data, err = r.FetchBookPayload(ctx, " 500 ")
	require.NoError(t, err)
	assert.Equal(t, "<first/>", string(data))
}

func TestResolver_FetchZstdEntry(t *testing.T) {
	_, r := setupShards(t)

	data, err := r.FetchBookPayload(context.Background(), "1600")
	require.NoError(t, err)
	assert.Equal(t, "<packed/>", string(data))
}

func TestResolver_FetchErrors(t *testing.T) {
	_, r := setupShards(t)
	ctx := context.Background()

	_, err := r.FetchBookPayload(ctx, "abc")
	assert.True(t, apperrors.IsInvalidID(err))

	_, err = r.FetchBookPayload(ctx, "2500")
	assert.True(t, apperrors.IsNoShardForID(err))

	_, err = r.FetchBookPayload(ctx, "1700")
	require.True(t, apperrors.IsPayloadNotFound(err))
	fe, ok := apperrors.AsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, "a-1001-2000.zip", fe.Shard)
	assert.Equal(t, "File for book 1700 was not found", fe.UserMessage())
}

func TestResolver_FirstMatchingShardWins(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.BuildShard("archives", "a-1-100.zip", testutil.Entry{Name: "1.fb2", Data: []byte("a")})
	env.BuildShard("archives", "b-1-100.zip", testutil.Entry{Name: "50.fb2", Data: []byte("b")})

	r := NewResolver(env.Path("archives"))
	_, err := r.FetchBookPayload(context.Background(), "50")
	assert.True(t, apperrors.IsPayloadNotFound(err), "only the first containing shard is consulted")
}

func TestResolver_MissingDirectory(t *testing.T) {
	env := testutil.NewTestEnv(t)
	r := NewResolver(env.Path("nowhere"))

	_, err := r.FetchBookPayload(context.Background(), "1")
	assert.True(t, apperrors.IsNoShardForID(err))
}

func TestResolver_Options(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.BuildShard("archives", "x-1-9.cbz", testutil.Entry{Name: "3.epub", Data: []byte("epub")})

	r := NewResolver(env.Path("archives"), WithShardExt("cbz"), WithPayloadExt(".epub"))
	data, err := r.FetchBookPayload(context.Background(), "3")
	require.NoError(t, err)
	assert.Equal(t, "epub", string(data))
}
