// Package archive locates and extracts book payloads from numbered zip shards.
package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	apperrors "github.com/lepinkainen/librarian/internal/errors"
)

const (
	defaultPayloadExt = "fb2"
	defaultShardExt   = ".zip"
)

// Resolver maps book ids to shards and reads payloads out of them.
// It keeps no state between calls and is safe for concurrent use.
type Resolver struct {
	dir        string
	payloadExt string
	shardExt   string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPayloadExt sets the payload entry extension, "fb2" by default.
func WithPayloadExt(ext string) Option {
	return func(r *Resolver) {
		if ext = strings.TrimPrefix(ext, "."); ext != "" {
			r.payloadExt = ext
		}
	}
}

// WithShardExt sets the shard file extension, ".zip" by default.
func WithShardExt(ext string) Option {
	return func(r *Resolver) {
		if ext == "" {
			return
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.shardExt = ext
	}
}

// NewResolver creates a resolver over the shards in dir.
func NewResolver(dir string, opts ...Option) *Resolver {
	r := &Resolver{
		dir:        dir,
		payloadExt: defaultPayloadExt,
		shardExt:   defaultShardExt,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dir returns the shard directory.
func (r *Resolver) Dir() string {
	return r.dir
}

// Shards lists the shards in directory order. Files that do not follow
// the shard naming scheme are ignored.
func (r *Resolver) Shards() ([]Shard, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("reading shard directory %s: %w", r.dir, err)
	}

	var shards []Shard
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), r.shardExt) {
			continue
		}
		start, end, err := ParseShardName(entry.Name())
		if err != nil {
			slog.Debug("Ignoring archive file", "name", entry.Name(), "error", err)
			continue
		}
		shards = append(shards, Shard{
			Name:  entry.Name(),
			Path:  filepath.Join(r.dir, entry.Name()),
			Start: start,
			End:   end,
		})
	}

	return shards, nil
}

// Locate returns the first shard whose range contains id.
func (r *Resolver) Locate(id int64) (Shard, error) {
	key := strconv.FormatInt(id, 10)

	shards, err := r.Shards()
	if err != nil {
		return Shard{}, apperrors.NewFetchError(apperrors.KindNoShardForID, key, err)
	}
	for _, s := range shards {
		if s.Contains(id) {
			return s, nil
		}
	}

	return Shard{}, apperrors.NewFetchError(apperrors.KindNoShardForID, key, nil)
}

// FetchBookPayload returns the complete payload of the book with the given id.
func (r *Resolver) FetchBookPayload(ctx context.Context, bookID string) ([]byte, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(bookID), 10, 64)
	if err != nil {
		return nil, apperrors.NewFetchError(apperrors.KindInvalidID, bookID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shard, err := r.Locate(id)
	if err != nil {
		return nil, err
	}

	entryName := strconv.FormatInt(id, 10) + "." + r.payloadExt
	data, err := readEntry(shard.Path, entryName)
	if err != nil {
		if fe, ok := apperrors.AsFetchError(err); ok {
			fe.Shard = shard.Name
			return nil, fe
		}
		return nil, fmt.Errorf("reading %s from %s: %w", entryName, shard.Name, err)
	}

	slog.Debug("Fetched book payload", "id", id, "shard", shard.Name, "bytes", len(data))
	return data, nil
}

func readEntry(path, name string) ([]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer func() { _ = rc.Close() }()
		return io.ReadAll(rc)
	}

	return nil, apperrors.NewFetchError(apperrors.KindPayloadNotFound, strings.TrimSuffix(name, filepath.Ext(name)), nil)
}
