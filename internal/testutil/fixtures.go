package testutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// Entry is a named file inside a zip fixture.
type Entry struct {
	Name string
	Data []byte
	// Zstd stores the entry with the zstd method (93) instead of deflate.
	Zstd bool
}

// Line describes one INPX catalog line by field.
type Line struct {
	Authors     string
	Genre       string
	Title       string
	Series      string
	LibID       string
	SeriesOrder string
	Language    string
}

// String renders the line with all 13 INPX fields used by the parser.
func (l Line) String() string {
	fields := make([]string, 13)
	fields[0] = l.Authors
	fields[1] = l.Genre
	fields[2] = l.Title
	fields[3] = l.Series
	fields[5] = l.LibID
	fields[10] = l.SeriesOrder
	fields[12] = l.Language
	return strings.Join(fields, "\x04")
}

// Inp joins rendered lines into the contents of one .inp file.
func Inp(lines ...any) []byte {
	var sb strings.Builder
	for _, l := range lines {
		switch v := l.(type) {
		case Line:
			sb.WriteString(v.String())
		case string:
			sb.WriteString(v)
		}
		sb.WriteString("\r\n")
	}
	return []byte(sb.String())
}

// ZipBytes builds an in-memory zip archive from entries.
func ZipBytes(t *testing.T, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	w.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())

	for _, e := range entries {
		header := &zip.FileHeader{Name: e.Name, Method: zip.Deflate}
		if e.Zstd {
			header.Method = zstd.ZipMethodWinZip
		}
		f, err := w.CreateHeader(header)
		if err != nil {
			t.Fatalf("failed to create zip entry %q: %v", e.Name, err)
		}
		if _, err := f.Write(e.Data); err != nil {
			t.Fatalf("failed to write zip entry %q: %v", e.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}

	return buf.Bytes()
}

// BuildBundle writes an INPX bundle at path (relative to the env) and returns its absolute path.
func (e *TestEnv) BuildBundle(path string, entries ...Entry) string {
	e.t.Helper()
	return e.WriteFile(path, ZipBytes(e.t, entries...))
}

// BuildShard writes an archive shard named name into dir and returns its absolute path.
func (e *TestEnv) BuildShard(dir, name string, entries ...Entry) string {
	e.t.Helper()
	return e.WriteFile(dir+"/"+name, ZipBytes(e.t, entries...))
}
