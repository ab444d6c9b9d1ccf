package ingest

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// maxLineSize bounds a single catalog line; INPX lines are short but
// author lists of anthologies can run long.
const maxLineSize = 1 << 20

// lineFunc receives every non-blank line of every matching bundle entry.
type lineFunc func(entry string, lineNo int, line string) error

// walkBundle streams the lines of every entry in the zip at path whose
// name ends with ext (case-insensitive). It returns the number of entries read.
func walkBundle(ctx context.Context, path, ext string, fn lineFunc) (int, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return 0, fmt.Errorf("opening bundle: %w", err)
	}
	defer func() { _ = zr.Close() }()
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	ext = strings.ToLower(ext)
	entries := 0
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(f.Name), ext) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		if err := walkEntry(f, fn); err != nil {
			return entries, err
		}
		entries++
	}

	return entries, nil
}

func walkEntry(f *zip.File, fn lineFunc) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening entry %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := fn(f.Name, lineNo, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading entry %s: %w", f.Name, err)
	}

	return nil
}
