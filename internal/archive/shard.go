package archive

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Shard is one archive file holding the payloads of a contiguous id range.
type Shard struct {
	Name  string `json:"name" yaml:"name"`
	Path  string `json:"path" yaml:"path"`
	Start int64  `json:"start" yaml:"start"`
	End   int64  `json:"end" yaml:"end"`
}

// Contains reports whether id falls inside the shard's inclusive range.
func (s Shard) Contains(id int64) bool {
	return s.Start <= id && id <= s.End
}

// ParseShardName extracts the id range from a name like "fb2-000024-030559.zip".
// The stem is split on '-'; the second and third components must be integers.
func ParseShardName(name string) (start, end int64, err error) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(stem, "-")
	if len(parts) < 3 {
		return 0, 0, fmt.Errorf("shard name %q: want <prefix>-<start>-<end>", name)
	}

	start, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("shard name %q: start: %w", name, err)
	}
	end, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("shard name %q: end: %w", name, err)
	}

	return start, end, nil
}
