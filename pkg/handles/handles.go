// Package handles reads the list of accounts the bot watches.
package handles

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cpunion/replybot/pkg/types"
)

// headerColumn is the CSV column used when the file has a header row.
const headerColumn = "handle"

// ErrEmpty reports a handle list with no usable entries.
var ErrEmpty = errors.New("handle list is empty")

// Load reads handles from path. See Parse for the accepted format.
func Load(path string) ([]types.Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open handle list: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse accepts a plain newline list or a CSV file. Blank lines and lines
// starting with "#" are ignored, a leading "@" is dropped, and duplicates
// (case-insensitive) keep their first occurrence. When the first row has a
// "Handle" column, that column is read; otherwise the first column is.
func Parse(r io.Reader) ([]types.Handle, error) {
	lines, err := meaningfulLines(r)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse handle list: %w", err)
	}

	column := 0
	if len(records) > 0 {
		for i, field := range records[0] {
			if strings.EqualFold(strings.TrimSpace(field), headerColumn) {
				column = i
				records = records[1:]
				break
			}
		}
	}

	seen := make(map[string]struct{}, len(records))
	out := make([]types.Handle, 0, len(records))
	for _, rec := range records {
		if column >= len(rec) {
			continue
		}
		h := types.NormalizeHandle(rec[column])
		if h == "" {
			continue
		}
		key := strings.ToLower(string(h))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	return out, nil
}

// Without returns handles with self removed.
func Without(list []types.Handle, self types.Handle) []types.Handle {
	if self == "" {
		return list
	}
	out := make([]types.Handle, 0, len(list))
	for _, h := range list {
		if !h.Equal(self) {
			out = append(out, h)
		}
	}
	return out
}

func meaningfulLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read handle list: %w", err)
	}
	return lines, nil
}
