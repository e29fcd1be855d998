// Package rawcsv reads raw extracts from a directory of CSV files, one
// <entity>.csv per entity, so a full run can execute without a staged
// bronze database.
package rawcsv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Source serves raw extracts from Dir. File layout is fixed: the extract
// for source "orders" is Dir/orders.csv, first row is the header.
type Source struct {
	Dir string

	// Comma overrides the field delimiter. Zero means ','.
	Comma rune
}

// ReadEntity reads one extract fully. Header names are matched to the
// requested columns after lower-casing, space-to-underscore folding and
// BOM stripping; requested columns absent from the header come back nil on
// every row, and empty cells become nil.
//
// Errors:
//   - The file missing or unreadable.
//   - A malformed CSV record (quoting errors). Short records are not an
//     error; missing trailing fields are nil.
func (s *Source) ReadEntity(ctx context.Context, source string, columns []string) ([][]any, error) {
	path := filepath.Join(s.Dir, source+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raw extract: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1
	if s.Comma != 0 {
		cr.Comma = s.Comma
	}

	hdr, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	colIx := headerIndex(hdr, columns)

	var rows [][]any
	line := 1
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv read %s line %d: %w", path, line, err)
		}

		row := make([]any, len(columns))
		for t := range columns {
			si := colIx[t]
			if si < 0 || si >= len(rec) {
				continue
			}
			v := strings.TrimSpace(rec[si])
			if v != "" {
				row[t] = v
			}
		}
		rows = append(rows, row)
	}
}

// headerIndex maps each requested column to its position in the header, or
// -1 when absent.
func headerIndex(hdr, columns []string) []int {
	srcToIdx := make(map[string]int, len(hdr))
	for i, h := range hdr {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		h = strings.ReplaceAll(strings.ToLower(h), " ", "_")
		srcToIdx[h] = i
	}

	colIx := make([]int, len(columns))
	for t, target := range columns {
		colIx[t] = -1
		if si, ok := srcToIdx[target]; ok {
			colIx[t] = si
		}
	}
	return colIx
}
