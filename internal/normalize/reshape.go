package normalize

import (
	"strings"

	"github.com/sgstats/cpi-ingest/internal/source"
)

// Melt converts a wide table into long format: every column except
// idCol becomes one output row per input row, with the column label in
// keyCol and the cell value in valueCol. Column order is preserved, so
// Pivot(Melt(t)) reproduces t.
func Melt(t *source.Table, idCol, keyCol, valueCol string) *source.Table {
	out := source.NewTable(idCol, keyCol, valueCol)
	for _, row := range t.Rows {
		for _, col := range t.Columns {
			if col == idCol {
				continue
			}
			v, ok := row[col]
			if !ok {
				continue
			}
			out.Rows = append(out.Rows, map[string]string{
				idCol:    row[idCol],
				keyCol:   col,
				valueCol: v,
			})
		}
	}
	return out
}

// Pivot spreads a long table wide: one output row per distinct indexCol
// value, one column per distinct keyCol value. Index and key order
// follow first appearance. Keys absent for a given index are left unset
// and surface as missing values to the cleaner.
func Pivot(t *source.Table, indexCol, keyCol, valueCol string) *source.Table {
	out := source.NewTable(indexCol)
	byIndex := map[string]map[string]string{}

	for _, row := range t.Rows {
		idx := row[indexCol]
		key := row[keyCol]
		if key == "" {
			continue
		}
		rec, ok := byIndex[idx]
		if !ok {
			rec = map[string]string{indexCol: idx}
			byIndex[idx] = rec
			out.Rows = append(out.Rows, rec)
		}
		out.AddColumn(key)
		if _, dup := rec[key]; !dup {
			rec[key] = row[valueCol]
		}
	}

	return out
}

// DropDuplicates removes rows whose values in the given columns repeat
// an earlier row, keeping the first occurrence.
func DropDuplicates(t *source.Table, cols ...string) *source.Table {
	out := source.NewTable(t.Columns...)
	seen := map[string]bool{}
	for _, row := range t.Rows {
		var b strings.Builder
		for _, c := range cols {
			b.WriteString(row[c])
			b.WriteByte('\x1f')
		}
		key := b.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Rows = append(out.Rows, row)
	}
	return out
}
