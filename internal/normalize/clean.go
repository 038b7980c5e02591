package normalize

import (
	"strings"

	"github.com/sgstats/cpi-ingest/internal/source"
)

// naSentinel is the portals' "not available" marker.
const naSentinel = "na"

// Clean applies the shared post-normalization cleanup:
//
//  1. rows that are empty in every column are dropped;
//  2. any column containing the "na" sentinel — or missing a value for
//     some row — is dropped entirely, not just the offending cells
//     (columns with any unavailable observation are excluded rather
//     than partially imputed);
//  3. column names are trimmed and inner whitespace collapsed to a
//     single underscore. Period labels keep their space ("2021 1H"),
//     since the period grammar recognizes them after cleaning.
func Clean(t *source.Table) *source.Table {
	rows := dropEmptyRows(t.Rows, t.Columns)

	keep := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		if columnAvailable(rows, col) {
			keep = append(keep, col)
		}
	}

	out := source.NewTable()
	for _, col := range keep {
		out.AddColumn(cleanColumnName(col))
	}
	for _, row := range rows {
		rec := make(map[string]string, len(keep))
		for _, col := range keep {
			rec[cleanColumnName(col)] = row[col]
		}
		out.Rows = append(out.Rows, rec)
	}
	return out
}

func dropEmptyRows(rows []map[string]string, columns []string) []map[string]string {
	out := rows[:0:0]
	for _, row := range rows {
		empty := true
		for _, col := range columns {
			if strings.TrimSpace(row[col]) != "" {
				empty = false
				break
			}
		}
		if !empty {
			out = append(out, row)
		}
	}
	return out
}

// columnAvailable reports whether every row has a non-sentinel value
// for the column.
func columnAvailable(rows []map[string]string, col string) bool {
	for _, row := range rows {
		v, ok := row[col]
		if !ok || strings.TrimSpace(v) == naSentinel {
			return false
		}
	}
	return true
}

// cleanColumnName trims the label and joins inner whitespace runs with
// a single underscore. Labels matching the period grammar are left
// space-separated so classification and melting still recognize them.
func cleanColumnName(name string) string {
	fields := strings.Fields(name)
	spaced := strings.Join(fields, " ")
	if _, ok := ParsePeriod(spaced); ok {
		return spaced
	}
	return strings.Join(fields, "_")
}
