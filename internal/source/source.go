// Package source fetches raw CPI tables from the Singapore government
// data portals. Each client speaks one portal protocol and returns the
// payload as a Table; reshaping into the canonical schema happens in
// the normalize package.
package source

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrNoData signals that a fetch completed without producing any rows:
// every identifier failed, or the payload held nothing usable. Callers
// check it with eris.Is and treat it as a degraded result, not a fault.
var ErrNoData = eris.New("source: no data")

// Table is the raw tabular payload returned by a source client:
// ordered column labels plus one string-valued record per row. Column
// labels are whatever the portal sent; nothing is renamed here.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns}
}

// HasColumn reports whether the table has a column with the given label.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn appends a column label if it is not already present.
func (t *Table) AddColumn(name string) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
}

// Append adds a record, registering any column labels it introduces.
func (t *Table) Append(row map[string]string) {
	for col := range row {
		t.AddColumn(col)
	}
	t.Rows = append(t.Rows, row)
}

// Extend appends all rows of other, merging its column set. Used to
// union the payloads of several identifiers from the same source.
func (t *Table) Extend(other *Table) {
	for _, col := range other.Columns {
		t.AddColumn(col)
	}
	t.Rows = append(t.Rows, other.Rows...)
}

// Empty reports whether the table holds no rows.
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// Client fetches a named dataset from one portal. Fetch never fails the
// whole call for a single bad identifier: it skips it, logs a warning,
// and returns the union of the successes. ErrNoData is returned only
// when every identifier failed or produced nothing.
type Client interface {
	// Name identifies the source in artifacts and canonical rows.
	Name() string

	// Fetch retrieves the raw table for the given identifiers.
	Fetch(ctx context.Context, ids []string) (*Table, error)
}
