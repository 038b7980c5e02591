package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sgstats/cpi-ingest/internal/source"
)

// Rename tables per source: recognized lowercase labels mapped to
// canonical names, evaluated once per payload. No substring guessing.
var (
	datagovRenames = map[string]string{
		"year":       "year",
		"value":      "cpi_value",
		"category":   "data_series",
		"dataseries": "data_series",
	}
	tablebuilderRenames = map[string]string{
		"rowtext": "data_series",
		"year":    "year",
		"value":   "cpi_value",
	}
	scrapeRenames = map[string]string{
		"data series": "data_series",
		"variables":   "data_series",
		"year":        "year",
		"value":       "cpi_value",
	}
)

// Normalizer converts raw source tables into canonical rows. One
// method per source protocol; all of them end in the same clean,
// classify and melt pass.
type Normalizer struct {
	tagger IncomeTagger

	// Now stamps ExtractedAt; overridable in tests.
	Now func() time.Time
}

// New creates a Normalizer with the given income-group lookup.
func New(tagger IncomeTagger) *Normalizer {
	return &Normalizer{tagger: tagger, Now: time.Now}
}

// DataGov normalizes an open-data payload: rename known columns, clean,
// and melt the wide year/period columns into long format. Payloads
// already in long shape (a "year" column instead of period columns)
// pass through row-wise.
func (n *Normalizer) DataGov(t *source.Table, ids []string) ([]Row, error) {
	t = applyRenames(t, datagovRenames)
	t = Clean(t)
	return n.toCanonical(t, "sg_gov", n.tagger.Tag(ids))
}

// TableBuilder normalizes a tabledata payload: rename, deduplicate on
// (series, period-key) keeping the first occurrence, pivot wide so the
// frequency can be classified from the period-key columns, then clean
// and melt back to long format. The pivot also surfaces keys missing
// from some records as unavailable columns for the cleaner.
func (n *Normalizer) TableBuilder(t *source.Table, ids []string) ([]Row, error) {
	t = applyRenames(t, tablebuilderRenames)
	if !t.HasColumn("data_series") || !t.HasColumn("key") {
		return nil, eris.Wrap(source.ErrNoData, "normalize: tablebuilder payload missing series/key columns")
	}
	t = DropDuplicates(t, "data_series", "key")
	t = Pivot(t, "data_series", "key", "cpi_value")
	t = Clean(t)
	return n.toCanonical(t, "sg_singstat", n.tagger.Tag(ids))
}

// Scrape normalizes an HTML-extracted table: the rows are already
// records, so only the rename and the shared clean/melt pass apply.
func (n *Normalizer) Scrape(t *source.Table, ids []string) ([]Row, error) {
	t = applyRenames(t, scrapeRenames)
	t = Clean(t)
	return n.toCanonical(t, "sg_singstat_scrape", n.tagger.Tag(ids))
}

// toCanonical melts a cleaned table into canonical rows. The frequency
// is classified from the wide column labels before melting.
func (n *Normalizer) toCanonical(t *source.Table, dataSource, incomeGroup string) ([]Row, error) {
	if t.Empty() {
		return nil, eris.Wrapf(source.ErrNoData, "normalize: %s table empty after cleaning", dataSource)
	}
	if !t.HasColumn("data_series") {
		return nil, eris.Wrapf(source.ErrNoData, "normalize: %s payload has no data series column", dataSource)
	}

	freq := Classify(t.Columns)
	extracted := n.Now()
	periodCols := PeriodColumns(t.Columns)

	var rows []Row
	switch {
	case len(periodCols) > 0:
		for _, rec := range t.Rows {
			series := strings.TrimSpace(rec["data_series"])
			if series == "" {
				continue
			}
			for _, col := range periodCols {
				v, ok := rec[col]
				if !ok {
					continue
				}
				p, _ := ParsePeriod(col)
				rows = append(rows, Row{
					DataSeries:  series,
					Year:        p.Year,
					PeriodLabel: periodLabel(p),
					CPIValue:    parseValue(v),
					Frequency:   freq,
					IncomeGroup: incomeGroup,
					DataSource:  dataSource,
					ExtractedAt: extracted,
				})
			}
		}

	case t.HasColumn("year"):
		// Already long format.
		for _, rec := range t.Rows {
			series := strings.TrimSpace(rec["data_series"])
			if series == "" {
				continue
			}
			year, err := strconv.Atoi(strings.TrimSpace(rec["year"]))
			if err != nil {
				zap.L().Warn("dropping row with unparseable year",
					zap.String("source", dataSource),
					zap.String("data_series", series),
					zap.String("year", rec["year"]),
				)
				continue
			}
			rows = append(rows, Row{
				DataSeries:  series,
				Year:        year,
				CPIValue:    parseValue(rec["cpi_value"]),
				Frequency:   freq,
				IncomeGroup: incomeGroup,
				DataSource:  dataSource,
				ExtractedAt: extracted,
			})
		}

	default:
		return nil, eris.Wrapf(source.ErrNoData, "normalize: %s payload has no period or year columns", dataSource)
	}

	if len(rows) == 0 {
		return nil, eris.Wrapf(source.ErrNoData, "normalize: %s produced no rows", dataSource)
	}
	return rows, nil
}

// periodLabel keeps the full sub-year label; annual periods carry no
// label at all.
func periodLabel(p Period) string {
	if p.Freq == Annual {
		return ""
	}
	return p.Label
}

// applyRenames maps recognized column labels (case-insensitive, exact
// match) to their canonical names.
func applyRenames(t *source.Table, renames map[string]string) *source.Table {
	mapped := make(map[string]string, len(t.Columns))
	out := source.NewTable()
	for _, col := range t.Columns {
		name := col
		if canonical, ok := renames[strings.ToLower(strings.TrimSpace(col))]; ok {
			name = canonical
		}
		mapped[col] = name
		out.AddColumn(name)
	}
	for _, row := range t.Rows {
		rec := make(map[string]string, len(row))
		for col, v := range row {
			name, ok := mapped[col]
			if !ok {
				name = col
			}
			rec[name] = v
		}
		out.Rows = append(out.Rows, rec)
	}
	return out
}

// parseValue coerces a cell to a decimal CPI value. Malformed or
// negative values become null rather than an error.
func parseValue(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
