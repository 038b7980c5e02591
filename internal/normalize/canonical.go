// Package normalize reshapes raw source tables into the canonical
// long-format CPI schema: one row per (series, period) with an inferred
// frequency and an income-group tag.
package normalize

import (
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is the sub-year granularity of a series, inferred from the
// period column labels of the pre-reshape wide table. Never
// user-supplied.
type Frequency string

const (
	Annual     Frequency = "Annual"
	Semiannual Frequency = "Semiannual"
	Quarterly  Frequency = "Quarterly"
	Monthly    Frequency = "Monthly"
)

// Row is the canonical unit of output. The tuple (DataSeries, Year,
// IncomeGroup, PeriodLabel) is the natural key used by the persistence
// gateway to detect already-loaded data.
type Row struct {
	DataSeries  string              `json:"data_series"`
	Year        int                 `json:"year"`
	PeriodLabel string              `json:"period_label,omitempty"` // empty when frequency is Annual
	CPIValue    decimal.NullDecimal `json:"cpi_value"`
	Frequency   Frequency           `json:"frequency"`
	IncomeGroup string              `json:"income_group"`
	DataSource  string              `json:"data_source"`
	ExtractedAt time.Time           `json:"extraction_timestamp"`
}
