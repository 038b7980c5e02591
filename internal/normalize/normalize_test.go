package normalize

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgstats/cpi-ingest/internal/source"
)

var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func testNormalizer(tagger IncomeTagger) *Normalizer {
	n := New(tagger)
	n.Now = func() time.Time { return fixedNow }
	return n
}

func TestDataGov_WideAnnual(t *testing.T) {
	tbl := source.NewTable("DataSeries", "2019", "2020", "2021")
	tbl.Rows = []map[string]string{
		{"DataSeries": "All Items", "2019": "99.4", "2020": "100.0", "2021": "102.3"},
	}

	rows, err := testNormalizer(nil).DataGov(tbl, []string{"d_abc"})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	for i, year := range []int{2019, 2020, 2021} {
		assert.Equal(t, "All Items", rows[i].DataSeries)
		assert.Equal(t, year, rows[i].Year)
		assert.Empty(t, rows[i].PeriodLabel)
		assert.Equal(t, Annual, rows[i].Frequency)
		assert.Equal(t, DefaultIncomeGroup, rows[i].IncomeGroup)
		assert.Equal(t, "sg_gov", rows[i].DataSource)
		assert.Equal(t, fixedNow, rows[i].ExtractedAt)
	}
	assert.Equal(t, "102.3", rows[2].CPIValue.Decimal.String())
	assert.True(t, rows[2].CPIValue.Valid)
}

func TestDataGov_LongFormat(t *testing.T) {
	tbl := source.NewTable("category", "year", "value")
	tbl.Rows = []map[string]string{
		{"category": "Food", "year": "2021", "value": "104.1"},
		{"category": "Food", "year": "not-a-year", "value": "104.1"},
	}

	rows, err := testNormalizer(nil).DataGov(tbl, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1) // unparseable year row dropped

	assert.Equal(t, "Food", rows[0].DataSeries)
	assert.Equal(t, 2021, rows[0].Year)
	assert.Equal(t, Annual, rows[0].Frequency)
	assert.Equal(t, "104.1", rows[0].CPIValue.Decimal.String())
}

func TestDataGov_IncomeGroupFromIdentifier(t *testing.T) {
	tbl := source.NewTable("DataSeries", "2021")
	tbl.Rows = []map[string]string{
		{"DataSeries": "All Items", "2021": "102.3"},
	}

	tagger := NewIncomeTagger(map[string]string{"d_highest": "Highest 20%"})
	rows, err := testNormalizer(tagger).DataGov(tbl, []string{"d_highest"})
	require.NoError(t, err)
	assert.Equal(t, "Highest 20%", rows[0].IncomeGroup)
}

func TestTableBuilder_Semiannual(t *testing.T) {
	tbl := source.NewTable("rowText", "key", "value")
	tbl.Rows = []map[string]string{
		{"rowText": "Food", "key": "2021 1H", "value": "105.2"},
	}

	rows, err := testNormalizer(nil).TableBuilder(tbl, []string{"M212881"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "Food", rows[0].DataSeries)
	assert.Equal(t, 2021, rows[0].Year)
	assert.Equal(t, "2021 1H", rows[0].PeriodLabel)
	assert.Equal(t, Semiannual, rows[0].Frequency)
	assert.Equal(t, "105.2", rows[0].CPIValue.Decimal.String())
	assert.Equal(t, "sg_singstat", rows[0].DataSource)
}

func TestTableBuilder_Quarterly(t *testing.T) {
	tbl := source.NewTable("rowText", "key", "value")
	tbl.Rows = []map[string]string{
		{"rowText": "All Items", "key": "2021 1Q", "value": "101.1"},
		{"rowText": "All Items", "key": "2021 2Q", "value": "101.8"},
	}

	rows, err := testNormalizer(nil).TableBuilder(tbl, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, Quarterly, rows[0].Frequency)
	assert.Equal(t, "2021 1Q", rows[0].PeriodLabel)
	assert.Equal(t, "2021 2Q", rows[1].PeriodLabel)
	assert.Equal(t, 2021, rows[1].Year)
}

func TestDataGov_WideMonthly(t *testing.T) {
	tbl := source.NewTable("DataSeries", "2021 Jan", "2021 Feb")
	tbl.Rows = []map[string]string{
		{"DataSeries": "All Items", "2021 Jan": "101.1", "2021 Feb": "101.3"},
	}

	rows, err := testNormalizer(nil).DataGov(tbl, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, Monthly, rows[0].Frequency)
	assert.Equal(t, "2021 Jan", rows[0].PeriodLabel)
	assert.Equal(t, "101.3", rows[1].CPIValue.Decimal.String())
}

func TestTableBuilder_DuplicateObservationKeepsFirst(t *testing.T) {
	tbl := source.NewTable("rowText", "key", "value")
	tbl.Rows = []map[string]string{
		{"rowText": "Food", "key": "2021", "value": "104.1"},
		{"rowText": "Food", "key": "2021", "value": "999.9"},
	}

	rows, err := testNormalizer(nil).TableBuilder(tbl, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "104.1", rows[0].CPIValue.Decimal.String())
}

func TestTableBuilder_SparseKeyDropsColumn(t *testing.T) {
	// "2021" is observed for Food only; after the pivot the column has
	// a missing value for Clothing, so the cleaner drops it.
	tbl := source.NewTable("rowText", "key", "value")
	tbl.Rows = []map[string]string{
		{"rowText": "Food", "key": "2020", "value": "100.0"},
		{"rowText": "Food", "key": "2021", "value": "104.1"},
		{"rowText": "Clothing", "key": "2020", "value": "98.7"},
	}

	rows, err := testNormalizer(nil).TableBuilder(tbl, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, 2020, r.Year)
	}
}

func TestTableBuilder_MissingColumns(t *testing.T) {
	tbl := source.NewTable("foo", "bar")
	tbl.Rows = []map[string]string{{"foo": "x", "bar": "y"}}

	_, err := testNormalizer(nil).TableBuilder(tbl, nil)
	require.Error(t, err)
	assert.True(t, eris.Is(err, source.ErrNoData))
}

func TestScrape_WideTable(t *testing.T) {
	tbl := source.NewTable("Data Series", "2020", "2021")
	tbl.Rows = []map[string]string{
		{"Data Series": "All Items", "2020": "100.0", "2021": "102.3"},
	}

	rows, err := testNormalizer(nil).Scrape(tbl, []string{"https://tablebuilder.singstat.gov.sg/table/TS/M212881"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "sg_singstat_scrape", rows[0].DataSource)
	assert.Equal(t, Annual, rows[0].Frequency)
}

func TestToCanonical_EmptyAfterCleaning(t *testing.T) {
	tbl := source.NewTable("DataSeries", "2021")
	tbl.Rows = []map[string]string{
		{"DataSeries": "", "2021": ""},
	}

	_, err := testNormalizer(nil).DataGov(tbl, nil)
	require.Error(t, err)
	assert.True(t, eris.Is(err, source.ErrNoData))
}

func TestToCanonical_NoPeriodOrYearColumns(t *testing.T) {
	tbl := source.NewTable("DataSeries", "notes")
	tbl.Rows = []map[string]string{
		{"DataSeries": "All Items", "notes": "revised"},
	}

	_, err := testNormalizer(nil).DataGov(tbl, nil)
	require.Error(t, err)
	assert.True(t, eris.Is(err, source.ErrNoData))
}

func TestToCanonical_BlankSeriesRowsSkipped(t *testing.T) {
	tbl := source.NewTable("DataSeries", "2021")
	tbl.Rows = []map[string]string{
		{"DataSeries": "All Items", "2021": "102.3"},
		{"DataSeries": "  ", "2021": "55.5"},
	}

	rows, err := testNormalizer(nil).DataGov(tbl, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "All Items", rows[0].DataSeries)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
		want  string
	}{
		{"102.3", true, "102.3"},
		{" 102.3 ", true, "102.3"},
		{"0", true, "0"},
		{"", false, ""},
		{"n.a.", false, ""},
		{"-1.5", false, ""}, // index values are never negative
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseValue(tt.in)
			assert.Equal(t, tt.valid, got.Valid)
			if tt.valid {
				assert.Equal(t, tt.want, got.Decimal.String())
			}
		})
	}
}
