// Package artifact writes normalized CPI rows to timestamped CSV files.
// Artifacts are never mutated after write; later runs supersede them
// via the timestamp in the filename.
package artifact

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sgstats/cpi-ingest/internal/normalize"
)

// Columns is the canonical artifact header, in output order.
var Columns = []string{
	"data_series",
	"year",
	"period_label",
	"cpi_value",
	"frequency",
	"income_group",
	"data_source",
	"extraction_timestamp",
}

const timestampLayout = "2006-01-02 15:04:05"

// WriteCSV writes one source's canonical rows to
// <dir>/cpi_<source>_<YYYYMMDD_HHMMSS>.csv and returns the path.
func WriteCSV(dir, sourceName string, rows []normalize.Row, ts time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "artifact: create output dir %s", dir)
	}

	name := fmt.Sprintf("cpi_%s_%s.csv", sourceName, ts.Format("20060102_150405"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "artifact: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(Columns); err != nil {
		return "", eris.Wrap(err, "artifact: write header")
	}
	for _, row := range rows {
		if err := w.Write(buildRecord(row)); err != nil {
			return "", eris.Wrap(err, "artifact: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", eris.Wrapf(err, "artifact: flush %s", path)
	}

	return path, nil
}

// Merge concatenates previously written artifacts into a single
// combined file at <dir>/cpi_combined_<YYYYMMDD_HHMMSS>.csv, keeping
// one header row.
func Merge(dir string, paths []string, ts time.Time) (string, error) {
	if len(paths) == 0 {
		return "", eris.New("artifact: nothing to merge")
	}

	outPath := filepath.Join(dir, fmt.Sprintf("cpi_combined_%s.csv", ts.Format("20060102_150405")))
	out, err := os.Create(outPath)
	if err != nil {
		return "", eris.Wrapf(err, "artifact: create %s", outPath)
	}
	defer out.Close() //nolint:errcheck

	w := csv.NewWriter(out)
	defer w.Flush()

	if err := w.Write(Columns); err != nil {
		return "", eris.Wrap(err, "artifact: write merged header")
	}

	for _, path := range paths {
		if err := appendRows(w, path); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", eris.Wrapf(err, "artifact: flush %s", outPath)
	}
	return outPath, nil
}

func appendRows(w *csv.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "artifact: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrapf(err, "artifact: read %s", path)
		}
		if first {
			first = false
			continue // skip per-file header
		}
		if err := w.Write(record); err != nil {
			return eris.Wrapf(err, "artifact: append from %s", path)
		}
	}
}

func buildRecord(row normalize.Row) []string {
	value := ""
	if row.CPIValue.Valid {
		value = row.CPIValue.Decimal.String()
	}
	return []string{
		row.DataSeries,
		strconv.Itoa(row.Year),
		row.PeriodLabel,
		value,
		string(row.Frequency),
		row.IncomeGroup,
		row.DataSource,
		row.ExtractedAt.Format(timestampLayout),
	}
}
