package store

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sgstats/cpi-ingest/internal/db"
	"github.com/sgstats/cpi-ingest/internal/normalize"
)

// Gateway idempotently loads canonical rows into cpi.cpi_data. It reads
// the existing natural keys once, computes the set difference, and
// inserts only the new rows. The existence check is read-then-write
// with no locking: two overlapping runs can race a duplicate into the
// unique index, which then rejects it like any other per-row failure.
type Gateway struct {
	pool db.Pool
}

// NewGateway creates a persistence gateway on the given pool. The
// target table must exist; Migrate is the bootstrap operation.
func NewGateway(pool db.Pool) *Gateway {
	return &Gateway{pool: pool}
}

// naturalKey identifies a persisted row: (series, year, income group,
// period label).
type naturalKey struct {
	series string
	year   int
	income string
	period string
}

func keyOf(r normalize.Row) naturalKey {
	return naturalKey{series: r.DataSeries, year: r.Year, income: r.IncomeGroup, period: r.PeriodLabel}
}

const insertRowSQL = `INSERT INTO cpi.cpi_data
	(data_series, year, period_label, cpi_value, frequency, income_group, data_source, extracted_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Load inserts the rows whose natural key is not yet present and
// returns the number inserted. A single row failing does not abort the
// batch: the row is logged and skipped, and the remainder proceeds.
func (g *Gateway) Load(ctx context.Context, rows []normalize.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	existing, err := g.existingKeys(ctx)
	if err != nil {
		return 0, err
	}

	log := zap.L().With(zap.String("component", "store.gateway"))

	var inserted int64
	for _, row := range rows {
		key := keyOf(row)
		if existing[key] {
			continue
		}

		var value any
		if row.CPIValue.Valid {
			value = row.CPIValue.Decimal
		}

		if _, err := g.pool.Exec(ctx, insertRowSQL,
			row.DataSeries, row.Year, row.PeriodLabel, value,
			string(row.Frequency), row.IncomeGroup, row.DataSource, row.ExtractedAt,
		); err != nil {
			if ctx.Err() != nil {
				return inserted, eris.Wrap(ctx.Err(), "store: load interrupted")
			}
			log.Warn("skipping row",
				zap.String("data_series", row.DataSeries),
				zap.Int("year", row.Year),
				zap.String("period_label", row.PeriodLabel),
				zap.String("income_group", row.IncomeGroup),
				zap.Error(err),
			)
			continue
		}

		// Mark inside the batch too, so a batch containing the same
		// natural key twice still loads it once.
		existing[key] = true
		inserted++
	}

	return inserted, nil
}

// existingKeys reads all persisted natural keys once.
func (g *Gateway) existingKeys(ctx context.Context) (map[naturalKey]bool, error) {
	rows, err := g.pool.Query(ctx,
		"SELECT data_series, year, income_group, period_label FROM cpi.cpi_data")
	if err != nil {
		return nil, eris.Wrap(err, "store: query existing keys")
	}
	defer rows.Close()

	existing := make(map[naturalKey]bool)
	for rows.Next() {
		var k naturalKey
		if err := rows.Scan(&k.series, &k.year, &k.income, &k.period); err != nil {
			return nil, eris.Wrap(err, "store: scan existing key")
		}
		existing[k] = true
	}
	return existing, rows.Err()
}
