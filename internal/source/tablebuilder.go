package source

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sgstats/cpi-ingest/internal/fetcher"
)

// TableBuilder fetches statistical tables from the SingStat Table
// Builder API: a single synchronous GET per table id, returning a JSON
// envelope of row records with nested (key, value) column pairs.
type TableBuilder struct {
	f       fetcher.Fetcher
	baseURL string
}

// NewTableBuilder creates a SingStat Table Builder API client.
func NewTableBuilder(f fetcher.Fetcher, baseURL string) *TableBuilder {
	return &TableBuilder{f: f, baseURL: baseURL}
}

// Name implements Client.
func (c *TableBuilder) Name() string { return "sg_singstat" }

// tabledataEnvelope mirrors the tabledata endpoint response. Data is
// absent or empty when the table id is unknown.
type tabledataEnvelope struct {
	Data []struct {
		RowText string `json:"rowText"`
		Columns []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"columns"`
	} `json:"Data"`
}

// Fetch retrieves one or more table ids and returns the union of their
// flattened payloads: one record per (series, period-key) pair, with
// the portal's raw labels "rowText", "key" and "value".
func (c *TableBuilder) Fetch(ctx context.Context, ids []string) (*Table, error) {
	log := zap.L().With(zap.String("source", c.Name()))
	if len(ids) == 0 {
		log.Warn("no table ids provided")
		return nil, ErrNoData
	}

	merged := NewTable()
	for _, id := range ids {
		t, err := c.fetchOne(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "tablebuilder: fetch")
			}
			log.Warn("skipping table", zap.String("table_id", id), zap.Error(err))
			continue
		}
		merged.Extend(t)
	}

	if merged.Empty() {
		return nil, ErrNoData
	}
	return merged, nil
}

func (c *TableBuilder) fetchOne(ctx context.Context, id string) (*Table, error) {
	url := fmt.Sprintf("%s/api/table/tabledata/%s", c.baseURL, id)

	var envelope tabledataEnvelope
	if err := c.f.GetJSON(ctx, url, &envelope); err != nil {
		return nil, eris.Wrapf(err, "tablebuilder: get tabledata for %s", id)
	}
	if len(envelope.Data) == 0 {
		return nil, eris.Errorf("tablebuilder: no Data field in response for %s", id)
	}

	t := NewTable("rowText", "key", "value")
	for _, rec := range envelope.Data {
		for _, col := range rec.Columns {
			t.Rows = append(t.Rows, map[string]string{
				"rowText": rec.RowText,
				"key":     col.Key,
				"value":   col.Value,
			})
		}
	}

	zap.L().Info("fetched tabledata",
		zap.String("source", c.Name()),
		zap.String("table_id", id),
		zap.Int("records", len(t.Rows)),
	)
	return t, nil
}
