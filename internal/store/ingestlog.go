package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sgstats/cpi-ingest/internal/db"
)

// IngestEntry represents a row in cpi.ingest_log: one per (run, source).
type IngestEntry struct {
	ID          int64      `json:"id"`
	Source      string     `json:"source"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	RowsLoaded  int64      `json:"rows_loaded"`
	Artifact    string     `json:"artifact,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// IngestLog provides read/write access to the cpi.ingest_log table.
type IngestLog struct {
	pool db.Pool
}

// NewIngestLog creates an IngestLog backed by the given pool.
func NewIngestLog(pool db.Pool) *IngestLog {
	return &IngestLog{pool: pool}
}

// Start records the beginning of a source ingest and returns its ID.
func (l *IngestLog) Start(ctx context.Context, sourceName string) (int64, error) {
	var id int64
	err := l.pool.QueryRow(ctx,
		`INSERT INTO cpi.ingest_log (source, status, started_at)
		 VALUES ($1, 'running', now()) RETURNING id`,
		sourceName,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "ingestlog: start %s", sourceName)
	}
	return id, nil
}

// Complete marks a source ingest as successful.
func (l *IngestLog) Complete(ctx context.Context, id int64, rowsLoaded int64, artifact string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE cpi.ingest_log
		 SET status = 'complete', completed_at = now(), rows_loaded = $1, artifact = $2
		 WHERE id = $3`,
		rowsLoaded, artifact, id,
	)
	if err != nil {
		return eris.Wrapf(err, "ingestlog: complete %d", id)
	}
	return nil
}

// Fail marks a source ingest as failed with an error message.
func (l *IngestLog) Fail(ctx context.Context, id int64, errMsg string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE cpi.ingest_log
		 SET status = 'failed', completed_at = now(), error = $1
		 WHERE id = $2`,
		errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "ingestlog: fail %d", id)
	}
	return nil
}

// ListAll returns all ingest log entries, most recent first.
func (l *IngestLog) ListAll(ctx context.Context) ([]IngestEntry, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, source, status, started_at, completed_at, rows_loaded, artifact, error
		 FROM cpi.ingest_log ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ingestlog: list all")
	}
	defer rows.Close()

	var entries []IngestEntry
	for rows.Next() {
		var e IngestEntry
		var completedAt *time.Time
		var artifact, errStr *string
		if err := rows.Scan(&e.ID, &e.Source, &e.Status, &e.StartedAt, &completedAt, &e.RowsLoaded, &artifact, &errStr); err != nil {
			return nil, eris.Wrap(err, "ingestlog: scan entry")
		}
		e.CompletedAt = completedAt
		if artifact != nil {
			e.Artifact = *artifact
		}
		if errStr != nil {
			e.Error = *errStr
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
