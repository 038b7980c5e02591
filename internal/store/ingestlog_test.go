package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestLogStart(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO cpi.ingest_log").
		WithArgs("sg_gov").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := NewIngestLog(mock).Start(context.Background(), "sg_gov")
	assert.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestLogStart_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO cpi.ingest_log").
		WithArgs("sg_singstat").
		WillReturnError(fmt.Errorf("connection refused"))

	_, err = NewIngestLog(mock).Start(context.Background(), "sg_singstat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingestlog: start sg_singstat")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestLogComplete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE cpi.ingest_log").
		WithArgs(int64(42), "cpi_data/cpi_sg_gov_20240315_103000.csv", int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = NewIngestLog(mock).Complete(context.Background(), 7, 42, "cpi_data/cpi_sg_gov_20240315_103000.csv")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestLogFail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE cpi.ingest_log").
		WithArgs("source: no data", int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = NewIngestLog(mock).Fail(context.Background(), 7, "source: no data")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestLogListAll(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	started := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	completed := started.Add(12 * time.Second)
	artifact := "cpi_data/cpi_sg_gov_20240315_103000.csv"

	rows := pgxmock.NewRows([]string{
		"id", "source", "status", "started_at", "completed_at", "rows_loaded", "artifact", "error",
	}).
		AddRow(int64(2), "sg_singstat", "failed", started, &completed, int64(0), nil, ptr("tabledata: empty envelope")).
		AddRow(int64(1), "sg_gov", "complete", started, &completed, int64(42), &artifact, nil)
	mock.ExpectQuery("SELECT id, source, status").WillReturnRows(rows)

	entries, err := NewIngestLog(mock).ListAll(context.Background())
	assert.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "sg_singstat", entries[0].Source)
	assert.Equal(t, "failed", entries[0].Status)
	assert.Empty(t, entries[0].Artifact)
	assert.Equal(t, "tabledata: empty envelope", entries[0].Error)

	assert.Equal(t, "sg_gov", entries[1].Source)
	assert.Equal(t, int64(42), entries[1].RowsLoaded)
	assert.Equal(t, artifact, entries[1].Artifact)
	assert.Empty(t, entries[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestLogListAll_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, source, status").
		WillReturnError(fmt.Errorf("relation does not exist"))

	_, err = NewIngestLog(mock).ListAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingestlog: list all")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func ptr[T any](v T) *T { return &v }
