package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sgstats/cpi-ingest/internal/fetcher"
)

// DataGov fetches datasets from the data.gov.sg open-data API. The
// portal exports asynchronously: initiate a download, poll until a
// download URL appears, then fetch the CSV at that URL.
type DataGov struct {
	f            fetcher.Fetcher
	baseURL      string
	pollAttempts int
	pollDelay    time.Duration
}

// NewDataGov creates a data.gov.sg client.
func NewDataGov(f fetcher.Fetcher, baseURL string, pollAttempts int, pollDelay time.Duration) *DataGov {
	if pollAttempts <= 0 {
		pollAttempts = 5
	}
	return &DataGov{f: f, baseURL: baseURL, pollAttempts: pollAttempts, pollDelay: pollDelay}
}

// Name implements Client.
func (c *DataGov) Name() string { return "sg_gov" }

// initiateResponse is the envelope of the initiate-download endpoint.
type initiateResponse struct {
	Data struct {
		Message string `json:"message"`
	} `json:"data"`
}

// pollResponse is the envelope of the poll-download endpoint. URL is
// empty until the export job completes.
type pollResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Fetch retrieves one or more dataset ids and returns the union of the
// downloaded tables. A dataset whose export never completes within the
// poll budget is skipped with a warning.
func (c *DataGov) Fetch(ctx context.Context, ids []string) (*Table, error) {
	log := zap.L().With(zap.String("source", c.Name()))
	if len(ids) == 0 {
		log.Warn("no dataset ids provided")
		return nil, ErrNoData
	}

	merged := NewTable()
	for _, id := range ids {
		t, err := c.fetchOne(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "datagov: fetch")
			}
			log.Warn("skipping dataset", zap.String("dataset_id", id), zap.Error(err))
			continue
		}
		merged.Extend(t)
	}

	if merged.Empty() {
		return nil, ErrNoData
	}
	return merged, nil
}

func (c *DataGov) fetchOne(ctx context.Context, id string) (*Table, error) {
	log := zap.L().With(zap.String("source", c.Name()), zap.String("dataset_id", id))
	log.Info("initiating download")

	var initiate initiateResponse
	initiateURL := fmt.Sprintf("%s/v1/public/api/datasets/%s/initiate-download", c.baseURL, id)
	if err := c.f.GetJSON(ctx, initiateURL, &initiate); err != nil {
		return nil, eris.Wrapf(err, "datagov: initiate download for %s", id)
	}
	if initiate.Data.Message != "" {
		log.Info("download initiated", zap.String("message", initiate.Data.Message))
	}

	downloadURL, err := c.pollDownloadURL(ctx, id)
	if err != nil {
		return nil, err
	}
	log.Info("download ready", zap.String("url", downloadURL))

	body, err := c.f.Download(ctx, downloadURL)
	if err != nil {
		return nil, eris.Wrapf(err, "datagov: download csv for %s", id)
	}
	defer body.Close() //nolint:errcheck

	t, err := readCSVTable(body)
	if err != nil {
		return nil, eris.Wrapf(err, "datagov: parse csv for %s", id)
	}
	return t, nil
}

// pollDownloadURL polls the export status a fixed number of times with
// a fixed delay, returning the download URL once it appears.
func (c *DataGov) pollDownloadURL(ctx context.Context, id string) (string, error) {
	pollURL := fmt.Sprintf("%s/v1/public/api/datasets/%s/poll-download", c.baseURL, id)

	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		var poll pollResponse
		if err := c.f.GetJSON(ctx, pollURL, &poll); err != nil {
			return "", eris.Wrapf(err, "datagov: poll download for %s", id)
		}
		if poll.Data.URL != "" {
			return poll.Data.URL, nil
		}

		t := time.NewTimer(c.pollDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", eris.Wrap(ctx.Err(), "datagov: poll wait")
		case <-t.C:
		}
	}

	return "", eris.Errorf("datagov: download not ready after %d polls for %s", c.pollAttempts, id)
}

// readCSVTable parses a CSV stream with a header row into a Table.
func readCSVTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "read csv header")
	}

	t := NewTable(header...)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read csv row")
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}
