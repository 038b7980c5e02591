package source

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sgstats/cpi-ingest/internal/fetcher"
)

// TBScrape extracts a statistical table from the Table Builder portal's
// rendered HTML page. Fallback for when the tabledata API is not
// usable; it expects a <table class="data-table"> element.
type TBScrape struct {
	f fetcher.Fetcher
}

// NewTBScrape creates a Table Builder scrape client. The identifiers
// passed to Fetch are full page URLs rather than table ids.
func NewTBScrape(f fetcher.Fetcher) *TBScrape {
	return &TBScrape{f: f}
}

// Name implements Client.
func (c *TBScrape) Name() string { return "sg_singstat_scrape" }

// Fetch retrieves one or more table page URLs and returns the union of
// the extracted tables.
func (c *TBScrape) Fetch(ctx context.Context, urls []string) (*Table, error) {
	log := zap.L().With(zap.String("source", c.Name()))
	if len(urls) == 0 {
		log.Warn("no table urls provided")
		return nil, ErrNoData
	}

	merged := NewTable()
	for _, u := range urls {
		t, err := c.fetchOne(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "tbscrape: fetch")
			}
			log.Warn("skipping page", zap.String("url", u), zap.Error(err))
			continue
		}
		merged.Extend(t)
	}

	if merged.Empty() {
		return nil, ErrNoData
	}
	return merged, nil
}

func (c *TBScrape) fetchOne(ctx context.Context, pageURL string) (*Table, error) {
	body, err := c.f.Download(ctx, pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "tbscrape: get %s", pageURL)
	}
	defer body.Close() //nolint:errcheck

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, eris.Wrapf(err, "tbscrape: parse html from %s", pageURL)
	}

	table := doc.Find("table.data-table").First()
	if table.Length() == 0 {
		return nil, eris.Errorf("tbscrape: no data-table element on %s", pageURL)
	}

	return extractTable(table), nil
}

// extractTable reads header cells as column labels and body rows as
// records. Rows shorter than the header leave trailing columns unset.
func extractTable(table *goquery.Selection) *Table {
	var header []string
	table.Find("tr").First().Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		header = append(header, strings.TrimSpace(cell.Text()))
	})

	t := NewTable(header...)
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return // header row
		}
		record := make(map[string]string, len(header))
		row.Find("th, td").Each(func(j int, cell *goquery.Selection) {
			if j < len(header) {
				record[header[j]] = strings.TrimSpace(cell.Text())
			}
		})
		if len(record) > 0 {
			t.Rows = append(t.Rows, record)
		}
	})

	return t
}
