package main

import (
	"encoding/json"
	"os"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sgstats/cpi-ingest/internal/fetcher"
	"github.com/sgstats/cpi-ingest/internal/normalize"
	"github.com/sgstats/cpi-ingest/internal/pipeline"
	"github.com/sgstats/cpi-ingest/internal/source"
	"github.com/sgstats/cpi-ingest/internal/store"
)

var (
	runGovIDs     []string
	runTableIDs   []string
	runScrapeURLs []string
	runOutDir     string
	runMerge      bool
	runLoad       bool
)

// tableIDRe matches SingStat Table Builder resource ids, e.g. M212881.
var tableIDRe = regexp.MustCompile(`^M\d+$`)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, normalize, and store CPI data",
	Long:  "Runs the full pipeline for every configured source: fetch raw tables, normalize to canonical rows, write a timestamped CSV artifact per source, and optionally load into Postgres.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Identifier validation happens before any network call.
		for _, id := range runTableIDs {
			if !tableIDRe.MatchString(id) {
				return eris.Errorf("invalid table id %q: must match M<digits> (e.g. M212881)", id)
			}
		}
		if len(runGovIDs)+len(runTableIDs)+len(runScrapeURLs) == 0 {
			return pipeline.ErrNoSourceEnabled
		}

		outDir := runOutDir
		if outDir == "" {
			outDir = cfg.Output.Dir
		}

		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:    cfg.HTTP.UserAgent,
			Timeout:      time.Duration(cfg.HTTP.TimeoutSecs) * time.Second,
			MaxRetries:   cfg.HTTP.MaxRetries,
			RateLimiters: fetcher.DefaultRateLimiters(),
		})

		norm := normalize.New(normalize.NewIncomeTagger(cfg.IncomeGroups))

		sources := []pipeline.Source{
			{
				Client:    source.NewDataGov(f, cfg.DataGov.BaseURL, cfg.DataGov.PollAttempts, time.Duration(cfg.DataGov.PollDelaySecs)*time.Second),
				IDs:       runGovIDs,
				Normalize: norm.DataGov,
			},
			{
				Client:    source.NewTableBuilder(f, cfg.TableBuilder.BaseURL),
				IDs:       runTableIDs,
				Normalize: norm.TableBuilder,
			},
			{
				Client:    source.NewTBScrape(f),
				IDs:       runScrapeURLs,
				Normalize: norm.Scrape,
			},
		}

		opts := pipeline.Options{
			OutDir: outDir,
			Merge:  runMerge || cfg.Output.Merge,
		}

		if runLoad {
			pool, err := storePool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := store.Migrate(ctx, pool); err != nil {
				return eris.Wrap(err, "migrate store")
			}

			opts.Gateway = store.NewGateway(pool)
			opts.Log = store.NewIngestLog(pool)
		}

		result, err := pipeline.NewRunner(sources, opts).Run(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		for _, failed := range result.Failures() {
			zap.L().Warn("source produced no data",
				zap.String("source", failed.Name),
				zap.Error(failed.Err),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runSummary(result))
	},
}

// summary is the JSON printed to stdout after a run.
type summary struct {
	Status         string          `json:"status"`
	Sources        []sourceSummary `json:"sources"`
	Artifacts      []string        `json:"artifacts"`
	MergedArtifact string          `json:"merged_artifact,omitempty"`
}

type sourceSummary struct {
	Name       string `json:"name"`
	Rows       int    `json:"rows"`
	RowsLoaded int64  `json:"rows_loaded"`
	Artifact   string `json:"artifact,omitempty"`
	Error      string `json:"error,omitempty"`
}

func runSummary(r *pipeline.Result) summary {
	s := summary{
		Status:         string(r.Status()),
		Artifacts:      r.Artifacts,
		MergedArtifact: r.MergedArtifact,
	}
	for _, src := range r.Sources {
		ss := sourceSummary{
			Name:       src.Name,
			Rows:       src.Rows,
			RowsLoaded: src.RowsLoaded,
			Artifact:   src.Artifact,
		}
		if src.Err != nil {
			ss.Error = src.Err.Error()
		}
		s.Sources = append(s.Sources, ss)
	}
	return s
}

func init() {
	runCmd.Flags().StringSliceVar(&runGovIDs, "gov-id", nil, "data.gov.sg dataset id (repeatable)")
	runCmd.Flags().StringSliceVar(&runTableIDs, "table-id", nil, "SingStat Table Builder table id, e.g. M212881 (repeatable)")
	runCmd.Flags().StringSliceVar(&runScrapeURLs, "scrape-url", nil, "SingStat table page URL to scrape as fallback (repeatable)")
	runCmd.Flags().StringVar(&runOutDir, "out", "", "artifact output directory (default from config)")
	runCmd.Flags().BoolVar(&runMerge, "merge", false, "also write a combined artifact across sources")
	runCmd.Flags().BoolVar(&runLoad, "load", false, "load normalized rows into Postgres")
	rootCmd.AddCommand(runCmd)
}
