// Package pipeline sequences the ingest run: for each configured
// source, fetch, normalize, write the CSV artifact, and optionally load
// into Postgres. Sources are processed one at a time, in a fixed order;
// one source failing degrades the run but never aborts it.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sgstats/cpi-ingest/internal/artifact"
	"github.com/sgstats/cpi-ingest/internal/normalize"
	"github.com/sgstats/cpi-ingest/internal/source"
	"github.com/sgstats/cpi-ingest/internal/store"
)

// ErrNoSourceEnabled is the fatal configuration failure: every source
// is missing identifiers, so there is nothing to run.
var ErrNoSourceEnabled = eris.New("pipeline: no data source enabled")

// ErrAllSourcesFailed reports that every attempted source produced
// nothing; the run wrote no artifacts.
var ErrAllSourcesFailed = eris.New("pipeline: all sources failed")

// Source pairs a client with its identifiers and the matching
// normalizer branch. A source with no identifiers is skipped silently.
type Source struct {
	Client    source.Client
	IDs       []string
	Normalize func(*source.Table, []string) ([]normalize.Row, error)
}

// SourceResult is the per-source outcome of a run.
type SourceResult struct {
	Name       string
	Artifact   string
	Rows       int
	RowsLoaded int64
	Err        error
}

// Status classifies the overall outcome of a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Result aggregates the run's artifacts and per-source outcomes.
type Result struct {
	Sources        []SourceResult
	Artifacts      []string
	MergedArtifact string
}

// Failures returns the sources that produced nothing.
func (r *Result) Failures() []SourceResult {
	var out []SourceResult
	for _, s := range r.Sources {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// Status reports success, partial success, or total failure.
func (r *Result) Status() Status {
	failed := len(r.Failures())
	switch {
	case failed == 0:
		return StatusSuccess
	case failed == len(r.Sources):
		return StatusFailed
	default:
		return StatusPartial
	}
}

// Options configures a Runner beyond its source list.
type Options struct {
	OutDir  string
	Merge   bool
	Gateway *store.Gateway   // nil disables loading
	Log     *store.IngestLog // nil disables run bookkeeping
}

// Runner executes the pipeline over a fixed sequence of sources.
type Runner struct {
	sources []Source
	opts    Options

	// now stamps artifact filenames; overridable in tests.
	now func() time.Time
}

// NewRunner creates a Runner. Source order is preserved.
func NewRunner(sources []Source, opts Options) *Runner {
	return &Runner{sources: sources, opts: opts, now: time.Now}
}

// Run processes each configured source to completion before the next
// begins. It returns ErrNoSourceEnabled before any network activity
// when nothing is configured, and ErrAllSourcesFailed when every
// attempted source produced nothing. Individual failures are collected
// in the Result, not propagated.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	log := zap.L().With(zap.String("component", "pipeline"))

	attempted := 0
	for _, s := range r.sources {
		if len(s.IDs) > 0 {
			attempted++
		}
	}
	if attempted == 0 {
		return nil, ErrNoSourceEnabled
	}

	result := &Result{}
	for _, s := range r.sources {
		if len(s.IDs) == 0 {
			log.Debug("source not configured, skipping", zap.String("source", s.Client.Name()))
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, eris.Wrap(err, "pipeline: run interrupted")
		}

		res := r.processSource(ctx, s)
		result.Sources = append(result.Sources, res)
		if res.Artifact != "" {
			result.Artifacts = append(result.Artifacts, res.Artifact)
		}
	}

	if len(result.Artifacts) == 0 {
		return result, ErrAllSourcesFailed
	}

	if r.opts.Merge && len(result.Artifacts) > 0 {
		merged, err := artifact.Merge(r.opts.OutDir, result.Artifacts, r.now())
		if err != nil {
			log.Warn("merge failed", zap.Error(err))
		} else {
			result.MergedArtifact = merged
			log.Info("wrote merged artifact", zap.String("path", merged))
		}
	}

	log.Info("run complete",
		zap.String("status", string(result.Status())),
		zap.Int("sources", len(result.Sources)),
		zap.Int("artifacts", len(result.Artifacts)),
	)
	return result, nil
}

// processSource runs one source end to end: fetch, normalize, artifact,
// optional load. Failures are returned in the SourceResult and recorded
// in the ingest log when one is configured.
func (r *Runner) processSource(ctx context.Context, s Source) SourceResult {
	name := s.Client.Name()
	log := zap.L().With(zap.String("source", name))
	res := SourceResult{Name: name}

	var logID int64
	if r.opts.Log != nil {
		id, err := r.opts.Log.Start(ctx, name)
		if err != nil {
			log.Warn("ingest log unavailable", zap.Error(err))
		} else {
			logID = id
		}
	}

	fail := func(err error) SourceResult {
		res.Err = err
		if eris.Is(err, source.ErrNoData) {
			log.Warn("source produced no data", zap.Error(err))
		} else {
			log.Error("source failed", zap.Error(err))
		}
		if logID != 0 {
			if logErr := r.opts.Log.Fail(ctx, logID, err.Error()); logErr != nil {
				log.Warn("failed to record ingest failure", zap.Error(logErr))
			}
		}
		return res
	}

	log.Info("fetching", zap.Strings("ids", s.IDs))
	table, err := s.Client.Fetch(ctx, s.IDs)
	if err != nil {
		return fail(err)
	}

	rows, err := s.Normalize(table, s.IDs)
	if err != nil {
		return fail(err)
	}
	res.Rows = len(rows)

	path, err := artifact.WriteCSV(r.opts.OutDir, name, rows, r.now())
	if err != nil {
		return fail(err)
	}
	res.Artifact = path
	log.Info("wrote artifact", zap.String("path", path), zap.Int("rows", len(rows)))

	if r.opts.Gateway != nil {
		loaded, err := r.opts.Gateway.Load(ctx, rows)
		res.RowsLoaded = loaded
		if err != nil {
			// The artifact is on disk; only the load failed.
			return fail(eris.Wrapf(err, "pipeline: load %s", name))
		}
		log.Info("loaded rows", zap.Int64("inserted", loaded), zap.Int("batch", len(rows)))
	}

	if logID != 0 {
		if err := r.opts.Log.Complete(ctx, logID, res.RowsLoaded, path); err != nil {
			log.Warn("failed to record ingest completion", zap.Error(err))
		}
	}
	return res
}
