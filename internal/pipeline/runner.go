// Package pipeline runs the batch export: it resolves dimensions once, then
// takes each dataset in publication order through extract, transform,
// materialize and publish before starting the next one.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"imisexport/internal/dataset"
	"imisexport/internal/dimension"
	"imisexport/internal/materialize"
	"imisexport/internal/metrics"
	"imisexport/internal/paginate"
	"imisexport/internal/source"
	"imisexport/internal/warehouse"
)

// Publisher replaces a warehouse table with a finalized dataset.
type Publisher interface {
	Publish(ctx context.Context, table string, src warehouse.Source) (warehouse.Result, error)
}

// DatasetSummary reports one dataset of a run.
type DatasetSummary struct {
	Name        string
	Table       string
	Pages       int64
	Fetched     int64
	Rows        int64
	Skipped     int64
	Published   int64
	Fingerprint string
	Duration    time.Duration
}

// Summary reports a run. Datasets holds every dataset that completed, in
// order; a failed run stops after the last completed one.
type Summary struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Datasets []DatasetSummary
}

// Runner executes export runs.
type Runner struct {
	Source    source.Source
	Publisher Publisher
	WorkDir   string
	// PageSize returns the page size for a dataset; nil uses the default.
	PageSize func(dataset string) int
	// Now is the reference time for ages; nil uses time.Now.
	Now    func() time.Time
	Logger zerolog.Logger
}

// New returns a Runner logging through the global logger.
func New(src source.Source, pub Publisher, workDir string, pageSize func(string) int) *Runner {
	return &Runner{
		Source:    src,
		Publisher: pub,
		WorkDir:   workDir,
		PageSize:  pageSize,
		Logger:    log.With().Str("component", "pipeline").Logger(),
	}
}

// Run publishes the named datasets, or all of them when names is empty.
func (r *Runner) Run(ctx context.Context, names ...string) (Summary, error) {
	specs, err := dataset.Select(names...)
	if err != nil {
		return Summary{}, err
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	sum := Summary{RunID: uuid.NewString(), Started: now()}
	logger := r.Logger.With().Str("run_id", sum.RunID).Logger()
	logger.Info().Int("datasets", len(specs)).Msg("export run started")

	t0 := time.Now()
	maps, err := dimension.Resolve(ctx, r.Source, logger)
	metrics.RecordStep("dimensions", "resolve", err, time.Since(t0))
	if err != nil {
		logger.Error().Err(err).Msg("dimension resolution failed")
		return sum, err
	}

	for _, spec := range specs {
		ds, err := r.runDataset(ctx, logger, spec, dataset.Env{
			Source:   r.Source,
			Maps:     maps,
			Now:      sum.Started,
			PageSize: r.pageSize(spec.Name),
		})
		if err != nil {
			sum.Duration = time.Since(t0)
			logger.Error().Err(err).Str("dataset", spec.Name).Int("completed", len(sum.Datasets)).Msg("export run failed")
			return sum, fmt.Errorf("dataset %s: %w", spec.Name, err)
		}
		sum.Datasets = append(sum.Datasets, ds)
	}

	sum.Duration = time.Since(t0)
	logger.Info().Int("datasets", len(sum.Datasets)).Dur("took", sum.Duration).Msg("export run finished")
	return sum, nil
}

func (r *Runner) pageSize(name string) int {
	if r.PageSize != nil {
		if n := r.PageSize(name); n > 0 {
			return n
		}
	}
	return paginate.DefaultSize
}

func (r *Runner) runDataset(ctx context.Context, logger zerolog.Logger, spec dataset.Spec, env dataset.Env) (DatasetSummary, error) {
	out := DatasetSummary{Name: spec.Name, Table: spec.Table}
	logger = logger.With().Str("dataset", spec.Name).Logger()
	start := time.Now()

	file, err := materialize.New(r.WorkDir, spec.Name, spec.Header)
	if err != nil {
		return out, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("could not remove temp file")
		}
	}()

	err = spec.Extract(ctx, env, func(b dataset.Batch) error {
		out.Pages++
		out.Fetched += int64(b.Fetched)
		out.Rows += int64(len(b.Rows))
		out.Skipped += int64(len(b.Skipped))
		for _, s := range b.Skipped {
			logger.Warn().Err(s.Err).Str("key", s.Key).Int("page", b.Page).Msg("record skipped")
		}
		logger.Info().
			Str("phase", b.Phase).
			Int("page", b.Page).
			Int("fetched", b.Fetched).
			Int64("rows_total", out.Rows).
			Msg("page transformed")
		return file.Append(b.Rows...)
	})
	metrics.RecordStep(spec.Name, "extract", err, time.Since(start))
	metrics.RecordPages(spec.Name, out.Pages)
	metrics.RecordRows(spec.Name, metrics.RowsExtracted, out.Rows)
	metrics.RecordRows(spec.Name, metrics.RowsSkipped, out.Skipped)
	if err != nil {
		return out, err
	}

	st, err := file.Finalize()
	if err != nil {
		return out, err
	}
	out.Fingerprint = st.FingerprintHex()
	logger.Info().
		Int64("pages", out.Pages).
		Int64("rows", st.Rows).
		Int64("skipped", out.Skipped).
		Str("fingerprint", out.Fingerprint).
		Msg("dataset materialized")

	pubStart := time.Now()
	res, err := r.Publisher.Publish(ctx, spec.Table, file)
	metrics.RecordStep(spec.Name, "publish", err, time.Since(pubStart))
	if err != nil {
		return out, err
	}
	out.Published = res.Rows
	metrics.RecordRows(spec.Name, metrics.RowsPublished, res.Rows)

	out.Duration = time.Since(start)
	logger.Info().Int64("published", out.Published).Dur("took", out.Duration).Msg("dataset published")
	return out, nil
}
