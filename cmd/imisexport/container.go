package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"imisexport/internal/api"
	"imisexport/internal/apperr"
	"imisexport/internal/config"
	"imisexport/internal/export"
	"imisexport/internal/metrics"
	"imisexport/internal/metrics/datadog"
	"imisexport/internal/metrics/prompush"
	"imisexport/internal/pipeline"
	"imisexport/internal/schedule"
	"imisexport/internal/sequence"
	"imisexport/internal/sequence/pgstore"
	"imisexport/internal/source"
	"imisexport/internal/source/sqlsource"
	"imisexport/internal/warehouse"
)

// Function variables used to introduce test seams.
// In production these point to real implementations; tests can override them.
var (
	newSourceFn = func(ctx context.Context, cfg *config.Config) (source.Source, func(), error) {
		r, err := sqlsource.Open(ctx, cfg.SourceDialect, cfg.SourceDSN)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	}

	newWarehouseFn = warehouse.New

	newSequenceStoreFn = func(ctx context.Context, dsn string) (sequence.Store, func(), error) {
		s, closeFn, err := pgstore.Open(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return s, closeFn, nil
	}

	newExporterFn = func(ctx context.Context, cfg *config.Config) (api.Exporter, func(), error) {
		r, err := sqlsource.Open(ctx, cfg.SourceDialect, cfg.SourceDSN)
		if err != nil {
			return nil, nil, err
		}
		return export.New(export.Builtin(), r.DB(), r.Dialect(), cfg.ExportDir), func() { _ = r.Close() }, nil
	}
)

// checkConfig fails before any extraction when the configuration has
// errors. Warnings are logged.
func checkConfig(cfg *config.Config) error {
	if err := cfg.RequireWarehouse(); err != nil {
		return err
	}
	issues := config.Validate(cfg)
	var errs []string
	for _, iss := range issues {
		if iss.Severity == config.SeverityError {
			errs = append(errs, iss.Path+": "+iss.Message)
			continue
		}
		log.Warn().Str("key", iss.Path).Msg(iss.Message)
	}
	if len(errs) > 0 {
		return apperr.Config("config", "invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// initMetrics installs the configured backend and returns its flush.
// Backend failures only disable metrics.
func initMetrics(cfg *config.Config) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch cfg.MetricsBackend {
	case "pushgateway":
		if cfg.PushgatewayURL == "" {
			return func() {}
		}
		b, err = prompush.NewBackend(prompush.DefaultJob, cfg.PushgatewayURL)
	case "datadog":
		if cfg.DatadogAddr == "" {
			return func() {}
		}
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.DatadogAddr,
			GlobalTags: []string{"env:" + cfg.Env},
		})
	default:
		return func() {}
	}
	if err != nil {
		log.Warn().Err(err).Str("backend", cfg.MetricsBackend).Msg("metrics backend unavailable; metrics disabled")
		return func() {}
	}
	metrics.SetBackend(b)
	log.Info().Str("backend", cfg.MetricsBackend).Msg("metrics enabled")
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn().Err(err).Msg("metrics flush failed")
		}
	}
}

func warehouseConfig(w config.Warehouse) warehouse.Config {
	return warehouse.Config{
		Kind:     w.Kind,
		DSN:      w.DSN,
		User:     w.User,
		Password: w.Password,
		Host:     w.Host,
		Port:     w.Port,
		Database: w.Database,
	}
}

// runPublish executes one export run.
func runPublish(ctx context.Context, cfg *config.Config, datasets []string) (pipeline.Summary, error) {
	src, closeSrc, err := newSourceFn(ctx, cfg)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer closeSrc()

	repo, err := newWarehouseFn(ctx, warehouseConfig(cfg.Warehouse))
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer repo.Close()

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return pipeline.Summary{}, apperr.Config("publish", "work dir %s: %v", cfg.WorkDir, err)
	}

	pub := warehouse.NewPublisher(repo, warehouse.Strategy(cfg.PublishStrategy), cfg.LoadBatchSize)
	r := pipeline.New(src, pub, cfg.WorkDir, cfg.PageSizeFor)
	sum, err := r.Run(ctx, datasets...)
	logSummary(sum)
	return sum, err
}

func logSummary(sum pipeline.Summary) {
	for _, d := range sum.Datasets {
		log.Info().
			Str("run_id", sum.RunID).
			Str("dataset", d.Name).
			Str("table", d.Table).
			Int64("rows", d.Rows).
			Int64("skipped", d.Skipped).
			Int64("published", d.Published).
			Str("fingerprint", d.Fingerprint).
			Dur("took", d.Duration).
			Msg("dataset summary")
	}
}

func newScheduler(cfg *config.Config, datasets []string) (*schedule.Scheduler, error) {
	return schedule.New(cfg.ScheduleCron, cfg.LockFile, func(ctx context.Context) error {
		flush := initMetrics(cfg)
		defer flush()
		_, err := runPublish(ctx, cfg, datasets)
		return err
	})
}

// runLocked runs one export under the scheduler's lock so a manual publish
// never overlaps a scheduled one.
func runLocked(ctx context.Context, cfg *config.Config, datasets []string) error {
	s, err := schedule.New(cfg.ScheduleCron, cfg.LockFile, func(ctx context.Context) error {
		_, err := runPublish(ctx, cfg, datasets)
		return err
	})
	if err != nil {
		return err
	}
	err = s.RunOnce(ctx)
	if errors.Is(err, schedule.ErrBusy) {
		return fmt.Errorf("%w (lock file %s)", err, cfg.LockFile)
	}
	return err
}

func serve(ctx context.Context, cfg *config.Config) error {
	exp, closeExp, err := newExporterFn(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeExp()

	var seq api.Sequencer
	if cfg.SequenceDSN != "" {
		store, closeStore, err := newSequenceStoreFn(ctx, cfg.SequenceDSN)
		if err != nil {
			return err
		}
		defer closeStore()
		seq = sequence.New(store)
	} else {
		log.Warn().Msg("SEQUENCE_DSN is empty; sequence routes are disabled")
	}

	return api.New(exp, seq).Serve(ctx, cfg.HTTPAddr)
}

func nextSequence(ctx context.Context, cfg *config.Config, hf int64, field sequence.Field) (int64, error) {
	if cfg.SequenceDSN == "" {
		return 0, apperr.Config("seq", "SEQUENCE_DSN is required")
	}
	store, closeStore, err := newSequenceStoreFn(ctx, cfg.SequenceDSN)
	if err != nil {
		return 0, err
	}
	defer closeStore()
	return sequence.New(store).FetchNext(ctx, hf, field)
}
