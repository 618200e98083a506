package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"imisexport/internal/apperr"
	"imisexport/internal/ddl"
)

// Strategy controls how a destination table is replaced.
type Strategy string

const (
	// StrategySwap loads a staging table and swaps it in with a drop and a
	// rename inside one transaction. Readers never see a partial table.
	StrategySwap Strategy = "swap"
	// StrategyReplace drops and recreates the destination, then loads it
	// directly. A failed load leaves the table partially filled.
	StrategyReplace Strategy = "replace"
)

// StagingSuffix is appended to a destination name to form its staging table.
const StagingSuffix = "__staging"

// DefaultBatchSize is used when Publisher.BatchSize is not positive.
const DefaultBatchSize = 5000

// Source is a finalized dataset that can be read more than once.
type Source interface {
	Header() []string
	Scan(fn func(record []string) error) error
}

// Result reports one publication.
type Result struct {
	Table    string
	Strategy Strategy
	Rows     int64
	Columns  []ddl.ColumnDef
	Duration time.Duration
}

// Publisher replaces warehouse tables with datasets.
type Publisher struct {
	Repo      Repository
	Strategy  Strategy
	BatchSize int
	Logger    zerolog.Logger
}

// NewPublisher returns a Publisher using the global logger.
func NewPublisher(repo Repository, strategy Strategy, batchSize int) *Publisher {
	if strategy == "" {
		strategy = StrategySwap
	}
	return &Publisher{
		Repo:      repo,
		Strategy:  strategy,
		BatchSize: batchSize,
		Logger:    log.With().Str("component", "warehouse").Logger(),
	}
}

// Publish infers the column types of src, then replaces table with its
// contents. The surrogate id column is numbered from 0 in file order.
func (p *Publisher) Publish(ctx context.Context, table string, src Source) (Result, error) {
	const op = "warehouse.Publish"
	start := time.Now()
	logger := p.Logger.With().Str("table", table).Str("strategy", string(p.Strategy)).Logger()

	inf := ddl.NewInferrer(src.Header())
	if err := src.Scan(inf.Observe); err != nil {
		return Result{}, apperr.Publish(op, "infer column types for "+table, err)
	}
	td := inf.Table(table).WithTypes(p.Repo.MapType)

	var (
		rows int64
		err  error
	)
	switch p.Strategy {
	case StrategySwap, "":
		rows, err = p.swap(ctx, logger, td, src)
	case StrategyReplace:
		rows, err = p.replace(ctx, logger, td, src)
	default:
		return Result{}, apperr.Config(op, "unknown publish strategy %q", p.Strategy)
	}
	if err != nil {
		return Result{}, err
	}

	res := Result{Table: table, Strategy: p.Strategy, Rows: rows, Columns: td.Columns, Duration: time.Since(start)}
	logger.Info().Int64("rows", rows).Int("columns", len(td.Columns)).Dur("took", res.Duration).Msg("table published")
	return res, nil
}

func (p *Publisher) swap(ctx context.Context, logger zerolog.Logger, td ddl.TableDef, src Source) (int64, error) {
	const op = "warehouse.swap"
	staging := td.FQN + StagingSuffix

	if err := p.create(ctx, td.Rename(staging)); err != nil {
		return 0, apperr.Publish(op, "create "+staging, err)
	}
	n, err := p.load(ctx, logger, td.Rename(staging), src)
	if err != nil {
		if derr := p.Repo.Exec(ctx, p.Repo.DropTable(staging)); derr != nil {
			logger.Warn().Err(derr).Str("staging", staging).Msg("could not drop staging table")
		}
		return 0, apperr.Publish(op, "load "+staging, err)
	}
	if err := p.Repo.ExecTx(ctx,
		p.Repo.DropTable(td.FQN),
		p.Repo.RenameTable(staging, td.FQN),
	); err != nil {
		return 0, apperr.Publish(op, "swap "+staging+" into "+td.FQN, err)
	}
	return n, nil
}

func (p *Publisher) replace(ctx context.Context, logger zerolog.Logger, td ddl.TableDef, src Source) (int64, error) {
	const op = "warehouse.replace"
	if err := p.create(ctx, td); err != nil {
		return 0, apperr.Publish(op, "recreate "+td.FQN, err)
	}
	n, err := p.load(ctx, logger, td, src)
	if err != nil {
		logger.Error().Err(err).Int64("loaded", n).Msg("load failed, table left partially filled")
		return 0, apperr.Publish(op, "load "+td.FQN, err)
	}
	return n, nil
}

// create drops any table of the same name and creates td.
func (p *Publisher) create(ctx context.Context, td ddl.TableDef) error {
	stmt, err := ddl.BuildCreateTableSQL(td, p.Repo.QuoteIdent)
	if err != nil {
		return err
	}
	if err := p.Repo.Exec(ctx, p.Repo.DropTable(td.FQN)); err != nil {
		return fmt.Errorf("drop: %w", err)
	}
	if err := p.Repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create: %w", err)
	}
	return nil
}

// load streams src through a Converter into the bulk loader. Scanning and
// copying run concurrently, joined by a bounded channel.
func (p *Publisher) load(ctx context.Context, logger zerolog.Logger, td ddl.TableDef, src Source) (int64, error) {
	conv, err := ddl.NewConverter(td)
	if err != nil {
		return 0, err
	}
	size := p.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	g, gctx := errgroup.WithContext(ctx)
	rows := make(chan []any, size)

	g.Go(func() error {
		defer close(rows)
		return src.Scan(func(rec []string) error {
			row, err := conv.Row(rec)
			if err != nil {
				return err
			}
			select {
			case rows <- row:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	var total int64
	g.Go(func() error {
		n, err := LoadBatches(gctx, logger, td.Names(), rows, size,
			func(ctx context.Context, cols []string, batch [][]any) (int64, error) {
				return p.Repo.CopyFrom(ctx, td.FQN, cols, batch)
			})
		total = n
		return err
	})

	if err := g.Wait(); err != nil {
		return total, err
	}
	return total, nil
}
