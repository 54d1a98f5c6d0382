package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ora2snow/internal/dialect"
	"ora2snow/internal/schema"
)

// Pipeline is everything the orchestrator needs from the outside world,
// behind one seam so the state machine can be driven against fakes.
type Pipeline interface {
	// Connect verifies both connection handles before any work starts.
	Connect(ctx context.Context) error
	// Inspect resolves the source table descriptor.
	Inspect(ctx context.Context) (*schema.Table, error)
	// Prepare maps the descriptor to target types and applies the
	// if-exists policy. Runs before any extraction query.
	Prepare(ctx context.Context, src *schema.Table, policy IfExists) error
	// OpenReader starts (or restarts) extraction after the watermark.
	OpenReader(ctx context.Context, src *schema.Table, resume Watermark, startSeq int64) (BatchReader, error)
	// Load writes one batch atomically, returning the confirmed count.
	Load(ctx context.Context, b *Batch) (int, error)
	// TrimTarget deletes target rows whose ordering key is past the
	// watermark, returning how many were removed. Needed when resuming a
	// parallel run whose workers outran the committed watermark.
	TrimTarget(ctx context.Context, wm Watermark) (int64, error)
	// Warnings reports truncation warnings accumulated by loading.
	Warnings() []TruncationWarning
	// Count is the predicate-scoped source row count.
	Count(ctx context.Context) (int64, error)
	// Verify compares the confirmed load total against a fresh count.
	Verify(ctx context.Context, rowsLoaded int64, warnings []TruncationWarning) (*VerificationResult, error)
	// RecreateTarget empties the target for a strict-verify rerun.
	RecreateTarget(ctx context.Context) error
	Close() error
}

// DBPipeline is the production pipeline: Oracle source and Snowflake
// target through database/sql handles opened by the caller. The engine
// never sees credentials, only the opened handles.
type DBPipeline struct {
	source *sql.DB
	target *sql.DB
	sd     dialect.Source
	td     dialect.Target

	targetTable string
	predicate   string
	batchSize   int

	inspector *schema.Inspector
	verifier  *Verifier
	loader    *StagingLoader
	preparer  *TargetPreparer
}

func NewDBPipeline(source, target *sql.DB, sd dialect.Source, td dialect.Target, job *Job) *DBPipeline {
	return &DBPipeline{
		source:      source,
		target:      target,
		sd:          sd,
		td:          td,
		targetTable: job.TargetTable,
		predicate:   job.Predicate,
		batchSize:   job.BatchSize,
		inspector:   schema.NewInspector(source, sd),
		verifier:    NewVerifier(source, sd, job.SourceTable, job.Predicate),
	}
}

func (p *DBPipeline) Connect(ctx context.Context) error {
	if err := p.source.PingContext(ctx); err != nil {
		return newError(KindSourceConnection, fmt.Errorf("source ping failed: %w", err))
	}
	if err := p.target.PingContext(ctx); err != nil {
		return newError(KindTargetConnection, fmt.Errorf("target ping failed: %w", err))
	}
	return nil
}

func (p *DBPipeline) Inspect(ctx context.Context) (*schema.Table, error) {
	t, err := p.inspector.Inspect(ctx, p.verifier.table)
	if err != nil {
		var nf *schema.NotFoundError
		if errors.As(err, &nf) {
			return nil, newError(KindSchemaNotFound, err)
		}
		return nil, newError(KindSourceConnection, err)
	}
	return t, nil
}

func (p *DBPipeline) Prepare(ctx context.Context, src *schema.Table, policy IfExists) error {
	mapped, err := schema.MapTable(src, p.targetTable)
	if err != nil {
		return newError(KindTypeMapping, err)
	}
	p.preparer = NewTargetPreparer(p.target, p.td, mapped)
	p.loader = NewStagingLoader(p.target, p.td, mapped)
	return p.preparer.Prepare(ctx, policy)
}

func (p *DBPipeline) OpenReader(ctx context.Context, src *schema.Table, resume Watermark, startSeq int64) (BatchReader, error) {
	return NewExtractor(p.source, p.sd, src, p.predicate, p.batchSize, resume, startSeq), nil
}

func (p *DBPipeline) Load(ctx context.Context, b *Batch) (int, error) {
	return p.loader.Load(ctx, b)
}

func (p *DBPipeline) TrimTarget(ctx context.Context, wm Watermark) (int64, error) {
	table := p.loader.table
	if table.KeyIsRowID {
		// ROWID is not a target column, so leftover rows past the
		// watermark cannot be identified. Rerun with --if-exists replace.
		return 0, newError(KindConfiguration,
			errors.New("cannot resume a parallel run ordered by ROWID: leftover rows are not addressable on the target"))
	}
	bind, err := wm.Bind()
	if err != nil {
		return 0, newError(KindConfiguration, err)
	}
	res, err := p.target.ExecContext(ctx, p.td.DeleteAfterQuery(table.Name, table.OrderingKey), bind)
	if err != nil {
		return 0, newError(KindLoad, fmt.Errorf("trimming rows past watermark failed: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (p *DBPipeline) Warnings() []TruncationWarning {
	if p.loader == nil {
		return nil
	}
	return p.loader.Warnings()
}

func (p *DBPipeline) Count(ctx context.Context) (int64, error) {
	return p.verifier.Count(ctx)
}

func (p *DBPipeline) Verify(ctx context.Context, rowsLoaded int64, warnings []TruncationWarning) (*VerificationResult, error) {
	return p.verifier.Verify(ctx, rowsLoaded, warnings)
}

func (p *DBPipeline) RecreateTarget(ctx context.Context) error {
	if err := p.preparer.Recreate(ctx); err != nil {
		return err
	}
	// Fresh loader: warnings from the discarded load do not belong to the rerun.
	p.loader = NewStagingLoader(p.target, p.td, p.loader.table)
	return nil
}

func (p *DBPipeline) Close() error {
	// Handles are owned by the caller; nothing to release here.
	return nil
}
