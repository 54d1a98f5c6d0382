package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ora2snow/internal/schema"
)

// Config tunes the orchestrator. Zero values fall back to defaults.
type Config struct {
	// Workers is the number of concurrent load workers. 1 means strictly
	// sequential: extract batch N, load batch N, then extract N+1.
	Workers int
	// QueueDepth bounds the extracted-but-not-loaded queue in parallel
	// mode; extraction suspends when it is full.
	QueueDepth int
	// MaxAttempts bounds retries of a retryable extraction/load fault.
	MaxAttempts int
	// InitialBackoff and MaxBackoff shape the exponential retry delay.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// StrictVerify recreates the target and reruns once on a
	// verification mismatch instead of just reporting it.
	StrictVerify bool
}

const (
	DefaultBatchSize      = 10000
	DefaultMaxAttempts    = 5
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.QueueDepth < 1 {
		c.QueueDepth = 2 * c.Workers
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	return c
}

// Job is the unit of resumability. The orchestrator is its only
// mutator; everything else sees it read-only.
type Job struct {
	SourceTable string
	TargetTable string
	Predicate   string
	BatchSize   int
	IfExists    IfExists

	State      State
	RowsRead   int64
	RowsLoaded int64
	Watermark  Watermark
	NextSeq    int64

	// resumeDirty marks a job restored from a parallel run's checkpoint:
	// the target may hold batches past the watermark that were loaded but
	// never resequenced into a commit.
	resumeDirty bool
}

func NewJob(sourceTable, targetTable, predicate string, batchSize int, policy IfExists) *Job {
	if targetTable == "" {
		targetTable = sourceTable
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Job{
		SourceTable: sourceTable,
		TargetTable: targetTable,
		Predicate:   predicate,
		BatchSize:   batchSize,
		IfExists:    policy,
		State:       StateInit,
	}
}

// Checkpoint snapshots the job position as data.
func (j *Job) Checkpoint() *Checkpoint {
	return &Checkpoint{
		SourceTable: j.SourceTable,
		TargetTable: j.TargetTable,
		Predicate:   j.Predicate,
		BatchSize:   j.BatchSize,
		Watermark:   j.Watermark,
		NextSeq:     j.NextSeq,
		RowsRead:    j.RowsRead,
		RowsLoaded:  j.RowsLoaded,
		UpdatedAt:   time.Now().UTC(),
	}
}

// Restore resumes the job from a checkpoint taken by an earlier run.
func (j *Job) Restore(cp *Checkpoint) error {
	if j.IfExists == IfExistsReplace {
		// replace empties the target before loading; resuming past the
		// watermark would then skip every already-acknowledged row.
		return newError(KindConfiguration,
			errors.New("cannot resume with the replace policy: the recreated target would be missing all rows before the watermark"))
	}
	if !cp.Matches(j.SourceTable, j.TargetTable, j.Predicate) {
		return newError(KindConfiguration,
			fmt.Errorf("checkpoint belongs to a different job (table %s -> %s, predicate %q)",
				cp.SourceTable, cp.TargetTable, cp.Predicate))
	}
	j.Watermark = cp.Watermark
	j.NextSeq = cp.NextSeq
	j.RowsRead = cp.RowsRead
	j.RowsLoaded = cp.RowsLoaded
	j.resumeDirty = cp.Parallel
	return nil
}

// Hooks let the caller observe progress without the engine knowing
// about progress bars or checkpoint files.
type Hooks struct {
	// OnStart fires once extraction is about to begin; estimatedRows is
	// -1 when the up-front count failed.
	OnStart func(estimatedRows int64, batchSize int)
	// OnBatchCommitted fires after every watermark advance.
	OnBatchCommitted func(cp *Checkpoint)
	// OnStateChange fires on every state-machine transition.
	OnStateChange func(from, to State)
}

// Orchestrator drives the migration state machine:
//
//	INIT -> CONNECTING -> SCHEMA_RESOLVED -> PREPARING_TARGET ->
//	EXTRACTING <-> LOADING -> VERIFYING -> DONE
//
// with FAILED reachable from any non-terminal state. The watermark
// advances only after a load is confirmed, never before.
type Orchestrator struct {
	job   *Job
	cfg   Config
	p     Pipeline
	hooks Hooks
}

func New(job *Job, cfg Config, p Pipeline, hooks Hooks) *Orchestrator {
	return &Orchestrator{job: job, cfg: cfg.withDefaults(), p: p, hooks: hooks}
}

// Run executes the migration to completion or failure. On failure the
// returned error carries the phase, batch and resume watermark; a job
// restarted from the last checkpoint continues without duplicating or
// losing rows.
func (o *Orchestrator) Run(ctx context.Context) (*VerificationResult, error) {
	o.transition(StateConnecting)
	if err := o.p.Connect(ctx); err != nil {
		return nil, o.fail(err)
	}
	defer o.p.Close()

	table, err := o.p.Inspect(ctx)
	if err != nil {
		return nil, o.fail(err)
	}
	o.transition(StateSchemaResolved)

	o.transition(StatePreparingTarget)
	if err := o.p.Prepare(ctx, table, o.job.IfExists); err != nil {
		return nil, o.fail(err)
	}

	// A parallel run may have loaded batches past the committed
	// watermark before failing. Clear them so the replay starting at the
	// watermark cannot duplicate rows.
	if o.job.resumeDirty && !o.job.Watermark.IsZero() {
		removed, err := o.p.TrimTarget(ctx, o.job.Watermark)
		if err != nil {
			return nil, o.fail(err)
		}
		if removed > 0 {
			zap.L().Warn("removed uncommitted rows past the watermark",
				zap.Int64("rows", removed),
				zap.String("watermark", o.job.Watermark.Value))
		}
		o.job.resumeDirty = false
	}

	estimate, err := o.p.Count(ctx)
	if err != nil {
		zap.L().Warn("row count estimate failed", zap.Error(err))
		estimate = -1
	}
	if o.hooks.OnStart != nil {
		o.hooks.OnStart(estimate, o.job.BatchSize)
	}

	if err := o.moveRows(ctx, table); err != nil {
		return nil, o.fail(err)
	}

	o.transition(StateVerifying)
	res, verr := o.p.Verify(ctx, o.job.RowsLoaded, o.p.Warnings())
	if verr != nil && KindOf(verr) == KindVerification && o.cfg.StrictVerify {
		res, verr = o.strictRerun(ctx, table)
	}
	if verr != nil && KindOf(verr) != KindVerification {
		return nil, o.fail(verr)
	}

	o.transition(StateDone)
	// A verification mismatch is reported alongside the completed job;
	// committed batches stay committed.
	return res, verr
}

// strictRerun recreates the target and replays the whole job once.
func (o *Orchestrator) strictRerun(ctx context.Context, table *schema.Table) (*VerificationResult, error) {
	zap.L().Warn("strict verification: recreating target and rerunning",
		zap.String("table", o.job.TargetTable))
	if err := o.p.RecreateTarget(ctx); err != nil {
		return nil, err
	}
	o.job.Watermark = Watermark{}
	o.job.NextSeq = 0
	o.job.RowsRead = 0
	o.job.RowsLoaded = 0

	if err := o.moveRows(ctx, table); err != nil {
		return nil, err
	}
	o.transition(StateVerifying)
	return o.p.Verify(ctx, o.job.RowsLoaded, o.p.Warnings())
}

func (o *Orchestrator) moveRows(ctx context.Context, table *schema.Table) error {
	if o.cfg.Workers > 1 {
		return o.runParallel(ctx, table)
	}
	return o.runSequential(ctx, table)
}

// readPos tracks how far extraction has progressed, independently of
// the committed watermark, so a failed reader can be reopened exactly
// where it left off.
type readPos struct {
	wm  Watermark
	seq int64
}

func (o *Orchestrator) runSequential(ctx context.Context, table *schema.Table) error {
	pos := readPos{wm: o.job.Watermark, seq: o.job.NextSeq}
	reader, err := o.p.OpenReader(ctx, table, pos.wm, pos.seq)
	if err != nil {
		return err
	}
	defer func() { reader.Close() }()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.transition(StateExtracting)
		batch, err := o.nextWithRetry(ctx, table, &reader, &pos)
		if err != nil {
			return err
		}
		if batch == nil {
			return nil
		}
		o.job.RowsRead += int64(batch.RowCount())

		o.transition(StateLoading)
		written, err := o.loadWithRetry(ctx, batch)
		if err != nil {
			return err
		}
		o.commit(batch, written)
	}
}

// runParallel extracts into a bounded queue while a fixed pool of
// workers loads concurrently. Loads may finish out of order; results
// are resequenced so the watermark only advances to batch N once
// batches 0..N are all confirmed.
func (o *Orchestrator) runParallel(ctx context.Context, table *schema.Table) error {
	o.transition(StateExtracting)

	pos := readPos{wm: o.job.Watermark, seq: o.job.NextSeq}
	reader, err := o.p.OpenReader(ctx, table, pos.wm, pos.seq)
	if err != nil {
		return err
	}

	type loadResult struct {
		batch   *Batch
		written int
	}
	batchC := make(chan *Batch, o.cfg.QueueDepth)
	resultC := make(chan loadResult, o.cfg.QueueDepth)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(batchC)
		defer func() { reader.Close() }()
		for {
			batch, err := o.nextWithRetry(gctx, table, &reader, &pos)
			if err != nil {
				return err
			}
			if batch == nil {
				return nil
			}
			select {
			case batchC <- batch:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var workers sync.WaitGroup
	workers.Add(o.cfg.Workers)
	for i := 0; i < o.cfg.Workers; i++ {
		g.Go(func() error {
			defer workers.Done()
			for batch := range batchC {
				written, err := o.loadWithRetry(gctx, batch)
				if err != nil {
					return err
				}
				select {
				case resultC <- loadResult{batch: batch, written: written}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(resultC)
	}()

	// Resequence in the orchestrator's own goroutine: the job has
	// exactly one mutator even in parallel mode.
	pending := make(map[int64]loadResult)
	next := o.job.NextSeq
	for r := range resultC {
		pending[r.batch.Seq] = r
		for {
			rr, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			o.job.RowsRead += int64(rr.batch.RowCount())
			o.commit(rr.batch, rr.written)
			next++
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	o.transition(StateLoading)
	return nil
}

// commit acknowledges a loaded batch: counters, then watermark, then
// the checkpoint hook.
func (o *Orchestrator) commit(batch *Batch, written int) {
	o.job.RowsLoaded += int64(written)
	o.job.Watermark = batch.Key
	o.job.NextSeq = batch.Seq + 1
	zap.L().Info("batch committed",
		zap.Int64("seq", batch.Seq),
		zap.Int("rows", written),
		zap.String("watermark", batch.Key.Value),
		zap.Int64("rows_loaded", o.job.RowsLoaded))
	if o.hooks.OnBatchCommitted != nil {
		cp := o.job.Checkpoint()
		cp.Parallel = o.cfg.Workers > 1
		o.hooks.OnBatchCommitted(cp)
	}
}

// nextWithRetry reads the next batch, reopening the reader from the
// last extraction position on retryable faults.
func (o *Orchestrator) nextWithRetry(ctx context.Context, table *schema.Table, reader *BatchReader, pos *readPos) (*Batch, error) {
	var batch *Batch
	attempt := 0
	op := func() error {
		attempt++
		b, err := (*reader).Next(ctx)
		if err == nil {
			batch = b
			return nil
		}
		if !Retryable(err) {
			return backoff.Permanent(err)
		}
		zap.L().Warn("extraction fault, will retry",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", o.cfg.MaxAttempts),
			zap.Error(err))
		(*reader).Close()
		nr, oerr := o.p.OpenReader(ctx, table, pos.wm, pos.seq)
		if oerr != nil {
			return backoff.Permanent(oerr)
		}
		*reader = nr
		return err
	}
	if err := backoff.Retry(op, o.newBackOff(ctx)); err != nil {
		return nil, err
	}
	if batch != nil {
		pos.wm = batch.Key
		pos.seq = batch.Seq + 1
	}
	return batch, nil
}

// loadWithRetry loads one batch, retrying transient faults. A failed
// batch left nothing visible (per-batch atomicity), so replaying the
// same batch cannot duplicate rows.
func (o *Orchestrator) loadWithRetry(ctx context.Context, batch *Batch) (int, error) {
	var written int
	attempt := 0
	op := func() error {
		attempt++
		n, err := o.p.Load(ctx, batch)
		if err == nil {
			written = n
			return nil
		}
		if !Retryable(err) {
			return backoff.Permanent(err)
		}
		zap.L().Warn("load fault, will retry",
			zap.Int64("seq", batch.Seq),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", o.cfg.MaxAttempts),
			zap.Error(err))
		return err
	}
	if err := backoff.Retry(op, o.newBackOff(ctx)); err != nil {
		var e *Error
		if errors.As(err, &e) && e.BatchSeq < 0 {
			e.BatchSeq = batch.Seq
		}
		return 0, err
	}
	return written, nil
}

func (o *Orchestrator) newBackOff(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.cfg.InitialBackoff
	bo.MaxInterval = o.cfg.MaxBackoff
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(o.cfg.MaxAttempts-1)), ctx)
}

func (o *Orchestrator) transition(to State) {
	from := o.job.State
	if from == to {
		return
	}
	o.job.State = to
	zap.L().Debug("state transition", zap.String("from", string(from)), zap.String("to", string(to)))
	if o.hooks.OnStateChange != nil {
		o.hooks.OnStateChange(from, to)
	}
}

// fail marks the job failed and stamps the error with the phase and
// resume watermark the caller needs to report and retry.
func (o *Orchestrator) fail(err error) error {
	phase := o.job.State
	o.job.State = StateFailed

	var e *Error
	if errors.As(err, &e) {
		if e.Phase == "" {
			e.Phase = phase
		}
		if e.Watermark.IsZero() {
			e.Watermark = o.job.Watermark
		}
		zap.L().Error("migration failed", zap.String("phase", string(e.Phase)), zap.Error(e))
		return e
	}
	wrapped := &Error{Kind: KindUnknown, Phase: phase, BatchSeq: -1, Watermark: o.job.Watermark, Err: err}
	zap.L().Error("migration failed", zap.String("phase", string(phase)), zap.Error(wrapped))
	return wrapped
}
