package engine

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"ora2snow/internal/dialect"
	"ora2snow/internal/schema"
)

// BatchReader is the consumer side of extraction: a lazy, finite,
// ordered sequence of batches. Next returns (nil, nil) once the source
// is exhausted.
type BatchReader interface {
	Next(ctx context.Context) (*Batch, error)
	Close() error
}

// Extractor reads the source table in keyset-paginated pages: each page
// is ordered by the table's ordering key and starts strictly after the
// previous page's maximum key. Restarting from any watermark therefore
// yields exactly the not-yet-read rows, with no duplicates and no gaps.
type Extractor struct {
	db        *sql.DB
	d         dialect.Source
	table     *schema.Table
	predicate string
	batchSize int

	seq       int64
	watermark Watermark
	done      bool
}

func NewExtractor(db *sql.DB, d dialect.Source, table *schema.Table, predicate string, batchSize int, resume Watermark, startSeq int64) *Extractor {
	return &Extractor{
		db:        db,
		d:         d,
		table:     table,
		predicate: predicate,
		batchSize: batchSize,
		seq:       startSeq,
		watermark: resume,
	}
}

func (e *Extractor) Next(ctx context.Context) (*Batch, error) {
	if e.done {
		return nil, nil
	}

	cols := e.table.ColumnNames()
	key := e.table.OrderingKey
	hasWM := !e.watermark.IsZero()
	query := e.d.PageQuery(e.table.Name, cols, key, e.predicate, hasWM, e.batchSize)

	var args []any
	if hasWM {
		bind, err := e.watermark.Bind()
		if err != nil {
			return nil, newError(KindExtraction, err)
		}
		args = append(args, bind)
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, newError(KindExtraction, fmt.Errorf("page query failed: %w", err))
	}
	defer rows.Close()

	// ROWID keys travel as one extra trailing column that is stripped
	// from the row tuple after the key is taken.
	scanWidth := len(cols)
	keyIdx := -1
	if e.table.KeyIsRowID {
		scanWidth++
		keyIdx = scanWidth - 1
	} else {
		for i, c := range cols {
			if c == key {
				keyIdx = i
				break
			}
		}
		if keyIdx < 0 {
			return nil, newError(KindExtraction, fmt.Errorf("ordering key %s is not a selected column", key))
		}
	}

	batch := &Batch{Seq: e.seq}
	var lastKey any
	for rows.Next() {
		vals := make([]any, scanWidth)
		ptrs := make([]any, scanWidth)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, newError(KindExtraction, fmt.Errorf("row scan failed: %w", err))
		}
		lastKey = vals[keyIdx]
		batch.Rows = append(batch.Rows, normalizeRow(vals[:len(cols)]))
	}
	if err := rows.Err(); err != nil {
		return nil, newError(KindExtraction, fmt.Errorf("row iteration failed: %w", err))
	}

	if len(batch.Rows) == 0 {
		e.done = true
		return nil, nil
	}

	wm, err := watermarkFromValue(lastKey, e.table.KeyIsRowID)
	if err != nil {
		return nil, newError(KindExtraction, err)
	}
	batch.Key = wm

	e.watermark = wm
	e.seq++
	if len(batch.Rows) < e.batchSize {
		// Short page: the source is exhausted, skip the empty tail read.
		e.done = true
	}

	zap.L().Debug("batch extracted",
		zap.Int64("seq", batch.Seq),
		zap.Int("rows", len(batch.Rows)),
		zap.String("watermark", wm.Value))
	return batch, nil
}

func (e *Extractor) Close() error {
	return nil
}

// normalizeRow converts driver byte slices to strings so the tuple can
// be rebound on the target side without aliasing the scan buffer.
func normalizeRow(vals []any) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		if b, ok := v.([]byte); ok {
			out[i] = string(b)
		} else {
			out[i] = v
		}
	}
	return out
}
