package engine

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"ora2snow/internal/dialect"
	"ora2snow/internal/schema"
)

// maxRowsPerStatement caps the VALUES list of a single insert so bind
// counts stay inside driver limits. All statements of a batch run in
// one transaction, so the batch still commits atomically.
const maxRowsPerStatement = 1000

// StagingLoader writes batches to the target through one transaction
// per batch: either the whole batch becomes visible on commit or none
// of it does. Values for truncating columns (CLOB-mapped VARCHAR) are
// cut deterministically at the column length and counted as warnings.
type StagingLoader struct {
	db    *sql.DB
	d     dialect.Target
	table *schema.Table // mapped target descriptor

	warnings map[string]*TruncationWarning
}

func NewStagingLoader(db *sql.DB, d dialect.Target, table *schema.Table) *StagingLoader {
	return &StagingLoader{
		db:       db,
		d:        d,
		table:    table,
		warnings: make(map[string]*TruncationWarning),
	}
}

// Load writes one batch and returns the row count actually written.
func (l *StagingLoader) Load(ctx context.Context, b *Batch) (int, error) {
	if b.RowCount() == 0 {
		return 0, nil
	}

	rows := l.truncateRows(b.Rows)
	cols := l.table.ColumnNames()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, newError(KindLoad, fmt.Errorf("begin transaction failed: %w", err))
	}

	written := 0
	for start := 0; start < len(rows); start += maxRowsPerStatement {
		end := start + maxRowsPerStatement
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		query := l.d.InsertQuery(l.table.Name, cols, len(chunk))
		args := make([]any, 0, len(chunk)*len(cols))
		for _, row := range chunk {
			args = append(args, row...)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			tx.Rollback()
			return 0, newError(KindLoad, fmt.Errorf("insert failed: %w", err))
		}
		written += len(chunk)
	}

	if err := tx.Commit(); err != nil {
		return 0, newError(KindLoad, fmt.Errorf("commit failed: %w", err))
	}

	zap.L().Debug("batch loaded",
		zap.Int64("seq", b.Seq),
		zap.Int("rows", written))
	return written, nil
}

// Warnings returns the truncation warnings accumulated so far, one per
// affected column.
func (l *StagingLoader) Warnings() []TruncationWarning {
	out := make([]TruncationWarning, 0, len(l.warnings))
	for _, c := range l.table.Columns {
		if w, ok := l.warnings[c.Name]; ok {
			out = append(out, *w)
		}
	}
	return out
}

func (l *StagingLoader) truncateRows(rows [][]any) [][]any {
	truncIdx := make([]int, 0, 1)
	for i, c := range l.table.Columns {
		if c.Truncate && c.Length > 0 {
			truncIdx = append(truncIdx, i)
		}
	}
	if len(truncIdx) == 0 {
		return rows
	}

	out := make([][]any, len(rows))
	for r, row := range rows {
		var cut []any
		for _, i := range truncIdx {
			col := l.table.Columns[i]
			s, ok := row[i].(string)
			if !ok || len(s) <= col.Length {
				// At most Length bytes means at most Length characters.
				continue
			}
			// The target measures VARCHAR length in characters, not
			// bytes, and a byte-offset cut could split a multi-byte
			// sequence into invalid UTF-8.
			end := charBoundary(s, col.Length)
			if end >= len(s) {
				continue
			}
			if cut == nil {
				cut = make([]any, len(row))
				copy(cut, row)
			}
			cut[i] = s[:end]

			w, ok := l.warnings[col.Name]
			if !ok {
				w = &TruncationWarning{Column: col.Name, MaxLength: col.Length}
				l.warnings[col.Name] = w
			}
			w.Count++
		}
		if cut != nil {
			out[r] = cut
		} else {
			out[r] = row
		}
	}
	return out
}

// charBoundary returns the byte offset just after maxChars characters,
// or len(s) when the string is shorter than that.
func charBoundary(s string, maxChars int) int {
	n := 0
	for i := range s {
		if n == maxChars {
			return i
		}
		n++
	}
	return len(s)
}
