package engine

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"ora2snow/internal/dialect"
)

// VerificationResult compares what the source says should have moved
// against what the load confirmed. Created once at job end.
type VerificationResult struct {
	ExpectedRows int64
	ActualRows   int64
	Warnings     []TruncationWarning
}

func (r *VerificationResult) Mismatch() bool {
	return r.ExpectedRows != r.ActualRows
}

// Verifier re-counts the source independently of extraction, restricted
// by the same predicate the extraction used.
type Verifier struct {
	db        *sql.DB
	d         dialect.Source
	table     string
	predicate string
}

func NewVerifier(db *sql.DB, d dialect.Source, table, predicate string) *Verifier {
	return &Verifier{db: db, d: d, table: table, predicate: predicate}
}

// Count returns the predicate-scoped source row count.
func (v *Verifier) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := v.db.QueryRowContext(ctx, v.d.CountQuery(v.table, v.predicate)).Scan(&n); err != nil {
		return 0, newError(KindSourceConnection, fmt.Errorf("source count query failed: %w", err))
	}
	return n, nil
}

// Verify compares the confirmed load total against a fresh source
// count. A mismatch is reported through the result and the returned
// error; committed batches are never rolled back here.
func (v *Verifier) Verify(ctx context.Context, rowsLoaded int64, warnings []TruncationWarning) (*VerificationResult, error) {
	expected, err := v.Count(ctx)
	if err != nil {
		return nil, err
	}

	res := &VerificationResult{
		ExpectedRows: expected,
		ActualRows:   rowsLoaded,
		Warnings:     warnings,
	}
	if res.Mismatch() {
		zap.L().Warn("verification mismatch",
			zap.Int64("expected_rows", expected),
			zap.Int64("actual_rows", rowsLoaded))
		return res, newError(KindVerification,
			fmt.Errorf("source has %d rows, loaded %d", expected, rowsLoaded))
	}
	return res, nil
}
