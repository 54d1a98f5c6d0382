package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermarkFromValue_Kinds(t *testing.T) {
	w, err := watermarkFromValue(int64(10500), false)
	require.NoError(t, err)
	assert.Equal(t, Watermark{Value: "10500", Kind: KeyNumber}, w)

	w, err = watermarkFromValue("ABC-001", false)
	require.NoError(t, err)
	assert.Equal(t, KeyString, w.Kind)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	w, err = watermarkFromValue(ts, false)
	require.NoError(t, err)
	assert.Equal(t, KeyTime, w.Kind)

	w, err = watermarkFromValue("AAAQ9LAAEAAAACnAAA", true)
	require.NoError(t, err)
	assert.Equal(t, KeyRowID, w.Kind)

	_, err = watermarkFromValue(struct{}{}, false)
	require.Error(t, err)
}

func TestWatermarkBind_RoundTrip(t *testing.T) {
	bind, err := Watermark{Value: "10500", Kind: KeyNumber}.Bind()
	require.NoError(t, err)
	assert.Equal(t, int64(10500), bind)

	// Too large for int64: bound as its exact decimal string.
	bind, err = Watermark{Value: "99999999999999999999999999", Kind: KeyNumber}.Bind()
	require.NoError(t, err)
	assert.Equal(t, "99999999999999999999999999", bind)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	w, err := watermarkFromValue(ts, false)
	require.NoError(t, err)
	bind, err = w.Bind()
	require.NoError(t, err)
	assert.Equal(t, ts, bind)

	_, err = Watermark{}.Bind()
	require.Error(t, err)
}

func TestCheckpoint_RoundTrip(t *testing.T) {
	cp := &Checkpoint{
		SourceTable: "EMPLOYEES",
		TargetTable: "EMPLOYEES",
		BatchSize:   1000,
		Watermark:   Watermark{Value: "5000", Kind: KeyNumber},
		NextSeq:     5,
		RowsRead:    5000,
		RowsLoaded:  5000,
		UpdatedAt:   time.Now().UTC().Truncate(time.Second),
	}

	data, err := cp.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalCheckpoint(data)
	require.NoError(t, err)
	assert.Equal(t, cp, got)
}

func TestCheckpoint_Matches(t *testing.T) {
	cp := &Checkpoint{SourceTable: "A", TargetTable: "B", Predicate: "X > 1"}

	assert.True(t, cp.Matches("A", "B", "X > 1"))
	assert.False(t, cp.Matches("A", "B", ""))
	assert.False(t, cp.Matches("A", "C", "X > 1"))
}

func TestJobRestore_RejectsReplacePolicy(t *testing.T) {
	// Replace recreates the target empty. Continuing from a watermark
	// would leave every row before it permanently missing while the
	// restored counters still satisfy verification.
	job := NewJob("EMPLOYEES", "", "", 1000, IfExistsReplace)

	err := job.Restore(&Checkpoint{
		SourceTable: "EMPLOYEES",
		TargetTable: "EMPLOYEES",
		BatchSize:   1000,
		Watermark:   Watermark{Value: "5000", Kind: KeyNumber},
		NextSeq:     5,
		RowsRead:    5000,
		RowsLoaded:  5000,
	})
	require.Error(t, err)
	assert.Equal(t, KindConfiguration, KindOf(err))
	assert.True(t, job.Watermark.IsZero(), "a rejected restore must not touch the job")
	assert.Zero(t, job.RowsLoaded)
}

func TestJobRestore_RejectsForeignCheckpoint(t *testing.T) {
	job := NewJob("EMPLOYEES", "", "", 1000, IfExistsFail)

	err := job.Restore(&Checkpoint{SourceTable: "ORDERS", TargetTable: "ORDERS"})
	require.Error(t, err)
	assert.Equal(t, KindConfiguration, KindOf(err))
}

func TestRetryable_Classification(t *testing.T) {
	assert.True(t, Retryable(newError(KindExtraction, errors.New("ORA-03113: end-of-file on communication channel"))))
	assert.True(t, Retryable(newError(KindLoad, errors.New("write: broken pipe"))))
	assert.False(t, Retryable(newError(KindExtraction, errors.New("ORA-00942: table or view does not exist"))))
	// A transient-looking code outside extraction/load is never retried.
	assert.False(t, Retryable(newError(KindConfiguration, errors.New("ORA-03113"))))
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(newError(KindExtraction, context.Canceled)))
}
