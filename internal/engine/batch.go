package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// KeyKind records the type of the ordering key so a watermark can be
// rebound correctly after crossing a process restart as JSON.
type KeyKind string

const (
	KeyNumber KeyKind = "number"
	KeyString KeyKind = "string"
	KeyTime   KeyKind = "time"
	KeyRowID  KeyKind = "rowid"
)

// Watermark is the ordering-key value of the last batch whose load was
// confirmed. Extraction resumes strictly after it, which is what makes
// restarts duplicate-free.
type Watermark struct {
	Value string  `json:"value"`
	Kind  KeyKind `json:"kind"`
}

func (w Watermark) IsZero() bool {
	return w.Value == "" && w.Kind == ""
}

// Bind converts the watermark to a driver-friendly bind value.
func (w Watermark) Bind() (any, error) {
	switch w.Kind {
	case KeyNumber:
		d, err := decimal.NewFromString(w.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid numeric watermark %q: %w", w.Value, err)
		}
		if d.IsInteger() && d.BigInt().IsInt64() {
			return d.IntPart(), nil
		}
		return d.String(), nil
	case KeyTime:
		t, err := time.Parse(time.RFC3339Nano, w.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid time watermark %q: %w", w.Value, err)
		}
		return t, nil
	case KeyString, KeyRowID:
		return w.Value, nil
	default:
		return nil, fmt.Errorf("watermark has no key kind")
	}
}

// watermarkFromValue derives a watermark from a scanned ordering-key
// value. Numbers go through decimal so large NUMBER keys survive the
// round trip without float formatting loss.
func watermarkFromValue(v any, isRowID bool) (Watermark, error) {
	if isRowID {
		switch k := v.(type) {
		case string:
			return Watermark{Value: k, Kind: KeyRowID}, nil
		case []byte:
			return Watermark{Value: string(k), Kind: KeyRowID}, nil
		}
		return Watermark{}, fmt.Errorf("unexpected ROWID value of type %T", v)
	}
	switch k := v.(type) {
	case int64:
		return Watermark{Value: decimal.NewFromInt(k).String(), Kind: KeyNumber}, nil
	case float64:
		return Watermark{Value: decimal.NewFromFloat(k).String(), Kind: KeyNumber}, nil
	case string:
		return Watermark{Value: k, Kind: KeyString}, nil
	case []byte:
		return Watermark{Value: string(k), Kind: KeyString}, nil
	case time.Time:
		return Watermark{Value: k.Format(time.RFC3339Nano), Kind: KeyTime}, nil
	default:
		return Watermark{}, fmt.Errorf("unsupported ordering key value of type %T", v)
	}
}

// Batch is one bounded, ordered chunk of rows moved as a unit. Rows are
// fixed-arity tuples aligned to the table descriptor's column order.
type Batch struct {
	Seq  int64
	Rows [][]any
	// Key is the maximum ordering-key value among the batch's rows;
	// it becomes the job watermark once the load is confirmed.
	Key Watermark
}

func (b *Batch) RowCount() int {
	return len(b.Rows)
}

// TruncationWarning aggregates the values of one column that were cut
// to the target length. Recorded, never silent.
type TruncationWarning struct {
	Column    string `json:"column"`
	MaxLength int    `json:"max_length"`
	Count     int64  `json:"count"`
}

// Checkpoint is the resumable job position as plain data. The engine
// only produces and consumes it; where it lives between runs (file,
// table) is the caller's business.
type Checkpoint struct {
	SourceTable string    `json:"source_table"`
	TargetTable string    `json:"target_table"`
	Predicate   string    `json:"predicate,omitempty"`
	BatchSize   int       `json:"batch_size"`
	Watermark   Watermark `json:"watermark"`
	NextSeq     int64     `json:"next_seq"`
	RowsRead    int64     `json:"rows_read"`
	RowsLoaded  int64     `json:"rows_loaded"`
	// Parallel records that the run used concurrent load workers, so
	// batches past the watermark may already sit in the target. A resume
	// must clear those before extracting again.
	Parallel  bool      `json:"parallel,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

func UnmarshalCheckpoint(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid checkpoint data: %w", err)
	}
	return &c, nil
}

// Matches reports whether a checkpoint belongs to the given job shape.
// Resuming with a different predicate or table silently skips or
// duplicates rows, so the caller must refuse a mismatched checkpoint.
func (c *Checkpoint) Matches(sourceTable, targetTable, predicate string) bool {
	return c.SourceTable == sourceTable &&
		c.TargetTable == targetTable &&
		c.Predicate == predicate
}
