package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// State is a phase of the migration state machine.
type State string

const (
	StateInit            State = "INIT"
	StateConnecting      State = "CONNECTING"
	StateSchemaResolved  State = "SCHEMA_RESOLVED"
	StatePreparingTarget State = "PREPARING_TARGET"
	StateExtracting      State = "EXTRACTING"
	StateLoading         State = "LOADING"
	StateVerifying       State = "VERIFYING"
	StateDone            State = "DONE"
	StateFailed          State = "FAILED"
)

// Kind classifies a migration failure. The kind decides both the retry
// policy and the process exit code.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindSourceConnection
	KindTargetConnection
	KindSchemaNotFound
	KindTypeMapping
	KindExtraction
	KindLoad
	KindVerification
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindSourceConnection:
		return "source connection"
	case KindTargetConnection:
		return "target connection"
	case KindSchemaNotFound:
		return "schema not found"
	case KindTypeMapping:
		return "type mapping"
	case KindExtraction:
		return "batch extraction"
	case KindLoad:
		return "load"
	case KindVerification:
		return "verification mismatch"
	default:
		return "unknown"
	}
}

// Error is the failure surface of the engine. Every fatal error carries
// the phase it happened in, the batch it touched (if any), and the
// watermark a rerun must resume from.
type Error struct {
	Kind      Kind
	Phase     State
	BatchSeq  int64 // -1 when no batch applies
	Watermark Watermark
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s error", e.Kind)
	if e.Phase != "" {
		fmt.Fprintf(&b, " in phase %s", e.Phase)
	}
	if e.BatchSeq >= 0 {
		fmt.Fprintf(&b, " (batch %d)", e.BatchSeq)
	}
	if !e.Watermark.IsZero() {
		fmt.Fprintf(&b, " (resume watermark %s)", e.Watermark.Value)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, BatchSeq: -1, Err: err}
}

// KindOf extracts the failure kind, KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// retryableVendorCodes is the classification table for transient
// faults: Oracle network/timeout codes, Snowflake transient statuses,
// and the usual TCP-level failure strings. Kept as a flat substring
// table so the orchestrator never interprets vendor codes itself.
var retryableVendorCodes = []string{
	"ORA-00060", // deadlock detected
	"ORA-01013", // operation timed out / cancelled
	"ORA-03113", // end-of-file on communication channel
	"ORA-03114", // not connected to Oracle
	"ORA-03135", // connection lost contact
	"ORA-12170", // connect timeout
	"ORA-12541", // no listener
	"390114",    // Snowflake: authentication token expired
	"000625",    // Snowflake: statement waiting on lock
	"i/o timeout",
	"connection reset",
	"connection refused",
	"broken pipe",
	"unexpected EOF",
}

// Retryable reports whether a failure is worth another attempt.
// Only extraction and load faults are candidates; everything else is a
// programming or configuration problem that retrying cannot fix.
// Context cancellation is never retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch KindOf(err) {
	case KindExtraction, KindLoad:
	default:
		return false
	}
	msg := err.Error()
	for _, code := range retryableVendorCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}
