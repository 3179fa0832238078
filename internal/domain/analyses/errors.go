package analyses

import (
	"errors"
	"fmt"
)

// FaultKind classifies a pipeline failure. Validation and not-found
// faults fail an analysis immediately; transient and internal faults are
// retried by the queue until attempts run out.
type FaultKind string

const (
	FaultValidation FaultKind = "validation"
	FaultNotFound   FaultKind = "not_found"
	FaultTransient  FaultKind = "transient_io"
	FaultInternal   FaultKind = "internal"
)

// Fault carries the failure taxonomy through the worker path.
type Fault struct {
	Kind FaultKind
	Msg  string
	Err  error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Msg, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Msg)
}

func (f *Fault) Unwrap() error { return f.Err }

// Summary is the user-visible error string; no stack traces, no wrapped
// driver internals.
func (f *Fault) Summary() string { return f.Msg }

func Validationf(format string, args ...any) *Fault {
	return &Fault{Kind: FaultValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Fault {
	return &Fault{Kind: FaultNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Transient(msg string, err error) *Fault {
	return &Fault{Kind: FaultTransient, Msg: msg, Err: err}
}

func Internal(msg string, err error) *Fault {
	return &Fault{Kind: FaultInternal, Msg: msg, Err: err}
}

// KindOf maps any error onto the taxonomy. Unclassified errors are
// treated as internal so they stay retryable but visible in audit logs.
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return FaultInternal
}

// IsRetryable reports whether the queue should redeliver after backoff.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case FaultValidation, FaultNotFound:
		return false
	}
	return true
}

// SummaryOf extracts the user-visible summary from any error.
func SummaryOf(err error) string {
	var f *Fault
	if errors.As(err, &f) {
		return f.Summary()
	}
	return err.Error()
}
