// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package pipeline

import "errors"

// Kind classifies a pipeline Error, per the error taxonomy a
// caller needs to distinguish: defects discovered at wiring
// time, defects discovered at run time, resource exhaustion,
// cancellation, and missing device capabilities.
type Kind int

const (
	ValidationError Kind = iota
	IllegalOperationError
	ResourceError
	CancelledError
	NotSupportedError
)

func (k Kind) String() string {
	switch k {
	case ValidationError:
		return "ValidationError"
	case IllegalOperationError:
		return "IllegalOperationError"
	case ResourceError:
		return "ResourceError"
	case CancelledError:
		return "Cancelled"
	case NotSupportedError:
		return "NotSupportedError"
	default:
		return "Kind(?)"
	}
}

// Reason is a specific defect within a Kind. The zero value
// is never used; every Error carries a non-zero Reason.
type Reason int

const (
	_ Reason = iota

	// ValidationError reasons.
	Cycle
	UnconnectedInput
	TypeMismatch
	MultipleSinks
	NoSink
	DuplicateNodeName

	// IllegalOperationError reasons.
	WrongMessage
	ReadBeforeWrite
	Uninitialized
	Busy

	// ResourceError reasons.
	AllocationFailure
	PoolExhausted

	// CancelledError reasons.
	Torndown

	// NotSupportedError reasons.
	MissingCapability
)

func (r Reason) String() string {
	switch r {
	case Cycle:
		return "Cycle"
	case UnconnectedInput:
		return "UnconnectedInput"
	case TypeMismatch:
		return "TypeMismatch"
	case MultipleSinks:
		return "MultipleSinks"
	case NoSink:
		return "NoSink"
	case DuplicateNodeName:
		return "DuplicateNodeName"
	case WrongMessage:
		return "WrongMessage"
	case ReadBeforeWrite:
		return "ReadBeforeWrite"
	case Uninitialized:
		return "Uninitialized"
	case Busy:
		return "Busy"
	case AllocationFailure:
		return "AllocationFailure"
	case PoolExhausted:
		return "PoolExhausted"
	case Torndown:
		return "Torndown"
	case MissingCapability:
		return "MissingCapability"
	default:
		return "Reason(?)"
	}
}

// Error is the concrete error type every failure this package
// reports is wrapped in. Kind groups the failure for coarse
// handling (e.g. retry on ResourceError, never on
// ValidationError); Reason pinpoints the specific defect.
type Error struct {
	Kind   Kind
	Reason Reason
	// Detail, if non-empty, names the offending node or port.
	Detail string
	// Err, if non-nil, is the underlying cause (e.g. a
	// driver allocation failure).
	Err error
}

func (e *Error) Error() string {
	s := "pipeline: " + e.Kind.String() + ": " + e.Reason.String()
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind
// and Reason, ignoring Detail and Err. This lets callers test
// for a specific failure with errors.Is(err, &pipeline.Error{Kind: ..., Reason: ...}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

func newError(kind Kind, reason Reason, detail string) *Error {
	return &Error{Kind: kind, Reason: reason, Detail: detail}
}

func wrapError(kind Kind, reason Reason, detail string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Detail: detail, Err: err}
}

// errBusy is returned by Run when Config.OnBusy is Reject and
// a run is already in flight.
var errBusy = errors.New("pipeline: busy")
