package types

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Typed Errors (stable categories for programmatic handling)
// -----------------------------------------------------------------------------

// ErrKind classifies errors so callers can branch on intent rather than text.
type ErrKind int

const (
	ErrKindInvalidTransactionID ErrKind = iota // id empty or path-traversal shaped
	ErrKindNotFound                            // missing manifest/value/file
	ErrKindCannotRestore                       // transaction marked non-restorable
	ErrKindInvalidState                        // wrong status for the requested transition
	ErrKindRestoreFailed                       // restore raised an underlying error
	ErrKindNoStrategy                          // no executor strategy for an entry kind
	ErrKindUnknownAction                       // action kind the executor does not handle
	ErrKindUnsupported                         // strategy exists but refuses the action
	ErrKindAccessDenied                        // action requires elevation
	ErrKindIntegrityMismatch                   // sidecar tag missing/mismatched (strict policy only)
	ErrKindStorage                             // manifest/payload persistence failure
)

// String returns the stable code used in ActionResult.Code.
func (k ErrKind) String() string {
	switch k {
	case ErrKindInvalidTransactionID:
		return "InvalidTransactionId"
	case ErrKindNotFound:
		return "NotFound"
	case ErrKindCannotRestore:
		return "CannotRestore"
	case ErrKindInvalidState:
		return "InvalidState"
	case ErrKindRestoreFailed:
		return "RestoreFailed"
	case ErrKindNoStrategy:
		return "NoStrategy"
	case ErrKindUnknownAction:
		return "UnknownAction"
	case ErrKindUnsupported:
		return "Unsupported"
	case ErrKindAccessDenied:
		return "AccessDenied"
	case ErrKindIntegrityMismatch:
		return "IntegrityMismatch"
	case ErrKindStorage:
		return "Storage"
	default:
		return fmt.Sprintf("ErrKind(%d)", int(k))
	}
}

// Error is a typed error with an optional underlying cause.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error // optional underlying cause
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, ErrNotFound) matches any not-found error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Errorf builds a typed error with a formatted message.
func Errorf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a typed error around cause.
func Wrap(kind ErrKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf extracts the ErrKind of err. ok is false when err carries no *Error.
func KindOf(err error) (kind ErrKind, ok bool) {
	var te *Error
	if errors.As(err, &te) && te != nil {
		return te.Kind, true
	}
	return 0, false
}

// Sentinels commonly returned by implementations.
var (
	// ErrInvalidTransactionID indicates an id that cannot name a transaction directory.
	ErrInvalidTransactionID = &Error{Kind: ErrKindInvalidTransactionID, Msg: "invalid transaction id"}
	// ErrNotFound indicates a missing manifest, value or file.
	ErrNotFound = &Error{Kind: ErrKindNotFound, Msg: "not found"}
	// ErrCannotRestore indicates the transaction is not restore-eligible.
	ErrCannotRestore = &Error{Kind: ErrKindCannotRestore, Msg: "transaction cannot be restored"}
	// ErrInvalidState indicates an illegal status transition.
	ErrInvalidState = &Error{Kind: ErrKindInvalidState, Msg: "invalid transaction state"}
	// ErrRestoreFailed indicates the restore routine failed.
	ErrRestoreFailed = &Error{Kind: ErrKindRestoreFailed, Msg: "restore failed"}
	// ErrNoStrategy indicates no executor strategy is registered for an entry kind.
	ErrNoStrategy = &Error{Kind: ErrKindNoStrategy, Msg: "no strategy for entry kind"}
	// ErrUnknownAction indicates an action the executor does not handle.
	ErrUnknownAction = &Error{Kind: ErrKindUnknownAction, Msg: "unknown action"}
	// ErrUnsupported indicates a strategy refused the action.
	ErrUnsupported = &Error{Kind: ErrKindUnsupported, Msg: "action not supported for entry"}
	// ErrAccessDenied indicates the action requires elevation.
	ErrAccessDenied = &Error{Kind: ErrKindAccessDenied, Msg: "administrator rights required"}
	// ErrIntegrityMismatch indicates a missing or mismatched integrity sidecar.
	ErrIntegrityMismatch = &Error{Kind: ErrKindIntegrityMismatch, Msg: "manifest integrity check failed"}
	// ErrStorage indicates a persistence failure.
	ErrStorage = &Error{Kind: ErrKindStorage, Msg: "storage failure"}
)

// -----------------------------------------------------------------------------
// Actor
// -----------------------------------------------------------------------------

// UnknownActor is the sentinel name used when identity lookup fails.
const UnknownActor = "unknown"

// Actor identifies who performed a mutation and where.
type Actor struct {
	Name    string `json:"name"`
	ID      string `json:"id,omitempty"`      // stable id (SID/uid), optional
	Machine string `json:"machine,omitempty"` // machine name, optional
}

// -----------------------------------------------------------------------------
// Action results (shared by the transaction manager and the executor)
// -----------------------------------------------------------------------------

// ActionResult is the uniform outcome of a workflow operation. Workflow
// failures are reported here rather than as returned errors.
type ActionResult struct {
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	Code          string `json:"code,omitempty"`
	Entry         *Entry `json:"entry,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
}

// Succeeded builds a successful result.
func Succeeded(entry *Entry, txID string) ActionResult {
	return ActionResult{Success: true, Entry: entry, TransactionID: txID}
}

// Failed builds a failed result from err. The code is taken from the typed
// error kind when err carries one.
func Failed(err error, txID string) ActionResult {
	res := ActionResult{TransactionID: txID}
	if err != nil {
		res.Error = err.Error()
		if kind, ok := KindOf(err); ok {
			res.Code = kind.String()
		}
	}
	return res
}

// -----------------------------------------------------------------------------
// Entry snapshot
// -----------------------------------------------------------------------------

// Entry is a snapshot of one auto-start configuration entry as reported by
// the scanner collaborator.
type Entry struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"displayName"`
	Kind        EntryKind   `json:"kind"`
	Scope       Scope       `json:"scope"`
	SourcePath  string      `json:"sourcePath"`           // key path, file path or service key
	SourceName  string      `json:"sourceName,omitempty"` // value name within SourcePath
	RawValue    string      `json:"rawValue,omitempty"`   // command line as stored
	Status      EntryStatus `json:"status"`
}
