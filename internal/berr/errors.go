// Package berr defines the error taxonomy shared by every component of the
// trust-and-transport core. Every boundary function returns a *berr.Error (or
// nil) rather than an ad-hoc error string, so callers can errors.As/errors.Is
// against a specific Kind regardless of which component raised it.
package berr

import (
	"errors"
	"fmt"
)

// Kind is one of the ten error categories from the error handling design.
type Kind int

const (
	// InvalidArgument covers bad parameters, malformed PEM/JSON, or a wrong
	// key-id for the requested operation.
	InvalidArgument Kind = iota
	// NotReady covers an unmet state precondition, e.g. reading a field of
	// the Key Material Store before it was ever set.
	NotReady
	// SequenceError covers an operation invoked in the wrong Peer Session
	// or Credential Engine Facade state.
	SequenceError
	// AlreadyExists covers activating an already-active session.
	AlreadyExists
	// NotFound covers a model path missing on the server.
	NotFound
	// OutOfMemory covers allocation failure.
	OutOfMemory
	// CryptoFault covers an RSA/AES primitive failure.
	CryptoFault
	// TransportFault covers a non-OK RPC status.
	TransportFault
	// AuthFault covers a nonce or uuid mismatch.
	AuthFault
	// UnsupportedOperation covers a request for a capability that does not
	// exist on this build.
	UnsupportedOperation
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case NotReady:
		return "NotReady"
	case SequenceError:
		return "SequenceError"
	case AlreadyExists:
		return "AlreadyExists"
	case NotFound:
		return "NotFound"
	case OutOfMemory:
		return "OutOfMemory"
	case CryptoFault:
		return "CryptoFault"
	case TransportFault:
		return "TransportFault"
	case AuthFault:
		return "AuthFault"
	case UnsupportedOperation:
		return "UnsupportedOperation"
	default:
		return "Unknown"
	}
}

// Errno returns the errno-style code this Kind maps onto at the API
// boundary, per the error taxonomy.
func (k Kind) Errno() int {
	switch k {
	case InvalidArgument, NotReady:
		return -22 // EINVAL
	case SequenceError:
		return -84 // EILSEQ
	case AlreadyExists:
		return -114 // EALREADY
	case NotFound:
		return -2 // ENOENT
	case OutOfMemory:
		return -12 // ENOMEM
	case CryptoFault, TransportFault:
		return -14 // EFAULT
	case AuthFault:
		return -1 // Unauthenticated, no direct errno; -1 is the library sentinel
	case UnsupportedOperation:
		return -95 // ENOTSUP
	default:
		return -1
	}
}

// Error is the single error type returned from every component boundary.
type Error struct {
	Kind      Kind
	Component string
	Op        string
	Cause     error
}

// New builds an Error with no wrapped cause.
func New(kind Kind, component, op string) *Error {
	return &Error{Kind: kind, Component: component, Op: op}
}

// Wrap builds an Error that wraps cause, following the "component: op: %w"
// message convention used throughout the core.
func Wrap(kind Kind, component, op string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Op: op, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Component, e.Op, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Component, e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is(err, berr.New(SomeKind, "", "")) to match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, and reports
// whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
