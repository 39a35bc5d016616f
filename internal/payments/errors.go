package payments

import "errors"

// Kind classifies engine failures. The set is closed: every error returned by
// the Engine is an *Error carrying one of these kinds.
type Kind int

const (
	KindValidation    Kind = iota + 1 // malformed input, nothing persisted
	KindNotFound                      // referenced transaction does not exist
	KindConflict                      // referenced transaction is in the wrong state
	KindInvalidAmount                 // amount exceeds the parent transaction
	KindInvalidState                  // referenced transaction has the wrong type
	KindInProgress                    // same idempotency key is being processed
	KindStorage                       // store fault or timeout, safe to retry
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidAmount:
		return "invalid_amount"
	case KindInvalidState:
		return "invalid_state"
	case KindInProgress:
		return "request_in_progress"
	case KindStorage:
		return "storage_error"
	default:
		return "unknown"
	}
}

// Retryable reports whether a client may resend the request with the same idempotency key.
func (k Kind) Retryable() bool {
	return k == KindStorage || k == KindInProgress
}

// Error is the engine's failure type.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the bare kind sentinels below, so errors.Is(err, ErrNotFound) works
// for any not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrConflict      = &Error{Kind: KindConflict}
	ErrInvalidAmount = &Error{Kind: KindInvalidAmount}
	ErrInvalidState  = &Error{Kind: KindInvalidState}
	ErrInProgress    = &Error{Kind: KindInProgress}
	ErrStorage       = &Error{Kind: KindStorage}
)

// KindOf returns the kind of err, or 0 when err is not an engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func storageError(msg string, err error) *Error {
	return &Error{Kind: KindStorage, Message: msg, Err: err}
}
