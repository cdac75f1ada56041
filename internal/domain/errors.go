package domain

import "errors"

// Kind is the error taxonomy from the error-handling design: a name, not a
// concrete type, so call sites compare with errors.Is against the sentinel
// values below rather than switching on a custom interface.
type Kind string

const (
	KindUnavailable      Kind = "unavailable"
	KindTimeout          Kind = "timeout"
	KindDisconnected     Kind = "disconnected"
	KindConflict         Kind = "conflict"
	KindInvalidRequest   Kind = "invalid_request"
	KindBlockedByRisk    Kind = "blocked_by_risk"
	KindDataInconsistency Kind = "data_inconsistency"
	KindCapacity         Kind = "capacity"
	KindInternal         Kind = "internal"
)

// Sentinel errors, one per kind, so callers can do errors.Is(err, domain.ErrTimeout).
var (
	ErrUnavailable       = errors.New(string(KindUnavailable))
	ErrTimeout           = errors.New(string(KindTimeout))
	ErrDisconnected      = errors.New(string(KindDisconnected))
	ErrConflict          = errors.New(string(KindConflict))
	ErrInvalidRequest    = errors.New(string(KindInvalidRequest))
	ErrBlockedByRisk     = errors.New(string(KindBlockedByRisk))
	ErrDataInconsistency = errors.New(string(KindDataInconsistency))
	ErrCapacity          = errors.New(string(KindCapacity))
	ErrInternal          = errors.New(string(KindInternal))
)

func kindToErr(k Kind) error {
	switch k {
	case KindUnavailable:
		return ErrUnavailable
	case KindTimeout:
		return ErrTimeout
	case KindDisconnected:
		return ErrDisconnected
	case KindConflict:
		return ErrConflict
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindBlockedByRisk:
		return ErrBlockedByRisk
	case KindDataInconsistency:
		return ErrDataInconsistency
	case KindCapacity:
		return ErrCapacity
	default:
		return ErrInternal
	}
}

// KindError wraps an underlying cause with its taxonomy kind, giving
// errors.Is/As callers both the category and the detail message.
type KindError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *KindError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *KindError) Unwrap() error {
	if e.Cause != nil {
		return errors.Join(kindToErr(e.Kind), e.Cause)
	}
	return kindToErr(e.Kind)
}

// NewError builds a KindError; cause may be nil.
func NewError(kind Kind, message string, cause error) error {
	return &KindError{Kind: kind, Message: message, Cause: cause}
}

// ErrorKind extracts the taxonomy kind from err, defaulting to
// KindInternal if err doesn't carry one.
func ErrorKind(err error) Kind {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	switch {
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrDisconnected):
		return KindDisconnected
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrBlockedByRisk):
		return KindBlockedByRisk
	case errors.Is(err, ErrDataInconsistency):
		return KindDataInconsistency
	case errors.Is(err, ErrCapacity):
		return KindCapacity
	}
	return KindInternal
}
