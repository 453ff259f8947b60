package types

import "errors"

// Configuration errors. None of these are retried.
var (
	ErrScheduleParse       = errors.New("schedule parse error")
	ErrUnknownDeliveryMode = errors.New("unknown delivery mode")
	ErrSecretNotFound      = errors.New("secret not found")
	ErrUnknownClient       = errors.New("unknown client")
	ErrInvalidReference    = errors.New("invalid reference")
)

// ErrStoreUnavailable marks storage failures that the caller may retry.
var ErrStoreUnavailable = errors.New("store unavailable")

var fatalSentinels = []error{
	ErrScheduleParse,
	ErrUnknownDeliveryMode,
	ErrSecretNotFound,
	ErrUnknownClient,
	ErrInvalidReference,
}

// FatalError wraps an error that must not be retried
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal marks err as non-retryable. Fatal(nil) returns nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err should end a stage without further attempts
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return true
	}
	for _, s := range fatalSentinels {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}
