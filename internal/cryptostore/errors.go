package cryptostore

import "github.com/pkg/errors"

// ErrLocked is returned by any repository call made before the store has
// been unlocked.
var ErrLocked = errors.New("cryptostore: store is locked")

// ErrMissingAccountInfo is returned when a session or group session needs
// to be reconstituted before an Account has ever been loaded or saved.
var ErrMissingAccountInfo = errors.New("cryptostore: no account info loaded")

// BackendError wraps a failure reported by the SQL engine: connection
// loss, constraint violations, serialization failures.
type BackendError struct{ cause error }

func (e *BackendError) Error() string { return "cryptostore: backend: " + e.cause.Error() }
func (e *BackendError) Unwrap() error { return e.cause }

func wrapBackend(err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{cause: err}
}

// EnvelopeError wraps a decode/decrypt/authentication failure for a
// specific persisted row. It is treated as unrecoverable corruption for
// that row, never silently downgraded to absence.
type EnvelopeError struct{ cause error }

func (e *EnvelopeError) Error() string { return "cryptostore: envelope: " + e.cause.Error() }
func (e *EnvelopeError) Unwrap() error { return e.cause }

func wrapEnvelope(err error) error {
	if err == nil {
		return nil
	}
	return &EnvelopeError{cause: err}
}

// SignError wraps a failure to de-pickle a cross-signing key.
type SignError struct{ cause error }

func (e *SignError) Error() string { return "cryptostore: sign: " + e.cause.Error() }
func (e *SignError) Unwrap() error { return e.cause }

func wrapSign(err error) error {
	if err == nil {
		return nil
	}
	return &SignError{cause: err}
}
