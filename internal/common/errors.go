// Package common defines shared constants and sentinel errors used across
// the drive client. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Crypto errors. ErrIntegrity wraps ErrCrypto so callers matching the
	// broader class still catch authentication failures.
	ErrCrypto    = errors.New("crypto failure")
	ErrIntegrity = fmtWrap("integrity check failed", ErrCrypto)

	// Transport errors. ErrNetwork is transient and retryable; everything
	// else in this group is surfaced immediately.
	ErrNetwork      = errors.New("network failure")
	ErrUnauthorized = errors.New("unauthorized")

	// Mutation errors.
	ErrValidation = errors.New("validation failure")
	ErrConflict   = errors.New("conflict")

	// Task lifecycle errors.
	ErrCancelled = errors.New("cancelled")
)

// fmtWrap builds a sentinel that both carries its own message and unwraps to
// parent, so errors.Is(err, parent) holds.
func fmtWrap(msg string, parent error) error {
	return &wrappedSentinel{msg: msg, parent: parent}
}

type wrappedSentinel struct {
	msg    string
	parent error
}

func (w *wrappedSentinel) Error() string { return w.msg }
func (w *wrappedSentinel) Unwrap() error { return w.parent }
