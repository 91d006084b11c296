package domain

import (
	"crypto/rand"
	"errors"
	"fmt"
)

// Sentinel errors shared by all three services. Handlers map these to HTTP
// status codes; anything that doesn't match is treated as an internal error
// and reported with a correlation ID instead of the raw message.
var (
	// ErrNotFound signals a missing entity or association.
	ErrNotFound = errors.New("not found")

	// ErrValidation signals invalid caller input (time-range or duration
	// bounds, malformed ids).
	ErrValidation = errors.New("validation failed")

	// ErrConflict signals a client-visible conflict: stale version,
	// overlapping meeting/event, duplicate unique name or email.
	ErrConflict = errors.New("conflict")

	// ErrWriteConflict signals a transient write-write race detected by the
	// store (two writers passed the version check simultaneously). It is
	// retried by occ.Guard and never surfaces to callers directly.
	ErrWriteConflict = errors.New("write conflict")

	// ErrConcurrentModification is returned once the retry budget for
	// ErrWriteConflict is exhausted.
	ErrConcurrentModification = errors.New("concurrent modification")
)

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// nanoid alphabet (URL-safe)
const correlationAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// CorrelationID generates a short random ID used to tie a logged internal
// error to the generic failure returned to the caller.
func CorrelationID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "unknown"
	}
	for i := range bytes {
		bytes[i] = correlationAlphabet[bytes[i]%byte(len(correlationAlphabet))]
	}
	return string(bytes)
}
