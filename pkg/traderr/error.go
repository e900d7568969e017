package traderr

import (
	"errors"
	"fmt"
	"log"
	"os"
)

// Kind classifies a trading error so callers can decide how loudly to react.
type Kind string

const (
	// KindPrecondition marks an operation that was called before its
	// requirements were met (missing asset id, missing withdrawal, ...).
	// Always fatal to the current operation, never retried.
	KindPrecondition Kind = "PRECONDITION"

	// KindSilent marks an expected failure (outbid, withdrawal rejected,
	// bid placement failed). It propagates but should not produce
	// user-facing noise.
	KindSilent Kind = "SILENT"

	// KindStorage marks a stored value whose shape does not match what
	// was expected. Indicates data corruption; fatal, not retried.
	KindStorage Kind = "STORAGE"
)

// Error is a classified trading error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Precondition creates a precondition error.
func Precondition(message string) *Error {
	return &Error{Kind: KindPrecondition, Message: message}
}

// Silent creates an expected, non-fatal error. cause may be nil.
func Silent(message string, cause error) *Error {
	return &Error{Kind: KindSilent, Message: message, Cause: cause}
}

// Storage creates a storage shape error.
func Storage(message string) *Error {
	return &Error{Kind: KindStorage, Message: message}
}

// IsSilent reports whether err is an expected, non-fatal failure.
func IsSilent(err error) bool {
	return is(err, KindSilent)
}

// IsPrecondition reports whether err is a precondition failure.
func IsPrecondition(err error) bool {
	return is(err, KindPrecondition)
}

// IsStorage reports whether err is a storage shape failure.
func IsStorage(err error) bool {
	return is(err, KindStorage)
}

func is(err error, kind Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == kind
}

// Handle applies the top-level error policy: silent errors are suppressed
// unless TRADE_BOTS_DEBUG is set, everything else is logged loudly.
// A nil err is a no-op.
func Handle(err error) {
	if err == nil {
		return
	}

	if IsSilent(err) {
		if os.Getenv("TRADE_BOTS_DEBUG") != "" {
			log.Printf("[traderr] silent error: %v", err)
		}
		return
	}

	log.Printf("[traderr] unexpected error: %v", err)
}
