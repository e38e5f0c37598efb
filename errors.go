package agentstream

import (
	"errors"
	"fmt"
)

// Sentinel errors for the few operations that can report failure.
// Ingestion and materialization never fail; these come from decoders
// and configuration loading. Check them with errors.Is().
var (
	// ErrHeaderNotFound indicates no usable initialization header was found.
	// Callers fall back to heuristic format detection.
	ErrHeaderNotFound = errors.New("agentstream: initialization header not found")

	// ErrTrailerNotFound indicates no usable trailer header was found.
	ErrTrailerNotFound = errors.New("agentstream: trailer header not found")

	// ErrUnknownFormat indicates a format id with no registered parser.
	ErrUnknownFormat = errors.New("agentstream: unknown stream format")

	// ErrInvalidTagConfig indicates a tag dialect configuration that cannot be used.
	ErrInvalidTagConfig = errors.New("agentstream: invalid tag configuration")
)

// FramingError describes why a framing header could not be decoded.
type FramingError struct {
	Element string // Header element name ("meta_init", "meta_final")
	Reason  string // Human-readable explanation
	Err     error  // Wrapped sentinel (ErrHeaderNotFound or ErrTrailerNotFound)
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("framing element '%s': %s (%v)", e.Element, e.Reason, e.Err)
	}
	return fmt.Sprintf("framing element '%s': %s", e.Element, e.Reason)
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means a header or trailer was absent or unusable.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrHeaderNotFound) || errors.Is(err, ErrTrailerNotFound)
}
