package app

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers classify with errors.Is; the cause is kept in the
// chain for logging.
var (
	ErrPayloadInvalid      = errors.New("payload invalid")
	ErrExtractionFailed    = errors.New("text extraction failed")
	ErrEmptyDocument       = errors.New("document contains no text")
	ErrResponseMalformed   = errors.New("model response malformed")
	ErrStorageFailed       = errors.New("storage failed")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")

	ErrTopicsMissing = errors.New("chat topics missing")
	ErrNoDocuments   = errors.New("chat has no documents")
	ErrDocumentLimit = fmt.Errorf("%w: document limit reached", ErrPayloadInvalid)
)

// MalformedResponseError carries the raw completion text that failed to
// parse.
type MalformedResponseError struct {
	Raw    string
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "Failed to parse AI response. Raw text: " + e.Raw
}

func (e *MalformedResponseError) Unwrap() error {
	return ErrResponseMalformed
}

func wrap(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPayloadInvalid, fmt.Sprintf(format, args...))
}
