package ollama

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable means the Ollama service could not be reached.
	ErrBackendUnavailable = errors.New("ollama backend unavailable")
	// ErrTimeout means an attempt or the overall call budget ran out.
	ErrTimeout = errors.New("ollama request timed out")
	// ErrModelNotFound means the requested model is not present upstream.
	ErrModelNotFound = errors.New("ollama model not found")
)

// UnexpectedStatusError carries a non-2xx upstream response that is neither
// a model-not-found nor a transport failure.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
}

func (e *UnexpectedStatusError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("ollama returned status %d: %s", e.StatusCode, body)
}

// IsRetryable reports whether a completion error is transient. Only timeouts
// and unreachable-backend failures are retried; everything else fails fast.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrBackendUnavailable)
}
