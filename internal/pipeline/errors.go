package pipeline

import (
	"errors"
	"fmt"
)

// ErrRetryExhausted is returned when the transcription poller hits its retry
// ceiling without the job resolving. The pipeline records it as a provider
// failure on the transcription stage.
var ErrRetryExhausted = errors.New("transcription poll retries exhausted")

// PreconditionError indicates an operation was invoked out of pipeline order,
// e.g. advancing before a transcript exists. It is a caller bug: rejected
// immediately, never retried.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// IsPrecondition reports whether err is a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
