package transcription

import (
	"context"
	"fmt"
)

// Job statuses reported by Poll.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobCompleted JobStatus = "completed"
	JobError     JobStatus = "error"
)

// Utterance is one speaker-attributed segment of a transcript.
type Utterance struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Start      float64 `json:"start,omitempty"`
	End        float64 `json:"end,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// JobResult is the outcome of polling a transcription job. On completion the
// payload carries either speaker-attributed utterances or a flat text field.
type JobResult struct {
	JobID      string      `json:"job_id"`
	Status     JobStatus   `json:"status"`
	Text       string      `json:"text,omitempty"`
	Utterances []Utterance `json:"utterances,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Provider defines the interface for asynchronous transcription backends.
type Provider interface {
	// Submit sends an audio reference for transcription and returns a job id.
	Submit(ctx context.Context, audioRef, language string) (string, error)

	// Poll queries the status of a previously submitted job.
	Poll(ctx context.Context, jobID string) (*JobResult, error)

	// Name returns the provider name (e.g. "http", "mock").
	Name() string
}

// ProviderError is a transcription submission or poll failure.
type ProviderError struct {
	Op      string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcription %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("transcription %s: %s", e.Op, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }
