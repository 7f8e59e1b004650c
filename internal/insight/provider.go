package insight

import (
	"context"
	"fmt"

	"callscope/internal/model"
)

// AnalyzeRequest carries the inputs of the analyze operation.
type AnalyzeRequest struct {
	RecordingID  string `json:"recording_id"`
	Transcript   string `json:"transcript"`
	Language     string `json:"language"`
	ContextLabel string `json:"context_label"`
}

// FeedbackRequest carries the inputs of the feedback operation.
type FeedbackRequest struct {
	RecordingID string          `json:"recording_id"`
	Transcript  string          `json:"transcript"`
	Language    string          `json:"language"`
	Analysis    *model.Analysis `json:"analysis"`
}

// FollowupRequest carries the inputs of the followup operation.
type FollowupRequest struct {
	RecordingID string          `json:"recording_id"`
	Transcript  string          `json:"transcript"`
	Analysis    *model.Analysis `json:"analysis"`
	Feedback    *model.Feedback `json:"feedback,omitempty"`
	Language    string          `json:"language"`
	Channel     string          `json:"channel"`
	Tone        string          `json:"tone"`
}

// Provider defines the three insight operations the pipeline consumes.
// Each operation fails with a *ServiceError.
type Provider interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*model.Analysis, error)
	Feedback(ctx context.Context, req FeedbackRequest) (*model.Feedback, error)
	Followup(ctx context.Context, req FollowupRequest) (*model.Followup, error)

	// Name returns the provider name (e.g. "service", "openai").
	Name() string
}

// ServiceError is an insight provider failure with an HTTP-like status.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("insight service error %d: %s", e.StatusCode, e.Message)
}
