package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the pipeline state of a recording. It is a best-effort
// progress indicator: control flow gates on output-field presence, never on
// status, so a stale status after a crash cannot skip or repeat work.
type Status string

const (
	StatusWaitingTranscription Status = "waiting_transcription"
	StatusTranscribing         Status = "transcribing"
	StatusTranscribed          Status = "transcribed"
	StatusAnalyzing            Status = "analyzing"
	StatusAnalyzed             Status = "analyzed"
	StatusGeneratingFeedback   Status = "generating_feedback"
	StatusFeedbackReady        Status = "feedback_ready"
	StatusGeneratingFollowup   Status = "generating_followup"
	StatusFollowupReady        Status = "followup_ready"
	StatusDone                 Status = "done"
	StatusFailed               Status = "failed"
)

// Stage names recorded in ErrorStage when a pipeline stage fails.
const (
	StageTranscription = "transcription"
	StageAnalyze       = "analyze"
	StageFeedback      = "feedback"
	StageFollowup      = "followup"
)

// Supported language hints for transcription and insight generation.
const (
	LanguageAuto    = "auto"
	LanguageHebrew  = "he"
	LanguageEnglish = "en"
)

// IsTerminal reports whether no transition leaves this status.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// ValidTransition enforces the allowed state machine edges. Feedback failures
// never lead to failed, which is why generating_feedback has no failed edge
// and jumps straight to generating_followup when feedback is skipped or lost.
func ValidTransition(from, to Status) bool {
	switch from {
	case StatusWaitingTranscription:
		return to == StatusTranscribing || to == StatusFailed
	case StatusTranscribing:
		return to == StatusTranscribed || to == StatusFailed
	case StatusTranscribed:
		return to == StatusAnalyzing
	case StatusAnalyzing:
		return to == StatusAnalyzed || to == StatusFailed
	case StatusAnalyzed:
		return to == StatusGeneratingFeedback || to == StatusGeneratingFollowup
	case StatusGeneratingFeedback:
		return to == StatusFeedbackReady || to == StatusGeneratingFollowup
	case StatusFeedbackReady:
		return to == StatusGeneratingFollowup
	case StatusGeneratingFollowup:
		return to == StatusFollowupReady || to == StatusFailed
	case StatusFollowupReady:
		return to == StatusDone
	default:
		// done and failed are terminal
		return false
	}
}

// Recording is the persistent entity the pipeline manipulates. Optional
// fields are pointers so a nil unambiguously means "stage has not run".
type Recording struct {
	ID                 uuid.UUID       `json:"id"`
	ContextLabel       string          `json:"context_label,omitempty"`
	AudioPath          string          `json:"audio_path"`
	Language           string          `json:"language"`
	Status             Status          `json:"status"`
	TranscriptionJobID string          `json:"transcription_job_id,omitempty"`
	Transcript         string          `json:"transcript,omitempty"`
	RawTranscription   json.RawMessage `json:"raw_transcription,omitempty"`
	Analysis           *Analysis       `json:"analysis,omitempty"`
	Feedback           *Feedback       `json:"feedback,omitempty"`
	Followup           *Followup       `json:"followup,omitempty"`
	ErrorStage         *string         `json:"error_stage,omitempty"`
	ErrorMessage       *string         `json:"error_message,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// HasTranscript reports whether the transcription stage has produced output.
func (r *Recording) HasTranscript() bool {
	return strings.TrimSpace(r.Transcript) != ""
}

// RecordingUpdate is a partial update applied atomically by the repository.
// Nil fields are left untouched.
type RecordingUpdate struct {
	Status             *Status
	TranscriptionJobID *string
	Transcript         *string
	RawTranscription   json.RawMessage
	Analysis           *Analysis
	Feedback           *Feedback
	Followup           *Followup
	ErrorStage         *string
	ErrorMessage       *string
}
