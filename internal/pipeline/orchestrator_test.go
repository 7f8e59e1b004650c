package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callscope/internal/insight"
	"callscope/internal/logger"
	"callscope/internal/model"
	"callscope/internal/repository"
	"callscope/internal/scheduler"
	"callscope/internal/transcription"
)

// fakeTranscriber returns pending for the first pendingPolls polls, then its
// final result. A nil final result with no errors means always pending.
type fakeTranscriber struct {
	mu           sync.Mutex
	submits      int
	polls        int
	submitErr    error
	pollErr      error
	pendingPolls int
	final        *transcription.JobResult
}

func (f *fakeTranscriber) Name() string { return "fake" }

func (f *fakeTranscriber) Submit(_ context.Context, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "job-test-1", nil
}

func (f *fakeTranscriber) Poll(_ context.Context, jobID string) (*transcription.JobResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if f.polls <= f.pendingPolls || f.final == nil {
		return &transcription.JobResult{JobID: jobID, Status: transcription.JobPending}, nil
	}
	return f.final, nil
}

func completedResult() *transcription.JobResult {
	return &transcription.JobResult{
		JobID:  "job-test-1",
		Status: transcription.JobCompleted,
		Utterances: []transcription.Utterance{
			{Speaker: "A", Text: "Hi", Start: 0, End: 1},
			{Speaker: "B", Text: "Hello", Start: 1.2, End: 2},
		},
	}
}

// fakeInsight counts stage calls and fails the stages told to fail.
type fakeInsight struct {
	mu            sync.Mutex
	analyzeCalls  int
	feedbackCalls int
	followupCalls int
	analyzeErr    error
	feedbackErr   error
	followupErr   error
}

func (f *fakeInsight) Name() string { return "fake" }

func (f *fakeInsight) Analyze(_ context.Context, _ insight.AnalyzeRequest) (*model.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzeCalls++
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return &model.Analysis{
		Nuggets:        []string{"customer is price sensitive"},
		ClosingOutlook: model.ClosingOutlook{Score: 0.6, Reason: "engaged but undecided"},
	}, nil
}

func (f *fakeInsight) Feedback(_ context.Context, _ insight.FeedbackRequest) (*model.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedbackCalls++
	if f.feedbackErr != nil {
		return nil, f.feedbackErr
	}
	return &model.Feedback{Text: "Strong opener, close earlier."}, nil
}

func (f *fakeInsight) Followup(_ context.Context, req insight.FollowupRequest) (*model.Followup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followupCalls++
	if f.followupErr != nil {
		return nil, f.followupErr
	}
	return &model.Followup{
		Message: "Hi, following up on our call.",
		Brief:   "undecided, price sensitive",
		Plan:    "send pricing, call Thursday",
		Channel: req.Channel,
		Tone:    req.Tone,
	}, nil
}

func newTestOrchestrator(transcriber transcription.Provider, insights insight.Provider, cfg Config) (*Orchestrator, repository.RecordingRepository) {
	repo := repository.NewMemoryRepository()
	orch := NewOrchestrator(repo, transcriber, insights, scheduler.NewSynchronous(), logger.New(), cfg)
	return orch, repo
}

func createRecording(t *testing.T, repo repository.RecordingRepository) *model.Recording {
	t.Helper()
	rec := &model.Recording{
		ID:        uuid.New(),
		AudioPath: "uploads/test.m4a",
		Language:  model.LanguageAuto,
		Status:    model.StatusWaitingTranscription,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), rec))
	return rec
}

func TestPipelineHappyPath(t *testing.T) {
	transcriber := &fakeTranscriber{final: completedResult()}
	insights := &fakeInsight{}
	orch, repo := newTestOrchestrator(transcriber, insights, Config{})
	ctx := context.Background()
	rec := createRecording(t, repo)

	// the synchronous scheduler runs poll and advance inline
	_, err := orch.SubmitForTranscription(ctx, rec.ID)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, got.Status)
	assert.Equal(t, "job-test-1", got.TranscriptionJobID)
	assert.Equal(t, "A: Hi\nB: Hello", got.Transcript)
	assert.NotEmpty(t, got.RawTranscription)
	require.NotNil(t, got.Analysis)
	require.NotNil(t, got.Feedback)
	require.NotNil(t, got.Followup)
	assert.Nil(t, got.ErrorStage)
	assert.Nil(t, got.ErrorMessage)
	assert.Equal(t, model.DefaultFollowupChannel, got.Followup.Channel)

	assert.Equal(t, 1, transcriber.submits)
	assert.Equal(t, 1, transcriber.polls)
	assert.Equal(t, 1, insights.analyzeCalls)
	assert.Equal(t, 1, insights.feedbackCalls)
	assert.Equal(t, 1, insights.followupCalls)
}

func TestPipelineTerminalCallsAreNoOps(t *testing.T) {
	transcriber := &fakeTranscriber{final: completedResult()}
	insights := &fakeInsight{}
	orch, repo := newTestOrchestrator(transcriber, insights, Config{})
	ctx := context.Background()
	rec := createRecording(t, repo)

	_, err := orch.SubmitForTranscription(ctx, rec.ID)
	require.NoError(t, err)

	// every entry point is a no-op once the pipeline is terminal
	_, err = orch.SubmitForTranscription(ctx, rec.ID)
	require.NoError(t, err)
	_, err = orch.PollTranscription(ctx, rec.ID)
	require.NoError(t, err)
	_, err = orch.AdvancePipeline(ctx, rec.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, transcriber.submits)
	assert.Equal(t, 1, transcriber.polls)
	assert.Equal(t, 1, insights.analyzeCalls)
	assert.Equal(t, 1, insights.feedbackCalls)
	assert.Equal(t, 1, insights.followupCalls)
}

func TestSubmitWithoutAudio(t *testing.T) {
	orch, repo := newTestOrchestrator(&fakeTranscriber{}, &fakeInsight{}, Config{})
	ctx := context.Background()
	rec := &model.Recording{
		ID:        uuid.New(),
		Status:    model.StatusWaitingTranscription,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, rec))

	_, err := orch.SubmitForTranscription(ctx, rec.ID)
	assert.True(t, IsPrecondition(err))
}

func TestSubmitUnknownRecording(t *testing.T) {
	orch, _ := newTestOrchestrator(&fakeTranscriber{}, &fakeInsight{}, Config{})
	_, err := orch.SubmitForTranscription(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSubmitFailureMarksTranscriptionStage(t *testing.T) {
	transcriber := &fakeTranscriber{
		submitErr: &transcription.ProviderError{Op: "submit", Message: "invalid api key"},
	}
	orch, repo := newTestOrchestrator(transcriber, &fakeInsight{}, Config{})
	ctx := context.Background()
	rec := createRecording(t, repo)

	_, err := orch.SubmitForTranscription(ctx, rec.ID)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorStage)
	assert.Equal(t, model.StageTranscription, *got.ErrorStage)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "invalid api key")
}

func TestAnalyzeFailureIsFatal(t *testing.T) {
	transcriber := &fakeTranscriber{final: completedResult()}
	insights := &fakeInsight{
		analyzeErr: &insight.ServiceError{StatusCode: 500, Message: "model overloaded"},
	}
	orch, repo := newTestOrchestrator(transcriber, insights, Config{})
	ctx := context.Background()
	rec := createRecording(t, repo)

	_, err := orch.SubmitForTranscription(ctx, rec.ID)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorStage)
	assert.Equal(t, model.StageAnalyze, *got.ErrorStage)
	// the transcript survives the failure
	assert.Equal(t, "A: Hi\nB: Hello", got.Transcript)
	assert.Nil(t, got.Analysis)

	// downstream stages never ran
	assert.Equal(t, 0, insights.feedbackCalls)
	assert.Equal(t, 0, insights.followupCalls)

	// advancing a failed recording does nothing
	_, err = orch.AdvancePipeline(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, insights.analyzeCalls)
}

func TestFeedbackFailureIsNotFatal(t *testing.T) {
	transcriber := &fakeTranscriber{final: completedResult()}
	insights := &fakeInsight{
		feedbackErr: &insight.ServiceError{StatusCode: 502, Message: "bad gateway"},
	}
	orch, repo := newTestOrchestrator(transcriber, insights, Config{})
	ctx := context.Background()
	rec := createRecording(t, repo)

	_, err := orch.SubmitForTranscription(ctx, rec.ID)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	// the pipeline completes despite the feedback failure
	assert.Equal(t, model.StatusDone, got.Status)
	assert.Nil(t, got.Feedback)
	require.NotNil(t, got.Analysis)
	require.NotNil(t, got.Followup)
	// the failure is recorded without failing the run
	require.NotNil(t, got.ErrorStage)
	assert.Equal(t, model.StageFeedback, *got.ErrorStage)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "bad gateway")

	assert.Equal(t, 1, insights.followupCalls)
}

func TestFollowupFailureIsFatal(t *testing.T) {
	transcriber := &fakeTranscriber{final: completedResult()}
	insights := &fakeInsight{
		followupErr: &insight.ServiceError{StatusCode: 500, Message: "timeout"},
	}
	orch, repo := newTestOrchestrator(transcriber, insights, Config{})
	ctx := context.Background()
	rec := createRecording(t, repo)

	_, err := orch.SubmitForTranscription(ctx, rec.ID)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorStage)
	assert.Equal(t, model.StageFollowup, *got.ErrorStage)
	// earlier outputs survive
	require.NotNil(t, got.Analysis)
	require.NotNil(t, got.Feedback)
	assert.Nil(t, got.Followup)
}

func TestTranscriptionJobError(t *testing.T) {
	transcriber := &fakeTranscriber{
		final: &transcription.JobResult{
			JobID:  "job-test-1",
			Status: transcription.JobError,
			Error:  "audio unreadable",
		},
	}
	orch, repo := newTestOrchestrator(transcriber, &fakeInsight{}, Config{})
	ctx := context.Background()
	rec := createRecording(t, repo)

	_, err := orch.SubmitForTranscription(ctx, rec.ID)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorStage)
	assert.Equal(t, model.StageTranscription, *got.ErrorStage)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "audio unreadable")
}

func TestPollingSucceedsWithinRetryBudget(t *testing.T) {
	// pending on every scheduled attempt up to the ceiling, then completed
	transcriber := &fakeTranscriber{pendingPolls: 3, final: completedResult()}
	orch, repo := newTestOrchestrator(transcriber, &fakeInsight{}, Config{MaxPollRetries: 3})
	ctx := context.Background()
	rec := createRecording(t, repo)

	_, err := orch.SubmitForTranscription(ctx, rec.ID)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, got.Status)
	assert.Equal(t, 4, transcriber.polls)
}

func TestPollingRetryExhaustion(t *testing.T) {
	transcriber := &fakeTranscriber{} // always pending
	orch, repo := newTestOrchestrator(transcriber, &fakeInsight{}, Config{MaxPollRetries: 3})
	ctx := context.Background()
	rec := createRecording(t, repo)

	_, err := orch.SubmitForTranscription(ctx, rec.ID)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorStage)
	assert.Equal(t, model.StageTranscription, *got.ErrorStage)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "retries exhausted")
	// attempts 1..MaxPollRetries reschedule; one more ends the loop
	assert.Equal(t, 4, transcriber.polls)
}

func TestExternalPollDoesNotRetry(t *testing.T) {
	transcriber := &fakeTranscriber{} // always pending
	orch, repo := newTestOrchestrator(transcriber, &fakeInsight{}, Config{MaxPollRetries: 3})
	ctx := context.Background()

	rec := &model.Recording{
		ID:                 uuid.New(),
		AudioPath:          "uploads/test.m4a",
		Status:             model.StatusTranscribing,
		TranscriptionJobID: "job-test-1",
		CreatedAt:          time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, rec))

	got, err := orch.PollTranscription(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTranscribing, got.Status)
	// a caller probe polls exactly once, even with a synchronous scheduler
	assert.Equal(t, 1, transcriber.polls)
}

func TestExternalPollDeliversCompletion(t *testing.T) {
	transcriber := &fakeTranscriber{final: completedResult()}
	insights := &fakeInsight{}
	orch, repo := newTestOrchestrator(transcriber, insights, Config{})
	ctx := context.Background()

	rec := &model.Recording{
		ID:                 uuid.New(),
		AudioPath:          "uploads/test.m4a",
		Status:             model.StatusTranscribing,
		TranscriptionJobID: "job-test-1",
		CreatedAt:          time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, rec))

	_, err := orch.PollTranscription(ctx, rec.ID)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, got.Status)
	assert.Equal(t, 1, insights.analyzeCalls)
}

func TestPollWithoutJob(t *testing.T) {
	orch, repo := newTestOrchestrator(&fakeTranscriber{}, &fakeInsight{}, Config{})
	ctx := context.Background()
	rec := createRecording(t, repo)

	_, err := orch.PollTranscription(ctx, rec.ID)
	assert.True(t, IsPrecondition(err))
}

func TestAdvanceWithoutTranscript(t *testing.T) {
	orch, repo := newTestOrchestrator(&fakeTranscriber{}, &fakeInsight{}, Config{})
	ctx := context.Background()
	rec := createRecording(t, repo)

	_, err := orch.AdvancePipeline(ctx, rec.ID)
	assert.True(t, IsPrecondition(err))
}

func TestAdvanceResumesFromPersistedOutputs(t *testing.T) {
	// simulates a crash after analyze: the transcript and analysis are
	// persisted but the status is stale
	insights := &fakeInsight{}
	orch, repo := newTestOrchestrator(&fakeTranscriber{}, insights, Config{})
	ctx := context.Background()

	rec := &model.Recording{
		ID:         uuid.New(),
		AudioPath:  "uploads/test.m4a",
		Status:     model.StatusAnalyzing,
		Transcript: "A: Hi\nB: Hello",
		Analysis:   &model.Analysis{Nuggets: []string{"persisted"}},
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, rec))

	got, err := orch.AdvancePipeline(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, got.Status)

	// analyze is gated on output presence, not status
	assert.Equal(t, 0, insights.analyzeCalls)
	assert.Equal(t, 1, insights.feedbackCalls)
	assert.Equal(t, 1, insights.followupCalls)
	assert.Equal(t, []string{"persisted"}, got.Analysis.Nuggets)
}

func TestResubmitWhileTranscribing(t *testing.T) {
	transcriber := &fakeTranscriber{final: completedResult()}
	insights := &fakeInsight{}
	orch, repo := newTestOrchestrator(transcriber, insights, Config{})
	ctx := context.Background()

	rec := &model.Recording{
		ID:                 uuid.New(),
		AudioPath:          "uploads/test.m4a",
		Status:             model.StatusTranscribing,
		TranscriptionJobID: "job-test-1",
		CreatedAt:          time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, rec))

	// an existing job is never resubmitted; polling restarts instead
	_, err := orch.SubmitForTranscription(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, transcriber.submits)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, got.Status)
}

func TestRetryExhaustedError(t *testing.T) {
	assert.True(t, errors.Is(ErrRetryExhausted, ErrRetryExhausted))

	wrapped := &PreconditionError{Op: "advance_pipeline", Reason: "no transcript"}
	assert.True(t, IsPrecondition(wrapped))
	assert.False(t, IsPrecondition(ErrRetryExhausted))
	assert.Contains(t, wrapped.Error(), "advance_pipeline")
}
