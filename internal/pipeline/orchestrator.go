package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"callscope/internal/insight"
	"callscope/internal/logger"
	"callscope/internal/model"
	"callscope/internal/repository"
	"callscope/internal/scheduler"
	"callscope/internal/transcription"
)

// Config tunes pipeline scheduling.
type Config struct {
	// PollInterval is the delay between transcription status polls.
	PollInterval time.Duration
	// MaxPollRetries bounds pending polls; one more pending afterwards is a
	// provider timeout.
	MaxPollRetries int
	// FollowupChannel and FollowupTone are passed to followup generation.
	FollowupChannel string
	FollowupTone    string
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.MaxPollRetries <= 0 {
		c.MaxPollRetries = 20
	}
	if c.FollowupChannel == "" {
		c.FollowupChannel = model.DefaultFollowupChannel
	}
	if c.FollowupTone == "" {
		c.FollowupTone = model.DefaultFollowupTone
	}
}

// Orchestrator drives a recording through the pipeline. All of its entry
// points are idempotent: each call re-derives what already happened from
// persisted field presence and performs only the remaining work, so the
// external scheduler may deliver the same step more than once.
type Orchestrator struct {
	repo        repository.RecordingRepository
	transcriber transcription.Provider
	insights    insight.Provider
	sched       scheduler.Scheduler
	log         *logger.Logger
	cfg         Config
}

// NewOrchestrator wires the pipeline's collaborators.
func NewOrchestrator(
	repo repository.RecordingRepository,
	transcriber transcription.Provider,
	insights insight.Provider,
	sched scheduler.Scheduler,
	log *logger.Logger,
	cfg Config,
) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		repo:        repo,
		transcriber: transcriber,
		insights:    insights,
		sched:       sched,
		log:         log,
		cfg:         cfg,
	}
}

// SubmitForTranscription submits the recording's audio to the transcription
// provider and schedules polling. Re-invocations are safe: an existing job
// handle is never resubmitted, only its polling is rescheduled.
func (o *Orchestrator) SubmitForTranscription(ctx context.Context, id uuid.UUID) (*model.Recording, error) {
	rec, err := o.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	log := o.log.WithRecording(id.String())

	if rec.Status.IsTerminal() {
		return rec, nil
	}
	if rec.TranscriptionJobID != "" {
		// already submitted; restart polling if the transcript never landed
		if !rec.HasTranscript() {
			o.schedulePoll(id, 1, 0)
		}
		return rec, nil
	}
	if rec.AudioPath == "" {
		return nil, &PreconditionError{Op: "submit_for_transcription", Reason: "recording has no audio"}
	}

	jobID, err := o.transcriber.Submit(ctx, rec.AudioPath, rec.Language)
	if err != nil {
		log.WithError(err).Error("transcription submit failed")
		return o.failStage(ctx, id, model.StageTranscription, err)
	}

	status := model.StatusTranscribing
	rec, err = o.repo.Update(ctx, id, model.RecordingUpdate{
		Status:             &status,
		TranscriptionJobID: &jobID,
	})
	if err != nil {
		return nil, err
	}

	log.WithField("job_id", jobID).Info("transcription job submitted")
	o.schedulePoll(id, 1, o.cfg.PollInterval)
	return rec, nil
}

// PollTranscription performs a single poll of the recording's transcription
// job. Unlike the scheduled poll loop it never requeues itself, so external
// callers can probe progress without spawning extra retry chains.
func (o *Orchestrator) PollTranscription(ctx context.Context, id uuid.UUID) (*model.Recording, error) {
	return o.poll(ctx, id, 0)
}

func (o *Orchestrator) schedulePoll(id uuid.UUID, attempt int, delay time.Duration) {
	name := fmt.Sprintf("poll-transcription/%s", id)
	task := func(ctx context.Context) {
		if _, err := o.poll(ctx, id, attempt); err != nil {
			o.log.WithRecording(id.String()).WithError(err).Warn("scheduled transcription poll failed")
		}
	}
	if delay > 0 {
		o.sched.EnqueueAfter(delay, name, task)
	} else {
		o.sched.Enqueue(name, task)
	}
}

// poll runs one step of the polling loop. attempt counts consecutive polls in
// the scheduled loop; attempt 0 marks a caller-initiated probe that must not
// schedule retries.
func (o *Orchestrator) poll(ctx context.Context, id uuid.UUID, attempt int) (*model.Recording, error) {
	rec, err := o.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	log := o.log.WithRecording(id.String())

	if rec.Status.IsTerminal() {
		return rec, nil
	}
	if rec.HasTranscript() {
		// a concurrent poll already wrote the completion
		return rec, nil
	}
	if rec.TranscriptionJobID == "" {
		return nil, &PreconditionError{Op: "poll_transcription", Reason: "no transcription job submitted yet"}
	}

	result, err := o.transcriber.Poll(ctx, rec.TranscriptionJobID)
	if err != nil {
		log.WithError(err).Error("transcription poll failed")
		return o.failStage(ctx, id, model.StageTranscription, err)
	}

	switch result.Status {
	case transcription.JobPending:
		if attempt == 0 {
			return rec, nil
		}
		if attempt > o.cfg.MaxPollRetries {
			log.WithField("attempts", attempt).Error("transcription provider timed out")
			rec, err = o.failStage(ctx, id, model.StageTranscription,
				fmt.Errorf("%w after %d polls", ErrRetryExhausted, attempt))
			if err != nil {
				return nil, err
			}
			return rec, ErrRetryExhausted
		}
		log.WithField("attempt", attempt).Debug("transcription still pending")
		o.schedulePoll(id, attempt+1, o.cfg.PollInterval)
		return rec, nil

	case transcription.JobCompleted:
		raw, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to encode transcription payload: %w", err)
		}
		transcript := transcription.FormatTranscript(result)
		status := model.StatusTranscribed

		// one atomic write; a concurrent observer of the same completion
		// bails out above on the transcript presence check
		rec, err = o.repo.Update(ctx, id, model.RecordingUpdate{
			Status:           &status,
			Transcript:       &transcript,
			RawTranscription: raw,
		})
		if err != nil {
			return nil, err
		}
		log.WithField("transcript_chars", len(transcript)).Info("transcription completed")

		o.sched.Enqueue(fmt.Sprintf("advance-pipeline/%s", id), func(ctx context.Context) {
			if _, err := o.AdvancePipeline(ctx, id); err != nil {
				o.log.WithRecording(id.String()).WithError(err).Warn("scheduled pipeline advance failed")
			}
		})
		return rec, nil

	default: // transcription.JobError
		log.WithField("provider_error", result.Error).Error("transcription job failed")
		return o.failStage(ctx, id, model.StageTranscription,
			&transcription.ProviderError{Op: "poll", Message: result.Error})
	}
}

// AdvancePipeline runs the remaining downstream stages for a transcribed
// recording: Analyze (fatal on failure), Feedback (non-fatal), Followup
// (fatal), then marks the recording done.
func (o *Orchestrator) AdvancePipeline(ctx context.Context, id uuid.UUID) (*model.Recording, error) {
	rec, err := o.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	log := o.log.WithRecording(id.String())

	if rec.Status.IsTerminal() {
		log.WithField("status", string(rec.Status)).Debug("pipeline already terminal")
		return rec, nil
	}
	if !rec.HasTranscript() {
		return nil, &PreconditionError{Op: "advance_pipeline", Reason: "recording has no transcript yet, run transcription first"}
	}

	// -------- analyze (idempotent, fatal on failure) --------
	if rec.Analysis == nil {
		rec, err = o.setStatus(ctx, rec, model.StatusAnalyzing)
		if err != nil {
			return nil, err
		}

		analysis, aerr := o.insights.Analyze(ctx, insight.AnalyzeRequest{
			RecordingID:  rec.ID.String(),
			Transcript:   rec.Transcript,
			Language:     rec.Language,
			ContextLabel: rec.ContextLabel,
		})
		if aerr != nil {
			log.WithError(aerr).Error("analyze stage failed")
			return o.failStage(ctx, id, model.StageAnalyze, aerr)
		}

		status := model.StatusAnalyzed
		rec, err = o.repo.Update(ctx, id, model.RecordingUpdate{Analysis: analysis, Status: &status})
		if err != nil {
			return nil, err
		}
		log.Info("analyze stage completed")
	}

	// -------- feedback (idempotent, failure doesn't stop followup) --------
	if rec.Feedback == nil {
		rec, err = o.setStatus(ctx, rec, model.StatusGeneratingFeedback)
		if err != nil {
			return nil, err
		}

		feedback, ferr := o.insights.Feedback(ctx, insight.FeedbackRequest{
			RecordingID: rec.ID.String(),
			Transcript:  rec.Transcript,
			Language:    rec.Language,
			Analysis:    rec.Analysis,
		})
		if ferr != nil {
			log.WithError(ferr).Warn("feedback stage failed, continuing to followup")
			stage := model.StageFeedback
			msg := ferr.Error()
			rec, err = o.repo.Update(ctx, id, model.RecordingUpdate{ErrorStage: &stage, ErrorMessage: &msg})
			if err != nil {
				return nil, err
			}
		} else {
			status := model.StatusFeedbackReady
			rec, err = o.repo.Update(ctx, id, model.RecordingUpdate{Feedback: feedback, Status: &status})
			if err != nil {
				return nil, err
			}
			log.Info("feedback stage completed")
		}
	}

	// -------- followup (idempotent, fatal on failure) --------
	if rec.Followup == nil {
		rec, err = o.setStatus(ctx, rec, model.StatusGeneratingFollowup)
		if err != nil {
			return nil, err
		}

		followup, ferr := o.insights.Followup(ctx, insight.FollowupRequest{
			RecordingID: rec.ID.String(),
			Transcript:  rec.Transcript,
			Analysis:    rec.Analysis,
			Feedback:    rec.Feedback,
			Language:    rec.Language,
			Channel:     o.cfg.FollowupChannel,
			Tone:        o.cfg.FollowupTone,
		})
		if ferr != nil {
			log.WithError(ferr).Error("followup stage failed")
			return o.failStage(ctx, id, model.StageFollowup, ferr)
		}

		status := model.StatusFollowupReady
		rec, err = o.repo.Update(ctx, id, model.RecordingUpdate{Followup: followup, Status: &status})
		if err != nil {
			return nil, err
		}
		log.Info("followup stage completed")
	}

	status := model.StatusDone
	rec, err = o.repo.Update(ctx, id, model.RecordingUpdate{Status: &status})
	if err != nil {
		return nil, err
	}
	log.Info("pipeline done")
	return rec, nil
}

// setStatus writes an in-flight status. Status is a best-effort progress
// indicator: an unexpected edge is logged, never enforced, because gating
// relies on output presence alone.
func (o *Orchestrator) setStatus(ctx context.Context, rec *model.Recording, status model.Status) (*model.Recording, error) {
	if !model.ValidTransition(rec.Status, status) {
		o.log.WithRecording(rec.ID.String()).
			WithField("from", string(rec.Status)).
			WithField("to", string(status)).
			Debug("unexpected status edge, continuing")
	}
	return o.repo.Update(ctx, rec.ID, model.RecordingUpdate{Status: &status})
}

// failStage marks the recording failed at the given stage. The returned error
// is nil: the failure is surfaced through the recording's fields.
func (o *Orchestrator) failStage(ctx context.Context, id uuid.UUID, stage string, cause error) (*model.Recording, error) {
	status := model.StatusFailed
	msg := cause.Error()
	return o.repo.Update(ctx, id, model.RecordingUpdate{
		Status:       &status,
		ErrorStage:   &stage,
		ErrorMessage: &msg,
	})
}
