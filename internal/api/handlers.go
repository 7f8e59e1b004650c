package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"callscope/internal/logger"
	"callscope/internal/model"
	"callscope/internal/pipeline"
	"callscope/internal/repository"
	"callscope/internal/storage"
	"callscope/internal/utils"
)

// Handler exposes the pipeline operations and the thin recording CRUD around
// them. Collaborators are passed in explicitly so tests can swap them.
type Handler struct {
	repo  repository.RecordingRepository
	orch  *pipeline.Orchestrator
	audio *storage.AudioStore
	log   *logger.Logger
}

func NewHandler(repo repository.RecordingRepository, orch *pipeline.Orchestrator, audio *storage.AudioStore, log *logger.Logger) *Handler {
	return &Handler{repo: repo, orch: orch, audio: audio, log: log}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.healthCheck)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/recordings", h.uploadRecording)
		v1.GET("/recordings", h.listRecordings)
		v1.GET("/recordings/:id", h.getRecording)
		v1.GET("/recordings/:id/status", h.getRecordingStatus)
		v1.POST("/recordings/:id/transcribe", h.submitTranscription)
		v1.POST("/recordings/:id/poll", h.pollTranscription)
		v1.POST("/recordings/:id/advance", h.advancePipeline)
	}
}

// healthCheck returns server health status
func (h *Handler) healthCheck(c *gin.Context) {
	utils.Success(c, gin.H{
		"status":  "ok",
		"service": "callscope-backend",
	})
}

var allowedAudioExts = []string{".m4a", ".mp3", ".wav", ".aac", ".ogg", ".caf", ".aiff", ".aif"}

const maxUploadBytes = 25 * 1024 * 1024

// uploadRecording handles audio file upload and creates the recording in
// waiting_transcription state.
func (h *Handler) uploadRecording(c *gin.Context) {
	reqLog := h.log.WithRequest(c.Request)

	file, err := c.FormFile("audio_file")
	if err != nil {
		// mobile clients are inconsistent about the field name
		if file, err = c.FormFile("audio"); err != nil {
			if file, err = c.FormFile("file"); err != nil {
				utils.Error(c, http.StatusBadRequest, "audio_file is required")
				return
			}
		}
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	valid := false
	for _, allowed := range allowedAudioExts {
		if ext == allowed {
			valid = true
			break
		}
	}
	if !valid {
		utils.Error(c, http.StatusBadRequest, "unsupported audio format. Supported: m4a, mp3, wav, aac, ogg, caf, aiff")
		return
	}
	if file.Size > maxUploadBytes {
		utils.Error(c, http.StatusBadRequest, "file size exceeds 25MB limit")
		return
	}

	language := strings.ToLower(c.PostForm("language"))
	switch language {
	case "", model.LanguageAuto:
		language = model.LanguageAuto
	case model.LanguageHebrew, model.LanguageEnglish:
	default:
		utils.Error(c, http.StatusBadRequest, "unsupported language. Supported: auto, he, en")
		return
	}

	id := uuid.New()
	path, err := h.audio.Save(id, file)
	if err != nil {
		reqLog.WithError(err).Error("failed to save audio")
		utils.Error(c, http.StatusInternalServerError, "failed to save audio file")
		return
	}

	rec := &model.Recording{
		ID:           id,
		ContextLabel: c.PostForm("context_label"),
		AudioPath:    path,
		Language:     language,
		Status:       model.StatusWaitingTranscription,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.repo.Create(c.Request.Context(), rec); err != nil {
		reqLog.WithError(err).Error("failed to create recording")
		utils.Error(c, http.StatusInternalServerError, "failed to create recording")
		return
	}

	reqLog.WithField("recording_id", id.String()).Info("recording uploaded")
	utils.Created(c, recordingJSON(rec))
}

// submitTranscription handles POST /api/v1/recordings/:id/transcribe
func (h *Handler) submitTranscription(c *gin.Context) {
	id, ok := h.recordingID(c)
	if !ok {
		return
	}
	rec, err := h.orch.SubmitForTranscription(c.Request.Context(), id)
	if err != nil {
		h.pipelineError(c, err)
		return
	}
	utils.Success(c, recordingJSON(rec))
}

// pollTranscription handles POST /api/v1/recordings/:id/poll
func (h *Handler) pollTranscription(c *gin.Context) {
	id, ok := h.recordingID(c)
	if !ok {
		return
	}
	rec, err := h.orch.PollTranscription(c.Request.Context(), id)
	if err != nil {
		h.pipelineError(c, err)
		return
	}
	utils.Success(c, recordingJSON(rec))
}

// advancePipeline handles POST /api/v1/recordings/:id/advance
func (h *Handler) advancePipeline(c *gin.Context) {
	id, ok := h.recordingID(c)
	if !ok {
		return
	}
	rec, err := h.orch.AdvancePipeline(c.Request.Context(), id)
	if err != nil {
		h.pipelineError(c, err)
		return
	}
	utils.Success(c, recordingJSON(rec))
}

// getRecording returns the full recording snapshot
func (h *Handler) getRecording(c *gin.Context) {
	id, ok := h.recordingID(c)
	if !ok {
		return
	}
	rec, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.pipelineError(c, err)
		return
	}
	utils.Success(c, recordingJSON(rec))
}

// getRecordingStatus returns only the status of a recording
func (h *Handler) getRecordingStatus(c *gin.Context) {
	id, ok := h.recordingID(c)
	if !ok {
		return
	}
	rec, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.pipelineError(c, err)
		return
	}
	utils.Success(c, gin.H{
		"recording_id": rec.ID.String(),
		"status":       rec.Status,
	})
}

// listRecordings returns recordings with pagination
func (h *Handler) listRecordings(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	recordings, err := h.repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.WithError(err).Error("failed to list recordings")
		utils.Error(c, http.StatusInternalServerError, "failed to list recordings")
		return
	}

	items := make([]gin.H, 0, len(recordings))
	for i := range recordings {
		rec := recordings[i]
		item := gin.H{
			"id":         rec.ID.String(),
			"status":     rec.Status,
			"created_at": rec.CreatedAt,
		}
		if rec.ContextLabel != "" {
			item["context_label"] = rec.ContextLabel
		}
		if rec.HasTranscript() {
			preview := rec.Transcript
			if len(preview) > 100 {
				preview = preview[:100] + "..."
			}
			item["transcript_preview"] = preview
		}
		items = append(items, item)
	}

	utils.Success(c, gin.H{
		"items":  items,
		"limit":  limit,
		"offset": offset,
		"count":  len(items),
	})
}

func (h *Handler) recordingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid recording id format")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) pipelineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		utils.Error(c, http.StatusNotFound, "recording not found")
	case pipeline.IsPrecondition(err):
		utils.Error(c, http.StatusBadRequest, err.Error())
	default:
		h.log.WithRequest(c.Request).WithError(err).Error("pipeline operation failed")
		utils.Error(c, http.StatusInternalServerError, err.Error())
	}
}

func recordingJSON(rec *model.Recording) gin.H {
	out := gin.H{
		"id":         rec.ID.String(),
		"status":     rec.Status,
		"language":   rec.Language,
		"created_at": rec.CreatedAt,
	}
	if rec.ContextLabel != "" {
		out["context_label"] = rec.ContextLabel
	}
	if rec.TranscriptionJobID != "" {
		out["transcription_job_id"] = rec.TranscriptionJobID
	}
	if rec.HasTranscript() {
		out["transcript"] = rec.Transcript
	}
	if rec.Analysis != nil {
		out["analysis"] = rec.Analysis
	}
	if rec.Feedback != nil {
		out["feedback"] = rec.Feedback
	}
	if rec.Followup != nil {
		out["followup"] = rec.Followup
	}
	if rec.ErrorStage != nil {
		out["error_stage"] = *rec.ErrorStage
	}
	if rec.ErrorMessage != nil {
		out["error_message"] = *rec.ErrorMessage
	}
	return out
}
