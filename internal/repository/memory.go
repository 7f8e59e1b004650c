package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"callscope/internal/model"
)

type memoryRepository struct {
	mu         sync.Mutex
	recordings map[uuid.UUID]*model.Recording
}

// NewMemoryRepository creates an in-memory recording repository. The server
// falls back to it when DATABASE_URL is not set; tests use it as the store.
func NewMemoryRepository() RecordingRepository {
	return &memoryRepository{
		recordings: make(map[uuid.UUID]*model.Recording),
	}
}

func (r *memoryRepository) Create(_ context.Context, rec *model.Recording) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := cloneRecording(rec)
	r.recordings[rec.ID] = cp
	return nil
}

func (r *memoryRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recordings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecording(rec), nil
}

func (r *memoryRepository) Update(_ context.Context, id uuid.UUID, upd model.RecordingUpdate) (*model.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recordings[id]
	if !ok {
		return nil, ErrNotFound
	}

	if upd.Status != nil {
		rec.Status = *upd.Status
	}
	if upd.TranscriptionJobID != nil {
		rec.TranscriptionJobID = *upd.TranscriptionJobID
	}
	if upd.Transcript != nil {
		rec.Transcript = *upd.Transcript
	}
	if len(upd.RawTranscription) > 0 {
		rec.RawTranscription = append([]byte(nil), upd.RawTranscription...)
	}
	if upd.Analysis != nil {
		a := *upd.Analysis
		rec.Analysis = &a
	}
	if upd.Feedback != nil {
		f := *upd.Feedback
		rec.Feedback = &f
	}
	if upd.Followup != nil {
		f := *upd.Followup
		rec.Followup = &f
	}
	if upd.ErrorStage != nil {
		s := *upd.ErrorStage
		rec.ErrorStage = &s
	}
	if upd.ErrorMessage != nil {
		m := *upd.ErrorMessage
		rec.ErrorMessage = &m
	}

	return cloneRecording(rec), nil
}

func (r *memoryRepository) List(_ context.Context, limit, offset int) ([]model.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]*model.Recording, 0, len(r.recordings))
	for _, rec := range r.recordings {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	out := make([]model.Recording, 0, len(all))
	for _, rec := range all {
		out = append(out, *cloneRecording(rec))
	}
	return out, nil
}

// cloneRecording returns a copy so callers never share memory with the store.
func cloneRecording(rec *model.Recording) *model.Recording {
	cp := *rec
	if rec.RawTranscription != nil {
		cp.RawTranscription = append([]byte(nil), rec.RawTranscription...)
	}
	if rec.Analysis != nil {
		a := *rec.Analysis
		cp.Analysis = &a
	}
	if rec.Feedback != nil {
		f := *rec.Feedback
		cp.Feedback = &f
	}
	if rec.Followup != nil {
		f := *rec.Followup
		cp.Followup = &f
	}
	if rec.ErrorStage != nil {
		s := *rec.ErrorStage
		cp.ErrorStage = &s
	}
	if rec.ErrorMessage != nil {
		m := *rec.ErrorMessage
		cp.ErrorMessage = &m
	}
	return &cp
}
