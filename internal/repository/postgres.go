package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"callscope/internal/model"
)

type postgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgreSQL-backed recording repository.
func NewPostgresRepository(db *sql.DB) RecordingRepository {
	return &postgresRepository{db: db}
}

const recordingColumns = `
	id, context_label, audio_path, language, status, transcription_job_id,
	transcript, raw_transcription, analysis, feedback, followup,
	error_stage, error_message, created_at
`

// Create persists a new recording record.
func (r *postgresRepository) Create(ctx context.Context, rec *model.Recording) error {
	query := `
		INSERT INTO recordings (` + recordingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	analysisJSON, err := marshalNullable(rec.Analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}
	feedbackJSON, err := marshalNullable(rec.Feedback)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}
	followupJSON, err := marshalNullable(rec.Followup)
	if err != nil {
		return fmt.Errorf("failed to marshal followup: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		rec.ContextLabel,
		rec.AudioPath,
		rec.Language,
		rec.Status,
		nullIfEmpty(rec.TranscriptionJobID),
		nullIfEmpty(rec.Transcript),
		[]byte(rec.RawTranscription),
		analysisJSON,
		feedbackJSON,
		followupJSON,
		rec.ErrorStage,
		rec.ErrorMessage,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	return nil
}

// Update applies a partial update in a single statement so that concurrent
// writers cannot observe a half-written stage result.
func (r *postgresRepository) Update(ctx context.Context, id uuid.UUID, upd model.RecordingUpdate) (*model.Recording, error) {
	query := `
		UPDATE recordings
		SET
			status = COALESCE($1, status),
			transcription_job_id = COALESCE($2, transcription_job_id),
			transcript = COALESCE($3, transcript),
			raw_transcription = COALESCE($4::jsonb, raw_transcription),
			analysis = COALESCE($5::jsonb, analysis),
			feedback = COALESCE($6::jsonb, feedback),
			followup = COALESCE($7::jsonb, followup),
			error_stage = COALESCE($8, error_stage),
			error_message = COALESCE($9, error_message)
		WHERE id = $10
		RETURNING ` + recordingColumns

	analysisJSON, err := marshalNullable(upd.Analysis)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis: %w", err)
	}
	feedbackJSON, err := marshalNullable(upd.Feedback)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feedback: %w", err)
	}
	followupJSON, err := marshalNullable(upd.Followup)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal followup: %w", err)
	}

	var rawJSON []byte
	if len(upd.RawTranscription) > 0 {
		rawJSON = []byte(upd.RawTranscription)
	}

	var statusArg *string
	if upd.Status != nil {
		s := string(*upd.Status)
		statusArg = &s
	}

	row := r.db.QueryRowContext(ctx, query,
		statusArg,
		upd.TranscriptionJobID,
		upd.Transcript,
		rawJSON,
		analysisJSON,
		feedbackJSON,
		followupJSON,
		upd.ErrorStage,
		upd.ErrorMessage,
		id,
	)

	rec, err := scanRecording(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update recording: %w", err)
	}
	return rec, nil
}

// GetByID retrieves a recording by id.
func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1`

	rec, err := scanRecording(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}
	return rec, nil
}

// List retrieves recordings ordered by creation time descending.
func (r *postgresRepository) List(ctx context.Context, limit, offset int) ([]model.Recording, error) {
	query := `
		SELECT ` + recordingColumns + `
		FROM recordings
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query recordings: %w", err)
	}
	defer rows.Close()

	var recordings []model.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		recordings = append(recordings, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return recordings, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecording(row rowScanner) (*model.Recording, error) {
	var rec model.Recording
	var jobID, transcript sql.NullString
	var rawJSON, analysisJSON, feedbackJSON, followupJSON []byte
	var createdAt time.Time

	err := row.Scan(
		&rec.ID,
		&rec.ContextLabel,
		&rec.AudioPath,
		&rec.Language,
		&rec.Status,
		&jobID,
		&transcript,
		&rawJSON,
		&analysisJSON,
		&feedbackJSON,
		&followupJSON,
		&rec.ErrorStage,
		&rec.ErrorMessage,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	rec.TranscriptionJobID = jobID.String
	rec.Transcript = transcript.String
	rec.RawTranscription = json.RawMessage(rawJSON)
	rec.CreatedAt = createdAt

	if err := unmarshalNullable(analysisJSON, &rec.Analysis); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
	}
	if err := unmarshalNullable(feedbackJSON, &rec.Feedback); err != nil {
		return nil, fmt.Errorf("failed to unmarshal feedback: %w", err)
	}
	if err := unmarshalNullable(followupJSON, &rec.Followup); err != nil {
		return nil, fmt.Errorf("failed to unmarshal followup: %w", err)
	}
	return &rec, nil
}

// marshalNullable returns nil for a nil pointer so COALESCE keeps the stored
// value instead of overwriting it with SQL null.
func marshalNullable(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case *model.Analysis:
		if t == nil {
			return nil, nil
		}
	case *model.Feedback:
		if t == nil {
			return nil, nil
		}
	case *model.Followup:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func unmarshalNullable[T any](data []byte, out **T) error {
	if len(data) == 0 {
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*out = &v
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
