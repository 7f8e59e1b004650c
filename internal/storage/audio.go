package storage

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// AudioStore persists uploaded call recordings on local disk.
type AudioStore struct {
	dir string
}

// NewAudioStore creates an audio store rooted at dir.
func NewAudioStore(dir string) *AudioStore {
	if dir == "" {
		dir = "uploads"
	}
	return &AudioStore{dir: dir}
}

// Save writes the uploaded file under the recording's id and returns the
// stored path, which is handed to the transcription provider as the audio
// reference.
func (s *AudioStore) Save(id uuid.UUID, file *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %w", err)
	}

	dst := filepath.Join(s.dir, id.String()+"_"+filepath.Base(file.Filename))
	if err := saveMultipartFile(file, dst); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return dst, nil
}

func saveMultipartFile(file *multipart.FileHeader, dst string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = out.ReadFrom(src)
	return err
}
