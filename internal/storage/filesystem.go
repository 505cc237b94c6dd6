// Package storage is the artifact file area. Each job owns one
// directory named by its id so concurrent jobs never collide on
// filenames, and reclamation is a single directory removal.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoArtifact is returned when a job directory holds no usable file.
var ErrNoArtifact = errors.New("storage: no artifact in job directory")

// FileStore persists downloaded artifacts onto the local filesystem
// under a mounted base directory.
type FileStore struct {
	basePath string
}

// NewFileStore initializes a FileStore rooted at basePath, creating it
// if needed.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: abs}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	return s.basePath
}

// JobDir creates and returns the directory owned by one job. Job ids
// are validated against traversal even though they are generated
// server-side.
func (s *FileStore) JobDir(jobID string) (string, error) {
	dir, err := s.jobPath(jobID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure job directory: %w", err)
	}
	return dir, nil
}

// FindArtifact returns the path and size of the produced file inside a
// job directory. yt-dlp writes exactly one output file per run; partial
// fragments carry a ".part" or ".ytdl" suffix and are skipped.
func (s *FileStore) FindArtifact(jobID string) (string, int64, error) {
	dir, err := s.jobPath(jobID)
	if err != nil {
		return "", 0, err
	}
	items, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, ErrNoArtifact
		}
		return "", 0, fmt.Errorf("storage: read job directory: %w", err)
	}
	for _, item := range items {
		name := item.Name()
		if item.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") {
			continue
		}
		info, err := item.Info()
		if err != nil {
			return "", 0, fmt.Errorf("storage: stat artifact: %w", err)
		}
		return filepath.Join(dir, name), info.Size(), nil
	}
	return "", 0, ErrNoArtifact
}

// RemoveJob deletes a job's directory and everything in it. A missing
// directory is not an error; deletion is idempotent.
func (s *FileStore) RemoveJob(jobID string) error {
	dir, err := s.jobPath(jobID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("storage: remove job directory: %w", err)
	}
	return nil
}

func (s *FileStore) jobPath(jobID string) (string, error) {
	id := strings.TrimSpace(jobID)
	if id == "" {
		return "", errors.New("storage: job id is required")
	}
	cleaned := filepath.Clean(id)
	if cleaned != id || strings.ContainsAny(id, `/\`) || cleaned == "." || cleaned == ".." {
		return "", fmt.Errorf("storage: invalid job id %q", jobID)
	}
	return filepath.Join(s.basePath, cleaned), nil
}
