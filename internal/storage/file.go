package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileStorage implements file-based blob storage.
type FileStorage struct {
	baseDir string
}

// NewFileStorage creates a new file-based storage.
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("create storage dir: empty path")
	}
	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	return &FileStorage{baseDir: baseDir}, nil
}

func (s *FileStorage) path(handle Handle) (string, error) {
	if err := handle.Validate(); err != nil {
		return "", err
	}
	h := string(handle)
	// Shard by first 2 chars to avoid too many files in one directory.
	return filepath.Join(s.baseDir, h[:2], h), nil
}

func (s *FileStorage) Store(ctx context.Context, data []byte) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	handle := ComputeHandle(data)
	path, err := s.path(handle)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(path); err == nil {
		return handle, nil // Already exists (dedup).
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create shard dir: %w", err)
	}

	// Write atomically via temp file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename temp file: %w", err)
	}

	return handle, nil
}

func (s *FileStorage) Load(ctx context.Context, handle Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.path(handle)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func (s *FileStorage) Delete(ctx context.Context, handle Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.path(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func (s *FileStorage) Exists(ctx context.Context, handle Handle) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	path, err := s.path(handle)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat file: %w", err)
}

func (s *FileStorage) Close() error {
	return nil
}
