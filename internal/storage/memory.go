package storage

import (
	"context"
	"sync"
)

// MemoryStorage implements in-memory blob storage.
type MemoryStorage struct {
	mu       sync.RWMutex
	data     map[Handle][]byte
	capacity int64
	size     int64
}

// NewMemoryStorage creates a new in-memory storage.
func NewMemoryStorage(capacityMB int64) *MemoryStorage {
	return &MemoryStorage{
		data:     make(map[Handle][]byte),
		capacity: capacityMB * 1024 * 1024,
	}
}

func (s *MemoryStorage) Store(ctx context.Context, data []byte) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	handle := ComputeHandle(data)

	if _, exists := s.data[handle]; exists {
		return handle, nil // Dedup by content hash.
	}

	if s.size+int64(len(data)) > s.capacity {
		return "", ErrStorageFull
	}

	s.data[handle] = append([]byte(nil), data...)
	s.size += int64(len(data))

	return handle, nil
}

func (s *MemoryStorage) Load(ctx context.Context, handle Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.data[handle]
	if !exists {
		return nil, ErrNotFound
	}

	return append([]byte(nil), data...), nil
}

func (s *MemoryStorage) Delete(ctx context.Context, handle Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, exists := s.data[handle]
	if !exists {
		return ErrNotFound
	}

	s.size -= int64(len(data))
	delete(s.data, handle)
	return nil
}

func (s *MemoryStorage) Exists(ctx context.Context, handle Handle) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.data[handle]
	return exists, nil
}

// Size returns the number of stored bytes.
func (s *MemoryStorage) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[Handle][]byte)
	s.size = 0
	return nil
}
