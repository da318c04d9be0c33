// Package storage provides content-addressed blob storage for public keys
// and encrypted signature catalogs.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrNotFound      = errors.New("blob not found")
	ErrStorageFull   = errors.New("storage capacity exceeded")
	ErrInvalidHandle = errors.New("invalid blob handle")
	ErrUnknownKind   = errors.New("unknown storage kind")
)

// Handle uniquely identifies a stored blob. It is the hex SHA-256 of the
// blob contents.
type Handle string

// ComputeHandle generates a handle from blob data.
func ComputeHandle(data []byte) Handle {
	hash := sha256.Sum256(data)
	return Handle(hex.EncodeToString(hash[:]))
}

// Validate checks that h has the shape produced by ComputeHandle.
func (h Handle) Validate() error {
	if len(h) != 2*sha256.Size {
		return fmt.Errorf("%w: %q", ErrInvalidHandle, string(h))
	}
	if _, err := hex.DecodeString(string(h)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidHandle, string(h))
	}
	return nil
}

// Storage defines the interface for blob storage.
type Storage interface {
	// Store saves a blob and returns its handle.
	Store(ctx context.Context, data []byte) (Handle, error)
	// Load retrieves a blob by handle.
	Load(ctx context.Context, handle Handle) ([]byte, error)
	// Delete removes a blob.
	Delete(ctx context.Context, handle Handle) error
	// Exists checks if a blob exists.
	Exists(ctx context.Context, handle Handle) (bool, error)
	// Close closes the storage.
	Close() error
}

// Config selects and parameterizes a Storage backend.
type Config struct {
	Kind       string // memory, file or redis
	Path       string // file: base directory
	CapacityMB int64  // memory: capacity
	Redis      RedisConfig
}

// Open creates the backend named by cfg.Kind.
func Open(cfg Config) (Storage, error) {
	switch cfg.Kind {
	case "", "memory":
		capacity := cfg.CapacityMB
		if capacity <= 0 {
			capacity = 64
		}
		return NewMemoryStorage(capacity), nil
	case "file":
		return NewFileStorage(cfg.Path)
	case "redis":
		return NewRedisStorage(cfg.Redis)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}
