// Package artifact implements blob storage and the versioned payload
// contracts stages exchange through it. Writes are append-only; duplicate
// writes of the same key are tolerated and latest-wins on read.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Storage is the blob backend. Keys are slash-separated paths under a
// bucket.
type Storage interface {
	PutBytes(ctx context.Context, bucket, key string, payload []byte) error
	GetBytes(ctx context.Context, bucket, key string) ([]byte, error)
}

// FilesystemStorage keeps blobs under root/<bucket>/<key>.
type FilesystemStorage struct {
	root string
}

// NewFilesystemStorage creates the root directory if needed.
func NewFilesystemStorage(root string) (*FilesystemStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("artifact storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact root: %w", err)
	}
	return &FilesystemStorage{root: root}, nil
}

func (s *FilesystemStorage) path(bucket, key string) (string, error) {
	if bucket == "" || key == "" {
		return "", fmt.Errorf("bucket and key are required")
	}
	clean := filepath.Join(s.root, bucket, filepath.FromSlash(key))
	if !strings.HasPrefix(clean, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("key escapes storage root: %q", key)
	}
	return clean, nil
}

// PutBytes writes the payload, creating parent directories as needed.
func (s *FilesystemStorage) PutBytes(_ context.Context, bucket, key string, payload []byte) error {
	p, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(p, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

// GetBytes reads a blob. Returns ErrBlobNotFound when the key is absent.
func (s *FilesystemStorage) GetBytes(_ context.Context, bucket, key string) ([]byte, error) {
	p, err := s.path(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s/%s", ErrBlobNotFound, bucket, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

// MemoryStorage is an in-process Storage for tests.
type MemoryStorage struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStorage returns an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string][]byte)}
}

func (s *MemoryStorage) PutBytes(_ context.Context, bucket, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	s.blobs[bucket+"/"+key] = cp
	return nil
}

func (s *MemoryStorage) GetBytes(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrBlobNotFound, bucket, key)
	}
	return data, nil
}
