package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStore persists blobs as files under a base directory.
type FilesystemStore struct {
	baseDir string
}

// NewFilesystemStore ensures the base directory exists and returns a handle.
func NewFilesystemStore(baseDir string) (*FilesystemStore, error) {
	if baseDir == "" {
		baseDir = "./backups"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &FilesystemStore{baseDir: baseDir}, nil
}

// Put writes the payload for a key, replacing any previous content.
func (s *FilesystemStore) Put(key string, data []byte) error {
	if err := os.WriteFile(s.resolve(key), data, 0o644); err != nil {
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	return nil
}

// Get reads the payload for a key.
func (s *FilesystemStore) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the payload for a key if present.
func (s *FilesystemStore) Delete(key string) error {
	if err := os.Remove(s.resolve(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a key has a stored payload.
func (s *FilesystemStore) Exists(key string) (bool, error) {
	_, err := os.Stat(s.resolve(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat blob %s: %w", key, err)
	}
	return true, nil
}

func (s *FilesystemStore) resolve(key string) string {
	// Keys are engine-generated; sanitising keeps a corrupted key from
	// escaping the base directory.
	safe := strings.ReplaceAll(key, string(os.PathSeparator), "_")
	return filepath.Join(s.baseDir, safe+".json")
}
