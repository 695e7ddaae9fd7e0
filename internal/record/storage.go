package record

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage defines the interface for original-document file storage.
type Storage interface {
	// Save saves a file and returns the path/filename
	Save(filename string, data []byte) (string, error)

	// Get retrieves a file by path
	Get(path string) ([]byte, error)

	// Delete removes a file
	Delete(path string) error
}

// LocalStorage implements the Storage interface using the local filesystem.
// Uploaded originals are kept so a reviewer can compare the parsed record
// against the source image.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Save saves a file to local storage
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	if err := os.WriteFile(filepath.Join(l.basePath, filename), data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filename, nil
}

// Get retrieves a file from local storage
func (l *LocalStorage) Get(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, path))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(path string) error {
	if err := os.Remove(filepath.Join(l.basePath, path)); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
