package genomicarray

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
)

//go:generate mockgen -destination=mocks/storage.go -package=mocks github.com/scttfrdmn/genomicarray-go/pkg/genomicarray Storage

// Storage is the backend a cache directory lives on. Paths are
// slash-separated and relative to the base path.
type Storage interface {
	// ReadFile reads a file. Missing files satisfy errors.Is(err, fs.ErrNotExist).
	ReadFile(path string) ([]byte, error)

	// WriteFile writes a file, creating parent directories
	WriteFile(path string, data []byte) error

	// List lists files below a prefix, relative to the base path
	List(prefix string) ([]string, error)

	// Exists checks if a file or directory exists
	Exists(path string) (bool, error)

	// MkdirAll creates directory structure
	MkdirAll(path string) error

	// RemoveAll removes a file or a directory tree
	RemoveAll(path string) error

	// Rename moves a file or directory tree. It fails when newpath is a
	// non-empty directory.
	Rename(oldpath, newpath string) error

	// GetBasePath returns the base path
	GetBasePath() string

	// IsS3 returns true if this is S3 storage
	IsS3() bool
}

// LocalStorage implements Storage for local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage backend
func NewLocalStorage(basePath string) *LocalStorage {
	return &LocalStorage{basePath: basePath}
}

func (s *LocalStorage) full(path string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(path))
}

func (s *LocalStorage) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(s.full(path))
}

func (s *LocalStorage) WriteFile(path string, data []byte) error {
	fullPath := s.full(path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(fullPath, data, 0644)
}

func (s *LocalStorage) List(prefix string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.full(prefix), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			relPath, err := filepath.Rel(s.basePath, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(relPath))
		}
		return nil
	})
	return files, err
}

func (s *LocalStorage) Exists(path string) (bool, error) {
	_, err := os.Stat(s.full(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *LocalStorage) MkdirAll(path string) error {
	return os.MkdirAll(s.full(path), 0755)
}

func (s *LocalStorage) RemoveAll(path string) error {
	return os.RemoveAll(s.full(path))
}

func (s *LocalStorage) Rename(oldpath, newpath string) error {
	target := s.full(newpath)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	return os.Rename(s.full(oldpath), target)
}

func (s *LocalStorage) GetBasePath() string {
	return s.basePath
}

func (s *LocalStorage) IsS3() bool {
	return false
}

// NewStorage returns an S3Storage for s3:// URIs and a LocalStorage
// otherwise.
func NewStorage(path string) (Storage, error) {
	if IsS3URI(path) {
		return NewS3Storage(context.Background(), path)
	}
	return NewLocalStorage(path), nil
}
