package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the document in a local file. The revision is the SHA-256 of the
// content; writes go through a temp file and rename so a reader never sees a partial file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store for path. The parent directory is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Read implements Store.
func (s *FileStore) Read(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Document{}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	return Document{Data: data, Revision: contentRevision(data)}, nil
}

// Write implements Store.
func (s *FileStore) Write(ctx context.Context, data []byte, revision string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Read(ctx)
	if err != nil {
		return "", err
	}
	if current.Revision != revision {
		return "", ErrConflict
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return "", fmt.Errorf("replace %s: %w", s.path, err)
	}
	return contentRevision(data), nil
}
