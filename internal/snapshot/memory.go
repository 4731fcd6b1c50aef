package snapshot

import (
	"context"
	"strconv"
	"sync"
)

// MemoryStore keeps the document in process. Used for dry runs and tests.
type MemoryStore struct {
	mu       sync.Mutex
	data     []byte
	revision int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Read implements Store.
func (s *MemoryStore) Read(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.revision == 0 {
		return Document{}, nil
	}
	return Document{Data: append([]byte(nil), s.data...), Revision: strconv.Itoa(s.revision)}, nil
}

// Write implements Store.
func (s *MemoryStore) Write(ctx context.Context, data []byte, revision string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current := ""
	if s.revision > 0 {
		current = strconv.Itoa(s.revision)
	}
	if revision != current {
		return "", ErrConflict
	}
	s.data = append([]byte(nil), data...)
	s.revision++
	return strconv.Itoa(s.revision), nil
}
