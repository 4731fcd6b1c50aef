package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "windalert:"

// MemcachedStore keeps the document under one memcached key with no expiry.
// The revision is the SHA-256 of the stored value; updates use compare-and-swap.
type MemcachedStore struct {
	client *memcache.Client
	key    string
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedStore(addrs, key string, timeout time.Duration, maxIdleConns int) *MemcachedStore {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedStore{client: client, key: keyPrefix + key}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Read implements Store.
func (s *MemcachedStore) Read(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	item, err := s.client.Get(s.key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return Document{}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("memcached get: %w", err)
	}
	return Document{Data: item.Value, Revision: contentRevision(item.Value)}, nil
}

// Write implements Store.
func (s *MemcachedStore) Write(ctx context.Context, data []byte, revision string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if revision == "" {
		err := s.client.Add(&memcache.Item{Key: s.key, Value: data})
		if errors.Is(err, memcache.ErrNotStored) {
			return "", ErrConflict
		}
		if err != nil {
			return "", fmt.Errorf("memcached add: %w", err)
		}
		return contentRevision(data), nil
	}

	// Get returns the CAS id that CompareAndSwap checks.
	item, err := s.client.Get(s.key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return "", ErrConflict
	}
	if err != nil {
		return "", fmt.Errorf("memcached get: %w", err)
	}
	if contentRevision(item.Value) != revision {
		return "", ErrConflict
	}

	item.Value = bytes.Clone(data)
	err = s.client.CompareAndSwap(item)
	if errors.Is(err, memcache.ErrCASConflict) || errors.Is(err, memcache.ErrNotStored) || errors.Is(err, memcache.ErrCacheMiss) {
		return "", ErrConflict
	}
	if err != nil {
		return "", fmt.Errorf("memcached cas: %w", err)
	}
	return contentRevision(data), nil
}

// Ping checks if memcached is reachable.
func (s *MemcachedStore) Ping() error {
	return s.client.Ping()
}

// Close closes the memcached client connections.
func (s *MemcachedStore) Close() error {
	return s.client.Close()
}
