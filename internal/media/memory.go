package media

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Object is a stored blob in a MemoryStore.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStore is an in-process Store for local development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	base    string
	objects map[string]Object
}

// NewMemoryStore returns an empty store whose public URLs start with base.
func NewMemoryStore(base string) *MemoryStore {
	base = strings.TrimRight(base, "/")
	if base == "" {
		base = "memory://media"
	}
	return &MemoryStore{base: base, objects: map[string]Object{}}
}

// Put reads r fully and stores it under key.
func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read object: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("put object: short body (%d of %d bytes)", len(data), size)
	}
	s.mu.Lock()
	s.objects[key] = Object{Data: data, ContentType: contentType}
	s.mu.Unlock()
	return nil
}

// PublicURL implements Store.
func (s *MemoryStore) PublicURL(key string) string { return s.base + "/" + key }

// KeyFromURL implements Store.
func (s *MemoryStore) KeyFromURL(url string) (string, bool) { return KeyFromURL(s.base, url) }

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Get returns the object stored under key.
func (s *MemoryStore) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[key]
	return o, ok
}

// Keys lists every stored key in lexical order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.objects))
	for k := range s.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
