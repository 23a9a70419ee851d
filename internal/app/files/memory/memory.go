// Package memory is an in-process files.Store.
package memory

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Object is a stored blob.
type Object struct {
	Data        []byte
	ContentType string
}

// Store keeps objects in a map.
type Store struct {
	mu      sync.RWMutex
	base    string
	objects map[string]Object
	failErr error
}

// New creates a Store whose public URLs start with base.
func New(base string) *Store {
	if base == "" {
		base = "memory://files"
	}
	return &Store{base: base, objects: map[string]Object{}}
}

// FailWith makes every later Put return err. Pass nil to clear.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	s.failErr = err
	s.mu.Unlock()
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	failErr := s.failErr
	s.mu.RUnlock()
	if failErr != nil {
		return failErr
	}
	if key == "" {
		return errors.New("empty key")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.objects[key] = Object{Data: data, ContentType: contentType}
	s.mu.Unlock()
	return nil
}

func (s *Store) PublicURL(key string) string {
	return s.base + "/" + key
}

// Get returns the object at key.
func (s *Store) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}
