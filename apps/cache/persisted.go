// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/errors"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/logger"
)

// Medium is durable storage for a serialized cache snapshot.
type Medium interface {
	// Read returns the current snapshot bytes. Nil bytes with a nil error
	// means no snapshot has ever been written. An error means the medium
	// itself is unusable, except for NotDecodable errors, which mean the
	// content exists but cannot be interpreted.
	Read() ([]byte, error)
	// Write replaces the snapshot.
	Write(data []byte) error
}

type notDecodableError struct {
	err error
}

func (e notDecodableError) Error() string {
	return "cache snapshot is not decodable: " + e.err.Error()
}

func (e notDecodableError) Unwrap() error {
	return e.err
}

// NotDecodable wraps err to tell PersistedStore that snapshot content exists
// but cannot be interpreted (sealed with another passphrase, truncated,
// foreign format). The store recovers from it by starting empty; any other
// Read error is fatal.
func NotDecodable(err error) error {
	return notDecodableError{err: err}
}

func isNotDecodable(err error) bool {
	_, ok := err.(notDecodableError)
	return ok
}

// snapshotVersion tags the serialized snapshot shape.
const snapshotVersion = 1

type snapshot struct {
	Version int             `json:"version"`
	Tokens  map[string]Item `json:"tokens"`
}

// PersistedStore is a Store that mirrors every mutation onto a durable
// Medium. The in-memory view is authoritative: a write that fails to persist
// is logged and the store keeps serving from memory.
type PersistedStore struct {
	mu     sync.Mutex
	items  map[string]Item
	medium Medium
	log    logger.LoggerInterface
}

// PersistedOption configures a PersistedStore.
type PersistedOption func(*PersistedStore)

// WithLogger routes the store's warnings to l instead of the default logger.
func WithLogger(l *slog.Logger) PersistedOption {
	return func(s *PersistedStore) {
		s.log = logger.New(l)
	}
}

// NewPersistedStore loads the snapshot held by medium and returns a store
// mirroring every mutation back to it.
//
// A missing snapshot starts empty. A snapshot that exists but does not
// decode to the expected shape is discarded with a warning and the store
// starts empty; the medium stays in use. An error reading the medium itself
// is fatal: the returned error has code CacheUnavailable and no store is
// returned.
func NewPersistedStore(medium Medium, options ...PersistedOption) (*PersistedStore, error) {
	if medium == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "medium cannot be nil")
	}

	s := &PersistedStore{
		items:  map[string]Item{},
		medium: medium,
		log:    logger.New(nil),
	}
	for _, o := range options {
		o(s)
	}

	data, err := medium.Read()
	switch {
	case isNotDecodable(err):
		s.log.Log(context.Background(), logger.Warn, "token cache snapshot could not be decoded, starting empty", logger.Field("error", err))
		return s, nil
	case err != nil:
		return nil, errors.Wrap(errors.CodeCacheUnavailable, "token cache medium could not be read", err)
	case len(data) == 0:
		return s, nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil || snap.Version != snapshotVersion || snap.Tokens == nil {
		s.log.Log(context.Background(), logger.Warn, "token cache snapshot has the wrong shape, starting empty", logger.Field("error", err))
		return s, nil
	}
	s.items = snap.Tokens
	return s, nil
}

// Get implements Store.
func (s *PersistedStore) Get(key string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	return item, ok
}

// Set implements Store.
func (s *PersistedStore) Set(key string, item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = item
	s.persist()
}

// Remove implements Store.
func (s *PersistedStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	s.persist()
}

// RemoveAll implements Store.
func (s *PersistedStore) RemoveAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = map[string]Item{}
	s.persist()
}

// Contains implements Store.
func (s *PersistedStore) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.items[key]
	return ok
}

// persist writes the whole snapshot to the medium. Callers hold s.mu.
func (s *PersistedStore) persist() {
	data, err := json.Marshal(snapshot{Version: snapshotVersion, Tokens: s.items})
	if err != nil {
		s.log.Log(context.Background(), logger.Err, "token cache snapshot could not be serialized", logger.Field("error", err))
		return
	}
	if err := s.medium.Write(data); err != nil {
		s.log.Log(context.Background(), logger.Warn, "token cache write failed, memory view stays authoritative", logger.Field("error", err))
	}
}
