// Package memory is the in-memory document store used for development and
// tests. It honors the same versioning contract as the durable backends.
package memory

import (
	"context"
	"sync"

	"kalori/internal/docstore"
)

type document struct {
	body    []byte
	version docstore.Version
}

// Store keeps documents in a mutex-guarded map keyed by collection and user.
type Store struct {
	mu   sync.Mutex
	docs map[string]map[string]document
}

func New() *Store {
	return &Store{docs: make(map[string]map[string]document)}
}

// Read implements docstore.Store.
func (s *Store) Read(_ context.Context, collection, userID string) (docstore.Document, docstore.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[collection][userID]
	if !ok {
		return nil, 0, nil
	}
	body := make([]byte, len(doc.body))
	copy(body, doc.body)
	return body, doc.version, nil
}

// Write implements docstore.Store with compare-and-swap semantics.
func (s *Store) Write(_ context.Context, collection, userID string, doc docstore.Document, expected docstore.Version) (docstore.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.docs[collection]
	if !ok {
		coll = make(map[string]document)
		s.docs[collection] = coll
	}

	current := coll[userID].version
	if current != expected {
		return 0, docstore.ErrConflict
	}

	body := make([]byte, len(doc))
	copy(body, doc)
	next := current + 1
	coll[userID] = document{body: body, version: next}
	return next, nil
}
