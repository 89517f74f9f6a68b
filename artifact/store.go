package artifact

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/agentrelay/document"
)

// Document is one stored upload.
type Document struct {
	ID       string         `json:"document_id"`
	Scope    string         `json:"-"`
	Name     string         `json:"filename"`
	Type     document.Type  `json:"file_type"`
	Size     int64          `json:"file_size"`
	Content  string         `json:"-"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Created  time.Time      `json:"created"`
}

func (d Document) clone() Document {
	if d.Metadata != nil {
		meta := make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			meta[k] = v
		}
		d.Metadata = meta
	}
	return d
}

// Store persists extracted documents per scope.
type Store interface {
	Save(scope string, doc Document) (Document, error)
	Get(scope, id string) (Document, error)
	List(scope string) ([]Document, error)
	Delete(scope, id string) error
	Clear(scope string) int
}

// InMemoryOptions configures an InMemoryStore.
type InMemoryOptions struct {
	// MaxPerScope bounds the documents kept per scope. Defaults to 100.
	MaxPerScope int
}

// InMemoryStore is an in-process Store. It keeps all documents in nested
// maps guarded by an RWMutex and copies metadata on save and retrieval.
//
// Layout: scope -> documentID -> document, plus insertion order per scope
// for eviction.
type InMemoryStore struct {
	mu          sync.RWMutex
	docs        map[string]map[string]Document
	order       map[string][]string
	maxPerScope int
}

// NewInMemoryStore returns an empty in-memory document store.
func NewInMemoryStore(optFns ...func(o *InMemoryOptions)) *InMemoryStore {
	opts := InMemoryOptions{MaxPerScope: 100}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxPerScope < 1 {
		opts.MaxPerScope = 1
	}
	return &InMemoryStore{
		docs:        make(map[string]map[string]Document),
		order:       make(map[string][]string),
		maxPerScope: opts.MaxPerScope,
	}
}

// Save stores doc under a freshly generated id and returns the stored copy.
// When the scope is full its oldest document is evicted.
func (s *InMemoryStore) Save(scope string, doc Document) (Document, error) {
	doc = doc.clone()
	doc.ID = uuid.NewString()
	doc.Scope = scope
	if doc.Created.IsZero() {
		doc.Created = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[scope]; !exists {
		s.docs[scope] = make(map[string]Document)
	}
	s.docs[scope][doc.ID] = doc
	s.order[scope] = append(s.order[scope], doc.ID)

	for len(s.order[scope]) > s.maxPerScope {
		oldest := s.order[scope][0]
		s.order[scope] = s.order[scope][1:]
		delete(s.docs[scope], oldest)
	}

	return doc.clone(), nil
}

// Get returns a copy of the stored document or ErrNotFound.
func (s *InMemoryStore) Get(scope, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.docs[scope]
	if !ok {
		return Document{}, ErrNotFound
	}
	doc, ok := m[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc.clone(), nil
}

// List returns the documents of scope, oldest first. The slice is a
// snapshot and safe for caller mutation.
func (s *InMemoryStore) List(scope string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.order[scope]
	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.docs[scope][id].clone())
	}
	return out, nil
}

// Delete removes the document if present or returns ErrNotFound.
func (s *InMemoryStore) Delete(scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.docs[scope]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m[id]; !ok {
		return ErrNotFound
	}
	delete(m, id)
	order := s.order[scope]
	for i, v := range order {
		if v == id {
			s.order[scope] = append(order[:i:i], order[i+1:]...)
			break
		}
	}
	return nil
}

// Clear drops every document of scope and returns how many were removed.
func (s *InMemoryStore) Clear(scope string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.docs[scope])
	delete(s.docs, scope)
	delete(s.order, scope)
	return n
}
