package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/rezonia/nfe-engine/internal/model"
)

// Store persists documents, events, and sequence counters. Sequence
// allocation is serialized by the implementation: two concurrent
// issuances on the same series never receive the same number.
type Store interface {
	SaveDocument(ctx context.Context, doc *model.FiscalDocument) error
	GetDocument(ctx context.Context, id uuid.UUID) (*model.FiscalDocument, error)
	GetByAccessKey(ctx context.Context, accessKey string) (*model.FiscalDocument, error)

	// NextNumber allocates the next document number for a series,
	// acquire-increment-store under the store's exclusion boundary
	NextNumber(ctx context.Context, series int) (int64, error)

	SaveEvent(ctx context.Context, event *model.Event) error
	ListEvents(ctx context.Context, accessKey string) ([]*model.Event, error)

	// AcquireEventLock serializes event submission per document.
	// A second concurrent acquisition is rejected, not queued.
	AcquireEventLock(accessKey string) (release func(), err error)
}

// ErrNotFound is returned for unknown documents
var ErrNotFound = fmt.Errorf("document not found")

// MemoryStore is the in-process Store implementation. Durable
// persistence lives behind the same interface in the surrounding
// application.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[uuid.UUID]*model.FiscalDocument
	byKey     map[string]uuid.UUID
	events    map[string][]*model.Event
	sequences map[int]int64

	lockMu     sync.Mutex
	eventLocks map[string]bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents:  make(map[uuid.UUID]*model.FiscalDocument),
		byKey:      make(map[string]uuid.UUID),
		events:     make(map[string][]*model.Event),
		sequences:  make(map[int]int64),
		eventLocks: make(map[string]bool),
	}
}

// SaveDocument stores a copy of the document
func (s *MemoryStore) SaveDocument(ctx context.Context, doc *model.FiscalDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.documents[doc.ID] = &cp
	if doc.AccessKey != "" {
		s.byKey[doc.AccessKey] = doc.ID
	}
	return nil
}

// GetDocument returns a copy of the stored document
func (s *MemoryStore) GetDocument(ctx context.Context, id uuid.UUID) (*model.FiscalDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

// GetByAccessKey returns a copy of the document with the given key
func (s *MemoryStore) GetByAccessKey(ctx context.Context, accessKey string) (*model.FiscalDocument, error) {
	s.mu.RLock()
	id, ok := s.byKey[accessKey]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.GetDocument(ctx, id)
}

// NextNumber allocates the next number for the series
func (s *MemoryStore) NextNumber(ctx context.Context, series int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences[series]++
	return s.sequences[series], nil
}

// SaveEvent appends an event to the document's history
func (s *MemoryStore) SaveEvent(ctx context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *event
	s.events[event.AccessKey] = append(s.events[event.AccessKey], &cp)
	return nil
}

// ListEvents returns the document's events in submission order
func (s *MemoryStore) ListEvents(ctx context.Context, accessKey string) ([]*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.events[accessKey]
	out := make([]*model.Event, 0, len(stored))
	for _, e := range stored {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// AcquireEventLock rejects a second concurrent event submission for
// the same document
func (s *MemoryStore) AcquireEventLock(accessKey string) (func(), error) {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if s.eventLocks[accessKey] {
		return nil, fmt.Errorf("an event for %s is already in flight", accessKey)
	}
	s.eventLocks[accessKey] = true
	return func() {
		s.lockMu.Lock()
		delete(s.eventLocks, accessKey)
		s.lockMu.Unlock()
	}, nil
}
