package storage

import (
	"sort"
	"sync"

	"github.com/libraz/mygramdb/internal/errs"
)

// DocId is a dense, monotonically assigned identifier. Zero is reserved and
// never issued to a real document.
type DocId uint32

// Document is the mirrored row: primary key, its filter-bound columns, and
// the DocId the Index indexes it under.
type Document struct {
	PrimaryKey string
	Filters    map[string]FilterValue
	Id         DocId
}

// DocStore owns the primary-key ↔ DocId mapping and the filter columns bound
// to each live document for one table. It is mutated only by the ApplyWorker;
// everyone else (search handlers, the dump writer) takes a read lock.
type DocStore struct {
	mu sync.RWMutex

	byPK map[string]*Document
	byID map[DocId]*Document
	next DocId
}

// NewDocStore returns an empty store.
func NewDocStore() *DocStore {
	return &DocStore{
		byPK: make(map[string]*Document),
		byID: make(map[DocId]*Document),
		next: 1, // 0 is reserved
	}
}

// AddDocument assigns a fresh DocId to pk and binds the given filters.
// Returns Exhausted if the 32-bit DocId space is fully allocated.
func (s *DocStore) AddDocument(pk string, filters map[string]FilterValue) (DocId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byPK[pk]; ok {
		// Re-insert of a live primary key: treat as update in place.
		existing.Filters = filters
		return existing.Id, nil
	}

	if s.next == 0 {
		return 0, errs.New(errs.Exhausted, "DocId space exhausted")
	}

	id := s.next
	s.next++

	doc := &Document{PrimaryKey: pk, Filters: filters, Id: id}
	s.byPK[pk] = doc
	s.byID[id] = doc
	return id, nil
}

// UpdateDocument replaces the filter set bound to an existing DocId.
func (s *DocStore) UpdateDocument(id DocId, filters map[string]FilterValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.byID[id]
	if !ok {
		return errs.New(errs.NotFound, "document not found")
	}
	doc.Filters = filters
	return nil
}

// RemoveDocument deletes a document by DocId. A miss is not an error; the
// apply worker treats a missing row as already-gone.
func (s *DocStore) RemoveDocument(id DocId) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	delete(s.byPK, doc.PrimaryKey)
}

// GetDocId looks up the DocId bound to a primary key.
func (s *DocStore) GetDocId(pk string) (DocId, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.byPK[pk]
	if !ok {
		return 0, false
	}
	return doc.Id, true
}

// GetFilterValue returns the filter value bound to doc/column, or the Null
// variant (and ok=false) if the column or document isn't present.
func (s *DocStore) GetFilterValue(id DocId, column string) (FilterValue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.byID[id]
	if !ok {
		return FilterValue{}, false
	}
	v, ok := doc.Filters[column]
	return v, ok
}

// GetPrimaryKey returns the primary key bound to a DocId, for rendering
// search results back to callers who only deal in DocIds internally.
func (s *DocStore) GetPrimaryKey(id DocId) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.byID[id]
	if !ok {
		return "", false
	}
	return doc.PrimaryKey, true
}

// Count returns the number of live documents.
func (s *DocStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Clear removes every document, for TRUNCATE/DROP apply.
func (s *DocStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byPK = make(map[string]*Document)
	s.byID = make(map[DocId]*Document)
	s.next = 1
}

// Snapshot returns a stable, DocId-ascending copy of every live document,
// for dump serialization.
func (s *DocStore) Snapshot() []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Document, 0, len(s.byID))
	for _, d := range s.byID {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

// Restore repopulates the store from a prior Snapshot, preserving DocIds and
// advancing next past the highest restored id. Used by DumpReader.
func (s *DocStore) Restore(docs []*Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byPK = make(map[string]*Document, len(docs))
	s.byID = make(map[DocId]*Document, len(docs))
	s.next = 1
	for _, d := range docs {
		cp := *d
		s.byPK[cp.PrimaryKey] = &cp
		s.byID[cp.Id] = &cp
		if cp.Id >= s.next {
			s.next = cp.Id + 1
		}
	}
}
