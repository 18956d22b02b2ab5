package store

import (
	"context"
	"sync"
)

// collection keeps documents in insertion order with an index from id to
// the position of the first document carrying it.
type collection struct {
	docs  []Document
	first map[string]int
}

// MemoryStore keeps everything in memory. Data is lost on restart.
// Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[Kind]*collection
}

// NewMemoryStore creates an empty store with one collection per kind.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{collections: make(map[Kind]*collection, len(Kinds))}
	for _, k := range Kinds {
		m.collections[k] = &collection{first: make(map[string]int)}
	}
	return m
}

func (m *MemoryStore) List(_ context.Context, kind Kind) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, ok := m.collections[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	result := make([]Document, 0, len(coll.docs))
	for _, doc := range coll.docs {
		cp, err := deepCopy(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, cp)
	}
	return result, nil
}

func (m *MemoryStore) Get(_ context.Context, kind Kind, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, ok := m.collections[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	i, ok := coll.first[id]
	if !ok {
		return nil, ErrNotFound
	}
	return deepCopy(coll.docs[i])
}

// Insert appends a copy of doc. A document that cannot be encoded as JSON is
// rejected and nothing is stored.
func (m *MemoryStore) Insert(_ context.Context, kind Kind, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[kind]
	if !ok {
		return ErrUnknownKind
	}
	cp, err := deepCopy(doc)
	if err != nil {
		return err
	}
	coll.add(cp)
	return nil
}

func (m *MemoryStore) InsertUnique(_ context.Context, kind Kind, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[kind]
	if !ok {
		return ErrUnknownKind
	}
	if id, ok := doc.ID(); ok {
		if _, exists := coll.first[id]; exists {
			return ErrDuplicateID
		}
	}
	cp, err := deepCopy(doc)
	if err != nil {
		return err
	}
	coll.add(cp)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func (c *collection) add(doc Document) {
	if id, ok := doc.ID(); ok {
		if _, exists := c.first[id]; !exists {
			c.first[id] = len(c.docs)
		}
	}
	c.docs = append(c.docs, doc)
}
