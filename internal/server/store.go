package server

import (
	"context"
	"errors"
	"sync"

	co "github.com/ilnaes/ownpad/internal/common"
)

var ErrNotFound = errors.New("not found")

// Store keeps the latest document of every live room.
type Store interface {
	Save(ctx context.Context, room string, doc co.Document) error
	// returns ErrNotFound for unknown rooms
	Load(ctx context.Context, room string) (co.Document, error)
	Delete(ctx context.Context, room string) error
	Close(ctx context.Context) error
}

type memoryStore struct {
	docs map[string]co.Document

	sync.RWMutex
}

func NewMemoryStore() Store {
	return &memoryStore{docs: make(map[string]co.Document)}
}

func (m *memoryStore) Save(_ context.Context, room string, doc co.Document) error {
	m.Lock()
	m.docs[room] = co.Document{Content: doc.Content, Ranges: append(co.RangeSet{}, doc.Ranges...)}
	m.Unlock()
	return nil
}

func (m *memoryStore) Load(_ context.Context, room string) (co.Document, error) {
	m.RLock()
	defer m.RUnlock()

	doc, ok := m.docs[room]
	if !ok {
		return co.Document{}, ErrNotFound
	}
	return co.Document{Content: doc.Content, Ranges: append(co.RangeSet{}, doc.Ranges...)}, nil
}

func (m *memoryStore) Delete(_ context.Context, room string) error {
	m.Lock()
	delete(m.docs, room)
	m.Unlock()
	return nil
}

func (m *memoryStore) Close(context.Context) error {
	return nil
}
