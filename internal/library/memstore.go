package library

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store]. The zero value is ready to use.
type MemStore struct {
	mu       sync.RWMutex
	items    map[string]Item
	byBook   map[int64]string
	progress map[int64]Progress

	// now is replaced in tests.
	now func() time.Time
}

// NewMemStore returns an empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// init lazily allocates the maps. Callers must hold the write lock.
func (s *MemStore) init() {
	if s.items == nil {
		s.items = make(map[string]Item)
		s.byBook = make(map[int64]string)
		s.progress = make(map[int64]Progress)
	}
}

// AddItem implements [Store.AddItem].
func (s *MemStore) AddItem(_ context.Context, item Item) (Item, error) {
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	if _, ok := s.items[item.ID]; ok {
		return Item{}, ErrDuplicate
	}
	if _, ok := s.byBook[item.BookID]; ok {
		return Item{}, ErrDuplicate
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.clock()
	}
	s.items[item.ID] = item
	s.byBook[item.BookID] = item.ID
	return item, nil
}

// GetItem implements [Store.GetItem].
func (s *MemStore) GetItem(_ context.Context, id string) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

// GetItemByBookID implements [Store.GetItemByBookID].
func (s *MemStore) GetItemByBookID(_ context.Context, bookID int64) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byBook[bookID]
	if !ok {
		return Item{}, ErrNotFound
	}
	return s.items[id], nil
}

// ListItems implements [Store.ListItems].
func (s *MemStore) ListItems(_ context.Context) ([]Item, error) {
	s.mu.RLock()
	out := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Item) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// DeleteItem implements [Store.DeleteItem].
func (s *MemStore) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	delete(s.byBook, item.BookID)
	return nil
}

// SaveProgress implements [Store.SaveProgress].
func (s *MemStore) SaveProgress(_ context.Context, p Progress) (Progress, error) {
	if err := p.Validate(); err != nil {
		return Progress{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	p.UpdatedAt = s.clock()
	s.progress[p.BookID] = p
	return p, nil
}

// GetProgress implements [Store.GetProgress].
func (s *MemStore) GetProgress(_ context.Context, bookID int64) (Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[bookID]
	if !ok {
		return Progress{}, ErrNotFound
	}
	return p, nil
}

// DeleteProgress implements [Store.DeleteProgress].
func (s *MemStore) DeleteProgress(_ context.Context, bookID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.progress, bookID)
	return nil
}
