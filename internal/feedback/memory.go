package feedback

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*Feedback
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[int64]*Feedback)}
}

func (s *MemoryStore) Add(_ context.Context, userID int64, body string) (*Feedback, error) {
	if err := validate(userID, body); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	fb := &Feedback{
		ID:        s.nextID,
		UserID:    userID,
		Body:      body,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	s.items[fb.ID] = fb

	cp := *fb
	return &cp, nil
}

func (s *MemoryStore) ListPending(_ context.Context) ([]Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []Feedback
	for id := int64(1); id <= s.nextID; id++ {
		if fb, ok := s.items[id]; ok && fb.Status == StatusPending {
			pending = append(pending, *fb)
		}
	}
	return pending, nil
}

func (s *MemoryStore) Resolve(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	fb.Status = StatusResolved
	return nil
}
