package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Abiet55/testtestbot/internal/notify"
)

// MemoryStore holds orders in process memory with the same semantics as the
// Postgres store, including compare-and-set transitions and atomic intent
// capture. Emitted intents are retained so tests can assert on them.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	orders  map[int64]*Order
	events  map[int64][]Event
	intents []notify.Intent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[int64]*Order),
		events: make(map[int64][]Event),
	}
}

func (s *MemoryStore) Insert(_ context.Context, o *Order, intents []notify.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := time.Now().UTC()
	o.ID = s.nextID
	o.CreatedAt = now
	o.UpdatedAt = now

	stored := *o
	s.orders[o.ID] = &stored
	s.events[o.ID] = append(s.events[o.ID], Event{
		OrderID:    o.ID,
		To:         o.Status,
		Actor:      actorUser(o.UserID),
		OccurredAt: now,
	})
	s.appendIntents(o.ID, intents)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Order
	for _, o := range s.orders {
		if f.UserID != 0 && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		result = append(result, *o)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) History(_ context.Context, id int64) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return nil, ErrOrderNotFound
	}
	return append([]Event(nil), s.events[id]...), nil
}

func (s *MemoryStore) Transition(_ context.Context, id int64, expected Status, ch Change, intents []notify.Intent) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if o.Status != expected {
		return nil, ErrConflict
	}

	from := o.Status
	o.Status = ch.To
	if ch.ProofRef != "" {
		o.ProofRef = ch.ProofRef
	}
	if ch.AdminID != 0 {
		o.AdminID = ch.AdminID
	}
	if ch.RejectReason != "" {
		o.RejectReason = ch.RejectReason
	}
	o.UpdatedAt = time.Now().UTC()

	s.events[id] = append(s.events[id], Event{
		OrderID:    id,
		From:       from,
		To:         ch.To,
		Actor:      ch.Actor,
		OccurredAt: o.UpdatedAt,
	})
	s.appendIntents(id, intents)

	cp := *o
	return &cp, nil
}

// Intents returns every intent persisted so far, in commit order.
func (s *MemoryStore) Intents() []notify.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Intent(nil), s.intents...)
}

func (s *MemoryStore) appendIntents(orderID int64, intents []notify.Intent) {
	for _, in := range intents {
		in.OrderID = orderID
		s.intents = append(s.intents, in)
	}
}
