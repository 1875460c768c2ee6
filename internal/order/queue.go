package order

import "context"

// Queue is the admin-facing adjudication view: submitted orders, oldest
// first. It is a pure projection over the store; no state of its own, no
// caching beyond what the store has committed at call time.
type Queue struct {
	store Store
}

func NewQueue(store Store) *Queue {
	return &Queue{store: store}
}

func (q *Queue) ListPending(ctx context.Context) ([]Order, error) {
	return q.store.List(ctx, Filter{Status: StatusSubmitted})
}
