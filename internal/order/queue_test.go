package order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPendingOldestFirst(t *testing.T) {
	s := NewMemoryStore()
	q := NewQueue(s)
	ctx := context.Background()

	first := insertOrder(t, s, 1, StatusSubmitted)
	insertOrder(t, s, 2, StatusCreated)
	second := insertOrder(t, s, 3, StatusSubmitted)
	insertOrder(t, s, 4, StatusCancelled)

	pending, err := q.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)
	for _, o := range pending {
		assert.Equal(t, StatusSubmitted, o.Status)
	}
}

func TestListPendingReflectsLatestState(t *testing.T) {
	s := NewMemoryStore()
	q := NewQueue(s)
	ctx := context.Background()

	o := insertOrder(t, s, 1, StatusSubmitted)

	pending, err := q.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = s.Transition(ctx, o.ID, StatusSubmitted, Change{To: StatusApproved}, nil)
	require.NoError(t, err)

	pending, err = q.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
