package order

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abiet55/testtestbot/internal/catalog"
	"github.com/Abiet55/testtestbot/internal/notify"
)

const (
	userAlice int64 = 100
	userBob   int64 = 200
	adminA    int64 = 900
	adminB    int64 = 901
	nonAdmin  int64 = 333
)

type allowlist map[int64]bool

func (a allowlist) IsAdmin(id int64) bool { return a[id] }

type fixture struct {
	catalog  *catalog.Memory
	store    *MemoryStore
	workflow *Workflow
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat := catalog.NewMemory()
	require.NoError(t, cat.Upsert(context.Background(), "Gold", 500))

	store := NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wf := NewWorkflow(cat, store, allowlist{adminA: true, adminB: true}, "Pay to account 0100-0000, then submit proof.", logger)

	return &fixture{catalog: cat, store: store, workflow: wf}
}

func (f *fixture) submittedOrder(t *testing.T, userID int64) *Order {
	t.Helper()
	ctx := context.Background()
	o, err := f.workflow.Create(ctx, userID, "Gold")
	require.NoError(t, err)
	_, err = f.workflow.RequestPaymentInfo(ctx, o.ID, userID)
	require.NoError(t, err)
	o, err = f.workflow.SubmitProof(ctx, o.ID, userID, "receipt-001")
	require.NoError(t, err)
	return o
}

func intentKinds(intents []notify.Intent) []notify.Kind {
	kinds := make([]notify.Kind, 0, len(intents))
	for _, in := range intents {
		kinds = append(kinds, in.Kind)
	}
	return kinds
}

func TestHappyPathToApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.workflow.Create(ctx, userAlice, "Gold")
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, o.Status)
	assert.Equal(t, "Gold", o.ServiceName)
	assert.Equal(t, int64(500), o.ServicePrice)

	o, err = f.workflow.RequestPaymentInfo(ctx, o.ID, userAlice)
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingProof, o.Status)

	o, err = f.workflow.SubmitProof(ctx, o.ID, userAlice, "receipt-001")
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, o.Status)
	assert.Equal(t, "receipt-001", o.ProofRef)

	o, err = f.workflow.Approve(ctx, o.ID, adminA)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, o.Status)
	assert.Equal(t, adminA, o.AdminID)

	assert.Equal(t, []notify.Kind{
		notify.KindOrderCreated,
		notify.KindPaymentInstructions,
		notify.KindOrderPendingReview,
		notify.KindOrderApproved,
		notify.KindFulfillmentDue,
	}, intentKinds(f.store.Intents()))
}

func TestCreateUnknownService(t *testing.T) {
	f := newFixture(t)

	_, err := f.workflow.Create(context.Background(), userAlice, "Platinum")
	assert.ErrorIs(t, err, catalog.ErrServiceNotFound)
	assert.Empty(t, f.store.Intents())
}

// Scenario A: the snapshot taken at creation survives a later repricing.
func TestSnapshotSurvivesReprice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.workflow.Create(ctx, userAlice, "Gold")
	require.NoError(t, err)
	require.Equal(t, int64(500), o.ServicePrice)

	require.NoError(t, f.catalog.Upsert(ctx, "Gold", 600))

	got, err := f.store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.ServicePrice)
}

func TestSnapshotSurvivesRemoval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.submittedOrder(t, userAlice)
	require.NoError(t, f.catalog.Remove(ctx, "Gold"))

	// The in-flight order stays adjudicable.
	got, err := f.workflow.Approve(ctx, o.ID, adminA)
	require.NoError(t, err)
	assert.Equal(t, "Gold", got.ServiceName)
	assert.Equal(t, int64(500), got.ServicePrice)
}

// Scenario B: two admins race to adjudicate one submitted order. Exactly
// one commits, the other observes a conflict, never both.
func TestConcurrentAdjudication(t *testing.T) {
	f := newFixture(t)
	o := f.submittedOrder(t, userAlice)

	var wg sync.WaitGroup
	var approveErr, rejectErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, approveErr = f.workflow.Approve(context.Background(), o.ID, adminA)
	}()
	go func() {
		defer wg.Done()
		_, rejectErr = f.workflow.Reject(context.Background(), o.ID, adminB, "invalid receipt")
	}()
	wg.Wait()

	if approveErr == nil {
		require.Error(t, rejectErr)
		assert.True(t, errors.Is(rejectErr, ErrConflict) || errors.Is(rejectErr, ErrInvalidTransition),
			"loser must see conflict or invalid transition, got %v", rejectErr)
	} else {
		require.NoError(t, rejectErr)
		assert.True(t, errors.Is(approveErr, ErrConflict) || errors.Is(approveErr, ErrInvalidTransition),
			"loser must see conflict or invalid transition, got %v", approveErr)
	}

	got, err := f.store.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, got.Status == StatusApproved || got.Status == StatusRejected)
}

// Scenario C: submitting proof while still in created skips awaiting_proof
// and must fail without mutating anything.
func TestSubmitProofSkippingPaymentInfo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.workflow.Create(ctx, userAlice, "Gold")
	require.NoError(t, err)

	_, err = f.workflow.SubmitProof(ctx, o.ID, userAlice, "receipt-001")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := f.store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, got.Status)
	assert.Empty(t, got.ProofRef)
}

// Scenario E: cancel on a terminal order fails.
func TestCancelAfterApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.submittedOrder(t, userAlice)
	_, err := f.workflow.Approve(ctx, o.ID, adminA)
	require.NoError(t, err)

	_, err = f.workflow.CancelByUser(ctx, o.ID, userAlice)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.workflow.CancelByAdmin(ctx, o.ID, adminA)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDoubleApproveNotIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.submittedOrder(t, userAlice)
	_, err := f.workflow.Approve(ctx, o.ID, adminA)
	require.NoError(t, err)

	_, err = f.workflow.Approve(ctx, o.ID, adminB)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	o := f.submittedOrder(t, userAlice)

	_, err := f.workflow.Reject(context.Background(), o.ID, adminA, "  ")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSubmitProofRequiresReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.workflow.Create(ctx, userAlice, "Gold")
	require.NoError(t, err)
	_, err = f.workflow.RequestPaymentInfo(ctx, o.ID, userAlice)
	require.NoError(t, err)

	_, err = f.workflow.SubmitProof(ctx, o.ID, userAlice, "   ")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNonAdminCannotAdjudicate(t *testing.T) {
	f := newFixture(t)
	o := f.submittedOrder(t, userAlice)

	_, err := f.workflow.Approve(context.Background(), o.ID, nonAdmin)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.workflow.Reject(context.Background(), o.ID, nonAdmin, "nope")
	assert.ErrorIs(t, err, ErrUnauthorized)

	got, err := f.store.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, got.Status)
}

func TestUserCannotTouchForeignOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.workflow.Create(ctx, userAlice, "Gold")
	require.NoError(t, err)

	_, err = f.workflow.RequestPaymentInfo(ctx, o.ID, userBob)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.workflow.CancelByUser(ctx, o.ID, userBob)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUnknownOrderID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.workflow.Approve(ctx, 777, adminA)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = f.workflow.SubmitProof(ctx, 777, userAlice, "receipt")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancelNotifiesCounterpart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.workflow.Create(ctx, userAlice, "Gold")
	require.NoError(t, err)
	_, err = f.workflow.CancelByUser(ctx, o.ID, userAlice)
	require.NoError(t, err)

	o2, err := f.workflow.Create(ctx, userBob, "Gold")
	require.NoError(t, err)
	_, err = f.workflow.CancelByAdmin(ctx, o2.ID, adminA)
	require.NoError(t, err)

	var cancels []notify.Intent
	for _, in := range f.store.Intents() {
		if in.Kind == notify.KindOrderCancelled {
			cancels = append(cancels, in)
		}
	}
	require.Len(t, cancels, 2)
	assert.Equal(t, notify.RecipientAdmins, cancels[0].Recipient)
	assert.Equal(t, notify.RecipientUser, cancels[1].Recipient)
}

// Every order's recorded history must be a prefix of a legal path through
// the transition table: no regressions, no skipped states.
func TestHistoryIsLegalPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	approved := f.submittedOrder(t, userAlice)
	_, err := f.workflow.Approve(ctx, approved.ID, adminA)
	require.NoError(t, err)

	rejected := f.submittedOrder(t, userBob)
	_, err = f.workflow.Reject(ctx, rejected.ID, adminA, "blurry receipt")
	require.NoError(t, err)

	cancelled, err := f.workflow.Create(ctx, userAlice, "Gold")
	require.NoError(t, err)
	_, err = f.workflow.CancelByUser(ctx, cancelled.ID, userAlice)
	require.NoError(t, err)

	for _, id := range []int64{approved.ID, rejected.ID, cancelled.ID} {
		events, err := f.store.History(ctx, id)
		require.NoError(t, err)
		require.NotEmpty(t, events)
		assert.Equal(t, StatusCreated, events[0].To)
		for i := 1; i < len(events); i++ {
			assert.Equal(t, events[i-1].To, events[i].From)
			assert.True(t, CanTransition(events[i].From, events[i].To),
				"order %d: illegal %s -> %s", id, events[i].From, events[i].To)
		}
	}
}

func TestStatusListenerObservesTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var mu sync.Mutex
	var seen []Status
	f.workflow.SetStatusListener(listenerFunc(func(o *Order) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, o.Status)
	}))

	o, err := f.workflow.Create(ctx, userAlice, "Gold")
	require.NoError(t, err)
	_, err = f.workflow.RequestPaymentInfo(ctx, o.ID, userAlice)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusCreated, StatusAwaitingProof}, seen)
}

type listenerFunc func(o *Order)

func (f listenerFunc) OrderStatusChanged(o *Order) { f(o) }
