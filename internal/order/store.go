package order

import (
	"context"

	"github.com/Abiet55/testtestbot/internal/notify"
)

// Filter selects orders by user and/or status. Zero values mean "any".
type Filter struct {
	UserID int64
	Status Status
}

// Change is the payload of one status transition. Only the fields the
// target state introduces are set; unset fields keep their stored value.
type Change struct {
	To           Status
	ProofRef     string
	AdminID      int64
	RejectReason string
	Actor        string
}

// Store is the durable keyed record of orders. Implementations must commit
// a successful Insert or Transition before returning, and must persist the
// accompanying intents atomically with the order mutation (the notification
// outbox rides in the same transaction).
//
// Transition is the compare-and-set primitive that serializes concurrent
// transitions on one order: it applies the change only if the stored status
// still equals expected, failing with ErrConflict otherwise and
// ErrOrderNotFound for an unknown id. Unrelated orders never contend.
//
// Insert assigns the new order's id and stamps it onto each intent.
type Store interface {
	Insert(ctx context.Context, o *Order, intents []notify.Intent) error
	Get(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)
	History(ctx context.Context, id int64) ([]Event, error)
	Transition(ctx context.Context, id int64, expected Status, ch Change, intents []notify.Intent) (*Order, error)
}
