package order

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Abiet55/testtestbot/internal/catalog"
	"github.com/Abiet55/testtestbot/internal/notify"
)

// Authorizer decides whether an identity may perform admin-only
// transitions. How the allowlist is sourced is not the workflow's concern.
type Authorizer interface {
	IsAdmin(id int64) bool
}

// StatusListener observes committed transitions, e.g. to push live updates
// over a websocket. It must not block.
type StatusListener interface {
	OrderStatusChanged(o *Order)
}

// Workflow enforces the order state machine. Every operation validates
// against the catalog and the current order state, commits through the
// store's compare-and-set, and emits notification intents atomically with
// the transition. Failed guards mutate nothing and emit nothing. The
// workflow never waits on notification delivery.
type Workflow struct {
	catalog      catalog.Catalog
	store        Store
	auth         Authorizer
	instructions string
	listener     StatusListener
	logger       *slog.Logger
}

func NewWorkflow(cat catalog.Catalog, store Store, auth Authorizer, instructions string, logger *slog.Logger) *Workflow {
	return &Workflow{
		catalog:      cat,
		store:        store,
		auth:         auth,
		instructions: instructions,
		logger:       logger,
	}
}

// SetStatusListener attaches a listener for committed transitions. Call
// before serving requests.
func (w *Workflow) SetStatusListener(l StatusListener) {
	w.listener = l
}

// PaymentInstructions returns the off-band payment instructions text.
func (w *Workflow) PaymentInstructions() string {
	return w.instructions
}

// Create opens a new order for the named service, snapshotting its current
// name and price. The snapshot shields the order from later catalog
// repricing or removal.
func (w *Workflow) Create(ctx context.Context, userID int64, serviceName string) (*Order, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidArgument)
	}

	svc, err := w.catalog.Get(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	o := &Order{
		UserID:       userID,
		ServiceName:  svc.Name,
		ServicePrice: svc.Price,
		Status:       StatusCreated,
	}
	intent := w.intent(notify.RecipientUser, userID, notify.KindOrderCreated, svc.Name, svc.Price)

	if err := w.store.Insert(ctx, o, []notify.Intent{intent}); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	w.logger.Info("order created", "order_id", o.ID, "user_id", userID, "service", svc.Name)
	w.notifyListener(o)
	return o, nil
}

// RequestPaymentInfo moves the caller's order to awaiting_proof and emits
// the payment instructions.
func (w *Workflow) RequestPaymentInfo(ctx context.Context, id, userID int64) (*Order, error) {
	o, err := w.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := w.guard(o, StatusAwaitingProof); err != nil {
		return nil, err
	}

	in := w.intent(notify.RecipientUser, userID, notify.KindPaymentInstructions, o.ServiceName, o.ServicePrice)
	in.Instructions = w.instructions

	return w.commit(ctx, id, o.Status, Change{
		To:    StatusAwaitingProof,
		Actor: actorUser(userID),
	}, in)
}

// SubmitProof records the proof-of-payment reference and queues the order
// for admin review. The reference is opaque and write-once.
func (w *Workflow) SubmitProof(ctx context.Context, id, userID int64, ref string) (*Order, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("%w: empty proof reference", ErrInvalidArgument)
	}

	o, err := w.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := w.guard(o, StatusSubmitted); err != nil {
		return nil, err
	}

	in := w.intent(notify.RecipientAdmins, userID, notify.KindOrderPendingReview, o.ServiceName, o.ServicePrice)

	return w.commit(ctx, id, o.Status, Change{
		To:       StatusSubmitted,
		ProofRef: ref,
		Actor:    actorUser(userID),
	}, in)
}

// Approve adjudicates a submitted order in the user's favour. When two
// admins race on the same order, exactly one compare-and-set wins; the
// loser sees ErrConflict and must report it, not retry.
func (w *Workflow) Approve(ctx context.Context, id, adminID int64) (*Order, error) {
	if !w.auth.IsAdmin(adminID) {
		return nil, fmt.Errorf("%w: %d is not an admin", ErrUnauthorized, adminID)
	}

	o, err := w.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := w.guard(o, StatusApproved); err != nil {
		return nil, err
	}

	approved := w.intent(notify.RecipientUser, o.UserID, notify.KindOrderApproved, o.ServiceName, o.ServicePrice)
	fulfillment := w.intent(notify.RecipientAdmins, o.UserID, notify.KindFulfillmentDue, o.ServiceName, o.ServicePrice)

	return w.commit(ctx, id, o.Status, Change{
		To:      StatusApproved,
		AdminID: adminID,
		Actor:   actorAdmin(adminID),
	}, approved, fulfillment)
}

// Reject adjudicates a submitted order against the user, with a reason the
// user gets to see.
func (w *Workflow) Reject(ctx context.Context, id, adminID int64, reason string) (*Order, error) {
	if !w.auth.IsAdmin(adminID) {
		return nil, fmt.Errorf("%w: %d is not an admin", ErrUnauthorized, adminID)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: empty rejection reason", ErrInvalidArgument)
	}

	o, err := w.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := w.guard(o, StatusRejected); err != nil {
		return nil, err
	}

	in := w.intent(notify.RecipientUser, o.UserID, notify.KindOrderRejected, o.ServiceName, o.ServicePrice)
	in.Reason = reason

	return w.commit(ctx, id, o.Status, Change{
		To:           StatusRejected,
		AdminID:      adminID,
		RejectReason: reason,
		Actor:        actorAdmin(adminID),
	}, in)
}

// CancelByUser cancels the caller's own non-terminal order and notifies the
// admins.
func (w *Workflow) CancelByUser(ctx context.Context, id, userID int64) (*Order, error) {
	o, err := w.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := w.guard(o, StatusCancelled); err != nil {
		return nil, err
	}

	in := w.intent(notify.RecipientAdmins, userID, notify.KindOrderCancelled, o.ServiceName, o.ServicePrice)

	return w.commit(ctx, id, o.Status, Change{
		To:    StatusCancelled,
		Actor: actorUser(userID),
	}, in)
}

// CancelByAdmin cancels any non-terminal order and notifies its user.
func (w *Workflow) CancelByAdmin(ctx context.Context, id, adminID int64) (*Order, error) {
	if !w.auth.IsAdmin(adminID) {
		return nil, fmt.Errorf("%w: %d is not an admin", ErrUnauthorized, adminID)
	}

	o, err := w.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := w.guard(o, StatusCancelled); err != nil {
		return nil, err
	}

	in := w.intent(notify.RecipientUser, o.UserID, notify.KindOrderCancelled, o.ServiceName, o.ServicePrice)

	return w.commit(ctx, id, o.Status, Change{
		To:    StatusCancelled,
		Actor: actorAdmin(adminID),
	}, in)
}

func (w *Workflow) owned(ctx context.Context, id, userID int64) (*Order, error) {
	o, err := w.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, fmt.Errorf("%w: order %d does not belong to user %d", ErrUnauthorized, id, userID)
	}
	return o, nil
}

func (w *Workflow) guard(o *Order, to Status) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	return nil
}

func (w *Workflow) commit(ctx context.Context, id int64, expected Status, ch Change, intents ...notify.Intent) (*Order, error) {
	o, err := w.store.Transition(ctx, id, expected, ch, intents)
	if err != nil {
		return nil, err
	}
	w.logger.Info("order transition", "order_id", id, "from", expected, "to", ch.To, "actor", ch.Actor)
	w.notifyListener(o)
	return o, nil
}

func (w *Workflow) intent(recipient notify.Recipient, userID int64, kind notify.Kind, service string, price int64) notify.Intent {
	return notify.Intent{
		EventID:     uuid.NewString(),
		Recipient:   recipient,
		UserID:      userID,
		Kind:        kind,
		ServiceName: service,
		Price:       price,
		CreatedAt:   time.Now().UTC(),
	}
}

func (w *Workflow) notifyListener(o *Order) {
	if w.listener != nil {
		w.listener.OrderStatusChanged(o)
	}
}

func actorUser(id int64) string  { return fmt.Sprintf("user:%d", id) }
func actorAdmin(id int64) string { return fmt.Sprintf("admin:%d", id) }
