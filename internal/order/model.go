package order

import (
	"time"
)

type Status string

const (
	StatusCreated       Status = "created"
	StatusAwaitingProof Status = "awaiting_proof"
	StatusSubmitted     Status = "submitted"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusCancelled     Status = "cancelled"
)

// transitions is the full legal transition table. Anything not listed is
// rejected, including re-applying a terminal transition: double-approval
// must surface to the admin, never be silently swallowed.
var transitions = map[Status][]Status{
	StatusCreated:       {StatusAwaitingProof, StatusCancelled},
	StatusAwaitingProof: {StatusSubmitted, StatusCancelled},
	StatusSubmitted:     {StatusApproved, StatusRejected, StatusCancelled},
}

func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Order is one user's request to purchase a service. ServiceName and
// ServicePrice are the catalog snapshot taken at creation time and never
// change, even if the service is later repriced or removed. ProofRef,
// AdminID and RejectReason are write-once, set by the transition that
// introduces them. Orders are never deleted; terminal orders are kept for
// audit.
type Order struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	ServiceName  string    `json:"service_name"`
	ServicePrice int64     `json:"service_price"`
	Status       Status    `json:"status"`
	ProofRef     string    `json:"proof_ref,omitempty"`
	AdminID      int64     `json:"admin_id,omitempty"`
	RejectReason string    `json:"reject_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Event is one entry in an order's status audit trail.
type Event struct {
	OrderID    int64     `json:"order_id"`
	From       Status    `json:"from,omitempty"`
	To         Status    `json:"to"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
