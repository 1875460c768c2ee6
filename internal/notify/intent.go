package notify

import "time"

type Recipient string

const (
	RecipientUser   Recipient = "user"
	RecipientAdmins Recipient = "admin-broadcast"
)

type Kind string

const (
	KindOrderCreated        Kind = "order_created"
	KindPaymentInstructions Kind = "payment_instructions"
	KindOrderPendingReview  Kind = "order_pending_review"
	KindOrderApproved       Kind = "order_approved"
	KindFulfillmentDue      Kind = "fulfillment_due"
	KindOrderRejected       Kind = "order_rejected"
	KindOrderCancelled      Kind = "order_cancelled"
)

// Intent is one outbound notification produced by an order transition. It is
// written to the notification outbox in the same transaction as the
// transition itself and published asynchronously; delivery is best-effort
// with retry owned by the outbox dispatcher, never awaited by the workflow.
type Intent struct {
	EventID      string    `json:"event_id"`
	Recipient    Recipient `json:"recipient"`
	UserID       int64     `json:"user_id"`
	OrderID      int64     `json:"order_id"`
	Kind         Kind      `json:"kind"`
	ServiceName  string    `json:"service_name,omitempty"`
	Price        int64     `json:"price,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Instructions string    `json:"instructions,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
