package notify

import "fmt"

// Render produces the user-facing message text for an intent. Formatting
// for a concrete transport (markup, buttons) belongs to the transport, not
// here; this is the plain-text body.
func Render(in Intent) string {
	switch in.Kind {
	case KindOrderCreated:
		return fmt.Sprintf("Order #%d created: %s (%s). It will be reviewed shortly.",
			in.OrderID, in.ServiceName, FormatPrice(in.Price))
	case KindPaymentInstructions:
		return fmt.Sprintf("Payment for order #%d (%s, %s):\n%s\nSubmit your payment proof once done.",
			in.OrderID, in.ServiceName, FormatPrice(in.Price), in.Instructions)
	case KindOrderPendingReview:
		return fmt.Sprintf("New order #%d pending review: %s (%s) from user %d.",
			in.OrderID, in.ServiceName, FormatPrice(in.Price), in.UserID)
	case KindOrderApproved:
		return fmt.Sprintf("Order #%d approved. Thank you for your purchase!", in.OrderID)
	case KindFulfillmentDue:
		return fmt.Sprintf("Order #%d approved and due for fulfillment: %s for user %d.",
			in.OrderID, in.ServiceName, in.UserID)
	case KindOrderRejected:
		return fmt.Sprintf("Order #%d rejected: %s", in.OrderID, in.Reason)
	case KindOrderCancelled:
		return fmt.Sprintf("Order #%d has been cancelled.", in.OrderID)
	default:
		return fmt.Sprintf("Update on order #%d.", in.OrderID)
	}
}

// FormatPrice renders minor currency units as a decimal string, e.g. 499
// becomes "$4.99".
func FormatPrice(minor int64) string {
	return fmt.Sprintf("$%d.%02d", minor/100, minor%100)
}
