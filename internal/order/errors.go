package order

import "errors"

var (
	// ErrInvalidArgument reports malformed input, e.g. an empty proof
	// reference or rejection reason.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOrderNotFound reports an unknown order id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidTransition reports a state machine guard failure: the order
	// is not in the state the requested transition starts from. Nothing is
	// mutated and no intent is emitted.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrConflict reports a lost compare-and-set race: another transition
	// committed between the caller's read and write. It is the only error
	// expected under normal concurrent operation.
	ErrConflict = errors.New("order already adjudicated")

	// ErrUnauthorized reports an identity that may not perform the
	// requested transition.
	ErrUnauthorized = errors.New("unauthorized")
)
