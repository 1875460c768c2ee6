package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound        = errors.New("feedback not found")
	ErrInvalidFeedback = errors.New("invalid feedback")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
)

type Feedback struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Body      string    `json:"body"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Store collects user feedback for admins to work through. Admin
// consumption is poll-based; feedback carries no order reference and does
// not go through the notification outbox.
type Store interface {
	Add(ctx context.Context, userID int64, body string) (*Feedback, error)
	ListPending(ctx context.Context) ([]Feedback, error)
	Resolve(ctx context.Context, id int64) error
}

func validate(userID int64, body string) error {
	if userID == 0 {
		return fmt.Errorf("%w: missing user id", ErrInvalidFeedback)
	}
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: empty body", ErrInvalidFeedback)
	}
	return nil
}
