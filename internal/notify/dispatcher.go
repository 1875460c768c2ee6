package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rabbitmq/amqp091-go"
)

// Sender delivers one rendered notification. Implementations own formatting
// for their transport and any transport-level retry.
type Sender interface {
	Send(ctx context.Context, recipient Recipient, userID int64, text string) error
}

// LogSender writes deliveries to the log. It is the default when no
// transport webhook is configured, and keeps the pipeline observable in
// development.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) Send(_ context.Context, recipient Recipient, userID int64, text string) error {
	s.Logger.Info("notification", "recipient", recipient, "user_id", userID, "text", text)
	return nil
}

// WebhookSender POSTs rendered notifications to the conversational
// transport's delivery endpoint.
type WebhookSender struct {
	URL    string
	Client *http.Client
}

func (s *WebhookSender) Send(ctx context.Context, recipient Recipient, userID int64, text string) error {
	body, err := json.Marshal(map[string]any{
		"recipient": recipient,
		"user_id":   userID,
		"text":      text,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("deliver notification: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Dispatcher consumes published intents and hands rendered text to the
// Sender. Delivery is at-least-once; duplicates are acceptable for
// notifications.
type Dispatcher struct {
	sender Sender
	logger *slog.Logger
}

func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, logger: logger}
}

func (d *Dispatcher) Handle(ctx context.Context, msg amqp091.Delivery) {
	var in Intent
	if err := json.Unmarshal(msg.Body, &in); err != nil {
		d.logger.Error("invalid notification intent", "err", err)
		_ = msg.Nack(false, false)
		return
	}

	if err := d.sender.Send(ctx, in.Recipient, in.UserID, Render(in)); err != nil {
		d.logger.Error("notification delivery failed", "event_id", in.EventID, "order_id", in.OrderID, "err", err)
		_ = msg.Nack(false, true)
		return
	}

	_ = msg.Ack(false)
}
