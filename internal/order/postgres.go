package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Abiet55/testtestbot/internal/notify"
)

// PostgresStore is the canonical order store. The status compare-and-set is
// a conditional UPDATE checked via RowsAffected; audit events and
// notification intents are written in the same transaction, so a
// transition, its history entry and its outbox rows commit or roll back
// together.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const orderColumns = `id, user_id, service_name, service_price, status, proof_ref, admin_id, reject_reason, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.ServiceName, &o.ServicePrice, &o.Status,
		&o.ProofRef, &o.AdminID, &o.RejectReason, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PostgresStore) Insert(ctx context.Context, o *Order, intents []notify.Intent) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, service_name, service_price, status, proof_ref, admin_id, reject_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '', 0, '', $5, $5)
		RETURNING id`,
		o.UserID, o.ServiceName, o.ServicePrice, string(o.Status), now,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	o.CreatedAt = now
	o.UpdatedAt = now

	if err := insertEvent(ctx, tx, Event{
		OrderID:    o.ID,
		To:         o.Status,
		Actor:      actorUser(o.UserID),
		OccurredAt: now,
	}); err != nil {
		return err
	}
	if err := insertIntents(ctx, tx, o.ID, intents); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ($1 = 0 OR user_id = $1) AND ($2 = '' OR status = $2) ORDER BY created_at, id`
	rows, err := s.pool.Query(ctx, query, f.UserID, string(f.Status))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var result []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	return result, rows.Err()
}

func (s *PostgresStore) History(ctx context.Context, id int64) ([]Event, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT order_id, from_status, to_status, actor, occurred_at
		FROM order_events
		WHERE order_id = $1
		ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("order history: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.OrderID, &ev.From, &ev.To, &ev.Actor, &ev.OccurredAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *PostgresStore) Transition(ctx context.Context, id int64, expected Status, ch Change, intents []notify.Intent) (*Order, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $3,
		    proof_ref = CASE WHEN $4 <> '' THEN $4 ELSE proof_ref END,
		    admin_id = CASE WHEN $5 <> 0 THEN $5 ELSE admin_id END,
		    reject_reason = CASE WHEN $6 <> '' THEN $6 ELSE reject_reason END,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, string(expected), string(ch.To), ch.ProofRef, ch.AdminID, ch.RejectReason,
	)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing order from a lost race.
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check order: %w", err)
		}
		if !exists {
			return nil, ErrOrderNotFound
		}
		return nil, ErrConflict
	}

	if err := insertEvent(ctx, tx, Event{
		OrderID:    id,
		From:       expected,
		To:         ch.To,
		Actor:      ch.Actor,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}
	if err := insertIntents(ctx, tx, id, intents); err != nil {
		return nil, err
	}

	o, err := scanOrder(tx.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, ev Event) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_events (order_id, from_status, to_status, actor, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`,
		ev.OrderID, string(ev.From), string(ev.To), ev.Actor, ev.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert order event: %w", err)
	}
	return nil
}

func insertIntents(ctx context.Context, tx pgx.Tx, orderID int64, intents []notify.Intent) error {
	for _, in := range intents {
		in.OrderID = orderID
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal intent: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO notification_outbox (event_id, event_type, payload)
			VALUES ($1, $2, $3)`,
			in.EventID, string(in.Kind), payload,
		)
		if err != nil {
			return fmt.Errorf("insert outbox: %w", err)
		}
	}
	return nil
}
