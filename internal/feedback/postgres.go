package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Add(ctx context.Context, userID int64, body string) (*Feedback, error) {
	if err := validate(userID, body); err != nil {
		return nil, err
	}

	fb := &Feedback{
		UserID:    userID,
		Body:      body,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO feedback (user_id, body, status, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		userID, body, string(StatusPending), fb.CreatedAt,
	).Scan(&fb.ID)
	if err != nil {
		return nil, fmt.Errorf("insert feedback: %w", err)
	}
	return fb, nil
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]Feedback, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, body, status, created_at
		FROM feedback
		WHERE status = $1
		ORDER BY id`, string(StatusPending))
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var pending []Feedback
	for rows.Next() {
		var fb Feedback
		if err := rows.Scan(&fb.ID, &fb.UserID, &fb.Body, &fb.Status, &fb.CreatedAt); err != nil {
			return nil, err
		}
		pending = append(pending, fb)
	}
	return pending, rows.Err()
}

func (s *PostgresStore) Resolve(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE feedback SET status = $2 WHERE id = $1`,
		id, string(StatusResolved))
	if err != nil {
		return fmt.Errorf("resolve feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
