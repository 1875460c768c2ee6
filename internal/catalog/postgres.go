package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the durable catalog. A successful Upsert or Remove is
// committed before the caller is told it succeeded.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Upsert(ctx context.Context, name string, price int64) error {
	if err := validate(name, price); err != nil {
		return err
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO services (name, price, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE
		SET price = EXCLUDED.price, updated_at = NOW()`,
		name, price,
	)
	if err != nil {
		return fmt.Errorf("upsert service: %w", err)
	}
	return nil
}

func (p *Postgres) Remove(ctx context.Context, name string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM services WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("remove service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServiceNotFound
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, name string) (Service, error) {
	var svc Service
	err := p.pool.QueryRow(ctx, `
		SELECT name, price FROM services WHERE name = $1`,
		name,
	).Scan(&svc.Name, &svc.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Service{}, ErrServiceNotFound
		}
		return Service{}, fmt.Errorf("get service: %w", err)
	}
	return svc, nil
}

// List returns services in insertion order (id order), which is stable
// across upserts of existing names.
func (p *Postgres) List(ctx context.Context) ([]Service, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT name, price FROM services ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		var svc Service
		if err := rows.Scan(&svc.Name, &svc.Price); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}
