package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/teebox/teebox-bookings/internal/domain"
)

type BayRepository interface {
	List(ctx context.Context) ([]domain.Bay, error)
	GetByID(ctx context.Context, id int64) (*domain.Bay, error)
	Create(ctx context.Context, name string) (*domain.Bay, error)
}

type bayRepository struct {
	pool *pgxpool.Pool
}

func NewBayRepository(pool *pgxpool.Pool) BayRepository {
	return &bayRepository{pool: pool}
}

func (r *bayRepository) List(ctx context.Context) ([]domain.Bay, error) {
	const q = `SELECT id, name FROM bays ORDER BY id`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bays []domain.Bay
	for rows.Next() {
		var b domain.Bay
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, err
		}
		bays = append(bays, b)
	}
	return bays, rows.Err()
}

func (r *bayRepository) GetByID(ctx context.Context, id int64) (*domain.Bay, error) {
	const q = `SELECT id, name FROM bays WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var b domain.Bay
	err := r.pool.QueryRow(ctx, q, id).Scan(&b.ID, &b.Name)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bayRepository) Create(ctx context.Context, name string) (*domain.Bay, error) {
	const q = `INSERT INTO bays (name) VALUES ($1) RETURNING id, name`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var b domain.Bay
	if err := r.pool.QueryRow(ctx, q, name).Scan(&b.ID, &b.Name); err != nil {
		return nil, err
	}
	return &b, nil
}
