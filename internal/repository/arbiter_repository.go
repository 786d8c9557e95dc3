package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dispute-service/internal/domain"
)

// ArbiterRepository encapsulates arbiter persistence.
type ArbiterRepository interface {
	Create(ctx context.Context, arbiter *domain.Arbiter) error
	GetByID(ctx context.Context, id string) (*domain.Arbiter, error)
	GetByEmail(ctx context.Context, email string) (*domain.Arbiter, error)
}

type arbiterRepository struct {
	pool *pgxpool.Pool
}

// NewArbiterRepository instantiates repository.
func NewArbiterRepository(pool *pgxpool.Pool) ArbiterRepository {
	return &arbiterRepository{pool: pool}
}

func (r *arbiterRepository) Create(ctx context.Context, arbiter *domain.Arbiter) error {
	const query = `
        INSERT INTO arbiters (name, email, password_hash, role, active)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		arbiter.Name,
		arbiter.Email,
		arbiter.PasswordHash,
		arbiter.Role,
		arbiter.Active,
	).Scan(&arbiter.ID, &arbiter.CreatedAt, &arbiter.UpdatedAt)
}

func (r *arbiterRepository) GetByID(ctx context.Context, id string) (*domain.Arbiter, error) {
	const query = `
        SELECT id, name, email, password_hash, role, active, created_at, updated_at
        FROM arbiters WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *arbiterRepository) GetByEmail(ctx context.Context, email string) (*domain.Arbiter, error) {
	const query = `
        SELECT id, name, email, password_hash, role, active, created_at, updated_at
        FROM arbiters WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *arbiterRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Arbiter, error) {
	var arbiter domain.Arbiter
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&arbiter.ID,
		&arbiter.Name,
		&arbiter.Email,
		&arbiter.PasswordHash,
		&arbiter.Role,
		&arbiter.Active,
		&arbiter.CreatedAt,
		&arbiter.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &arbiter, nil
}
