package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dispute-service/internal/domain"
)

// ReferenceRepository reads order and customization-request projections. The
// dispute service never writes to these tables.
type ReferenceRepository interface {
	GetTransactionRef(ctx context.Context, kind domain.ReferenceKind, id string) (*domain.TransactionRef, error)
}

type referenceRepository struct {
	pool *pgxpool.Pool
}

// NewReferenceRepository instantiates repository.
func NewReferenceRepository(pool *pgxpool.Pool) ReferenceRepository {
	return &referenceRepository{pool: pool}
}

func (r *referenceRepository) GetTransactionRef(ctx context.Context, kind domain.ReferenceKind, id string) (*domain.TransactionRef, error) {
	var query string
	switch kind {
	case domain.ReferenceKindOrder:
		query = `
        SELECT id, customer_id, shop_id, amount_paid, state, completed_at, created_at
        FROM orders WHERE id=$1`
	default:
		query = `
        SELECT id, customer_id, designer_id, amount_paid, state, completed_at, created_at
        FROM customization_requests WHERE id=$1`
	}

	ref := domain.TransactionRef{Kind: kind}
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ref.ID,
		&ref.CustomerID,
		&ref.CounterpartyID,
		&ref.AmountPaid,
		&ref.State,
		&ref.CompletedAt,
		&ref.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &ref, nil
}
