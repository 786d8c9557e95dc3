package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dispute-service/internal/domain"
	apperrors "github.com/spec-kit/dispute-service/pkg/util"
)

const uniqueViolation = "23505"

// SettlementRepository persists settlement instructions. The unique constraint
// on dispute_id is the at-most-once latch for terminal transitions.
type SettlementRepository interface {
	// Create inserts the pending settlement. A second insert for the same
	// dispute returns a CONFLICT error.
	Create(ctx context.Context, settlement *domain.Settlement) error
	Complete(ctx context.Context, settlement *domain.Settlement) error
	GetByDispute(ctx context.Context, disputeID string) (*domain.Settlement, error)
}

type settlementRepository struct {
	pool *pgxpool.Pool
}

// NewSettlementRepository instantiates repository.
func NewSettlementRepository(pool *pgxpool.Pool) SettlementRepository {
	return &settlementRepository{pool: pool}
}

func (r *settlementRepository) Create(ctx context.Context, settlement *domain.Settlement) error {
	const query = `
        INSERT INTO settlements (dispute_id, outcome, refund_amount, release_amount, idempotency_key, status)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		settlement.DisputeID,
		settlement.Outcome,
		settlement.RefundAmount,
		settlement.ReleaseAmount,
		settlement.IdempotencyKey,
		settlement.Status,
	).Scan(&settlement.ID, &settlement.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperrors.NewConflict("dispute already settled", map[string]any{
				"dispute_id": settlement.DisputeID,
			})
		}
		return err
	}
	return nil
}

func (r *settlementRepository) Complete(ctx context.Context, settlement *domain.Settlement) error {
	const query = `
        UPDATE settlements SET refund_ref=$1, release_ref=$2, status=$3, completed_at=NOW()
        WHERE id=$4
        RETURNING completed_at`
	return r.pool.QueryRow(ctx, query,
		settlement.RefundRef,
		settlement.ReleaseRef,
		domain.SettlementStatusCompleted,
		settlement.ID,
	).Scan(&settlement.CompletedAt)
}

func (r *settlementRepository) GetByDispute(ctx context.Context, disputeID string) (*domain.Settlement, error) {
	const query = `
        SELECT id, dispute_id, outcome, refund_amount, release_amount, refund_ref, release_ref,
               idempotency_key, status, created_at, completed_at
        FROM settlements WHERE dispute_id=$1`
	var settlement domain.Settlement
	if err := r.pool.QueryRow(ctx, query, disputeID).Scan(
		&settlement.ID,
		&settlement.DisputeID,
		&settlement.Outcome,
		&settlement.RefundAmount,
		&settlement.ReleaseAmount,
		&settlement.RefundRef,
		&settlement.ReleaseRef,
		&settlement.IdempotencyKey,
		&settlement.Status,
		&settlement.CreatedAt,
		&settlement.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &settlement, nil
}
