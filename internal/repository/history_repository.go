package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dispute-service/internal/domain"
)

// HistoryRepository persists the immutable dispute audit trail.
type HistoryRepository interface {
	Create(ctx context.Context, entry *domain.DisputeHistory) error
	ListByDispute(ctx context.Context, disputeID string, limit, offset int) ([]domain.DisputeHistory, error)
}

type historyRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository instantiates repository.
func NewHistoryRepository(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepository{pool: pool}
}

func (r *historyRepository) Create(ctx context.Context, entry *domain.DisputeHistory) error {
	const query = `
        INSERT INTO dispute_history (dispute_id, actor_type, actor_id, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.DisputeID,
		entry.ActorType,
		entry.ActorID,
		entry.ChangeType,
		entry.OldValue,
		entry.NewValue,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *historyRepository) ListByDispute(ctx context.Context, disputeID string, limit, offset int) ([]domain.DisputeHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, dispute_id, actor_type, actor_id, change_type, old_value, new_value, created_at
        FROM dispute_history WHERE dispute_id=$1
        ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, disputeID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DisputeHistory
	for rows.Next() {
		var entry domain.DisputeHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.DisputeID,
			&entry.ActorType,
			&entry.ActorID,
			&entry.ChangeType,
			&entry.OldValue,
			&entry.NewValue,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
