package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/dispute-service/internal/domain"
	apperrors "github.com/spec-kit/dispute-service/pkg/util"
)

// DisputeFilter captures listing parameters.
type DisputeFilter struct {
	PartyID       *string
	Stages        []domain.DisputeStage
	Statuses      []domain.DisputeStatus
	Categories    []domain.DisputeCategory
	ReferenceKind *domain.ReferenceKind
	Limit         int
	Offset        int
}

// DisputeRepository encapsulates dispute persistence.
type DisputeRepository interface {
	Create(ctx context.Context, dispute *domain.Dispute) error
	GetByID(ctx context.Context, id string) (*domain.Dispute, error)
	// UpdateWithVersion performs a conditional update guarded by the version
	// the caller loaded. A stale version returns a CONFLICT error so only the
	// first concurrent transition wins.
	UpdateWithVersion(ctx context.Context, dispute *domain.Dispute, expectedVersion int64) error
	FindOpenByReference(ctx context.Context, kind domain.ReferenceKind, referenceID string) (*domain.Dispute, error)
	ListWithFilter(ctx context.Context, filter DisputeFilter) ([]domain.Dispute, error)
	// ListStaleNegotiations returns open disputes still in negotiation that
	// were filed before the cutoff, for the auto-escalation sweeper.
	ListStaleNegotiations(ctx context.Context, cutoff time.Time, limit int) ([]domain.Dispute, error)
}

type disputeRepository struct {
	pool *pgxpool.Pool
}

// NewDisputeRepository instantiates repository.
func NewDisputeRepository(pool *pgxpool.Pool) DisputeRepository {
	return &disputeRepository{pool: pool}
}

const disputeColumns = `id, external_key, category, reference_kind, reference_id,
               filed_by, accused_party, description, evidence_images, evidence_video,
               conversation_id, stage, status,
               offer_amount, offer_percentage, offer_status, offer_by, offered_at, offer_responded_at,
               resolution_outcome, resolution_reason, resolved_by,
               version, created_at, updated_at, resolved_at`

func (r *disputeRepository) Create(ctx context.Context, dispute *domain.Dispute) error {
	const query = `
        INSERT INTO disputes (external_key, category, reference_kind, reference_id,
            filed_by, accused_party, description, evidence_images, evidence_video,
            conversation_id, stage, status, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,1)
        RETURNING id, version, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		dispute.ExternalKey,
		dispute.Category,
		dispute.ReferenceKind,
		dispute.ReferenceID,
		dispute.FiledBy,
		dispute.AccusedParty,
		dispute.Description,
		dispute.EvidenceImages,
		dispute.EvidenceVideo,
		dispute.ConversationID,
		dispute.Stage,
		dispute.Status,
	).Scan(&dispute.ID, &dispute.Version, &dispute.CreatedAt, &dispute.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperrors.NewConflict("an open dispute already exists for this transaction", map[string]any{
				"reference_kind": dispute.ReferenceKind,
				"reference_id":   dispute.ReferenceID,
			})
		}
		return err
	}
	return nil
}

func (r *disputeRepository) GetByID(ctx context.Context, id string) (*domain.Dispute, error) {
	query := fmt.Sprintf(`SELECT %s FROM disputes WHERE id=$1`, disputeColumns)
	row := r.pool.QueryRow(ctx, query, id)
	return scanDispute(row)
}

func (r *disputeRepository) UpdateWithVersion(ctx context.Context, dispute *domain.Dispute, expectedVersion int64) error {
	const query = `
        UPDATE disputes SET
            conversation_id=$1, stage=$2, status=$3,
            offer_amount=$4, offer_percentage=$5, offer_status=$6, offer_by=$7, offered_at=$8, offer_responded_at=$9,
            resolution_outcome=$10, resolution_reason=$11, resolved_by=$12, resolved_at=$13,
            version=version+1, updated_at=NOW()
        WHERE id=$14 AND version=$15`

	var (
		offerAmount      *decimal.Decimal
		offerPercentage  *decimal.Decimal
		offerStatus      *domain.OfferStatus
		offerBy          *string
		offeredAt        *time.Time
		offerRespondedAt *time.Time
	)
	if dispute.Offer != nil {
		offerAmount = &dispute.Offer.Amount
		offerPercentage = dispute.Offer.Percentage
		offerStatus = &dispute.Offer.Status
		offerBy = &dispute.Offer.OfferedBy
		offeredAt = &dispute.Offer.OfferedAt
		offerRespondedAt = dispute.Offer.RespondedAt
	}

	cmd, err := r.pool.Exec(ctx, query,
		dispute.ConversationID,
		dispute.Stage,
		dispute.Status,
		offerAmount,
		offerPercentage,
		offerStatus,
		offerBy,
		offeredAt,
		offerRespondedAt,
		dispute.Outcome,
		nullableString(dispute.ResolutionReason),
		dispute.ResolvedBy,
		dispute.ResolvedAt,
		dispute.ID,
		expectedVersion,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.NewConflict("dispute state changed, reload and retry", map[string]any{
			"dispute_id": dispute.ID,
		})
	}
	dispute.Version = expectedVersion + 1
	return nil
}

func (r *disputeRepository) FindOpenByReference(ctx context.Context, kind domain.ReferenceKind, referenceID string) (*domain.Dispute, error) {
	query := fmt.Sprintf(`SELECT %s FROM disputes
        WHERE reference_kind=$1 AND reference_id=$2 AND status=$3`, disputeColumns)
	row := r.pool.QueryRow(ctx, query, kind, referenceID, domain.DisputeStatusOpen)
	return scanDispute(row)
}

func (r *disputeRepository) ListWithFilter(ctx context.Context, filter DisputeFilter) ([]domain.Dispute, error) {
	base := fmt.Sprintf(`SELECT %s FROM disputes`, disputeColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.PartyID != nil {
		args = append(args, *filter.PartyID)
		clauses = append(clauses, fmt.Sprintf("(filed_by=$%d OR accused_party=$%d)", len(args), len(args)))
	}
	if len(filter.Stages) > 0 {
		placeholders := make([]string, len(filter.Stages))
		for i, stage := range filter.Stages {
			args = append(args, stage)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("stage IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, category := range filter.Categories {
			args = append(args, category)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ReferenceKind != nil {
		args = append(args, *filter.ReferenceKind)
		clauses = append(clauses, fmt.Sprintf("reference_kind=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDisputes(rows)
}

func (r *disputeRepository) ListStaleNegotiations(ctx context.Context, cutoff time.Time, limit int) ([]domain.Dispute, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM disputes
        WHERE stage=$1 AND status=$2 AND created_at < $3
        ORDER BY created_at ASC LIMIT %d`, disputeColumns, limit)
	rows, err := r.pool.Query(ctx, query, domain.StageNegotiation, domain.DisputeStatusOpen, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDisputes(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDispute(row rowScanner) (*domain.Dispute, error) {
	var (
		dispute          domain.Dispute
		resolutionReason *string
		offerAmount      *decimal.Decimal
		offerPercentage  *decimal.Decimal
		offerStatus      *domain.OfferStatus
		offerBy          *string
		offeredAt        *time.Time
		offerRespondedAt *time.Time
	)
	if err := row.Scan(
		&dispute.ID,
		&dispute.ExternalKey,
		&dispute.Category,
		&dispute.ReferenceKind,
		&dispute.ReferenceID,
		&dispute.FiledBy,
		&dispute.AccusedParty,
		&dispute.Description,
		&dispute.EvidenceImages,
		&dispute.EvidenceVideo,
		&dispute.ConversationID,
		&dispute.Stage,
		&dispute.Status,
		&offerAmount,
		&offerPercentage,
		&offerStatus,
		&offerBy,
		&offeredAt,
		&offerRespondedAt,
		&dispute.Outcome,
		&resolutionReason,
		&dispute.ResolvedBy,
		&dispute.Version,
		&dispute.CreatedAt,
		&dispute.UpdatedAt,
		&dispute.ResolvedAt,
	); err != nil {
		return nil, err
	}
	if resolutionReason != nil {
		dispute.ResolutionReason = *resolutionReason
	}
	if offerAmount != nil && offerStatus != nil && offerBy != nil && offeredAt != nil {
		dispute.Offer = &domain.PartialRefundOffer{
			Amount:      *offerAmount,
			Percentage:  offerPercentage,
			Status:      *offerStatus,
			OfferedBy:   *offerBy,
			OfferedAt:   *offeredAt,
			RespondedAt: offerRespondedAt,
		}
	}
	return &dispute, nil
}

func scanDisputes(rows pgx.Rows) ([]domain.Dispute, error) {
	var result []domain.Dispute
	for rows.Next() {
		dispute, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *dispute)
	}
	return result, rows.Err()
}

func nullableString(val string) *string {
	if val == "" {
		return nil
	}
	return &val
}
