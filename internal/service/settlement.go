package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/dispute-service/internal/domain"
	"github.com/spec-kit/dispute-service/internal/gateway"
	"github.com/spec-kit/dispute-service/internal/observability"
	"github.com/spec-kit/dispute-service/internal/repository"
	apperrors "github.com/spec-kit/dispute-service/pkg/util"
)

// ResolutionSettlement translates a terminal outcome into idempotent ledger
// instructions. The settlements table holds a unique row per dispute: the
// insert is the at-most-once latch, and a pending row left by a failed ledger
// call is resumed under the same idempotency key on retry.
type ResolutionSettlement struct {
	settlements repository.SettlementRepository
	ledger      gateway.LedgerClient
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewResolutionSettlement constructs the component.
func NewResolutionSettlement(settlements repository.SettlementRepository, ledger gateway.LedgerClient, metrics *observability.Metrics, logger *zap.Logger) *ResolutionSettlement {
	return &ResolutionSettlement{
		settlements: settlements,
		ledger:      ledger,
		metrics:     metrics,
		logger:      logger,
	}
}

// Settle instructs the ledger for the given outcome. partialAmount is required
// for PARTIAL_REFUND and ignored otherwise. A recorded settlement with the
// same instruction is handed back without touching the ledger again, so a
// retry that lost the dispute update can still close the dispute; a
// conflicting instruction yields a CONFLICT error.
func (s *ResolutionSettlement) Settle(ctx context.Context, dispute *domain.Dispute, outcome domain.ResolutionOutcome, ref *domain.TransactionRef, partialAmount *decimal.Decimal) (*domain.Settlement, error) {
	refundAmount, releaseAmount, err := settlementAmounts(outcome, ref.AmountPaid, partialAmount)
	if err != nil {
		return nil, err
	}

	settlement := &domain.Settlement{
		DisputeID:      dispute.ID,
		Outcome:        outcome,
		RefundAmount:   refundAmount,
		ReleaseAmount:  releaseAmount,
		IdempotencyKey: uuid.NewString(),
		Status:         domain.SettlementStatusPending,
	}
	if err := s.settlements.Create(ctx, settlement); err != nil {
		if !apperrors.IsCode(err, "CONFLICT") {
			return nil, err
		}
		existing, resumeErr := s.resume(ctx, dispute.ID, settlement)
		if resumeErr != nil {
			return nil, resumeErr
		}
		if existing.Status == domain.SettlementStatusCompleted {
			// money already moved under this exact instruction; the caller
			// only needs the refs to finish persisting the terminal state
			return existing, nil
		}
		settlement = existing
	}

	if err := s.instructLedger(ctx, settlement, ref); err != nil {
		s.metrics.RecordSettlement(string(outcome), "failed")
		return nil, err
	}

	if err := s.settlements.Complete(ctx, settlement); err != nil {
		return nil, err
	}
	settlement.Status = domain.SettlementStatusCompleted

	s.metrics.RecordSettlement(string(outcome), "completed")
	s.logger.Info("settlement completed",
		zap.String("dispute_id", dispute.ID),
		zap.String("outcome", string(outcome)),
		zap.String("refund_amount", settlement.RefundAmount.StringFixed(2)),
		zap.String("release_amount", settlement.ReleaseAmount.StringFixed(2)))
	return settlement, nil
}

// resume loads the settlement already recorded for the dispute. Continuation
// is allowed only when the retry carries the same instruction: a pending row
// picks up its original idempotency key, a completed row is returned as-is.
// A different outcome or amount means the dispute was settled some other way
// and the caller must not proceed.
func (s *ResolutionSettlement) resume(ctx context.Context, disputeID string, attempt *domain.Settlement) (*domain.Settlement, error) {
	existing, err := s.settlements.GetByDispute(ctx, disputeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewConflict("dispute already settled", map[string]any{"dispute_id": disputeID})
		}
		return nil, err
	}
	if existing.Outcome != attempt.Outcome ||
		!existing.RefundAmount.Equal(attempt.RefundAmount) ||
		!existing.ReleaseAmount.Equal(attempt.ReleaseAmount) {
		return nil, apperrors.NewConflict("dispute already settled", map[string]any{
			"dispute_id": disputeID,
			"outcome":    existing.Outcome,
		})
	}
	if existing.Status == domain.SettlementStatusCompleted {
		s.logger.Info("settlement already completed, returning recorded instruction",
			zap.String("dispute_id", disputeID),
			zap.String("idempotency_key", existing.IdempotencyKey))
		return existing, nil
	}
	s.logger.Warn("resuming pending settlement",
		zap.String("dispute_id", disputeID),
		zap.String("idempotency_key", existing.IdempotencyKey))
	return existing, nil
}

func (s *ResolutionSettlement) instructLedger(ctx context.Context, settlement *domain.Settlement, ref *domain.TransactionRef) error {
	if settlement.RefundAmount.IsPositive() {
		refundRef, err := s.ledger.Refund(ctx, ref.ID, settlement.RefundAmount, settlement.IdempotencyKey+":refund")
		if err != nil {
			return apperrors.NewSettlementError("ledger refund failed", err)
		}
		settlement.RefundRef = &refundRef
	}
	if settlement.ReleaseAmount.IsPositive() {
		releaseRef, err := s.ledger.Release(ctx, ref.ID, settlement.ReleaseAmount, settlement.IdempotencyKey+":release")
		if err != nil {
			return apperrors.NewSettlementError("ledger release failed", err)
		}
		settlement.ReleaseRef = &releaseRef
	}
	return nil
}

// settlementAmounts maps an outcome to the money movement it implies.
func settlementAmounts(outcome domain.ResolutionOutcome, paid decimal.Decimal, partialAmount *decimal.Decimal) (refund, release decimal.Decimal, err error) {
	switch outcome {
	case domain.OutcomeRefunded:
		return paid, decimal.Zero, nil
	case domain.OutcomeReleased:
		return decimal.Zero, paid, nil
	case domain.OutcomeDismissed:
		return decimal.Zero, decimal.Zero, nil
	case domain.OutcomePartialRefund:
		if partialAmount == nil {
			return decimal.Zero, decimal.Zero, apperrors.NewValidationError("partial refund requires an amount", nil)
		}
		if partialAmount.LessThanOrEqual(decimal.Zero) || partialAmount.GreaterThan(paid) {
			return decimal.Zero, decimal.Zero, apperrors.NewValidationError("partial refund amount out of range", map[string]any{
				"amount": partialAmount.String(),
				"paid":   paid.String(),
			})
		}
		return *partialAmount, paid.Sub(*partialAmount), nil
	default:
		return decimal.Zero, decimal.Zero, apperrors.NewValidationError("unknown resolution outcome", map[string]any{"outcome": outcome})
	}
}
