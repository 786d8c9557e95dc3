package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/dispute-service/internal/domain"
	"github.com/spec-kit/dispute-service/internal/observability"
	apperrors "github.com/spec-kit/dispute-service/pkg/util"
)

func settlementFixture(ledger *fakeLedgerClient) (*ResolutionSettlement, *fakeSettlementRepo, *domain.Dispute, *domain.TransactionRef) {
	repo := newFakeSettlementRepo()
	settlement := NewResolutionSettlement(repo, ledger, observability.NewMetrics(), zap.NewNop())
	dispute := &domain.Dispute{ID: "d-1", Status: domain.DisputeStatusOpen, Stage: domain.StageNegotiation}
	ref := &domain.TransactionRef{
		Kind:       domain.ReferenceKindOrder,
		ID:         "o-1",
		AmountPaid: decimal.RequireFromString("80.00"),
	}
	return settlement, repo, dispute, ref
}

func TestSettleFullRefund(t *testing.T) {
	ledger := &fakeLedgerClient{}
	settlement, _, dispute, ref := settlementFixture(ledger)

	result, err := settlement.Settle(context.Background(), dispute, domain.OutcomeRefunded, ref, nil)
	require.NoError(t, err)

	assert.Equal(t, "80.00", result.RefundAmount.StringFixed(2))
	assert.Equal(t, "0.00", result.ReleaseAmount.StringFixed(2))
	assert.Equal(t, domain.SettlementStatusCompleted, result.Status)
	require.Len(t, ledger.calls, 1)
	assert.Equal(t, "refund", ledger.calls[0].kind)
	assert.Equal(t, "o-1", ledger.calls[0].transactionID)
}

func TestSettleRelease(t *testing.T) {
	ledger := &fakeLedgerClient{}
	settlement, _, dispute, ref := settlementFixture(ledger)

	result, err := settlement.Settle(context.Background(), dispute, domain.OutcomeReleased, ref, nil)
	require.NoError(t, err)

	assert.Equal(t, "80.00", result.ReleaseAmount.StringFixed(2))
	require.Len(t, ledger.calls, 1)
	assert.Equal(t, "release", ledger.calls[0].kind)
}

func TestSettleDismissalMovesNoMoney(t *testing.T) {
	ledger := &fakeLedgerClient{}
	settlement, repo, dispute, ref := settlementFixture(ledger)

	result, err := settlement.Settle(context.Background(), dispute, domain.OutcomeDismissed, ref, nil)
	require.NoError(t, err)

	assert.True(t, result.RefundAmount.IsZero())
	assert.True(t, result.ReleaseAmount.IsZero())
	assert.Empty(t, ledger.calls)

	// the zero-movement row still serializes later terminal attempts
	stored, err := repo.GetByDispute(context.Background(), dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusCompleted, stored.Status)
}

func TestSettlePartialRefundSplitsPaidTotal(t *testing.T) {
	ledger := &fakeLedgerClient{}
	settlement, _, dispute, ref := settlementFixture(ledger)

	partial := decimal.RequireFromString("30.00")
	result, err := settlement.Settle(context.Background(), dispute, domain.OutcomePartialRefund, ref, &partial)
	require.NoError(t, err)

	assert.Equal(t, "30.00", result.RefundAmount.StringFixed(2))
	assert.Equal(t, "50.00", result.ReleaseAmount.StringFixed(2))
	require.Len(t, ledger.calls, 2)
	assert.Equal(t, "refund", ledger.calls[0].kind)
	assert.Equal(t, "release", ledger.calls[1].kind)
	assert.NotEqual(t, ledger.calls[0].idempotencyKey, ledger.calls[1].idempotencyKey)
}

func TestSettlePartialRefundRequiresAmountInRange(t *testing.T) {
	ledger := &fakeLedgerClient{}
	settlement, _, dispute, ref := settlementFixture(ledger)

	_, err := settlement.Settle(context.Background(), dispute, domain.OutcomePartialRefund, ref, nil)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	tooMuch := decimal.RequireFromString("80.01")
	_, err = settlement.Settle(context.Background(), dispute, domain.OutcomePartialRefund, ref, &tooMuch)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	assert.Empty(t, ledger.calls)
}

func TestSettleExactlyOnce(t *testing.T) {
	ledger := &fakeLedgerClient{}
	settlement, _, dispute, ref := settlementFixture(ledger)

	first, err := settlement.Settle(context.Background(), dispute, domain.OutcomeRefunded, ref, nil)
	require.NoError(t, err)

	// the same instruction hands back the recorded settlement without
	// another ledger call, so a retry can finish closing the dispute
	again, err := settlement.Settle(context.Background(), dispute, domain.OutcomeRefunded, ref, nil)
	require.NoError(t, err)
	assert.Equal(t, first.IdempotencyKey, again.IdempotencyKey)
	assert.Equal(t, domain.SettlementStatusCompleted, again.Status)
	require.Len(t, ledger.calls, 1)

	// a different instruction is refused outright
	_, err = settlement.Settle(context.Background(), dispute, domain.OutcomeReleased, ref, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
	require.Len(t, ledger.calls, 1)
}

func TestSettleResumesPendingAfterLedgerFailure(t *testing.T) {
	ledger := &fakeLedgerClient{failRefund: true}
	settlement, repo, dispute, ref := settlementFixture(ledger)

	_, err := settlement.Settle(context.Background(), dispute, domain.OutcomeRefunded, ref, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "SETTLEMENT_FAILED"))

	pending, err := repo.GetByDispute(context.Background(), dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusPending, pending.Status)
	firstKey := pending.IdempotencyKey

	// retry after the ledger recovers reuses the recorded idempotency key
	ledger.failRefund = false
	result, err := settlement.Settle(context.Background(), dispute, domain.OutcomeRefunded, ref, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusCompleted, result.Status)
	assert.Equal(t, firstKey, result.IdempotencyKey)
	require.Len(t, ledger.calls, 1)
	assert.Equal(t, firstKey+":refund", ledger.calls[0].idempotencyKey)
}
