package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dispute-service/internal/config"
	"github.com/spec-kit/dispute-service/internal/domain"
)

func eligibilityFixture() (*EligibilityChecker, *fakeReferenceRepo, *fakeDisputeRepo) {
	references := newFakeReferenceRepo()
	disputes := newFakeDisputeRepo()
	checker := NewEligibilityChecker(references, disputes, config.DisputeConfig{FilingWindowDays: 30})
	return checker, references, disputes
}

func disputableOrder(id string) domain.TransactionRef {
	completed := time.Now().Add(-24 * time.Hour)
	return domain.TransactionRef{
		Kind:           domain.ReferenceKindOrder,
		ID:             id,
		CustomerID:     "customer",
		CounterpartyID: "shop",
		AmountPaid:     decimal.RequireFromString("50.00"),
		State:          domain.ReferenceStateDelivered,
		CompletedAt:    &completed,
	}
}

func TestCanFileHappyPath(t *testing.T) {
	checker, references, _ := eligibilityFixture()
	references.put(disputableOrder("o-1"))

	eligibility, ref, err := checker.CanFile(context.Background(), domain.ReferenceKindOrder, "o-1", "customer")
	require.NoError(t, err)
	assert.True(t, eligibility.CanFile)
	assert.Equal(t, EligibilityOK, eligibility.Code)
	require.NotNil(t, ref)
	assert.Equal(t, "shop", ref.OtherParty("customer"))
}

func TestCanFileRefusals(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*fakeReferenceRepo, *fakeDisputeRepo)
		kind      domain.ReferenceKind
		refID     string
		requester string
		wantCode  EligibilityCode
	}{
		{
			name:     "unknown reference kind",
			setup:    func(r *fakeReferenceRepo, _ *fakeDisputeRepo) { r.put(disputableOrder("o-1")) },
			kind:     domain.ReferenceKind("SUBSCRIPTION"),
			refID:    "o-1", requester: "customer",
			wantCode: EligibilityUnknownKind,
		},
		{
			name:     "reference missing",
			setup:    func(_ *fakeReferenceRepo, _ *fakeDisputeRepo) {},
			kind:     domain.ReferenceKindOrder,
			refID:    "missing", requester: "customer",
			wantCode: EligibilityRefNotFound,
		},
		{
			name: "payment not captured yet",
			setup: func(r *fakeReferenceRepo, _ *fakeDisputeRepo) {
				ref := disputableOrder("o-1")
				ref.State = domain.ReferenceStatePending
				r.put(ref)
			},
			kind:  domain.ReferenceKindOrder,
			refID: "o-1", requester: "customer",
			wantCode: EligibilityNotDisputable,
		},
		{
			name: "funds already refunded",
			setup: func(r *fakeReferenceRepo, _ *fakeDisputeRepo) {
				ref := disputableOrder("o-1")
				ref.State = domain.ReferenceStateRefunded
				r.put(ref)
			},
			kind:  domain.ReferenceKindOrder,
			refID: "o-1", requester: "customer",
			wantCode: EligibilityNotDisputable,
		},
		{
			name:     "requester not a party",
			setup:    func(r *fakeReferenceRepo, _ *fakeDisputeRepo) { r.put(disputableOrder("o-1")) },
			kind:     domain.ReferenceKindOrder,
			refID:    "o-1", requester: "stranger",
			wantCode: EligibilityNotParty,
		},
		{
			name: "open dispute already exists",
			setup: func(r *fakeReferenceRepo, d *fakeDisputeRepo) {
				r.put(disputableOrder("o-1"))
				_ = d.Create(context.Background(), &domain.Dispute{
					ReferenceKind: domain.ReferenceKindOrder,
					ReferenceID:   "o-1",
					FiledBy:       "customer",
					AccusedParty:  "shop",
					Stage:         domain.StageNegotiation,
					Status:        domain.DisputeStatusOpen,
				})
			},
			kind:  domain.ReferenceKindOrder,
			refID: "o-1", requester: "customer",
			wantCode: EligibilityDisputeOpen,
		},
		{
			name: "filing window elapsed",
			setup: func(r *fakeReferenceRepo, _ *fakeDisputeRepo) {
				ref := disputableOrder("o-1")
				old := time.Now().Add(-31 * 24 * time.Hour)
				ref.CompletedAt = &old
				r.put(ref)
			},
			kind:  domain.ReferenceKindOrder,
			refID: "o-1", requester: "customer",
			wantCode: EligibilityWindowElapsed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker, references, disputes := eligibilityFixture()
			tt.setup(references, disputes)

			eligibility, _, err := checker.CanFile(context.Background(), tt.kind, tt.refID, tt.requester)
			require.NoError(t, err)
			assert.False(t, eligibility.CanFile)
			assert.Equal(t, tt.wantCode, eligibility.Code)
			assert.NotEmpty(t, eligibility.Reason)
		})
	}
}

func TestCanFileAfterPriorDisputeClosed(t *testing.T) {
	checker, references, disputes := eligibilityFixture()
	references.put(disputableOrder("o-1"))

	closed := &domain.Dispute{
		ReferenceKind: domain.ReferenceKindOrder,
		ReferenceID:   "o-1",
		FiledBy:       "customer",
		AccusedParty:  "shop",
		Stage:         domain.StageResolved,
		Status:        domain.DisputeStatusClosed,
	}
	require.NoError(t, disputes.Create(context.Background(), closed))

	eligibility, _, err := checker.CanFile(context.Background(), domain.ReferenceKindOrder, "o-1", "customer")
	require.NoError(t, err)
	assert.True(t, eligibility.CanFile)
}
