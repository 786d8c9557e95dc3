package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dispute-service/internal/domain"
	apperrors "github.com/spec-kit/dispute-service/pkg/util"
)

func negotiationFixture() (*domain.Dispute, *domain.TransactionRef) {
	dispute := &domain.Dispute{
		ID:           "d-1",
		FiledBy:      "customer",
		AccusedParty: "shop",
		Stage:        domain.StageNegotiation,
		Status:       domain.DisputeStatusOpen,
	}
	ref := &domain.TransactionRef{
		Kind:           domain.ReferenceKindOrder,
		ID:             "o-1",
		CustomerID:     "customer",
		CounterpartyID: "shop",
		AmountPaid:     decimal.RequireFromString("100.00"),
		State:          domain.ReferenceStateDelivered,
	}
	return dispute, ref
}

func dec(val string) *decimal.Decimal {
	parsed := decimal.RequireFromString(val)
	return &parsed
}

func TestOfferValidation(t *testing.T) {
	accused := domain.Actor{Role: domain.RoleAccused, ID: "shop"}

	tests := []struct {
		name       string
		amount     *decimal.Decimal
		percentage *decimal.Decimal
		wantAmount string
		wantCode   string
	}{
		{name: "fixed amount", amount: dec("25.50"), wantAmount: "25.50"},
		{name: "percentage derives amount", percentage: dec("33"), wantAmount: "33.00"},
		{name: "percentage rounds to cents", percentage: dec("33.333"), wantAmount: "33.33"},
		{name: "full percentage allowed", percentage: dec("100"), wantAmount: "100.00"},
		{name: "both supplied", amount: dec("10"), percentage: dec("10"), wantCode: "VALIDATION_FAILED"},
		{name: "neither supplied", wantCode: "VALIDATION_FAILED"},
		{name: "zero amount", amount: dec("0"), wantCode: "VALIDATION_FAILED"},
		{name: "negative amount", amount: dec("-5"), wantCode: "VALIDATION_FAILED"},
		{name: "amount above paid total", amount: dec("100.01"), wantCode: "VALIDATION_FAILED"},
		{name: "percentage above hundred", percentage: dec("101"), wantCode: "VALIDATION_FAILED"},
		{name: "zero percentage", percentage: dec("0"), wantCode: "VALIDATION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispute, ref := negotiationFixture()
			negotiator := NewPartialRefundNegotiator()

			err := negotiator.Offer(dispute, ref, accused, tt.amount, tt.percentage, time.Now())
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, apperrors.IsCode(err, tt.wantCode), "got %v", err)
				assert.Nil(t, dispute.Offer)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, dispute.Offer)
			assert.Equal(t, tt.wantAmount, dispute.Offer.Amount.StringFixed(2))
			assert.Equal(t, domain.OfferStatusPending, dispute.Offer.Status)
			assert.Equal(t, "shop", dispute.Offer.OfferedBy)
		})
	}
}

func TestOfferAuthorizationAndState(t *testing.T) {
	negotiator := NewPartialRefundNegotiator()
	now := time.Now()

	t.Run("filer cannot offer", func(t *testing.T) {
		dispute, ref := negotiationFixture()
		err := negotiator.Offer(dispute, ref, domain.Actor{Role: domain.RoleFiler, ID: "customer"}, dec("10"), nil, now)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("no offer after escalation", func(t *testing.T) {
		dispute, ref := negotiationFixture()
		dispute.Stage = domain.StageAdminReview
		err := negotiator.Offer(dispute, ref, domain.Actor{Role: domain.RoleAccused, ID: "shop"}, dec("10"), nil, now)
		assert.True(t, apperrors.IsCode(err, "CONFLICT"))
	})

	t.Run("single pending offer", func(t *testing.T) {
		dispute, ref := negotiationFixture()
		accused := domain.Actor{Role: domain.RoleAccused, ID: "shop"}
		require.NoError(t, negotiator.Offer(dispute, ref, accused, dec("10"), nil, now))
		err := negotiator.Offer(dispute, ref, accused, dec("20"), nil, now)
		assert.True(t, apperrors.IsCode(err, "CONFLICT"))
	})
}

func TestRejectKeepsDisputeOpen(t *testing.T) {
	dispute, ref := negotiationFixture()
	negotiator := NewPartialRefundNegotiator()
	accused := domain.Actor{Role: domain.RoleAccused, ID: "shop"}
	filer := domain.Actor{Role: domain.RoleFiler, ID: "customer"}
	now := time.Now()

	require.NoError(t, negotiator.Offer(dispute, ref, accused, dec("30"), nil, now))
	require.NoError(t, negotiator.Reject(dispute, filer, now))

	assert.Equal(t, domain.OfferStatusRejected, dispute.Offer.Status)
	assert.True(t, dispute.IsOpen())
	assert.Equal(t, domain.StageNegotiation, dispute.Stage)

	// rejection clears the way for a new offer
	require.NoError(t, negotiator.Offer(dispute, ref, accused, dec("40"), nil, now))
	assert.Equal(t, "40.00", dispute.Offer.Amount.StringFixed(2))
}

func TestAcceptClosesWithPartialRefund(t *testing.T) {
	dispute, ref := negotiationFixture()
	negotiator := NewPartialRefundNegotiator()
	accused := domain.Actor{Role: domain.RoleAccused, ID: "shop"}
	filer := domain.Actor{Role: domain.RoleFiler, ID: "customer"}
	now := time.Now()

	require.NoError(t, negotiator.Offer(dispute, ref, accused, dec("30"), nil, now))
	require.NoError(t, negotiator.Accept(dispute, filer, domain.TransitionInput{Reason: "settled amicably", Now: now}))

	assert.Equal(t, domain.OfferStatusAccepted, dispute.Offer.Status)
	require.NotNil(t, dispute.Offer.RespondedAt)
	assert.False(t, dispute.IsOpen())
	require.NotNil(t, dispute.Outcome)
	assert.Equal(t, domain.OutcomePartialRefund, *dispute.Outcome)
	assert.Equal(t, "settled amicably", dispute.ResolutionReason)
}

func TestRespondAuthorization(t *testing.T) {
	dispute, ref := negotiationFixture()
	negotiator := NewPartialRefundNegotiator()
	accused := domain.Actor{Role: domain.RoleAccused, ID: "shop"}
	now := time.Now()

	require.NoError(t, negotiator.Offer(dispute, ref, accused, dec("30"), nil, now))

	err := negotiator.Accept(dispute, accused, domain.TransitionInput{Now: now})
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	err = negotiator.Reject(dispute, domain.Actor{Role: domain.RoleNone, ID: "stranger"}, now)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
}

func TestRespondWithoutPendingOffer(t *testing.T) {
	dispute, _ := negotiationFixture()
	negotiator := NewPartialRefundNegotiator()
	filer := domain.Actor{Role: domain.RoleFiler, ID: "customer"}

	err := negotiator.Accept(dispute, filer, domain.TransitionInput{Now: time.Now()})
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
}
