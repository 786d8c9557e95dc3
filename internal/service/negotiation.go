package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/dispute-service/internal/domain"
	apperrors "github.com/spec-kit/dispute-service/pkg/util"
)

var oneHundred = decimal.NewFromInt(100)

// PartialRefundNegotiator encapsulates the offer/accept/reject sub-protocol
// embedded inside a dispute. It mutates the aggregate in memory; the caller
// persists the result.
type PartialRefundNegotiator struct{}

// NewPartialRefundNegotiator constructs the negotiator.
func NewPartialRefundNegotiator() *PartialRefundNegotiator {
	return &PartialRefundNegotiator{}
}

// Offer records a pending partial-refund offer. Only the accused party may
// offer; exactly one of amount/percentage must be supplied and the computed
// amount must not exceed the paid total. Mismatches are rejected, never
// clamped.
func (n *PartialRefundNegotiator) Offer(dispute *domain.Dispute, ref *domain.TransactionRef, actor domain.Actor, amount, percentage *decimal.Decimal, now time.Time) error {
	if !dispute.IsOpen() || dispute.Stage != domain.StageNegotiation {
		return apperrors.NewConflict("dispute is not open for negotiation", map[string]any{
			"dispute_id": dispute.ID,
			"stage":      dispute.Stage,
		})
	}
	if actor.Role != domain.RoleAccused {
		return apperrors.NewForbidden("only the accused party may offer a partial refund")
	}
	if dispute.PendingOffer() != nil {
		return apperrors.NewConflict("a pending offer already exists", map[string]any{
			"dispute_id": dispute.ID,
		})
	}

	resolved, err := resolveOfferAmount(ref.AmountPaid, amount, percentage)
	if err != nil {
		return err
	}

	dispute.Offer = &domain.PartialRefundOffer{
		Amount:     resolved,
		Percentage: percentage,
		Status:     domain.OfferStatusPending,
		OfferedBy:  actor.ID,
		OfferedAt:  now,
	}
	dispute.UpdatedAt = now
	return nil
}

// Accept fires the terminal partial-refund transition and marks the pending
// offer accepted. The caller must have settled before persisting.
func (n *PartialRefundNegotiator) Accept(dispute *domain.Dispute, actor domain.Actor, input domain.TransitionInput) error {
	if _, err := n.pendingOfferFor(dispute, actor); err != nil {
		return err
	}
	if err := dispute.ApplyTransition(domain.ActionOfferAccepted, actor, input); err != nil {
		return err
	}
	n.AdoptPending(dispute)
	return nil
}

// AdoptPending marks the pending offer accepted once a terminal partial-refund
// transition has been applied, whether the filer accepted or an arbiter ruled
// at the offered amount. No-op when no offer is pending.
func (n *PartialRefundNegotiator) AdoptPending(dispute *domain.Dispute) {
	offer := dispute.PendingOffer()
	if offer == nil {
		return
	}
	respondedAt := dispute.UpdatedAt
	offer.Status = domain.OfferStatusAccepted
	offer.RespondedAt = &respondedAt
}

// Reject marks the pending offer rejected. The dispute stays open in
// negotiation so the accused may make a new offer.
func (n *PartialRefundNegotiator) Reject(dispute *domain.Dispute, actor domain.Actor, now time.Time) error {
	offer, err := n.pendingOfferFor(dispute, actor)
	if err != nil {
		return err
	}
	offer.Status = domain.OfferStatusRejected
	offer.RespondedAt = &now
	dispute.UpdatedAt = now
	return nil
}

func (n *PartialRefundNegotiator) pendingOfferFor(dispute *domain.Dispute, actor domain.Actor) (*domain.PartialRefundOffer, error) {
	if !dispute.IsOpen() {
		return nil, apperrors.NewConflict("dispute already resolved", map[string]any{
			"dispute_id": dispute.ID,
		})
	}
	if actor.Role != domain.RoleFiler {
		return nil, apperrors.NewForbidden("only the filer may respond to a partial refund offer")
	}
	offer := dispute.PendingOffer()
	if offer == nil {
		return nil, apperrors.NewConflict("no pending offer to respond to", map[string]any{
			"dispute_id": dispute.ID,
		})
	}
	return offer, nil
}

// resolveOfferAmount derives the offer amount from exactly one of
// amount/percentage against the paid total.
func resolveOfferAmount(paid decimal.Decimal, amount, percentage *decimal.Decimal) (decimal.Decimal, error) {
	if (amount == nil) == (percentage == nil) {
		return decimal.Zero, apperrors.NewValidationError("exactly one of amount or percentage must be provided", nil)
	}

	var resolved decimal.Decimal
	if amount != nil {
		resolved = *amount
	} else {
		if percentage.LessThanOrEqual(decimal.Zero) || percentage.GreaterThan(oneHundred) {
			return decimal.Zero, apperrors.NewValidationError("percentage must be within (0, 100]", map[string]any{
				"percentage": percentage.String(),
			})
		}
		resolved = paid.Mul(*percentage).Div(oneHundred).Round(2)
	}

	if resolved.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, apperrors.NewValidationError("offer amount must be strictly positive", map[string]any{
			"amount": resolved.String(),
		})
	}
	if resolved.GreaterThan(paid) {
		return decimal.Zero, apperrors.NewValidationError("offer amount exceeds the paid total", map[string]any{
			"amount": resolved.String(),
			"paid":   paid.String(),
		})
	}
	return resolved, nil
}
