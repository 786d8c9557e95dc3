package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OfferStatus tracks the partial-refund sub-protocol state.
type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "PENDING"
	OfferStatusAccepted OfferStatus = "ACCEPTED"
	OfferStatusRejected OfferStatus = "REJECTED"
)

// PartialRefundOffer is the embedded offer value object. At most one pending
// offer exists per dispute; rejected offers are kept in the audit history.
type PartialRefundOffer struct {
	Amount      decimal.Decimal
	Percentage  *decimal.Decimal
	Status      OfferStatus
	OfferedBy   string
	OfferedAt   time.Time
	RespondedAt *time.Time
}

// Pending reports whether the offer is still awaiting a response.
func (o *PartialRefundOffer) Pending() bool {
	return o != nil && o.Status == OfferStatusPending
}
