package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferenceKind identifies which transaction type a dispute points at.
type ReferenceKind string

const (
	ReferenceKindOrder         ReferenceKind = "ORDER"
	ReferenceKindCustomization ReferenceKind = "CUSTOMIZATION"
)

// Valid reports whether the kind is one of the known reference kinds.
func (k ReferenceKind) Valid() bool {
	return k == ReferenceKindOrder || k == ReferenceKindCustomization
}

// ReferenceState is the lifecycle state of the referenced transaction.
type ReferenceState string

const (
	ReferenceStatePending         ReferenceState = "PENDING"
	ReferenceStatePaymentCaptured ReferenceState = "PAYMENT_CAPTURED"
	ReferenceStateDelivered       ReferenceState = "DELIVERED"
	ReferenceStateCompleted       ReferenceState = "COMPLETED"
	ReferenceStateRefunded        ReferenceState = "REFUNDED"
	ReferenceStateCancelled       ReferenceState = "CANCELLED"
)

// Disputable reports whether the transaction state permits opening a dispute.
// Payment must have been captured and the funds must not already have left.
func (s ReferenceState) Disputable() bool {
	switch s {
	case ReferenceStatePaymentCaptured, ReferenceStateDelivered, ReferenceStateCompleted:
		return true
	default:
		return false
	}
}

// TransactionRef is a read-only projection of the order or customization
// request a dispute is filed against. The dispute service never mutates it.
type TransactionRef struct {
	Kind           ReferenceKind
	ID             string
	CustomerID     string
	CounterpartyID string
	AmountPaid     decimal.Decimal
	State          ReferenceState
	CompletedAt    *time.Time
	CreatedAt      time.Time
}

// IsParty reports whether the given user participates in the transaction.
func (t *TransactionRef) IsParty(userID string) bool {
	return t.CustomerID == userID || t.CounterpartyID == userID
}

// OtherParty returns the counterpart of the given participant.
func (t *TransactionRef) OtherParty(userID string) string {
	if t.CustomerID == userID {
		return t.CounterpartyID
	}
	return t.CustomerID
}
