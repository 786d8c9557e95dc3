package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementStatus tracks acknowledgment by the external ledger.
type SettlementStatus string

const (
	SettlementStatusPending   SettlementStatus = "PENDING"
	SettlementStatusCompleted SettlementStatus = "COMPLETED"
)

// Settlement is the audit record of the financial instruction derived from a
// terminal outcome. One settlement exists per dispute, at most.
type Settlement struct {
	ID             string
	DisputeID      string
	Outcome        ResolutionOutcome
	RefundAmount   decimal.Decimal
	ReleaseAmount  decimal.Decimal
	RefundRef      *string
	ReleaseRef     *string
	IdempotencyKey string
	Status         SettlementStatus
	CreatedAt      time.Time
	CompletedAt    *time.Time
}
