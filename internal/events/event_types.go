package events

import (
	"time"

	"github.com/spec-kit/dispute-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventDisputeFiled         EventType = "dispute_filed"
	EventDisputeEscalated     EventType = "dispute_escalated"
	EventDisputeResolved      EventType = "dispute_resolved"
	EventPartialRefundOffered EventType = "partial_refund_offered"
	EventPartialRefundReplied EventType = "partial_refund_replied"
	EventSettlementInstructed EventType = "settlement_instructed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Role domain.ActorRole `json:"role"`
	ID   string           `json:"id"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	DisputeID string      `json:"dispute_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// DisputeFiledPayload payload.
type DisputeFiledPayload struct {
	Category      domain.DisputeCategory `json:"category"`
	ReferenceKind domain.ReferenceKind   `json:"reference_kind"`
	ReferenceID   string                 `json:"reference_id"`
	FiledBy       string                 `json:"filed_by"`
	AccusedParty  string                 `json:"accused_party"`
}

// DisputeEscalatedPayload payload.
type DisputeEscalatedPayload struct {
	Automatic bool `json:"automatic"`
}

// DisputeResolvedPayload payload.
type DisputeResolvedPayload struct {
	Outcome domain.ResolutionOutcome `json:"outcome"`
	Reason  string                   `json:"reason,omitempty"`
}

// PartialRefundOfferedPayload payload.
type PartialRefundOfferedPayload struct {
	Amount string `json:"amount"`
}

// PartialRefundRepliedPayload payload.
type PartialRefundRepliedPayload struct {
	Accepted bool   `json:"accepted"`
	Amount   string `json:"amount"`
}

// SettlementInstructedPayload payload.
type SettlementInstructedPayload struct {
	Outcome       domain.ResolutionOutcome `json:"outcome"`
	RefundAmount  string                   `json:"refund_amount"`
	ReleaseAmount string                   `json:"release_amount"`
	RefundRef     *string                  `json:"refund_ref,omitempty"`
	ReleaseRef    *string                  `json:"release_ref,omitempty"`
}
