package domain

import "time"

// HistoryActorType indicates who caused an audit entry.
type HistoryActorType string

const (
	HistoryActorUser    HistoryActorType = "USER"
	HistoryActorArbiter HistoryActorType = "ARBITER"
	HistoryActorSystem  HistoryActorType = "SYSTEM"
)

// DisputeChangeType captures what changed in a history entry.
type DisputeChangeType string

const (
	ChangeTypeStage        DisputeChangeType = "STAGE_CHANGE"
	ChangeTypeOffer        DisputeChangeType = "OFFER_MADE"
	ChangeTypeOfferReply   DisputeChangeType = "OFFER_RESPONDED"
	ChangeTypeSettlement   DisputeChangeType = "SETTLEMENT_RECORDED"
	ChangeTypeConversation DisputeChangeType = "CONVERSATION_LINKED"
)

// DisputeHistory is an immutable audit trail entry.
type DisputeHistory struct {
	ID          string
	DisputeID   string
	ActorType   HistoryActorType
	ActorID     *string
	ChangeType  DisputeChangeType
	OldValue    map[string]any
	NewValue    map[string]any
	CreatedAt   time.Time
}
