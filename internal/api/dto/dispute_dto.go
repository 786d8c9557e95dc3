package dto

import (
	"time"

	"github.com/spec-kit/dispute-service/internal/domain"
)

// EvidenceRefRequest points at an uploaded evidence file.
type EvidenceRefRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// FileDisputeRequest payload for opening a dispute.
type FileDisputeRequest struct {
	ReferenceKind  string               `json:"reference_kind"`
	ReferenceID    string               `json:"reference_id"`
	Category       string               `json:"category"`
	Description    string               `json:"description"`
	EvidenceImages []EvidenceRefRequest `json:"evidence_images,omitempty"`
	EvidenceVideo  *EvidenceRefRequest  `json:"evidence_video,omitempty"`
}

// PartialRefundOfferRequest payload for making an offer. Exactly one of
// amount/percentage must be set.
type PartialRefundOfferRequest struct {
	Amount     *string `json:"amount,omitempty"`
	Percentage *string `json:"percentage,omitempty"`
}

// PartialRefundResponseRequest payload for accepting or rejecting an offer.
type PartialRefundResponseRequest struct {
	Accept bool `json:"accept"`
}

// AdminResolveRequest payload for an arbiter ruling.
type AdminResolveRequest struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason"`
}

// EligibilityResponse reports whether filing is currently possible.
type EligibilityResponse struct {
	CanFile bool   `json:"can_file"`
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"`
}

// PartialRefundOfferResponse mirrors the embedded offer.
type PartialRefundOfferResponse struct {
	Amount      string     `json:"amount"`
	Percentage  *string    `json:"percentage,omitempty"`
	Status      string     `json:"status"`
	OfferedBy   string     `json:"offered_by"`
	OfferedAt   time.Time  `json:"offered_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// DisputeSummary is the listing projection.
type DisputeSummary struct {
	ID            string                      `json:"id"`
	ExternalKey   string                      `json:"external_key"`
	Category      domain.DisputeCategory      `json:"category"`
	ReferenceKind domain.ReferenceKind        `json:"reference_kind"`
	ReferenceID   string                      `json:"reference_id"`
	Stage         domain.DisputeStage         `json:"stage"`
	Status        domain.DisputeStatus        `json:"status"`
	Outcome       *domain.ResolutionOutcome   `json:"outcome,omitempty"`
	Offer         *PartialRefundOfferResponse `json:"offer,omitempty"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

// PartyResponse identifies a dispute participant.
type PartyResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DisputeHistoryResponse is one audit trail entry.
type DisputeHistoryResponse struct {
	ID         string                   `json:"id"`
	ActorType  domain.HistoryActorType  `json:"actor_type"`
	ActorID    *string                  `json:"actor_id,omitempty"`
	ChangeType domain.DisputeChangeType `json:"change_type"`
	OldValue   map[string]any           `json:"old_value,omitempty"`
	NewValue   map[string]any           `json:"new_value,omitempty"`
	CreatedAt  time.Time                `json:"created_at"`
}

// DisputeDetailResponse is the full projection with parties and history.
type DisputeDetailResponse struct {
	ID               string                      `json:"id"`
	ExternalKey      string                      `json:"external_key"`
	Category         domain.DisputeCategory      `json:"category"`
	ReferenceKind    domain.ReferenceKind        `json:"reference_kind"`
	ReferenceID      string                      `json:"reference_id"`
	Filer            PartyResponse               `json:"filer"`
	Accused          PartyResponse               `json:"accused"`
	Description      string                      `json:"description"`
	EvidenceImages   []domain.EvidenceRef        `json:"evidence_images,omitempty"`
	EvidenceVideo    *domain.EvidenceRef         `json:"evidence_video,omitempty"`
	ConversationID   *string                     `json:"conversation_id,omitempty"`
	Stage            domain.DisputeStage         `json:"stage"`
	Status           domain.DisputeStatus        `json:"status"`
	Offer            *PartialRefundOfferResponse `json:"offer,omitempty"`
	Outcome          *domain.ResolutionOutcome   `json:"outcome,omitempty"`
	ResolutionReason string                      `json:"resolution_reason,omitempty"`
	ResolvedBy       *string                     `json:"resolved_by,omitempty"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
	ResolvedAt       *time.Time                  `json:"resolved_at,omitempty"`
	History          []DisputeHistoryResponse    `json:"history"`
}
