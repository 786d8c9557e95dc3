package domain

import "time"

// DisputeCategory enumerates the complaint types a filer can cite.
type DisputeCategory string

const (
	CategoryDesignNonResponsive DisputeCategory = "DESIGN_NON_RESPONSIVE"
	CategoryQualityMismatch     DisputeCategory = "QUALITY_MISMATCH"
	CategoryCopyrightIssue      DisputeCategory = "COPYRIGHT_ISSUE"
	CategoryNonDelivery         DisputeCategory = "NON_DELIVERY"
	CategoryDamagedItem         DisputeCategory = "DAMAGED_ITEM"
	CategoryWrongItem           DisputeCategory = "WRONG_ITEM"
	CategoryPoorPrintQuality    DisputeCategory = "POOR_PRINT_QUALITY"
	CategoryLateDelivery        DisputeCategory = "LATE_DELIVERY"
	CategoryIncompleteOrder     DisputeCategory = "INCOMPLETE_ORDER"
)

// Valid reports whether the category is a known complaint type.
func (c DisputeCategory) Valid() bool {
	switch c {
	case CategoryDesignNonResponsive, CategoryQualityMismatch, CategoryCopyrightIssue,
		CategoryNonDelivery, CategoryDamagedItem, CategoryWrongItem,
		CategoryPoorPrintQuality, CategoryLateDelivery, CategoryIncompleteOrder:
		return true
	default:
		return false
	}
}

// DisputeStage is the coarse lifecycle phase. Stages only move forward.
type DisputeStage string

const (
	StageNegotiation DisputeStage = "NEGOTIATION"
	StageAdminReview DisputeStage = "ADMIN_REVIEW"
	StageResolved    DisputeStage = "RESOLVED"
)

// DisputeStatus is the open/closed flag; closed implies stage RESOLVED.
type DisputeStatus string

const (
	DisputeStatusOpen   DisputeStatus = "OPEN"
	DisputeStatusClosed DisputeStatus = "CLOSED"
)

// ResolutionOutcome is the terminal financial decision, set exactly once.
type ResolutionOutcome string

const (
	OutcomeRefunded      ResolutionOutcome = "REFUNDED"
	OutcomeReleased      ResolutionOutcome = "RELEASED"
	OutcomeDismissed     ResolutionOutcome = "DISMISSED"
	OutcomePartialRefund ResolutionOutcome = "PARTIAL_REFUND"
)

// Valid reports whether the outcome is one of the terminal decisions.
func (o ResolutionOutcome) Valid() bool {
	switch o {
	case OutcomeRefunded, OutcomeReleased, OutcomeDismissed, OutcomePartialRefund:
		return true
	default:
		return false
	}
}

// ActorRole is the authorization role an actor holds relative to one dispute.
type ActorRole string

const (
	RoleFiler   ActorRole = "FILER"
	RoleAccused ActorRole = "ACCUSED"
	RoleArbiter ActorRole = "ARBITER"
	RoleSystem  ActorRole = "SYSTEM"
	RoleNone    ActorRole = "NONE"
)

// Actor identifies who is attempting a transition.
type Actor struct {
	Role ActorRole
	ID   string
}

// SystemActor is used by background processes such as the escalation sweeper.
var SystemActor = Actor{Role: RoleSystem, ID: "system"}

// Dispute is the aggregate tracking a disagreement over a single order or
// customization engagement. Terminal disputes are never deleted.
type Dispute struct {
	ID               string
	ExternalKey      string
	Category         DisputeCategory
	ReferenceKind    ReferenceKind
	ReferenceID      string
	FiledBy          string
	AccusedParty     string
	Description      string
	EvidenceImages   []EvidenceRef
	EvidenceVideo    *EvidenceRef
	ConversationID   *string
	Stage            DisputeStage
	Status           DisputeStatus
	Offer            *PartialRefundOffer
	Outcome          *ResolutionOutcome
	ResolutionReason string
	ResolvedBy       *string
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ResolvedAt       *time.Time
}

// IsOpen reports whether the dispute still accepts transitions.
func (d *Dispute) IsOpen() bool {
	return d.Status == DisputeStatusOpen
}

// RoleOf resolves the authorization role of a subject for this dispute.
func (d *Dispute) RoleOf(subjectID string, subject SubjectType) ActorRole {
	if subject == SubjectTypeArbiter {
		return RoleArbiter
	}
	switch subjectID {
	case d.FiledBy:
		return RoleFiler
	case d.AccusedParty:
		return RoleAccused
	default:
		return RoleNone
	}
}

// PendingOffer returns the active offer, or nil when none is awaiting reply.
func (d *Dispute) PendingOffer() *PartialRefundOffer {
	if d.Offer.Pending() {
		return d.Offer
	}
	return nil
}

// AssignConversation links the external conversation channel. The id is
// assigned at most once and never reassigned.
func (d *Dispute) AssignConversation(conversationID string) bool {
	if d.ConversationID != nil {
		return false
	}
	d.ConversationID = &conversationID
	return true
}
