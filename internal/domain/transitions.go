package domain

import (
	"time"

	apperrors "github.com/spec-kit/dispute-service/pkg/util"
)

// DisputeAction names a lifecycle transition attempt.
type DisputeAction string

const (
	ActionAcceptDispute DisputeAction = "ACCEPT_DISPUTE"
	ActionCancelDispute DisputeAction = "CANCEL_DISPUTE"
	ActionEscalate      DisputeAction = "ESCALATE"
	ActionAdminResolve  DisputeAction = "ADMIN_RESOLVE"
	ActionOfferAccepted DisputeAction = "OFFER_ACCEPTED"
)

// transitionRule is one row of the transition table: which stages the action
// fires from, where it lands, whether it closes the dispute, the outcome it
// implies, and which roles may invoke it.
type transitionRule struct {
	from       []DisputeStage
	next       DisputeStage
	closes     bool
	outcome    ResolutionOutcome
	actors     []ActorRole
	idempotent bool
}

// transitionTable is the single source of truth for dispute transitions.
// Every guarded move lives here rather than being re-derived per call site.
var transitionTable = map[DisputeAction]transitionRule{
	ActionAcceptDispute: {
		from:    []DisputeStage{StageNegotiation},
		next:    StageResolved,
		closes:  true,
		outcome: OutcomeRefunded,
		actors:  []ActorRole{RoleAccused},
	},
	ActionCancelDispute: {
		from:    []DisputeStage{StageNegotiation, StageAdminReview},
		next:    StageResolved,
		closes:  true,
		outcome: OutcomeDismissed,
		actors:  []ActorRole{RoleFiler},
	},
	ActionEscalate: {
		from:       []DisputeStage{StageNegotiation},
		next:       StageAdminReview,
		actors:     []ActorRole{RoleFiler, RoleAccused, RoleSystem},
		idempotent: true,
	},
	ActionAdminResolve: {
		from:   []DisputeStage{StageAdminReview},
		next:   StageResolved,
		closes: true,
		actors: []ActorRole{RoleArbiter},
	},
	ActionOfferAccepted: {
		from:    []DisputeStage{StageNegotiation},
		next:    StageResolved,
		closes:  true,
		outcome: OutcomePartialRefund,
		actors:  []ActorRole{RoleFiler},
	},
}

// TransitionInput carries optional fields for outcome-bearing transitions.
type TransitionInput struct {
	Outcome *ResolutionOutcome
	Reason  string
	Now     time.Time
}

// CheckTransition validates whether actor may fire action in the current
// state without mutating the dispute. Returns the resolved outcome for
// closing transitions.
func (d *Dispute) CheckTransition(action DisputeAction, actor Actor, input TransitionInput) (ResolutionOutcome, error) {
	rule, ok := transitionTable[action]
	if !ok {
		return "", apperrors.NewValidationError("unknown dispute action", map[string]any{"action": action})
	}
	if rule.idempotent && d.Stage == rule.next {
		return "", nil
	}
	if !d.IsOpen() {
		return "", apperrors.NewConflict("dispute already resolved", map[string]any{
			"dispute_id": d.ID,
			"stage":      d.Stage,
		})
	}
	if !stageAllowed(rule.from, d.Stage) {
		return "", apperrors.NewConflict("dispute stage does not permit this action", map[string]any{
			"dispute_id": d.ID,
			"stage":      d.Stage,
			"action":     action,
		})
	}
	if !roleAllowed(rule.actors, actor.Role) {
		return "", apperrors.NewForbidden("actor not permitted to perform this action")
	}

	outcome := rule.outcome
	if rule.closes && outcome == "" {
		if input.Outcome == nil || !input.Outcome.Valid() {
			return "", apperrors.NewValidationError("resolution outcome required", nil)
		}
		outcome = *input.Outcome
	}
	return outcome, nil
}

// ApplyTransition fires the transition after CheckTransition passes, mutating
// stage, status, outcome, resolvedAt and resolvedBy together so the caller can
// persist them as one unit.
func (d *Dispute) ApplyTransition(action DisputeAction, actor Actor, input TransitionInput) error {
	outcome, err := d.CheckTransition(action, actor, input)
	if err != nil {
		return err
	}
	rule := transitionTable[action]
	if rule.idempotent && d.Stage == rule.next {
		return nil
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}

	d.Stage = rule.next
	d.UpdatedAt = now
	if rule.closes {
		d.Status = DisputeStatusClosed
		d.Outcome = &outcome
		d.ResolutionReason = input.Reason
		resolvedBy := actor.ID
		d.ResolvedBy = &resolvedBy
		d.ResolvedAt = &now
	}
	return nil
}

func stageAllowed(stages []DisputeStage, stage DisputeStage) bool {
	for _, candidate := range stages {
		if candidate == stage {
			return true
		}
	}
	return false
}

func roleAllowed(roles []ActorRole, role ActorRole) bool {
	for _, candidate := range roles {
		if candidate == role {
			return true
		}
	}
	return false
}
