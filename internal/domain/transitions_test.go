package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/dispute-service/pkg/util"
)

func openDispute(stage DisputeStage) *Dispute {
	return &Dispute{
		ID:           "d-1",
		FiledBy:      "filer",
		AccusedParty: "accused",
		Stage:        stage,
		Status:       DisputeStatusOpen,
	}
}

func TestCheckTransitionTable(t *testing.T) {
	released := OutcomeReleased

	tests := []struct {
		name        string
		stage       DisputeStage
		action      DisputeAction
		actor       Actor
		input       TransitionInput
		wantOutcome ResolutionOutcome
		wantCode    string
	}{
		{
			name:        "accused accepts from negotiation",
			stage:       StageNegotiation,
			action:      ActionAcceptDispute,
			actor:       Actor{Role: RoleAccused, ID: "accused"},
			wantOutcome: OutcomeRefunded,
		},
		{
			name:     "filer cannot accept own dispute",
			stage:    StageNegotiation,
			action:   ActionAcceptDispute,
			actor:    Actor{Role: RoleFiler, ID: "filer"},
			wantCode: "FORBIDDEN",
		},
		{
			name:     "accept blocked after escalation",
			stage:    StageAdminReview,
			action:   ActionAcceptDispute,
			actor:    Actor{Role: RoleAccused, ID: "accused"},
			wantCode: "CONFLICT",
		},
		{
			name:        "filer cancels during negotiation",
			stage:       StageNegotiation,
			action:      ActionCancelDispute,
			actor:       Actor{Role: RoleFiler, ID: "filer"},
			wantOutcome: OutcomeDismissed,
		},
		{
			name:        "filer cancels during admin review",
			stage:       StageAdminReview,
			action:      ActionCancelDispute,
			actor:       Actor{Role: RoleFiler, ID: "filer"},
			wantOutcome: OutcomeDismissed,
		},
		{
			name:     "accused cannot cancel",
			stage:    StageNegotiation,
			action:   ActionCancelDispute,
			actor:    Actor{Role: RoleAccused, ID: "accused"},
			wantCode: "FORBIDDEN",
		},
		{
			name:   "accused escalates",
			stage:  StageNegotiation,
			action: ActionEscalate,
			actor:  Actor{Role: RoleAccused, ID: "accused"},
		},
		{
			name:   "system escalates",
			stage:  StageNegotiation,
			action: ActionEscalate,
			actor:  SystemActor,
		},
		{
			name:        "arbiter resolves with explicit outcome",
			stage:       StageAdminReview,
			action:      ActionAdminResolve,
			actor:       Actor{Role: RoleArbiter, ID: "arb"},
			input:       TransitionInput{Outcome: &released},
			wantOutcome: OutcomeReleased,
		},
		{
			name:     "admin resolve requires outcome",
			stage:    StageAdminReview,
			action:   ActionAdminResolve,
			actor:    Actor{Role: RoleArbiter, ID: "arb"},
			wantCode: "VALIDATION_FAILED",
		},
		{
			name:     "admin resolve blocked before escalation",
			stage:    StageNegotiation,
			action:   ActionAdminResolve,
			actor:    Actor{Role: RoleArbiter, ID: "arb"},
			input:    TransitionInput{Outcome: &released},
			wantCode: "CONFLICT",
		},
		{
			name:     "party cannot use admin resolve",
			stage:    StageAdminReview,
			action:   ActionAdminResolve,
			actor:    Actor{Role: RoleFiler, ID: "filer"},
			input:    TransitionInput{Outcome: &released},
			wantCode: "FORBIDDEN",
		},
		{
			name:        "offer acceptance closes with partial refund",
			stage:       StageNegotiation,
			action:      ActionOfferAccepted,
			actor:       Actor{Role: RoleFiler, ID: "filer"},
			wantOutcome: OutcomePartialRefund,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispute := openDispute(tt.stage)
			outcome, err := dispute.CheckTransition(tt.action, tt.actor, tt.input)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, apperrors.IsCode(err, tt.wantCode), "expected %s, got %v", tt.wantCode, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, outcome)
			// checking must not mutate
			assert.Equal(t, tt.stage, dispute.Stage)
			assert.Equal(t, DisputeStatusOpen, dispute.Status)
		})
	}
}

func TestApplyTransitionClosesAtomically(t *testing.T) {
	dispute := openDispute(StageNegotiation)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := dispute.ApplyTransition(ActionAcceptDispute,
		Actor{Role: RoleAccused, ID: "accused"},
		TransitionInput{Reason: "conceded", Now: now})
	require.NoError(t, err)

	assert.Equal(t, StageResolved, dispute.Stage)
	assert.Equal(t, DisputeStatusClosed, dispute.Status)
	require.NotNil(t, dispute.Outcome)
	assert.Equal(t, OutcomeRefunded, *dispute.Outcome)
	assert.Equal(t, "conceded", dispute.ResolutionReason)
	require.NotNil(t, dispute.ResolvedBy)
	assert.Equal(t, "accused", *dispute.ResolvedBy)
	require.NotNil(t, dispute.ResolvedAt)
	assert.Equal(t, now, *dispute.ResolvedAt)
}

func TestApplyTransitionRejectsClosedDispute(t *testing.T) {
	dispute := openDispute(StageNegotiation)
	require.NoError(t, dispute.ApplyTransition(ActionCancelDispute,
		Actor{Role: RoleFiler, ID: "filer"}, TransitionInput{}))

	err := dispute.ApplyTransition(ActionAcceptDispute,
		Actor{Role: RoleAccused, ID: "accused"}, TransitionInput{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
}

func TestEscalateIsIdempotent(t *testing.T) {
	dispute := openDispute(StageNegotiation)
	filer := Actor{Role: RoleFiler, ID: "filer"}

	require.NoError(t, dispute.ApplyTransition(ActionEscalate, filer, TransitionInput{}))
	assert.Equal(t, StageAdminReview, dispute.Stage)
	assert.Equal(t, DisputeStatusOpen, dispute.Status)

	// second escalation is a no-op, from any escalation-capable actor
	require.NoError(t, dispute.ApplyTransition(ActionEscalate, SystemActor, TransitionInput{}))
	assert.Equal(t, StageAdminReview, dispute.Stage)
}

func TestRoleOf(t *testing.T) {
	dispute := openDispute(StageNegotiation)

	assert.Equal(t, RoleFiler, dispute.RoleOf("filer", SubjectTypeUser))
	assert.Equal(t, RoleAccused, dispute.RoleOf("accused", SubjectTypeUser))
	assert.Equal(t, RoleNone, dispute.RoleOf("stranger", SubjectTypeUser))
	assert.Equal(t, RoleArbiter, dispute.RoleOf("anyone", SubjectTypeArbiter))
}

func TestAssignConversationAtMostOnce(t *testing.T) {
	dispute := openDispute(StageNegotiation)

	assert.True(t, dispute.AssignConversation("conv-1"))
	assert.False(t, dispute.AssignConversation("conv-2"))
	require.NotNil(t, dispute.ConversationID)
	assert.Equal(t, "conv-1", *dispute.ConversationID)
}
