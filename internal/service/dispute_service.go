package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/dispute-service/internal/config"
	"github.com/spec-kit/dispute-service/internal/domain"
	"github.com/spec-kit/dispute-service/internal/events"
	"github.com/spec-kit/dispute-service/internal/gateway"
	"github.com/spec-kit/dispute-service/internal/observability"
	"github.com/spec-kit/dispute-service/internal/ratelimit"
	"github.com/spec-kit/dispute-service/internal/repository"
	apperrors "github.com/spec-kit/dispute-service/pkg/util"
)

// DisputeService orchestrates the dispute lifecycle: it re-validates actor
// authorization against freshly loaded state, delegates to the sub-components
// and persists transitions with a per-record version check so concurrent
// conflicting requests are serialized per dispute.
type DisputeService struct {
	disputes      repository.DisputeRepository
	references    repository.ReferenceRepository
	users         repository.UserRepository
	history       repository.HistoryRepository
	eligibility   *EligibilityChecker
	evidence      *EvidenceAttacher
	negotiator    *PartialRefundNegotiator
	settlement    *ResolutionSettlement
	conversations gateway.ConversationClient
	dispatcher    events.Dispatcher
	filingLimiter *ratelimit.Limiter
	metrics       *observability.Metrics
	logger        *zap.Logger
	cfg           config.DisputeConfig
}

// DisputeDependencies bundles collaborators for the dispute service.
type DisputeDependencies struct {
	DisputeRepo   repository.DisputeRepository
	ReferenceRepo repository.ReferenceRepository
	UserRepo      repository.UserRepository
	HistoryRepo   repository.HistoryRepository
	Eligibility   *EligibilityChecker
	Evidence      *EvidenceAttacher
	Negotiator    *PartialRefundNegotiator
	Settlement    *ResolutionSettlement
	Conversations gateway.ConversationClient
	Dispatcher    events.Dispatcher
	FilingLimiter *ratelimit.Limiter
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	Config        config.DisputeConfig
}

// NewDisputeService constructs the service.
func NewDisputeService(deps DisputeDependencies) *DisputeService {
	return &DisputeService{
		disputes:      deps.DisputeRepo,
		references:    deps.ReferenceRepo,
		users:         deps.UserRepo,
		history:       deps.HistoryRepo,
		eligibility:   deps.Eligibility,
		evidence:      deps.Evidence,
		negotiator:    deps.Negotiator,
		settlement:    deps.Settlement,
		conversations: deps.Conversations,
		dispatcher:    deps.Dispatcher,
		filingLimiter: deps.FilingLimiter,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		cfg:           deps.Config,
	}
}

// FileDisputeInput describes the filing payload.
type FileDisputeInput struct {
	ReferenceKind  domain.ReferenceKind
	ReferenceID    string
	Category       domain.DisputeCategory
	Description    string
	EvidenceImages []domain.EvidenceRef
	EvidenceVideo  *domain.EvidenceRef
}

// DisputeWithParties is the detail projection including resolved identities.
type DisputeWithParties struct {
	Dispute *domain.Dispute
	Filer   *domain.User
	Accused *domain.User
	History []domain.DisputeHistory
}

// DisputeListFilter describes listing parameters for users and arbiters.
type DisputeListFilter struct {
	Stages        []domain.DisputeStage
	Statuses      []domain.DisputeStatus
	Categories    []domain.DisputeCategory
	ReferenceKind *domain.ReferenceKind
	Limit         int
	Offset        int
}

// CheckEligibility probes whether the requester may file for the reference.
func (s *DisputeService) CheckEligibility(ctx context.Context, kind domain.ReferenceKind, referenceID, requesterID string) (Eligibility, error) {
	eligibility, _, err := s.eligibility.CanFile(ctx, kind, referenceID, requesterID)
	return eligibility, err
}

// File opens a dispute after re-validating eligibility, attaches evidence,
// bootstraps the conversation channel and notifies collaborators.
func (s *DisputeService) File(ctx context.Context, userID string, input FileDisputeInput) (*domain.Dispute, error) {
	if !input.Category.Valid() {
		return nil, apperrors.NewValidationError("unknown dispute category", map[string]any{"category": input.Category})
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, apperrors.NewValidationError("description required", nil)
	}

	allowed, err := s.filingLimiter.Allow(ctx, userID)
	if err != nil {
		s.logger.Warn("filing rate limiter unavailable", zap.Error(err))
	}
	if !allowed {
		return nil, apperrors.NewRateLimited("too many disputes filed, try again later")
	}

	eligibility, ref, err := s.eligibility.CanFile(ctx, input.ReferenceKind, input.ReferenceID, userID)
	if err != nil {
		return nil, err
	}
	if !eligibility.CanFile {
		return nil, eligibilityError(eligibility)
	}

	dispute := &domain.Dispute{
		ExternalKey:   generateDisputeKey(),
		Category:      input.Category,
		ReferenceKind: input.ReferenceKind,
		ReferenceID:   input.ReferenceID,
		FiledBy:       userID,
		AccusedParty:  ref.OtherParty(userID),
		Description:   description,
		Stage:         domain.StageNegotiation,
		Status:        domain.DisputeStatusOpen,
	}
	if err := s.evidence.Attach(dispute, input.EvidenceImages, input.EvidenceVideo); err != nil {
		return nil, err
	}

	if err := s.disputes.Create(ctx, dispute); err != nil {
		return nil, err
	}
	s.metrics.RecordTransition("file")

	s.bootstrapConversation(ctx, dispute)

	actorID := userID
	s.recordHistory(ctx, dispute.ID, domain.HistoryActorUser, &actorID, domain.ChangeTypeStage,
		nil, map[string]any{"stage": dispute.Stage, "category": dispute.Category})

	s.publishEvent(ctx, events.Event{
		Type:      events.EventDisputeFiled,
		DisputeID: dispute.ID,
		Actor:     events.Actor{Role: domain.RoleFiler, ID: userID},
		Payload: events.DisputeFiledPayload{
			Category:      dispute.Category,
			ReferenceKind: dispute.ReferenceKind,
			ReferenceID:   dispute.ReferenceID,
			FiledBy:       dispute.FiledBy,
			AccusedParty:  dispute.AccusedParty,
		},
	})
	return dispute, nil
}

// GetByID fetches a dispute with resolved party identities and audit history.
// Only the parties and arbiters may look.
func (s *DisputeService) GetByID(ctx context.Context, subjectID string, subject domain.SubjectType, disputeID string) (*DisputeWithParties, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.RoleOf(subjectID, subject) == domain.RoleNone {
		return nil, apperrors.NewForbidden("not a party to this dispute")
	}

	filer, err := s.users.GetByID(ctx, dispute.FiledBy)
	if err != nil {
		return nil, err
	}
	accused, err := s.users.GetByID(ctx, dispute.AccusedParty)
	if err != nil {
		return nil, err
	}
	history, err := s.history.ListByDispute(ctx, dispute.ID, 100, 0)
	if err != nil {
		return nil, err
	}
	return &DisputeWithParties{Dispute: dispute, Filer: filer, Accused: accused, History: history}, nil
}

// ListForUser returns disputes the user participates in.
func (s *DisputeService) ListForUser(ctx context.Context, userID string, filter DisputeListFilter) ([]domain.Dispute, error) {
	return s.disputes.ListWithFilter(ctx, repository.DisputeFilter{
		PartyID:       &userID,
		Stages:        filter.Stages,
		Statuses:      filter.Statuses,
		Categories:    filter.Categories,
		ReferenceKind: filter.ReferenceKind,
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	})
}

// ListForAdmin returns the arbiter queue.
func (s *DisputeService) ListForAdmin(ctx context.Context, filter DisputeListFilter) ([]domain.Dispute, error) {
	return s.disputes.ListWithFilter(ctx, repository.DisputeFilter{
		Stages:        filter.Stages,
		Statuses:      filter.Statuses,
		Categories:    filter.Categories,
		ReferenceKind: filter.ReferenceKind,
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	})
}

// AcceptDispute lets the accused party concede: the dispute closes with a full
// refund.
func (s *DisputeService) AcceptDispute(ctx context.Context, userID, disputeID string) (*domain.Dispute, error) {
	dispute, ref, err := s.loadDisputeAndRef(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	actor := domain.Actor{Role: dispute.RoleOf(userID, domain.SubjectTypeUser), ID: userID}
	if err := s.resolveTerminal(ctx, dispute, ref, domain.ActionAcceptDispute, actor, domain.TransitionInput{Reason: "accepted by accused party"}, nil); err != nil {
		return nil, err
	}
	return dispute, nil
}

// CancelDispute lets the filer withdraw: the dispute closes dismissed with no
// money movement.
func (s *DisputeService) CancelDispute(ctx context.Context, userID, disputeID string) (*domain.Dispute, error) {
	dispute, ref, err := s.loadDisputeAndRef(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	actor := domain.Actor{Role: dispute.RoleOf(userID, domain.SubjectTypeUser), ID: userID}
	if err := s.resolveTerminal(ctx, dispute, ref, domain.ActionCancelDispute, actor, domain.TransitionInput{Reason: "cancelled by filer"}, nil); err != nil {
		return nil, err
	}
	return dispute, nil
}

// Escalate moves a negotiation to admin review. Either party may escalate;
// re-escalating an already escalated dispute is a no-op.
func (s *DisputeService) Escalate(ctx context.Context, userID, disputeID string) (*domain.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	actor := domain.Actor{Role: dispute.RoleOf(userID, domain.SubjectTypeUser), ID: userID}
	if err := s.escalate(ctx, dispute, actor, false); err != nil {
		return nil, err
	}
	return dispute, nil
}

// EscalateStale auto-escalates negotiations older than the configured
// timeout. Invoked by the background sweeper; returns how many moved.
func (s *DisputeService) EscalateStale(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.cfg.NegotiationTimeout())
	stale, err := s.disputes.ListStaleNegotiations(ctx, cutoff, 100)
	if err != nil {
		return 0, err
	}

	escalated := 0
	for i := range stale {
		dispute := &stale[i]
		if err := s.escalate(ctx, dispute, domain.SystemActor, true); err != nil {
			// a concurrent transition may have won; skip and continue
			s.logger.Warn("auto-escalation skipped",
				zap.String("dispute_id", dispute.ID), zap.Error(err))
			continue
		}
		s.metrics.RecordAutoEscalation()
		escalated++
	}
	return escalated, nil
}

// OfferPartialRefund records a pending offer from the accused party.
func (s *DisputeService) OfferPartialRefund(ctx context.Context, userID, disputeID string, amount, percentage *decimal.Decimal) (*domain.Dispute, error) {
	dispute, ref, err := s.loadDisputeAndRef(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	actor := domain.Actor{Role: dispute.RoleOf(userID, domain.SubjectTypeUser), ID: userID}

	expectedVersion := dispute.Version
	if err := s.negotiator.Offer(dispute, ref, actor, amount, percentage, time.Now()); err != nil {
		return nil, err
	}
	if err := s.disputes.UpdateWithVersion(ctx, dispute, expectedVersion); err != nil {
		return nil, err
	}
	s.metrics.RecordTransition("offer")

	s.recordHistory(ctx, dispute.ID, domain.HistoryActorUser, &userID, domain.ChangeTypeOffer,
		nil, map[string]any{"amount": dispute.Offer.Amount.StringFixed(2)})
	s.publishEvent(ctx, events.Event{
		Type:      events.EventPartialRefundOffered,
		DisputeID: dispute.ID,
		Actor:     events.Actor{Role: actor.Role, ID: actor.ID},
		Payload:   events.PartialRefundOfferedPayload{Amount: dispute.Offer.Amount.StringFixed(2)},
	})
	return dispute, nil
}

// RespondToPartialRefund lets the filer accept or reject the pending offer.
// Acceptance is terminal: the negotiated amount is refunded and the remainder
// released, exactly once.
func (s *DisputeService) RespondToPartialRefund(ctx context.Context, userID, disputeID string, accept bool) (*domain.Dispute, error) {
	dispute, ref, err := s.loadDisputeAndRef(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	actor := domain.Actor{Role: dispute.RoleOf(userID, domain.SubjectTypeUser), ID: userID}
	now := time.Now()

	if !accept {
		expectedVersion := dispute.Version
		if err := s.negotiator.Reject(dispute, actor, now); err != nil {
			return nil, err
		}
		if err := s.disputes.UpdateWithVersion(ctx, dispute, expectedVersion); err != nil {
			return nil, err
		}
		s.metrics.RecordTransition("offer_rejected")
		s.recordHistory(ctx, dispute.ID, domain.HistoryActorUser, &userID, domain.ChangeTypeOfferReply,
			nil, map[string]any{"accepted": false, "amount": dispute.Offer.Amount.StringFixed(2)})
		s.publishEvent(ctx, events.Event{
			Type:      events.EventPartialRefundReplied,
			DisputeID: dispute.ID,
			Actor:     events.Actor{Role: actor.Role, ID: actor.ID},
			Payload:   events.PartialRefundRepliedPayload{Accepted: false, Amount: dispute.Offer.Amount.StringFixed(2)},
		})
		return dispute, nil
	}

	offer := dispute.PendingOffer()
	if offer == nil {
		if !dispute.IsOpen() {
			return nil, apperrors.NewConflict("dispute already resolved", map[string]any{"dispute_id": dispute.ID})
		}
		return nil, apperrors.NewConflict("no pending offer to respond to", map[string]any{"dispute_id": dispute.ID})
	}
	amount := offer.Amount

	if err := s.resolveTerminal(ctx, dispute, ref, domain.ActionOfferAccepted, actor,
		domain.TransitionInput{Reason: "partial refund offer accepted", Now: now}, &amount); err != nil {
		return nil, err
	}
	s.recordHistory(ctx, dispute.ID, domain.HistoryActorUser, &userID, domain.ChangeTypeOfferReply,
		nil, map[string]any{"accepted": true, "amount": amount.StringFixed(2)})
	s.publishEvent(ctx, events.Event{
		Type:      events.EventPartialRefundReplied,
		DisputeID: dispute.ID,
		Actor:     events.Actor{Role: actor.Role, ID: actor.ID},
		Payload:   events.PartialRefundRepliedPayload{Accepted: true, Amount: amount.StringFixed(2)},
	})
	return dispute, nil
}

// AdminResolve lets an arbiter adjudicate an escalated dispute.
func (s *DisputeService) AdminResolve(ctx context.Context, arbiterID, disputeID string, outcome domain.ResolutionOutcome, reason string) (*domain.Dispute, error) {
	if !outcome.Valid() {
		return nil, apperrors.NewValidationError("unknown resolution outcome", map[string]any{"outcome": outcome})
	}
	dispute, ref, err := s.loadDisputeAndRef(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	actor := domain.Actor{Role: domain.RoleArbiter, ID: arbiterID}

	var partialAmount *decimal.Decimal
	if outcome == domain.OutcomePartialRefund {
		offer := dispute.PendingOffer()
		if offer == nil {
			return nil, apperrors.NewValidationError("partial refund resolution requires a pending offer", map[string]any{
				"dispute_id": dispute.ID,
			})
		}
		partialAmount = &offer.Amount
	}

	input := domain.TransitionInput{Outcome: &outcome, Reason: reason, Now: time.Now()}
	if err := s.resolveTerminal(ctx, dispute, ref, domain.ActionAdminResolve, actor, input, partialAmount); err != nil {
		return nil, err
	}
	return dispute, nil
}

// resolveTerminal runs the shared terminal path: check the transition, settle
// exactly once, then persist stage, status, outcome and resolvedAt as one
// conditional update.
func (s *DisputeService) resolveTerminal(ctx context.Context, dispute *domain.Dispute, ref *domain.TransactionRef, action domain.DisputeAction, actor domain.Actor, input domain.TransitionInput, partialAmount *decimal.Decimal) error {
	outcome, err := dispute.CheckTransition(action, actor, input)
	if err != nil {
		return err
	}

	settlement, err := s.settlement.Settle(ctx, dispute, outcome, ref, partialAmount)
	if err != nil {
		return err
	}

	expectedVersion := dispute.Version
	oldStage := dispute.Stage
	if action == domain.ActionOfferAccepted {
		if err := s.negotiator.Accept(dispute, actor, input); err != nil {
			return err
		}
	} else {
		if err := dispute.ApplyTransition(action, actor, input); err != nil {
			return err
		}
		if outcome == domain.OutcomePartialRefund {
			s.negotiator.AdoptPending(dispute)
		}
	}
	if err := s.disputes.UpdateWithVersion(ctx, dispute, expectedVersion); err != nil {
		return err
	}
	s.metrics.RecordTransition(strings.ToLower(string(action)))

	actorID := actor.ID
	s.recordHistory(ctx, dispute.ID, historyActorType(actor.Role), &actorID, domain.ChangeTypeStage,
		map[string]any{"stage": oldStage},
		map[string]any{"stage": dispute.Stage, "outcome": outcome, "reason": input.Reason})
	s.recordHistory(ctx, dispute.ID, domain.HistoryActorSystem, nil, domain.ChangeTypeSettlement,
		nil, map[string]any{
			"outcome":        settlement.Outcome,
			"refund_amount":  settlement.RefundAmount.StringFixed(2),
			"release_amount": settlement.ReleaseAmount.StringFixed(2),
		})

	s.publishEvent(ctx, events.Event{
		Type:      events.EventDisputeResolved,
		DisputeID: dispute.ID,
		Actor:     events.Actor{Role: actor.Role, ID: actor.ID},
		Payload:   events.DisputeResolvedPayload{Outcome: outcome, Reason: input.Reason},
	})
	s.publishEvent(ctx, events.Event{
		Type:      events.EventSettlementInstructed,
		DisputeID: dispute.ID,
		Actor:     events.Actor{Role: domain.RoleSystem, ID: "settlement"},
		Payload: events.SettlementInstructedPayload{
			Outcome:       settlement.Outcome,
			RefundAmount:  settlement.RefundAmount.StringFixed(2),
			ReleaseAmount: settlement.ReleaseAmount.StringFixed(2),
			RefundRef:     settlement.RefundRef,
			ReleaseRef:    settlement.ReleaseRef,
		},
	})
	return nil
}

func (s *DisputeService) escalate(ctx context.Context, dispute *domain.Dispute, actor domain.Actor, automatic bool) error {
	expectedVersion := dispute.Version
	oldStage := dispute.Stage
	if err := dispute.ApplyTransition(domain.ActionEscalate, actor, domain.TransitionInput{Now: time.Now()}); err != nil {
		return err
	}
	if dispute.Stage == oldStage {
		// idempotent no-op, nothing to persist
		return nil
	}
	if err := s.disputes.UpdateWithVersion(ctx, dispute, expectedVersion); err != nil {
		return err
	}
	s.metrics.RecordTransition("escalate")

	var actorID *string
	actorType := historyActorType(actor.Role)
	if actor.Role != domain.RoleSystem {
		id := actor.ID
		actorID = &id
	}
	s.recordHistory(ctx, dispute.ID, actorType, actorID, domain.ChangeTypeStage,
		map[string]any{"stage": oldStage},
		map[string]any{"stage": dispute.Stage, "automatic": automatic})
	s.publishEvent(ctx, events.Event{
		Type:      events.EventDisputeEscalated,
		DisputeID: dispute.ID,
		Actor:     events.Actor{Role: actor.Role, ID: actor.ID},
		Payload:   events.DisputeEscalatedPayload{Automatic: automatic},
	})
	return nil
}

func (s *DisputeService) loadDisputeAndRef(ctx context.Context, disputeID string) (*domain.Dispute, *domain.TransactionRef, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, nil, err
	}
	ref, err := s.references.GetTransactionRef(ctx, dispute.ReferenceKind, dispute.ReferenceID)
	if err != nil {
		return nil, nil, err
	}
	return dispute, ref, nil
}

// bootstrapConversation creates the conversation channel once and posts the
// opening system message. Failures are logged, not fatal: the dispute exists
// regardless.
func (s *DisputeService) bootstrapConversation(ctx context.Context, dispute *domain.Dispute) {
	if s.conversations == nil {
		return
	}
	conversationID, err := s.conversations.CreateConversation(ctx, dispute.FiledBy, dispute.AccusedParty)
	if err != nil {
		s.logger.Warn("conversation bootstrap failed",
			zap.String("dispute_id", dispute.ID), zap.Error(err))
		return
	}
	if !dispute.AssignConversation(conversationID) {
		return
	}
	expectedVersion := dispute.Version
	if err := s.disputes.UpdateWithVersion(ctx, dispute, expectedVersion); err != nil {
		s.logger.Warn("persisting conversation id failed",
			zap.String("dispute_id", dispute.ID), zap.Error(err))
		return
	}
	s.recordHistory(ctx, dispute.ID, domain.HistoryActorSystem, nil, domain.ChangeTypeConversation,
		nil, map[string]any{"conversation_id": conversationID})

	opening := fmt.Sprintf("Dispute %s opened (%s): %s",
		dispute.ExternalKey, dispute.Category, stringPreview(dispute.Description, 200))
	if err := s.conversations.SendMessage(ctx, conversationID, "system", opening); err != nil {
		s.logger.Warn("opening conversation message failed",
			zap.String("dispute_id", dispute.ID), zap.Error(err))
	}
}

func (s *DisputeService) recordHistory(ctx context.Context, disputeID string, actorType domain.HistoryActorType, actorID *string, changeType domain.DisputeChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	entry := &domain.DisputeHistory{
		DisputeID:  disputeID,
		ActorType:  actorType,
		ActorID:    actorID,
		ChangeType: changeType,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("recording dispute history failed",
			zap.String("dispute_id", disputeID), zap.Error(err))
	}
}

func (s *DisputeService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func eligibilityError(eligibility Eligibility) error {
	switch eligibility.Code {
	case EligibilityRefNotFound:
		return apperrors.NewNotFound("transaction reference", nil)
	case EligibilityNotParty:
		return apperrors.NewForbidden(eligibility.Reason)
	case EligibilityDisputeOpen:
		return apperrors.NewConflict(eligibility.Reason, nil)
	default:
		return apperrors.NewValidationError(eligibility.Reason, nil)
	}
}

func historyActorType(role domain.ActorRole) domain.HistoryActorType {
	switch role {
	case domain.RoleArbiter:
		return domain.HistoryActorArbiter
	case domain.RoleSystem:
		return domain.HistoryActorSystem
	default:
		return domain.HistoryActorUser
	}
}

func generateDisputeKey() string {
	return "DSP-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
