package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/dispute-service/internal/domain"
	"github.com/spec-kit/dispute-service/internal/repository"
	apperrors "github.com/spec-kit/dispute-service/pkg/util"
)

type fakeDisputeRepo struct {
	disputes       map[string]domain.Dispute
	nextID         int
	failNextUpdate error
}

func newFakeDisputeRepo() *fakeDisputeRepo {
	return &fakeDisputeRepo{disputes: map[string]domain.Dispute{}}
}

func (r *fakeDisputeRepo) Create(_ context.Context, dispute *domain.Dispute) error {
	for _, existing := range r.disputes {
		if existing.Status == domain.DisputeStatusOpen &&
			existing.ReferenceKind == dispute.ReferenceKind &&
			existing.ReferenceID == dispute.ReferenceID {
			return apperrors.NewConflict("an open dispute already exists for this transaction", nil)
		}
	}
	r.nextID++
	dispute.ID = fmt.Sprintf("d-%d", r.nextID)
	dispute.Version = 1
	dispute.CreatedAt = time.Now()
	dispute.UpdatedAt = dispute.CreatedAt
	r.disputes[dispute.ID] = *dispute
	return nil
}

func (r *fakeDisputeRepo) GetByID(_ context.Context, id string) (*domain.Dispute, error) {
	stored, ok := r.disputes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := stored
	return &copied, nil
}

func (r *fakeDisputeRepo) UpdateWithVersion(_ context.Context, dispute *domain.Dispute, expectedVersion int64) error {
	if r.failNextUpdate != nil {
		err := r.failNextUpdate
		r.failNextUpdate = nil
		return err
	}
	stored, ok := r.disputes[dispute.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Version != expectedVersion {
		return apperrors.NewConflict("dispute state changed, reload and retry", nil)
	}
	dispute.Version = expectedVersion + 1
	r.disputes[dispute.ID] = *dispute
	return nil
}

func (r *fakeDisputeRepo) FindOpenByReference(_ context.Context, kind domain.ReferenceKind, referenceID string) (*domain.Dispute, error) {
	for _, existing := range r.disputes {
		if existing.Status == domain.DisputeStatusOpen &&
			existing.ReferenceKind == kind && existing.ReferenceID == referenceID {
			copied := existing
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeDisputeRepo) ListWithFilter(_ context.Context, filter repository.DisputeFilter) ([]domain.Dispute, error) {
	var out []domain.Dispute
	for _, existing := range r.disputes {
		if filter.PartyID != nil &&
			existing.FiledBy != *filter.PartyID && existing.AccusedParty != *filter.PartyID {
			continue
		}
		if len(filter.Stages) > 0 && !containsStage(filter.Stages, existing.Stage) {
			continue
		}
		out = append(out, existing)
	}
	return out, nil
}

func (r *fakeDisputeRepo) ListStaleNegotiations(_ context.Context, cutoff time.Time, _ int) ([]domain.Dispute, error) {
	var out []domain.Dispute
	for _, existing := range r.disputes {
		if existing.Stage == domain.StageNegotiation &&
			existing.Status == domain.DisputeStatusOpen &&
			existing.CreatedAt.Before(cutoff) {
			out = append(out, existing)
		}
	}
	return out, nil
}

func containsStage(stages []domain.DisputeStage, stage domain.DisputeStage) bool {
	for _, candidate := range stages {
		if candidate == stage {
			return true
		}
	}
	return false
}

type fakeReferenceRepo struct {
	refs map[string]domain.TransactionRef
}

func newFakeReferenceRepo() *fakeReferenceRepo {
	return &fakeReferenceRepo{refs: map[string]domain.TransactionRef{}}
}

func (r *fakeReferenceRepo) put(ref domain.TransactionRef) {
	r.refs[string(ref.Kind)+":"+ref.ID] = ref
}

func (r *fakeReferenceRepo) GetTransactionRef(_ context.Context, kind domain.ReferenceKind, id string) (*domain.TransactionRef, error) {
	stored, ok := r.refs[string(kind)+":"+id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := stored
	return &copied, nil
}

type fakeUserRepo struct {
	users map[string]domain.User
}

func newFakeUserRepo(users ...domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: map[string]domain.User{}}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = fmt.Sprintf("u-%d", len(r.users)+1)
	}
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	stored, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := stored
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			copied := user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeHistoryRepo struct {
	entries []domain.DisputeHistory
}

func (r *fakeHistoryRepo) Create(_ context.Context, entry *domain.DisputeHistory) error {
	entry.ID = fmt.Sprintf("h-%d", len(r.entries)+1)
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeHistoryRepo) ListByDispute(_ context.Context, disputeID string, _, _ int) ([]domain.DisputeHistory, error) {
	var out []domain.DisputeHistory
	for _, entry := range r.entries {
		if entry.DisputeID == disputeID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type fakeSettlementRepo struct {
	byDispute map[string]*domain.Settlement
	nextID    int
}

func newFakeSettlementRepo() *fakeSettlementRepo {
	return &fakeSettlementRepo{byDispute: map[string]*domain.Settlement{}}
}

func (r *fakeSettlementRepo) Create(_ context.Context, settlement *domain.Settlement) error {
	if _, exists := r.byDispute[settlement.DisputeID]; exists {
		return apperrors.NewConflict("dispute already settled", nil)
	}
	r.nextID++
	settlement.ID = fmt.Sprintf("s-%d", r.nextID)
	settlement.CreatedAt = time.Now()
	copied := *settlement
	r.byDispute[settlement.DisputeID] = &copied
	return nil
}

func (r *fakeSettlementRepo) Complete(_ context.Context, settlement *domain.Settlement) error {
	stored, ok := r.byDispute[settlement.DisputeID]
	if !ok {
		return pgx.ErrNoRows
	}
	now := time.Now()
	stored.RefundRef = settlement.RefundRef
	stored.ReleaseRef = settlement.ReleaseRef
	stored.Status = domain.SettlementStatusCompleted
	stored.CompletedAt = &now
	settlement.CompletedAt = &now
	return nil
}

func (r *fakeSettlementRepo) GetByDispute(_ context.Context, disputeID string) (*domain.Settlement, error) {
	stored, ok := r.byDispute[disputeID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

type ledgerCall struct {
	kind           string
	transactionID  string
	amount         decimal.Decimal
	idempotencyKey string
}

type fakeLedgerClient struct {
	calls       []ledgerCall
	failRefund  bool
	failRelease bool
}

func (l *fakeLedgerClient) Refund(_ context.Context, transactionID string, amount decimal.Decimal, idempotencyKey string) (string, error) {
	if l.failRefund {
		return "", fmt.Errorf("ledger unavailable")
	}
	l.calls = append(l.calls, ledgerCall{"refund", transactionID, amount, idempotencyKey})
	return "ref-" + idempotencyKey, nil
}

func (l *fakeLedgerClient) Release(_ context.Context, transactionID string, amount decimal.Decimal, idempotencyKey string) (string, error) {
	if l.failRelease {
		return "", fmt.Errorf("ledger unavailable")
	}
	l.calls = append(l.calls, ledgerCall{"release", transactionID, amount, idempotencyKey})
	return "rel-" + idempotencyKey, nil
}

type fakeConversationClient struct {
	created  int
	messages []string
	fail     bool
}

func (c *fakeConversationClient) CreateConversation(_ context.Context, _, _ string) (string, error) {
	if c.fail {
		return "", fmt.Errorf("conversation service unavailable")
	}
	c.created++
	return fmt.Sprintf("conv-%d", c.created), nil
}

func (c *fakeConversationClient) SendMessage(_ context.Context, _, _, body string) error {
	if c.fail {
		return fmt.Errorf("conversation service unavailable")
	}
	c.messages = append(c.messages, body)
	return nil
}
