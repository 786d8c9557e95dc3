package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dispute-service/internal/config"
	"github.com/spec-kit/dispute-service/internal/domain"
	"github.com/spec-kit/dispute-service/internal/repository"
)

// EligibilityCode classifies why filing is refused, so committing callers can
// map refusals onto the error taxonomy while the probe stays non-throwing.
type EligibilityCode string

const (
	EligibilityOK            EligibilityCode = "OK"
	EligibilityUnknownKind   EligibilityCode = "UNKNOWN_KIND"
	EligibilityRefNotFound   EligibilityCode = "REFERENCE_NOT_FOUND"
	EligibilityNotDisputable EligibilityCode = "STATE_NOT_DISPUTABLE"
	EligibilityNotParty      EligibilityCode = "NOT_A_PARTY"
	EligibilityDisputeOpen   EligibilityCode = "DISPUTE_ALREADY_OPEN"
	EligibilityWindowElapsed EligibilityCode = "FILING_WINDOW_ELAPSED"
)

// Eligibility is the answer to a filing probe. This is a UI-facing check, so
// refusals come back as a reason rather than an error.
type Eligibility struct {
	CanFile bool
	Code    EligibilityCode
	Reason  string
}

func refused(code EligibilityCode, reason string) Eligibility {
	return Eligibility{Code: code, Reason: reason}
}

// EligibilityChecker decides whether a dispute may be opened for a reference.
type EligibilityChecker struct {
	references repository.ReferenceRepository
	disputes   repository.DisputeRepository
	cfg        config.DisputeConfig
}

// NewEligibilityChecker constructs the checker.
func NewEligibilityChecker(references repository.ReferenceRepository, disputes repository.DisputeRepository, cfg config.DisputeConfig) *EligibilityChecker {
	return &EligibilityChecker{references: references, disputes: disputes, cfg: cfg}
}

// CanFile applies the filing rules in order: reference exists and is in a
// disputable state, requester is a party, no open dispute exists, and the
// filing window has not elapsed. The loaded reference is returned when found
// so committing callers do not fetch it twice.
func (c *EligibilityChecker) CanFile(ctx context.Context, kind domain.ReferenceKind, referenceID, requesterID string) (Eligibility, *domain.TransactionRef, error) {
	if !kind.Valid() {
		return refused(EligibilityUnknownKind, "unknown reference kind"), nil, nil
	}

	ref, err := c.references.GetTransactionRef(ctx, kind, referenceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return refused(EligibilityRefNotFound, "reference not found"), nil, nil
		}
		return Eligibility{}, nil, err
	}

	if !ref.State.Disputable() {
		return refused(EligibilityNotDisputable, "transaction state does not permit disputing"), ref, nil
	}
	if !ref.IsParty(requesterID) {
		return refused(EligibilityNotParty, "requester is not a party to the transaction"), ref, nil
	}

	if _, err := c.disputes.FindOpenByReference(ctx, kind, referenceID); err == nil {
		return refused(EligibilityDisputeOpen, "an open dispute already exists for this transaction"), ref, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Eligibility{}, nil, err
	}

	if ref.CompletedAt != nil {
		deadline := ref.CompletedAt.Add(c.cfg.FilingWindow())
		if time.Now().After(deadline) {
			return refused(EligibilityWindowElapsed, "filing window has elapsed"), ref, nil
		}
	}

	return Eligibility{CanFile: true, Code: EligibilityOK}, ref, nil
}
