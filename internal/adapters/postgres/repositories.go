// Package postgres implements the persistence ports over GORM. Row mapping is
// explicit per table; domain errors are translated at this boundary so the
// application layer never sees gorm sentinels.
package postgres

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/trustvibe/escrow-service/internal/ports"
)

type Repositories struct {
	Projects      ports.ProjectRepository
	Quotes        ports.QuoteRepository
	Agreements    ports.AgreementRepository
	Milestones    ports.MilestoneRepository
	Ledger        ports.LedgerRepository
	Audit         ports.AuditRepository
	Cases         ports.CaseRepository
	Proposals     ports.ProposalRepository
	Deposits      ports.DepositRepository
	Reliability   ports.ReliabilityRepository
	Subscriptions ports.SubscriptionRepository
	Idempotency   ports.IdempotencyRepository
	Outbox        ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Projects:      &projectRepository{db: db},
		Quotes:        &quoteRepository{db: db},
		Agreements:    &agreementRepository{db: db},
		Milestones:    &milestoneRepository{db: db},
		Ledger:        &ledgerRepository{db: db},
		Audit:         &auditRepository{db: db},
		Cases:         &caseRepository{db: db},
		Proposals:     &proposalRepository{db: db},
		Deposits:      &depositRepository{db: db},
		Reliability:   &reliabilityRepository{db: db},
		Subscriptions: &subscriptionRepository{db: db},
		Idempotency:   &idempotencyRepository{db: db},
		Outbox:        &outboxRepository{db: db},
	}
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
