package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trustvibe/escrow-service/internal/domain"
)

// ProjectRepository persists the project aggregate.
// Update must compare-and-swap on Version and return domain.ErrConflict when
// the stored version differs; the orchestrator relies on this for
// single-writer-per-project semantics.
type ProjectRepository interface {
	Create(ctx context.Context, project domain.Project) error
	GetByID(ctx context.Context, projectID string) (domain.Project, error)
	Update(ctx context.Context, project domain.Project) (domain.Project, error)
	ListByState(ctx context.Context, state domain.ProjectState, limit int) ([]domain.Project, error)
}

// QuoteRepository persists contractor bids. MarkSelected flips the winning
// quote to SELECTED and all siblings to DECLINED in one logical write.
type QuoteRepository interface {
	Create(ctx context.Context, quote domain.Quote) error
	GetByID(ctx context.Context, quoteID string) (domain.Quote, error)
	ListByProject(ctx context.Context, projectID string) ([]domain.Quote, error)
	MarkSelected(ctx context.Context, projectID, quoteID string, at time.Time) error
}

// AgreementRepository owns agreement snapshots and their change orders.
type AgreementRepository interface {
	Create(ctx context.Context, agreement domain.Agreement) error
	GetByProject(ctx context.Context, projectID string) (domain.Agreement, error)
	Update(ctx context.Context, agreement domain.Agreement) error
	AppendChangeOrder(ctx context.Context, order domain.ChangeOrder) error
	ListChangeOrders(ctx context.Context, agreementID string) ([]domain.ChangeOrder, error)
}

// MilestoneRepository persists partial-release milestones.
type MilestoneRepository interface {
	CreateBatch(ctx context.Context, milestones []domain.Milestone) error
	GetByID(ctx context.Context, milestoneID string) (domain.Milestone, error)
	ListByProject(ctx context.Context, projectID string) ([]domain.Milestone, error)
	Update(ctx context.Context, milestone domain.Milestone) error
}

// LedgerRepository appends immutable ledger events. Append assigns the next
// per-project sequence number; events are never updated or deleted.
type LedgerRepository interface {
	Append(ctx context.Context, event domain.LedgerEvent) (domain.LedgerEvent, error)
	ListByProject(ctx context.Context, projectID string) ([]domain.LedgerEvent, error)
}

// AuditRepository appends write-once audit actions.
type AuditRepository interface {
	Append(ctx context.Context, action domain.AuditAction) error
	ListByTarget(ctx context.Context, targetType, targetID string, limit int) ([]domain.AuditAction, error)
}

// CaseRepository persists dispute cases.
type CaseRepository interface {
	Create(ctx context.Context, c domain.Case) error
	GetByID(ctx context.Context, caseID string) (domain.Case, error)
	GetOpenByProject(ctx context.Context, projectID string) (domain.Case, error)
	Update(ctx context.Context, c domain.Case) error
	ListByStatus(ctx context.Context, status string, limit int) ([]domain.Case, error)
}

// ProposalRepository persists joint-release proposals under a case.
type ProposalRepository interface {
	Create(ctx context.Context, proposal domain.JointReleaseProposal) error
	GetByID(ctx context.Context, proposalID string) (domain.JointReleaseProposal, error)
	ListByCase(ctx context.Context, caseID string) ([]domain.JointReleaseProposal, error)
	Update(ctx context.Context, proposal domain.JointReleaseProposal) error
}

// DepositRepository persists estimate deposits.
type DepositRepository interface {
	Create(ctx context.Context, deposit domain.EstimateDeposit) error
	GetByID(ctx context.Context, depositID string) (domain.EstimateDeposit, error)
	ListByProject(ctx context.Context, projectID string) ([]domain.EstimateDeposit, error)
	Update(ctx context.Context, deposit domain.EstimateDeposit) error
}

// ReliabilityRepository owns per-contractor scores and their append-only
// history.
type ReliabilityRepository interface {
	Get(ctx context.Context, contractorID string) (domain.ReliabilityScore, error)
	Upsert(ctx context.Context, score domain.ReliabilityScore) error
	AppendHistory(ctx context.Context, entry domain.ReliabilityHistoryEntry) error
	ListContractorIDs(ctx context.Context, limit, offset int) ([]string, error)
}

// SubscriptionRepository persists contractor plan subscriptions.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub domain.Subscription) error
	GetActiveByContractor(ctx context.Context, contractorID string) (domain.Subscription, error)
	Update(ctx context.Context, sub domain.Subscription) error
}

// IdempotencyRecord tracks a previously accepted mutating request so replays
// return the original response.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	Status       string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdempotencyRepository enforces idempotent mutation semantics.
type IdempotencyRepository interface {
	Get(ctx context.Context, key string) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
}

// OutboxEvent is the write-side event payload prior to storage.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord is the durable outbox row including retry metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository controls the publish-retry workflow for domain events.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
