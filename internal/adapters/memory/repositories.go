// Package memory provides in-memory port implementations used by unit tests
// and the local development profile. Behavior mirrors the postgres adapter,
// including optimistic version checks and per-project ledger sequencing.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trustvibe/escrow-service/internal/domain"
	"github.com/trustvibe/escrow-service/internal/ports"
)

// Repositories bundles every in-memory port implementation over one lock.
type Repositories struct {
	mu sync.Mutex

	projects      map[string]domain.Project
	quotes        map[string]domain.Quote
	agreements    map[string]domain.Agreement
	changeOrders  map[string][]domain.ChangeOrder
	milestones    map[string]domain.Milestone
	ledger        map[string][]domain.LedgerEvent
	audits        []domain.AuditAction
	cases         map[string]domain.Case
	proposals     map[string]domain.JointReleaseProposal
	deposits      map[string]domain.EstimateDeposit
	reliability   map[string]domain.ReliabilityScore
	history       map[string][]domain.ReliabilityHistoryEntry
	subscriptions map[string]domain.Subscription
	idempotency   map[string]ports.IdempotencyRecord
	outbox        []ports.OutboxRecord

	config *domain.PlatformConfig
}

func NewRepositories() *Repositories {
	return &Repositories{
		projects:      map[string]domain.Project{},
		quotes:        map[string]domain.Quote{},
		agreements:    map[string]domain.Agreement{},
		changeOrders:  map[string][]domain.ChangeOrder{},
		milestones:    map[string]domain.Milestone{},
		ledger:        map[string][]domain.LedgerEvent{},
		cases:         map[string]domain.Case{},
		proposals:     map[string]domain.JointReleaseProposal{},
		deposits:      map[string]domain.EstimateDeposit{},
		reliability:   map[string]domain.ReliabilityScore{},
		history:       map[string][]domain.ReliabilityHistoryEntry{},
		subscriptions: map[string]domain.Subscription{},
		idempotency:   map[string]ports.IdempotencyRecord{},
	}
}

// Projects

type projectRepo struct{ r *Repositories }

func (r *Repositories) Projects() ports.ProjectRepository { return projectRepo{r} }

func (p projectRepo) Create(_ context.Context, project domain.Project) error {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	if _, ok := p.r.projects[project.ProjectID]; ok {
		return domain.ErrConflict
	}
	p.r.projects[project.ProjectID] = project
	return nil
}

func (p projectRepo) GetByID(_ context.Context, projectID string) (domain.Project, error) {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	project, ok := p.r.projects[projectID]
	if !ok {
		return domain.Project{}, domain.ErrNotFound
	}
	return project, nil
}

func (p projectRepo) Update(_ context.Context, project domain.Project) (domain.Project, error) {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	stored, ok := p.r.projects[project.ProjectID]
	if !ok {
		return domain.Project{}, domain.ErrNotFound
	}
	if stored.Version != project.Version {
		return domain.Project{}, domain.ErrConflict
	}
	project.Version++
	p.r.projects[project.ProjectID] = project
	return project, nil
}

func (p projectRepo) ListByState(_ context.Context, state domain.ProjectState, limit int) ([]domain.Project, error) {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	var out []domain.Project
	for _, project := range p.r.projects {
		if project.State == state {
			out = append(out, project)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Quotes

type quoteRepo struct{ r *Repositories }

func (r *Repositories) Quotes() ports.QuoteRepository { return quoteRepo{r} }

func (q quoteRepo) Create(_ context.Context, quote domain.Quote) error {
	q.r.mu.Lock()
	defer q.r.mu.Unlock()
	if _, ok := q.r.quotes[quote.QuoteID]; ok {
		return domain.ErrConflict
	}
	q.r.quotes[quote.QuoteID] = quote
	return nil
}

func (q quoteRepo) GetByID(_ context.Context, quoteID string) (domain.Quote, error) {
	q.r.mu.Lock()
	defer q.r.mu.Unlock()
	quote, ok := q.r.quotes[quoteID]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return quote, nil
}

func (q quoteRepo) ListByProject(_ context.Context, projectID string) ([]domain.Quote, error) {
	q.r.mu.Lock()
	defer q.r.mu.Unlock()
	var out []domain.Quote
	for _, quote := range q.r.quotes {
		if quote.ProjectID == projectID {
			out = append(out, quote)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (q quoteRepo) MarkSelected(_ context.Context, projectID, quoteID string, at time.Time) error {
	q.r.mu.Lock()
	defer q.r.mu.Unlock()
	if _, ok := q.r.quotes[quoteID]; !ok {
		return domain.ErrNotFound
	}
	for id, quote := range q.r.quotes {
		if quote.ProjectID != projectID {
			continue
		}
		if id == quoteID {
			quote.Status = domain.QuoteStatusSelected
		} else if quote.Status == domain.QuoteStatusSubmitted {
			quote.Status = domain.QuoteStatusDeclined
		}
		quote.UpdatedAt = at
		q.r.quotes[id] = quote
	}
	return nil
}

// Agreements

type agreementRepo struct{ r *Repositories }

func (r *Repositories) Agreements() ports.AgreementRepository { return agreementRepo{r} }

func (a agreementRepo) Create(_ context.Context, agreement domain.Agreement) error {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	a.r.agreements[agreement.ProjectID] = agreement
	return nil
}

func (a agreementRepo) GetByProject(_ context.Context, projectID string) (domain.Agreement, error) {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	agreement, ok := a.r.agreements[projectID]
	if !ok {
		return domain.Agreement{}, domain.ErrNotFound
	}
	return agreement, nil
}

func (a agreementRepo) Update(_ context.Context, agreement domain.Agreement) error {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	if _, ok := a.r.agreements[agreement.ProjectID]; !ok {
		return domain.ErrNotFound
	}
	a.r.agreements[agreement.ProjectID] = agreement
	return nil
}

func (a agreementRepo) AppendChangeOrder(_ context.Context, order domain.ChangeOrder) error {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	a.r.changeOrders[order.AgreementID] = append(a.r.changeOrders[order.AgreementID], order)
	return nil
}

func (a agreementRepo) ListChangeOrders(_ context.Context, agreementID string) ([]domain.ChangeOrder, error) {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	orders := a.r.changeOrders[agreementID]
	out := make([]domain.ChangeOrder, len(orders))
	copy(out, orders)
	return out, nil
}

// Milestones

type milestoneRepo struct{ r *Repositories }

func (r *Repositories) Milestones() ports.MilestoneRepository { return milestoneRepo{r} }

func (m milestoneRepo) CreateBatch(_ context.Context, milestones []domain.Milestone) error {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	for _, ms := range milestones {
		m.r.milestones[ms.MilestoneID] = ms
	}
	return nil
}

func (m milestoneRepo) GetByID(_ context.Context, milestoneID string) (domain.Milestone, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	ms, ok := m.r.milestones[milestoneID]
	if !ok {
		return domain.Milestone{}, domain.ErrNotFound
	}
	return ms, nil
}

func (m milestoneRepo) ListByProject(_ context.Context, projectID string) ([]domain.Milestone, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	var out []domain.Milestone
	for _, ms := range m.r.milestones {
		if ms.ProjectID == projectID {
			out = append(out, ms)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m milestoneRepo) Update(_ context.Context, milestone domain.Milestone) error {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	if _, ok := m.r.milestones[milestone.MilestoneID]; !ok {
		return domain.ErrNotFound
	}
	m.r.milestones[milestone.MilestoneID] = milestone
	return nil
}

// Ledger

type ledgerRepo struct{ r *Repositories }

func (r *Repositories) Ledger() ports.LedgerRepository { return ledgerRepo{r} }

func (l ledgerRepo) Append(_ context.Context, event domain.LedgerEvent) (domain.LedgerEvent, error) {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()
	event.Seq = int64(len(l.r.ledger[event.ProjectID])) + 1
	l.r.ledger[event.ProjectID] = append(l.r.ledger[event.ProjectID], event)
	return event, nil
}

func (l ledgerRepo) ListByProject(_ context.Context, projectID string) ([]domain.LedgerEvent, error) {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()
	events := l.r.ledger[projectID]
	out := make([]domain.LedgerEvent, len(events))
	copy(out, events)
	return out, nil
}

// Audit

type auditRepo struct{ r *Repositories }

func (r *Repositories) Audit() ports.AuditRepository { return auditRepo{r} }

func (a auditRepo) Append(_ context.Context, action domain.AuditAction) error {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	if action.AuditID == "" {
		action.AuditID = uuid.NewString()
	}
	a.r.audits = append(a.r.audits, action)
	return nil
}

func (a auditRepo) ListByTarget(_ context.Context, targetType, targetID string, limit int) ([]domain.AuditAction, error) {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	var out []domain.AuditAction
	for _, action := range a.r.audits {
		if action.TargetType == targetType && action.TargetID == targetID {
			out = append(out, action)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Cases

type caseRepo struct{ r *Repositories }

func (r *Repositories) Cases() ports.CaseRepository { return caseRepo{r} }

func (c caseRepo) Create(_ context.Context, dc domain.Case) error {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	c.r.cases[dc.CaseID] = dc
	return nil
}

func (c caseRepo) GetByID(_ context.Context, caseID string) (domain.Case, error) {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	dc, ok := c.r.cases[caseID]
	if !ok {
		return domain.Case{}, domain.ErrNotFound
	}
	return dc, nil
}

func (c caseRepo) GetOpenByProject(_ context.Context, projectID string) (domain.Case, error) {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	for _, dc := range c.r.cases {
		if dc.ProjectID == projectID && dc.Status != domain.CaseStatusClosed {
			return dc, nil
		}
	}
	return domain.Case{}, domain.ErrNotFound
}

func (c caseRepo) Update(_ context.Context, dc domain.Case) error {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	if _, ok := c.r.cases[dc.CaseID]; !ok {
		return domain.ErrNotFound
	}
	c.r.cases[dc.CaseID] = dc
	return nil
}

func (c caseRepo) ListByStatus(_ context.Context, status string, limit int) ([]domain.Case, error) {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	var out []domain.Case
	for _, dc := range c.r.cases {
		if dc.Status == status {
			out = append(out, dc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Proposals

type proposalRepo struct{ r *Repositories }

func (r *Repositories) Proposals() ports.ProposalRepository { return proposalRepo{r} }

func (p proposalRepo) Create(_ context.Context, proposal domain.JointReleaseProposal) error {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	p.r.proposals[proposal.ProposalID] = proposal
	return nil
}

func (p proposalRepo) GetByID(_ context.Context, proposalID string) (domain.JointReleaseProposal, error) {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	proposal, ok := p.r.proposals[proposalID]
	if !ok {
		return domain.JointReleaseProposal{}, domain.ErrNotFound
	}
	return proposal, nil
}

func (p proposalRepo) ListByCase(_ context.Context, caseID string) ([]domain.JointReleaseProposal, error) {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	var out []domain.JointReleaseProposal
	for _, proposal := range p.r.proposals {
		if proposal.CaseID == caseID {
			out = append(out, proposal)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (p proposalRepo) Update(_ context.Context, proposal domain.JointReleaseProposal) error {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	if _, ok := p.r.proposals[proposal.ProposalID]; !ok {
		return domain.ErrNotFound
	}
	p.r.proposals[proposal.ProposalID] = proposal
	return nil
}

// Deposits

type depositRepo struct{ r *Repositories }

func (r *Repositories) Deposits() ports.DepositRepository { return depositRepo{r} }

func (d depositRepo) Create(_ context.Context, deposit domain.EstimateDeposit) error {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	d.r.deposits[deposit.DepositID] = deposit
	return nil
}

func (d depositRepo) GetByID(_ context.Context, depositID string) (domain.EstimateDeposit, error) {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	deposit, ok := d.r.deposits[depositID]
	if !ok {
		return domain.EstimateDeposit{}, domain.ErrNotFound
	}
	return deposit, nil
}

func (d depositRepo) ListByProject(_ context.Context, projectID string) ([]domain.EstimateDeposit, error) {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	var out []domain.EstimateDeposit
	for _, deposit := range d.r.deposits {
		if deposit.ProjectID == projectID {
			out = append(out, deposit)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (d depositRepo) Update(_ context.Context, deposit domain.EstimateDeposit) error {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	if _, ok := d.r.deposits[deposit.DepositID]; !ok {
		return domain.ErrNotFound
	}
	d.r.deposits[deposit.DepositID] = deposit
	return nil
}

// Reliability

type reliabilityRepo struct{ r *Repositories }

func (r *Repositories) Reliability() ports.ReliabilityRepository { return reliabilityRepo{r} }

func (rr reliabilityRepo) Get(_ context.Context, contractorID string) (domain.ReliabilityScore, error) {
	rr.r.mu.Lock()
	defer rr.r.mu.Unlock()
	score, ok := rr.r.reliability[contractorID]
	if !ok {
		return domain.ReliabilityScore{}, domain.ErrNotFound
	}
	return score, nil
}

func (rr reliabilityRepo) Upsert(_ context.Context, score domain.ReliabilityScore) error {
	rr.r.mu.Lock()
	defer rr.r.mu.Unlock()
	rr.r.reliability[score.ContractorID] = score
	return nil
}

func (rr reliabilityRepo) AppendHistory(_ context.Context, entry domain.ReliabilityHistoryEntry) error {
	rr.r.mu.Lock()
	defer rr.r.mu.Unlock()
	rr.r.history[entry.ContractorID] = append(rr.r.history[entry.ContractorID], entry)
	return nil
}

func (rr reliabilityRepo) ListContractorIDs(_ context.Context, limit, offset int) ([]string, error) {
	rr.r.mu.Lock()
	defer rr.r.mu.Unlock()
	ids := make([]string, 0, len(rr.r.reliability))
	for id := range rr.r.reliability {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Subscriptions

type subscriptionRepo struct{ r *Repositories }

func (r *Repositories) Subscriptions() ports.SubscriptionRepository { return subscriptionRepo{r} }

func (s subscriptionRepo) Create(_ context.Context, sub domain.Subscription) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.subscriptions[sub.SubscriptionID] = sub
	return nil
}

func (s subscriptionRepo) GetActiveByContractor(_ context.Context, contractorID string) (domain.Subscription, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	for _, sub := range s.r.subscriptions {
		if sub.ContractorID == contractorID && sub.Status == domain.SubscriptionStatusActive {
			return sub, nil
		}
	}
	return domain.Subscription{}, domain.ErrNotFound
}

func (s subscriptionRepo) Update(_ context.Context, sub domain.Subscription) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if _, ok := s.r.subscriptions[sub.SubscriptionID]; !ok {
		return domain.ErrNotFound
	}
	s.r.subscriptions[sub.SubscriptionID] = sub
	return nil
}

// Idempotency

type idempotencyRepo struct{ r *Repositories }

func (r *Repositories) Idempotency() ports.IdempotencyRepository { return idempotencyRepo{r} }

func (i idempotencyRepo) Get(_ context.Context, key string) (*ports.IdempotencyRecord, error) {
	i.r.mu.Lock()
	defer i.r.mu.Unlock()
	rec, ok := i.r.idempotency[key]
	if !ok {
		return nil, nil
	}
	out := rec
	return &out, nil
}

func (i idempotencyRepo) Reserve(_ context.Context, key, requestHash string, expiresAt time.Time) error {
	i.r.mu.Lock()
	defer i.r.mu.Unlock()
	if existing, ok := i.r.idempotency[key]; ok {
		if existing.RequestHash != requestHash {
			return domain.ErrConflict
		}
		return nil
	}
	now := time.Now().UTC()
	i.r.idempotency[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      "reserved",
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return nil
}

func (i idempotencyRepo) Complete(_ context.Context, key string, responseCode int, responseBody []byte, at time.Time) error {
	i.r.mu.Lock()
	defer i.r.mu.Unlock()
	rec, ok := i.r.idempotency[key]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Status = "completed"
	rec.ResponseCode = responseCode
	rec.ResponseBody = append([]byte(nil), responseBody...)
	rec.UpdatedAt = at
	i.r.idempotency[key] = rec
	return nil
}

// Outbox

type outboxRepo struct{ r *Repositories }

func (r *Repositories) Outbox() ports.OutboxRepository { return outboxRepo{r} }

func (o outboxRepo) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	o.r.mu.Lock()
	defer o.r.mu.Unlock()
	o.r.outbox = append(o.r.outbox, ports.OutboxRecord{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      append([]byte(nil), event.Payload...),
		CreatedAt:    event.OccurredAt,
	})
	return nil
}

func (o outboxRepo) ClaimUnpublished(_ context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	o.r.mu.Lock()
	defer o.r.mu.Unlock()
	now := time.Now().UTC()
	var out []ports.OutboxRecord
	for idx := range o.r.outbox {
		rec := &o.r.outbox[idx]
		if rec.PublishedAt != nil || rec.DeadLetteredAt != nil {
			continue
		}
		if rec.ClaimUntil != nil && rec.ClaimUntil.After(now) {
			continue
		}
		token := claimToken
		until := claimUntil
		rec.ClaimToken = &token
		rec.ClaimUntil = &until
		out = append(out, *rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (o outboxRepo) MarkPublished(_ context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error {
	return o.mark(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		published := at
		rec.PublishedAt = &published
	})
}

func (o outboxRepo) MarkFailed(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return o.mark(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		rec.RetryCount++
		msg := errMsg
		errAt := at
		rec.LastError = &msg
		rec.LastErrorAt = &errAt
		rec.ClaimToken = nil
		rec.ClaimUntil = nil
	})
}

func (o outboxRepo) MarkDeadLettered(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return o.mark(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		msg := errMsg
		dead := at
		rec.LastError = &msg
		rec.DeadLetteredAt = &dead
	})
}

func (o outboxRepo) mark(outboxID uuid.UUID, claimToken string, apply func(*ports.OutboxRecord)) error {
	o.r.mu.Lock()
	defer o.r.mu.Unlock()
	for idx := range o.r.outbox {
		rec := &o.r.outbox[idx]
		if rec.OutboxID != outboxID {
			continue
		}
		if rec.ClaimToken == nil || !strings.EqualFold(*rec.ClaimToken, claimToken) {
			return domain.ErrConflict
		}
		apply(rec)
		return nil
	}
	return domain.ErrNotFound
}

// UnpublishedEvents returns pending outbox rows; test helper.
func (r *Repositories) UnpublishedEvents() []ports.OutboxRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ports.OutboxRecord
	for _, rec := range r.outbox {
		if rec.PublishedAt == nil && rec.DeadLetteredAt == nil {
			out = append(out, rec)
		}
	}
	return out
}

// Config store

type configStore struct{ r *Repositories }

func (r *Repositories) Config() ports.PlatformConfigStore { return configStore{r} }

func (c configStore) Snapshot(_ context.Context) (domain.PlatformConfig, error) {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	if c.r.config == nil {
		return domain.DefaultPlatformConfig(), nil
	}
	return *c.r.config, nil
}

func (c configStore) Put(_ context.Context, cfg domain.PlatformConfig) error {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	stored := cfg
	c.r.config = &stored
	return nil
}
