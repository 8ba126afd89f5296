package application

import (
	"time"

	"github.com/trustvibe/escrow-service/internal/domain"
	"github.com/trustvibe/escrow-service/internal/ports"
)

// Config carries operation-independent service settings. The money-policy
// document (fees, windows, flags) is not here: it is read as a snapshot from
// the platform config store at the start of every operation.
type Config struct {
	ServiceName    string
	IdempotencyTTL time.Duration
	// SystemActorID identifies the pseudo-actor used by scheduled sweeps.
	SystemActorID string
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	SubjectID      string
	Role           string
	RequestID      string
	IdempotencyKey string
}

// System returns the scheduled-sweep pseudo-actor.
func (s *Service) systemActor() Actor {
	return Actor{SubjectID: s.cfg.SystemActorID, Role: domain.RoleSystem}
}

type CreateProjectInput struct {
	Category     string `json:"category"`
	Scope        string `json:"scope"`
	Municipality string `json:"municipality"`
}

type PublishProjectInput struct {
	ProjectID string `json:"project_id"`
}

type CancelProjectInput struct {
	ProjectID string `json:"project_id"`
	Reason    string `json:"reason"`
}

type SubmitQuoteInput struct {
	ProjectID    string `json:"project_id"`
	PriceCents   int64  `json:"price_cents"`
	TimelineDays int    `json:"timeline_days"`
	ScopeNotes   string `json:"scope_notes"`
}

type SelectContractorInput struct {
	ProjectID string `json:"project_id"`
	QuoteID   string `json:"quote_id"`
}

type SelectContractorResult struct {
	Project   domain.Project   `json:"project"`
	Quote     domain.Quote     `json:"quote"`
	Agreement domain.Agreement `json:"agreement"`
}

type AcceptAgreementInput struct {
	ProjectID string `json:"project_id"`
}

type AppendChangeOrderInput struct {
	ProjectID         string `json:"project_id"`
	DeltaPriceCents   int64  `json:"delta_price_cents"`
	DeltaTimelineDays int    `json:"delta_timeline_days"`
	Note              string `json:"note"`
}

type FundHoldInput struct {
	ProjectID string `json:"project_id"`
}

type RequestCompletionInput struct {
	ProjectID string `json:"project_id"`
}

type ApproveReleaseInput struct {
	ProjectID string `json:"project_id"`
}

type OutcomeResult struct {
	Project      domain.Project      `json:"project"`
	ReleaseCents int64               `json:"release_cents"`
	RefundCents  int64               `json:"refund_cents"`
	Fee          domain.FeeBreakdown `json:"fee"`
}

type RaiseIssueHoldInput struct {
	ProjectID string `json:"project_id"`
	Reason    string `json:"reason"`
}

type RaiseIssueHoldResult struct {
	Project domain.Project `json:"project"`
	Case    domain.Case    `json:"case"`
}

type ProposeJointReleaseInput struct {
	ProjectID    string `json:"project_id"`
	ReleaseCents int64  `json:"release_cents"`
	RefundCents  int64  `json:"refund_cents"`
}

type SignJointReleaseInput struct {
	ProjectID  string `json:"project_id"`
	ProposalID string `json:"proposal_id"`
}

type SignJointReleaseResult struct {
	Proposal domain.JointReleaseProposal `json:"proposal"`
	// Outcome is set only when the second signature triggered execution.
	Outcome *OutcomeResult `json:"outcome,omitempty"`
}

type UploadResolutionDocumentInput struct {
	ProjectID string `json:"project_id"`
	DocRef    string `json:"doc_ref"`
	DocKind   string `json:"doc_kind"`
}

type AdminExecuteOutcomeInput struct {
	ProjectID string `json:"project_id"`
	// ResolutionRef may supply the binding-decision reference when the case
	// has none stored.
	ResolutionRef string `json:"resolution_ref"`
	ReleaseCents  int64  `json:"release_cents"`
	RefundCents   int64  `json:"refund_cents"`
	Note          string `json:"note"`
}

type MilestoneInput struct {
	Title       string `json:"title"`
	AmountCents int64  `json:"amount_cents"`
}

type CreateMilestonesInput struct {
	ProjectID  string           `json:"project_id"`
	Milestones []MilestoneInput `json:"milestones"`
}

type ApproveMilestoneInput struct {
	ProjectID   string `json:"project_id"`
	MilestoneID string `json:"milestone_id"`
}

type CreateEstimateDepositInput struct {
	ProjectID     string    `json:"project_id"`
	ContractorID  string    `json:"contractor_id"`
	AppointmentAt time.Time `json:"appointment_at"`
	AmountCents   int64     `json:"amount_cents"`
}

type CaptureEstimateDepositInput struct {
	DepositID string `json:"deposit_id"`
}

type MarkEstimateAttendanceInput struct {
	DepositID  string `json:"deposit_id"`
	Attendance string `json:"attendance"`
}

type ReliabilitySignalsInput struct {
	ContractorID string                     `json:"contractor_id"`
	Delta        domain.ReliabilityCounters `json:"delta"`
	Cause        string                     `json:"cause"`
}

type OnboardContractorInput struct {
	ReturnURL string `json:"return_url"`
}

type OnboardContractorResult struct {
	AccountRef    string `json:"account_ref"`
	OnboardingURL string `json:"onboarding_url"`
}

type CreateSubscriptionInput struct {
	PlanID string `json:"plan_id"`
}

type ConciergeIntakeFeeInput struct {
	ProjectID string `json:"project_id"`
	Note      string `json:"note"`
}

type SweepResult struct {
	Scanned    int      `json:"scanned"`
	Executed   int      `json:"executed"`
	Failed     int      `json:"failed"`
	ProjectIDs []string `json:"project_ids,omitempty"`
}

// Service is the escrow orchestrator: the only component allowed to mutate
// persisted project/case/deposit state.
type Service struct {
	cfg Config

	projects      ports.ProjectRepository
	quotes        ports.QuoteRepository
	agreements    ports.AgreementRepository
	milestones    ports.MilestoneRepository
	ledger        ports.LedgerRepository
	audit         ports.AuditRepository
	cases         ports.CaseRepository
	proposals     ports.ProposalRepository
	deposits      ports.DepositRepository
	reliability   ports.ReliabilityRepository
	subscriptions ports.SubscriptionRepository
	idempotency   ports.IdempotencyRepository
	outbox        ports.OutboxRepository

	platformConfig  ports.PlatformConfigStore
	providerFactory ports.ProviderFactory

	nowFn func() time.Time
}

type Dependencies struct {
	Config Config

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

	PlatformConfig  ports.PlatformConfigStore
	ProviderFactory ports.ProviderFactory
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "escrow-service"
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}
	if cfg.SystemActorID == "" {
		cfg.SystemActorID = "system"
	}
	return &Service{
		cfg:             cfg,
		projects:        deps.Projects,
		quotes:          deps.Quotes,
		agreements:      deps.Agreements,
		milestones:      deps.Milestones,
		ledger:          deps.Ledger,
		audit:           deps.Audit,
		cases:           deps.Cases,
		proposals:       deps.Proposals,
		deposits:        deps.Deposits,
		reliability:     deps.Reliability,
		subscriptions:   deps.Subscriptions,
		idempotency:     deps.Idempotency,
		outbox:          deps.Outbox,
		platformConfig:  deps.PlatformConfig,
		providerFactory: deps.ProviderFactory,
		nowFn:           func() time.Time { return time.Now().UTC() },
	}
}
