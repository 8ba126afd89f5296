package unit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/trustvibe/escrow-service/internal/adapters/events"
	"github.com/trustvibe/escrow-service/internal/adapters/memory"
	"github.com/trustvibe/escrow-service/internal/adapters/payments"
	"github.com/trustvibe/escrow-service/internal/application"
	"github.com/trustvibe/escrow-service/internal/domain"
)

type fixture struct {
	repos   *memory.Repositories
	service *application.Service
}

func newFixture() *fixture {
	repos := memory.NewRepositories()
	svc := application.NewService(application.Dependencies{
		Config:          application.Config{ServiceName: "escrow-service-test"},
		Projects:        repos.Projects(),
		Quotes:          repos.Quotes(),
		Agreements:      repos.Agreements(),
		Milestones:      repos.Milestones(),
		Ledger:          repos.Ledger(),
		Audit:           repos.Audit(),
		Cases:           repos.Cases(),
		Proposals:       repos.Proposals(),
		Deposits:        repos.Deposits(),
		Reliability:     repos.Reliability(),
		Subscriptions:   repos.Subscriptions(),
		Idempotency:     repos.Idempotency(),
		Outbox:          repos.Outbox(),
		PlatformConfig:  repos.Config(),
		ProviderFactory: payments.NewFactory(),
	})
	return &fixture{repos: repos, service: svc}
}

func actor(subject, role string) application.Actor {
	return application.Actor{SubjectID: subject, Role: role}
}

func actorWithKey(subject, role, key string) application.Actor {
	return application.Actor{SubjectID: subject, Role: role, IdempotencyKey: key}
}

// fundedProject drives a fresh project through publish, quoting, selection,
// dual acceptance and funding, returning it in FUNDED_HELD.
func (f *fixture) fundedProject(t *testing.T, ctx context.Context, customerID, contractorID string, priceCents int64) domain.Project {
	t.Helper()
	customer := actor(customerID, domain.RoleCustomer)
	contractor := actor(contractorID, domain.RoleContractor)

	project, err := f.service.CreateProject(ctx, customer, application.CreateProjectInput{
		Category:     "renovation",
		Scope:        "full kitchen remodel",
		Municipality: "springfield",
	})
	if err != nil {
		t.Fatalf("create project failed: %v", err)
	}
	if _, err := f.service.PublishProject(ctx, customer, application.PublishProjectInput{ProjectID: project.ProjectID}); err != nil {
		t.Fatalf("publish project failed: %v", err)
	}
	quote, err := f.service.SubmitQuote(ctx, contractor, application.SubmitQuoteInput{
		ProjectID:    project.ProjectID,
		PriceCents:   priceCents,
		TimelineDays: 21,
	})
	if err != nil {
		t.Fatalf("submit quote failed: %v", err)
	}
	if _, err := f.service.SelectContractor(ctx, customer, application.SelectContractorInput{
		ProjectID: project.ProjectID,
		QuoteID:   quote.QuoteID,
	}); err != nil {
		t.Fatalf("select contractor failed: %v", err)
	}
	if _, err := f.service.AcceptAgreement(ctx, customer, application.AcceptAgreementInput{ProjectID: project.ProjectID}); err != nil {
		t.Fatalf("customer accept failed: %v", err)
	}
	if _, err := f.service.AcceptAgreement(ctx, contractor, application.AcceptAgreementInput{ProjectID: project.ProjectID}); err != nil {
		t.Fatalf("contractor accept failed: %v", err)
	}
	funded, err := f.service.FundHold(ctx,
		actorWithKey(customerID, domain.RoleCustomer, "fund-"+project.ProjectID),
		application.FundHoldInput{ProjectID: project.ProjectID})
	if err != nil {
		t.Fatalf("fund hold failed: %v", err)
	}
	return funded
}

func (f *fixture) ledger(t *testing.T, ctx context.Context, projectID string) []domain.LedgerEvent {
	t.Helper()
	rows, err := f.service.GetLedger(ctx, actor("admin-1", domain.RoleAdmin), projectID)
	if err != nil {
		t.Fatalf("get ledger failed: %v", err)
	}
	return rows
}

func countEvents(events []domain.LedgerEvent, eventType string) int {
	n := 0
	for _, e := range events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

func TestEscrowLifecycleReleaseNetOfFee(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	project := f.fundedProject(t, ctx, "cust-1", "contr-1", 200000)

	if project.State != domain.StateFundedHeld {
		t.Fatalf("state = %s, want FUNDED_HELD", project.State)
	}
	if project.HeldAmountCents != 200000 {
		t.Fatalf("held = %d, want 200000", project.HeldAmountCents)
	}
	if project.ProviderHoldRef == "" {
		t.Fatalf("funding did not record a provider hold reference")
	}

	contractor := actor("contr-1", domain.RoleContractor)
	if _, err := f.service.StartWork(ctx, contractor, project.ProjectID); err != nil {
		t.Fatalf("start work failed: %v", err)
	}
	if _, err := f.service.RequestCompletion(ctx, contractor, application.RequestCompletionInput{ProjectID: project.ProjectID}); err != nil {
		t.Fatalf("request completion failed: %v", err)
	}

	result, err := f.service.ApproveRelease(ctx,
		actorWithKey("cust-1", domain.RoleCustomer, "release-1"),
		application.ApproveReleaseInput{ProjectID: project.ProjectID})
	if err != nil {
		t.Fatalf("approve release failed: %v", err)
	}
	if result.Project.State != domain.StateReleasedPaid {
		t.Errorf("state = %s, want RELEASED_PAID", result.Project.State)
	}
	if result.Project.HeldAmountCents != 0 {
		t.Errorf("held after release = %d, want 0", result.Project.HeldAmountCents)
	}
	// 200000 sits in the standard band at 700 bps.
	if result.Fee.FeeCents != 14000 {
		t.Errorf("fee = %d, want 14000", result.Fee.FeeCents)
	}
	if result.Fee.NetPayoutCents != 186000 {
		t.Errorf("net payout = %d, want 186000", result.Fee.NetPayoutCents)
	}

	ledger := f.ledger(t, ctx, project.ProjectID)
	for _, want := range []string{
		domain.EventHoldCreated,
		domain.EventReleaseFull,
		domain.EventFeeCharged,
		domain.EventOutcomeExecuted,
	} {
		if countEvents(ledger, want) != 1 {
			t.Errorf("ledger has %d %s events, want 1", countEvents(ledger, want), want)
		}
	}

	balance, err := f.service.GetBalance(ctx, actor("cust-1", domain.RoleCustomer), project.ProjectID)
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	if balance.HeldCents != 200000 || balance.ReleasedCents != 200000 || balance.FeeCents != 14000 {
		t.Errorf("balance = %+v, want 200000 held, 200000 released, 14000 fee", balance)
	}
	if balance.NetHeldCents != 0 {
		t.Errorf("net held = %d, want 0", balance.NetHeldCents)
	}

	if len(f.repos.UnpublishedEvents()) == 0 {
		t.Errorf("expected outbox events after release")
	}
}

func TestSubscriptionPlanOverrideReducesFee(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	contractor := actor("contr-pro", domain.RoleContractor)

	if _, err := f.service.CreateSubscription(ctx, contractor, application.CreateSubscriptionInput{PlanID: "contractor_pro"}); err != nil {
		t.Fatalf("create subscription failed: %v", err)
	}

	project := f.fundedProject(t, ctx, "cust-2", "contr-pro", 200000)
	if _, err := f.service.RequestCompletion(ctx, contractor, application.RequestCompletionInput{ProjectID: project.ProjectID}); err != nil {
		t.Fatalf("request completion failed: %v", err)
	}

	result, err := f.service.ApproveRelease(ctx,
		actorWithKey("cust-2", domain.RoleCustomer, "release-pro"),
		application.ApproveReleaseInput{ProjectID: project.ProjectID})
	if err != nil {
		t.Fatalf("approve release failed: %v", err)
	}
	// The contractor_pro plan overrides the standard band to 500 bps.
	if result.Fee.FeeCents != 10000 {
		t.Errorf("fee = %d, want 10000", result.Fee.FeeCents)
	}
	if result.Fee.NetPayoutCents != 190000 {
		t.Errorf("net payout = %d, want 190000", result.Fee.NetPayoutCents)
	}
}

func TestFundHoldPreconditions(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	customer := actor("cust-3", domain.RoleCustomer)
	contractor := actor("contr-3", domain.RoleContractor)

	project, err := f.service.CreateProject(ctx, customer, application.CreateProjectInput{
		Category: "plumbing", Scope: "replace water heater",
	})
	if err != nil {
		t.Fatalf("create project failed: %v", err)
	}
	if _, err := f.service.PublishProject(ctx, customer, application.PublishProjectInput{ProjectID: project.ProjectID}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	quote, err := f.service.SubmitQuote(ctx, contractor, application.SubmitQuoteInput{
		ProjectID: project.ProjectID, PriceCents: 50000, TimelineDays: 3,
	})
	if err != nil {
		t.Fatalf("submit quote failed: %v", err)
	}
	if _, err := f.service.SelectContractor(ctx, customer, application.SelectContractorInput{
		ProjectID: project.ProjectID, QuoteID: quote.QuoteID,
	}); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if _, err := f.service.AcceptAgreement(ctx, customer, application.AcceptAgreementInput{ProjectID: project.ProjectID}); err != nil {
		t.Fatalf("customer accept failed: %v", err)
	}

	// Funding needs an idempotency key.
	if _, err := f.service.FundHold(ctx, customer, application.FundHoldInput{ProjectID: project.ProjectID}); !errors.Is(err, domain.ErrIdempotencyRequired) {
		t.Errorf("fund without key: got %v, want ErrIdempotencyRequired", err)
	}

	// One-sided acceptance leaves the project in CONTRACTOR_SELECTED.
	if _, err := f.service.FundHold(ctx,
		actorWithKey("cust-3", domain.RoleCustomer, "fund-early"),
		application.FundHoldInput{ProjectID: project.ProjectID}); !errors.Is(err, domain.ErrFailedPrecondition) {
		t.Errorf("fund before dual acceptance: got %v, want ErrFailedPrecondition", err)
	}

	// Only the project owner may fund.
	if _, err := f.service.AcceptAgreement(ctx, contractor, application.AcceptAgreementInput{ProjectID: project.ProjectID}); err != nil {
		t.Fatalf("contractor accept failed: %v", err)
	}
	if _, err := f.service.FundHold(ctx,
		actorWithKey("cust-other", domain.RoleCustomer, "fund-other"),
		application.FundHoldInput{ProjectID: project.ProjectID}); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("fund by non-owner: got %v, want ErrPermissionDenied", err)
	}
}

func TestApproveReleaseReplaysOnSameKey(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	project := f.fundedProject(t, ctx, "cust-4", "contr-4", 100000)

	contractor := actor("contr-4", domain.RoleContractor)
	if _, err := f.service.RequestCompletion(ctx, contractor, application.RequestCompletionInput{ProjectID: project.ProjectID}); err != nil {
		t.Fatalf("request completion failed: %v", err)
	}

	approver := actorWithKey("cust-4", domain.RoleCustomer, "release-replay")
	first, err := f.service.ApproveRelease(ctx, approver, application.ApproveReleaseInput{ProjectID: project.ProjectID})
	if err != nil {
		t.Fatalf("approve release failed: %v", err)
	}
	second, err := f.service.ApproveRelease(ctx, approver, application.ApproveReleaseInput{ProjectID: project.ProjectID})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if second.ReleaseCents != first.ReleaseCents || second.Fee.FeeCents != first.Fee.FeeCents {
		t.Errorf("replay returned a different outcome: %+v vs %+v", second, first)
	}

	ledger := f.ledger(t, ctx, project.ProjectID)
	if got := countEvents(ledger, domain.EventReleaseFull); got != 1 {
		t.Errorf("ledger has %d release events after replay, want 1", got)
	}

	// Same key with a different payload is a conflict, not a replay.
	if _, err := f.service.ApproveRelease(ctx, approver, application.ApproveReleaseInput{ProjectID: "some-other-project"}); !errors.Is(err, domain.ErrIdempotencyConflict) {
		t.Errorf("key reuse with new payload: got %v, want ErrIdempotencyConflict", err)
	}
}

func TestJointReleaseSplitExecutesOnSecondSignature(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	project := f.fundedProject(t, ctx, "cust-5", "contr-5", 200000)

	customer := actor("cust-5", domain.RoleCustomer)
	contractor := actor("contr-5", domain.RoleContractor)

	raised, err := f.service.RaiseIssueHold(ctx, customer, application.RaiseIssueHoldInput{
		ProjectID: project.ProjectID,
		Reason:    "tile work does not match the agreed scope",
	})
	if err != nil {
		t.Fatalf("raise issue failed: %v", err)
	}
	if raised.Project.State != domain.StateIssueRaisedHold {
		t.Fatalf("state = %s, want ISSUE_RAISED_HOLD", raised.Project.State)
	}

	// The split must cover the full held amount.
	if _, err := f.service.ProposeJointRelease(ctx, customer, application.ProposeJointReleaseInput{
		ProjectID:    project.ProjectID,
		ReleaseCents: 100000,
		RefundCents:  50000,
	}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("short split: got %v, want ErrInvalidInput", err)
	}

	proposal, err := f.service.ProposeJointRelease(ctx, customer, application.ProposeJointReleaseInput{
		ProjectID:    project.ProjectID,
		ReleaseCents: 120000,
		RefundCents:  80000,
	})
	if err != nil {
		t.Fatalf("propose joint release failed: %v", err)
	}
	if proposal.CustomerSignedAt == nil {
		t.Fatalf("proposing should sign for the proposer")
	}

	result, err := f.service.SignJointRelease(ctx,
		actorWithKey("contr-5", domain.RoleContractor, "joint-1"),
		application.SignJointReleaseInput{ProjectID: project.ProjectID, ProposalID: proposal.ProposalID})
	if err != nil {
		t.Fatalf("sign joint release failed: %v", err)
	}
	if result.Outcome == nil {
		t.Fatalf("second signature should execute the split")
	}
	if result.Outcome.Project.State != domain.StateExecutedReleasePartial {
		t.Errorf("state = %s, want EXECUTED_RELEASE_PARTIAL", result.Outcome.Project.State)
	}
	if result.Outcome.Project.HeldAmountCents != 0 {
		t.Errorf("held after split = %d, want 0", result.Outcome.Project.HeldAmountCents)
	}
	if result.Proposal.ExecutedAt == nil {
		t.Errorf("proposal should record execution")
	}

	// Executing the split closes the case.
	if _, err := f.service.GetCase(ctx, contractor, project.ProjectID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected no open case after execution, got %v", err)
	}

	ledger := f.ledger(t, ctx, project.ProjectID)
	if countEvents(ledger, domain.EventReleasePartial) != 1 || countEvents(ledger, domain.EventRefundPartial) != 1 {
		t.Errorf("expected one partial release and one partial refund event")
	}
}

func TestExternalResolutionAdminOutcome(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	project := f.fundedProject(t, ctx, "cust-6", "contr-6", 150000)

	customer := actor("cust-6", domain.RoleCustomer)
	contractor := actor("contr-6", domain.RoleContractor)
	admin := actorWithKey("admin-1", domain.RoleAdmin, "admin-outcome-1")

	if _, err := f.service.RaiseIssueHold(ctx, customer, application.RaiseIssueHoldInput{
		ProjectID: project.ProjectID,
		Reason:    "work abandoned mid-job",
	}); err != nil {
		t.Fatalf("raise issue failed: %v", err)
	}

	// No binding decision yet: execution is rejected.
	if _, err := f.service.AdminExecuteOutcome(ctx, admin, application.AdminExecuteOutcomeInput{
		ProjectID:   project.ProjectID,
		RefundCents: 150000,
	}); !errors.Is(err, domain.ErrFailedPrecondition) {
		t.Fatalf("execute without resolution: got %v, want ErrFailedPrecondition", err)
	}

	if _, err := f.service.MarkExternalResolution(ctx, contractor, project.ProjectID); err != nil {
		t.Fatalf("mark external resolution failed: %v", err)
	}
	if _, err := f.service.UploadResolutionDocument(ctx, customer, application.UploadResolutionDocumentInput{
		ProjectID: project.ProjectID,
		DocRef:    "case-2025-0117/final-order.pdf",
		DocKind:   domain.ResolutionDocCourtOrder,
	}); err != nil {
		t.Fatalf("upload resolution document failed: %v", err)
	}

	// Disbursing more than the hold is rejected before any provider call.
	if _, err := f.service.AdminExecuteOutcome(ctx,
		actorWithKey("admin-1", domain.RoleAdmin, "admin-outcome-over"),
		application.AdminExecuteOutcomeInput{
			ProjectID:    project.ProjectID,
			ReleaseCents: 100000,
			RefundCents:  100000,
		}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("over-disbursement: got %v, want ErrInvalidInput", err)
	}

	result, err := f.service.AdminExecuteOutcome(ctx,
		actorWithKey("admin-1", domain.RoleAdmin, "admin-outcome-2"),
		application.AdminExecuteOutcomeInput{
			ProjectID:   project.ProjectID,
			RefundCents: 150000,
		})
	if err != nil {
		t.Fatalf("admin execute failed: %v", err)
	}
	if result.Project.State != domain.StateExecutedRefundFull {
		t.Errorf("state = %s, want EXECUTED_REFUND_FULL", result.Project.State)
	}
	if result.Fee.FeeCents != 0 {
		t.Errorf("refund charged a fee of %d, want 0", result.Fee.FeeCents)
	}

	ledger := f.ledger(t, ctx, project.ProjectID)
	if countEvents(ledger, domain.EventRefundFull) != 1 {
		t.Errorf("expected one full refund event")
	}
}

func TestAdminOutcomeProviderFailureLeavesProjectFrozen(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	project := f.fundedProject(t, ctx, "cust-16", "contr-16", 50000)

	customer := actor("cust-16", domain.RoleCustomer)
	contractor := actor("contr-16", domain.RoleContractor)

	if _, err := f.service.RaiseIssueHold(ctx, customer, application.RaiseIssueHoldInput{
		ProjectID: project.ProjectID,
		Reason:    "materials never delivered",
	}); err != nil {
		t.Fatalf("raise issue failed: %v", err)
	}
	if _, err := f.service.MarkExternalResolution(ctx, contractor, project.ProjectID); err != nil {
		t.Fatalf("mark external resolution failed: %v", err)
	}

	cfg, err := f.repos.Config().Snapshot(ctx)
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	cfg.PaymentProvider = domain.ProviderNone
	if err := f.repos.Config().Put(ctx, cfg); err != nil {
		t.Fatalf("store config failed: %v", err)
	}

	if _, err := f.service.AdminExecuteOutcome(ctx,
		actorWithKey("admin-1", domain.RoleAdmin, "admin-frozen-1"),
		application.AdminExecuteOutcomeInput{
			ProjectID:     project.ProjectID,
			RefundCents:   50000,
			ResolutionRef: "case-2025-0204/settlement.pdf",
		}); !errors.Is(err, domain.ErrNotImplemented) {
		t.Fatalf("execute with disabled provider: got %v, want ErrNotImplemented", err)
	}

	// A failed disbursement must leave the stored project untouched.
	stored, err := f.repos.Projects().GetByID(ctx, project.ProjectID)
	if err != nil {
		t.Fatalf("load project failed: %v", err)
	}
	if stored.State != domain.StateResolutionPendingExternal {
		t.Errorf("state after failed execution = %s, want RESOLUTION_PENDING_EXTERNAL", stored.State)
	}

	cfg.PaymentProvider = domain.ProviderSandbox
	if err := f.repos.Config().Put(ctx, cfg); err != nil {
		t.Fatalf("store config failed: %v", err)
	}

	result, err := f.service.AdminExecuteOutcome(ctx,
		actorWithKey("admin-1", domain.RoleAdmin, "admin-frozen-2"),
		application.AdminExecuteOutcomeInput{
			ProjectID:     project.ProjectID,
			RefundCents:   50000,
			ResolutionRef: "case-2025-0204/settlement.pdf",
		})
	if err != nil {
		t.Fatalf("admin execute after re-enable failed: %v", err)
	}
	if result.Project.State != domain.StateExecutedRefundFull {
		t.Errorf("state = %s, want EXECUTED_REFUND_FULL", result.Project.State)
	}
}

func TestJointSignProviderFailureLeavesProjectFrozen(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	project := f.fundedProject(t, ctx, "cust-17", "contr-17", 60000)

	customer := actor("cust-17", domain.RoleCustomer)

	if _, err := f.service.RaiseIssueHold(ctx, customer, application.RaiseIssueHoldInput{
		ProjectID: project.ProjectID,
		Reason:    "quality below agreed standard",
	}); err != nil {
		t.Fatalf("raise issue failed: %v", err)
	}
	if _, err := f.service.MarkExternalResolution(ctx, customer, project.ProjectID); err != nil {
		t.Fatalf("mark external resolution failed: %v", err)
	}

	proposal, err := f.service.ProposeJointRelease(ctx, customer, application.ProposeJointReleaseInput{
		ProjectID:    project.ProjectID,
		ReleaseCents: 20000,
		RefundCents:  40000,
	})
	if err != nil {
		t.Fatalf("propose failed: %v", err)
	}

	cfg, err := f.repos.Config().Snapshot(ctx)
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	cfg.PaymentProvider = domain.ProviderNone
	if err := f.repos.Config().Put(ctx, cfg); err != nil {
		t.Fatalf("store config failed: %v", err)
	}

	if _, err := f.service.SignJointRelease(ctx,
		actorWithKey("contr-17", domain.RoleContractor, "joint-frozen-1"),
		application.SignJointReleaseInput{
			ProjectID:  project.ProjectID,
			ProposalID: proposal.ProposalID,
		}); !errors.Is(err, domain.ErrNotImplemented) {
		t.Fatalf("sign with disabled provider: got %v, want ErrNotImplemented", err)
	}

	stored, err := f.repos.Projects().GetByID(ctx, project.ProjectID)
	if err != nil {
		t.Fatalf("load project failed: %v", err)
	}
	if stored.State != domain.StateResolutionPendingExternal {
		t.Errorf("state after failed execution = %s, want RESOLUTION_PENDING_EXTERNAL", stored.State)
	}
}

func TestMilestonePartialThenFinalRelease(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	project := f.fundedProject(t, ctx, "cust-7", "contr-7", 200000)

	customer := actor("cust-7", domain.RoleCustomer)

	// Milestone amounts must sum exactly to the held amount.
	if _, err := f.service.CreateMilestones(ctx, customer, application.CreateMilestonesInput{
		ProjectID: project.ProjectID,
		Milestones: []application.MilestoneInput{
			{Title: "demolition", AmountCents: 50000},
		},
	}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("short milestone sum: got %v, want ErrInvalidInput", err)
	}

	milestones, err := f.service.CreateMilestones(ctx, customer, application.CreateMilestonesInput{
		ProjectID: project.ProjectID,
		Milestones: []application.MilestoneInput{
			{Title: "demolition and rough-in", AmountCents: 80000},
			{Title: "finish and inspection", AmountCents: 120000},
		},
	})
	if err != nil {
		t.Fatalf("create milestones failed: %v", err)
	}
	if len(milestones) != 2 {
		t.Fatalf("created %d milestones, want 2", len(milestones))
	}

	first, err := f.service.ApproveMilestone(ctx,
		actorWithKey("cust-7", domain.RoleCustomer, "ms-1"),
		application.ApproveMilestoneInput{ProjectID: project.ProjectID, MilestoneID: milestones[0].MilestoneID})
	if err != nil {
		t.Fatalf("approve first milestone failed: %v", err)
	}
	// A non-final milestone deducts from the hold without a state change.
	if first.Project.State != domain.StateFundedHeld {
		t.Errorf("state after first milestone = %s, want FUNDED_HELD", first.Project.State)
	}
	if first.Project.HeldAmountCents != 120000 {
		t.Errorf("held after first milestone = %d, want 120000", first.Project.HeldAmountCents)
	}
	// 80000 sits in the starter band at 900 bps.
	if first.Fee.FeeCents != 7200 {
		t.Errorf("first milestone fee = %d, want 7200", first.Fee.FeeCents)
	}

	second, err := f.service.ApproveMilestone(ctx,
		actorWithKey("cust-7", domain.RoleCustomer, "ms-2"),
		application.ApproveMilestoneInput{ProjectID: project.ProjectID, MilestoneID: milestones[1].MilestoneID})
	if err != nil {
		t.Fatalf("approve final milestone failed: %v", err)
	}
	if second.Project.State != domain.StateReleasedPaid {
		t.Errorf("state after final milestone = %s, want RELEASED_PAID", second.Project.State)
	}
	if second.Project.HeldAmountCents != 0 {
		t.Errorf("held after final milestone = %d, want 0", second.Project.HeldAmountCents)
	}
	// 120000 sits in the standard band at 700 bps.
	if second.Fee.FeeCents != 8400 {
		t.Errorf("final milestone fee = %d, want 8400", second.Fee.FeeCents)
	}

	// A released milestone cannot be approved twice.
	if _, err := f.service.ApproveMilestone(ctx,
		actorWithKey("cust-7", domain.RoleCustomer, "ms-3"),
		application.ApproveMilestoneInput{ProjectID: project.ProjectID, MilestoneID: milestones[0].MilestoneID}); !errors.Is(err, domain.ErrFailedPrecondition) {
		t.Errorf("re-approve released milestone: got %v, want ErrFailedPrecondition", err)
	}
}

func TestAutoReleaseSweepReleasesExpiredWindows(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	project := f.fundedProject(t, ctx, "cust-8", "contr-8", 90000)

	contractor := actor("contr-8", domain.RoleContractor)
	if _, err := f.service.RequestCompletion(ctx, contractor, application.RequestCompletionInput{ProjectID: project.ProjectID}); err != nil {
		t.Fatalf("request completion failed: %v", err)
	}

	// Fresh request: window still open, nothing releases.
	result, err := f.service.RunAutoReleaseSweep(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Executed != 0 {
		t.Fatalf("fresh window released %d projects, want 0", result.Executed)
	}

	// Backdate the completion request past the 7-day approval window.
	stored, err := f.repos.Projects().GetByID(ctx, project.ProjectID)
	if err != nil {
		t.Fatalf("load project failed: %v", err)
	}
	past := time.Now().UTC().Add(-8 * 24 * time.Hour)
	stored.CompletionRequestedAt = &past
	if _, err := f.repos.Projects().Update(ctx, stored); err != nil {
		t.Fatalf("backdate project failed: %v", err)
	}

	result, err = f.service.RunAutoReleaseSweep(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Executed != 1 {
		t.Fatalf("sweep released %d projects, want 1", result.Executed)
	}

	released, err := f.repos.Projects().GetByID(ctx, project.ProjectID)
	if err != nil {
		t.Fatalf("load project failed: %v", err)
	}
	if released.State != domain.StateReleasedPaid {
		t.Errorf("state after sweep = %s, want RELEASED_PAID", released.State)
	}

	ledger := f.ledger(t, ctx, project.ProjectID)
	if countEvents(ledger, domain.EventAutoReleaseExecuted) != 1 {
		t.Errorf("expected one auto-release ledger event")
	}

	// The marker row sits next to the release row; the folded balance must
	// show the hold released exactly once.
	balance, err := f.service.GetBalance(ctx, actor("cust-8", domain.RoleCustomer), project.ProjectID)
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	if balance.ReleasedCents != 90000 {
		t.Errorf("released = %d, want 90000", balance.ReleasedCents)
	}
	if balance.NetHeldCents != 0 {
		t.Errorf("net held = %d, want 0", balance.NetHeldCents)
	}
}

func TestAdminAttentionSweepEscalatesStaleCases(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	project := f.fundedProject(t, ctx, "cust-9", "contr-9", 70000)

	customer := actor("cust-9", domain.RoleCustomer)
	raised, err := f.service.RaiseIssueHold(ctx, customer, application.RaiseIssueHoldInput{
		ProjectID: project.ProjectID,
		Reason:    "no response from contractor for two weeks",
	})
	if err != nil {
		t.Fatalf("raise issue failed: %v", err)
	}

	// Fresh case: under the 14-day attention window.
	result, err := f.service.RunAdminAttentionSweep(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Executed != 0 {
		t.Fatalf("fresh case escalated, want none")
	}

	stale, err := f.repos.Cases().GetByID(ctx, raised.Case.CaseID)
	if err != nil {
		t.Fatalf("load case failed: %v", err)
	}
	stale.IssueRaisedAt = time.Now().UTC().Add(-15 * 24 * time.Hour)
	if err := f.repos.Cases().Update(ctx, stale); err != nil {
		t.Fatalf("backdate case failed: %v", err)
	}

	result, err = f.service.RunAdminAttentionSweep(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Executed != 1 {
		t.Fatalf("sweep escalated %d cases, want 1", result.Executed)
	}

	queue, err := f.service.ListMandatoryReviewCases(ctx, actor("admin-1", domain.RoleAdmin), 10)
	if err != nil {
		t.Fatalf("list review cases failed: %v", err)
	}
	if len(queue) != 1 || queue[0].CaseID != raised.Case.CaseID {
		t.Errorf("review queue = %+v, want the escalated case", queue)
	}

	if _, err := f.service.ListMandatoryReviewCases(ctx, customer, 10); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("non-admin queue access: got %v, want ErrPermissionDenied", err)
	}
}

func TestCancelFundedProjectRejected(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	project := f.fundedProject(t, ctx, "cust-10", "contr-10", 30000)

	_, err := f.service.CancelProject(ctx, actor("cust-10", domain.RoleCustomer), application.CancelProjectInput{
		ProjectID: project.ProjectID,
		Reason:    "changed my mind",
	})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("cancel funded project: got %v, want ErrInvalidTransition", err)
	}
}

func TestEstimateDepositLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	customer := actor("cust-11", domain.RoleCustomer)
	contractor := actor("contr-11", domain.RoleContractor)

	project, err := f.service.CreateProject(ctx, customer, application.CreateProjectInput{
		Category: "roofing", Scope: "storm damage assessment",
	})
	if err != nil {
		t.Fatalf("create project failed: %v", err)
	}

	deposit, err := f.service.CreateEstimateDeposit(ctx, customer, application.CreateEstimateDepositInput{
		ProjectID:     project.ProjectID,
		ContractorID:  "contr-11",
		AppointmentAt: time.Now().UTC().Add(48 * time.Hour),
		AmountCents:   5000,
	})
	if err != nil {
		t.Fatalf("create deposit failed: %v", err)
	}

	captured, err := f.service.CaptureEstimateDeposit(ctx,
		actorWithKey("cust-11", domain.RoleCustomer, "dep-cap-1"),
		application.CaptureEstimateDepositInput{DepositID: deposit.DepositID})
	if err != nil {
		t.Fatalf("capture deposit failed: %v", err)
	}
	if captured.Status != domain.DepositStatusCaptured || captured.ProviderRef == "" {
		t.Fatalf("captured deposit = %+v, want CAPTURED with provider ref", captured)
	}

	attended, err := f.service.MarkEstimateAttendance(ctx, contractor, application.MarkEstimateAttendanceInput{
		DepositID:  deposit.DepositID,
		Attendance: "attended",
	})
	if err != nil {
		t.Fatalf("mark attendance failed: %v", err)
	}
	if attended.Status != domain.DepositStatusAttended {
		t.Fatalf("status = %s, want ATTENDED", attended.Status)
	}

	credited, err := f.service.CreditEstimateDeposit(ctx, customer, deposit.DepositID)
	if err != nil {
		t.Fatalf("credit deposit failed: %v", err)
	}
	if credited.Status != domain.DepositStatusCreditedToJob || credited.CreditedAt == nil {
		t.Errorf("credited deposit = %+v, want CREDITED_TO_JOB", credited)
	}
	// Crediting is a one-shot conversion; repeating it is a no-op.
	again, err := f.service.CreditEstimateDeposit(ctx, customer, deposit.DepositID)
	if err != nil {
		t.Fatalf("repeat credit failed: %v", err)
	}
	if !again.CreditedAt.Equal(*credited.CreditedAt) {
		t.Errorf("repeat credit moved the credit timestamp")
	}

	ledger := f.ledger(t, ctx, project.ProjectID)
	if countEvents(ledger, domain.EventDepositCredited) != 1 {
		t.Errorf("expected exactly one deposit credit event")
	}
}

func TestContractorNoShowRefundsDeposit(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	customer := actor("cust-12", domain.RoleCustomer)

	project, err := f.service.CreateProject(ctx, customer, application.CreateProjectInput{
		Category: "electrical", Scope: "panel upgrade estimate",
	})
	if err != nil {
		t.Fatalf("create project failed: %v", err)
	}
	deposit, err := f.service.CreateEstimateDeposit(ctx, customer, application.CreateEstimateDepositInput{
		ProjectID:     project.ProjectID,
		ContractorID:  "contr-12",
		AppointmentAt: time.Now().UTC().Add(24 * time.Hour),
		AmountCents:   2500,
	})
	if err != nil {
		t.Fatalf("create deposit failed: %v", err)
	}
	if _, err := f.service.CaptureEstimateDeposit(ctx,
		actorWithKey("cust-12", domain.RoleCustomer, "dep-cap-2"),
		application.CaptureEstimateDepositInput{DepositID: deposit.DepositID}); err != nil {
		t.Fatalf("capture deposit failed: %v", err)
	}

	refunded, err := f.service.MarkEstimateAttendance(ctx, customer, application.MarkEstimateAttendanceInput{
		DepositID:  deposit.DepositID,
		Attendance: "contractor_no_show",
	})
	if err != nil {
		t.Fatalf("mark no-show failed: %v", err)
	}
	if refunded.Status != domain.DepositStatusRefunded || refunded.RefundedAt == nil {
		t.Errorf("deposit = %+v, want automatic REFUNDED", refunded)
	}

	ledger := f.ledger(t, ctx, project.ProjectID)
	if countEvents(ledger, domain.EventDepositRefunded) != 1 {
		t.Errorf("expected one deposit refund event")
	}
}

func TestReliabilitySignalsAndRecompute(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	admin := actor("admin-1", domain.RoleAdmin)

	// Unknown contractors read as a fresh all-neutral record.
	fresh, err := f.service.GetReliability(ctx, actor("cust-1", domain.RoleCustomer), "contr-unknown")
	if err != nil {
		t.Fatalf("get reliability failed: %v", err)
	}
	if fresh.Score != 50 {
		t.Errorf("fresh score = %v, want neutral 50", fresh.Score)
	}

	score, err := f.service.RecordReliabilitySignals(ctx, admin, application.ReliabilitySignalsInput{
		ContractorID: "contr-13",
		Delta: domain.ReliabilityCounters{
			AppointmentsTotal:    10,
			AppointmentsAttended: 10,
			CompletionsTotal:     8,
			CompletionsOnTime:    8,
			ProofsTotal:          4,
			ProofsComplete:       4,
		},
		Cause: "import",
	})
	if err != nil {
		t.Fatalf("record signals failed: %v", err)
	}
	if score.Score <= 50 {
		t.Errorf("score = %v, want above neutral after perfect counters", score.Score)
	}
	if !score.Eligibility.LargeJobs {
		t.Errorf("eligibility = %+v, want large jobs unlocked", score.Eligibility)
	}

	// A later delta merges into the lifetime counters.
	merged, err := f.service.RecordReliabilitySignals(ctx, admin, application.ReliabilitySignalsInput{
		ContractorID: "contr-13",
		Delta:        domain.ReliabilityCounters{AppointmentsTotal: 2},
		Cause:        "missed_appointments",
	})
	if err != nil {
		t.Fatalf("record delta failed: %v", err)
	}
	if merged.Counters.AppointmentsTotal != 12 || merged.Counters.AppointmentsAttended != 10 {
		t.Errorf("merged counters = %+v, want 12 total / 10 attended", merged.Counters)
	}
	if merged.Score >= score.Score {
		t.Errorf("missed appointments did not lower the score: %v >= %v", merged.Score, score.Score)
	}

	sweep, err := f.service.RecomputeReliabilityScores(ctx, admin)
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if sweep.Executed != 1 {
		t.Errorf("recompute executed %d, want 1", sweep.Executed)
	}

	if _, err := f.service.RecordReliabilitySignals(ctx, actor("contr-13", domain.RoleContractor), application.ReliabilitySignalsInput{
		ContractorID: "contr-13",
		Delta:        domain.ReliabilityCounters{AppointmentsAttended: 100, AppointmentsTotal: 100},
	}); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("self-reported signals: got %v, want ErrPermissionDenied", err)
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	contractor := actor("contr-14", domain.RoleContractor)

	sub, err := f.service.CreateSubscription(ctx, contractor, application.CreateSubscriptionInput{PlanID: "contractor_pro"})
	if err != nil {
		t.Fatalf("create subscription failed: %v", err)
	}
	if sub.Status != domain.SubscriptionStatusActive {
		t.Fatalf("status = %s, want active", sub.Status)
	}

	// The first cycle is invoiced onto the contractor's billing stream.
	billing, err := f.repos.Ledger().ListByProject(ctx, "contr-14")
	if err != nil {
		t.Fatalf("list billing stream failed: %v", err)
	}
	if countEvents(billing, domain.EventSubscriptionInvoicePosted) != 1 {
		t.Fatalf("expected one subscription invoice event, got %d", countEvents(billing, domain.EventSubscriptionInvoicePosted))
	}
	if billing[0].AmountCents != 2900 || billing[0].ProviderRef == "" {
		t.Errorf("invoice event = %+v, want 2900 with a provider ref", billing[0])
	}

	// Re-subscribing to the current plan returns the existing subscription.
	same, err := f.service.CreateSubscription(ctx, contractor, application.CreateSubscriptionInput{PlanID: "contractor_pro"})
	if err != nil {
		t.Fatalf("repeat subscribe failed: %v", err)
	}
	if same.SubscriptionID != sub.SubscriptionID {
		t.Errorf("repeat subscribe created a new subscription")
	}

	// Subscribing to a different plan switches instead of stacking.
	switched, err := f.service.CreateSubscription(ctx, contractor, application.CreateSubscriptionInput{PlanID: "contractor_elite"})
	if err != nil {
		t.Fatalf("switch plan failed: %v", err)
	}
	if switched.SubscriptionID != sub.SubscriptionID || switched.PlanID != "contractor_elite" {
		t.Errorf("switched = %+v, want same subscription on new plan", switched)
	}

	// The plan switch bills the new plan's cycle.
	billing, err = f.repos.Ledger().ListByProject(ctx, "contr-14")
	if err != nil {
		t.Fatalf("list billing stream failed: %v", err)
	}
	if countEvents(billing, domain.EventSubscriptionInvoicePosted) != 2 {
		t.Errorf("expected two subscription invoice events, got %d", countEvents(billing, domain.EventSubscriptionInvoicePosted))
	}
	if last := billing[len(billing)-1]; last.AmountCents != 4900 {
		t.Errorf("switch invoice = %d, want 4900", last.AmountCents)
	}

	cancelled, err := f.service.CancelSubscription(ctx, contractor)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != domain.SubscriptionStatusCancelled || cancelled.CancelledAt == nil {
		t.Errorf("cancelled = %+v, want cancelled status", cancelled)
	}
	if _, err := f.service.CancelSubscription(ctx, contractor); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cancel without active plan: got %v, want ErrNotFound", err)
	}
}

func TestConciergeIntakeFee(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	customer := actor("cust-15", domain.RoleCustomer)

	project, err := f.service.CreateProject(ctx, customer, application.CreateProjectInput{
		Category: "landscaping", Scope: "full yard redesign",
	})
	if err != nil {
		t.Fatalf("create project failed: %v", err)
	}

	admin := actorWithKey("admin-1", domain.RoleAdmin, "concierge-1")
	event, err := f.service.PostConciergeIntakeFee(ctx, admin, application.ConciergeIntakeFeeInput{
		ProjectID: project.ProjectID,
		Note:      "white-glove intake",
	})
	if err != nil {
		t.Fatalf("post intake fee failed: %v", err)
	}
	if event.EventType != domain.EventConciergeIntakeFee || event.AmountCents != 4900 {
		t.Errorf("event = %+v, want concierge fee of 4900", event)
	}

	// Replay on the same key returns the original ledger row.
	replay, err := f.service.PostConciergeIntakeFee(ctx, admin, application.ConciergeIntakeFeeInput{
		ProjectID: project.ProjectID,
		Note:      "white-glove intake",
	})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if replay.Seq != event.Seq {
		t.Errorf("replay returned a different ledger row")
	}
	ledger := f.ledger(t, ctx, project.ProjectID)
	if countEvents(ledger, domain.EventConciergeIntakeFee) != 1 {
		t.Errorf("expected exactly one intake fee event")
	}

	if _, err := f.service.PostConciergeIntakeFee(ctx,
		actorWithKey("cust-15", domain.RoleCustomer, "concierge-2"),
		application.ConciergeIntakeFeeInput{ProjectID: project.ProjectID}); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("customer posting intake fee: got %v, want ErrPermissionDenied", err)
	}
}

func TestPlatformConfigUpdate(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	admin := actor("admin-1", domain.RoleAdmin)

	if _, err := f.service.GetPlatformConfig(ctx, actor("cust-1", domain.RoleCustomer)); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("non-admin config read: got %v, want ErrPermissionDenied", err)
	}

	cfg, err := f.service.GetPlatformConfig(ctx, admin)
	if err != nil {
		t.Fatalf("get config failed: %v", err)
	}

	cfg.ApprovalWindowDays = 10
	cfg.AdminAttentionDays = 20
	updated, err := f.service.UpdatePlatformConfig(ctx, admin, cfg)
	if err != nil {
		t.Fatalf("update config failed: %v", err)
	}
	if updated.ApprovalWindowDays != 10 {
		t.Errorf("approval window = %d, want 10", updated.ApprovalWindowDays)
	}

	// Attention window shorter than the approval window is rejected.
	bad := updated
	bad.AdminAttentionDays = 5
	if _, err := f.service.UpdatePlatformConfig(ctx, admin, bad); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("inverted windows: got %v, want ErrInvalidInput", err)
	}

	bad = updated
	bad.FeeTiers = nil
	if _, err := f.service.UpdatePlatformConfig(ctx, admin, bad); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty tiers: got %v, want ErrInvalidInput", err)
	}
}

func TestOutboxWorkerDrainsEnqueuedEvents(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.fundedProject(t, ctx, "cust-16", "contr-16", 40000)

	pending := f.repos.UnpublishedEvents()
	if len(pending) == 0 {
		t.Fatalf("funding enqueued no outbox events")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	worker := events.NewOutboxWorker(logger, f.repos.Outbox(), events.NewLoggingPublisher(logger), 0, 0, 0, 0)
	if err := worker.ProcessOnce(ctx); err != nil {
		t.Fatalf("outbox process failed: %v", err)
	}
	if remaining := f.repos.UnpublishedEvents(); len(remaining) != 0 {
		t.Errorf("%d outbox events still unpublished after drain", len(remaining))
	}
}
