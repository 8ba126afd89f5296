package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trustvibe/escrow-service/internal/contracts"
	"github.com/trustvibe/escrow-service/internal/domain"
	"github.com/trustvibe/escrow-service/internal/ports"
)

// FundHold places the agreement price on hold with the payment provider and
// moves the project to FUNDED_HELD. Requires an idempotency key.
func (s *Service) FundHold(ctx context.Context, actor Actor, in FundHoldInput) (domain.Project, error) {
	if err := s.authorize(actor, "fund_hold"); err != nil {
		return domain.Project{}, err
	}
	if err := requireIdempotencyKey(actor); err != nil {
		return domain.Project{}, err
	}

	requestHash := hashPayload(in)
	var replay domain.Project
	if done, err := s.replayIdempotent(ctx, actor.IdempotencyKey, requestHash, &replay); err != nil {
		return domain.Project{}, err
	} else if done {
		return replay, nil
	}

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return domain.Project{}, err
	}
	if project.CustomerID != actor.SubjectID {
		return domain.Project{}, fmt.Errorf("%w: only the project owner may fund", domain.ErrPermissionDenied)
	}
	if err := s.checkState("fund_hold", project); err != nil {
		return domain.Project{}, err
	}

	agreement, err := s.agreements.GetByProject(ctx, project.ProjectID)
	if err != nil {
		return domain.Project{}, err
	}
	if !agreement.FullyAccepted() {
		return domain.Project{}, fmt.Errorf("%w: agreement not accepted by both parties", domain.ErrFailedPrecondition)
	}

	cfg, err := s.snapshot(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Project{}, err
	}

	hold, err := s.provider(cfg).CreateHold(ctx, ports.HoldRequest{
		ProjectID:   project.ProjectID,
		CustomerID:  project.CustomerID,
		AmountCents: agreement.PriceCents,
		Description: fmt.Sprintf("escrow hold for project %s", project.ProjectID),
	})
	if err != nil {
		return domain.Project{}, fmt.Errorf("create hold: %w", err)
	}

	project.HeldAmountCents = agreement.PriceCents
	project.ProviderHoldRef = hold.ProviderRef
	updated, err := s.transitionProject(ctx, project, domain.StateFundedHeld)
	if err != nil {
		return domain.Project{}, err
	}

	if err := s.appendLedger(ctx, domain.LedgerEvent{
		ProjectID:   project.ProjectID,
		EventType:   domain.EventHoldCreated,
		AmountCents: agreement.PriceCents,
		ActorID:     actor.SubjectID,
		ActorRole:   domain.NormalizeRole(actor.Role),
		ProviderRef: hold.ProviderRef,
	}); err != nil {
		return domain.Project{}, err
	}

	s.publishProjectState(ctx, actor, "escrow.project.funded", updated)
	s.completeIdempotency(ctx, actor.IdempotencyKey, updated)
	return updated, nil
}

// StartWork moves a funded project into IN_PROGRESS.
func (s *Service) StartWork(ctx context.Context, actor Actor, projectID string) (domain.Project, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if actor.SubjectID != project.ContractorID {
		return domain.Project{}, fmt.Errorf("%w: only the contractor may start work", domain.ErrPermissionDenied)
	}
	if project.State != domain.StateFundedHeld {
		return domain.Project{}, fmt.Errorf("%w: project %s is %s", domain.ErrFailedPrecondition, projectID, project.State)
	}
	return s.transitionProject(ctx, project, domain.StateInProgress)
}

// RequestCompletion marks the work as done and starts the approval window.
func (s *Service) RequestCompletion(ctx context.Context, actor Actor, in RequestCompletionInput) (domain.Project, error) {
	if err := s.authorize(actor, "request_completion"); err != nil {
		return domain.Project{}, err
	}
	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return domain.Project{}, err
	}
	if actor.SubjectID != project.ContractorID {
		return domain.Project{}, fmt.Errorf("%w: only the project contractor may request completion", domain.ErrPermissionDenied)
	}
	if err := s.checkState("request_completion", project); err != nil {
		return domain.Project{}, err
	}

	now := s.nowFn()
	project.CompletionRequestedAt = &now
	updated, err := s.transitionProject(ctx, project, domain.StateCompletionRequested)
	if err != nil {
		return domain.Project{}, err
	}
	s.publishProjectState(ctx, actor, "escrow.project.completion_requested", updated)
	return updated, nil
}

// ApproveRelease releases the full held amount to the contractor net of the
// platform fee. The provider calls run before any state is persisted, so a
// provider failure leaves the project untouched in COMPLETION_REQUESTED.
func (s *Service) ApproveRelease(ctx context.Context, actor Actor, in ApproveReleaseInput) (OutcomeResult, error) {
	if err := s.authorize(actor, "approve_release"); err != nil {
		return OutcomeResult{}, err
	}
	if err := requireIdempotencyKey(actor); err != nil {
		return OutcomeResult{}, err
	}

	requestHash := hashPayload(in)
	var replay OutcomeResult
	if done, err := s.replayIdempotent(ctx, actor.IdempotencyKey, requestHash, &replay); err != nil {
		return OutcomeResult{}, err
	} else if done {
		return replay, nil
	}

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return OutcomeResult{}, err
	}
	if project.CustomerID != actor.SubjectID {
		return OutcomeResult{}, fmt.Errorf("%w: only the project owner may approve release", domain.ErrPermissionDenied)
	}
	if err := s.checkState("approve_release", project); err != nil {
		return OutcomeResult{}, err
	}

	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return OutcomeResult{}, err
	}
	result, err := s.executeOutcome(ctx, outcomeRequest{
		project:      project,
		actor:        actor,
		releaseCents: project.HeldAmountCents,
		cause:        "customer_approval",
		approvalMode: true,
	})
	if err != nil {
		return OutcomeResult{}, err
	}
	s.completeIdempotency(ctx, actor.IdempotencyKey, result)
	return result, nil
}

// GetLedger returns the project's ledger events in sequence order.
func (s *Service) GetLedger(ctx context.Context, actor Actor, projectID string) ([]domain.LedgerEvent, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.requirePartyOrAdmin(actor, project); err != nil {
		return nil, err
	}
	return s.ledger.ListByProject(ctx, projectID)
}

// GetBalance folds the ledger into the current escrow balance.
func (s *Service) GetBalance(ctx context.Context, actor Actor, projectID string) (domain.EscrowBalance, error) {
	events, err := s.GetLedger(ctx, actor, projectID)
	if err != nil {
		return domain.EscrowBalance{}, err
	}
	return domain.FoldBalance(projectID, events, s.nowFn()), nil
}

// CreateMilestones splits a funded project into partial-release slices. The
// slice amounts must sum exactly to the held amount.
func (s *Service) CreateMilestones(ctx context.Context, actor Actor, in CreateMilestonesInput) ([]domain.Milestone, error) {
	if err := s.authorize(actor, "create_milestones"); err != nil {
		return nil, err
	}
	cfg, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.MilestonesEnabled {
		return nil, fmt.Errorf("%w: milestones are not enabled", domain.ErrFailedPrecondition)
	}
	if len(in.Milestones) == 0 {
		return nil, fmt.Errorf("%w: at least one milestone is required", domain.ErrInvalidInput)
	}

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.CustomerID != actor.SubjectID {
		return nil, fmt.Errorf("%w: only the project owner may create milestones", domain.ErrPermissionDenied)
	}
	if err := s.checkState("create_milestones", project); err != nil {
		return nil, err
	}

	existing, err := s.milestones.ListByProject(ctx, project.ProjectID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: milestones already defined", domain.ErrConflict)
	}

	var total int64
	now := s.nowFn()
	batch := make([]domain.Milestone, 0, len(in.Milestones))
	for _, m := range in.Milestones {
		if m.AmountCents <= 0 {
			return nil, fmt.Errorf("%w: milestone amounts must be positive", domain.ErrInvalidInput)
		}
		total += m.AmountCents
		batch = append(batch, domain.Milestone{
			MilestoneID: uuid.NewString(),
			ProjectID:   project.ProjectID,
			Title:       m.Title,
			AmountCents: m.AmountCents,
			Status:      domain.MilestoneStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	if total != project.HeldAmountCents {
		return nil, fmt.Errorf("%w: milestone amounts sum to %d, held amount is %d",
			domain.ErrInvalidInput, total, project.HeldAmountCents)
	}

	if err := s.milestones.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("create milestones: %w", err)
	}
	return batch, nil
}

// ApproveMilestone releases one milestone's amount to the contractor. The
// final milestone release settles the project into RELEASED_PAID; earlier
// releases deduct from the hold without a state change.
func (s *Service) ApproveMilestone(ctx context.Context, actor Actor, in ApproveMilestoneInput) (OutcomeResult, error) {
	if err := s.authorize(actor, "approve_milestone"); err != nil {
		return OutcomeResult{}, err
	}
	if err := requireIdempotencyKey(actor); err != nil {
		return OutcomeResult{}, err
	}

	requestHash := hashPayload(in)
	var replay OutcomeResult
	if done, err := s.replayIdempotent(ctx, actor.IdempotencyKey, requestHash, &replay); err != nil {
		return OutcomeResult{}, err
	} else if done {
		return replay, nil
	}

	cfg, err := s.snapshot(ctx)
	if err != nil {
		return OutcomeResult{}, err
	}
	if !cfg.MilestonesEnabled {
		return OutcomeResult{}, fmt.Errorf("%w: milestones are not enabled", domain.ErrFailedPrecondition)
	}

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return OutcomeResult{}, err
	}
	if project.CustomerID != actor.SubjectID {
		return OutcomeResult{}, fmt.Errorf("%w: only the project owner may approve milestones", domain.ErrPermissionDenied)
	}
	if err := s.checkState("approve_milestone", project); err != nil {
		return OutcomeResult{}, err
	}

	milestone, err := s.milestones.GetByID(ctx, in.MilestoneID)
	if err != nil {
		return OutcomeResult{}, err
	}
	if milestone.ProjectID != project.ProjectID {
		return OutcomeResult{}, fmt.Errorf("%w: milestone does not belong to project", domain.ErrInvalidInput)
	}
	if milestone.Status != domain.MilestoneStatusPending {
		return OutcomeResult{}, fmt.Errorf("%w: milestone is %s", domain.ErrFailedPrecondition, milestone.Status)
	}
	if milestone.AmountCents > project.HeldAmountCents {
		return OutcomeResult{}, fmt.Errorf("%w: milestone exceeds remaining held amount", domain.ErrFailedPrecondition)
	}

	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return OutcomeResult{}, err
	}

	// The last milestone settles the whole project. Approving it implies the
	// work is complete, so the project first passes through
	// COMPLETION_REQUESTED and the transition table holds.
	final := milestone.AmountCents == project.HeldAmountCents
	if final && project.State != domain.StateCompletionRequested {
		now := s.nowFn()
		project.CompletionRequestedAt = &now
		project, err = s.transitionProject(ctx, project, domain.StateCompletionRequested)
		if err != nil {
			return OutcomeResult{}, err
		}
	}
	result, err := s.executeOutcome(ctx, outcomeRequest{
		project:      project,
		actor:        actor,
		releaseCents: milestone.AmountCents,
		cause:        "milestone_approval",
		approvalMode: final,
		keepState:    !final,
	})
	if err != nil {
		return OutcomeResult{}, err
	}

	now := s.nowFn()
	milestone.Status = domain.MilestoneStatusReleased
	milestone.ReleasedAt = &now
	milestone.UpdatedAt = now
	if err := s.milestones.Update(ctx, milestone); err != nil {
		return OutcomeResult{}, fmt.Errorf("update milestone: %w", err)
	}

	s.completeIdempotency(ctx, actor.IdempotencyKey, result)
	return result, nil
}

// outcomeRequest is the internal input to the single money-disbursement choke
// point. All release/refund paths build one of these.
type outcomeRequest struct {
	project domain.Project
	// caseID links the outcome to the dispute case being settled, if any.
	caseID string
	actor  Actor

	releaseCents int64
	refundCents  int64
	cause        string

	// approvalMode selects the happy-path terminal state RELEASED_PAID for a
	// full release instead of the dispute-resolution EXECUTED_RELEASE_FULL.
	approvalMode bool
	// keepState performs the disbursement without a state transition; used for
	// non-final milestone releases.
	keepState bool
	// resolutionRef carries the binding-decision reference for audit details.
	resolutionRef string
}

// executeOutcome is the only code path that disburses held funds. It
// validates the split, calls the provider, classifies the resulting state,
// persists the transition, and writes the ledger rows.
func (s *Service) executeOutcome(ctx context.Context, req outcomeRequest) (OutcomeResult, error) {
	project := req.project
	if req.releaseCents < 0 || req.refundCents < 0 {
		return OutcomeResult{}, fmt.Errorf("%w: outcome amounts must not be negative", domain.ErrInvalidInput)
	}
	if req.releaseCents+req.refundCents == 0 {
		return OutcomeResult{}, fmt.Errorf("%w: outcome must move funds", domain.ErrInvalidInput)
	}
	if req.releaseCents+req.refundCents > project.HeldAmountCents {
		return OutcomeResult{}, fmt.Errorf("%w: outcome %d exceeds held amount %d",
			domain.ErrInvalidInput, req.releaseCents+req.refundCents, project.HeldAmountCents)
	}

	cfg, err := s.snapshot(ctx)
	if err != nil {
		return OutcomeResult{}, err
	}

	// Fee applies to the released portion only; refunds return gross.
	var fee domain.FeeBreakdown
	if req.releaseCents > 0 {
		planID := s.activePlanID(ctx, project.ContractorID)
		tiered, err := domain.CalculateTieredFee(req.releaseCents, cfg.FeeTiers, planID)
		if err != nil {
			return OutcomeResult{}, err
		}
		fee = tiered.Breakdown
	}

	target, releaseEvent, refundEvent := classifyOutcome(project, req)
	if !req.keepState {
		if err := domain.AssertTransition(project.State, target); err != nil {
			return OutcomeResult{}, err
		}
	}

	provider := s.provider(cfg)
	var releaseRef, refundRef string
	if req.releaseCents > 0 {
		res, err := provider.Release(ctx, ports.ReleaseRequest{
			ProviderRef:  project.ProviderHoldRef,
			ContractorID: project.ContractorID,
			AmountCents:  fee.NetPayoutCents,
			FeeCents:     fee.FeeCents,
		})
		if err != nil {
			return OutcomeResult{}, fmt.Errorf("provider release: %w", err)
		}
		releaseRef = res.TransferRef
	}
	if req.refundCents > 0 {
		res, err := provider.Refund(ctx, ports.RefundRequest{
			ProviderRef: project.ProviderHoldRef,
			CustomerID:  project.CustomerID,
			AmountCents: req.refundCents,
		})
		if err != nil {
			return OutcomeResult{}, fmt.Errorf("provider refund: %w", err)
		}
		refundRef = res.RefundRef
	}

	now := s.nowFn()
	project.HeldAmountCents -= req.releaseCents + req.refundCents
	var updated domain.Project
	if req.keepState {
		project.UpdatedAt = now
		updated, err = s.projects.Update(ctx, project)
		if err != nil {
			return OutcomeResult{}, fmt.Errorf("update project: %w", err)
		}
	} else {
		updated, err = s.transitionProject(ctx, project, target)
		if err != nil {
			return OutcomeResult{}, err
		}
	}

	actorRole := domain.NormalizeRole(req.actor.Role)
	if req.releaseCents > 0 {
		if err := s.appendLedger(ctx, domain.LedgerEvent{
			ProjectID:   project.ProjectID,
			EventType:   releaseEvent,
			AmountCents: req.releaseCents,
			FeeCents:    fee.FeeCents,
			ActorID:     req.actor.SubjectID,
			ActorRole:   actorRole,
			ProviderRef: releaseRef,
		}); err != nil {
			return OutcomeResult{}, err
		}
	}
	if req.refundCents > 0 {
		if err := s.appendLedger(ctx, domain.LedgerEvent{
			ProjectID:   project.ProjectID,
			EventType:   refundEvent,
			AmountCents: req.refundCents,
			ActorID:     req.actor.SubjectID,
			ActorRole:   actorRole,
			ProviderRef: refundRef,
		}); err != nil {
			return OutcomeResult{}, err
		}
	}
	if fee.FeeCents > 0 {
		if err := s.appendLedger(ctx, domain.LedgerEvent{
			ProjectID:   project.ProjectID,
			EventType:   domain.EventFeeCharged,
			AmountCents: fee.FeeCents,
			ActorID:     req.actor.SubjectID,
			ActorRole:   actorRole,
		}); err != nil {
			return OutcomeResult{}, err
		}
	}
	if err := s.appendLedger(ctx, domain.LedgerEvent{
		ProjectID: project.ProjectID,
		EventType: domain.EventOutcomeExecuted,
		ActorID:   req.actor.SubjectID,
		ActorRole: actorRole,
		Details: details(map[string]any{
			"release_cents":  req.releaseCents,
			"refund_cents":   req.refundCents,
			"fee_cents":      fee.FeeCents,
			"cause":          req.cause,
			"case_id":        req.caseID,
			"resolution_ref": req.resolutionRef,
		}),
	}); err != nil {
		return OutcomeResult{}, err
	}
	if req.cause == "auto_release_sweep" {
		if err := s.appendLedger(ctx, domain.LedgerEvent{
			ProjectID:   project.ProjectID,
			EventType:   domain.EventAutoReleaseExecuted,
			AmountCents: req.releaseCents,
			ActorID:     req.actor.SubjectID,
			ActorRole:   actorRole,
		}); err != nil {
			return OutcomeResult{}, err
		}
	}

	if req.caseID != "" {
		if c, err := s.cases.GetByID(ctx, req.caseID); err == nil && c.Status != domain.CaseStatusClosed {
			c.Status = domain.CaseStatusClosed
			c.ClosedAt = &now
			c.UpdatedAt = now
			_ = s.cases.Update(ctx, c)
		}
	}

	if actorRole == domain.RoleAdmin || actorRole == domain.RoleSystem {
		s.recordAudit(ctx, req.actor, "execute_outcome", "project", project.ProjectID, map[string]any{
			"release_cents":  req.releaseCents,
			"refund_cents":   req.refundCents,
			"cause":          req.cause,
			"resolution_ref": req.resolutionRef,
		})
	}

	s.enqueueEvent(ctx, req.actor, domain.EventOutcomeExecuted, project.ProjectID, contracts.OutcomeExecutedPayload{
		ProjectID:       project.ProjectID,
		CaseID:          req.caseID,
		ReleaseCents:    req.releaseCents,
		RefundCents:     req.refundCents,
		FeeCents:        fee.FeeCents,
		ResultingState:  string(updated.State),
		Cause:           req.cause,
		ExecutedAt:      now.Format(time.RFC3339),
		RemainingCents:  updated.HeldAmountCents,
		ProviderHoldRef: updated.ProviderHoldRef,
	})

	return OutcomeResult{
		Project:      updated,
		ReleaseCents: req.releaseCents,
		RefundCents:  req.refundCents,
		Fee:          fee,
	}, nil
}

// classifyOutcome maps the split onto the resulting state and ledger event
// types. The checks run in precedence order: full release, full refund,
// mixed split, refund-only partial, then release-only partial.
func classifyOutcome(project domain.Project, req outcomeRequest) (domain.ProjectState, string, string) {
	held := project.HeldAmountCents
	switch {
	case req.releaseCents == held && req.refundCents == 0:
		if req.approvalMode {
			return domain.StateReleasedPaid, domain.EventReleaseFull, ""
		}
		return domain.StateExecutedReleaseFull, domain.EventReleaseFull, ""
	case req.refundCents == held && req.releaseCents == 0:
		return domain.StateExecutedRefundFull, "", domain.EventRefundFull
	case req.releaseCents > 0 && req.refundCents > 0:
		return domain.StateExecutedReleasePartial, domain.EventReleasePartial, domain.EventRefundPartial
	case req.releaseCents == 0 && req.refundCents > 0:
		return domain.StateExecutedRefundPartial, "", domain.EventRefundPartial
	default:
		return domain.StateExecutedReleasePartial, domain.EventReleasePartial, ""
	}
}
