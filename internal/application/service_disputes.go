package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/trustvibe/escrow-service/internal/domain"
)

// RaiseIssueHold freezes the escrow and opens a dispute case. Only the
// customer may raise; the held funds stay untouched until an outcome executes.
func (s *Service) RaiseIssueHold(ctx context.Context, actor Actor, in RaiseIssueHoldInput) (RaiseIssueHoldResult, error) {
	if err := s.authorize(actor, "raise_issue_hold"); err != nil {
		return RaiseIssueHoldResult{}, err
	}
	if strings.TrimSpace(in.Reason) == "" {
		return RaiseIssueHoldResult{}, fmt.Errorf("%w: a reason is required", domain.ErrInvalidInput)
	}

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return RaiseIssueHoldResult{}, err
	}
	if project.CustomerID != actor.SubjectID {
		return RaiseIssueHoldResult{}, fmt.Errorf("%w: only the project owner may raise an issue", domain.ErrPermissionDenied)
	}
	if err := s.checkState("raise_issue_hold", project); err != nil {
		return RaiseIssueHoldResult{}, err
	}

	now := s.nowFn()
	project.IssueRaisedAt = &now
	updated, err := s.transitionProject(ctx, project, domain.StateIssueRaisedHold)
	if err != nil {
		return RaiseIssueHoldResult{}, err
	}

	c := domain.Case{
		CaseID:        uuid.NewString(),
		ProjectID:     project.ProjectID,
		OpenedBy:      actor.SubjectID,
		OpenedByRole:  domain.NormalizeRole(actor.Role),
		Reason:        in.Reason,
		Status:        domain.CaseStatusOpen,
		IssueRaisedAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.cases.Create(ctx, c); err != nil {
		return RaiseIssueHoldResult{}, fmt.Errorf("create case: %w", err)
	}

	s.publishProjectState(ctx, actor, "escrow.project.issue_raised", updated)
	return RaiseIssueHoldResult{Project: updated, Case: c}, nil
}

// MarkExternalResolution records that the parties have taken the dispute to
// an external forum (court or mediation). The escrow stays frozen until a
// binding document arrives.
func (s *Service) MarkExternalResolution(ctx context.Context, actor Actor, projectID string) (domain.Project, error) {
	if err := s.authorize(actor, "mark_external_resolution"); err != nil {
		return domain.Project{}, err
	}
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if !project.IsParty(actor.SubjectID) {
		return domain.Project{}, fmt.Errorf("%w: only project parties may escalate", domain.ErrPermissionDenied)
	}
	if err := s.checkState("mark_external_resolution", project); err != nil {
		return domain.Project{}, err
	}
	return s.transitionProject(ctx, project, domain.StateResolutionPendingExternal)
}

// ProposeJointRelease records a release/refund split for both-party signing.
// The split must account for the entire held amount.
func (s *Service) ProposeJointRelease(ctx context.Context, actor Actor, in ProposeJointReleaseInput) (domain.JointReleaseProposal, error) {
	if err := s.authorize(actor, "propose_joint_release"); err != nil {
		return domain.JointReleaseProposal{}, err
	}
	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return domain.JointReleaseProposal{}, err
	}
	if !project.IsParty(actor.SubjectID) {
		return domain.JointReleaseProposal{}, fmt.Errorf("%w: only project parties may propose", domain.ErrPermissionDenied)
	}
	if err := s.checkState("propose_joint_release", project); err != nil {
		return domain.JointReleaseProposal{}, err
	}
	if in.ReleaseCents < 0 || in.RefundCents < 0 {
		return domain.JointReleaseProposal{}, fmt.Errorf("%w: split amounts must not be negative", domain.ErrInvalidInput)
	}
	if in.ReleaseCents+in.RefundCents != project.HeldAmountCents {
		return domain.JointReleaseProposal{}, fmt.Errorf("%w: split %d does not equal held amount %d",
			domain.ErrInvalidInput, in.ReleaseCents+in.RefundCents, project.HeldAmountCents)
	}

	c, err := s.cases.GetOpenByProject(ctx, project.ProjectID)
	if err != nil {
		return domain.JointReleaseProposal{}, err
	}

	now := s.nowFn()
	proposal := domain.JointReleaseProposal{
		ProposalID:   uuid.NewString(),
		CaseID:       c.CaseID,
		ProjectID:    project.ProjectID,
		ProposedBy:   actor.SubjectID,
		ReleaseCents: in.ReleaseCents,
		RefundCents:  in.RefundCents,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// Proposing implies signing.
	switch actor.SubjectID {
	case project.CustomerID:
		proposal.CustomerSignedAt = &now
	case project.ContractorID:
		proposal.ContractorSignedAt = &now
	}
	if err := s.proposals.Create(ctx, proposal); err != nil {
		return domain.JointReleaseProposal{}, fmt.Errorf("create proposal: %w", err)
	}

	if err := s.appendLedger(ctx, domain.LedgerEvent{
		ProjectID: project.ProjectID,
		EventType: domain.EventJointReleaseProposed,
		ActorID:   actor.SubjectID,
		ActorRole: domain.NormalizeRole(actor.Role),
		Details: details(map[string]any{
			"proposal_id":   proposal.ProposalID,
			"release_cents": in.ReleaseCents,
			"refund_cents":  in.RefundCents,
		}),
	}); err != nil {
		return domain.JointReleaseProposal{}, err
	}
	return proposal, nil
}

// SignJointRelease adds the caller's signature. The second signature executes
// the proposed split through the outcome choke point. Requires an idempotency
// key since the second signature moves money.
func (s *Service) SignJointRelease(ctx context.Context, actor Actor, in SignJointReleaseInput) (SignJointReleaseResult, error) {
	if err := s.authorize(actor, "sign_joint_release"); err != nil {
		return SignJointReleaseResult{}, err
	}
	if err := requireIdempotencyKey(actor); err != nil {
		return SignJointReleaseResult{}, err
	}

	requestHash := hashPayload(in)
	var replay SignJointReleaseResult
	if done, err := s.replayIdempotent(ctx, actor.IdempotencyKey, requestHash, &replay); err != nil {
		return SignJointReleaseResult{}, err
	} else if done {
		return replay, nil
	}

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return SignJointReleaseResult{}, err
	}
	if !project.IsParty(actor.SubjectID) {
		return SignJointReleaseResult{}, fmt.Errorf("%w: only project parties may sign", domain.ErrPermissionDenied)
	}
	if err := s.checkState("sign_joint_release", project); err != nil {
		return SignJointReleaseResult{}, err
	}

	proposal, err := s.proposals.GetByID(ctx, in.ProposalID)
	if err != nil {
		return SignJointReleaseResult{}, err
	}
	if proposal.ProjectID != project.ProjectID {
		return SignJointReleaseResult{}, fmt.Errorf("%w: proposal does not belong to project", domain.ErrInvalidInput)
	}
	if proposal.ExecutedAt != nil {
		return SignJointReleaseResult{}, fmt.Errorf("%w: proposal already executed", domain.ErrFailedPrecondition)
	}
	// The hold may have changed since propose time (milestone release,
	// partial outcome). A stale split must be re-proposed.
	if proposal.ReleaseCents+proposal.RefundCents != project.HeldAmountCents {
		return SignJointReleaseResult{}, fmt.Errorf("%w: proposal split no longer matches held amount", domain.ErrFailedPrecondition)
	}

	now := s.nowFn()
	switch actor.SubjectID {
	case project.CustomerID:
		if proposal.CustomerSignedAt != nil {
			return SignJointReleaseResult{}, fmt.Errorf("%w: already signed", domain.ErrFailedPrecondition)
		}
		proposal.CustomerSignedAt = &now
	case project.ContractorID:
		if proposal.ContractorSignedAt != nil {
			return SignJointReleaseResult{}, fmt.Errorf("%w: already signed", domain.ErrFailedPrecondition)
		}
		proposal.ContractorSignedAt = &now
	}
	proposal.UpdatedAt = now
	if err := s.proposals.Update(ctx, proposal); err != nil {
		return SignJointReleaseResult{}, fmt.Errorf("update proposal: %w", err)
	}

	if err := s.appendLedger(ctx, domain.LedgerEvent{
		ProjectID: project.ProjectID,
		EventType: domain.EventJointReleaseSigned,
		ActorID:   actor.SubjectID,
		ActorRole: domain.NormalizeRole(actor.Role),
		Details:   details(map[string]any{"proposal_id": proposal.ProposalID}),
	}); err != nil {
		return SignJointReleaseResult{}, err
	}

	result := SignJointReleaseResult{Proposal: proposal}
	if proposal.FullySigned() {
		if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
			return SignJointReleaseResult{}, err
		}
		// A fully signed proposal is itself a settlement record. When the
		// dispute sits in external resolution, the only legal exit runs
		// through RESOLUTION_SUBMITTED; the hop stays in memory so the
		// project row persists once, after the provider call succeeds.
		if project.State == domain.StateResolutionPendingExternal {
			if err := domain.AssertTransition(project.State, domain.StateResolutionSubmitted); err != nil {
				return SignJointReleaseResult{}, err
			}
			project.State = domain.StateResolutionSubmitted
		}
		outcome, err := s.executeOutcome(ctx, outcomeRequest{
			project:      project,
			caseID:       proposal.CaseID,
			actor:        actor,
			releaseCents: proposal.ReleaseCents,
			refundCents:  proposal.RefundCents,
			cause:        "joint_release",
		})
		if err != nil {
			return SignJointReleaseResult{}, err
		}
		executedAt := s.nowFn()
		proposal.ExecutedAt = &executedAt
		proposal.UpdatedAt = executedAt
		if err := s.proposals.Update(ctx, proposal); err != nil {
			return SignJointReleaseResult{}, fmt.Errorf("update proposal: %w", err)
		}
		result.Proposal = proposal
		result.Outcome = &outcome
		s.completeIdempotency(ctx, actor.IdempotencyKey, result)
	}
	return result, nil
}

// UploadResolutionDocument attaches a binding external decision to the open
// case and moves the project to RESOLUTION_SUBMITTED, ready for admin
// execution.
func (s *Service) UploadResolutionDocument(ctx context.Context, actor Actor, in UploadResolutionDocumentInput) (domain.Case, error) {
	if err := s.authorize(actor, "upload_resolution_document"); err != nil {
		return domain.Case{}, err
	}
	if strings.TrimSpace(in.DocRef) == "" {
		return domain.Case{}, fmt.Errorf("%w: a document reference is required", domain.ErrInvalidInput)
	}
	switch in.DocKind {
	case domain.ResolutionDocCourtOrder, domain.ResolutionDocMediatorDecision, domain.ResolutionDocSignedSettlement:
	default:
		return domain.Case{}, fmt.Errorf("%w: unknown resolution document kind %q", domain.ErrInvalidInput, in.DocKind)
	}

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return domain.Case{}, err
	}
	if !project.IsParty(actor.SubjectID) {
		return domain.Case{}, fmt.Errorf("%w: only project parties may submit resolutions", domain.ErrPermissionDenied)
	}
	if err := s.checkState("upload_resolution_document", project); err != nil {
		return domain.Case{}, err
	}

	c, err := s.cases.GetOpenByProject(ctx, project.ProjectID)
	if err != nil {
		return domain.Case{}, err
	}

	now := s.nowFn()
	c.ResolutionDocRef = in.DocRef
	c.ResolutionDocKind = in.DocKind
	c.SubmittedBy = actor.SubjectID
	c.UpdatedAt = now
	if err := s.cases.Update(ctx, c); err != nil {
		return domain.Case{}, fmt.Errorf("update case: %w", err)
	}

	if _, err := s.transitionProject(ctx, project, domain.StateResolutionSubmitted); err != nil {
		return domain.Case{}, err
	}

	if err := s.appendLedger(ctx, domain.LedgerEvent{
		ProjectID: project.ProjectID,
		EventType: domain.EventExternalResolutionReceived,
		ActorID:   actor.SubjectID,
		ActorRole: domain.NormalizeRole(actor.Role),
		Details:   details(map[string]any{"doc_ref": in.DocRef, "doc_kind": in.DocKind}),
	}); err != nil {
		return domain.Case{}, err
	}
	return c, nil
}

// AdminExecuteOutcome disburses held funds per a binding external decision.
// The case must carry a resolution document reference, or the admin must
// supply one with the execution request.
func (s *Service) AdminExecuteOutcome(ctx context.Context, actor Actor, in AdminExecuteOutcomeInput) (OutcomeResult, error) {
	if err := s.authorize(actor, "admin_execute_outcome"); err != nil {
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
	switch project.State {
	case domain.StateIssueRaisedHold, domain.StateResolutionPendingExternal, domain.StateResolutionSubmitted:
	default:
		return OutcomeResult{}, fmt.Errorf("%w: project %s is %s, admin execution requires a frozen dispute",
			domain.ErrFailedPrecondition, project.ProjectID, project.State)
	}

	c, err := s.cases.GetOpenByProject(ctx, project.ProjectID)
	if err != nil {
		return OutcomeResult{}, err
	}
	resolutionRef := c.ResolutionDocRef
	if resolutionRef == "" {
		resolutionRef = strings.TrimSpace(in.ResolutionRef)
	}
	if resolutionRef == "" {
		return OutcomeResult{}, fmt.Errorf("%w: a binding resolution reference is required", domain.ErrFailedPrecondition)
	}

	// Admin execution from ISSUE_RAISED_HOLD or RESOLUTION_PENDING_EXTERNAL
	// routes through RESOLUTION_SUBMITTED. The hop stays in memory: a failed
	// provider call must leave the stored project untouched, so the row
	// persists once, inside the outcome execution.
	if project.State != domain.StateResolutionSubmitted {
		if err := domain.AssertTransition(project.State, domain.StateResolutionSubmitted); err != nil {
			return OutcomeResult{}, err
		}
		project.State = domain.StateResolutionSubmitted
	}

	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return OutcomeResult{}, err
	}
	result, err := s.executeOutcome(ctx, outcomeRequest{
		project:       project,
		caseID:        c.CaseID,
		actor:         actor,
		releaseCents:  in.ReleaseCents,
		refundCents:   in.RefundCents,
		cause:         "admin_resolution",
		resolutionRef: resolutionRef,
	})
	if err != nil {
		return OutcomeResult{}, err
	}
	s.completeIdempotency(ctx, actor.IdempotencyKey, result)
	return result, nil
}

// GetCase returns the project's open case for its parties or an admin.
func (s *Service) GetCase(ctx context.Context, actor Actor, projectID string) (domain.Case, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return domain.Case{}, err
	}
	if err := s.requirePartyOrAdmin(actor, project); err != nil {
		return domain.Case{}, err
	}
	return s.cases.GetOpenByProject(ctx, projectID)
}
