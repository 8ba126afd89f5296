package application

import (
	"context"
	"log/slog"

	"github.com/trustvibe/escrow-service/internal/domain"
)

// RunAutoReleaseSweep releases funds for completion requests whose approval
// window passed without a customer response. Runs under the system
// pseudo-actor; each project releases through the same outcome choke point as
// a customer approval.
func (s *Service) RunAutoReleaseSweep(ctx context.Context) (SweepResult, error) {
	cfg, err := s.snapshot(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	batch := cfg.AutoReleaseBatchSize
	if batch <= 0 {
		batch = 200
	}

	actor := s.systemActor()
	now := s.nowFn()
	var out SweepResult

	candidates, err := s.projects.ListByState(ctx, domain.StateCompletionRequested, batch)
	if err != nil {
		return SweepResult{}, err
	}
	for _, project := range candidates {
		out.Scanned++
		if project.CompletionRequestedAt == nil {
			continue
		}
		passed, err := domain.IsApprovalDeadlinePassed(now, *project.CompletionRequestedAt, cfg.ApprovalWindowDays)
		if err != nil || !passed {
			continue
		}

		_, err = s.executeOutcome(ctx, outcomeRequest{
			project:      project,
			actor:        actor,
			releaseCents: project.HeldAmountCents,
			cause:        "auto_release_sweep",
			approvalMode: true,
		})
		if err != nil {
			out.Failed++
			slog.Default().WarnContext(ctx, "auto release failed",
				"service", s.cfg.ServiceName,
				"module", "application",
				"layer", "application",
				"operation", "auto_release_sweep",
				"outcome", "failure",
				"project_id", project.ProjectID,
				"error", err.Error(),
			)
			continue
		}
		out.Executed++
		out.ProjectIDs = append(out.ProjectIDs, project.ProjectID)
	}
	return out, nil
}

// RunAdminAttentionSweep escalates disputes that have been frozen past the
// admin attention window to MANDATORY_REVIEW. No money moves; the flag only
// surfaces the case on the admin queue.
func (s *Service) RunAdminAttentionSweep(ctx context.Context) (SweepResult, error) {
	cfg, err := s.snapshot(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	batch := cfg.AdminAttentionBatchSize
	if batch <= 0 {
		batch = 200
	}

	actor := s.systemActor()
	now := s.nowFn()
	var out SweepResult

	cases, err := s.cases.ListByStatus(ctx, domain.CaseStatusOpen, batch)
	if err != nil {
		return SweepResult{}, err
	}
	for _, c := range cases {
		out.Scanned++
		due, err := domain.IsAdminAttentionRequired(now, c.IssueRaisedAt, cfg.AdminAttentionDays)
		if err != nil || !due {
			continue
		}

		c.Status = domain.CaseStatusMandatoryReview
		c.UpdatedAt = now
		if err := s.cases.Update(ctx, c); err != nil {
			out.Failed++
			continue
		}
		out.Executed++
		out.ProjectIDs = append(out.ProjectIDs, c.ProjectID)
		s.recordAudit(ctx, actor, "admin_attention_escalation", "case", c.CaseID, map[string]any{
			"project_id": c.ProjectID,
		})
	}
	return out, nil
}

// ListMandatoryReviewCases returns the admin queue of escalated disputes.
func (s *Service) ListMandatoryReviewCases(ctx context.Context, actor Actor, limit int) ([]domain.Case, error) {
	role := domain.NormalizeRole(actor.Role)
	if role != domain.RoleAdmin {
		return nil, domain.ErrPermissionDenied
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.cases.ListByStatus(ctx, domain.CaseStatusMandatoryReview, limit)
}
