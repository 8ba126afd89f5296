package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/trustvibe/escrow-service/internal/domain"
	"github.com/trustvibe/escrow-service/internal/ports"
)

// operationPolicy declares an operation's allowed roles and, when non-empty,
// the project states it may run against. Keeping preconditions as data instead
// of inline conditionals makes the capability surface reviewable in one place.
type operationPolicy struct {
	roles  []string
	states []domain.ProjectState
}

var operationPolicies = map[string]operationPolicy{
	"create_project":    {roles: []string{domain.RoleCustomer}},
	"publish_project":   {roles: []string{domain.RoleCustomer}, states: []domain.ProjectState{domain.StateDraft}},
	"cancel_project":    {roles: []string{domain.RoleCustomer, domain.RoleAdmin}},
	"submit_quote":      {roles: []string{domain.RoleContractor}, states: []domain.ProjectState{domain.StateOpenForQuotes}},
	"select_contractor": {roles: []string{domain.RoleCustomer}, states: []domain.ProjectState{domain.StateOpenForQuotes}},
	"accept_agreement":  {roles: []string{domain.RoleCustomer, domain.RoleContractor}},
	"append_change_order": {
		roles:  []string{domain.RoleCustomer, domain.RoleContractor},
		states: []domain.ProjectState{domain.StateContractorSelected, domain.StateAgreementAccepted},
	},
	"fund_hold": {roles: []string{domain.RoleCustomer}, states: []domain.ProjectState{domain.StateAgreementAccepted}},
	"request_completion": {
		roles:  []string{domain.RoleContractor},
		states: []domain.ProjectState{domain.StateFundedHeld, domain.StateInProgress},
	},
	"approve_release": {roles: []string{domain.RoleCustomer}, states: []domain.ProjectState{domain.StateCompletionRequested}},
	"raise_issue_hold": {
		roles:  []string{domain.RoleCustomer},
		states: []domain.ProjectState{domain.StateCompletionRequested, domain.StateInProgress, domain.StateFundedHeld},
	},
	"propose_joint_release": {
		roles:  []string{domain.RoleCustomer, domain.RoleContractor},
		states: []domain.ProjectState{domain.StateIssueRaisedHold, domain.StateResolutionPendingExternal},
	},
	"sign_joint_release": {
		roles:  []string{domain.RoleCustomer, domain.RoleContractor},
		states: []domain.ProjectState{domain.StateIssueRaisedHold, domain.StateResolutionPendingExternal},
	},
	"mark_external_resolution": {
		roles:  []string{domain.RoleCustomer, domain.RoleContractor},
		states: []domain.ProjectState{domain.StateIssueRaisedHold},
	},
	"upload_resolution_document": {
		roles:  []string{domain.RoleCustomer, domain.RoleContractor},
		states: []domain.ProjectState{domain.StateIssueRaisedHold, domain.StateResolutionPendingExternal},
	},
	"admin_execute_outcome": {roles: []string{domain.RoleAdmin}},
	"create_milestones": {
		roles:  []string{domain.RoleCustomer},
		states: []domain.ProjectState{domain.StateFundedHeld, domain.StateInProgress},
	},
	"approve_milestone": {
		roles:  []string{domain.RoleCustomer},
		states: []domain.ProjectState{domain.StateFundedHeld, domain.StateInProgress},
	},
	"create_estimate_deposit":  {roles: []string{domain.RoleCustomer}},
	"capture_estimate_deposit": {roles: []string{domain.RoleCustomer, domain.RoleAdmin}},
	"mark_estimate_attendance": {roles: []string{domain.RoleCustomer, domain.RoleContractor, domain.RoleAdmin}},
	"refund_estimate_deposit":  {roles: []string{domain.RoleCustomer, domain.RoleAdmin}},
	"credit_estimate_deposit":  {roles: []string{domain.RoleCustomer, domain.RoleAdmin}},
	"record_reliability_signals": {roles: []string{domain.RoleAdmin, domain.RoleSystem}},
	"recompute_reliability":      {roles: []string{domain.RoleAdmin, domain.RoleSystem}},
	"onboard_contractor":         {roles: []string{domain.RoleContractor}},
	"create_subscription":        {roles: []string{domain.RoleContractor}},
	"cancel_subscription":        {roles: []string{domain.RoleContractor}},
	"concierge_intake_fee":       {roles: []string{domain.RoleAdmin}},
	"update_platform_config":     {roles: []string{domain.RoleAdmin}},
}

// authorize resolves the calling actor against the operation's role set.
func (s *Service) authorize(actor Actor, operation string) error {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.ErrUnauthenticated
	}
	policy, ok := operationPolicies[operation]
	if !ok {
		return fmt.Errorf("%w: unknown operation %q", domain.ErrPermissionDenied, operation)
	}
	role := domain.NormalizeRole(actor.Role)
	for _, allowed := range policy.roles {
		if role == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q cannot perform %s", domain.ErrPermissionDenied, actor.Role, operation)
}

// checkState verifies the project state is in the operation's allowed set.
func (s *Service) checkState(operation string, project domain.Project) error {
	policy := operationPolicies[operation]
	if len(policy.states) == 0 {
		return nil
	}
	for _, allowed := range policy.states {
		if project.State == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: project %s is %s, operation %s requires one of %v",
		domain.ErrFailedPrecondition, project.ProjectID, project.State, operation, policy.states)
}

// snapshot reads the platform config document once for the operation.
func (s *Service) snapshot(ctx context.Context) (domain.PlatformConfig, error) {
	if s.platformConfig == nil {
		return domain.DefaultPlatformConfig(), nil
	}
	cfg, err := s.platformConfig.Snapshot(ctx)
	if err != nil {
		return domain.PlatformConfig{}, fmt.Errorf("load platform config: %w", err)
	}
	return cfg, nil
}

// provider resolves the payment provider for this operation's snapshot.
// Resolution happens per operation so a flag flip never serves a stale
// provider.
func (s *Service) provider(cfg domain.PlatformConfig) ports.PaymentProvider {
	return s.providerFactory(cfg.PaymentProvider)
}

// requireIdempotencyKey gates money-moving operations.
func requireIdempotencyKey(actor Actor) error {
	if strings.TrimSpace(actor.IdempotencyKey) == "" {
		return domain.ErrIdempotencyRequired
	}
	return nil
}

// replayIdempotent returns the stored response for a repeated request.
// A key reuse with a different payload fails ErrIdempotencyConflict.
func (s *Service) replayIdempotent(ctx context.Context, key, requestHash string, out any) (bool, error) {
	if s.idempotency == nil || strings.TrimSpace(key) == "" {
		return false, nil
	}
	rec, err := s.idempotency.Get(ctx, key)
	if err != nil || rec == nil {
		return false, err
	}
	if rec.RequestHash != requestHash {
		return false, domain.ErrIdempotencyConflict
	}
	if len(rec.ResponseBody) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(rec.ResponseBody, out); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *Service) reserveIdempotency(ctx context.Context, key, requestHash string) error {
	if s.idempotency == nil || strings.TrimSpace(key) == "" {
		return nil
	}
	if err := s.idempotency.Reserve(ctx, key, requestHash, s.nowFn().Add(s.cfg.IdempotencyTTL)); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

func (s *Service) completeIdempotency(ctx context.Context, key string, payload any) {
	if s.idempotency == nil || strings.TrimSpace(key) == "" {
		return
	}
	body, _ := json.Marshal(payload)
	_ = s.idempotency.Complete(ctx, key, 200, body, s.nowFn())
}

func hashPayload(v any) string {
	b, _ := json.Marshal(v)
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// appendLedger writes one immutable ledger row; failures here abort the
// operation because the ledger is the authoritative money history.
func (s *Service) appendLedger(ctx context.Context, event domain.LedgerEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.nowFn()
	}
	_, err := s.ledger.Append(ctx, event)
	return err
}

// recordAudit writes a best-effort audit row for admin or policy-sensitive
// actions. Audit write failures are logged, not surfaced: the ledger row is
// the money-truth, the audit row is the accountability trail.
func (s *Service) recordAudit(ctx context.Context, actor Actor, action, targetType, targetID string, details any) {
	if s.audit == nil {
		return
	}
	detailJSON := ""
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			detailJSON = string(b)
		}
	}
	err := s.audit.Append(ctx, domain.AuditAction{
		ActorID:    actor.SubjectID,
		ActorRole:  domain.NormalizeRole(actor.Role),
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    detailJSON,
		CreatedAt:  s.nowFn(),
	})
	if err != nil {
		slog.Default().WarnContext(ctx, "audit append failed",
			"service", s.cfg.ServiceName,
			"module", "application",
			"layer", "application",
			"operation", action,
			"outcome", "failure",
			"target_id", targetID,
			"error", err.Error(),
		)
	}
}

// activePlanID returns the contractor's active subscription plan, if any.
// Used to resolve tier-level fee overrides.
func (s *Service) activePlanID(ctx context.Context, contractorID string) string {
	if s.subscriptions == nil || contractorID == "" {
		return ""
	}
	sub, err := s.subscriptions.GetActiveByContractor(ctx, contractorID)
	if err != nil {
		return ""
	}
	return sub.PlanID
}

func details(v map[string]any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
