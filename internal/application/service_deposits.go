package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/trustvibe/escrow-service/internal/domain"
	"github.com/trustvibe/escrow-service/internal/ports"
)

// CreateEstimateDeposit opens a pre-engagement hold tied to an estimate
// appointment. The deposit lifecycle is independent of the project escrow
// until the amount is credited to job funding.
func (s *Service) CreateEstimateDeposit(ctx context.Context, actor Actor, in CreateEstimateDepositInput) (domain.EstimateDeposit, error) {
	if err := s.authorize(actor, "create_estimate_deposit"); err != nil {
		return domain.EstimateDeposit{}, err
	}
	cfg, err := s.snapshot(ctx)
	if err != nil {
		return domain.EstimateDeposit{}, err
	}
	if !cfg.EstimateDepositsEnabled {
		return domain.EstimateDeposit{}, fmt.Errorf("%w: estimate deposits are not enabled", domain.ErrFailedPrecondition)
	}
	if in.AmountCents <= 0 {
		return domain.EstimateDeposit{}, fmt.Errorf("%w: deposit amount must be positive", domain.ErrInvalidInput)
	}
	if in.ContractorID == "" {
		return domain.EstimateDeposit{}, fmt.Errorf("%w: contractor is required", domain.ErrInvalidInput)
	}

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return domain.EstimateDeposit{}, err
	}
	if project.CustomerID != actor.SubjectID {
		return domain.EstimateDeposit{}, fmt.Errorf("%w: only the project owner may create a deposit", domain.ErrPermissionDenied)
	}

	now := s.nowFn()
	deposit := domain.EstimateDeposit{
		DepositID:     uuid.NewString(),
		ProjectID:     project.ProjectID,
		CustomerID:    project.CustomerID,
		ContractorID:  in.ContractorID,
		AppointmentAt: in.AppointmentAt.UTC(),
		AmountCents:   in.AmountCents,
		Status:        domain.DepositStatusCreated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.deposits.Create(ctx, deposit); err != nil {
		return domain.EstimateDeposit{}, fmt.Errorf("create deposit: %w", err)
	}

	if err := s.appendLedger(ctx, domain.LedgerEvent{
		ProjectID:   project.ProjectID,
		EventType:   domain.EventDepositCreated,
		AmountCents: in.AmountCents,
		ActorID:     actor.SubjectID,
		ActorRole:   domain.NormalizeRole(actor.Role),
		Details:     details(map[string]any{"deposit_id": deposit.DepositID}),
	}); err != nil {
		return domain.EstimateDeposit{}, err
	}
	return deposit, nil
}

// CaptureEstimateDeposit charges the deposit hold with the payment provider.
// Requires an idempotency key.
func (s *Service) CaptureEstimateDeposit(ctx context.Context, actor Actor, in CaptureEstimateDepositInput) (domain.EstimateDeposit, error) {
	if err := s.authorize(actor, "capture_estimate_deposit"); err != nil {
		return domain.EstimateDeposit{}, err
	}
	if err := requireIdempotencyKey(actor); err != nil {
		return domain.EstimateDeposit{}, err
	}

	requestHash := hashPayload(in)
	var replay domain.EstimateDeposit
	if done, err := s.replayIdempotent(ctx, actor.IdempotencyKey, requestHash, &replay); err != nil {
		return domain.EstimateDeposit{}, err
	} else if done {
		return replay, nil
	}

	deposit, err := s.deposits.GetByID(ctx, in.DepositID)
	if err != nil {
		return domain.EstimateDeposit{}, err
	}
	role := domain.NormalizeRole(actor.Role)
	if role != domain.RoleAdmin && deposit.CustomerID != actor.SubjectID {
		return domain.EstimateDeposit{}, fmt.Errorf("%w: only the deposit owner may capture", domain.ErrPermissionDenied)
	}
	if !domain.CanTransitionDeposit(deposit.Status, domain.DepositStatusCaptured) {
		return domain.EstimateDeposit{}, fmt.Errorf("%w: deposit is %s", domain.ErrFailedPrecondition, deposit.Status)
	}

	cfg, err := s.snapshot(ctx)
	if err != nil {
		return domain.EstimateDeposit{}, err
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.EstimateDeposit{}, err
	}

	hold, err := s.provider(cfg).CreateHold(ctx, ports.HoldRequest{
		ProjectID:   deposit.ProjectID,
		CustomerID:  deposit.CustomerID,
		AmountCents: deposit.AmountCents,
		Description: fmt.Sprintf("estimate deposit %s", deposit.DepositID),
	})
	if err != nil {
		return domain.EstimateDeposit{}, fmt.Errorf("create deposit hold: %w", err)
	}

	now := s.nowFn()
	deposit.Status = domain.DepositStatusCaptured
	deposit.ProviderRef = hold.ProviderRef
	deposit.UpdatedAt = now
	if err := s.deposits.Update(ctx, deposit); err != nil {
		return domain.EstimateDeposit{}, fmt.Errorf("update deposit: %w", err)
	}

	if err := s.appendLedger(ctx, domain.LedgerEvent{
		ProjectID:   deposit.ProjectID,
		EventType:   domain.EventDepositCaptured,
		AmountCents: deposit.AmountCents,
		ActorID:     actor.SubjectID,
		ActorRole:   role,
		ProviderRef: hold.ProviderRef,
		Details:     details(map[string]any{"deposit_id": deposit.DepositID}),
	}); err != nil {
		return domain.EstimateDeposit{}, err
	}
	s.completeIdempotency(ctx, actor.IdempotencyKey, deposit)
	return deposit, nil
}

// MarkEstimateAttendance records the appointment outcome. A contractor
// no-show refunds the customer automatically; a customer no-show forfeits
// the deposit into job credit; attendance credits the deposit toward job
// funding.
func (s *Service) MarkEstimateAttendance(ctx context.Context, actor Actor, in MarkEstimateAttendanceInput) (domain.EstimateDeposit, error) {
	if err := s.authorize(actor, "mark_estimate_attendance"); err != nil {
		return domain.EstimateDeposit{}, err
	}

	deposit, err := s.deposits.GetByID(ctx, in.DepositID)
	if err != nil {
		return domain.EstimateDeposit{}, err
	}
	role := domain.NormalizeRole(actor.Role)
	if role != domain.RoleAdmin && actor.SubjectID != deposit.CustomerID && actor.SubjectID != deposit.ContractorID {
		return domain.EstimateDeposit{}, fmt.Errorf("%w: not a party to deposit %s", domain.ErrPermissionDenied, deposit.DepositID)
	}

	var next string
	switch in.Attendance {
	case "attended":
		next = domain.DepositStatusAttended
	case "contractor_no_show":
		next = domain.DepositStatusContractorNoShow
	case "customer_no_show":
		next = domain.DepositStatusCustomerNoShow
	default:
		return domain.EstimateDeposit{}, fmt.Errorf("%w: unknown attendance %q", domain.ErrInvalidInput, in.Attendance)
	}
	if !domain.CanTransitionDeposit(deposit.Status, next) {
		return domain.EstimateDeposit{}, fmt.Errorf("%w: deposit is %s", domain.ErrFailedPrecondition, deposit.Status)
	}

	now := s.nowFn()
	deposit.Status = next
	deposit.UpdatedAt = now
	if err := s.deposits.Update(ctx, deposit); err != nil {
		return domain.EstimateDeposit{}, fmt.Errorf("update deposit: %w", err)
	}

	// A contractor no-show refunds immediately; other outcomes wait for the
	// customer's explicit refund-or-credit choice.
	if next == domain.DepositStatusContractorNoShow {
		return s.refundDeposit(ctx, actor, deposit)
	}
	return deposit, nil
}

// RefundEstimateDeposit returns an attended deposit to the customer instead
// of converting it into job credit.
func (s *Service) RefundEstimateDeposit(ctx context.Context, actor Actor, depositID string) (domain.EstimateDeposit, error) {
	if err := s.authorize(actor, "refund_estimate_deposit"); err != nil {
		return domain.EstimateDeposit{}, err
	}
	deposit, err := s.deposits.GetByID(ctx, depositID)
	if err != nil {
		return domain.EstimateDeposit{}, err
	}
	role := domain.NormalizeRole(actor.Role)
	if role != domain.RoleAdmin && deposit.CustomerID != actor.SubjectID {
		return domain.EstimateDeposit{}, fmt.Errorf("%w: only the deposit owner may refund", domain.ErrPermissionDenied)
	}
	return s.refundDeposit(ctx, actor, deposit)
}

// CreditEstimateDeposit converts an attended or forfeited deposit into job
// funding credit.
func (s *Service) CreditEstimateDeposit(ctx context.Context, actor Actor, depositID string) (domain.EstimateDeposit, error) {
	if err := s.authorize(actor, "credit_estimate_deposit"); err != nil {
		return domain.EstimateDeposit{}, err
	}
	deposit, err := s.deposits.GetByID(ctx, depositID)
	if err != nil {
		return domain.EstimateDeposit{}, err
	}
	role := domain.NormalizeRole(actor.Role)
	if role != domain.RoleAdmin && deposit.CustomerID != actor.SubjectID {
		return domain.EstimateDeposit{}, fmt.Errorf("%w: only the deposit owner may credit", domain.ErrPermissionDenied)
	}
	return s.creditDepositToJob(ctx, actor, deposit)
}

// refundDeposit returns a captured deposit to the customer.
func (s *Service) refundDeposit(ctx context.Context, actor Actor, deposit domain.EstimateDeposit) (domain.EstimateDeposit, error) {
	if !domain.CanTransitionDeposit(deposit.Status, domain.DepositStatusRefunded) {
		return domain.EstimateDeposit{}, fmt.Errorf("%w: deposit is %s", domain.ErrFailedPrecondition, deposit.Status)
	}
	cfg, err := s.snapshot(ctx)
	if err != nil {
		return domain.EstimateDeposit{}, err
	}
	refund, err := s.provider(cfg).Refund(ctx, ports.RefundRequest{
		ProviderRef: deposit.ProviderRef,
		CustomerID:  deposit.CustomerID,
		AmountCents: deposit.AmountCents,
	})
	if err != nil {
		return domain.EstimateDeposit{}, fmt.Errorf("refund deposit: %w", err)
	}

	now := s.nowFn()
	deposit.Status = domain.DepositStatusRefunded
	deposit.RefundedAt = &now
	deposit.UpdatedAt = now
	if err := s.deposits.Update(ctx, deposit); err != nil {
		return domain.EstimateDeposit{}, fmt.Errorf("update deposit: %w", err)
	}

	if err := s.appendLedger(ctx, domain.LedgerEvent{
		ProjectID:   deposit.ProjectID,
		EventType:   domain.EventDepositRefunded,
		AmountCents: deposit.AmountCents,
		ActorID:     actor.SubjectID,
		ActorRole:   domain.NormalizeRole(actor.Role),
		ProviderRef: refund.RefundRef,
		Details:     details(map[string]any{"deposit_id": deposit.DepositID}),
	}); err != nil {
		return domain.EstimateDeposit{}, err
	}
	return deposit, nil
}

// creditDepositToJob converts the deposit into job-funding credit. A deposit
// credits at most once; CreditedAt guards the single conversion.
func (s *Service) creditDepositToJob(ctx context.Context, actor Actor, deposit domain.EstimateDeposit) (domain.EstimateDeposit, error) {
	if deposit.CreditedAt != nil {
		return deposit, nil
	}
	if !domain.CanTransitionDeposit(deposit.Status, domain.DepositStatusCreditedToJob) {
		return domain.EstimateDeposit{}, fmt.Errorf("%w: deposit is %s", domain.ErrFailedPrecondition, deposit.Status)
	}

	now := s.nowFn()
	deposit.Status = domain.DepositStatusCreditedToJob
	deposit.CreditedAt = &now
	deposit.UpdatedAt = now
	if err := s.deposits.Update(ctx, deposit); err != nil {
		return domain.EstimateDeposit{}, fmt.Errorf("update deposit: %w", err)
	}

	if err := s.appendLedger(ctx, domain.LedgerEvent{
		ProjectID:   deposit.ProjectID,
		EventType:   domain.EventDepositCredited,
		AmountCents: deposit.AmountCents,
		ActorID:     actor.SubjectID,
		ActorRole:   domain.NormalizeRole(actor.Role),
		ProviderRef: deposit.ProviderRef,
		Details:     details(map[string]any{"deposit_id": deposit.DepositID}),
	}); err != nil {
		return domain.EstimateDeposit{}, err
	}
	return deposit, nil
}
