package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/trustvibe/escrow-service/internal/domain"
	"github.com/trustvibe/escrow-service/internal/ports"
)

// OnboardContractorAccount creates the contractor's connected payout account
// with the payment provider and returns the hosted onboarding link.
func (s *Service) OnboardContractorAccount(ctx context.Context, actor Actor, in OnboardContractorInput) (OnboardContractorResult, error) {
	if err := s.authorize(actor, "onboard_contractor"); err != nil {
		return OnboardContractorResult{}, err
	}
	cfg, err := s.snapshot(ctx)
	if err != nil {
		return OnboardContractorResult{}, err
	}

	provider := s.provider(cfg)
	account, err := provider.CreateConnectedAccount(ctx, actor.SubjectID)
	if err != nil {
		return OnboardContractorResult{}, fmt.Errorf("create connected account: %w", err)
	}
	link, err := provider.GetOnboardingLink(ctx, account.AccountRef, in.ReturnURL)
	if err != nil {
		return OnboardContractorResult{}, fmt.Errorf("get onboarding link: %w", err)
	}
	return OnboardContractorResult{AccountRef: account.AccountRef, OnboardingURL: link.URL}, nil
}

// CreateSubscription starts a paid plan for the contractor. An existing
// active subscription switches plans instead of stacking.
func (s *Service) CreateSubscription(ctx context.Context, actor Actor, in CreateSubscriptionInput) (domain.Subscription, error) {
	if err := s.authorize(actor, "create_subscription"); err != nil {
		return domain.Subscription{}, err
	}
	if in.PlanID == "" {
		return domain.Subscription{}, fmt.Errorf("%w: plan is required", domain.ErrInvalidInput)
	}
	cfg, err := s.snapshot(ctx)
	if err != nil {
		return domain.Subscription{}, err
	}

	now := s.nowFn()
	existing, err := s.subscriptions.GetActiveByContractor(ctx, actor.SubjectID)
	if err == nil {
		if existing.PlanID == in.PlanID {
			return existing, nil
		}
		res, err := s.provider(cfg).UpdateSubscription(ctx, existing.ProviderRef, in.PlanID)
		if err != nil {
			return domain.Subscription{}, fmt.Errorf("update subscription: %w", err)
		}
		existing.PlanID = in.PlanID
		existing.ProviderRef = res.ProviderRef
		existing.UpdatedAt = now
		if err := s.subscriptions.Update(ctx, existing); err != nil {
			return domain.Subscription{}, fmt.Errorf("update subscription: %w", err)
		}
		if err := s.postSubscriptionInvoice(ctx, actor, cfg, existing); err != nil {
			return domain.Subscription{}, err
		}
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Subscription{}, err
	}

	res, err := s.provider(cfg).CreateSubscription(ctx, ports.SubscriptionRequest{
		ContractorID: actor.SubjectID,
		PlanID:       in.PlanID,
	})
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("create subscription: %w", err)
	}

	sub := domain.Subscription{
		SubscriptionID: uuid.NewString(),
		ContractorID:   actor.SubjectID,
		PlanID:         in.PlanID,
		ProviderRef:    res.ProviderRef,
		Status:         domain.SubscriptionStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.subscriptions.Create(ctx, sub); err != nil {
		return domain.Subscription{}, fmt.Errorf("create subscription: %w", err)
	}
	if err := s.postSubscriptionInvoice(ctx, actor, cfg, sub); err != nil {
		return domain.Subscription{}, err
	}
	return sub, nil
}

// postSubscriptionInvoice bills the first cycle of the plan and records it on
// the ledger. Subscriptions have no project; the row lands on the
// contractor's billing stream instead.
func (s *Service) postSubscriptionInvoice(ctx context.Context, actor Actor, cfg domain.PlatformConfig, sub domain.Subscription) error {
	price := cfg.PlanPriceCents[sub.PlanID]
	if price <= 0 {
		return nil
	}
	invoice, err := s.provider(cfg).CreateInvoice(ctx, ports.InvoiceRequest{
		AccountRef:  sub.ContractorID,
		AmountCents: price,
		Description: "subscription plan " + sub.PlanID,
	})
	if err != nil {
		return fmt.Errorf("create subscription invoice: %w", err)
	}
	return s.appendLedger(ctx, domain.LedgerEvent{
		ProjectID:   sub.ContractorID,
		EventType:   domain.EventSubscriptionInvoicePosted,
		AmountCents: price,
		ActorID:     actor.SubjectID,
		ActorRole:   domain.NormalizeRole(actor.Role),
		ProviderRef: invoice.InvoiceRef,
		Details: details(map[string]any{
			"subscription_id": sub.SubscriptionID,
			"plan_id":         sub.PlanID,
		}),
	})
}

// CancelSubscription ends the contractor's active plan. Fee overrides stop
// applying from the next fee computation.
func (s *Service) CancelSubscription(ctx context.Context, actor Actor) (domain.Subscription, error) {
	if err := s.authorize(actor, "cancel_subscription"); err != nil {
		return domain.Subscription{}, err
	}
	sub, err := s.subscriptions.GetActiveByContractor(ctx, actor.SubjectID)
	if err != nil {
		return domain.Subscription{}, err
	}

	cfg, err := s.snapshot(ctx)
	if err != nil {
		return domain.Subscription{}, err
	}
	if err := s.provider(cfg).CancelSubscription(ctx, sub.ProviderRef); err != nil {
		return domain.Subscription{}, fmt.Errorf("cancel subscription: %w", err)
	}

	now := s.nowFn()
	sub.Status = domain.SubscriptionStatusCancelled
	sub.CancelledAt = &now
	sub.UpdatedAt = now
	if err := s.subscriptions.Update(ctx, sub); err != nil {
		return domain.Subscription{}, fmt.Errorf("update subscription: %w", err)
	}
	return sub, nil
}

// PostConciergeIntakeFee invoices the configured concierge intake fee against
// the customer and records it on the project ledger. Requires an idempotency
// key.
func (s *Service) PostConciergeIntakeFee(ctx context.Context, actor Actor, in ConciergeIntakeFeeInput) (domain.LedgerEvent, error) {
	if err := s.authorize(actor, "concierge_intake_fee"); err != nil {
		return domain.LedgerEvent{}, err
	}
	if err := requireIdempotencyKey(actor); err != nil {
		return domain.LedgerEvent{}, err
	}

	requestHash := hashPayload(in)
	var replay domain.LedgerEvent
	if done, err := s.replayIdempotent(ctx, actor.IdempotencyKey, requestHash, &replay); err != nil {
		return domain.LedgerEvent{}, err
	} else if done {
		return replay, nil
	}

	cfg, err := s.snapshot(ctx)
	if err != nil {
		return domain.LedgerEvent{}, err
	}
	if cfg.ConciergeIntakeFeeCents <= 0 {
		return domain.LedgerEvent{}, fmt.Errorf("%w: concierge intake fee is not configured", domain.ErrFailedPrecondition)
	}

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return domain.LedgerEvent{}, err
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.LedgerEvent{}, err
	}

	invoice, err := s.provider(cfg).CreateInvoice(ctx, ports.InvoiceRequest{
		AccountRef:  project.CustomerID,
		AmountCents: cfg.ConciergeIntakeFeeCents,
		Description: "concierge intake fee",
	})
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("create invoice: %w", err)
	}

	event, err := s.ledger.Append(ctx, domain.LedgerEvent{
		ProjectID:   project.ProjectID,
		EventType:   domain.EventConciergeIntakeFee,
		AmountCents: cfg.ConciergeIntakeFeeCents,
		ActorID:     actor.SubjectID,
		ActorRole:   domain.NormalizeRole(actor.Role),
		ProviderRef: invoice.InvoiceRef,
		Details:     details(map[string]any{"note": in.Note}),
		CreatedAt:   s.nowFn(),
	})
	if err != nil {
		return domain.LedgerEvent{}, err
	}

	s.recordAudit(ctx, actor, "concierge_intake_fee", "project", project.ProjectID, map[string]any{
		"amount_cents": cfg.ConciergeIntakeFeeCents,
		"invoice_ref":  invoice.InvoiceRef,
	})
	s.completeIdempotency(ctx, actor.IdempotencyKey, event)
	return event, nil
}
