package application

import (
	"context"
	"fmt"

	"github.com/trustvibe/escrow-service/internal/domain"
)

// GetPlatformConfig returns the active fee/policy document. Admin only: the
// document includes plan overrides that are not public.
func (s *Service) GetPlatformConfig(ctx context.Context, actor Actor) (domain.PlatformConfig, error) {
	if err := s.authorize(actor, "update_platform_config"); err != nil {
		return domain.PlatformConfig{}, err
	}
	return s.snapshot(ctx)
}

// UpdatePlatformConfig replaces the stored fee/policy document. Running
// operations keep the snapshot they started with; only new operations see the
// updated document.
func (s *Service) UpdatePlatformConfig(ctx context.Context, actor Actor, cfg domain.PlatformConfig) (domain.PlatformConfig, error) {
	if err := s.authorize(actor, "update_platform_config"); err != nil {
		return domain.PlatformConfig{}, err
	}
	if err := validatePlatformConfig(cfg); err != nil {
		return domain.PlatformConfig{}, err
	}
	if s.platformConfig == nil {
		return domain.PlatformConfig{}, fmt.Errorf("%w: no config store configured", domain.ErrFailedPrecondition)
	}
	if err := s.platformConfig.Put(ctx, cfg); err != nil {
		return domain.PlatformConfig{}, fmt.Errorf("store platform config: %w", err)
	}
	s.recordAudit(ctx, actor, "update_platform_config", "platform_config", "platform", map[string]any{
		"approval_window_days": cfg.ApprovalWindowDays,
		"admin_attention_days": cfg.AdminAttentionDays,
		"payment_provider":     cfg.PaymentProvider,
		"fee_tier_count":       len(cfg.FeeTiers),
	})
	return cfg, nil
}

func validatePlatformConfig(cfg domain.PlatformConfig) error {
	if len(cfg.FeeTiers) == 0 {
		return fmt.Errorf("%w: at least one fee tier is required", domain.ErrInvalidInput)
	}
	for _, tier := range cfg.FeeTiers {
		if tier.Name == "" {
			return fmt.Errorf("%w: fee tier name is required", domain.ErrInvalidInput)
		}
		if tier.PercentBps < 0 || tier.PercentBps > 10000 {
			return fmt.Errorf("%w: fee tier %q percent out of range", domain.ErrInvalidInput, tier.Name)
		}
		if tier.MinCents < 0 {
			return fmt.Errorf("%w: fee tier %q min below zero", domain.ErrInvalidInput, tier.Name)
		}
		if tier.MaxCents != nil && *tier.MaxCents < tier.MinCents {
			return fmt.Errorf("%w: fee tier %q max below min", domain.ErrInvalidInput, tier.Name)
		}
	}
	if cfg.ApprovalWindowDays <= 0 {
		return fmt.Errorf("%w: approval window must be positive", domain.ErrInvalidInput)
	}
	if cfg.AdminAttentionDays < cfg.ApprovalWindowDays {
		return fmt.Errorf("%w: admin attention window shorter than approval window", domain.ErrInvalidInput)
	}
	if cfg.ConciergeIntakeFeeCents < 0 {
		return fmt.Errorf("%w: concierge intake fee below zero", domain.ErrInvalidInput)
	}
	for plan, price := range cfg.PlanPriceCents {
		if price < 0 {
			return fmt.Errorf("%w: plan %q price below zero", domain.ErrInvalidInput, plan)
		}
	}
	return nil
}
