package domain

import "fmt"

// FeeBreakdown is the result of a platform fee computation. All amounts are
// integer minor currency units.
type FeeBreakdown struct {
	GrossAmountCents int64 `json:"gross_amount_cents"`
	FeeCents         int64 `json:"fee_cents"`
	NetPayoutCents   int64 `json:"net_payout_cents"`
}

// PlanFeeOverride replaces a tier's default rates for a subscription plan.
type PlanFeeOverride struct {
	PercentBps    int64 `json:"percent_bps" yaml:"percent_bps"`
	FixedFeeCents int64 `json:"fixed_fee_cents" yaml:"fixed_fee_cents"`
}

// FeeTier is one band of the tiered fee schedule. MaxCents nil means the band
// is open-ended.
type FeeTier struct {
	Name          string                     `json:"name" yaml:"name"`
	MinCents      int64                      `json:"min_cents" yaml:"min_cents"`
	MaxCents      *int64                     `json:"max_cents,omitempty" yaml:"max_cents"`
	PercentBps    int64                      `json:"percent_bps" yaml:"percent_bps"`
	FixedFeeCents int64                      `json:"fixed_fee_cents" yaml:"fixed_fee_cents"`
	PlanOverrides map[string]PlanFeeOverride `json:"plan_overrides,omitempty" yaml:"plan_overrides"`
}

// TieredFeeResult reports the resolved tier and applied rates alongside the
// computed breakdown.
type TieredFeeResult struct {
	TierName      string       `json:"tier_name"`
	PercentBps    int64        `json:"percent_bps"`
	FixedFeeCents int64        `json:"fixed_fee_cents"`
	Breakdown     FeeBreakdown `json:"breakdown"`
}

// CalculateFee computes the platform fee and net payout for a gross amount.
// The fee floors the percentage part; the net payout never goes negative even
// when the fee consumes the entire amount.
func CalculateFee(amountCents, percentBps, fixedFeeCents int64) (FeeBreakdown, error) {
	if amountCents <= 0 {
		return FeeBreakdown{}, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if percentBps < 0 || fixedFeeCents < 0 {
		return FeeBreakdown{}, fmt.Errorf("%w: fee rates must not be negative", ErrInvalidInput)
	}

	feeCents := amountCents*percentBps/10000 + fixedFeeCents
	netPayout := amountCents - feeCents
	if netPayout < 0 {
		netPayout = 0
	}
	return FeeBreakdown{
		GrossAmountCents: amountCents,
		FeeCents:         feeCents,
		NetPayoutCents:   netPayout,
	}, nil
}

// CalculateTieredFee selects the tier whose [min, max] band contains the
// amount, preferring the lowest-bound match, applies any subscription-plan
// override for the resolved tier, and computes the fee.
func CalculateTieredFee(amountCents int64, tiers []FeeTier, planID string) (TieredFeeResult, error) {
	if len(tiers) == 0 {
		return TieredFeeResult{}, fmt.Errorf("%w: no fee tiers configured", ErrFailedPrecondition)
	}
	if amountCents <= 0 {
		return TieredFeeResult{}, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	var matched *FeeTier
	for i := range tiers {
		tier := &tiers[i]
		if amountCents < tier.MinCents {
			continue
		}
		if tier.MaxCents != nil && amountCents > *tier.MaxCents {
			continue
		}
		if matched == nil || tier.MinCents < matched.MinCents {
			matched = tier
		}
	}
	if matched == nil {
		return TieredFeeResult{}, fmt.Errorf("%w: no fee tier covers amount %d", ErrFailedPrecondition, amountCents)
	}

	percentBps := matched.PercentBps
	fixedFeeCents := matched.FixedFeeCents
	if planID != "" {
		if override, ok := matched.PlanOverrides[planID]; ok {
			percentBps = override.PercentBps
			fixedFeeCents = override.FixedFeeCents
		}
	}

	breakdown, err := CalculateFee(amountCents, percentBps, fixedFeeCents)
	if err != nil {
		return TieredFeeResult{}, err
	}
	return TieredFeeResult{
		TierName:      matched.Name,
		PercentBps:    percentBps,
		FixedFeeCents: fixedFeeCents,
		Breakdown:     breakdown,
	}, nil
}
