package domain

import (
	"errors"
	"testing"
)

func TestCalculateFee(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		amount        int64
		percentBps    int64
		fixedFee      int64
		wantFee       int64
		wantNetPayout int64
	}{
		{"standard five percent plus fixed", 100000, 500, 300, 5300, 94700},
		{"percent part floors", 999, 250, 0, 24, 975},
		{"fee consumes entire amount", 1000, 9000, 1000, 1900, 0},
		{"zero rates", 5000, 0, 0, 0, 5000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CalculateFee(tc.amount, tc.percentBps, tc.fixedFee)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.FeeCents != tc.wantFee {
				t.Errorf("fee = %d, want %d", got.FeeCents, tc.wantFee)
			}
			if got.NetPayoutCents != tc.wantNetPayout {
				t.Errorf("net payout = %d, want %d", got.NetPayoutCents, tc.wantNetPayout)
			}
			if got.GrossAmountCents != tc.amount {
				t.Errorf("gross = %d, want %d", got.GrossAmountCents, tc.amount)
			}
		})
	}
}

func TestCalculateFeeRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	if _, err := CalculateFee(0, 500, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero amount: got %v, want ErrInvalidInput", err)
	}
	if _, err := CalculateFee(-100, 500, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative amount: got %v, want ErrInvalidInput", err)
	}
	if _, err := CalculateFee(1000, -1, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative percent: got %v, want ErrInvalidInput", err)
	}
	if _, err := CalculateFee(1000, 0, -1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative fixed fee: got %v, want ErrInvalidInput", err)
	}
}

func TestCalculateTieredFee(t *testing.T) {
	t.Parallel()

	tiers := DefaultPlatformConfig().FeeTiers

	t.Run("starter band", func(t *testing.T) {
		res, err := CalculateTieredFee(50000, tiers, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.TierName != "starter" || res.PercentBps != 900 {
			t.Fatalf("resolved %s at %d bps, want starter at 900", res.TierName, res.PercentBps)
		}
		if res.Breakdown.FeeCents != 4500 {
			t.Errorf("fee = %d, want 4500", res.Breakdown.FeeCents)
		}
	})

	t.Run("standard band default rate", func(t *testing.T) {
		res, err := CalculateTieredFee(200000, tiers, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.TierName != "standard" || res.PercentBps != 700 {
			t.Fatalf("resolved %s at %d bps, want standard at 700", res.TierName, res.PercentBps)
		}
		if res.Breakdown.FeeCents != 14000 {
			t.Errorf("fee = %d, want 14000", res.Breakdown.FeeCents)
		}
	})

	t.Run("standard band with plan override", func(t *testing.T) {
		res, err := CalculateTieredFee(200000, tiers, "contractor_pro")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.TierName != "standard" || res.PercentBps != 500 {
			t.Fatalf("resolved %s at %d bps, want standard at 500", res.TierName, res.PercentBps)
		}
		if res.Breakdown.FeeCents != 10000 {
			t.Errorf("fee = %d, want 10000", res.Breakdown.FeeCents)
		}
		if res.Breakdown.NetPayoutCents != 190000 {
			t.Errorf("net payout = %d, want 190000", res.Breakdown.NetPayoutCents)
		}
	})

	t.Run("unknown plan falls back to tier default", func(t *testing.T) {
		res, err := CalculateTieredFee(200000, tiers, "nonexistent_plan")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.PercentBps != 700 {
			t.Errorf("percent = %d, want tier default 700", res.PercentBps)
		}
	})

	t.Run("open-ended large band", func(t *testing.T) {
		res, err := CalculateTieredFee(600000, tiers, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.TierName != "large" || res.PercentBps != 500 {
			t.Fatalf("resolved %s at %d bps, want large at 500", res.TierName, res.PercentBps)
		}
	})

	t.Run("band boundary belongs to lower tier", func(t *testing.T) {
		res, err := CalculateTieredFee(500000, tiers, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.TierName != "standard" {
			t.Errorf("resolved %s, want standard at the inclusive max", res.TierName)
		}
	})
}

func TestCalculateTieredFeeErrors(t *testing.T) {
	t.Parallel()

	tiers := DefaultPlatformConfig().FeeTiers
	if _, err := CalculateTieredFee(100, nil, ""); !errors.Is(err, ErrFailedPrecondition) {
		t.Errorf("no tiers: got %v, want ErrFailedPrecondition", err)
	}
	if _, err := CalculateTieredFee(0, tiers, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero amount: got %v, want ErrInvalidInput", err)
	}

	max := int64(200)
	gapped := []FeeTier{{Name: "low", MinCents: 100, MaxCents: &max, PercentBps: 100}}
	if _, err := CalculateTieredFee(300, gapped, ""); !errors.Is(err, ErrFailedPrecondition) {
		t.Errorf("uncovered amount: got %v, want ErrFailedPrecondition", err)
	}
}
