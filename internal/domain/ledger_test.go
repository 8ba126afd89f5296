package domain

import (
	"testing"
	"time"
)

func TestFoldBalanceCountsAutoReleasedMoneyOnce(t *testing.T) {
	t.Parallel()

	at := time.Now().UTC()
	events := []LedgerEvent{
		{EventType: EventHoldCreated, AmountCents: 90000},
		{EventType: EventReleaseFull, AmountCents: 90000, FeeCents: 6300},
		{EventType: EventFeeCharged, AmountCents: 6300},
		{EventType: EventAutoReleaseExecuted, AmountCents: 90000},
	}

	balance := FoldBalance("proj-1", events, at)
	if balance.HeldCents != 90000 {
		t.Errorf("HeldCents = %d, want 90000", balance.HeldCents)
	}
	if balance.ReleasedCents != 90000 {
		t.Errorf("ReleasedCents = %d, want 90000", balance.ReleasedCents)
	}
	if balance.NetHeldCents != 0 {
		t.Errorf("NetHeldCents = %d, want 0", balance.NetHeldCents)
	}
	if balance.FeeCents != 6300 {
		t.Errorf("FeeCents = %d, want 6300", balance.FeeCents)
	}
}

func TestFoldBalanceSplitOutcome(t *testing.T) {
	t.Parallel()

	at := time.Now().UTC()
	events := []LedgerEvent{
		{EventType: EventHoldCreated, AmountCents: 200000},
		{EventType: EventReleasePartial, AmountCents: 120000},
		{EventType: EventRefundPartial, AmountCents: 80000},
		{EventType: EventFeeCharged, AmountCents: 8400},
		{EventType: EventOutcomeExecuted},
	}

	balance := FoldBalance("proj-2", events, at)
	if balance.ReleasedCents != 120000 {
		t.Errorf("ReleasedCents = %d, want 120000", balance.ReleasedCents)
	}
	if balance.RefundedCents != 80000 {
		t.Errorf("RefundedCents = %d, want 80000", balance.RefundedCents)
	}
	if balance.NetHeldCents != 0 {
		t.Errorf("NetHeldCents = %d, want 0", balance.NetHeldCents)
	}
}
