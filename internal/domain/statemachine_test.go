package domain

import "testing"

func TestCanTransitionAllowedEdges(t *testing.T) {
	t.Parallel()

	allowed := []struct {
		from, to ProjectState
	}{
		{StateDraft, StateOpenForQuotes},
		{StateDraft, StateCancelled},
		{StateOpenForQuotes, StateContractorSelected},
		{StateContractorSelected, StateAgreementAccepted},
		{StateContractorSelected, StateOpenForQuotes},
		{StateAgreementAccepted, StateFundedHeld},
		{StateFundedHeld, StateInProgress},
		{StateFundedHeld, StateCompletionRequested},
		{StateFundedHeld, StateIssueRaisedHold},
		{StateInProgress, StateCompletionRequested},
		{StateCompletionRequested, StateApprovedForRelease},
		{StateCompletionRequested, StateReleasedPaid},
		{StateCompletionRequested, StateIssueRaisedHold},
		{StateApprovedForRelease, StateReleasedPaid},
		{StateReleasedPaid, StateClosed},
		{StateIssueRaisedHold, StateResolutionPendingExternal},
		{StateIssueRaisedHold, StateResolutionSubmitted},
		{StateIssueRaisedHold, StateExecutedReleaseFull},
		{StateIssueRaisedHold, StateExecutedRefundFull},
		{StateResolutionPendingExternal, StateResolutionSubmitted},
		{StateResolutionSubmitted, StateExecutedReleasePartial},
		{StateResolutionSubmitted, StateExecutedRefundPartial},
		{StateExecutedReleaseFull, StateClosed},
		{StateExecutedRefundFull, StateClosed},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransitionRejectedEdges(t *testing.T) {
	t.Parallel()

	rejected := []struct {
		from, to ProjectState
	}{
		{StateDraft, StateFundedHeld},
		{StateOpenForQuotes, StateAgreementAccepted},
		{StateAgreementAccepted, StateReleasedPaid},
		{StateFundedHeld, StateReleasedPaid},
		{StateInProgress, StateApprovedForRelease},
		{StateReleasedPaid, StateIssueRaisedHold},
		{StateResolutionPendingExternal, StateExecutedReleaseFull},
		{StateClosed, StateOpenForQuotes},
		{StateCancelled, StateDraft},
		{StateExecutedReleaseFull, StateExecutedRefundFull},
	}
	for _, tc := range rejected {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestAssertTransitionError(t *testing.T) {
	t.Parallel()

	if err := AssertTransition(StateDraft, StateOpenForQuotes); err != nil {
		t.Fatalf("unexpected error for legal edge: %v", err)
	}
	err := AssertTransition(StateDraft, StateReleasedPaid)
	if err == nil {
		t.Fatalf("expected error for illegal edge")
	}
}

func TestTerminalStates(t *testing.T) {
	t.Parallel()

	for _, state := range []ProjectState{StateClosed, StateCancelled} {
		if !IsTerminalState(state) {
			t.Errorf("expected %s to be terminal", state)
		}
		if len(NextStates(state)) != 0 {
			t.Errorf("expected no successors for %s", state)
		}
	}
	for _, state := range []ProjectState{StateDraft, StateFundedHeld, StateResolutionSubmitted} {
		if IsTerminalState(state) {
			t.Errorf("expected %s to be non-terminal", state)
		}
	}
}

func TestIsHoldState(t *testing.T) {
	t.Parallel()

	holding := []ProjectState{
		StateFundedHeld, StateInProgress, StateCompletionRequested,
		StateApprovedForRelease, StateIssueRaisedHold,
		StateResolutionPendingExternal, StateResolutionSubmitted,
	}
	for _, state := range holding {
		if !IsHoldState(state) {
			t.Errorf("expected %s to be a hold state", state)
		}
	}
	for _, state := range []ProjectState{StateDraft, StateOpenForQuotes, StateReleasedPaid, StateClosed} {
		if IsHoldState(state) {
			t.Errorf("expected %s to not be a hold state", state)
		}
	}
}
