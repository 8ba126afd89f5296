package domain

import "fmt"

// ProjectState is the escrow lifecycle state of a project.
type ProjectState string

const (
	StateDraft                     ProjectState = "DRAFT"
	StateOpenForQuotes             ProjectState = "OPEN_FOR_QUOTES"
	StateContractorSelected        ProjectState = "CONTRACTOR_SELECTED"
	StateAgreementAccepted         ProjectState = "AGREEMENT_ACCEPTED"
	StateFundedHeld                ProjectState = "FUNDED_HELD"
	StateInProgress                ProjectState = "IN_PROGRESS"
	StateCompletionRequested       ProjectState = "COMPLETION_REQUESTED"
	StateApprovedForRelease        ProjectState = "APPROVED_FOR_RELEASE"
	StateReleasedPaid              ProjectState = "RELEASED_PAID"
	StateIssueRaisedHold           ProjectState = "ISSUE_RAISED_HOLD"
	StateResolutionPendingExternal ProjectState = "RESOLUTION_PENDING_EXTERNAL"
	StateResolutionSubmitted       ProjectState = "RESOLUTION_SUBMITTED"
	StateExecutedReleaseFull       ProjectState = "EXECUTED_RELEASE_FULL"
	StateExecutedReleasePartial    ProjectState = "EXECUTED_RELEASE_PARTIAL"
	StateExecutedRefundPartial     ProjectState = "EXECUTED_REFUND_PARTIAL"
	StateExecutedRefundFull        ProjectState = "EXECUTED_REFUND_FULL"
	StateClosed                    ProjectState = "CLOSED"
	StateCancelled                 ProjectState = "CANCELLED"
)

// transitions is the single source of truth for project state changes.
// No mutation path may bypass this table.
var transitions = map[ProjectState][]ProjectState{
	StateDraft:              {StateOpenForQuotes, StateCancelled},
	StateOpenForQuotes:      {StateContractorSelected, StateCancelled},
	StateContractorSelected: {StateAgreementAccepted, StateOpenForQuotes, StateCancelled},
	StateAgreementAccepted:  {StateFundedHeld, StateCancelled},
	StateFundedHeld:         {StateInProgress, StateCompletionRequested, StateIssueRaisedHold},
	StateInProgress:         {StateCompletionRequested, StateIssueRaisedHold},
	StateCompletionRequested: {
		StateApprovedForRelease,
		StateReleasedPaid,
		StateIssueRaisedHold,
	},
	StateApprovedForRelease: {StateReleasedPaid},
	StateReleasedPaid:       {StateClosed},
	StateIssueRaisedHold: {
		StateResolutionPendingExternal,
		StateResolutionSubmitted,
		StateExecutedReleaseFull,
		StateExecutedReleasePartial,
		StateExecutedRefundPartial,
		StateExecutedRefundFull,
	},
	StateResolutionPendingExternal: {StateResolutionSubmitted},
	StateResolutionSubmitted: {
		StateExecutedReleaseFull,
		StateExecutedReleasePartial,
		StateExecutedRefundPartial,
		StateExecutedRefundFull,
	},
	StateExecutedReleaseFull:    {StateClosed},
	StateExecutedReleasePartial: {StateClosed},
	StateExecutedRefundPartial:  {StateClosed},
	StateExecutedRefundFull:     {StateClosed},
	StateClosed:                 {},
	StateCancelled:              {},
}

// CanTransition reports whether the edge from -> to exists in the transition table.
func CanTransition(from, to ProjectState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AssertTransition fails with ErrInvalidTransition when the edge is absent.
func AssertTransition(from, to ProjectState) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// NextStates lists all legal successors of from. Terminal states return an
// empty slice.
func NextStates(from ProjectState) []ProjectState {
	next := transitions[from]
	out := make([]ProjectState, len(next))
	copy(out, next)
	return out
}

// IsTerminalState reports whether the state has no outgoing transitions.
func IsTerminalState(state ProjectState) bool {
	next, ok := transitions[state]
	return ok && len(next) == 0
}

// HoldStates are the states in which a project's held amount must be defined
// and non-negative.
func IsHoldState(state ProjectState) bool {
	switch state {
	case StateFundedHeld, StateInProgress, StateCompletionRequested,
		StateApprovedForRelease, StateIssueRaisedHold,
		StateResolutionPendingExternal, StateResolutionSubmitted:
		return true
	default:
		return false
	}
}
