package domain

import (
	"fmt"
	"time"
)

// ComputeApprovalDeadline returns the instant after which an unanswered
// completion request becomes eligible for auto-release. Windows are UTC
// calendar days, not business days.
func ComputeApprovalDeadline(completionRequestedAt time.Time, approvalWindowDays int) (time.Time, error) {
	if approvalWindowDays <= 0 {
		return time.Time{}, fmt.Errorf("%w: approval window must be positive", ErrInvalidInput)
	}
	return completionRequestedAt.UTC().AddDate(0, 0, approvalWindowDays), nil
}

// IsApprovalDeadlinePassed uses a strictly-after comparison: the deadline
// instant itself is still within the window.
func IsApprovalDeadlinePassed(now, completionRequestedAt time.Time, approvalWindowDays int) (bool, error) {
	deadline, err := ComputeApprovalDeadline(completionRequestedAt, approvalWindowDays)
	if err != nil {
		return false, err
	}
	return now.UTC().After(deadline), nil
}

// ComputeAdminAttentionDate returns the instant at which an open dispute
// escalates to mandatory admin review.
func ComputeAdminAttentionDate(issueRaisedAt time.Time, adminAttentionDays int) (time.Time, error) {
	if adminAttentionDays <= 0 {
		return time.Time{}, fmt.Errorf("%w: admin attention window must be positive", ErrInvalidInput)
	}
	return issueRaisedAt.UTC().AddDate(0, 0, adminAttentionDays), nil
}

// IsAdminAttentionRequired uses an inclusive at-or-after comparison.
// Deliberately asymmetric from IsApprovalDeadlinePassed; observed product
// behavior, do not reconcile without confirmation.
func IsAdminAttentionRequired(now, issueRaisedAt time.Time, adminAttentionDays int) (bool, error) {
	attentionAt, err := ComputeAdminAttentionDate(issueRaisedAt, adminAttentionDays)
	if err != nil {
		return false, err
	}
	return !now.UTC().Before(attentionAt), nil
}
