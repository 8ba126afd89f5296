package domain

import (
	"errors"
	"testing"
	"time"
)

func TestApprovalDeadlineBoundary(t *testing.T) {
	t.Parallel()

	requested := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline, err := ComputeApprovalDeadline(requested, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC); !deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", deadline, want)
	}

	// The deadline instant itself is still within the window.
	passed, err := IsApprovalDeadlinePassed(deadline, requested, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if passed {
		t.Errorf("deadline instant should not count as passed")
	}

	passed, err = IsApprovalDeadlinePassed(deadline.Add(time.Nanosecond), requested, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !passed {
		t.Errorf("instant after deadline should count as passed")
	}
}

func TestAdminAttentionBoundary(t *testing.T) {
	t.Parallel()

	raised := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	attentionAt, err := ComputeAdminAttentionDate(raised, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC); !attentionAt.Equal(want) {
		t.Fatalf("attention date = %v, want %v", attentionAt, want)
	}

	// Inclusive comparison: the attention instant itself already requires review.
	required, err := IsAdminAttentionRequired(attentionAt, raised, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !required {
		t.Errorf("attention instant should require review")
	}

	required, err = IsAdminAttentionRequired(attentionAt.Add(-time.Nanosecond), raised, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if required {
		t.Errorf("instant before attention date should not require review")
	}
}

func TestDeadlineWindowValidation(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	if _, err := ComputeApprovalDeadline(now, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero window: got %v, want ErrInvalidInput", err)
	}
	if _, err := ComputeAdminAttentionDate(now, -1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative window: got %v, want ErrInvalidInput", err)
	}
	if _, err := IsApprovalDeadlinePassed(now, now, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero window: got %v, want ErrInvalidInput", err)
	}
}
