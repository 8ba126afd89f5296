package domain

import (
	"strings"
	"time"
)

// Actor roles recognized by the role/capability table.
const (
	RoleCustomer   = "customer"
	RoleContractor = "contractor"
	RoleAdmin      = "admin"
	// RoleSystem is the pseudo-actor used by scheduled sweeps.
	RoleSystem = "system"
)

// NormalizeRole maps raw role claims onto the canonical role set.
func NormalizeRole(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "customer":
		return RoleCustomer
	case "contractor":
		return RoleContractor
	case "admin":
		return RoleAdmin
	case "system":
		return RoleSystem
	default:
		return ""
	}
}

// Project is the unit of work and of escrow. State mutates only through the
// application orchestrator; projects are closed or cancelled, never deleted.
type Project struct {
	ProjectID             string       `json:"project_id"`
	CustomerID            string       `json:"customer_id"`
	ContractorID          string       `json:"contractor_id,omitempty"`
	Category              string       `json:"category"`
	Scope                 string       `json:"scope"`
	Municipality          string       `json:"municipality"`
	State                 ProjectState `json:"state"`
	SelectedQuoteID       string       `json:"selected_quote_id,omitempty"`
	HeldAmountCents       int64        `json:"held_amount_cents"`
	ProviderHoldRef       string       `json:"provider_hold_ref,omitempty"`
	CompletionRequestedAt *time.Time   `json:"completion_requested_at,omitempty"`
	IssueRaisedAt         *time.Time   `json:"issue_raised_at,omitempty"`
	ClosedAt              *time.Time   `json:"closed_at,omitempty"`
	// Version is the optimistic-concurrency token. Every persisted update must
	// compare-and-swap on it; concurrent writers lose with ErrConflict.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsParty reports whether the uid is the project's customer or contractor.
func (p Project) IsParty(uid string) bool {
	return uid != "" && (uid == p.CustomerID || uid == p.ContractorID)
}

const (
	QuoteStatusSubmitted = "SUBMITTED"
	QuoteStatusSelected  = "SELECTED"
	QuoteStatusDeclined  = "DECLINED"
)

// Quote is a contractor's bid against one project. At most one quote per
// project holds SELECTED; selection demotes all siblings to DECLINED.
type Quote struct {
	QuoteID      string    `json:"quote_id"`
	ProjectID    string    `json:"project_id"`
	ContractorID string    `json:"contractor_id"`
	PriceCents   int64     `json:"price_cents"`
	TimelineDays int       `json:"timeline_days"`
	ScopeNotes   string    `json:"scope_notes,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Agreement is the contract-terms snapshot taken at contractor selection.
// Funding may not occur until both acceptance timestamps are set.
type Agreement struct {
	AgreementID          string     `json:"agreement_id"`
	ProjectID            string     `json:"project_id"`
	QuoteID              string     `json:"quote_id"`
	PriceCents           int64      `json:"price_cents"`
	TimelineDays         int        `json:"timeline_days"`
	ScopeNotes           string     `json:"scope_notes,omitempty"`
	CustomerAcceptedAt   *time.Time `json:"customer_accepted_at,omitempty"`
	ContractorAcceptedAt *time.Time `json:"contractor_accepted_at,omitempty"`
	// Version counts change orders; it only ever increases.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullyAccepted reports whether both parties have accepted the agreement.
func (a Agreement) FullyAccepted() bool {
	return a.CustomerAcceptedAt != nil && a.ContractorAcceptedAt != nil
}

// ChangeOrder appends a price/timeline delta to an agreement.
type ChangeOrder struct {
	ChangeOrderID     string    `json:"change_order_id"`
	AgreementID       string    `json:"agreement_id"`
	ProjectID         string    `json:"project_id"`
	DeltaPriceCents   int64     `json:"delta_price_cents"`
	DeltaTimelineDays int       `json:"delta_timeline_days"`
	Note              string    `json:"note,omitempty"`
	CreatedBy         string    `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
}

const (
	MilestoneStatusPending  = "PENDING"
	MilestoneStatusReleased = "RELEASED"
)

// Milestone is one partial-release slice of a funded project.
type Milestone struct {
	MilestoneID string     `json:"milestone_id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	AmountCents int64      `json:"amount_cents"`
	Status      string     `json:"status"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
)

// Subscription tracks a contractor's paid plan; the plan id drives
// tier-level fee overrides.
type Subscription struct {
	SubscriptionID string     `json:"subscription_id"`
	ContractorID   string     `json:"contractor_id"`
	PlanID         string     `json:"plan_id"`
	ProviderRef    string     `json:"provider_ref,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
}
