package domain

import "time"

// Ledger event types. One or more rows are written for every operation that
// moves money or materially changes status; rows are immutable once written.
const (
	EventHoldCreated                = "escrow.hold_created"
	EventReleaseFull                = "escrow.release_full"
	EventReleasePartial             = "escrow.release_partial"
	EventRefundFull                 = "escrow.refund_full"
	EventRefundPartial              = "escrow.refund_partial"
	EventFeeCharged                 = "escrow.fee_charged"
	EventOutcomeExecuted            = "escrow.outcome_executed"
	EventAutoReleaseExecuted        = "escrow.auto_release_executed"
	EventJointReleaseProposed       = "dispute.joint_release_proposed"
	EventJointReleaseSigned         = "dispute.joint_release_signed"
	EventExternalResolutionReceived = "dispute.external_resolution_submitted"
	EventReliabilityUpdated         = "reliability.updated"
	EventDepositCreated             = "deposit.created"
	EventDepositCaptured            = "deposit.captured"
	EventDepositCredited            = "deposit.credited_to_job"
	EventDepositRefunded            = "deposit.refunded"
	EventConciergeIntakeFee         = "billing.concierge_intake_fee"
	EventSubscriptionInvoicePosted  = "billing.subscription_invoice_posted"
)

// LedgerEvent is one append-only row keyed by (stream, sequence). The stream
// is normally a project; subscription invoices, which have no project, land
// on the contractor's billing stream. The ledger is the authoritative history
// of money movement; any derived balance must be reconstructable by folding
// events in sequence order.
type LedgerEvent struct {
	ProjectID   string    `json:"project_id"`
	Seq         int64     `json:"seq"`
	EventType   string    `json:"event_type"`
	AmountCents int64     `json:"amount_cents"`
	FeeCents    int64     `json:"fee_cents,omitempty"`
	ActorID     string    `json:"actor_id"`
	ActorRole   string    `json:"actor_role"`
	ProviderRef string    `json:"provider_ref,omitempty"`
	Details     string    `json:"details,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuditAction records an admin-initiated or policy-sensitive action.
// Write-once, never mutated by the core.
type AuditAction struct {
	AuditID    string    `json:"audit_id"`
	ActorID    string    `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// EscrowBalance is a read-time convenience folded from ledger events; it is
// not a source of truth.
type EscrowBalance struct {
	ProjectID     string    `json:"project_id"`
	HeldCents     int64     `json:"held_cents"`
	ReleasedCents int64     `json:"released_cents"`
	RefundedCents int64     `json:"refunded_cents"`
	FeeCents      int64     `json:"fee_cents"`
	NetHeldCents  int64     `json:"net_held_cents"`
	CalculatedAt  time.Time `json:"calculated_at"`
}

// FoldBalance reconstructs the escrow balance from ledger events in creation
// order.
func FoldBalance(projectID string, events []LedgerEvent, at time.Time) EscrowBalance {
	out := EscrowBalance{ProjectID: projectID, CalculatedAt: at}
	for _, e := range events {
		switch e.EventType {
		case EventHoldCreated, EventDepositCredited:
			out.HeldCents += e.AmountCents
		// EventAutoReleaseExecuted is a marker next to a release row and
		// carries the same amount; folding it would count the money twice.
		case EventReleaseFull, EventReleasePartial:
			out.ReleasedCents += e.AmountCents
		case EventRefundFull, EventRefundPartial:
			out.RefundedCents += e.AmountCents
		case EventFeeCharged:
			out.FeeCents += e.AmountCents
		}
	}
	out.NetHeldCents = out.HeldCents - out.ReleasedCents - out.RefundedCents
	if out.NetHeldCents < 0 {
		out.NetHeldCents = 0
	}
	return out
}
