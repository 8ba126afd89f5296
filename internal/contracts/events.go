package contracts

import (
	"encoding/json"
	"time"
)

// EventEnvelope is the canonical wire format for events leaving the service
// through the outbox.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	PartitionKey  string          `json:"partition_key"`
	SourceService string          `json:"source_service"`
	TraceID       string          `json:"trace_id"`
	SchemaVersion string          `json:"schema_version"`
	Data          json.RawMessage `json:"data"`
}

type ProjectStatePayload struct {
	ProjectID       string `json:"project_id"`
	State           string `json:"state"`
	HeldAmountCents int64  `json:"held_amount_cents"`
	OccurredAt      string `json:"occurred_at"`
}

type OutcomeExecutedPayload struct {
	ProjectID       string `json:"project_id"`
	CaseID          string `json:"case_id,omitempty"`
	ReleaseCents    int64  `json:"release_cents"`
	RefundCents     int64  `json:"refund_cents"`
	FeeCents        int64  `json:"fee_cents"`
	ResultingState  string `json:"resulting_state"`
	Cause           string `json:"cause"`
	ExecutedAt      string `json:"executed_at"`
	RemainingCents  int64  `json:"remaining_cents"`
	ProviderHoldRef string `json:"provider_hold_ref,omitempty"`
}

type ReliabilityUpdatedPayload struct {
	ContractorID string  `json:"contractor_id"`
	Score        float64 `json:"score"`
	AutoRelease  bool    `json:"auto_release"`
	LargeJobs    bool    `json:"large_jobs"`
	HighTicket   bool    `json:"high_ticket"`
	UpdatedAt    string  `json:"updated_at"`
}
