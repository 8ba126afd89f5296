package postgres

import (
	"time"

	"github.com/google/uuid"
)

type projectModel struct {
	ProjectID             string     `gorm:"column:project_id;type:uuid;primaryKey"`
	CustomerID            string     `gorm:"column:customer_id;type:uuid"`
	ContractorID          *string    `gorm:"column:contractor_id;type:uuid"`
	Category              string     `gorm:"column:category"`
	Scope                 string     `gorm:"column:scope"`
	Municipality          string     `gorm:"column:municipality"`
	State                 string     `gorm:"column:state"`
	SelectedQuoteID       *string    `gorm:"column:selected_quote_id;type:uuid"`
	HeldAmountCents       int64      `gorm:"column:held_amount_cents"`
	ProviderHoldRef       string     `gorm:"column:provider_hold_ref"`
	CompletionRequestedAt *time.Time `gorm:"column:completion_requested_at"`
	IssueRaisedAt         *time.Time `gorm:"column:issue_raised_at"`
	ClosedAt              *time.Time `gorm:"column:closed_at"`
	Version               int64      `gorm:"column:version"`
	CreatedAt             time.Time  `gorm:"column:created_at"`
	UpdatedAt             time.Time  `gorm:"column:updated_at"`
}

func (projectModel) TableName() string { return "projects" }

type quoteModel struct {
	QuoteID      string    `gorm:"column:quote_id;type:uuid;primaryKey"`
	ProjectID    string    `gorm:"column:project_id;type:uuid"`
	ContractorID string    `gorm:"column:contractor_id;type:uuid"`
	PriceCents   int64     `gorm:"column:price_cents"`
	TimelineDays int       `gorm:"column:timeline_days"`
	ScopeNotes   string    `gorm:"column:scope_notes"`
	Status       string    `gorm:"column:status"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (quoteModel) TableName() string { return "quotes" }

type agreementModel struct {
	AgreementID          string     `gorm:"column:agreement_id;type:uuid;primaryKey"`
	ProjectID            string     `gorm:"column:project_id;type:uuid;uniqueIndex"`
	QuoteID              string     `gorm:"column:quote_id;type:uuid"`
	PriceCents           int64      `gorm:"column:price_cents"`
	TimelineDays         int        `gorm:"column:timeline_days"`
	ScopeNotes           string     `gorm:"column:scope_notes"`
	CustomerAcceptedAt   *time.Time `gorm:"column:customer_accepted_at"`
	ContractorAcceptedAt *time.Time `gorm:"column:contractor_accepted_at"`
	Version              int        `gorm:"column:version"`
	CreatedAt            time.Time  `gorm:"column:created_at"`
	UpdatedAt            time.Time  `gorm:"column:updated_at"`
}

func (agreementModel) TableName() string { return "agreements" }

type changeOrderModel struct {
	ChangeOrderID     string    `gorm:"column:change_order_id;type:uuid;primaryKey"`
	AgreementID       string    `gorm:"column:agreement_id;type:uuid"`
	ProjectID         string    `gorm:"column:project_id;type:uuid"`
	DeltaPriceCents   int64     `gorm:"column:delta_price_cents"`
	DeltaTimelineDays int       `gorm:"column:delta_timeline_days"`
	Note              string    `gorm:"column:note"`
	CreatedBy         string    `gorm:"column:created_by;type:uuid"`
	CreatedAt         time.Time `gorm:"column:created_at"`
}

func (changeOrderModel) TableName() string { return "change_orders" }

type milestoneModel struct {
	MilestoneID string     `gorm:"column:milestone_id;type:uuid;primaryKey"`
	ProjectID   string     `gorm:"column:project_id;type:uuid"`
	Title       string     `gorm:"column:title"`
	AmountCents int64      `gorm:"column:amount_cents"`
	Status      string     `gorm:"column:status"`
	ReleasedAt  *time.Time `gorm:"column:released_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

func (milestoneModel) TableName() string { return "milestones" }

type ledgerEventModel struct {
	ProjectID   string    `gorm:"column:project_id;type:text;primaryKey"`
	Seq         int64     `gorm:"column:seq;primaryKey"`
	EventType   string    `gorm:"column:event_type"`
	AmountCents int64     `gorm:"column:amount_cents"`
	FeeCents    int64     `gorm:"column:fee_cents"`
	ActorID     string    `gorm:"column:actor_id"`
	ActorRole   string    `gorm:"column:actor_role"`
	ProviderRef string    `gorm:"column:provider_ref"`
	Details     string    `gorm:"column:details;type:jsonb"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (ledgerEventModel) TableName() string { return "ledger_events" }

type auditActionModel struct {
	AuditID    string    `gorm:"column:audit_id;type:uuid;primaryKey"`
	ActorID    string    `gorm:"column:actor_id"`
	ActorRole  string    `gorm:"column:actor_role"`
	Action     string    `gorm:"column:action"`
	TargetType string    `gorm:"column:target_type"`
	TargetID   string    `gorm:"column:target_id"`
	Details    string    `gorm:"column:details;type:jsonb"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (auditActionModel) TableName() string { return "audit_actions" }

type caseModel struct {
	CaseID            string     `gorm:"column:case_id;type:uuid;primaryKey"`
	ProjectID         string     `gorm:"column:project_id;type:uuid"`
	OpenedBy          string     `gorm:"column:opened_by;type:uuid"`
	OpenedByRole      string     `gorm:"column:opened_by_role"`
	Reason            string     `gorm:"column:reason"`
	Status            string     `gorm:"column:status"`
	IssueRaisedAt     time.Time  `gorm:"column:issue_raised_at"`
	ResolutionDocRef  string     `gorm:"column:resolution_doc_ref"`
	ResolutionDocKind string     `gorm:"column:resolution_doc_kind"`
	SubmittedBy       string     `gorm:"column:submitted_by"`
	ClosedAt          *time.Time `gorm:"column:closed_at"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at"`
}

func (caseModel) TableName() string { return "dispute_cases" }

type proposalModel struct {
	ProposalID         string     `gorm:"column:proposal_id;type:uuid;primaryKey"`
	CaseID             string     `gorm:"column:case_id;type:uuid"`
	ProjectID          string     `gorm:"column:project_id;type:uuid"`
	ProposedBy         string     `gorm:"column:proposed_by;type:uuid"`
	ReleaseCents       int64      `gorm:"column:release_cents"`
	RefundCents        int64      `gorm:"column:refund_cents"`
	CustomerSignedAt   *time.Time `gorm:"column:customer_signed_at"`
	ContractorSignedAt *time.Time `gorm:"column:contractor_signed_at"`
	ExecutedAt         *time.Time `gorm:"column:executed_at"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
}

func (proposalModel) TableName() string { return "joint_release_proposals" }

type depositModel struct {
	DepositID     string     `gorm:"column:deposit_id;type:uuid;primaryKey"`
	ProjectID     string     `gorm:"column:project_id;type:uuid"`
	CustomerID    string     `gorm:"column:customer_id;type:uuid"`
	ContractorID  string     `gorm:"column:contractor_id;type:uuid"`
	AppointmentAt time.Time  `gorm:"column:appointment_at"`
	AmountCents   int64      `gorm:"column:amount_cents"`
	ProviderRef   string     `gorm:"column:provider_ref"`
	Status        string     `gorm:"column:status"`
	CreditedAt    *time.Time `gorm:"column:credited_at"`
	RefundedAt    *time.Time `gorm:"column:refunded_at"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
}

func (depositModel) TableName() string { return "estimate_deposits" }

type reliabilityScoreModel struct {
	ContractorID          string    `gorm:"column:contractor_id;type:uuid;primaryKey"`
	AppointmentsTotal     int       `gorm:"column:appointments_total"`
	AppointmentsAttended  int       `gorm:"column:appointments_attended"`
	DisputesTotal         int       `gorm:"column:disputes_total"`
	CompletionsTotal      int       `gorm:"column:completions_total"`
	CompletionsOnTime     int       `gorm:"column:completions_on_time"`
	ProofsTotal           int       `gorm:"column:proofs_total"`
	ProofsComplete        int       `gorm:"column:proofs_complete"`
	ResponseSamples       int       `gorm:"column:response_samples"`
	MedianResponseMinutes float64   `gorm:"column:median_response_minutes"`
	ShowUpRate            float64   `gorm:"column:show_up_rate"`
	ResponseTimeScore     float64   `gorm:"column:response_time_score"`
	DisputeScore          float64   `gorm:"column:dispute_score"`
	ProofCompleteness     float64   `gorm:"column:proof_completeness"`
	OnTimeRate            float64   `gorm:"column:on_time_rate"`
	Score                 float64   `gorm:"column:score"`
	AutoReleaseEligible   bool      `gorm:"column:auto_release_eligible"`
	LargeJobsEligible     bool      `gorm:"column:large_jobs_eligible"`
	HighTicketEligible    bool      `gorm:"column:high_ticket_eligible"`
	UpdatedAt             time.Time `gorm:"column:updated_at"`
}

func (reliabilityScoreModel) TableName() string { return "reliability_scores" }

type reliabilityHistoryModel struct {
	EntryID           string    `gorm:"column:entry_id;type:uuid;primaryKey"`
	ContractorID      string    `gorm:"column:contractor_id;type:uuid"`
	Score             float64   `gorm:"column:score"`
	ShowUpRate        float64   `gorm:"column:show_up_rate"`
	ResponseTimeScore float64   `gorm:"column:response_time_score"`
	DisputeScore      float64   `gorm:"column:dispute_score"`
	ProofCompleteness float64   `gorm:"column:proof_completeness"`
	OnTimeRate        float64   `gorm:"column:on_time_rate"`
	Cause             string    `gorm:"column:cause"`
	RecordedAt        time.Time `gorm:"column:recorded_at"`
}

func (reliabilityHistoryModel) TableName() string { return "reliability_history" }

type subscriptionModel struct {
	SubscriptionID string     `gorm:"column:subscription_id;type:uuid;primaryKey"`
	ContractorID   string     `gorm:"column:contractor_id;type:uuid"`
	PlanID         string     `gorm:"column:plan_id"`
	ProviderRef    string     `gorm:"column:provider_ref"`
	Status         string     `gorm:"column:status"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
	CancelledAt    *time.Time `gorm:"column:cancelled_at"`
}

func (subscriptionModel) TableName() string { return "contractor_subscriptions" }

type escrowIdempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	Status         string    `gorm:"column:status"`
	ResponseCode   int       `gorm:"column:response_code"`
	ResponseBody   *string   `gorm:"column:response_body;type:jsonb"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (escrowIdempotencyModel) TableName() string { return "escrow_idempotency" }

type escrowOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (escrowOutboxModel) TableName() string { return "escrow_outbox" }

type platformConfigModel struct {
	ConfigKey string    `gorm:"column:config_key;primaryKey"`
	Document  string    `gorm:"column:document;type:jsonb"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (platformConfigModel) TableName() string { return "platform_config" }
