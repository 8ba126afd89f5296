package domain

import "time"

const (
	CaseStatusOpen            = "OPEN"
	CaseStatusMandatoryReview = "MANDATORY_REVIEW"
	CaseStatusClosed          = "CLOSED"
)

// External resolution document kinds accepted as binding decisions.
const (
	ResolutionDocCourtOrder       = "court_order"
	ResolutionDocMediatorDecision = "mediator_decision"
	ResolutionDocSignedSettlement = "signed_settlement"
)

// Case is the dispute container opened when a customer raises an issue hold.
type Case struct {
	CaseID            string     `json:"case_id"`
	ProjectID         string     `json:"project_id"`
	OpenedBy          string     `json:"opened_by"`
	OpenedByRole      string     `json:"opened_by_role"`
	Reason            string     `json:"reason"`
	Status            string     `json:"status"`
	IssueRaisedAt     time.Time  `json:"issue_raised_at"`
	ResolutionDocRef  string     `json:"resolution_doc_ref,omitempty"`
	ResolutionDocKind string     `json:"resolution_doc_kind,omitempty"`
	SubmittedBy       string     `json:"submitted_by,omitempty"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// JointReleaseProposal is a release/refund split requiring both-party
// signatures. It executes at most once; the split must equal the project's
// held amount at propose time.
type JointReleaseProposal struct {
	ProposalID           string     `json:"proposal_id"`
	CaseID               string     `json:"case_id"`
	ProjectID            string     `json:"project_id"`
	ProposedBy           string     `json:"proposed_by"`
	ReleaseCents         int64      `json:"release_cents"`
	RefundCents          int64      `json:"refund_cents"`
	CustomerSignedAt     *time.Time `json:"customer_signed_at,omitempty"`
	ContractorSignedAt   *time.Time `json:"contractor_signed_at,omitempty"`
	ExecutedAt           *time.Time `json:"executed_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// FullySigned reports whether both parties have signed, in any order.
func (p JointReleaseProposal) FullySigned() bool {
	return p.CustomerSignedAt != nil && p.ContractorSignedAt != nil
}
