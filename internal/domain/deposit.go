package domain

import "time"

// Estimate deposit lifecycle. The deposit is a pre-engagement hold tied to an
// estimate appointment, independent of the project escrow lifecycle.
const (
	DepositStatusCreated          = "CREATED"
	DepositStatusCaptured         = "CAPTURED"
	DepositStatusAttended         = "ATTENDED"
	DepositStatusContractorNoShow = "CONTRACTOR_NO_SHOW"
	DepositStatusCustomerNoShow   = "CUSTOMER_NO_SHOW"
	DepositStatusRefunded         = "REFUNDED"
	DepositStatusCreditedToJob    = "CREDITED_TO_JOB"
)

// depositTransitions is the deposit sub-lifecycle adjacency table.
var depositTransitions = map[string][]string{
	DepositStatusCreated:  {DepositStatusCaptured},
	DepositStatusCaptured: {DepositStatusAttended, DepositStatusContractorNoShow, DepositStatusCustomerNoShow},
	DepositStatusAttended: {DepositStatusRefunded, DepositStatusCreditedToJob},
	// A contractor no-show refunds the customer automatically.
	DepositStatusContractorNoShow: {DepositStatusRefunded},
	// A customer no-show forfeits the deposit into job credit.
	DepositStatusCustomerNoShow: {DepositStatusCreditedToJob, DepositStatusRefunded},
	DepositStatusRefunded:       {},
	DepositStatusCreditedToJob:  {},
}

// CanTransitionDeposit reports whether the deposit status edge is legal.
func CanTransitionDeposit(from, to string) bool {
	for _, next := range depositTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EstimateDeposit is a pre-engagement hold tied to an appointment,
// convertible into job-funding credit exactly once.
type EstimateDeposit struct {
	DepositID     string     `json:"deposit_id"`
	ProjectID     string     `json:"project_id"`
	CustomerID    string     `json:"customer_id"`
	ContractorID  string     `json:"contractor_id"`
	AppointmentAt time.Time  `json:"appointment_at"`
	AmountCents   int64      `json:"amount_cents"`
	ProviderRef   string     `json:"provider_ref,omitempty"`
	Status        string     `json:"status"`
	CreditedAt    *time.Time `json:"credited_at,omitempty"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
