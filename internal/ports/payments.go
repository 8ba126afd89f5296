package ports

import "context"

type HoldRequest struct {
	ProjectID   string
	CustomerID  string
	AmountCents int64
	Description string
}

type HoldResult struct {
	ProviderRef string
}

type ReleaseRequest struct {
	ProviderRef  string
	ContractorID string
	AmountCents  int64
	FeeCents     int64
}

type ReleaseResult struct {
	TransferRef string
}

type RefundRequest struct {
	ProviderRef string
	CustomerID  string
	AmountCents int64
}

type RefundResult struct {
	RefundRef string
}

type ConnectedAccountResult struct {
	AccountRef string
}

type OnboardingLinkResult struct {
	URL string
}

type SubscriptionRequest struct {
	ContractorID string
	PlanID       string
}

type SubscriptionResult struct {
	ProviderRef string
	Status      string
}

type InvoiceRequest struct {
	AccountRef  string
	AmountCents int64
	Description string
}

type InvoiceResult struct {
	InvoiceRef string
}

// PaymentProvider is the capability contract for the external payment
// processor. A provider may legitimately fail every method with
// domain.ErrNotImplemented until fully wired; callers treat that as a
// first-class state, not an accidental gap.
type PaymentProvider interface {
	Name() string
	CreateHold(ctx context.Context, req HoldRequest) (HoldResult, error)
	Release(ctx context.Context, req ReleaseRequest) (ReleaseResult, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
	CreateConnectedAccount(ctx context.Context, contractorID string) (ConnectedAccountResult, error)
	GetOnboardingLink(ctx context.Context, accountRef, returnURL string) (OnboardingLinkResult, error)
	CreateSubscription(ctx context.Context, req SubscriptionRequest) (SubscriptionResult, error)
	UpdateSubscription(ctx context.Context, providerRef, planID string) (SubscriptionResult, error)
	CancelSubscription(ctx context.Context, providerRef string) error
	CreateInvoice(ctx context.Context, req InvoiceRequest) (InvoiceResult, error)
}

// ProviderFactory resolves the active provider from a configuration snapshot.
// It is called once per operation so a configuration change can never serve a
// stale provider across requests.
type ProviderFactory func(providerName string) PaymentProvider
