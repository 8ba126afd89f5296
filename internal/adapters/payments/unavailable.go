package payments

import (
	"context"
	"fmt"

	"github.com/trustvibe/escrow-service/internal/domain"
	"github.com/trustvibe/escrow-service/internal/ports"
)

// UnavailableProvider fails every capability with ErrNotImplemented. It backs
// the "none" provider configuration so money-moving operations reject cleanly
// instead of panicking on a nil provider.
type UnavailableProvider struct{}

func NewUnavailableProvider() UnavailableProvider { return UnavailableProvider{} }

func (UnavailableProvider) Name() string { return domain.ProviderNone }

func notEnabled(capability string) error {
	return fmt.Errorf("%w: payment provider not enabled for %s", domain.ErrNotImplemented, capability)
}

func (UnavailableProvider) CreateHold(context.Context, ports.HoldRequest) (ports.HoldResult, error) {
	return ports.HoldResult{}, notEnabled("holds")
}

func (UnavailableProvider) Release(context.Context, ports.ReleaseRequest) (ports.ReleaseResult, error) {
	return ports.ReleaseResult{}, notEnabled("releases")
}

func (UnavailableProvider) Refund(context.Context, ports.RefundRequest) (ports.RefundResult, error) {
	return ports.RefundResult{}, notEnabled("refunds")
}

func (UnavailableProvider) CreateConnectedAccount(context.Context, string) (ports.ConnectedAccountResult, error) {
	return ports.ConnectedAccountResult{}, notEnabled("connected accounts")
}

func (UnavailableProvider) GetOnboardingLink(context.Context, string, string) (ports.OnboardingLinkResult, error) {
	return ports.OnboardingLinkResult{}, notEnabled("onboarding links")
}

func (UnavailableProvider) CreateSubscription(context.Context, ports.SubscriptionRequest) (ports.SubscriptionResult, error) {
	return ports.SubscriptionResult{}, notEnabled("subscriptions")
}

func (UnavailableProvider) UpdateSubscription(context.Context, string, string) (ports.SubscriptionResult, error) {
	return ports.SubscriptionResult{}, notEnabled("subscriptions")
}

func (UnavailableProvider) CancelSubscription(context.Context, string) error {
	return notEnabled("subscriptions")
}

func (UnavailableProvider) CreateInvoice(context.Context, ports.InvoiceRequest) (ports.InvoiceResult, error) {
	return ports.InvoiceResult{}, notEnabled("invoices")
}
