// Package payments provides the payment provider implementations behind the
// provider factory. The sandbox provider simulates holds, transfers and
// refunds with deterministic references; the unavailable provider represents
// the explicit "no provider enabled" configuration.
package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/trustvibe/escrow-service/internal/domain"
	"github.com/trustvibe/escrow-service/internal/ports"
)

// SandboxProvider approves every request and issues deterministic references
// derived from the input plus a process-local counter.
type SandboxProvider struct {
	seq atomic.Int64
}

func NewSandboxProvider() *SandboxProvider {
	return &SandboxProvider{}
}

func (p *SandboxProvider) Name() string { return domain.ProviderSandbox }

func (p *SandboxProvider) ref(prefix, seed string) string {
	n := p.seq.Add(1)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", prefix, seed, n)))
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(sum[:8]))
}

func (p *SandboxProvider) CreateHold(_ context.Context, req ports.HoldRequest) (ports.HoldResult, error) {
	if req.AmountCents <= 0 {
		return ports.HoldResult{}, fmt.Errorf("%w: hold amount must be positive", domain.ErrInvalidInput)
	}
	return ports.HoldResult{ProviderRef: p.ref("hold", req.ProjectID)}, nil
}

func (p *SandboxProvider) Release(_ context.Context, req ports.ReleaseRequest) (ports.ReleaseResult, error) {
	if req.ProviderRef == "" {
		return ports.ReleaseResult{}, fmt.Errorf("%w: release requires a hold reference", domain.ErrInvalidInput)
	}
	if req.AmountCents < 0 {
		return ports.ReleaseResult{}, fmt.Errorf("%w: release amount must not be negative", domain.ErrInvalidInput)
	}
	return ports.ReleaseResult{TransferRef: p.ref("tr", req.ProviderRef)}, nil
}

func (p *SandboxProvider) Refund(_ context.Context, req ports.RefundRequest) (ports.RefundResult, error) {
	if req.ProviderRef == "" {
		return ports.RefundResult{}, fmt.Errorf("%w: refund requires a hold reference", domain.ErrInvalidInput)
	}
	if req.AmountCents <= 0 {
		return ports.RefundResult{}, fmt.Errorf("%w: refund amount must be positive", domain.ErrInvalidInput)
	}
	return ports.RefundResult{RefundRef: p.ref("re", req.ProviderRef)}, nil
}

func (p *SandboxProvider) CreateConnectedAccount(_ context.Context, contractorID string) (ports.ConnectedAccountResult, error) {
	return ports.ConnectedAccountResult{AccountRef: p.ref("acct", contractorID)}, nil
}

func (p *SandboxProvider) GetOnboardingLink(_ context.Context, accountRef, returnURL string) (ports.OnboardingLinkResult, error) {
	if accountRef == "" {
		return ports.OnboardingLinkResult{}, fmt.Errorf("%w: account reference is required", domain.ErrInvalidInput)
	}
	return ports.OnboardingLinkResult{
		URL: fmt.Sprintf("https://sandbox.payments.local/onboarding/%s?return_to=%s", accountRef, returnURL),
	}, nil
}

func (p *SandboxProvider) CreateSubscription(_ context.Context, req ports.SubscriptionRequest) (ports.SubscriptionResult, error) {
	if req.PlanID == "" {
		return ports.SubscriptionResult{}, fmt.Errorf("%w: plan is required", domain.ErrInvalidInput)
	}
	return ports.SubscriptionResult{
		ProviderRef: p.ref("sub", req.ContractorID),
		Status:      "active",
	}, nil
}

func (p *SandboxProvider) UpdateSubscription(_ context.Context, providerRef, planID string) (ports.SubscriptionResult, error) {
	if providerRef == "" || planID == "" {
		return ports.SubscriptionResult{}, fmt.Errorf("%w: subscription reference and plan are required", domain.ErrInvalidInput)
	}
	return ports.SubscriptionResult{ProviderRef: providerRef, Status: "active"}, nil
}

func (p *SandboxProvider) CancelSubscription(_ context.Context, providerRef string) error {
	if providerRef == "" {
		return fmt.Errorf("%w: subscription reference is required", domain.ErrInvalidInput)
	}
	return nil
}

func (p *SandboxProvider) CreateInvoice(_ context.Context, req ports.InvoiceRequest) (ports.InvoiceResult, error) {
	if req.AmountCents <= 0 {
		return ports.InvoiceResult{}, fmt.Errorf("%w: invoice amount must be positive", domain.ErrInvalidInput)
	}
	return ports.InvoiceResult{InvoiceRef: p.ref("inv", req.AccountRef)}, nil
}
