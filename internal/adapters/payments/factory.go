package payments

import (
	"github.com/trustvibe/escrow-service/internal/domain"
	"github.com/trustvibe/escrow-service/internal/ports"
)

// NewFactory builds the provider factory resolved once per operation. Unknown
// provider names resolve to the unavailable provider so misconfiguration
// surfaces as ErrNotImplemented instead of silently moving money through the
// sandbox.
func NewFactory() ports.ProviderFactory {
	sandbox := NewSandboxProvider()
	unavailable := NewUnavailableProvider()
	return func(providerName string) ports.PaymentProvider {
		switch providerName {
		case domain.ProviderSandbox:
			return sandbox
		default:
			return unavailable
		}
	}
}
