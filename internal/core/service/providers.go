package service

import (
	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/DanielPopoola/charge-connector/internal/core/ports"
)

// ProviderRegistry resolves payment providers by gateway name.
type ProviderRegistry struct {
	providers map[string]ports.PaymentProvider
}

func NewProviderRegistry(providers ...ports.PaymentProvider) *ProviderRegistry {
	r := &ProviderRegistry{providers: make(map[string]ports.PaymentProvider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *ProviderRegistry) ByName(name string) (ports.PaymentProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, domain.NewUnsupportedGatewayError(name)
	}
	return p, nil
}

func (r *ProviderRegistry) ForCharge(charge *domain.Charge) (ports.PaymentProvider, error) {
	return r.ByName(charge.GatewayAccount.GatewayName)
}
