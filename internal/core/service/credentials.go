package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/givestack/braintree-donations/internal/core/domain"
	"github.com/givestack/braintree-donations/internal/core/ports"
)

// CredentialResolver turns stored gateway keys into processor clients.
// One client is kept per environment and rebuilt when the stored keys change.
type CredentialResolver struct {
	settings ports.SettingsStore
	factory  ports.ProcessorFactory
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[domain.Environment]cachedClient
}

type cachedClient struct {
	creds     domain.Credentials
	processor ports.Processor
}

// NewCredentialResolver creates a resolver backed by the settings store.
func NewCredentialResolver(settings ports.SettingsStore, factory ports.ProcessorFactory, logger *zap.Logger) *CredentialResolver {
	return &CredentialResolver{
		settings: settings,
		factory:  factory,
		logger:   logger,
		clients:  make(map[domain.Environment]cachedClient),
	}
}

// Credentials reads the stored keys for env.
func (r *CredentialResolver) Credentials(ctx context.Context, env domain.Environment) (domain.Credentials, error) {
	var creds domain.Credentials
	fields := []struct {
		name string
		dst  *string
	}{
		{"merchant_id", &creds.MerchantID},
		{"public_key", &creds.PublicKey},
		{"private_key", &creds.PrivateKey},
		{"merchant_account_id", &creds.MerchantAccountID},
	}
	for _, f := range fields {
		value, err := getString(ctx, r.settings, gatewaySetting(env, f.name))
		if err != nil {
			return domain.Credentials{}, fmt.Errorf("failed to read %s: %w", f.name, err)
		}
		*f.dst = value
	}
	return creds, nil
}

// Resolve returns a processor for env. When override is non-nil its keys are
// used instead of the stored ones and the result is not cached.
// Returns domain.ErrGatewayNotConfigured when any key is blank.
func (r *CredentialResolver) Resolve(ctx context.Context, env domain.Environment, override *domain.Credentials) (ports.Processor, domain.Credentials, error) {
	if override != nil {
		if !override.Complete() {
			return nil, domain.Credentials{}, domain.ErrGatewayNotConfigured
		}
		processor, err := r.factory.NewProcessor(env, *override)
		if err != nil {
			return nil, domain.Credentials{}, err
		}
		return processor, *override, nil
	}

	creds, err := r.Credentials(ctx, env)
	if err != nil {
		return nil, domain.Credentials{}, err
	}
	if !creds.Complete() {
		return nil, creds, domain.ErrGatewayNotConfigured
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.clients[env]; ok && cached.creds == creds {
		return cached.processor, creds, nil
	}

	processor, err := r.factory.NewProcessor(env, creds)
	if err != nil {
		return nil, creds, err
	}
	r.clients[env] = cachedClient{creds: creds, processor: processor}
	r.logger.Debug("Braintree client created", zap.String("environment", string(env)))

	return processor, creds, nil
}

// Invalidate drops the cached client for env.
func (r *CredentialResolver) Invalidate(env domain.Environment) {
	r.mu.Lock()
	delete(r.clients, env)
	r.mu.Unlock()
}
