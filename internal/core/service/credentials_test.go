package service

import (
	"context"
	"errors"
	"testing"

	"github.com/givestack/braintree-donations/internal/core/domain"
)

func TestCredentialResolverCachesPerEnvironment(t *testing.T) {
	ctx := context.Background()
	settings := testSettings()
	resolver, factory := newTestResolver(settings, &mockProcessor{})

	for i := 0; i < 3; i++ {
		if _, _, err := resolver.Resolve(ctx, domain.EnvironmentTest, nil); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
	}
	if factory.calls != 1 {
		t.Errorf("factory called %d times, want 1", factory.calls)
	}

	// Changed keys build a new client.
	_ = settings.Set(ctx, "gateways_braintree.test_private_key", "rotated")
	_, creds, err := resolver.Resolve(ctx, domain.EnvironmentTest, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if factory.calls != 2 {
		t.Errorf("factory called %d times after key change, want 2", factory.calls)
	}
	if creds.PrivateKey != "rotated" {
		t.Errorf("PrivateKey = %q, want rotated", creds.PrivateKey)
	}

	resolver.Invalidate(domain.EnvironmentTest)
	if _, _, err := resolver.Resolve(ctx, domain.EnvironmentTest, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if factory.calls != 3 {
		t.Errorf("factory called %d times after Invalidate, want 3", factory.calls)
	}
}

func TestCredentialResolverNotConfigured(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
	}{
		{"nothing set", nil},
		{"missing private key", map[string]string{
			"gateways_braintree.live_merchant_id": "m",
			"gateways_braintree.live_public_key":  "p",
		}},
		{"blank merchant id", map[string]string{
			"gateways_braintree.live_merchant_id": "  ",
			"gateways_braintree.live_public_key":  "p",
			"gateways_braintree.live_private_key": "k",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver, factory := newTestResolver(newMemSettings(tt.values), &mockProcessor{})

			_, _, err := resolver.Resolve(context.Background(), domain.EnvironmentLive, nil)
			if !errors.Is(err, domain.ErrGatewayNotConfigured) {
				t.Errorf("expected ErrGatewayNotConfigured, got %v", err)
			}
			if factory.calls != 0 {
				t.Errorf("factory called %d times, want 0", factory.calls)
			}
		})
	}
}

func TestCredentialResolverOverride(t *testing.T) {
	ctx := context.Background()
	resolver, factory := newTestResolver(newMemSettings(nil), &mockProcessor{})

	override := &domain.Credentials{MerchantID: "m2", PublicKey: "p2", PrivateKey: "k2"}
	for i := 0; i < 2; i++ {
		_, creds, err := resolver.Resolve(ctx, domain.EnvironmentLive, override)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if creds.MerchantID != "m2" {
			t.Errorf("MerchantID = %q, want m2", creds.MerchantID)
		}
	}
	if factory.calls != 2 {
		t.Errorf("override clients must not be cached: factory called %d times", factory.calls)
	}

	_, _, err := resolver.Resolve(ctx, domain.EnvironmentLive, &domain.Credentials{MerchantID: "m2"})
	if !errors.Is(err, domain.ErrGatewayNotConfigured) {
		t.Errorf("expected ErrGatewayNotConfigured for incomplete override, got %v", err)
	}
}

func TestCredentialResolverEnvironmentsAreSeparate(t *testing.T) {
	ctx := context.Background()
	settings := testSettings()
	settings.values["gateways_braintree.live_merchant_id"] = "live_m"
	settings.values["gateways_braintree.live_public_key"] = "live_p"
	settings.values["gateways_braintree.live_private_key"] = "live_k"
	resolver, factory := newTestResolver(settings, &mockProcessor{})

	_, testCreds, _ := resolver.Resolve(ctx, domain.EnvironmentTest, nil)
	_, liveCreds, _ := resolver.Resolve(ctx, domain.EnvironmentLive, nil)

	if testCreds.MerchantID != "merchant123" || liveCreds.MerchantID != "live_m" {
		t.Errorf("got merchants %q/%q", testCreds.MerchantID, liveCreds.MerchantID)
	}
	if testCreds.MerchantAccountID != "donations_usd" || liveCreds.MerchantAccountID != "" {
		t.Errorf("got merchant accounts %q/%q", testCreds.MerchantAccountID, liveCreds.MerchantAccountID)
	}
	if factory.calls != 2 {
		t.Errorf("factory called %d times, want 2", factory.calls)
	}
}
