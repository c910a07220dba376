// Package braintree implements the Processor port using the braintree-go SDK.
package braintree

import (
	"net/http"
	"time"

	bt "github.com/braintree-go/braintree-go"
	"go.uber.org/zap"

	"github.com/givestack/braintree-donations/internal/core/domain"
	"github.com/givestack/braintree-donations/internal/core/ports"
)

// DefaultTimeout bounds every call to the Braintree API.
const DefaultTimeout = 30 * time.Second

// Factory builds Braintree clients. It never calls the API.
type Factory struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewFactory creates a client factory. A zero timeout uses DefaultTimeout.
func NewFactory(timeout time.Duration, logger *zap.Logger) *Factory {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Factory{timeout: timeout, logger: logger}
}

// NewProcessor implements ports.ProcessorFactory.
func (f *Factory) NewProcessor(env domain.Environment, creds domain.Credentials) (ports.Processor, error) {
	if !creds.Complete() {
		return nil, domain.ErrGatewayNotConfigured
	}

	client := bt.NewWithHttpClient(
		sdkEnvironment(env),
		creds.MerchantID,
		creds.PublicKey,
		creds.PrivateKey,
		&http.Client{Timeout: f.timeout},
	)

	return &Adapter{
		gateway: client,
		logger:  f.logger.With(zap.String("environment", string(env))),
	}, nil
}

func sdkEnvironment(env domain.Environment) bt.Environment {
	if env.IsTest() {
		return bt.Sandbox
	}
	return bt.Production
}
