package billing

import (
	"fmt"
	"strings"

	"github.com/fieldops/backend/internal/infrastructure/config"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"go.uber.org/zap"
)

// ValidateStripeConfig validates the configuration needed to talk to Stripe
func ValidateStripeConfig(cfg *config.StripeConfig) error {
	if cfg == nil {
		return fmt.Errorf("stripe: config is required")
	}
	if cfg.SecretKey == "" {
		return fmt.Errorf("stripe: secret key is required")
	}
	if !strings.HasPrefix(cfg.SecretKey, "sk_") && !strings.HasPrefix(cfg.SecretKey, "rk_") {
		return fmt.Errorf("stripe: secret key must start with sk_ or rk_")
	}
	if cfg.WebhookSecret == "" {
		return fmt.Errorf("stripe: webhook secret is required")
	}
	if cfg.SuccessURL == "" || cfg.CancelURL == "" {
		return fmt.Errorf("stripe: success and cancel URLs are required")
	}
	return nil
}

// NewStripeClient builds a Stripe API client bound to the configured key.
// backend may be nil, in which case one is created from the config.
func NewStripeClient(cfg *config.StripeConfig, backend stripe.Backend, logger *zap.Logger) (*client.API, error) {
	if err := ValidateStripeConfig(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if backend == nil {
		backendCfg := &stripe.BackendConfig{
			LeveledLogger:     logger.Named("stripe").Sugar(),
			MaxNetworkRetries: stripe.Int64(cfg.MaxRetries),
		}
		if cfg.APIBaseURL != "" {
			backendCfg.URL = stripe.String(cfg.APIBaseURL)
		}
		backend = stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)
	}

	sc := &client.API{}
	sc.Init(cfg.SecretKey, &stripe.Backends{API: backend})
	return sc, nil
}
