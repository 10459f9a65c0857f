package billing

import (
	"context"
	"fmt"
	"maps"
	"time"

	appbilling "github.com/fieldops/backend/internal/application/billing"
	domainBilling "github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/infrastructure/config"
	"github.com/fieldops/backend/internal/infrastructure/telemetry"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Stripe accepts expires_at between 30 minutes and 24 hours after creation
const (
	minCheckoutExpiry = 30 * time.Minute
	maxCheckoutExpiry = 24 * time.Hour
)

// StripeCheckoutGateway creates hosted Stripe checkout sessions
type StripeCheckoutGateway struct {
	api    *client.API
	config *config.StripeConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewStripeCheckoutGateway creates a checkout gateway on top of an initialized client
func NewStripeCheckoutGateway(api *client.API, cfg *config.StripeConfig, logger *zap.Logger) (*StripeCheckoutGateway, error) {
	if api == nil {
		return nil, fmt.Errorf("stripe: client is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("stripe: config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeCheckoutGateway{
		api:    api,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}, nil
}

// CreateCheckoutSession creates a single line item payment-mode checkout session
func (g *StripeCheckoutGateway) CreateCheckoutSession(ctx context.Context, req appbilling.CheckoutRequest) (*domainBilling.CheckoutSession, error) {
	ctx, span := telemetry.StartSpanWithKind(ctx, "stripe.checkout_sessions.create", trace.SpanKindClient,
		telemetry.SpanAttrAccount.String(req.Account.String()),
		telemetry.SpanAttrIdempotency.String(req.IdempotencyKey))
	defer span.End()

	amount := domainBilling.ToMinorUnits(req.Amount)
	if amount <= 0 {
		err := fmt.Errorf("stripe: checkout amount must be positive, got %s", req.Amount.String())
		telemetry.RecordError(span, err)
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = domainBilling.DefaultCurrency
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.config.SuccessURL),
		CancelURL:  stripe.String(g.config.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
			},
		},
		// Payment intent events carry the same correlation data as the session
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: maps.Clone(req.Metadata),
		},
	}
	params.Context = ctx
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	if expiry := g.config.CheckoutExpiry; expiry >= minCheckoutExpiry && expiry < maxCheckoutExpiry {
		params.ExpiresAt = stripe.Int64(g.now().Add(expiry).Unix())
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	if account, ok := req.Account.Get(); ok {
		params.SetStripeAccount(account)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		telemetry.RecordError(span, err)
		g.logger.Error("Failed to create Stripe checkout session",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.String("account", req.Account.String()),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}
	span.SetAttributes(telemetry.SpanAttrSessionID.String(sess.ID))

	g.logger.Info("Created Stripe checkout session",
		zap.String("session_id", sess.ID),
		zap.String("account", req.Account.String()),
		zap.Int64("amount", amount))

	result := &domainBilling.CheckoutSession{ID: sess.ID, URL: sess.URL}
	if sess.ExpiresAt > 0 {
		result.ExpiresAt = time.Unix(sess.ExpiresAt, 0).UTC()
	}
	return result, nil
}

var _ appbilling.CheckoutGateway = (*StripeCheckoutGateway)(nil)
