package billing

import (
	"encoding/json"
	"errors"
	"fmt"

	appbilling "github.com/fieldops/backend/internal/application/billing"
	domainBilling "github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// StripeEventDecoder verifies Stripe webhook signatures and maps the events the
// ledger reacts to onto domain events
type StripeEventDecoder struct {
	secret string
	logger *zap.Logger
}

// NewStripeEventDecoder creates a decoder for the given endpoint secret
func NewStripeEventDecoder(webhookSecret string, logger *zap.Logger) (*StripeEventDecoder, error) {
	if webhookSecret == "" {
		return nil, fmt.Errorf("stripe: webhook secret is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeEventDecoder{secret: webhookSecret, logger: logger}, nil
}

// Decode verifies payload against the Stripe-Signature header value and decodes it
func (d *StripeEventDecoder) Decode(payload []byte, signature string) (domainBilling.ProcessorEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, d.secret, webhook.ConstructEventOptions{
		// The ledger reads a handful of stable fields, so pinned API versions do not matter
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			d.logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
			return nil, domainBilling.ErrSignatureInvalid.WithDetail("reason", err.Error())
		}
		return nil, shared.ErrInvalidInput.WithMessage(fmt.Sprintf("stripe: failed to parse webhook event: %v", err))
	}

	env := domainBilling.EventEnvelope{
		ID:      event.ID,
		Type:    string(event.Type),
		Account: domainBilling.SomeAccount(event.Account),
		Payload: payload,
	}
	if event.Data == nil {
		return nil, shared.ErrInvalidInput.WithMessage("stripe: webhook event has no data object")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		return d.decodeCheckout(env, event.Data.Raw)
	case stripe.EventTypePaymentIntentSucceeded:
		return d.decodePaymentIntent(env, event.Data.Raw)
	case stripe.EventTypeChargeRefunded:
		return d.decodeRefund(env, event.Data.Raw)
	case stripe.EventTypeChargeDisputeCreated:
		return d.decodeDisputeCreated(env, event.Data.Raw)
	case stripe.EventTypeChargeDisputeClosed:
		return d.decodeDisputeClosed(env, event.Data.Raw)
	default:
		return nil, unsupported(env)
	}
}

func (d *StripeEventDecoder) decodeCheckout(env domainBilling.EventEnvelope, raw json.RawMessage) (domainBilling.ProcessorEvent, error) {
	var sess stripe.CheckoutSession
	if err := unmarshalObject(raw, &sess); err != nil {
		return nil, err
	}
	// Delayed methods complete unpaid and settle later via async_payment_succeeded
	if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		return nil, unsupported(env).WithDetail("payment_status", string(sess.PaymentStatus))
	}

	return &domainBilling.CheckoutCompleted{
		EventEnvelope:   env,
		SessionID:       sess.ID,
		PaymentIntentID: paymentIntentID(sess.PaymentIntent),
		Amount:          domainBilling.FromMinorUnits(sess.AmountTotal),
		Metadata:        domainBilling.ParsePaymentMetadata(sess.Metadata),
	}, nil
}

func (d *StripeEventDecoder) decodePaymentIntent(env domainBilling.EventEnvelope, raw json.RawMessage) (domainBilling.ProcessorEvent, error) {
	var pi stripe.PaymentIntent
	if err := unmarshalObject(raw, &pi); err != nil {
		return nil, err
	}
	return &domainBilling.PaymentSucceeded{
		EventEnvelope:   env,
		PaymentIntentID: pi.ID,
		ChargeID:        chargeID(pi.LatestCharge),
		Amount:          domainBilling.FromMinorUnits(pi.AmountReceived),
		Metadata:        domainBilling.ParsePaymentMetadata(pi.Metadata),
	}, nil
}

func (d *StripeEventDecoder) decodeRefund(env domainBilling.EventEnvelope, raw json.RawMessage) (domainBilling.ProcessorEvent, error) {
	var ch stripe.Charge
	if err := unmarshalObject(raw, &ch); err != nil {
		return nil, err
	}
	return &domainBilling.ChargeRefunded{
		EventEnvelope:   env,
		ChargeID:        ch.ID,
		PaymentIntentID: paymentIntentID(ch.PaymentIntent),
		Amount:          domainBilling.FromMinorUnits(ch.Amount),
		AmountRefunded:  domainBilling.FromMinorUnits(ch.AmountRefunded),
		FullyRefunded:   ch.Refunded,
	}, nil
}

func (d *StripeEventDecoder) decodeDisputeCreated(env domainBilling.EventEnvelope, raw json.RawMessage) (domainBilling.ProcessorEvent, error) {
	var dp stripe.Dispute
	if err := unmarshalObject(raw, &dp); err != nil {
		return nil, err
	}
	return &domainBilling.DisputeCreated{
		EventEnvelope:   env,
		DisputeID:       dp.ID,
		ChargeID:        chargeID(dp.Charge),
		PaymentIntentID: disputePaymentIntentID(&dp),
	}, nil
}

func (d *StripeEventDecoder) decodeDisputeClosed(env domainBilling.EventEnvelope, raw json.RawMessage) (domainBilling.ProcessorEvent, error) {
	var dp stripe.Dispute
	if err := unmarshalObject(raw, &dp); err != nil {
		return nil, err
	}

	// Any closing status other than won or warning_closed (lost, prevented,
	// charge_refunded, ...) means the funds are gone
	outcome := domainBilling.DisputeOutcome(dp.Status)
	switch dp.Status {
	case stripe.DisputeStatusWon:
		outcome = domainBilling.DisputeWon
	case stripe.DisputeStatusWarningClosed:
		outcome = domainBilling.DisputeWarningClosed
	case "":
		outcome = domainBilling.DisputeLost
	}

	return &domainBilling.DisputeClosed{
		EventEnvelope:   env,
		DisputeID:       dp.ID,
		ChargeID:        chargeID(dp.Charge),
		PaymentIntentID: disputePaymentIntentID(&dp),
		Outcome:         outcome,
	}, nil
}

func unmarshalObject(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return shared.ErrInvalidInput.WithMessage(fmt.Sprintf("stripe: failed to parse event object: %v", err))
	}
	return nil
}

func unsupported(env domainBilling.EventEnvelope) *shared.DomainError {
	return domainBilling.ErrUnsupportedEvent.
		WithDetail(domainBilling.DetailEventID, env.ID).
		WithDetail(domainBilling.DetailEventType, env.Type)
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

func paymentIntentID(pi *stripe.PaymentIntent) string {
	if pi == nil {
		return ""
	}
	return pi.ID
}

func chargeID(ch *stripe.Charge) string {
	if ch == nil {
		return ""
	}
	return ch.ID
}

// disputePaymentIntentID prefers the dispute's own reference and falls back to
// an expanded charge
func disputePaymentIntentID(dp *stripe.Dispute) string {
	if id := paymentIntentID(dp.PaymentIntent); id != "" {
		return id
	}
	if dp.Charge != nil {
		return paymentIntentID(dp.Charge.PaymentIntent)
	}
	return ""
}

var _ appbilling.EventDecoder = (*StripeEventDecoder)(nil)
