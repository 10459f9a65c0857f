package billing

import (
	"context"
	"errors"
	"time"

	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// WebhookService turns processor webhook deliveries into exactly-once ledger effects
type WebhookService struct {
	decoder    EventDecoder
	scope      LedgerScope
	ledger     Ledger
	reconciler *Reconciler
	cache      ProcessedEventCache
	metrics    ReconciliationRecorder
	logger     *zap.Logger
	now        func() time.Time
}

// WebhookServiceConfig contains configuration for WebhookService
type WebhookServiceConfig struct {
	Decoder EventDecoder
	Scope   LedgerScope
	// Ledger serves the read-only fast path outside any transaction
	Ledger     Ledger
	Reconciler *Reconciler
	// Cache is optional
	Cache ProcessedEventCache
	// Metrics is optional
	Metrics ReconciliationRecorder
	Logger  *zap.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(cfg WebhookServiceConfig) *WebhookService {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NoopRecorder{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reconciler := cfg.Reconciler
	if reconciler == nil {
		reconciler = NewReconciler(logger)
	}
	return &WebhookService{
		decoder:    cfg.Decoder,
		scope:      cfg.Scope,
		ledger:     cfg.Ledger,
		reconciler: reconciler,
		cache:      cfg.Cache,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// WebhookResult contains the result of processing a webhook
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Ignored   bool   `json:"ignored,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ProcessEvent verifies a webhook delivery and applies it once. routing is the
// account the delivery endpoint is bound to; events for another account are
// acknowledged without effect.
//
// Decoding errors (billing.ErrSignatureInvalid, shared.ErrInvalidInput) are
// returned before any transaction opens. Any other error means nothing was
// committed and the processor should redeliver.
func (s *WebhookService) ProcessEvent(ctx context.Context, payload []byte, signature string, routing billing.AccountRef) (*WebhookResult, error) {
	event, err := s.decoder.Decode(payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrUnsupportedEvent) {
			return s.ignoreUnsupported(ctx, err), nil
		}
		s.logger.Error("Failed to decode webhook event", zap.Error(err))
		return nil, err
	}

	env := event.Envelope()
	logger := s.logger.With(
		zap.String("event_id", env.ID),
		zap.String("event_type", env.Type),
		zap.String("account", env.Account.String()))
	s.metrics.EventReceived(ctx, env.Type)

	result := &WebhookResult{EventID: env.ID, EventType: env.Type}

	if routing.IsSome() && !env.Account.Equal(routing) {
		logger.Warn("Event account does not match routing account, ignoring",
			zap.String("routing_account", routing.String()))
		s.metrics.EventIgnored(ctx, env.Type, IgnoreReasonAccountMismatch)
		result.Ignored = true
		result.Message = "Event account does not match endpoint"
		return result, nil
	}

	if layer, dup := s.seen(ctx, logger, env.ID); dup {
		logger.Debug("Duplicate webhook event", zap.String("layer", layer))
		s.metrics.EventDuplicate(ctx, env.Type, layer)
		result.Duplicate = true
		result.Processed = true
		return result, nil
	}

	start := s.now()
	claimed := false
	var handler *LedgerHandler
	err = s.scope.Execute(ctx, func(ledger Ledger) error {
		ok, err := ledger.ProcessedEvents().Claim(ctx, billing.NewProcessedEvent(event, s.now().UTC()))
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		claimed = true
		handler = s.reconciler.Bind(ledger, env.ID)
		return event.Dispatch(ctx, handler)
	})
	if err != nil {
		logger.Error("Failed to process webhook event", zap.Error(err))
		s.metrics.EventFailed(ctx, env.Type)
		result.Message = err.Error()
		return result, err
	}

	result.Processed = true
	if !claimed {
		logger.Debug("Duplicate webhook event", zap.String("layer", DuplicateLayerClaim))
		s.metrics.EventDuplicate(ctx, env.Type, DuplicateLayerClaim)
		result.Duplicate = true
	} else {
		s.remember(ctx, logger, env.ID)
		for _, method := range handler.Recorded() {
			s.metrics.PaymentRecorded(ctx, method)
		}
		s.metrics.EventProcessed(ctx, env.Type, s.now().Sub(start))
		logger.Info("Webhook event processed")
	}
	return result, nil
}

// ignoreUnsupported acknowledges a verified event the ledger does not react to
func (s *WebhookService) ignoreUnsupported(ctx context.Context, err error) *WebhookResult {
	result := &WebhookResult{Ignored: true, Message: "Event type not handled"}
	var details map[string]string
	var de *shared.DomainError
	if errors.As(err, &de) {
		details = de.Details
		result.EventID = details[billing.DetailEventID]
		result.EventType = details[billing.DetailEventType]
	}
	eventType := result.EventType
	if eventType == "" {
		eventType = "unsupported"
	}

	s.logger.Debug("Unhandled webhook event",
		zap.String("event_id", result.EventID),
		zap.String("event_type", result.EventType),
		zap.Any("details", details))
	s.metrics.EventIgnored(ctx, eventType, IgnoreReasonUnsupported)
	return result
}

// seen checks the cache and then the store for an already-committed event
func (s *WebhookService) seen(ctx context.Context, logger *zap.Logger, eventID string) (string, bool) {
	if s.cache != nil {
		hit, err := s.cache.Seen(ctx, eventID)
		if err != nil {
			logger.Warn("Processed event cache lookup failed", zap.Error(err))
		} else if hit {
			return DuplicateLayerCache, true
		}
	}
	if s.ledger != nil {
		exists, err := s.ledger.ProcessedEvents().Exists(ctx, eventID)
		if err != nil {
			logger.Warn("Processed event lookup failed", zap.Error(err))
		} else if exists {
			s.remember(ctx, logger, eventID)
			return DuplicateLayerStore, true
		}
	}
	return "", false
}

func (s *WebhookService) remember(ctx context.Context, logger *zap.Logger, eventID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Remember(ctx, eventID); err != nil {
		logger.Warn("Failed to remember processed event", zap.Error(err))
	}
}
