package billing

import "time"

// ProcessedEvent marks a processor event id as claimed. It is written in the same
// transaction as the event's ledger effects, so an id commits at most once.
type ProcessedEvent struct {
	EventID     string
	EventType   string
	AccountID   *string
	Payload     []byte
	ProcessedAt time.Time
}

// NewProcessedEvent builds the claim row for an event
func NewProcessedEvent(event ProcessorEvent, at time.Time) *ProcessedEvent {
	env := event.Envelope()
	return &ProcessedEvent{
		EventID:     env.ID,
		EventType:   env.Type,
		AccountID:   env.Account.Ptr(),
		Payload:     env.Payload,
		ProcessedAt: at,
	}
}
