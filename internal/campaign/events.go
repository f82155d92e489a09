package campaign

import (
	"context"
	"time"
)

// OfferSentEvent is published after each successful send for external
// reporting consumers.
type OfferSentEvent struct {
	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email"`
	Version   string    `json:"version"`
	Mode      string    `json:"mode"`
	MessageID string    `json:"message_id"`
	SentAt    time.Time `json:"sent_at"`
}

// OffersResetEvent is published after a reset operation.
type OffersResetEvent struct {
	Count   int64     `json:"count"`
	ResetAt time.Time `json:"reset_at"`
}

// EventPublisher publishes campaign events. Implementations must be safe to
// skip: the service treats a nil publisher as publishing disabled and a
// publish failure as advisory.
type EventPublisher interface {
	PublishOfferSent(ctx context.Context, event OfferSentEvent) error
	PublishOffersReset(ctx context.Context, event OffersResetEvent) error
}
