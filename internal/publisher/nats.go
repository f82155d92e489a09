package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/elecmate/winback-service/internal/campaign"
)

// NATSClient interface to allow mocking
type NATSClient interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher implements campaign.EventPublisher over plain NATS publish.
type NATSPublisher struct {
	conn NATSClient
}

// NewNATSPublisher creates a new publisher
func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

// PublishOfferSent publishes one successful send for reporting consumers.
func (p *NATSPublisher) PublishOfferSent(ctx context.Context, event campaign.OfferSentEvent) error {
	return p.publish("winback.sent", event)
}

// PublishOffersReset publishes the outcome of a reset operation.
func (p *NATSPublisher) PublishOffersReset(ctx context.Context, event campaign.OffersResetEvent) error {
	return p.publish("winback.reset", event)
}

func (p *NATSPublisher) publish(subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}
