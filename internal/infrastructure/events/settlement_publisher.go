package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const subjectPrefix = "settlements.created"

// publisher is the part of jetstream.JetStream the settlement publisher uses.
type publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// SettlementPublisher publishes settlement-created events to JetStream for
// payment collection. The settlement id is the message id, so a repeated
// publish of the same settlement is deduplicated by the server.
type SettlementPublisher struct {
	js  publisher
	log logger.Logger
}

// NewSettlementPublisher ensures the stream exists and returns a publisher
// bound to it.
func NewSettlementPublisher(ctx context.Context, conn *nats.Conn, stream string, log logger.Logger) (*SettlementPublisher, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        stream,
		Description: "Settlements awaiting payment collection",
		Subjects:    []string{subjectPrefix + ".*"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      7 * 24 * time.Hour,
		Duplicates:  time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}
	log.Info("JetStream stream ready", "stream", stream)

	return &SettlementPublisher{js: js, log: log}, nil
}

func Subject(auctionID string) string {
	return fmt.Sprintf("%s.%s", subjectPrefix, auctionID)
}

func (p *SettlementPublisher) PublishSettlement(ctx context.Context, event *domain.SettlementEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal settlement event: %w", err)
	}

	ack, err := p.js.Publish(ctx, Subject(event.AuctionID), data, jetstream.WithMsgID(event.SettlementID))
	if err != nil {
		return fmt.Errorf("failed to publish to JetStream: %w", err)
	}

	p.log.Debug("Published settlement", "auction_id", event.AuctionID, "settlement_id", event.SettlementID,
		"seq", ack.Sequence, "duplicate", ack.Duplicate)
	return nil
}

var _ domain.SettlementPublisher = (*SettlementPublisher)(nil)
