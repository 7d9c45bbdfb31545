package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/delinked/delinked/core"
	"github.com/delinked/delinked/ports"
)

const (
	// TopicRegistered carries first-authentication events.
	TopicRegistered = "delinked.auth.registered"

	// TopicAuthenticated carries returning-login events.
	TopicAuthenticated = "delinked.auth.login"
)

// AuthEvent is the payload published on both auth topics.
type AuthEvent struct {
	UserID     string    `json:"user_id"`
	Address    string    `json:"address"`
	Role       string    `json:"role"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WatermillPublisher implements the EventPublisher interface on top of a
// Watermill publisher (redisstream in production, gochannel in dev/test).
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill-backed publisher.
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

func (p *WatermillPublisher) PublishRegistered(ctx context.Context, user *core.User) error {
	return p.publish(TopicRegistered, user)
}

func (p *WatermillPublisher) PublishAuthenticated(ctx context.Context, user *core.User) error {
	return p.publish(TopicAuthenticated, user)
}

func (p *WatermillPublisher) publish(topic string, user *core.User) error {
	event := AuthEvent{
		UserID:     user.ID,
		Address:    user.Address,
		Role:       string(user.Role),
		OccurredAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(user.ID, payload)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
