package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delinked/delinked/core"
)

func TestPublishRegistered(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubsub.Close()

	ctx := context.Background()
	messages, err := pubsub.Subscribe(ctx, TopicRegistered)
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubsub)
	user := &core.User{ID: "u-1", Address: "0xabc", Role: core.RoleOrganizer}
	require.NoError(t, pub.PublishRegistered(ctx, user))

	select {
	case msg := <-messages:
		var event AuthEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, "u-1", event.UserID)
		assert.Equal(t, "0xabc", event.Address)
		assert.Equal(t, "organizer", event.Role)
		assert.False(t, event.OccurredAt.IsZero())
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("no event received on " + TopicRegistered)
	}
}
