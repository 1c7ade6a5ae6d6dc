package message_broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelMessageBroker_PublishThenSubscribe(t *testing.T) {
	b := NewChannelMessageBroker()
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "turns", "", []byte("first")))

	ch, err := b.Subscribe(ctx, "turns", "")
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, "turns", "", []byte("second")))

	assert.Equal(t, "first", string((<-ch).Payload))
	msg := <-ch
	assert.Equal(t, "second", string(msg.Payload))
	assert.Equal(t, "turns", msg.Topic)
	assert.Equal(t, 1, b.GetTopicCount())
}

func TestChannelMessageBroker_RoutingKeysAreSeparate(t *testing.T) {
	b := NewChannelMessageBroker()
	ctx := context.Background()

	a, err := b.Subscribe(ctx, "turns", "a")
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, "turns", "b", []byte("for b")))

	assert.Len(t, a, 0)
	assert.Equal(t, 2, b.GetTopicCount())
}

func TestChannelMessageBroker_FullTopic(t *testing.T) {
	b := NewChannelMessageBroker()
	ctx := context.Background()

	for i := 0; i < topicBuffer; i++ {
		require.NoError(t, b.Publish(ctx, "turns", "", []byte("x")))
	}
	err := b.Publish(ctx, "turns", "", []byte("overflow"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full")
}

func TestChannelMessageBroker_Close(t *testing.T) {
	b := NewChannelMessageBroker()
	ctx := context.Background()

	ch, err := b.Subscribe(ctx, "turns", "")
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.True(t, b.IsClosed())

	_, open := <-ch
	assert.False(t, open)

	assert.Error(t, b.Publish(ctx, "turns", "", []byte("late")))
	_, err = b.Subscribe(ctx, "turns", "")
	assert.Error(t, err)
}
