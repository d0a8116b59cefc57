package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStreamConsumerValidation(t *testing.T) {
	t.Run("nil client", func(t *testing.T) {
		_, err := NewStreamConsumer(nil, StreamConsumerConfig{Stream: "riverrace:#ABC:events"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "client is required")
	})

	t.Run("missing stream", func(t *testing.T) {
		_, err := NewStreamConsumer(&Client{}, StreamConsumerConfig{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stream name is required")
	})

	t.Run("group without consumer name", func(t *testing.T) {
		_, err := NewStreamConsumer(&Client{}, StreamConsumerConfig{
			Stream: "riverrace:#ABC:events",
			Group:  "notifiers",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "consumer name is required")
	})
}

func TestNewStreamConsumerDefaults(t *testing.T) {
	sc, err := NewStreamConsumer(&Client{}, StreamConsumerConfig{
		Stream:   "riverrace:#ABC:events",
		Group:    "notifiers",
		Consumer: "notifier-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "0", sc.config.LastID)
	assert.Equal(t, int64(100), sc.config.Count)
	assert.Equal(t, 5*time.Second, sc.config.Block)
	assert.Equal(t, 1*time.Second, sc.config.RetryInterval)
	assert.Equal(t, 30*time.Second, sc.config.MaxRetryInterval)
	assert.True(t, sc.config.AutoAck, "consumer groups default to auto-ack")
	assert.NotNil(t, sc.logger, "nil logger is replaced with a no-op")
}

func TestNewStreamConsumerKeepsExplicitConfig(t *testing.T) {
	sc, err := NewStreamConsumer(&Client{}, StreamConsumerConfig{
		Stream:           "riverrace:#ABC:events",
		LastID:           "$",
		Count:            25,
		Block:            time.Second,
		RetryInterval:    100 * time.Millisecond,
		MaxRetryInterval: 2 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, "$", sc.config.LastID)
	assert.Equal(t, int64(25), sc.config.Count)
	assert.Equal(t, time.Second, sc.config.Block)
	assert.Equal(t, 100*time.Millisecond, sc.config.RetryInterval)
	assert.Equal(t, 2*time.Second, sc.config.MaxRetryInterval)
	assert.False(t, sc.config.AutoAck, "auto-ack only applies to consumer groups")
}

func TestMessageFieldHelpers(t *testing.T) {
	msg := Message{
		ID:     "1234567890123-0",
		Stream: "riverrace:#ABC123:events",
		Values: map[string]interface{}{
			"event":    "cycle.completed",
			"clan_tag": "#ABC123",
			"data":     `{"transition":"CONTINUATION","participantsUpdated":12}`,
		},
	}

	assert.Equal(t, "cycle.completed", msg.GetEvent())
	assert.Equal(t, "#ABC123", msg.GetClanTag())
	assert.Equal(t, `{"transition":"CONTINUATION","participantsUpdated":12}`, string(msg.GetData()))
}

func TestMessageFieldHelpersMissingFields(t *testing.T) {
	msg := Message{ID: "1-0", Values: map[string]interface{}{}}

	assert.Empty(t, msg.GetEvent())
	assert.Empty(t, msg.GetClanTag())
	assert.Nil(t, msg.GetData())
}

func TestMessageFieldHelpersByteValues(t *testing.T) {
	// go-redis may hand fields back as []byte depending on the reply parser.
	msg := Message{
		ID: "1-0",
		Values: map[string]interface{}{
			"event":    []byte("boundary"),
			"clan_tag": []byte("#ABC123"),
			"data":     []byte(`{"from":{"seasonId":75,"sectionIndex":2}}`),
		},
	}

	assert.Equal(t, "boundary", msg.GetEvent())
	assert.Equal(t, "#ABC123", msg.GetClanTag())
	assert.Equal(t, `{"from":{"seasonId":75,"sectionIndex":2}}`, string(msg.GetData()))
}
