package controller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/app/query/types"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestCalculateNextBackoff(t *testing.T) {
	tests := []struct {
		name    string
		current time.Duration
		ceiling time.Duration
		growth  float64
		jitter  float64
		min     time.Duration
		max     time.Duration
	}{
		{
			name:    "doubles with jitter spread",
			current: time.Second,
			ceiling: 30 * time.Second,
			growth:  2.0,
			jitter:  0.1,
			min:     1800 * time.Millisecond,
			max:     2200 * time.Millisecond,
		},
		{
			name:    "jitter never pushes past the ceiling",
			current: 20 * time.Second,
			ceiling: 30 * time.Second,
			growth:  2.0,
			jitter:  0.1,
			min:     27 * time.Second,
			max:     30 * time.Second,
		},
		{
			name:    "zero jitter is exact",
			current: 5 * time.Second,
			ceiling: 30 * time.Second,
			growth:  2.0,
			jitter:  0.0,
			min:     10 * time.Second,
			max:     10 * time.Second,
		},
		{
			name:    "pinned once the ceiling is reached",
			current: 30 * time.Second,
			ceiling: 30 * time.Second,
			growth:  2.0,
			jitter:  0.1,
			min:     30 * time.Second,
			max:     30 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The jitter is random, so sample repeatedly.
			for i := 0; i < 25; i++ {
				got := CalculateNextBackoff(tt.current, tt.ceiling, tt.growth, tt.jitter)
				assert.GreaterOrEqual(t, got, tt.min)
				assert.LessOrEqual(t, got, tt.max)
			}
		})
	}
}

func TestExtractEventFromChannel(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		want    string
	}{
		{name: "cycle completed", channel: "riverrace:#ABC123:cycle.completed", want: "cycle.completed"},
		{name: "boundary", channel: "riverrace:#ABC123:boundary", want: "boundary"},
		{name: "backfill completed", channel: "riverrace:#2PP:backfill.completed", want: "backfill.completed"},
		{name: "missing clan segment", channel: "riverrace:cycle.completed", want: ""},
		{name: "extra segment", channel: "riverrace:#ABC123:extra:cycle.completed", want: ""},
		{name: "empty", channel: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractEventFromChannel(tt.channel))
		})
	}
}

func TestSubscriptionFilter(t *testing.T) {
	t.Run("admits only subscribed events", func(t *testing.T) {
		subs := NewClientSubscriptions()
		subs.Subscribe("cycle.completed")

		assert.True(t, subs.IsSubscribed("cycle.completed"))
		assert.False(t, subs.IsSubscribed("boundary"))
	})

	t.Run("wildcard admits everything", func(t *testing.T) {
		subs := NewClientSubscriptions()
		subs.Subscribe("*")

		assert.True(t, subs.IsSubscribed("*"))
		assert.True(t, subs.IsSubscribed("cycle.completed"))
		assert.True(t, subs.IsSubscribed("boundary"))
		assert.True(t, subs.IsSubscribed("anomaly"))
	})

	t.Run("unsubscribe stops admission", func(t *testing.T) {
		subs := NewClientSubscriptions()
		subs.Subscribe("anomaly")
		subs.Unsubscribe("anomaly")

		assert.False(t, subs.IsSubscribed("anomaly"))
	})

	t.Run("safe under concurrent use", func(t *testing.T) {
		subs := NewClientSubscriptions()

		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				subs.Subscribe("cycle.completed")
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				subs.Unsubscribe("cycle.completed")
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = subs.IsSubscribed("cycle.completed")
			}
		}()
		wg.Wait()
	})
}

func TestSessionApply(t *testing.T) {
	newSession := func(t *testing.T) *wsSession {
		return &wsSession{
			logger: zaptest.NewLogger(t),
			send:   make(chan ServerMessage, 4),
			subs:   NewClientSubscriptions(),
		}
	}

	t.Run("subscribe is applied and acknowledged", func(t *testing.T) {
		s := newSession(t)
		s.apply(ClientMessage{Action: "subscribe", Event: "cycle.completed"})

		assert.True(t, s.subs.IsSubscribed("cycle.completed"))
		ack := <-s.send
		assert.Equal(t, "subscribed", ack.Type)
		assert.Equal(t, map[string]string{"event": "cycle.completed"}, ack.Payload)
	})

	t.Run("unsubscribe is applied and acknowledged", func(t *testing.T) {
		s := newSession(t)
		s.subs.Subscribe("boundary")
		s.apply(ClientMessage{Action: "unsubscribe", Event: "boundary"})

		assert.False(t, s.subs.IsSubscribed("boundary"))
		ack := <-s.send
		assert.Equal(t, "unsubscribed", ack.Type)
	})

	t.Run("missing event is an error", func(t *testing.T) {
		s := newSession(t)
		s.apply(ClientMessage{Action: "subscribe"})

		ack := <-s.send
		assert.Equal(t, "error", ack.Type)
		assert.False(t, s.subs.IsSubscribed(""))
	})

	t.Run("unknown action is an error", func(t *testing.T) {
		s := newSession(t)
		s.apply(ClientMessage{Action: "snooze", Event: "boundary"})

		ack := <-s.send
		assert.Equal(t, "error", ack.Type)
	})
}

func TestSessionPushAfterCancel(t *testing.T) {
	// No reader on the unbuffered channel, so only the cancelled context can
	// unblock the push.
	s := &wsSession{send: make(chan ServerMessage)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, s.push(ctx, ServerMessage{Type: "info"}))
}

func TestHandleWebSocketWithoutRedis(t *testing.T) {
	c := &Controller{App: &types.App{Logger: zaptest.NewLogger(t)}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
	c.HandleWebSocket(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
