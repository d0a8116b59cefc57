package controller

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Timing and retry knobs for one WebSocket session.
const (
	wsSendBuffer = 256              // outbound frames queued per client
	wsReadIdle   = 60 * time.Second // silence budget before a client is dropped
	wsPingEvery  = 30 * time.Second
	wsPingWait   = 10 * time.Second

	redisRetryFloor  = time.Second
	redisRetryCeil   = 30 * time.Second
	redisRetryGrowth = 2.0
	redisRetryJitter = 0.1
	redisConfirmWait = 5 * time.Second
)

// eventPattern matches every channel the tracker publishes to. Channels are
// shaped riverrace:{clanTag}:{eventType}, one per clan and event type.
const eventPattern = "riverrace:*"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: pin allowed origins once the dashboard domain is settled
		return true
	},
}

// ClientMessage is what a connected client sends to manage its subscriptions.
type ClientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Event  string `json:"event"`  // event type, or "*" for everything
}

// ServerMessage is the envelope for every frame the server pushes: relayed
// tracker events carry the event type ("cycle.completed", "boundary",
// "anomaly", "backfill.completed"), session control frames carry
// "subscribed", "unsubscribed", "info" or "error".
type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// subscriptionSet is the per-client event filter. "*" admits every event.
type subscriptionSet struct {
	mu     sync.RWMutex
	events map[string]struct{}
}

// NewClientSubscriptions returns an empty filter.
// Exported for testing.
func NewClientSubscriptions() *subscriptionSet {
	return &subscriptionSet{events: make(map[string]struct{})}
}

// Subscribe admits an event type.
func (s *subscriptionSet) Subscribe(event string) {
	s.mu.Lock()
	s.events[event] = struct{}{}
	s.mu.Unlock()
}

// Unsubscribe stops admitting an event type.
func (s *subscriptionSet) Unsubscribe(event string) {
	s.mu.Lock()
	delete(s.events, event)
	s.mu.Unlock()
}

// IsSubscribed reports whether an event type passes the filter.
func (s *subscriptionSet) IsSubscribed(event string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, all := s.events["*"]; all {
		return true
	}
	_, ok := s.events[event]
	return ok
}

// wsSession owns the goroutines serving one WebSocket client: a Redis relay,
// a ping ticker, and a writer draining the send queue. The read loop runs on
// the handler goroutine so the handler returns when the client goes away.
type wsSession struct {
	logger *zap.Logger
	events eventSource
	conn   *websocket.Conn
	send   chan ServerMessage
	subs   *subscriptionSet
	remote string
	cancel context.CancelFunc
}

// eventSource is the slice of the Redis client a session needs.
type eventSource interface {
	PSubscribe(ctx context.Context, patterns ...string) *redis.PubSub
}

// HandleWebSocket upgrades the request and streams tracker events to the
// client until it disconnects.
//
// Client frames:
//
//	{"action": "subscribe", "event": "cycle.completed"}
//	{"action": "subscribe", "event": "*"}
//	{"action": "unsubscribe", "event": "boundary"}
//
// Server frames are ServerMessage values. Nothing is forwarded until the
// client subscribes. Filtering happens here rather than in Redis so a
// subscription change never tears down the pattern subscription.
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if c.App.RedisClient == nil {
		http.Error(w, "Real-time events not available (Redis disabled)", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s := &wsSession{
		logger: c.App.Logger,
		events: c.App.RedisClient,
		conn:   conn,
		send:   make(chan ServerMessage, wsSendBuffer),
		subs:   NewClientSubscriptions(),
		remote: r.RemoteAddr,
		cancel: cancel,
	}
	defer s.close()

	s.logger.Info("WebSocket client connected", zap.String("remote_addr", s.remote))

	var wg sync.WaitGroup
	s.spawn(&wg, "redis relay", func() { s.relayEvents(ctx) })
	s.spawn(&wg, "ping", func() { s.keepAlive(ctx) })
	s.spawn(&wg, "writer", s.drainSend)

	// Blocks until the client closes, errors, or stays silent past the
	// read deadline.
	s.readLoop(ctx)

	close(s.send)
	wg.Wait()
	s.logger.Info("WebSocket client disconnected", zap.String("remote_addr", s.remote))
}

func (s *wsSession) close() {
	if err := s.conn.Close(); err != nil {
		s.logger.Error("Failed to close WebSocket connection", zap.Error(err))
	}
}

// spawn runs fn on its own goroutine with panic containment: a panicking
// session goroutine ends this session, not the process.
func (s *wsSession) spawn(wg *sync.WaitGroup, name string, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("Panic in WebSocket session goroutine",
					zap.String("goroutine", name),
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("remote_addr", s.remote))
				s.cancel()
			}
		}()
		fn()
	}()
}

// push queues a frame for the writer, giving up when the session ends.
func (s *wsSession) push(ctx context.Context, msg ServerMessage) bool {
	select {
	case s.send <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// relayEvents keeps a pattern subscription against Redis alive for the whole
// session, reconnecting with exponential backoff when Redis drops. The client
// hears about every outage (an "error" frame carrying the retry delay) and
// every recovery (an "info" frame), so dashboards can show a degraded state
// instead of stalling silently.
func (s *wsSession) relayEvents(ctx context.Context) {
	backoff := redisRetryFloor
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return
		}

		err := s.subscribeOnce(ctx, attempt)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Warn("Redis subscription failed, will retry",
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff))
		} else {
			s.logger.Warn("Redis subscription channel closed, will retry",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff))
		}

		notice := ServerMessage{Type: "error", Payload: map[string]interface{}{
			"message":     "Redis connection lost, attempting to reconnect...",
			"retryIn":     backoff.Seconds(),
			"attempt":     attempt,
			"recoverable": true,
		}}
		if !s.push(ctx, notice) {
			return
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff = CalculateNextBackoff(backoff, redisRetryCeil, redisRetryGrowth, redisRetryJitter)
	}
}

// subscribeOnce establishes one pattern subscription and pumps its messages
// until the connection breaks. A nil return means the message channel closed
// under us, which is how go-redis reports a dropped server.
func (s *wsSession) subscribeOnce(ctx context.Context, attempt int) error {
	s.logger.Info("Subscribing to event channels",
		zap.String("pattern", eventPattern),
		zap.Int("attempt", attempt))

	pubsub := s.events.PSubscribe(ctx, eventPattern)
	defer func() {
		if err := pubsub.Close(); err != nil {
			s.logger.Error("Error closing Redis subscription", zap.Error(err))
		}
	}()

	// Receive blocks until Redis acknowledges the pattern. Bound it so a
	// dead server fails the attempt instead of hanging the relay.
	confirmCtx, confirmCancel := context.WithTimeout(ctx, redisConfirmWait)
	defer confirmCancel()
	if _, err := pubsub.Receive(confirmCtx); err != nil {
		return fmt.Errorf("failed to confirm Redis subscription: %w", err)
	}

	s.logger.Info("Subscribed to event channels",
		zap.String("pattern", eventPattern),
		zap.Int("attempt", attempt))

	// Tell the client the feed is back. The first attempt is the normal
	// connect path and needs no announcement.
	if attempt > 1 {
		restored := ServerMessage{Type: "info", Payload: map[string]interface{}{
			"message": "Redis connection established",
			"attempt": attempt,
		}}
		if !s.push(ctx, restored) {
			return ctx.Err()
		}
	}

	return s.pump(ctx, pubsub)
}

// pump relays pattern messages until the channel closes or the session ends.
// Events the client never asked for are dropped here, after the event type is
// recovered from the channel name.
func (s *wsSession) pump(ctx context.Context, pubsub *redis.PubSub) error {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			event := ExtractEventFromChannel(msg.Channel)
			if event == "" {
				s.logger.Warn("Unrecognized event channel", zap.String("channel", msg.Channel))
				continue
			}
			if !s.subs.IsSubscribed(event) {
				continue
			}

			var payload map[string]interface{}
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				s.logger.Error("Failed to decode event payload",
					zap.Error(err),
					zap.String("channel", msg.Channel))
				continue
			}

			if !s.push(ctx, ServerMessage{Type: event, Payload: payload}) {
				return ctx.Err()
			}
		}
	}
}

// CalculateNextBackoff advances a retry delay: multiply by growth, cap at
// ceiling, then spread by up to ±jitter so clients that lost Redis together
// don't all reconnect together. The result stays within [current, ceiling].
// Exported for testing.
func CalculateNextBackoff(current, ceiling time.Duration, growth, jitter float64) time.Duration {
	next := time.Duration(float64(current) * growth)
	if next > ceiling {
		next = ceiling
	}
	next += time.Duration(float64(next) * jitter * (2*rand.Float64() - 1))
	if next < current {
		next = current
	}
	if next > ceiling {
		next = ceiling
	}
	return next
}

// ExtractEventFromChannel recovers the event type from a channel name shaped
// riverrace:{clanTag}:{eventType}. Clan tags contain '#' but never ':', so
// the third segment is unambiguous. Any other shape yields "".
// Exported for testing.
func ExtractEventFromChannel(channel string) string {
	_, rest, ok := strings.Cut(channel, ":")
	if !ok {
		return ""
	}
	_, event, ok := strings.Cut(rest, ":")
	if !ok || strings.Contains(event, ":") {
		return ""
	}
	return event
}

// keepAlive pings on a ticker. Pongs reset the read deadline in readLoop, so
// an unresponsive client falls out within wsReadIdle.
func (s *wsSession) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(wsPingWait)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Error("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// drainSend is the only goroutine writing data frames; gorilla/websocket
// allows a single concurrent writer (control frames excepted). It exits when
// the send channel closes, and cancels the session on a broken socket so the
// relay stops queueing.
func (s *wsSession) drainSend() {
	for msg := range s.send {
		if err := s.conn.WriteJSON(msg); err != nil {
			s.logger.Error("Failed to write WebSocket message", zap.Error(err))
			s.cancel()
			return
		}
	}
}

// readLoop applies subscription changes from the client and doubles as the
// session's liveness check: it returns, cancelling everything, when the
// client closes, errors, or stays silent past the read deadline.
func (s *wsSession) readLoop(ctx context.Context) {
	defer s.cancel()

	if err := s.conn.SetReadDeadline(time.Now().Add(wsReadIdle)); err != nil {
		s.logger.Error("Failed to set read deadline", zap.Error(err))
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsReadIdle))
	})

	for ctx.Err() == nil {
		var msg ClientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("WebSocket read error", zap.Error(err))
			}
			return
		}
		if err := s.conn.SetReadDeadline(time.Now().Add(wsReadIdle)); err != nil {
			s.logger.Error("Failed to reset read deadline", zap.Error(err))
			return
		}
		s.apply(msg)
	}
}

// apply handles one subscribe or unsubscribe request and acknowledges it.
func (s *wsSession) apply(msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if msg.Event == "" {
			s.send <- ServerMessage{Type: "error", Payload: map[string]string{"message": "event is required"}}
			return
		}
		s.subs.Subscribe(msg.Event)
		s.logger.Debug("Client subscribed", zap.String("event", msg.Event))
		s.send <- ServerMessage{Type: "subscribed", Payload: map[string]string{"event": msg.Event}}

	case "unsubscribe":
		if msg.Event == "" {
			s.send <- ServerMessage{Type: "error", Payload: map[string]string{"message": "event is required"}}
			return
		}
		s.subs.Unsubscribe(msg.Event)
		s.logger.Debug("Client unsubscribed", zap.String("event", msg.Event))
		s.send <- ServerMessage{Type: "unsubscribed", Payload: map[string]string{"event": msg.Event}}

	default:
		s.send <- ServerMessage{Type: "error", Payload: map[string]string{"message": "unknown action: " + msg.Action}}
	}
}
