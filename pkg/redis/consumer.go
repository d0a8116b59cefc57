package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamConsumerConfig configures a StreamConsumer. Zero values take the
// defaults documented per field.
type StreamConsumerConfig struct {
	// Stream to consume. Required.
	Stream string

	// Group and Consumer switch to consumer-group mode: entries are
	// delivered at least once across the group and acknowledged per entry.
	// Consumer names this member within the group and is required with it.
	Group    string
	Consumer string

	// LastID is where a plain consumer starts: "0" for the whole stream,
	// "$" for new entries only, or an entry ID to resume after. Group mode
	// ignores it and always asks for undelivered entries. Default "0".
	LastID string

	// Count caps entries per read. Default 100.
	Count int64

	// Block is how long a read waits for new entries; 0 polls without
	// blocking. Default 5 seconds.
	Block time.Duration

	// RetryInterval and MaxRetryInterval bound the backoff applied after a
	// failed read. Defaults 1 and 30 seconds.
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration

	// AutoAck acknowledges entries whose handler returned nil. Forced on in
	// group mode, meaningless otherwise.
	AutoAck bool

	// Logger defaults to a no-op.
	Logger *zap.Logger
}

// normalize validates the config and fills its defaults in place.
func (cfg *StreamConsumerConfig) normalize() error {
	if cfg.Stream == "" {
		return errors.New("stream name is required")
	}
	if cfg.Group != "" && cfg.Consumer == "" {
		return errors.New("consumer name is required when using consumer groups")
	}
	if cfg.LastID == "" {
		cfg.LastID = "0"
	}
	if cfg.Count == 0 {
		cfg.Count = 100
	}
	if cfg.Block == 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = time.Second
	}
	if cfg.MaxRetryInterval == 0 {
		cfg.MaxRetryInterval = 30 * time.Second
	}
	if cfg.Group != "" {
		cfg.AutoAck = true
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return nil
}

// MessageHandler processes one stream entry. A nil return acknowledges the
// entry in group mode; an error leaves it pending for redelivery.
type MessageHandler func(ctx context.Context, msg Message) error

// Message is one stream entry.
type Message struct {
	ID     string // Redis entry ID, e.g. "1234567890123-0"
	Stream string
	Values map[string]interface{}
}

// StreamConsumer tails a Redis stream, either as a plain reader or as a
// consumer group member, retrying reads with capped backoff so a Redis
// outage stalls consumption instead of ending it.
type StreamConsumer struct {
	client *Client
	config StreamConsumerConfig
	logger *zap.Logger
}

// NewStreamConsumer validates the config, fills its defaults and returns a
// consumer ready to Run.
func NewStreamConsumer(client *Client, config StreamConsumerConfig) (*StreamConsumer, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if err := config.normalize(); err != nil {
		return nil, err
	}
	return &StreamConsumer{
		client: client,
		config: config,
		logger: config.Logger,
	}, nil
}

// Run consumes entries and hands each to handler, blocking until ctx ends.
// In group mode the group is created first if missing.
func (sc *StreamConsumer) Run(ctx context.Context, handler MessageHandler) error {
	if sc.config.Group != "" {
		if err := sc.client.XGroupCreateMkStream(ctx, sc.config.Stream, sc.config.Group, "0"); err != nil {
			return err
		}
		sc.logger.Info("Consumer group ready",
			zap.String("stream", sc.config.Stream),
			zap.String("group", sc.config.Group),
			zap.String("consumer", sc.config.Consumer))
	}

	cursor := sc.config.LastID
	wait := sc.config.RetryInterval

	for ctx.Err() == nil {
		batch, next, err := sc.readBatch(ctx, cursor)
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return err

		case errors.Is(err, redis.Nil):
			// Blocking read timed out with nothing new.
			continue

		case err != nil:
			sc.logger.Warn("Stream read failed, backing off",
				zap.String("stream", sc.config.Stream),
				zap.Error(err),
				zap.Duration("retryIn", wait))
			select {
			case <-time.After(wait):
				wait = min(wait*2, sc.config.MaxRetryInterval)
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		wait = sc.config.RetryInterval

		// Group mode reads via ">" and keeps no cursor of its own.
		if sc.config.Group == "" && next != "" {
			cursor = next
		}

		for _, msg := range batch {
			if err := sc.handle(ctx, handler, msg); err != nil {
				// Leave the entry pending and carry on with the rest.
				sc.logger.Error("Stream entry handler failed",
					zap.String("stream", sc.config.Stream),
					zap.String("id", msg.ID),
					zap.Error(err))
			}
		}
	}

	sc.logger.Info("Stream consumer shutting down",
		zap.String("stream", sc.config.Stream),
		zap.String("group", sc.config.Group))
	return ctx.Err()
}

// readBatch reads the next batch of entries, also returning the ID a plain
// consumer should resume from.
func (sc *StreamConsumer) readBatch(ctx context.Context, cursor string) ([]Message, string, error) {
	var (
		streams []redis.XStream
		err     error
	)
	if sc.config.Group != "" {
		streams, err = sc.client.XReadGroup(ctx, sc.config.Group, sc.config.Consumer,
			[]string{sc.config.Stream}, []string{">"}, sc.config.Count, sc.config.Block)
	} else {
		streams, err = sc.client.XRead(ctx,
			[]string{sc.config.Stream}, []string{cursor}, sc.config.Count, sc.config.Block)
	}
	if err != nil {
		return nil, "", err
	}

	var batch []Message
	var last string
	for _, stream := range streams {
		for _, entry := range stream.Messages {
			batch = append(batch, Message{
				ID:     entry.ID,
				Stream: stream.Stream,
				Values: entry.Values,
			})
			last = entry.ID
		}
	}
	return batch, last, nil
}

// handle runs the handler and acknowledges the entry when configured to.
func (sc *StreamConsumer) handle(ctx context.Context, handler MessageHandler, msg Message) error {
	if err := handler(ctx, msg); err != nil {
		return err
	}
	if sc.config.Group != "" && sc.config.AutoAck {
		if _, err := sc.client.XAck(ctx, sc.config.Stream, sc.config.Group, msg.ID); err != nil {
			sc.logger.Warn("Failed to acknowledge stream entry",
				zap.String("stream", sc.config.Stream),
				zap.String("id", msg.ID),
				zap.Error(err))
		}
	}
	return nil
}

// Field helpers for the entry shape events are mirrored with ("event",
// "clan_tag", "data"). go-redis can surface values as string or []byte
// depending on the reply parser, so both are handled.

// GetEvent returns the event type, or "" when absent.
func (m *Message) GetEvent() string { return m.text("event") }

// GetClanTag returns the clan tag, or "" when absent.
func (m *Message) GetClanTag() string { return m.text("clan_tag") }

// GetData returns the JSON event payload, or nil when absent.
func (m *Message) GetData() []byte {
	switch v := m.Values["data"].(type) {
	case string:
		return []byte(v)
	case []byte:
		return v
	}
	return nil
}

func (m *Message) text(field string) string {
	switch v := m.Values[field].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}
