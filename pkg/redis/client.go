// Package redis carries the event side of the tracker. Cycle outcomes are
// published to Pub/Sub channels for live consumers (the query API's WebSocket
// relay) and mirrored to capped streams so consumers that were down can catch
// up. Publishing is best-effort by contract: a Redis outage must never fail a
// fetch cycle, so the write helpers log and move on instead of returning
// errors.
package redis

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultStreamMaxLen caps event streams unless REDIS_STREAM_MAXLEN overrides
// it. The cap bounds how far back a late consumer can replay.
const DefaultStreamMaxLen = 10000

// Client wraps go-redis with the pub/sub and stream operations the tracker
// and query API need.
type Client struct {
	client       *redis.Client
	logger       *zap.Logger
	streamMaxLen int64 // 0 leaves streams unbounded
}

// NewClient connects using REDIS_HOST, REDIS_PORT, REDIS_PASSWORD, REDIS_DB
// and REDIS_STREAM_MAXLEN, and pings before returning so a bad address fails
// startup rather than the first publish.
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	addr := net.JoinHostPort(utils.Env("REDIS_HOST", "localhost"), utils.Env("REDIS_PORT", "6379"))
	db := utils.EnvInt("REDIS_DB", 0)
	streamMaxLen := utils.EnvInt64("REDIS_STREAM_MAXLEN", DefaultStreamMaxLen)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: utils.Env("REDIS_PASSWORD", ""),
		DB:       db,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logger.Info("Connected to Redis", zap.String("addr", addr), zap.Int("db", db),
		zap.Int64("streamMaxLen", streamMaxLen))

	return &Client{
		client:       rdb,
		logger:       logger,
		streamMaxLen: streamMaxLen,
	}, nil
}

// NewClientIfEnabled connects when REDIS_ENABLED=true and returns nil when
// it is off or the connection fails. Callers treat a nil client as "events
// disabled"; nothing downstream requires Redis to function.
func NewClientIfEnabled(ctx context.Context, logger *zap.Logger) *Client {
	if utils.Env("REDIS_ENABLED", "false") != "true" {
		logger.Info("Redis disabled, real-time events will not be available")
		return nil
	}
	c, err := NewClient(ctx, logger)
	if err != nil {
		logger.Warn("Redis unavailable, continuing without real-time events", zap.Error(err))
		return nil
	}
	return c
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.client.Close()
}

// Health pings Redis.
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Publish sends a message to a Pub/Sub channel. Best-effort: failures are
// logged, never surfaced.
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) {
	if err := c.client.Publish(ctx, channel, message).Err(); err != nil {
		c.logger.Warn("Redis publish failed", zap.String("channel", channel), zap.Error(err))
	}
}

// PSubscribe opens a pattern subscription ("riverrace:*" covers every tracked
// clan and event type). The caller owns the returned PubSub and must close it.
func (c *Client) PSubscribe(ctx context.Context, patterns ...string) *redis.PubSub {
	c.logger.Debug("Opening Redis pattern subscription", zap.Strings("patterns", patterns))
	return c.client.PSubscribe(ctx, patterns...)
}

// Stream operations. Streams mirror the pub/sub events with MAXLEN applied,
// so they hold a sliding window rather than unbounded history.

// XAdd appends an entry to a stream and returns its ID, or "" on failure.
// Best-effort like Publish; the approximate MAXLEN trim keeps appends cheap.
func (c *Client) XAdd(ctx context.Context, stream string, values map[string]interface{}) string {
	args := &redis.XAddArgs{Stream: stream, Values: values}
	if c.streamMaxLen > 0 {
		args.MaxLen = c.streamMaxLen
		args.Approx = true
	}

	id, err := c.client.XAdd(ctx, args).Result()
	if err != nil {
		c.logger.Warn("Redis stream append failed", zap.String("stream", stream), zap.Error(err))
		return ""
	}
	return id
}

// XRead reads entries newer than lastIDs from each stream, waiting up to
// block for something to arrive (0 reads without waiting). "0" starts from
// the beginning, "$" from the next new entry.
func (c *Client) XRead(ctx context.Context, streams []string, lastIDs []string, count int64, block time.Duration) ([]redis.XStream, error) {
	// The STREAMS argument interleaves names and IDs: stream1 stream2 id1 id2.
	return c.client.XRead(ctx, &redis.XReadArgs{
		Streams: append(streams, lastIDs...),
		Count:   count,
		Block:   block,
	}).Result()
}

// XReadGroup reads entries on behalf of a consumer group member, giving
// at-least-once delivery against XAck. ">" asks for never-delivered entries;
// "0" re-reads this consumer's pending ones.
func (c *Client) XReadGroup(ctx context.Context, group, consumer string, streams []string, lastIDs []string, count int64, block time.Duration) ([]redis.XStream, error) {
	return c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  append(streams, lastIDs...),
		Count:    count,
		Block:    block,
	}).Result()
}

// XAck marks entries as processed for a consumer group and returns how many
// were newly acknowledged.
func (c *Client) XAck(ctx context.Context, stream, group string, ids ...string) (int64, error) {
	return c.client.XAck(ctx, stream, group, ids...).Result()
}

// XGroupCreateMkStream creates a consumer group, creating the stream too if
// needed. Start "$" delivers only new entries, "0" the whole stream. An
// already-existing group is not an error.
func (c *Client) XGroupCreateMkStream(ctx context.Context, stream, group, start string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, start).Err()
	if err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

// XLen returns the number of entries currently held in a stream.
func (c *Client) XLen(ctx context.Context, stream string) (int64, error) {
	return c.client.XLen(ctx, stream).Result()
}

// XRange returns up to count entries between start and end inclusive. "-"
// and "+" are the open bounds; prefixing an ID with "(" excludes it, which
// is how callers page forward from a cursor.
func (c *Client) XRange(ctx context.Context, stream, start, end string, count int64) ([]redis.XMessage, error) {
	return c.client.XRangeN(ctx, stream, start, end, count).Result()
}
