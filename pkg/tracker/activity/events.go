package activity

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
)

// PublishCycleEvents pushes the cycle outcome to Redis: cycle.completed on
// every non-skipped cycle, boundary when the period advanced, and one anomaly
// event per recorded anomaly. Everything is mirrored onto the capped events
// stream for replayable consumers. Best-effort end to end: a missing or
// unhealthy broker never fails the cycle, so this activity only errors on
// marshalling bugs.
func (c *Context) PublishCycleEvents(ctx context.Context, in types.PublishCycleInput) error {
	if c.RedisClient == nil {
		c.Logger.Debug("Redis client not available, skipping event publication",
			zap.String("clan_tag", in.ClanTag))
		return nil
	}

	clanTag := c.resolveClanTag(in.ClanTag)
	now := time.Now().UTC()

	c.publishEvent(ctx, clanTag, types.EventCycleCompleted, types.CycleCompletedEvent{
		Event:     types.EventCycleCompleted,
		ClanTag:   clanTag,
		Report:    in.Report,
		Timestamp: now,
	})

	if in.Report.Transition == types.TransitionBoundary && in.PreviousPeriod != nil {
		c.publishEvent(ctx, clanTag, types.EventBoundary, types.BoundaryEvent{
			Event:       types.EventBoundary,
			ClanTag:     clanTag,
			From:        *in.PreviousPeriod,
			To:          in.Report.Period,
			IsColosseum: in.IsColosseum,
			Timestamp:   now,
		})
	}

	for _, anomaly := range in.Report.Anomalies {
		c.publishEvent(ctx, clanTag, types.EventAnomaly, types.AnomalyEvent{
			Event:     types.EventAnomaly,
			ClanTag:   clanTag,
			Anomaly:   anomaly,
			Timestamp: now,
		})
	}

	return nil
}

// PublishBackfillEvent announces a finished backfill run.
func (c *Context) PublishBackfillEvent(ctx context.Context, in types.PublishBackfillInput) error {
	if c.RedisClient == nil {
		return nil
	}

	clanTag := c.resolveClanTag(in.ClanTag)
	c.publishEvent(ctx, clanTag, types.EventBackfillCompleted, types.BackfillCompletedEvent{
		Event:     types.EventBackfillCompleted,
		ClanTag:   clanTag,
		Report:    in.Report,
		Timestamp: time.Now().UTC(),
	})

	return nil
}

// publishEvent marshals once and fans out to the per-event pub/sub channel
// and the clan's event stream. The Redis client logs its own failures.
func (c *Context) publishEvent(ctx context.Context, clanTag, eventType string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		c.Logger.Warn("Failed to encode event",
			zap.String("clan_tag", clanTag),
			zap.String("event", eventType),
			zap.Error(err))
		return
	}

	channel := types.GetChannel(clanTag, eventType)
	c.RedisClient.Publish(ctx, channel, payload)
	c.RedisClient.XAdd(ctx, types.EventsStream(clanTag), map[string]interface{}{
		"event":    eventType,
		"clan_tag": clanTag,
		"data":     string(payload),
	})

	c.Logger.Debug("Published event",
		zap.String("channel", channel),
		zap.String("event", eventType))
}
