package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/redis"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
	"github.com/go-jose/go-jose/v4/json"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// eventEntry is one replayed stream entry.
type eventEntry struct {
	ID      string                 `json:"id"`
	Event   string                 `json:"event"`
	ClanTag string                 `json:"clanTag"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// eventPage is the replay response: entries oldest-first, the cursor for the
// next page when one exists, and how many entries the stream currently holds.
type eventPage struct {
	Events []eventEntry `json:"events"`
	Next   string       `json:"next,omitempty"`
	Total  int64        `json:"total"`
}

// eventLog is the slice of the Redis client the replay endpoint reads from.
type eventLog interface {
	XRange(ctx context.Context, stream, start, end string, count int64) ([]goredis.XMessage, error)
	XLen(ctx context.Context, stream string) (int64, error)
}

// HandleRecentEvents replays the clan's event stream oldest-first, so a
// consumer that missed live pub/sub events can catch up. ?since= takes the
// "next" cursor of a previous page; ?limit= caps the page size. The stream
// is a sliding window (REDIS_STREAM_MAXLEN), not full history.
func (c *Controller) HandleRecentEvents(w http.ResponseWriter, r *http.Request) {
	if c.App.RedisClient == nil {
		writeError(w, http.StatusServiceUnavailable, "event replay not available (Redis disabled)")
		return
	}

	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxLimit)
	}

	since := r.URL.Query().Get("since")
	if since == "" {
		since = "-"
	}

	page, err := c.replayEvents(r.Context(), c.App.RedisClient, since, limit)
	if err != nil {
		c.App.Logger.Error("Failed to replay event stream", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read event stream")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (c *Controller) replayEvents(ctx context.Context, log eventLog, since string, limit int) (*eventPage, error) {
	stream := types.EventsStream(c.App.ClanTag)

	entries, err := log.XRange(ctx, stream, since, "+", int64(limit))
	if err != nil {
		return nil, err
	}
	total, err := log.XLen(ctx, stream)
	if err != nil {
		return nil, err
	}

	page := &eventPage{Events: make([]eventEntry, 0, len(entries)), Total: total}
	for _, raw := range entries {
		msg := redis.Message{ID: raw.ID, Stream: stream, Values: raw.Values}
		entry := eventEntry{ID: raw.ID, Event: msg.GetEvent(), ClanTag: msg.GetClanTag()}
		if data := msg.GetData(); data != nil {
			if err := json.Unmarshal(data, &entry.Payload); err != nil {
				c.App.Logger.Warn("Malformed event payload in stream",
					zap.String("id", raw.ID),
					zap.Error(err))
			}
		}
		page.Events = append(page.Events, entry)
	}

	// A full page may have more behind it. "(" makes the next read exclusive
	// of the cursor entry.
	if len(entries) == limit {
		page.Next = "(" + entries[len(entries)-1].ID
	}
	return page, nil
}
