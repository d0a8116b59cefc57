package royale

import (
	"context"
	"fmt"
	"time"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
	"go.uber.org/zap"
)

// CurrentRiverRace fetches the clan's live river race and decodes it into a
// typed snapshot. Returned anomalies describe participants that were dropped
// during decoding; the snapshot itself is always internally consistent.
func (c *Client) CurrentRiverRace(ctx context.Context, clanTag string) (*types.Snapshot, []types.Anomaly, error) {
	var raw riverRaceResponse
	path := fmt.Sprintf(currentRiverRacePath, encodeTag(clanTag))
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, nil, err
	}
	return decodeSnapshot(clanTag, &raw, time.Now().UTC())
}

// RiverRaceLog fetches up to limit finished weeks from the race log, newest
// first as the API orders them. Entries the clan is absent from, or that
// carry no usable period key, are skipped and reported as anomalies rather
// than failing the whole call.
func (c *Client) RiverRaceLog(ctx context.Context, clanTag string, limit int) ([]types.Snapshot, []types.Anomaly, error) {
	path := fmt.Sprintf(riverRaceLogPath, encodeTag(clanTag))
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}

	var raw riverRaceLogResponse
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, nil, err
	}

	snapshots := make([]types.Snapshot, 0, len(raw.Items))
	var anomalies []types.Anomaly
	for _, item := range raw.Items {
		snap, itemAnoms, err := decodeLogItem(clanTag, item)
		if err != nil {
			c.logger.Warn("Skipping race log entry",
				zap.Int64("season_id", item.SeasonID),
				zap.Int64("section_index", item.SectionIndex),
				zap.Error(err))
			anomalies = append(anomalies, types.Anomaly{Reason: err.Error()})
			continue
		}
		anomalies = append(anomalies, itemAnoms...)
		snapshots = append(snapshots, *snap)
	}
	return snapshots, anomalies, nil
}
