package activity

import (
	"context"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
)

// FetchSnapshot pulls the clan's live river race and hands back the typed
// snapshot. Auth and not-found failures are terminal for the attempt chain;
// rate limits and transport errors bubble up retryable so the workflow's
// retry policy can take another pass.
func (c *Context) FetchSnapshot(ctx context.Context, in types.FetchCycleInput) (*types.FetchOutput, error) {
	clanTag := c.resolveClanTag(in.ClanTag)

	snap, anomalies, err := c.API.CurrentRiverRace(ctx, clanTag)
	if err != nil {
		if fe, ok := types.AsFetchError(err); ok && !fe.Retryable() {
			return nil, temporal.NewNonRetryableApplicationError("river race fetch failed", string(fe.Kind), err)
		}
		return nil, err
	}

	c.Logger.Debug("Fetched river race snapshot",
		zap.String("clan_tag", clanTag),
		zap.Uint32("season_id", snap.Period.SeasonID),
		zap.Uint32("section_index", snap.Period.SectionIndex),
		zap.Int("participants", len(snap.Participants)),
		zap.Int("anomalies", len(anomalies)))

	return &types.FetchOutput{Snapshot: snap, Anomalies: anomalies}, nil
}
