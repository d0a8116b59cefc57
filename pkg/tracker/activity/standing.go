package activity

import (
	"context"
	"encoding/json"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	warmodels "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/models/war"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
)

// standingTopN is how many leading clans each snapshot keeps verbatim.
const standingTopN = 5

// CaptureStanding records the clan's position in the race standings of the
// snapshot: rank, fame, the gap to the clan directly above, and the top of
// the board as JSON. Standings arrive ranked (explicit ranks when the
// upstream carries them, fame order otherwise), so the row above ours is the
// one to chase. Snapshots missing standings, or missing our clan from them,
// are recorded as nothing rather than an error.
func (c *Context) CaptureStanding(ctx context.Context, in types.StandingInput) (*types.StandingOutput, error) {
	if in.Snapshot == nil || len(in.Snapshot.Standings) == 0 {
		return &types.StandingOutput{}, nil
	}
	snap := in.Snapshot

	idx := -1
	for i, s := range snap.Standings {
		if s.Tag == snap.ClanTag {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.Logger.Warn("Clan absent from race standings",
			zap.String("clan_tag", snap.ClanTag),
			zap.Uint32("season_id", snap.Period.SeasonID),
			zap.Uint32("section_index", snap.Period.SectionIndex))
		return &types.StandingOutput{}, nil
	}
	ours := snap.Standings[idx]

	ts := snap.ObservedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	row := &warmodels.StandingSnapshot{
		ClanTag:      snap.ClanTag,
		SeasonID:     snap.Period.SeasonID,
		SectionIndex: snap.Period.SectionIndex,
		SnapshotTs:   ts,
		Rank:         ours.Rank,
		Fame:         ours.Fame,
	}

	if idx > 0 {
		above := snap.Standings[idx-1]
		aboveRank := above.Rank
		aboveFame := above.Fame
		gap := int64(above.Fame) - int64(ours.Fame)
		row.AboveRank = &aboveRank
		row.AboveFame = &aboveFame
		row.GapToAbove = &gap
	}

	top := snap.Standings
	if len(top) > standingTopN {
		top = top[:standingTopN]
	}
	encoded, err := json.Marshal(top)
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError("unable to encode standings", "standings_encode_failed", err)
	}
	row.Standings = string(encoded)

	if err := c.WarDB.InsertStandingSnapshot(ctx, row); err != nil {
		return nil, temporal.NewApplicationErrorWithCause("unable to insert standing snapshot", "standing_insert_failed", err)
	}

	c.Logger.Debug("Captured standing snapshot",
		zap.String("clan_tag", snap.ClanTag),
		zap.Uint8("rank", ours.Rank),
		zap.Uint64("fame", ours.Fame))

	return &types.StandingOutput{Rank: ours.Rank, Captured: true}, nil
}
