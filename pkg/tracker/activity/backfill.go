package activity

import (
	"context"
	"fmt"
	"sort"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	warmodels "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/models/war"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/reconcile"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
)

// DefaultBackfillWeeks is how many past race weeks a backfill replays when
// the request does not say.
const DefaultBackfillWeeks = 8

// BackfillLog replays finished race weeks from the log into participation
// history, oldest first. It fills gaps only: periods already stored are left
// alone, and periods at or past the live state record belong to the fetch
// cycle and are never written here, so the record can't regress no matter
// when a backfill runs. One bad period is recorded in the report and skipped;
// the rest of the replay continues.
func (c *Context) BackfillLog(ctx context.Context, in types.BackfillInput) (*types.BackfillReport, error) {
	clanTag := c.resolveClanTag(in.ClanTag)
	weeks := in.Weeks
	if weeks <= 0 {
		weeks = DefaultBackfillWeeks
	}

	snaps, anomalies, err := c.API.RiverRaceLog(ctx, clanTag, weeks)
	if err != nil {
		if fe, ok := types.AsFetchError(err); ok && !fe.Retryable() {
			return nil, temporal.NewNonRetryableApplicationError("race log fetch failed", string(fe.Kind), err)
		}
		return nil, err
	}
	for _, a := range anomalies {
		c.Logger.Warn("Race log anomaly",
			zap.String("clan_tag", clanTag),
			zap.String("player_tag", a.PlayerTag),
			zap.String("reason", a.Reason))
	}

	// The API orders the log newest first; replay wants the other end.
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Period.Before(snaps[j].Period)
	})

	state, err := c.WarDB.GetState(ctx, clanTag)
	if err != nil {
		return nil, temporal.NewApplicationErrorWithCause("unable to read race state", "state_read_failed", err)
	}
	var livePeriod *types.PeriodKey
	if state != nil {
		livePeriod = &types.PeriodKey{SeasonID: state.SeasonID, SectionIndex: state.SectionIndex}
	}

	// Known colosseum week per season, for log entries that don't carry the
	// flag themselves.
	colosseum, err := c.WarDB.ColosseumSections(ctx)
	if err != nil {
		c.Logger.Warn("Unable to load colosseum sections", zap.Error(err))
		colosseum = nil
	}

	report := &types.BackfillReport{}
	for i := range snaps {
		snap := &snaps[i]
		activity.RecordHeartbeat(ctx, fmt.Sprintf("period_%d_%d", snap.Period.SeasonID, snap.Period.SectionIndex))

		if livePeriod != nil && !snap.Period.Before(*livePeriod) {
			continue
		}

		stored, err := c.WarDB.HasPeriod(ctx, snap.Period.SeasonID, snap.Period.SectionIndex)
		if err != nil {
			c.failPeriod(report, snap.Period, "period lookup failed", err)
			continue
		}
		if stored {
			continue
		}

		if !snap.IsColosseum {
			if section, ok := colosseum[snap.Period.SeasonID]; ok && section == snap.Period.SectionIndex {
				snap.IsColosseum = true
				snap.PeriodType = types.PeriodColosseum
			}
		}

		// A finished week has no prior in-period counters: replay it as an
		// initial observation, so cumulative values double as baselines.
		res, err := reconcile.Reconcile(snap, nil, nil)
		if err != nil {
			c.failPeriod(report, snap.Period, "reconcile failed", err)
			continue
		}

		rows := make([]*warmodels.Participation, 0, len(res.Participants))
		for _, f := range res.Participants {
			rows = append(rows, &warmodels.Participation{
				PlayerTag:      f.Tag,
				SeasonID:       res.Period.SeasonID,
				SectionIndex:   res.Period.SectionIndex,
				PlayerName:     f.Name,
				IsColosseum:    res.IsColosseum,
				Fame:           f.Fame,
				RepairPoints:   f.RepairPoints,
				BoatAttacks:    f.BoatAttacks,
				DecksUsed:      f.DecksUsed,
				DecksUsedToday: f.DecksUsedToday,
			})
		}

		written, err := c.writeParticipations(ctx, rows)
		if err != nil {
			c.failPeriod(report, snap.Period, "participation write failed", err)
			continue
		}

		report.PeriodsFilled++
		report.PlayersWritten += written
	}

	c.Logger.Info("Backfill replay finished",
		zap.String("clan_tag", clanTag),
		zap.Int("weeks_requested", weeks),
		zap.Int("log_entries", len(snaps)),
		zap.Int("periods_filled", report.PeriodsFilled),
		zap.Int("periods_failed", report.PeriodsFailed),
		zap.Int("players_written", report.PlayersWritten))

	return report, nil
}

func (c *Context) failPeriod(report *types.BackfillReport, period types.PeriodKey, msg string, err error) {
	report.PeriodsFailed++
	report.FailedPeriods = append(report.FailedPeriods, period)
	c.Logger.Warn("Backfill period skipped",
		zap.Uint32("season_id", period.SeasonID),
		zap.Uint32("section_index", period.SectionIndex),
		zap.String("reason", msg),
		zap.Error(err))
}
