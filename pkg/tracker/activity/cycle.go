package activity

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	warmodels "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/models/war"
	warstore "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/war"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/reconcile"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
)

// ReconcileAndPersist classifies the snapshot against the stored state record
// and writes the outcome: the advanced (or refreshed) state row plus one
// participation row per changed participant. Stale snapshots and state writes
// that lose to a concurrent run are reported as a skipped cycle, never as a
// failure.
//
// On a boundary the state record advances before the first participant write
// of the new period, so a crash mid-transition is repaired by the next
// cycle's retry: the rerun classifies as continuation with no stored
// participants and re-derives the same baselines.
func (c *Context) ReconcileAndPersist(ctx context.Context, in types.ReconcileInput) (*types.ReconcileOutput, error) {
	if in.Snapshot == nil {
		return nil, temporal.NewNonRetryableApplicationError("missing snapshot", "bad_input", nil)
	}
	snap := in.Snapshot

	stored, err := c.WarDB.GetState(ctx, snap.ClanTag)
	if err != nil {
		return nil, temporal.NewApplicationErrorWithCause("unable to read race state", "state_read_failed", err)
	}

	var prior *reconcile.PriorState
	known := make(map[string]reconcile.Known)
	if stored != nil {
		prior = &reconcile.PriorState{
			Period:      types.PeriodKey{SeasonID: stored.SeasonID, SectionIndex: stored.SectionIndex},
			IsColosseum: stored.IsColosseum,
		}
		if prior.Period.Compare(snap.Period) == 0 {
			rows, partErr := c.WarDB.GetPeriodParticipation(ctx, stored.SeasonID, stored.SectionIndex)
			if partErr != nil {
				return nil, temporal.NewApplicationErrorWithCause("unable to read stored participation", "participation_read_failed", partErr)
			}
			for _, row := range rows {
				known[row.PlayerTag] = reconcile.Known{
					Name:         row.PlayerName,
					Fame:         row.Fame,
					RepairPoints: row.RepairPoints,
					BoatAttacks:  row.BoatAttacks,
					DecksUsed:    row.DecksUsed,
				}
			}
		}
	}

	res, err := reconcile.Reconcile(snap, prior, known)
	if err != nil {
		if types.IsStale(err) {
			c.Logger.Warn("Discarding stale snapshot",
				zap.String("clan_tag", snap.ClanTag),
				zap.Uint32("season_id", snap.Period.SeasonID),
				zap.Uint32("section_index", snap.Period.SectionIndex),
				zap.Error(err))
			return &types.ReconcileOutput{
				Report: types.CycleReport{
					Transition: types.TransitionStale,
					Period:     snap.Period,
					Skipped:    true,
				},
			}, nil
		}
		return nil, err
	}

	state := &warmodels.RiverRaceState{
		ClanTag:      snap.ClanTag,
		SeasonID:     res.Period.SeasonID,
		SectionIndex: res.Period.SectionIndex,
		IsColosseum:  res.IsColosseum,
		PeriodType:   string(res.PeriodType),
		ClanScore:    res.ClanScore,
	}
	if err := c.WarDB.UpsertState(ctx, state); err != nil {
		if errors.Is(err, warstore.ErrStateSuperseded) {
			// A concurrent run advanced the record after our read, so this
			// snapshot is stale at write time. Skip; the next cycle
			// reconciles against the winner's period.
			conflict := &types.PersistenceConflictError{Key: snap.ClanTag, Err: err}
			c.Logger.Warn("State write lost to a concurrent cycle",
				zap.String("clan_tag", snap.ClanTag),
				zap.Error(conflict))
			return &types.ReconcileOutput{
				Report: types.CycleReport{
					Transition: res.Kind,
					Period:     res.Period,
					Skipped:    true,
				},
			}, nil
		}
		return nil, temporal.NewApplicationErrorWithCause("unable to upsert race state", "state_upsert_failed", err)
	}

	facts := res.Changed()
	rows := make([]*warmodels.Participation, 0, len(facts))
	for _, f := range facts {
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
		// Partial batches are fine: values are absolute, so the retried run
		// converges on the same rows.
		return nil, temporal.NewApplicationErrorWithCause("unable to upsert participation", "participation_upsert_failed", err)
	}

	anomalies := make([]types.Anomaly, 0, len(in.FetchAnomalies)+len(res.Anomalies))
	anomalies = append(anomalies, in.FetchAnomalies...)
	anomalies = append(anomalies, res.Anomalies...)

	out := &types.ReconcileOutput{
		Report: types.CycleReport{
			Transition:          res.Kind,
			Period:              res.Period,
			ParticipantsUpdated: written,
			Anomalies:           anomalies,
		},
		IsColosseum: res.IsColosseum,
	}
	if res.Kind == types.TransitionBoundary && prior != nil {
		from := prior.Period
		out.PreviousPeriod = &from
	}

	c.Logger.Info("Reconciled river race snapshot",
		zap.String("clan_tag", snap.ClanTag),
		zap.String("transition", string(res.Kind)),
		zap.Uint32("season_id", res.Period.SeasonID),
		zap.Uint32("section_index", res.Period.SectionIndex),
		zap.Int("participants_updated", written),
		zap.Int("unchanged", len(res.Participants)-len(facts)),
		zap.Int("anomalies", len(anomalies)))

	return out, nil
}
