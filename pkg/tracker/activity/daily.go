package activity

import (
	"context"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	warmodels "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/models/war"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
)

// SnapshotDaily copies the active period's participation into the per-date
// table and records one roster row per clan member for that date. Rerunning
// for the same date overwrites the same keys, so the job is idempotent per
// date. Participants no longer on the roster are counted as orphaned and
// kept; departed members' history stays queryable.
func (c *Context) SnapshotDaily(ctx context.Context, in types.DailySnapshotInput) (*types.SnapshotReport, error) {
	clanTag := c.resolveClanTag(in.ClanTag)

	day := time.Now().UTC()
	if in.Date != "" {
		parsed, err := time.Parse("2006-01-02", in.Date)
		if err != nil {
			return nil, temporal.NewNonRetryableApplicationError("invalid snapshot date", "bad_input", err)
		}
		day = parsed
	}
	day = warmodels.NormalizeDate(day)

	report := &types.SnapshotReport{Date: day.Format("2006-01-02")}

	state, err := c.WarDB.GetState(ctx, clanTag)
	if err != nil {
		return nil, temporal.NewApplicationErrorWithCause("unable to read race state", "state_read_failed", err)
	}

	var participations []*warmodels.Participation
	if state != nil {
		report.Period = types.PeriodKey{SeasonID: state.SeasonID, SectionIndex: state.SectionIndex}
		participations, err = c.WarDB.GetPeriodParticipation(ctx, state.SeasonID, state.SectionIndex)
		if err != nil {
			return nil, temporal.NewApplicationErrorWithCause("unable to read stored participation", "participation_read_failed", err)
		}
	}

	members, err := c.API.Members(ctx, clanTag)
	if err != nil {
		if fe, ok := types.AsFetchError(err); ok && !fe.Retryable() {
			return nil, temporal.NewNonRetryableApplicationError("members fetch failed", string(fe.Kind), err)
		}
		return nil, err
	}

	dailies := make([]*warmodels.ParticipationDaily, 0, len(participations))
	for _, p := range participations {
		dailies = append(dailies, &warmodels.ParticipationDaily{
			PlayerTag:      p.PlayerTag,
			SeasonID:       p.SeasonID,
			SectionIndex:   p.SectionIndex,
			PlayerName:     p.PlayerName,
			IsColosseum:    p.IsColosseum,
			Fame:           p.Fame,
			RepairPoints:   p.RepairPoints,
			BoatAttacks:    p.BoatAttacks,
			DecksUsed:      p.DecksUsed,
			DecksUsedToday: p.DecksUsedToday,
		})
	}

	roster := make(map[string]struct{}, len(members))
	memberRows := make([]*warmodels.MemberDaily, 0, len(members))
	for _, m := range members {
		roster[m.Tag] = struct{}{}
		memberRows = append(memberRows, &warmodels.MemberDaily{
			PlayerTag:         m.Tag,
			PlayerName:        m.Name,
			Role:              m.Role,
			ExpLevel:          m.ExpLevel,
			Trophies:          m.Trophies,
			ClanRank:          m.ClanRank,
			Donations:         m.Donations,
			DonationsReceived: m.DonationsReceived,
			LastSeen:          m.LastSeen,
		})
	}

	orphaned := 0
	for _, p := range participations {
		if _, ok := roster[p.PlayerTag]; !ok {
			orphaned++
			c.Logger.Debug("Participant no longer on roster",
				zap.String("clan_tag", clanTag),
				zap.String("player_tag", p.PlayerTag),
				zap.String("player_name", p.PlayerName))
		}
	}

	// The two copies are independent tables; run them through the shared pool.
	group := c.upsertBatchPool().NewGroupContext(ctx)
	groupCtx := group.Context()
	group.SubmitErr(func() error {
		return c.WarDB.UpsertDailies(groupCtx, day, dailies)
	})
	group.SubmitErr(func() error {
		return c.WarDB.UpsertMemberDailies(groupCtx, clanTag, day, memberRows)
	})
	if err := group.Wait(); err != nil {
		return nil, temporal.NewApplicationErrorWithCause("unable to write daily snapshot", "daily_upsert_failed", err)
	}

	report.ParticipantsCopied = len(dailies)
	report.MembersRecorded = len(memberRows)
	report.Orphaned = orphaned

	c.Logger.Info("Recorded daily snapshot",
		zap.String("clan_tag", clanTag),
		zap.String("date", report.Date),
		zap.Int("participants_copied", report.ParticipantsCopied),
		zap.Int("members_recorded", report.MembersRecorded),
		zap.Int("orphaned", report.Orphaned))

	return report, nil
}
