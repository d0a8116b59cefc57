package royale

import (
	"fmt"
	"sort"
	"time"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
)

// lastSeenLayout is Supercell's compact timestamp format, e.g. "20240110T213045.000Z".
const lastSeenLayout = "20060102T150405.000Z"

// decodeSnapshot converts a raw current-river-race document into the typed
// snapshot the reconciler consumes. Malformed participants are dropped and
// reported as anomalies; a document without a usable period key is rejected
// outright so garbage never reaches stored state.
func decodeSnapshot(clanTag string, raw *riverRaceResponse, observedAt time.Time) (*types.Snapshot, []types.Anomaly, error) {
	if raw == nil {
		return nil, nil, &types.DataAnomalyError{Reason: "empty river race document"}
	}
	period, err := decodePeriod(raw.SeasonID, raw.SectionIndex)
	if err != nil {
		return nil, nil, err
	}

	periodType := types.NormalizePeriodType(raw.PeriodType)
	var anomalies []types.Anomaly

	clanScore := raw.Clan.Fame
	if clanScore < 0 {
		anomalies = append(anomalies, types.Anomaly{Reason: fmt.Sprintf("negative clan fame %d clamped to 0", clanScore)})
		clanScore = 0
	}

	participants, pAnoms := decodeParticipants(raw.Clan.Participants)
	anomalies = append(anomalies, pAnoms...)

	snap := &types.Snapshot{
		ClanTag:      NormalizeTag(clanTag),
		Period:       period,
		IsColosseum:  periodType == types.PeriodColosseum,
		PeriodType:   periodType,
		ClanScore:    uint64(clanScore),
		Participants: participants,
		Standings:    rankStandings(collectStandings(raw)),
		ObservedAt:   observedAt,
	}
	return snap, anomalies, nil
}

// decodeLogItem converts one finished week from the race log into a snapshot
// for backfill. The clan must appear in the entry's standings; weeks the clan
// did not race in are rejected and skipped by the caller.
func decodeLogItem(clanTag string, item riverRaceLogItem) (*types.Snapshot, []types.Anomaly, error) {
	period, err := decodePeriod(item.SeasonID, item.SectionIndex)
	if err != nil {
		return nil, nil, err
	}

	normalized := NormalizeTag(clanTag)
	var ours *raceClan
	standings := make([]types.Standing, 0, len(item.Standings))
	for i := range item.Standings {
		entry := &item.Standings[i]
		tag := NormalizeTag(entry.Clan.Tag)
		if tag == "" {
			continue
		}
		rank := entry.Rank
		if rank < 0 {
			rank = 0
		}
		fame := entry.Clan.Fame
		if fame < 0 {
			fame = 0
		}
		standings = append(standings, types.Standing{
			Rank: uint8(rank),
			Tag:  tag,
			Name: entry.Clan.Name,
			Fame: uint64(fame),
		})
		if tag == normalized {
			ours = &entry.Clan
		}
	}
	if ours == nil {
		return nil, nil, &types.DataAnomalyError{
			Reason: fmt.Sprintf("clan %s absent from race log entry (%d,%d)", normalized, period.SeasonID, period.SectionIndex),
		}
	}

	participants, anomalies := decodeParticipants(ours.Participants)

	clanScore := ours.Fame
	if clanScore < 0 {
		clanScore = 0
	}

	isColosseum := item.IsColosseum != nil && *item.IsColosseum
	periodType := types.PeriodOther
	if isColosseum {
		periodType = types.PeriodColosseum
	}

	observedAt, _ := time.Parse(lastSeenLayout, item.CreatedDate)

	snap := &types.Snapshot{
		ClanTag:      normalized,
		Period:       period,
		IsColosseum:  isColosseum,
		PeriodType:   periodType,
		ClanScore:    uint64(clanScore),
		Participants: participants,
		Standings:    rankStandings(standings),
		ObservedAt:   observedAt,
	}
	return snap, anomalies, nil
}

// decodePeriod validates the (season, section) pair. Season zero means the
// upstream document is incomplete; sections start at zero and are valid.
func decodePeriod(seasonID, sectionIndex int64) (types.PeriodKey, error) {
	if seasonID <= 0 {
		return types.PeriodKey{}, &types.DataAnomalyError{Reason: fmt.Sprintf("missing or invalid seasonId %d", seasonID)}
	}
	if sectionIndex < 0 {
		return types.PeriodKey{}, &types.DataAnomalyError{Reason: fmt.Sprintf("invalid sectionIndex %d", sectionIndex)}
	}
	return types.PeriodKey{SeasonID: uint32(seasonID), SectionIndex: uint32(sectionIndex)}, nil
}

// decodeParticipants validates each raw participant. Entries without a tag or
// with negative counters are dropped and reported, never propagated.
func decodeParticipants(raw []raceParticipant) ([]types.Participant, []types.Anomaly) {
	participants := make([]types.Participant, 0, len(raw))
	var anomalies []types.Anomaly
	for _, p := range raw {
		tag := NormalizeTag(p.Tag)
		if tag == "" {
			anomalies = append(anomalies, types.Anomaly{Reason: "participant missing tag"})
			continue
		}
		if p.Fame < 0 || p.RepairPoints < 0 || p.BoatAttacks < 0 || p.DecksUsed < 0 {
			anomalies = append(anomalies, types.Anomaly{
				PlayerTag: tag,
				Reason: fmt.Sprintf("negative counters (fame=%d repair=%d boat=%d decks=%d)",
					p.Fame, p.RepairPoints, p.BoatAttacks, p.DecksUsed),
			})
			continue
		}
		name := p.Name
		if name == "" {
			name = "Unknown"
		}
		participants = append(participants, types.Participant{
			Tag:          tag,
			Name:         name,
			Fame:         uint64(p.Fame),
			RepairPoints: uint64(p.RepairPoints),
			BoatAttacks:  uint32(p.BoatAttacks),
			DecksUsed:    uint32(p.DecksUsed),
		})
	}
	return participants, anomalies
}

// collectStandings pulls race standings out of a live document. Some payload
// variants carry an explicit standings array, others only the clans list.
func collectStandings(raw *riverRaceResponse) []types.Standing {
	out := make([]types.Standing, 0, len(raw.Clans))
	for _, clan := range raw.Clans {
		tag := NormalizeTag(clan.Tag)
		if tag == "" {
			continue
		}
		name := clan.Name
		if name == "" {
			name = tag
		}
		rank := clan.Rank
		if rank < 0 {
			rank = 0
		}
		fame := clan.Fame
		if fame < 0 {
			fame = 0
		}
		out = append(out, types.Standing{
			Rank: uint8(rank),
			Tag:  tag,
			Name: name,
			Fame: uint64(fame),
		})
	}
	return out
}

// rankStandings puts standings in rank order. When the upstream data carries
// explicit ranks for every entry they win; otherwise ranks are assigned by
// fame, highest first.
func rankStandings(entries []types.Standing) []types.Standing {
	if len(entries) == 0 {
		return entries
	}
	ranked := true
	for _, e := range entries {
		if e.Rank == 0 {
			ranked = false
			break
		}
	}
	if ranked {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Rank < entries[j].Rank })
		return entries
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Fame > entries[j].Fame })
	for i := range entries {
		entries[i].Rank = uint8(i + 1)
	}
	return entries
}

// decodeMember converts one roster entry. Rows without a tag are skipped by
// the caller; negative numerics are clamped since roster data is advisory.
func decodeMember(raw clanMember) types.Member {
	lastSeen, _ := time.Parse(lastSeenLayout, raw.LastSeen)
	return types.Member{
		Tag:               NormalizeTag(raw.Tag),
		Name:              raw.Name,
		Role:              raw.Role,
		ExpLevel:          uint8(clampInt64(raw.ExpLevel, 0, 255)),
		Trophies:          uint32(clampInt64(raw.Trophies, 0, 1<<32-1)),
		ClanRank:          uint16(clampInt64(raw.ClanRank, 0, 1<<16-1)),
		Donations:         uint32(clampInt64(raw.Donations, 0, 1<<32-1)),
		DonationsReceived: uint32(clampInt64(raw.DonationsReceived, 0, 1<<32-1)),
		LastSeen:          lastSeen,
	}
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
