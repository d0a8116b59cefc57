package royale

import (
	"testing"
	"time"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecodeSnapshot tests the full conversion from a raw live document.
func TestDecodeSnapshot(t *testing.T) {
	raw := &riverRaceResponse{
		State:        "full",
		SeasonID:     75,
		SectionIndex: 2,
		PeriodType:   "warDay",
		Clan: raceClan{
			Tag:  "#AAA",
			Name: "Ours",
			Fame: 2600,
			Participants: []raceParticipant{
				{Tag: "#p1", Name: "One", Fame: 800, RepairPoints: 100, BoatAttacks: 2, DecksUsed: 8},
				{Tag: "#P2", Fame: 0, DecksUsed: 0},
			},
		},
		Clans: []raceClan{
			{Tag: "#BBB", Name: "Rivals", Fame: 3000},
			{Tag: "#AAA", Name: "Ours", Fame: 2600},
			{Tag: "#CCC", Name: "Thirds", Fame: 1000},
		},
	}

	observed := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	snap, anomalies, err := decodeSnapshot("#aaa", raw, observed)

	require.NoError(t, err)
	assert.Empty(t, anomalies)
	assert.Equal(t, "#AAA", snap.ClanTag)
	assert.Equal(t, types.PeriodKey{SeasonID: 75, SectionIndex: 2}, snap.Period)
	assert.Equal(t, types.PeriodWarDay, snap.PeriodType)
	assert.False(t, snap.IsColosseum)
	assert.Equal(t, uint64(2600), snap.ClanScore)
	assert.Equal(t, observed, snap.ObservedAt)

	require.Len(t, snap.Participants, 2)
	assert.Equal(t, "#P1", snap.Participants[0].Tag)
	assert.Equal(t, "One", snap.Participants[0].Name)
	assert.Equal(t, uint32(8), snap.Participants[0].DecksUsed)
	// Nameless participants keep a placeholder rather than an empty string.
	assert.Equal(t, "Unknown", snap.Participants[1].Name)

	// No explicit ranks in the clans list: ordered by fame, ranks assigned.
	require.Len(t, snap.Standings, 3)
	assert.Equal(t, []types.Standing{
		{Rank: 1, Tag: "#BBB", Name: "Rivals", Fame: 3000},
		{Rank: 2, Tag: "#AAA", Name: "Ours", Fame: 2600},
		{Rank: 3, Tag: "#CCC", Name: "Thirds", Fame: 1000},
	}, snap.Standings)
}

// TestDecodeSnapshot_UnknownPeriodType tests that unexpected period tags
// collapse to the catch-all instead of propagating untyped.
func TestDecodeSnapshot_UnknownPeriodType(t *testing.T) {
	raw := &riverRaceResponse{SeasonID: 75, SectionIndex: 2, PeriodType: "somethingNew"}

	snap, _, err := decodeSnapshot("#AAA", raw, time.Now())

	require.NoError(t, err)
	assert.Equal(t, types.PeriodOther, snap.PeriodType)
	assert.False(t, snap.IsColosseum)
}

// TestDecodeSnapshot_Colosseum tests that the colosseum flag follows the
// period type of the live document.
func TestDecodeSnapshot_Colosseum(t *testing.T) {
	raw := &riverRaceResponse{SeasonID: 75, SectionIndex: 3, PeriodType: "colosseum"}

	snap, _, err := decodeSnapshot("#AAA", raw, time.Now())

	require.NoError(t, err)
	assert.Equal(t, types.PeriodColosseum, snap.PeriodType)
	assert.True(t, snap.IsColosseum)
}

// TestDecodeSnapshot_MalformedParticipants tests that bad rows are dropped
// and reported while the rest of the snapshot survives.
func TestDecodeSnapshot_MalformedParticipants(t *testing.T) {
	raw := &riverRaceResponse{
		SeasonID:     75,
		SectionIndex: 2,
		PeriodType:   "warDay",
		Clan: raceClan{
			Tag: "#AAA",
			Participants: []raceParticipant{
				{Name: "tagless", Fame: 100},
				{Tag: "#P2", Fame: -5, DecksUsed: 4},
				{Tag: "#P3", Fame: 300, DecksUsed: 4},
			},
		},
	}

	snap, anomalies, err := decodeSnapshot("#AAA", raw, time.Now())

	require.NoError(t, err)
	require.Len(t, snap.Participants, 1)
	assert.Equal(t, "#P3", snap.Participants[0].Tag)

	require.Len(t, anomalies, 2)
	assert.Equal(t, "participant missing tag", anomalies[0].Reason)
	assert.Equal(t, "#P2", anomalies[1].PlayerTag)
	assert.Contains(t, anomalies[1].Reason, "negative counters")
}

// TestDecodeSnapshot_InvalidPeriod tests that documents without a usable
// period key are rejected outright.
func TestDecodeSnapshot_InvalidPeriod(t *testing.T) {
	tests := []struct {
		name string
		raw  *riverRaceResponse
	}{
		{"nil document", nil},
		{"zero season", &riverRaceResponse{SeasonID: 0, SectionIndex: 1}},
		{"negative season", &riverRaceResponse{SeasonID: -1, SectionIndex: 1}},
		{"negative section", &riverRaceResponse{SeasonID: 75, SectionIndex: -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := decodeSnapshot("#AAA", tt.raw, time.Now())
			require.Error(t, err)
			var anomaly *types.DataAnomalyError
			assert.ErrorAs(t, err, &anomaly)
		})
	}
}

// TestDecodeLogItem tests conversion of a finished week from the race log.
func TestDecodeLogItem(t *testing.T) {
	item := riverRaceLogItem{
		SeasonID:     74,
		SectionIndex: 3,
		CreatedDate:  "20260803T094500.000Z",
		Standings: []logStanding{
			{Rank: 2, Clan: raceClan{Tag: "#AAA", Name: "Ours", Fame: 4200, Participants: []raceParticipant{
				{Tag: "#P1", Name: "One", Fame: 1100, DecksUsed: 14},
			}}},
			{Rank: 1, Clan: raceClan{Tag: "#BBB", Name: "Rivals", Fame: 5000}},
		},
	}

	snap, anomalies, err := decodeLogItem("#AAA", item)

	require.NoError(t, err)
	assert.Empty(t, anomalies)
	assert.Equal(t, types.PeriodKey{SeasonID: 74, SectionIndex: 3}, snap.Period)
	assert.Equal(t, uint64(4200), snap.ClanScore)
	assert.False(t, snap.IsColosseum)
	assert.Equal(t, 2026, snap.ObservedAt.Year())

	require.Len(t, snap.Participants, 1)
	assert.Equal(t, uint32(14), snap.Participants[0].DecksUsed)

	// Standings come back rank-ordered regardless of wire order.
	require.Len(t, snap.Standings, 2)
	assert.Equal(t, uint8(1), snap.Standings[0].Rank)
	assert.Equal(t, "#BBB", snap.Standings[0].Tag)
}

// TestDecodeLogItem_ExplicitColosseum tests that an explicit flag on the log
// entry wins over the default.
func TestDecodeLogItem_ExplicitColosseum(t *testing.T) {
	colosseum := true
	item := riverRaceLogItem{
		SeasonID:     74,
		SectionIndex: 3,
		IsColosseum:  &colosseum,
		Standings: []logStanding{
			{Rank: 1, Clan: raceClan{Tag: "#AAA", Fame: 100}},
		},
	}

	snap, _, err := decodeLogItem("#AAA", item)

	require.NoError(t, err)
	assert.True(t, snap.IsColosseum)
	assert.Equal(t, types.PeriodColosseum, snap.PeriodType)
}

// TestDecodeLogItem_ClanAbsent tests that weeks the clan did not race in are
// rejected for the caller to skip.
func TestDecodeLogItem_ClanAbsent(t *testing.T) {
	item := riverRaceLogItem{
		SeasonID:     74,
		SectionIndex: 3,
		Standings: []logStanding{
			{Rank: 1, Clan: raceClan{Tag: "#BBB", Fame: 100}},
		},
	}

	_, _, err := decodeLogItem("#AAA", item)

	require.Error(t, err)
	var anomaly *types.DataAnomalyError
	require.ErrorAs(t, err, &anomaly)
	assert.Contains(t, anomaly.Reason, "absent from race log entry")
}

// TestRankStandings tests rank assignment for both wire variants.
func TestRankStandings(t *testing.T) {
	t.Run("explicit ranks win", func(t *testing.T) {
		entries := []types.Standing{
			{Rank: 3, Tag: "#C", Fame: 9000},
			{Rank: 1, Tag: "#A", Fame: 100},
			{Rank: 2, Tag: "#B", Fame: 500},
		}

		ranked := rankStandings(entries)

		assert.Equal(t, "#A", ranked[0].Tag)
		assert.Equal(t, "#B", ranked[1].Tag)
		assert.Equal(t, "#C", ranked[2].Tag)
	})

	t.Run("fame order when any rank missing", func(t *testing.T) {
		entries := []types.Standing{
			{Rank: 1, Tag: "#A", Fame: 100},
			{Rank: 0, Tag: "#B", Fame: 500},
		}

		ranked := rankStandings(entries)

		assert.Equal(t, []types.Standing{
			{Rank: 1, Tag: "#B", Fame: 500},
			{Rank: 2, Tag: "#A", Fame: 100},
		}, ranked)
	})
}

// TestDecodeMember tests roster row conversion including the compact
// last-seen timestamp.
func TestDecodeMember(t *testing.T) {
	m := decodeMember(clanMember{
		Tag:               "#p9",
		Name:              "Niner",
		Role:              "coLeader",
		ExpLevel:          44,
		Trophies:          6400,
		ClanRank:          3,
		Donations:         86,
		DonationsReceived: 120,
		LastSeen:          "20260824T060000.000Z",
	})

	assert.Equal(t, "#P9", m.Tag)
	assert.Equal(t, "coLeader", m.Role)
	assert.Equal(t, uint8(44), m.ExpLevel)
	assert.Equal(t, uint16(3), m.ClanRank)
	assert.Equal(t, time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC), m.LastSeen)

	// Garbage timestamps degrade to the zero time instead of failing the row.
	ghost := decodeMember(clanMember{Tag: "#GG", LastSeen: "yesterday"})
	assert.True(t, ghost.LastSeen.IsZero())
}
