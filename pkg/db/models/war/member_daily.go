package war

import (
	"time"
)

const MemberDailyTableName = "member_daily"

// MemberDailyColumns defines the schema for the member_daily table.
var MemberDailyColumns = []ColumnDef{
	{Name: "clan_tag", Type: "String", Codec: "ZSTD(1)"},
	{Name: "player_tag", Type: "String", Codec: "ZSTD(1)"},
	{Name: "snapshot_date", Type: "Date", Codec: "DoubleDelta, LZ4"},
	{Name: "player_name", Type: "String", Codec: "ZSTD(1)"},
	{Name: "role", Type: "LowCardinality(String)"},
	{Name: "exp_level", Type: "UInt8"},
	{Name: "trophies", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "clan_rank", Type: "UInt16", Codec: "Delta, ZSTD(3)"},
	{Name: "donations", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "donations_received", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "last_seen", Type: "DateTime64(3, 'UTC')", Codec: "DoubleDelta, LZ4"},
	{Name: "created_at", Type: "DateTime64(3, 'UTC')", Codec: "DoubleDelta, LZ4"},
	{Name: "updated_at", Type: "DateTime64(3, 'UTC')", Codec: "DoubleDelta, LZ4"},
}

// MemberDaily is one roster row per member per UTC date, keyed by
// (clan_tag, player_tag, snapshot_date). Donation counters are the API's
// running week-to-date values; week sums are derived at query time from the
// last row of each week.
//
// Query patterns:
//   - Roster on a date: SELECT * FROM member_daily FINAL WHERE clan_tag = ? AND snapshot_date = ?
//   - Donation trend: SELECT snapshot_date, donations FROM member_daily FINAL
//     WHERE player_tag = ? ORDER BY snapshot_date
type MemberDaily struct {
	ClanTag           string    `ch:"clan_tag" json:"clan_tag"`
	PlayerTag         string    `ch:"player_tag" json:"player_tag"`
	SnapshotDate      time.Time `ch:"snapshot_date" json:"snapshot_date"`
	PlayerName        string    `ch:"player_name" json:"player_name"`
	Role              string    `ch:"role" json:"role"`
	ExpLevel          uint8     `ch:"exp_level" json:"exp_level"`
	Trophies          uint32    `ch:"trophies" json:"trophies"`
	ClanRank          uint16    `ch:"clan_rank" json:"clan_rank"`
	Donations         uint32    `ch:"donations" json:"donations"`
	DonationsReceived uint32    `ch:"donations_received" json:"donations_received"`
	LastSeen          time.Time `ch:"last_seen" json:"last_seen"`
	CreatedAt         time.Time `ch:"created_at" json:"created_at"`
	UpdatedAt         time.Time `ch:"updated_at" json:"updated_at"`
}
