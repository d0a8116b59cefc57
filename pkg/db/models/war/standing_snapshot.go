package war

import (
	"time"
)

const StandingSnapshotTableName = "standing_snapshot"

// StandingSnapshotColumns defines the schema for the standing_snapshot table.
var StandingSnapshotColumns = []ColumnDef{
	{Name: "clan_tag", Type: "String", Codec: "ZSTD(1)"},
	{Name: "season_id", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "section_index", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "snapshot_ts", Type: "DateTime64(3, 'UTC')", Codec: "DoubleDelta, LZ4"},
	{Name: "rank", Type: "UInt8"},
	{Name: "fame", Type: "UInt64", Codec: "Delta, ZSTD(3)"},
	{Name: "above_rank", Type: "Nullable(UInt8)"},
	{Name: "above_fame", Type: "Nullable(UInt64)", Codec: "ZSTD(1)"},
	{Name: "gap_to_above", Type: "Nullable(Int64)", Codec: "ZSTD(1)"},
	{Name: "standings", Type: "String", Codec: "ZSTD(1)"},
}

// StandingSnapshot is a time-series capture of the clan's position in the
// race, one row per observation. The above_* fields describe the next clan up
// in the standings and are null when the clan leads. Standings holds the top
// five entries as JSON for display without a second query.
//
// Snapshots are time-based, not period-based: several rows per period are
// expected and together they form the rank trend.
//
// Query pattern:
//   - Trend for a period: SELECT * FROM standing_snapshot FINAL
//     WHERE season_id = ? AND section_index = ? ORDER BY snapshot_ts
type StandingSnapshot struct {
	ClanTag      string    `ch:"clan_tag" json:"clan_tag"`
	SeasonID     uint32    `ch:"season_id" json:"season_id"`
	SectionIndex uint32    `ch:"section_index" json:"section_index"`
	SnapshotTs   time.Time `ch:"snapshot_ts" json:"snapshot_ts"`
	Rank         uint8     `ch:"rank" json:"rank"`
	Fame         uint64    `ch:"fame" json:"fame"`
	AboveRank    *uint8    `ch:"above_rank" json:"above_rank,omitempty"`
	AboveFame    *uint64   `ch:"above_fame" json:"above_fame,omitempty"`
	GapToAbove   *int64    `ch:"gap_to_above" json:"gap_to_above,omitempty"`
	Standings    string    `ch:"standings" json:"standings"`
}
