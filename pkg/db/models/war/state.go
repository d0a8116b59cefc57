package war

import (
	"time"
)

const RiverRaceStateTableName = "river_race_state"

// RiverRaceStateColumns defines the schema for the river_race_state table.
var RiverRaceStateColumns = []ColumnDef{
	{Name: "clan_tag", Type: "String", Codec: "ZSTD(1)"},
	{Name: "season_id", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "section_index", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "is_colosseum", Type: "Bool"},
	{Name: "period_type", Type: "LowCardinality(String)"},
	{Name: "clan_score", Type: "UInt64", Codec: "Delta, ZSTD(3)"},
	{Name: "created_at", Type: "DateTime64(3, 'UTC')", Codec: "DoubleDelta, LZ4"},
	{Name: "updated_at", Type: "DateTime64(3, 'UTC')", Codec: "DoubleDelta, LZ4"},
}

// RiverRaceState is the clan's last observed river-race period, one logical
// row per clan. ReplacingMergeTree(updated_at) keyed by clan_tag keeps only
// the newest version after merges, so writing a full row is an upsert.
//
// The identifying fields (season_id, section_index) advance only when a
// period boundary is observed; continuation observations refresh the mutable
// fields in place.
//
// Query pattern:
//   - Current state: SELECT * FROM river_race_state FINAL WHERE clan_tag = ?
type RiverRaceState struct {
	ClanTag      string    `ch:"clan_tag" json:"clan_tag"`
	SeasonID     uint32    `ch:"season_id" json:"season_id"`
	SectionIndex uint32    `ch:"section_index" json:"section_index"`
	IsColosseum  bool      `ch:"is_colosseum" json:"is_colosseum"`
	PeriodType   string    `ch:"period_type" json:"period_type"`
	ClanScore    uint64    `ch:"clan_score" json:"clan_score"`
	CreatedAt    time.Time `ch:"created_at" json:"created_at"`
	UpdatedAt    time.Time `ch:"updated_at" json:"updated_at"`
}
