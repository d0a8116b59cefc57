package war

import (
	"fmt"
	"time"
)

const ParticipationDailyTableName = "participation_daily"

// ParticipationDailyColumns defines the schema for the participation_daily table.
var ParticipationDailyColumns = []ColumnDef{
	{Name: "player_tag", Type: "String", Codec: "ZSTD(1)"},
	{Name: "season_id", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "section_index", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "snapshot_date", Type: "Date", Codec: "DoubleDelta, LZ4"},
	{Name: "player_name", Type: "String", Codec: "ZSTD(1)"},
	{Name: "is_colosseum", Type: "Bool"},
	{Name: "fame", Type: "UInt64", Codec: "Delta, ZSTD(3)"},
	{Name: "repair_points", Type: "UInt64", Codec: "Delta, ZSTD(3)"},
	{Name: "boat_attacks", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "decks_used", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "decks_used_today", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "created_at", Type: "DateTime64(3, 'UTC')", Codec: "DoubleDelta, LZ4"},
	{Name: "updated_at", Type: "DateTime64(3, 'UTC')", Codec: "DoubleDelta, LZ4"},
}

// ParticipationDaily freezes one player's participation counters at a given
// UTC date, keyed by (player_tag, season_id, section_index, snapshot_date).
// The daily snapshot job copies the live participation rows once per day;
// rerunning the job for the same date overwrites the same keys, so the job
// is idempotent per date rather than append-only.
//
// Query pattern:
//   - Day progression: SELECT * FROM participation_daily FINAL
//     WHERE season_id = ? AND section_index = ? ORDER BY snapshot_date
type ParticipationDaily struct {
	PlayerTag      string    `ch:"player_tag" json:"player_tag"`
	SeasonID       uint32    `ch:"season_id" json:"season_id"`
	SectionIndex   uint32    `ch:"section_index" json:"section_index"`
	SnapshotDate   time.Time `ch:"snapshot_date" json:"snapshot_date"`
	PlayerName     string    `ch:"player_name" json:"player_name"`
	IsColosseum    bool      `ch:"is_colosseum" json:"is_colosseum"`
	Fame           uint64    `ch:"fame" json:"fame"`
	RepairPoints   uint64    `ch:"repair_points" json:"repair_points"`
	BoatAttacks    uint32    `ch:"boat_attacks" json:"boat_attacks"`
	DecksUsed      uint32    `ch:"decks_used" json:"decks_used"`
	DecksUsedToday uint32    `ch:"decks_used_today" json:"decks_used_today"`
	CreatedAt      time.Time `ch:"created_at" json:"created_at"`
	UpdatedAt      time.Time `ch:"updated_at" json:"updated_at"`
}

// Key renders the natural key including the snapshot date.
func (p *ParticipationDaily) Key() string {
	return fmt.Sprintf("%s/%d/%d/%s", p.PlayerTag, p.SeasonID, p.SectionIndex, p.SnapshotDate.Format("2006-01-02"))
}
