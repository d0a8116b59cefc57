package war

import (
	"fmt"
	"time"
)

const ParticipationTableName = "participation"

// ParticipationColumns defines the schema for the participation table.
var ParticipationColumns = []ColumnDef{
	{Name: "player_tag", Type: "String", Codec: "ZSTD(1)"},
	{Name: "season_id", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "section_index", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
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

// Participation is one player's cumulative war effort inside one period,
// keyed by (player_tag, season_id, section_index). Counters hold absolute
// values from the latest reconciled snapshot; decks_used_today is the derived
// daily delta, never the raw API field.
//
// Rows are written only when a counter actually changed, so replaying an
// identical snapshot leaves the stored version (timestamps included)
// untouched. created_at is preserved from the first version on every later
// upsert; ReplacingMergeTree(updated_at) keeps the newest version per key.
//
// Query patterns:
//   - One period: SELECT * FROM participation FINAL WHERE season_id = ? AND section_index = ?
//   - Player history: SELECT * FROM participation FINAL WHERE player_tag = ? ORDER BY (season_id, section_index)
type Participation struct {
	PlayerTag      string    `ch:"player_tag" json:"player_tag"`
	SeasonID       uint32    `ch:"season_id" json:"season_id"`
	SectionIndex   uint32    `ch:"section_index" json:"section_index"`
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

// Key renders the natural key, used for per-key write serialization and
// conflict reporting.
func (p *Participation) Key() string {
	return fmt.Sprintf("%s/%d/%d", p.PlayerTag, p.SeasonID, p.SectionIndex)
}
