package war

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/clickhouse"
	warmodels "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/models/war"
)

// initRiverRaceState creates the river_race_state table.
// Table: ReplacingMergeTree(updated_at) ORDER BY (clan_tag)
func (db *DB) initRiverRaceState(ctx context.Context) error {
	schemaSQL := warmodels.ColumnsToSchemaSQL(warmodels.RiverRaceStateColumns)

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			%s
		) ENGINE = %s
		ORDER BY (clan_tag)
	`, db.Name, warmodels.RiverRaceStateTableName, schemaSQL, clickhouse.ReplicatedEngine(clickhouse.ReplacingMergeTree, "updated_at"))
	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", warmodels.RiverRaceStateTableName, err)
	}
	return nil
}

// GetState returns the tracked period pointer for the clan, or nil when the
// clan has never been observed. The read is sequentially consistent: the
// cursor decides the period transition, and a lagging replica here would
// replay a boundary.
func (db *DB) GetState(ctx context.Context, clanTag string) (*warmodels.RiverRaceState, error) {
	query := fmt.Sprintf(`
		SELECT clan_tag, season_id, section_index, is_colosseum, period_type, clan_score, created_at, updated_at
		FROM "%s"."%s" FINAL
		WHERE clan_tag = ?
		LIMIT 1
	`, db.Name, warmodels.RiverRaceStateTableName)

	ctx = clickhouse.WithSequentialConsistency(ctx)

	var state warmodels.RiverRaceState
	err := db.QueryRow(ctx, query, clanTag).Scan(
		&state.ClanTag,
		&state.SeasonID,
		&state.SectionIndex,
		&state.IsColosseum,
		&state.PeriodType,
		&state.ClanScore,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get state for %s: %w", clanTag, err)
	}

	return &state, nil
}

// ErrStateSuperseded rejects a state write whose period is behind the stored
// record. Callers decide whether that is a skip or a failure.
var ErrStateSuperseded = errors.New("state record points at a newer period")

// UpsertState records the currently tracked period for the clan.
// ReplacingMergeTree keyed by clan_tag keeps only the newest version per
// clan, so the write is refused when the stored record already points at a
// strictly newer period: a concurrent writer won, and inserting here would
// regress the cursor. created_at survives from the first version of the row.
func (db *DB) UpsertState(ctx context.Context, state *warmodels.RiverRaceState) error {
	current, err := db.GetState(ctx, state.ClanTag)
	if err != nil {
		return err
	}
	if current != nil {
		if current.SeasonID > state.SeasonID ||
			(current.SeasonID == state.SeasonID && current.SectionIndex > state.SectionIndex) {
			return fmt.Errorf("%w: stored (%d,%d) ahead of incoming (%d,%d)",
				ErrStateSuperseded, current.SeasonID, current.SectionIndex, state.SeasonID, state.SectionIndex)
		}
		state.CreatedAt = current.CreatedAt
	}

	now := time.Now().UTC()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	state.UpdatedAt = now

	query := fmt.Sprintf(
		`INSERT INTO "%s"."%s" (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		db.Name, warmodels.RiverRaceStateTableName, warmodels.ColumnsToInsertList(warmodels.RiverRaceStateColumns),
	)

	if err := db.Exec(ctx, query,
		state.ClanTag,
		state.SeasonID,
		state.SectionIndex,
		state.IsColosseum,
		state.PeriodType,
		state.ClanScore,
		state.CreatedAt,
		state.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert state for %s: %w", state.ClanTag, err)
	}

	return nil
}
