package war

import (
	"context"
	"fmt"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/clickhouse"
	warmodels "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/models/war"
)

// initStandingSnapshots creates the standing_snapshot table.
// Table: ReplacingMergeTree(snapshot_ts) ORDER BY (clan_tag, season_id, section_index, snapshot_ts)
//
// snapshot_ts sits in both the key and the version column: distinct
// observations append, while a retried insert of the same observation
// deduplicates instead of doubling the trend.
func (db *DB) initStandingSnapshots(ctx context.Context) error {
	schemaSQL := warmodels.ColumnsToSchemaSQL(warmodels.StandingSnapshotColumns)

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			%s
		) ENGINE = %s
		ORDER BY (clan_tag, season_id, section_index, snapshot_ts)
	`, db.Name, warmodels.StandingSnapshotTableName, schemaSQL, clickhouse.ReplicatedEngine(clickhouse.ReplacingMergeTree, "snapshot_ts"))
	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", warmodels.StandingSnapshotTableName, err)
	}
	return nil
}

// InsertStandingSnapshot appends one observation of the clan's race position.
func (db *DB) InsertStandingSnapshot(ctx context.Context, snap *warmodels.StandingSnapshot) error {
	query := fmt.Sprintf(
		`INSERT INTO "%s"."%s" (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		db.Name, warmodels.StandingSnapshotTableName, warmodels.ColumnsToInsertList(warmodels.StandingSnapshotColumns),
	)

	if err := db.Exec(ctx, query,
		snap.ClanTag,
		snap.SeasonID,
		snap.SectionIndex,
		snap.SnapshotTs,
		snap.Rank,
		snap.Fame,
		snap.AboveRank,
		snap.AboveFame,
		snap.GapToAbove,
		snap.Standings,
	); err != nil {
		return fmt.Errorf("insert standing snapshot for %s: %w", snap.ClanTag, err)
	}

	return nil
}

// StandingTrend returns the observations of one period, oldest first, capped
// at limit rows. A non-positive limit falls back to 200 observations.
func (db *DB) StandingTrend(ctx context.Context, clanTag string, seasonID, sectionIndex uint32, limit int) ([]*warmodels.StandingSnapshot, error) {
	if limit <= 0 {
		limit = 200
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE clan_tag = ? AND season_id = ? AND section_index = ?
		ORDER BY snapshot_ts
		LIMIT ?
	`, warmodels.ColumnsToInsertList(warmodels.StandingSnapshotColumns), db.Name, warmodels.StandingSnapshotTableName)

	var out []*warmodels.StandingSnapshot
	if err := db.SelectWithFinal(ctx, &out, query, clanTag, seasonID, sectionIndex, limit); err != nil {
		return nil, fmt.Errorf("get standing trend for %s period (%d,%d): %w", clanTag, seasonID, sectionIndex, err)
	}

	return out, nil
}

// LatestStanding returns the most recent observation for the clan, or nil
// when none was recorded yet.
func (db *DB) LatestStanding(ctx context.Context, clanTag string) (*warmodels.StandingSnapshot, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE clan_tag = ?
		ORDER BY snapshot_ts DESC
		LIMIT 1
	`, warmodels.ColumnsToInsertList(warmodels.StandingSnapshotColumns), db.Name, warmodels.StandingSnapshotTableName)

	var out []*warmodels.StandingSnapshot
	if err := db.SelectWithFinal(ctx, &out, query, clanTag); err != nil {
		return nil, fmt.Errorf("get latest standing for %s: %w", clanTag, err)
	}
	if len(out) == 0 {
		return nil, nil
	}

	return out[0], nil
}
