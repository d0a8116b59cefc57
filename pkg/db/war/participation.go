package war

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/clickhouse"
	warmodels "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/models/war"
)

// initParticipation creates the participation table.
// Table: ReplacingMergeTree(updated_at) ORDER BY (player_tag, season_id, section_index)
func (db *DB) initParticipation(ctx context.Context) error {
	schemaSQL := warmodels.ColumnsToSchemaSQL(warmodels.ParticipationColumns)

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			%s
		) ENGINE = %s
		ORDER BY (player_tag, season_id, section_index)
	`, db.Name, warmodels.ParticipationTableName, schemaSQL, clickhouse.ReplicatedEngine(clickhouse.ReplacingMergeTree, "updated_at"))
	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", warmodels.ParticipationTableName, err)
	}
	return nil
}

// UpsertParticipations writes absolute participation values, one row per
// (player_tag, season_id, section_index) key. created_at is carried forward
// from any existing version of the key so the first-seen timestamp survives
// rewrites; updated_at is stamped per call and versions the replacing merge.
//
// Callers are expected to send only rows that actually changed. Replaying an
// identical snapshot therefore produces no new versions at all.
func (db *DB) UpsertParticipations(ctx context.Context, rows []*warmodels.Participation) error {
	if len(rows) == 0 {
		return nil
	}

	now := time.Now().UTC()

	// Rows may span several periods during a backfill, so first-seen
	// timestamps are resolved per period group.
	type period struct {
		season  uint32
		section uint32
	}
	groups := make(map[period][]*warmodels.Participation)
	for _, row := range rows {
		p := period{row.SeasonID, row.SectionIndex}
		groups[p] = append(groups[p], row)
	}

	for p, group := range groups {
		firstSeen, err := db.participationFirstSeen(ctx, p.season, p.section)
		if err != nil {
			return err
		}
		for _, row := range group {
			if created, ok := firstSeen[row.PlayerTag]; ok {
				row.CreatedAt = created
			} else if row.CreatedAt.IsZero() {
				row.CreatedAt = now
			}
			row.UpdatedAt = now
		}
	}

	query := fmt.Sprintf(
		`INSERT INTO "%s"."%s" (%s) VALUES`,
		db.Name, warmodels.ParticipationTableName, warmodels.ColumnsToInsertList(warmodels.ParticipationColumns),
	)
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, row := range rows {
		err = batch.Append(
			row.PlayerTag,
			row.SeasonID,
			row.SectionIndex,
			row.PlayerName,
			row.IsColosseum,
			row.Fame,
			row.RepairPoints,
			row.BoatAttacks,
			row.DecksUsed,
			row.DecksUsedToday,
			row.CreatedAt,
			row.UpdatedAt,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

// participationFirstSeen returns the stored created_at per player for one period.
func (db *DB) participationFirstSeen(ctx context.Context, seasonID, sectionIndex uint32) (map[string]time.Time, error) {
	query := fmt.Sprintf(`
		SELECT player_tag, created_at
		FROM "%s"."%s" FINAL
		WHERE season_id = ? AND section_index = ?
	`, db.Name, warmodels.ParticipationTableName)

	rows, err := db.QueryWithFinal(ctx, query, seasonID, sectionIndex)
	if err != nil {
		return nil, fmt.Errorf("load created_at for period (%d,%d): %w", seasonID, sectionIndex, err)
	}
	defer rows.Close()

	firstSeen := make(map[string]time.Time)
	for rows.Next() {
		var tag string
		var created time.Time
		if err := rows.Scan(&tag, &created); err != nil {
			return nil, err
		}
		firstSeen[tag] = created
	}

	return firstSeen, rows.Err()
}

// GetPeriodParticipation returns the reconciled rows of one period, highest
// fame first.
func (db *DB) GetPeriodParticipation(ctx context.Context, seasonID, sectionIndex uint32) ([]*warmodels.Participation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE season_id = ? AND section_index = ?
		ORDER BY fame DESC, player_tag
	`, warmodels.ColumnsToInsertList(warmodels.ParticipationColumns), db.Name, warmodels.ParticipationTableName)

	var out []*warmodels.Participation
	if err := db.SelectWithFinal(ctx, &out, query, seasonID, sectionIndex); err != nil {
		return nil, fmt.Errorf("get participation for period (%d,%d): %w", seasonID, sectionIndex, err)
	}

	return out, nil
}

// PlayerHistory returns a player's participation rows, newest period first.
// A non-positive limit falls back to 20 periods.
func (db *DB) PlayerHistory(ctx context.Context, playerTag string, limit int) ([]*warmodels.Participation, error) {
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE player_tag = ?
		ORDER BY season_id DESC, section_index DESC
		LIMIT ?
	`, warmodels.ColumnsToInsertList(warmodels.ParticipationColumns), db.Name, warmodels.ParticipationTableName)

	var out []*warmodels.Participation
	if err := db.SelectWithFinal(ctx, &out, query, playerTag, limit); err != nil {
		return nil, fmt.Errorf("get history for %s: %w", playerTag, err)
	}

	return out, nil
}

// InactivePlayers returns the participants of one period whose decks_used is
// below the given allowance, least active first. An allowance of zero means
// no war day has completed yet, so nobody can be flagged and the result is
// empty without touching the database.
func (db *DB) InactivePlayers(ctx context.Context, seasonID, sectionIndex uint32, allowance uint32) ([]*warmodels.Participation, error) {
	if allowance == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE season_id = ? AND section_index = ? AND decks_used < ?
		ORDER BY decks_used ASC, fame ASC, player_tag
	`, warmodels.ColumnsToInsertList(warmodels.ParticipationColumns), db.Name, warmodels.ParticipationTableName)

	var out []*warmodels.Participation
	if err := db.SelectWithFinal(ctx, &out, query, seasonID, sectionIndex, allowance); err != nil {
		return nil, fmt.Errorf("get inactive players for period (%d,%d): %w", seasonID, sectionIndex, err)
	}

	return out, nil
}

// HasPeriod reports whether any participation row exists for the period.
// The backfill uses this to skip periods that are already recorded.
// Duplicate row versions do not matter for existence, so no FINAL here.
func (db *DB) HasPeriod(ctx context.Context, seasonID, sectionIndex uint32) (bool, error) {
	query := fmt.Sprintf(`
		SELECT count()
		FROM "%s"."%s"
		WHERE season_id = ? AND section_index = ?
	`, db.Name, warmodels.ParticipationTableName)

	var count uint64
	if err := db.QueryRow(ctx, query, seasonID, sectionIndex).Scan(&count); err != nil {
		return false, fmt.Errorf("check period (%d,%d): %w", seasonID, sectionIndex, err)
	}

	return count > 0, nil
}

// ColosseumSections returns, per season, the section index of the observed
// colosseum week. Derived from participation history because the state table
// keeps only the latest row per clan.
func (db *DB) ColosseumSections(ctx context.Context) (map[uint32]uint32, error) {
	query := fmt.Sprintf(`
		SELECT season_id, min(section_index) AS section_index
		FROM "%s"."%s" FINAL
		WHERE is_colosseum
		GROUP BY season_id
	`, db.Name, warmodels.ParticipationTableName)

	rows, err := db.QueryWithFinal(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get colosseum sections: %w", err)
	}
	defer rows.Close()

	sections := make(map[uint32]uint32)
	for rows.Next() {
		var season, section uint32
		if err := rows.Scan(&season, &section); err != nil {
			return nil, err
		}
		sections[season] = section
	}

	return sections, rows.Err()
}
