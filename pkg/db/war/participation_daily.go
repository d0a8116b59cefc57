package war

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/clickhouse"
	warmodels "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/models/war"
)

// initParticipationDaily creates the participation_daily table.
// Table: ReplacingMergeTree(updated_at) ORDER BY (player_tag, season_id, section_index, snapshot_date)
func (db *DB) initParticipationDaily(ctx context.Context) error {
	schemaSQL := warmodels.ColumnsToSchemaSQL(warmodels.ParticipationDailyColumns)

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			%s
		) ENGINE = %s
		ORDER BY (player_tag, season_id, section_index, snapshot_date)
	`, db.Name, warmodels.ParticipationDailyTableName, schemaSQL, clickhouse.ReplicatedEngine(clickhouse.ReplacingMergeTree, "updated_at"))
	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", warmodels.ParticipationDailyTableName, err)
	}
	return nil
}

// UpsertDailies writes the end-of-day participation rows for one UTC date.
// Rerunning the job for the same date rewrites the same keys, so the daily
// snapshot stays idempotent per date. created_at is carried forward from any
// existing version of the key.
func (db *DB) UpsertDailies(ctx context.Context, date time.Time, rows []*warmodels.ParticipationDaily) error {
	if len(rows) == 0 {
		return nil
	}

	day := warmodels.NormalizeDate(date)
	now := time.Now().UTC()

	firstSeen, err := db.dailyFirstSeen(ctx, day)
	if err != nil {
		return err
	}

	for _, row := range rows {
		row.SnapshotDate = day
		key := fmt.Sprintf("%s/%d/%d", row.PlayerTag, row.SeasonID, row.SectionIndex)
		if created, ok := firstSeen[key]; ok {
			row.CreatedAt = created
		} else if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		row.UpdatedAt = now
	}

	query := fmt.Sprintf(
		`INSERT INTO "%s"."%s" (%s) VALUES`,
		db.Name, warmodels.ParticipationDailyTableName, warmodels.ColumnsToInsertList(warmodels.ParticipationDailyColumns),
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
			row.SnapshotDate,
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

// dailyFirstSeen returns the stored created_at per key for one snapshot date.
func (db *DB) dailyFirstSeen(ctx context.Context, date time.Time) (map[string]time.Time, error) {
	query := fmt.Sprintf(`
		SELECT player_tag, season_id, section_index, created_at
		FROM "%s"."%s" FINAL
		WHERE snapshot_date = ?
	`, db.Name, warmodels.ParticipationDailyTableName)

	rows, err := db.QueryWithFinal(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("load created_at for date %s: %w", date.Format("2006-01-02"), err)
	}
	defer rows.Close()

	firstSeen := make(map[string]time.Time)
	for rows.Next() {
		var tag string
		var season, section uint32
		var created time.Time
		if err := rows.Scan(&tag, &season, &section, &created); err != nil {
			return nil, err
		}
		firstSeen[fmt.Sprintf("%s/%d/%d", tag, season, section)] = created
	}

	return firstSeen, rows.Err()
}

// GetDailiesByDate returns all daily rows frozen on one UTC date.
func (db *DB) GetDailiesByDate(ctx context.Context, date time.Time) ([]*warmodels.ParticipationDaily, error) {
	day := warmodels.NormalizeDate(date)

	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE snapshot_date = ?
		ORDER BY fame DESC, player_tag
	`, warmodels.ColumnsToInsertList(warmodels.ParticipationDailyColumns), db.Name, warmodels.ParticipationDailyTableName)

	var out []*warmodels.ParticipationDaily
	if err := db.SelectWithFinal(ctx, &out, query, day); err != nil {
		return nil, fmt.Errorf("get dailies for date %s: %w", day.Format("2006-01-02"), err)
	}

	return out, nil
}

// PeriodDailies returns the day-by-day progression of one period, oldest
// date first. This backs the per-day deck usage view.
func (db *DB) PeriodDailies(ctx context.Context, seasonID, sectionIndex uint32) ([]*warmodels.ParticipationDaily, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE season_id = ? AND section_index = ?
		ORDER BY snapshot_date, player_tag
	`, warmodels.ColumnsToInsertList(warmodels.ParticipationDailyColumns), db.Name, warmodels.ParticipationDailyTableName)

	var out []*warmodels.ParticipationDaily
	if err := db.SelectWithFinal(ctx, &out, query, seasonID, sectionIndex); err != nil {
		return nil, fmt.Errorf("get dailies for period (%d,%d): %w", seasonID, sectionIndex, err)
	}

	return out, nil
}
