package war

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/clickhouse"
	warmodels "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/models/war"
)

// initMemberDaily creates the member_daily table.
// Table: ReplacingMergeTree(updated_at) ORDER BY (clan_tag, player_tag, snapshot_date)
func (db *DB) initMemberDaily(ctx context.Context) error {
	schemaSQL := warmodels.ColumnsToSchemaSQL(warmodels.MemberDailyColumns)

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			%s
		) ENGINE = %s
		ORDER BY (clan_tag, player_tag, snapshot_date)
	`, db.Name, warmodels.MemberDailyTableName, schemaSQL, clickhouse.ReplicatedEngine(clickhouse.ReplacingMergeTree, "updated_at"))
	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", warmodels.MemberDailyTableName, err)
	}
	return nil
}

// UpsertMemberDailies writes the roster rows for one UTC date. Rerunning the
// job for the same date rewrites the same keys, keeping the snapshot
// idempotent per date. created_at is carried forward per key.
func (db *DB) UpsertMemberDailies(ctx context.Context, clanTag string, date time.Time, rows []*warmodels.MemberDaily) error {
	if len(rows) == 0 {
		return nil
	}

	day := warmodels.NormalizeDate(date)
	now := time.Now().UTC()

	firstSeen, err := db.memberFirstSeen(ctx, clanTag, day)
	if err != nil {
		return err
	}

	for _, row := range rows {
		row.ClanTag = clanTag
		row.SnapshotDate = day
		if created, ok := firstSeen[row.PlayerTag]; ok {
			row.CreatedAt = created
		} else if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		row.UpdatedAt = now
	}

	query := fmt.Sprintf(
		`INSERT INTO "%s"."%s" (%s) VALUES`,
		db.Name, warmodels.MemberDailyTableName, warmodels.ColumnsToInsertList(warmodels.MemberDailyColumns),
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
			row.ClanTag,
			row.PlayerTag,
			row.SnapshotDate,
			row.PlayerName,
			row.Role,
			row.ExpLevel,
			row.Trophies,
			row.ClanRank,
			row.Donations,
			row.DonationsReceived,
			row.LastSeen,
			row.CreatedAt,
			row.UpdatedAt,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

// memberFirstSeen returns the stored created_at per player for one roster date.
func (db *DB) memberFirstSeen(ctx context.Context, clanTag string, date time.Time) (map[string]time.Time, error) {
	query := fmt.Sprintf(`
		SELECT player_tag, created_at
		FROM "%s"."%s" FINAL
		WHERE clan_tag = ? AND snapshot_date = ?
	`, db.Name, warmodels.MemberDailyTableName)

	rows, err := db.QueryWithFinal(ctx, query, clanTag, date)
	if err != nil {
		return nil, fmt.Errorf("load created_at for roster %s on %s: %w", clanTag, date.Format("2006-01-02"), err)
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

// GetMembersByDate returns the roster rows frozen on one UTC date, ordered by
// the in-clan rank.
func (db *DB) GetMembersByDate(ctx context.Context, clanTag string, date time.Time) ([]*warmodels.MemberDaily, error) {
	day := warmodels.NormalizeDate(date)

	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE clan_tag = ? AND snapshot_date = ?
		ORDER BY clan_rank, player_tag
	`, warmodels.ColumnsToInsertList(warmodels.MemberDailyColumns), db.Name, warmodels.MemberDailyTableName)

	var out []*warmodels.MemberDaily
	if err := db.SelectWithFinal(ctx, &out, query, clanTag, day); err != nil {
		return nil, fmt.Errorf("get roster for %s on %s: %w", clanTag, day.Format("2006-01-02"), err)
	}

	return out, nil
}

// LatestMemberDate returns the most recent date a roster snapshot exists for,
// or the zero time when none was taken yet.
func (db *DB) LatestMemberDate(ctx context.Context, clanTag string) (time.Time, error) {
	query := fmt.Sprintf(`
		SELECT max(snapshot_date)
		FROM "%s"."%s"
		WHERE clan_tag = ?
	`, db.Name, warmodels.MemberDailyTableName)

	var latest time.Time
	err := db.QueryRow(ctx, query, clanTag).Scan(&latest)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("get latest roster date for %s: %w", clanTag, err)
	}

	// max() over an empty table yields the epoch, not a NO_ROWS error.
	if latest.Unix() <= 0 {
		return time.Time{}, nil
	}

	return latest, nil
}

// DonationBoard returns the roster of one date ordered by donations given,
// most generous first. The counters are the API's running week-to-date
// values on that date.
func (db *DB) DonationBoard(ctx context.Context, clanTag string, date time.Time) ([]*warmodels.MemberDaily, error) {
	day := warmodels.NormalizeDate(date)

	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE clan_tag = ? AND snapshot_date = ?
		ORDER BY donations DESC, donations_received DESC, player_tag
	`, warmodels.ColumnsToInsertList(warmodels.MemberDailyColumns), db.Name, warmodels.MemberDailyTableName)

	var out []*warmodels.MemberDaily
	if err := db.SelectWithFinal(ctx, &out, query, clanTag, day); err != nil {
		return nil, fmt.Errorf("get donation board for %s on %s: %w", clanTag, day.Format("2006-01-02"), err)
	}

	return out, nil
}

// MemberHistory returns one member's roster rows over a date range, oldest
// first. This backs the trophy and donation trend views.
func (db *DB) MemberHistory(ctx context.Context, clanTag, playerTag string, from, to time.Time) ([]*warmodels.MemberDaily, error) {
	fromDay := warmodels.NormalizeDate(from)
	toDay := warmodels.NormalizeDate(to)

	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE clan_tag = ? AND player_tag = ? AND snapshot_date >= ? AND snapshot_date <= ?
		ORDER BY snapshot_date
	`, warmodels.ColumnsToInsertList(warmodels.MemberDailyColumns), db.Name, warmodels.MemberDailyTableName)

	var out []*warmodels.MemberDaily
	if err := db.SelectWithFinal(ctx, &out, query, clanTag, playerTag, fromDay, toDay); err != nil {
		return nil, fmt.Errorf("get member history for %s: %w", playerTag, err)
	}

	return out, nil
}
