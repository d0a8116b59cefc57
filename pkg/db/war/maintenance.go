package war

import (
	"context"
	"fmt"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/clickhouse"
	warmodels "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/models/war"
)

// warTables lists every table the tracker owns.
func warTables() []string {
	return []string{
		warmodels.RiverRaceStateTableName,
		warmodels.ParticipationTableName,
		warmodels.ParticipationDailyTableName,
		warmodels.MemberDailyTableName,
		warmodels.StandingSnapshotTableName,
	}
}

// TableHealth reports storage footprint for every war table. A missing table
// is an error; a freshly created table with no parts yet shows up with zero
// rows.
func (db *DB) TableHealth(ctx context.Context) ([]*clickhouse.TableHealth, error) {
	tables := warTables()
	out := make([]*clickhouse.TableHealth, 0, len(tables))
	for _, table := range tables {
		exists, err := db.TableExists(ctx, db.Name, table)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("table %s.%s is missing", db.Name, table)
		}

		health, err := db.CheckTableHealth(ctx, db.Name, table)
		if err != nil {
			return nil, err
		}
		if health == nil {
			health = &clickhouse.TableHealth{Database: db.Name, Table: table}
		}
		out = append(out, health)
	}
	return out, nil
}

// OptimizeTables forces merges across the war tables so FINAL reads stay
// cheap, typically after a wide backfill stacked many row versions.
func (db *DB) OptimizeTables(ctx context.Context, final bool) error {
	for _, table := range warTables() {
		if err := db.OptimizeTable(ctx, db.Name, table, final); err != nil {
			return err
		}
	}
	return nil
}
