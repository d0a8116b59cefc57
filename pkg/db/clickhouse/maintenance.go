package clickhouse

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TableHealth summarizes one table's footprint from system.parts.
type TableHealth struct {
	Database         string    `ch:"database"`
	Table            string    `ch:"table"`
	Engine           string    `ch:"engine"`
	TotalRows        uint64    `ch:"total_rows"`
	TotalBytes       uint64    `ch:"total_bytes"`
	TotalBytesOnDisk uint64    `ch:"total_bytes_on_disk"`
	CompressionRatio float64   `ch:"compression_ratio"`
	ActiveParts      uint64    `ch:"active_parts"`
	LastModifyTime   time.Time `ch:"last_modify_time"`
}

// TableExists checks system.tables for the given table.
func (c *Client) TableExists(ctx context.Context, database, table string) (bool, error) {
	var count uint64
	err := c.QueryRow(ctx,
		`SELECT count() FROM system.tables WHERE database = ? AND name = ?`,
		database, table).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("table exists check for %s.%s: %w", database, table, err)
	}
	return count > 0, nil
}

// CheckTableHealth reads size, compression, and part counts for one table.
// The ops API surfaces this so an operator can see whether merges are
// keeping up before FINAL reads get expensive. A table with no parts yet
// returns nil rather than an error.
func (c *Client) CheckTableHealth(ctx context.Context, database, table string) (*TableHealth, error) {
	query := `
		SELECT
			database,
			table,
			engine,
			sum(rows) AS total_rows,
			sum(bytes) AS total_bytes,
			sum(bytes_on_disk) AS total_bytes_on_disk,
			if(sum(bytes_on_disk) > 0, sum(bytes) / sum(bytes_on_disk), 0) AS compression_ratio,
			sum(active) AS active_parts,
			max(modification_time) AS last_modify_time
		FROM system.parts
		WHERE database = ? AND table = ?
		GROUP BY database, table, engine
	`

	var health TableHealth
	err := c.QueryRow(ctx, query, database, table).Scan(
		&health.Database, &health.Table, &health.Engine,
		&health.TotalRows, &health.TotalBytes, &health.TotalBytesOnDisk,
		&health.CompressionRatio, &health.ActiveParts, &health.LastModifyTime,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("table health for %s.%s: %w", database, table, err)
	}

	return &health, nil
}

// OptimizeTable forces a merge so ReplacingMergeTree collapses duplicate
// versions eagerly. Worth running after a wide backfill; expensive enough
// that nothing calls it on a schedule.
func (c *Client) OptimizeTable(ctx context.Context, database, table string, final bool) error {
	verb := ""
	if final {
		verb = " FINAL"
	}
	// alter_sync=2 waits for the merge on every replica, not just the one
	// that received the statement.
	query := fmt.Sprintf(`OPTIMIZE TABLE "%s"."%s" %s%s SETTINGS alter_sync = 2`,
		database, table, c.OnCluster(), verb)

	c.Logger.Info("Optimizing table", zap.String("database", database),
		zap.String("table", table), zap.Bool("final", final))

	if err := c.Exec(ctx, query); err != nil {
		return fmt.Errorf("optimize %s.%s: %w", database, table, err)
	}
	return nil
}
