package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ReplacingMergeTree deduplicates by primary key, keeping the row with the
// highest version column. Every war table uses it so absolute re-writes of
// the same key converge instead of stacking.
const ReplacingMergeTree = "ReplacingMergeTree"

// ReplicatedEngine renders the replicated flavor of an engine for the
// cluster, e.g. ("ReplacingMergeTree", "updated_at") becomes
// ReplicatedReplacingMergeTree(updated_at).
//
// ZooKeeper paths are deliberately omitted: ClickHouse then derives them
// from the table UUID, so dropping and recreating a table never trips over
// REPLICA_ALREADY_EXISTS from a stale static path.
func ReplicatedEngine(engine, versionCol string) string {
	replicated := "Replicated" + engine
	if versionCol == "" {
		return replicated
	}
	return fmt.Sprintf("%s(%s)", replicated, versionCol)
}

// SanitizeName lowercases a name and squashes characters ClickHouse rejects
// in identifiers.
func SanitizeName(id string) string {
	s := strings.ToLower(id)
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, ".", "_")
}

// OnCluster is appended to every DDL statement so schema changes propagate
// to all replicas through distributed DDL.
func (c *Client) OnCluster() string {
	return "ON CLUSTER wartracker"
}

// DbEngine returns the database engine clause.
func (c *Client) DbEngine() string {
	return "ENGINE = Atomic"
}

// CreateDbIfNotExists creates the database across the cluster when missing.
func (c *Client) CreateDbIfNotExists(ctx context.Context, dbName string) error {
	dbName = SanitizeName(dbName)
	query := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s %s %s", dbName, c.OnCluster(), c.DbEngine())
	c.Logger.Info("Creating database", zap.String("database", dbName), zap.String("query", query))
	return c.Exec(ctx, query)
}
