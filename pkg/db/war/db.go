package war

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/clickhouse"
	warmodels "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/models/war"
)

// DatabaseName is the fixed ClickHouse database backing the war tracker.
const DatabaseName = "war"

// DB wraps the ClickHouse client with the race state, participation and
// member history tables. It implements Store.
type DB struct {
	clickhouse.Client
	Name string
}

// NewWithPoolConfig opens the war database with an explicit pool
// configuration and creates any missing tables.
func NewWithPoolConfig(ctx context.Context, logger *zap.Logger, poolConfig clickhouse.PoolConfig) (*DB, error) {
	client, err := clickhouse.New(ctx, logger.With(
		zap.String("db", DatabaseName),
		zap.String("component", poolConfig.Component),
	), DatabaseName, &poolConfig)
	if err != nil {
		return nil, err
	}

	db := &DB{Client: client, Name: DatabaseName}
	if err := db.InitializeDB(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// New opens the war database with the pool sizing fixed for component.
func New(ctx context.Context, logger *zap.Logger, component string) (*DB, error) {
	return NewWithPoolConfig(ctx, logger, *clickhouse.GetPoolConfigForComponent(component))
}

// Close terminates the underlying ClickHouse connection.
func (db *DB) Close() error {
	return db.Conn.Close()
}

// GetConnection returns the underlying ClickHouse driver connection.
func (db *DB) GetConnection() driver.Conn {
	return db.Conn
}

// DatabaseName returns the name of the war database.
func (db *DB) DatabaseName() string {
	return db.Name
}

// InitializeDB ensures the database and all tables exist. CREATE TABLE
// statements are issued concurrently; ClickHouse handles the DDL ordering.
func (db *DB) InitializeDB(ctx context.Context) error {
	db.Logger.Info("Initializing war database", zap.String("database", db.Name))

	if err := db.CreateDbIfNotExists(ctx, db.Name); err != nil {
		return fmt.Errorf("failed to create database %s: %w", db.Name, err)
	}

	inits := map[string]func(context.Context) error{
		warmodels.RiverRaceStateTableName:     db.initRiverRaceState,
		warmodels.ParticipationTableName:      db.initParticipation,
		warmodels.ParticipationDailyTableName: db.initParticipationDaily,
		warmodels.MemberDailyTableName:        db.initMemberDaily,
		warmodels.StandingSnapshotTableName:   db.initStandingSnapshots,
	}

	g, gctx := errgroup.WithContext(ctx)
	for table, initFn := range inits {
		g.Go(func() error {
			if err := initFn(gctx); err != nil {
				return fmt.Errorf("init %s: %w", table, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	db.Logger.Info("War database initialization complete", zap.String("database", db.Name))
	return nil
}
