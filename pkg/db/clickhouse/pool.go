package clickhouse

import (
	"os"
	"time"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/utils"
)

// PoolConfig sizes the driver's connection pool for one component.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Component       string
}

// componentLifetime recycles connections fast enough that a replica removed
// from rotation drains within minutes.
const componentLifetime = 5 * time.Minute

// componentPools fixes the pool per component: the tracker holds batches
// open while reconciling, the scheduler only describes and patches
// schedules, and the query API serves short point reads.
var componentPools = map[string]struct{ open, idle int }{
	"tracker":   {20, 8},
	"scheduler": {5, 2},
	"query":     {15, 5},
}

// GetPoolConfigForComponent returns the fixed pool sizing for a known
// component. Environment overrides apply only to components outside the
// table, so production sizing stays deterministic.
func GetPoolConfigForComponent(component string) *PoolConfig {
	if sizes, ok := componentPools[component]; ok {
		return &PoolConfig{
			MaxOpenConns:    sizes.open,
			MaxIdleConns:    sizes.idle,
			ConnMaxLifetime: componentLifetime,
			Component:       component,
		}
	}

	cfg := poolFallback()
	cfg.Component = component
	return cfg
}

// poolFallback is the env-tunable sizing used when no component config is
// given, mainly by one-off tooling.
func poolFallback() *PoolConfig {
	maxOpen := utils.EnvInt("CLICKHOUSE_MAX_OPEN_CONNS", 75)
	maxIdle := utils.EnvInt("CLICKHOUSE_MAX_IDLE_CONNS", 75)
	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}

	lifetime := componentLifetime
	if fromEnv := parseConnMaxLifetimeFromEnv(); fromEnv > 0 {
		lifetime = fromEnv
	}

	return &PoolConfig{
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: lifetime,
		Component:       "unknown",
	}
}

// parseConnMaxLifetimeFromEnv reads CLICKHOUSE_CONN_MAX_LIFETIME, returning
// zero when unset or unparsable.
func parseConnMaxLifetimeFromEnv() time.Duration {
	val := os.Getenv("CLICKHOUSE_CONN_MAX_LIFETIME")
	if val == "" {
		return 0
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return 0
	}
	return d
}
