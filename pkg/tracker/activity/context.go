package activity

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	warmodels "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/models/war"
	warstore "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/war"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/redis"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/royale"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
)

// upsertChunkSize caps the row count of one participation batch so a single
// slow insert never holds the per-key guards for the whole write.
const upsertChunkSize = 500

// RaceAPI is the slice of the Clash Royale client the activities consume.
type RaceAPI interface {
	CurrentRiverRace(ctx context.Context, clanTag string) (*types.Snapshot, []types.Anomaly, error)
	RiverRaceLog(ctx context.Context, clanTag string, limit int) ([]types.Snapshot, []types.Anomaly, error)
	Members(ctx context.Context, clanTag string) ([]types.Member, error)
}

type Context struct {
	Logger *zap.Logger
	// War database with the race state and participation tables
	WarDB warstore.Store
	// For fetching snapshots, race logs and the roster
	API RaceAPI
	// For publishing real-time events; nil disables publishing
	RedisClient *redis.Client
	// ClanTag is the configured clan, used when a workflow input omits one.
	ClanTag string
	// UpsertMaxParallelism allows overriding the default write pool size.
	UpsertMaxParallelism int
	upsertPoolOnce       sync.Once
	upsertPool           pond.Pool
	upsertPoolSize       int

	guardsOnce sync.Once
	keyGuards  *xsync.MapOf[string, *sync.Mutex]
}

// resolveClanTag prefers the workflow-supplied tag over the configured one
// and normalizes either.
func (c *Context) resolveClanTag(tag string) string {
	if tag == "" {
		tag = c.ClanTag
	}
	return royale.NormalizeTag(tag)
}

// upsertBatchPool returns the shared worker pool for participation batches.
// Pool size defaults to two workers per CPU (with sensible caps) but can be
// overridden.
func (c *Context) upsertBatchPool() pond.Pool {
	c.upsertPoolOnce.Do(func() {
		maxWorkers := UpsertParallelism(c.UpsertMaxParallelism)
		c.upsertPoolSize = maxWorkers
		c.upsertPool = pond.NewPool(
			maxWorkers,
			pond.WithQueueSize(maxWorkers*8),
		)
	})

	return c.upsertPool
}

// UpsertPoolSize exposes the configured pool size for logging purposes.
func (c *Context) UpsertPoolSize() int {
	if c.upsertPoolSize != 0 {
		return c.upsertPoolSize
	}
	return UpsertParallelism(c.UpsertMaxParallelism)
}

// UpsertParallelism calculates the parallelism for the write pool.
func UpsertParallelism(override int) int {
	if override > 0 {
		if override > 64 {
			return 64
		}
		return override
	}

	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}

	parallelism := n * 2
	if parallelism < 2 {
		parallelism = 2
	}
	if parallelism > 64 {
		parallelism = 64
	}

	return parallelism
}

func (c *Context) guards() *xsync.MapOf[string, *sync.Mutex] {
	c.guardsOnce.Do(func() {
		c.keyGuards = xsync.NewMapOf[string, *sync.Mutex]()
	})
	return c.keyGuards
}

// lockKeys acquires the per-record guards for a batch in sorted key order and
// returns the paired release. Sorted acquisition keeps concurrent writers
// (cycle, daily copy, backfill) deadlock-free on overlapping batches.
func (c *Context) lockKeys(rows []*warmodels.Participation) func() {
	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.Key())
	}
	sort.Strings(keys)

	guards := c.guards()
	locked := make([]*sync.Mutex, 0, len(keys))
	for i, k := range keys {
		if i > 0 && k == keys[i-1] {
			continue
		}
		mu, _ := guards.LoadOrStore(k, &sync.Mutex{})
		mu.Lock()
		locked = append(locked, mu)
	}

	return func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].Unlock()
		}
	}
}

// writeParticipations persists rows through the shared pool in guarded
// chunks. Values are absolute, so replaying the same rows converges; the
// returned count is what actually went into batches, even when a later chunk
// failed.
func (c *Context) writeParticipations(ctx context.Context, rows []*warmodels.Participation) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	pool := c.upsertBatchPool()
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	var written atomic.Int32
	for start := 0; start < len(rows); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		group.SubmitErr(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			unlock := c.lockKeys(chunk)
			defer unlock()

			if err := c.WarDB.UpsertParticipations(groupCtx, chunk); err != nil {
				return err
			}
			written.Add(int32(len(chunk)))
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return int(written.Load()), err
	}
	return int(written.Load()), nil
}
