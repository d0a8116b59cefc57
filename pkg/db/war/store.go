package war

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/clickhouse"
	warmodels "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/models/war"
)

// Store describes the war database operations required by tracker activities
// and the query API.
type Store interface {
	DatabaseName() string
	GetConnection() driver.Conn

	// --- Init

	InitializeDB(ctx context.Context) error

	// --- Race state

	GetState(ctx context.Context, clanTag string) (*warmodels.RiverRaceState, error)
	// UpsertState returns ErrStateSuperseded when the stored record already
	// points at a newer period than the incoming one.
	UpsertState(ctx context.Context, state *warmodels.RiverRaceState) error

	// --- Participation

	UpsertParticipations(ctx context.Context, rows []*warmodels.Participation) error
	GetPeriodParticipation(ctx context.Context, seasonID, sectionIndex uint32) ([]*warmodels.Participation, error)
	PlayerHistory(ctx context.Context, playerTag string, limit int) ([]*warmodels.Participation, error)
	InactivePlayers(ctx context.Context, seasonID, sectionIndex uint32, allowance uint32) ([]*warmodels.Participation, error)
	HasPeriod(ctx context.Context, seasonID, sectionIndex uint32) (bool, error)
	ColosseumSections(ctx context.Context) (map[uint32]uint32, error)

	// --- Daily snapshots

	UpsertDailies(ctx context.Context, date time.Time, rows []*warmodels.ParticipationDaily) error
	GetDailiesByDate(ctx context.Context, date time.Time) ([]*warmodels.ParticipationDaily, error)
	PeriodDailies(ctx context.Context, seasonID, sectionIndex uint32) ([]*warmodels.ParticipationDaily, error)

	// --- Member roster

	UpsertMemberDailies(ctx context.Context, clanTag string, date time.Time, rows []*warmodels.MemberDaily) error
	GetMembersByDate(ctx context.Context, clanTag string, date time.Time) ([]*warmodels.MemberDaily, error)
	LatestMemberDate(ctx context.Context, clanTag string) (time.Time, error)
	DonationBoard(ctx context.Context, clanTag string, date time.Time) ([]*warmodels.MemberDaily, error)
	MemberHistory(ctx context.Context, clanTag, playerTag string, from, to time.Time) ([]*warmodels.MemberDaily, error)

	// --- Standings

	InsertStandingSnapshot(ctx context.Context, snap *warmodels.StandingSnapshot) error
	StandingTrend(ctx context.Context, clanTag string, seasonID, sectionIndex uint32, limit int) ([]*warmodels.StandingSnapshot, error)
	LatestStanding(ctx context.Context, clanTag string) (*warmodels.StandingSnapshot, error)

	// --- Maintenance

	TableHealth(ctx context.Context) ([]*clickhouse.TableHealth, error)
	OptimizeTables(ctx context.Context, final bool) error

	// --- Meta / Help queries

	Exec(ctx context.Context, query string, args ...any) error
	Select(ctx context.Context, dest interface{}, query string, args ...any) error
	Close() error
}
