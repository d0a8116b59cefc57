package activity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap/zaptest"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/clickhouse"
	warmodels "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/models/war"
	warstore "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/war"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
)

const testClanTag = "#TESTCLAN"

func newTestContext(t *testing.T, store *fakeWarStore, api *fakeRaceAPI) *Context {
	t.Helper()
	return &Context{
		Logger:               zaptest.NewLogger(t),
		WarDB:                store,
		API:                  api,
		ClanTag:              testClanTag,
		UpsertMaxParallelism: 4,
	}
}

func raceSnapshot(season, section uint32, participants ...types.Participant) *types.Snapshot {
	return &types.Snapshot{
		ClanTag:      testClanTag,
		Period:       types.PeriodKey{SeasonID: season, SectionIndex: section},
		PeriodType:   types.PeriodWarDay,
		ClanScore:    1000,
		Participants: participants,
		ObservedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func executeReconcile(t *testing.T, c *Context, in types.ReconcileInput) *types.ReconcileOutput {
	t.Helper()
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()
	env.RegisterActivity(c.ReconcileAndPersist)

	val, err := env.ExecuteActivity(c.ReconcileAndPersist, in)
	require.NoError(t, err)
	var out types.ReconcileOutput
	require.NoError(t, val.Get(&out))
	return &out
}

func TestReconcileAndPersistInitialWritesBaselines(t *testing.T) {
	store := newFakeWarStore()
	c := newTestContext(t, store, nil)

	snap := raceSnapshot(75, 2,
		types.Participant{Tag: "#P1", Name: "Ana", Fame: 400, DecksUsed: 6},
		types.Participant{Tag: "#P2", Name: "Bo", Fame: 200, DecksUsed: 3},
	)
	out := executeReconcile(t, c, types.ReconcileInput{Snapshot: snap})

	require.Equal(t, types.TransitionInitial, out.Report.Transition)
	require.Equal(t, 2, out.Report.ParticipantsUpdated)
	require.False(t, out.Report.Skipped)

	require.NotNil(t, store.state)
	require.Equal(t, uint32(75), store.state.SeasonID)
	require.Equal(t, uint32(2), store.state.SectionIndex)

	p1 := store.row("#P1", 75, 2)
	require.NotNil(t, p1)
	// First observation in a period: the cumulative value is the baseline.
	require.Equal(t, uint32(6), p1.DecksUsed)
	require.Equal(t, uint32(6), p1.DecksUsedToday)
}

func TestReconcileAndPersistContinuationDelta(t *testing.T) {
	store := newFakeWarStore()
	store.seedState(75, 2)
	store.seedRow(&warmodels.Participation{
		PlayerTag: "#P1", SeasonID: 75, SectionIndex: 2,
		PlayerName: "Ana", Fame: 300, DecksUsed: 8, DecksUsedToday: 2,
	})
	c := newTestContext(t, store, nil)

	snap := raceSnapshot(75, 2, types.Participant{Tag: "#P1", Name: "Ana", Fame: 500, DecksUsed: 10})
	out := executeReconcile(t, c, types.ReconcileInput{Snapshot: snap})

	require.Equal(t, types.TransitionContinuation, out.Report.Transition)
	p1 := store.row("#P1", 75, 2)
	require.Equal(t, uint32(10), p1.DecksUsed)
	require.Equal(t, uint32(2), p1.DecksUsedToday)
}

func TestReconcileAndPersistReplayIsIdempotent(t *testing.T) {
	store := newFakeWarStore()
	c := newTestContext(t, store, nil)

	snap := raceSnapshot(75, 2, types.Participant{Tag: "#P1", Name: "Ana", Fame: 400, DecksUsed: 6})
	first := executeReconcile(t, c, types.ReconcileInput{Snapshot: snap})
	require.Equal(t, 1, first.Report.ParticipantsUpdated)
	stored := *store.row("#P1", 75, 2)

	second := executeReconcile(t, c, types.ReconcileInput{Snapshot: snap})
	require.Equal(t, types.TransitionContinuation, second.Report.Transition)
	require.Equal(t, 0, second.Report.ParticipantsUpdated)
	require.Equal(t, stored, *store.row("#P1", 75, 2))
}

func TestReconcileAndPersistStaleSnapshotSkips(t *testing.T) {
	store := newFakeWarStore()
	store.seedState(5, 2)
	c := newTestContext(t, store, nil)

	snap := raceSnapshot(5, 1, types.Participant{Tag: "#P1", Name: "Ana", DecksUsed: 4})
	out := executeReconcile(t, c, types.ReconcileInput{Snapshot: snap})

	require.True(t, out.Report.Skipped)
	require.Equal(t, types.TransitionStale, out.Report.Transition)
	require.Equal(t, uint32(2), store.state.SectionIndex)
	require.Nil(t, store.row("#P1", 5, 1))
}

func TestReconcileAndPersistConcurrentStateWriteSkips(t *testing.T) {
	store := newFakeWarStore()
	store.seedState(75, 2)
	store.failState = warstore.ErrStateSuperseded
	c := newTestContext(t, store, nil)

	snap := raceSnapshot(75, 2, types.Participant{Tag: "#P1", Name: "Ana", Fame: 500, DecksUsed: 10})
	out := executeReconcile(t, c, types.ReconcileInput{Snapshot: snap})

	require.True(t, out.Report.Skipped)
	require.Equal(t, types.TransitionContinuation, out.Report.Transition)
	require.Equal(t, types.PeriodKey{SeasonID: 75, SectionIndex: 2}, out.Report.Period)
	// The losing run writes nothing; the winning run's rows stand.
	require.Nil(t, store.row("#P1", 75, 2))
	require.True(t, store.state.UpdatedAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestReconcileAndPersistBoundaryResetsAttribution(t *testing.T) {
	store := newFakeWarStore()
	store.seedState(5, 2)
	store.seedRow(&warmodels.Participation{
		PlayerTag: "#P1", SeasonID: 5, SectionIndex: 2,
		PlayerName: "Ana", Fame: 900, DecksUsed: 16, DecksUsedToday: 4,
	})
	c := newTestContext(t, store, nil)

	snap := raceSnapshot(5, 3, types.Participant{Tag: "#P1", Name: "Ana", Fame: 100, DecksUsed: 4})
	out := executeReconcile(t, c, types.ReconcileInput{Snapshot: snap})

	require.Equal(t, types.TransitionBoundary, out.Report.Transition)
	require.NotNil(t, out.PreviousPeriod)
	require.Equal(t, types.PeriodKey{SeasonID: 5, SectionIndex: 2}, *out.PreviousPeriod)

	require.Equal(t, uint32(3), store.state.SectionIndex)
	fresh := store.row("#P1", 5, 3)
	require.Equal(t, uint32(4), fresh.DecksUsed)
	require.Equal(t, uint32(4), fresh.DecksUsedToday)
	// Finished-period history is untouched.
	old := store.row("#P1", 5, 2)
	require.Equal(t, uint32(16), old.DecksUsed)
}

func TestReconcileAndPersistClampsDecreasingCounter(t *testing.T) {
	store := newFakeWarStore()
	store.seedState(75, 2)
	store.seedRow(&warmodels.Participation{
		PlayerTag: "#P1", SeasonID: 75, SectionIndex: 2, PlayerName: "Ana", DecksUsed: 8,
	})
	c := newTestContext(t, store, nil)

	snap := raceSnapshot(75, 2, types.Participant{Tag: "#P1", Name: "Ana", DecksUsed: 5})
	out := executeReconcile(t, c, types.ReconcileInput{Snapshot: snap})

	require.Len(t, out.Report.Anomalies, 1)
	require.Equal(t, "#P1", out.Report.Anomalies[0].PlayerTag)
	p1 := store.row("#P1", 75, 2)
	require.Equal(t, uint32(5), p1.DecksUsed)
	require.Equal(t, uint32(0), p1.DecksUsedToday)
}

func TestFetchSnapshotAuthFailureIsTerminal(t *testing.T) {
	api := &fakeRaceAPI{
		snapErr: &types.FetchError{Kind: types.FetchUnauthorized, Status: 403, Err: errors.New("forbidden")},
	}
	c := newTestContext(t, newFakeWarStore(), api)

	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()
	env.RegisterActivity(c.FetchSnapshot)

	_, err := env.ExecuteActivity(c.FetchSnapshot, types.FetchCycleInput{})
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, string(types.FetchUnauthorized), appErr.Type())
}

func TestSnapshotDailyCopiesAndCountsOrphans(t *testing.T) {
	store := newFakeWarStore()
	store.seedState(75, 2)
	store.seedRow(&warmodels.Participation{PlayerTag: "#P1", SeasonID: 75, SectionIndex: 2, PlayerName: "Ana", DecksUsed: 8})
	store.seedRow(&warmodels.Participation{PlayerTag: "#GONE", SeasonID: 75, SectionIndex: 2, PlayerName: "Ghost", DecksUsed: 2})
	api := &fakeRaceAPI{members: []types.Member{
		{Tag: "#P1", Name: "Ana", Role: "leader", Donations: 120},
	}}
	c := newTestContext(t, store, api)

	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()
	env.RegisterActivity(c.SnapshotDaily)

	val, err := env.ExecuteActivity(c.SnapshotDaily, types.DailySnapshotInput{Date: "2024-03-01"})
	require.NoError(t, err)
	var report types.SnapshotReport
	require.NoError(t, val.Get(&report))

	require.Equal(t, "2024-03-01", report.Date)
	require.Equal(t, types.PeriodKey{SeasonID: 75, SectionIndex: 2}, report.Period)
	require.Equal(t, 2, report.ParticipantsCopied)
	require.Equal(t, 1, report.MembersRecorded)
	require.Equal(t, 1, report.Orphaned)

	require.Len(t, store.dailies, 2)
	require.Len(t, store.memberDailies, 1)
	// Orphaned records are flagged, never deleted.
	require.NotNil(t, store.row("#GONE", 75, 2))
}

func TestSnapshotDailyRerunOverwritesSameDate(t *testing.T) {
	store := newFakeWarStore()
	store.seedState(75, 2)
	store.seedRow(&warmodels.Participation{PlayerTag: "#P1", SeasonID: 75, SectionIndex: 2, PlayerName: "Ana", DecksUsed: 4})
	api := &fakeRaceAPI{members: []types.Member{{Tag: "#P1", Name: "Ana"}}}
	c := newTestContext(t, store, api)

	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()
	env.RegisterActivity(c.SnapshotDaily)

	for i := 0; i < 2; i++ {
		_, err := env.ExecuteActivity(c.SnapshotDaily, types.DailySnapshotInput{Date: "2024-03-01"})
		require.NoError(t, err)
	}
	require.Len(t, store.dailies, 1)
	require.Len(t, store.memberDailies, 1)
}

func TestBackfillFillsGapsOldestFirst(t *testing.T) {
	store := newFakeWarStore()
	store.seedState(5, 5)
	store.seedRow(&warmodels.Participation{PlayerTag: "#P1", SeasonID: 5, SectionIndex: 4, PlayerName: "Ana", DecksUsed: 12})
	// Log arrives newest first and includes the stored period and the live one.
	api := &fakeRaceAPI{log: []types.Snapshot{
		*raceSnapshot(5, 5, types.Participant{Tag: "#P1", DecksUsed: 1}),
		*raceSnapshot(5, 4, types.Participant{Tag: "#P1", DecksUsed: 99}),
		*raceSnapshot(5, 3, types.Participant{Tag: "#P1", Name: "Ana", Fame: 700, DecksUsed: 14}),
		*raceSnapshot(5, 2, types.Participant{Tag: "#P1", Name: "Ana", Fame: 500, DecksUsed: 10}),
	}}
	c := newTestContext(t, store, api)

	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()
	env.RegisterActivity(c.BackfillLog)

	val, err := env.ExecuteActivity(c.BackfillLog, types.BackfillInput{Weeks: 4})
	require.NoError(t, err)
	var report types.BackfillReport
	require.NoError(t, val.Get(&report))

	require.Equal(t, 2, report.PeriodsFilled)
	require.Equal(t, 0, report.PeriodsFailed)
	require.Equal(t, 2, report.PlayersWritten)

	// Gap weeks landed with their cumulative values as baselines.
	require.Equal(t, uint32(10), store.row("#P1", 5, 2).DecksUsed)
	require.Equal(t, uint32(14), store.row("#P1", 5, 3).DecksUsed)
	// The stored week and the live period were left alone.
	require.Equal(t, uint32(12), store.row("#P1", 5, 4).DecksUsed)
	require.Nil(t, store.row("#P1", 5, 5))
	require.Equal(t, uint32(5), store.state.SectionIndex)
}

func TestBackfillOrderIndependent(t *testing.T) {
	logs := [][]types.Snapshot{
		{
			*raceSnapshot(5, 5, types.Participant{Tag: "#P1", Name: "Ana", Fame: 900, DecksUsed: 15}),
			*raceSnapshot(5, 3, types.Participant{Tag: "#P1", Name: "Ana", Fame: 700, DecksUsed: 14}),
			*raceSnapshot(5, 4, types.Participant{Tag: "#P1", Name: "Ana", Fame: 800, DecksUsed: 9}),
		},
		{
			*raceSnapshot(5, 3, types.Participant{Tag: "#P1", Name: "Ana", Fame: 700, DecksUsed: 14}),
			*raceSnapshot(5, 4, types.Participant{Tag: "#P1", Name: "Ana", Fame: 800, DecksUsed: 9}),
			*raceSnapshot(5, 5, types.Participant{Tag: "#P1", Name: "Ana", Fame: 900, DecksUsed: 15}),
		},
	}

	var results []map[string]warmodels.Participation
	for _, log := range logs {
		store := newFakeWarStore()
		c := newTestContext(t, store, &fakeRaceAPI{log: log})

		suite := testsuite.WorkflowTestSuite{}
		env := suite.NewTestActivityEnvironment()
		env.RegisterActivity(c.BackfillLog)
		_, err := env.ExecuteActivity(c.BackfillLog, types.BackfillInput{Weeks: 3})
		require.NoError(t, err)

		results = append(results, store.snapshotRows())
	}
	require.Equal(t, results[0], results[1])
}

func TestBackfillRecordsFailedPeriodAndContinues(t *testing.T) {
	store := newFakeWarStore()
	store.failPeriod(5, 3, errors.New("insert refused"))
	api := &fakeRaceAPI{log: []types.Snapshot{
		*raceSnapshot(5, 3, types.Participant{Tag: "#P1", Name: "Ana", DecksUsed: 14}),
		*raceSnapshot(5, 2, types.Participant{Tag: "#P1", Name: "Ana", DecksUsed: 10}),
	}}
	c := newTestContext(t, store, api)

	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()
	env.RegisterActivity(c.BackfillLog)

	val, err := env.ExecuteActivity(c.BackfillLog, types.BackfillInput{Weeks: 2})
	require.NoError(t, err)
	var report types.BackfillReport
	require.NoError(t, val.Get(&report))

	require.Equal(t, 1, report.PeriodsFilled)
	require.Equal(t, 1, report.PeriodsFailed)
	require.Equal(t, []types.PeriodKey{{SeasonID: 5, SectionIndex: 3}}, report.FailedPeriods)
	require.NotNil(t, store.row("#P1", 5, 2))
}

func TestBackfillMarksColosseumFromSeasonMap(t *testing.T) {
	store := newFakeWarStore()
	store.colosseum = map[uint32]uint32{5: 3}
	api := &fakeRaceAPI{log: []types.Snapshot{
		*raceSnapshot(5, 3, types.Participant{Tag: "#P1", Name: "Ana", DecksUsed: 14}),
	}}
	c := newTestContext(t, store, api)

	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()
	env.RegisterActivity(c.BackfillLog)

	_, err := env.ExecuteActivity(c.BackfillLog, types.BackfillInput{Weeks: 1})
	require.NoError(t, err)

	row := store.row("#P1", 5, 3)
	require.NotNil(t, row)
	require.True(t, row.IsColosseum)
}

func TestCaptureStandingRecordsGapToAbove(t *testing.T) {
	store := newFakeWarStore()
	c := newTestContext(t, store, nil)

	snap := raceSnapshot(75, 2)
	snap.Standings = []types.Standing{
		{Rank: 1, Tag: "#TOP", Name: "Top", Fame: 2000},
		{Rank: 2, Tag: testClanTag, Name: "Us", Fame: 1500},
		{Rank: 3, Tag: "#LAST", Name: "Last", Fame: 900},
	}

	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()
	env.RegisterActivity(c.CaptureStanding)

	val, err := env.ExecuteActivity(c.CaptureStanding, types.StandingInput{Snapshot: snap})
	require.NoError(t, err)
	var out types.StandingOutput
	require.NoError(t, val.Get(&out))

	require.True(t, out.Captured)
	require.Equal(t, uint8(2), out.Rank)
	require.Len(t, store.standings, 1)
	row := store.standings[0]
	require.NotNil(t, row.GapToAbove)
	require.Equal(t, int64(500), *row.GapToAbove)
	require.NotNil(t, row.AboveRank)
	require.Equal(t, uint8(1), *row.AboveRank)
	require.Contains(t, row.Standings, "#TOP")
}

func TestCaptureStandingWithoutStandingsIsNoop(t *testing.T) {
	store := newFakeWarStore()
	c := newTestContext(t, store, nil)

	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()
	env.RegisterActivity(c.CaptureStanding)

	val, err := env.ExecuteActivity(c.CaptureStanding, types.StandingInput{Snapshot: raceSnapshot(75, 2)})
	require.NoError(t, err)
	var out types.StandingOutput
	require.NoError(t, val.Get(&out))
	require.False(t, out.Captured)
	require.Empty(t, store.standings)
}

func TestPublishCycleEventsWithoutRedisIsNoop(t *testing.T) {
	c := newTestContext(t, newFakeWarStore(), nil)

	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()
	env.RegisterActivity(c.PublishCycleEvents)

	_, err := env.ExecuteActivity(c.PublishCycleEvents, types.PublishCycleInput{
		ClanTag: testClanTag,
		Report:  types.CycleReport{Transition: types.TransitionContinuation},
	})
	require.NoError(t, err)
}

func TestWriteParticipationsSerializesPerKey(t *testing.T) {
	store := newFakeWarStore()
	store.trackOverlap = true
	c := newTestContext(t, store, nil)

	rows := []*warmodels.Participation{
		{PlayerTag: "#P1", SeasonID: 75, SectionIndex: 2, DecksUsed: 4},
		{PlayerTag: "#P2", SeasonID: 75, SectionIndex: 2, DecksUsed: 8},
	}

	errs := make(chan error, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.writeParticipations(context.Background(), rows)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.False(t, store.overlapped, "two writers held the same record key at once")
	require.NotNil(t, store.row("#P1", 75, 2))
	require.NotNil(t, store.row("#P2", 75, 2))
}

// ---- fakes ----

type fakeRaceAPI struct {
	snapshot   *types.Snapshot
	snapErr    error
	log        []types.Snapshot
	logErr     error
	members    []types.Member
	membersErr error
	anomalies  []types.Anomaly
}

func (f *fakeRaceAPI) CurrentRiverRace(context.Context, string) (*types.Snapshot, []types.Anomaly, error) {
	if f.snapErr != nil {
		return nil, nil, f.snapErr
	}
	return f.snapshot, f.anomalies, nil
}

func (f *fakeRaceAPI) RiverRaceLog(context.Context, string, int) ([]types.Snapshot, []types.Anomaly, error) {
	if f.logErr != nil {
		return nil, nil, f.logErr
	}
	return f.log, f.anomalies, nil
}

func (f *fakeRaceAPI) Members(context.Context, string) ([]types.Member, error) {
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	return f.members, nil
}

type fakePeriod struct {
	season  uint32
	section uint32
}

type fakeWarStore struct {
	mu            sync.Mutex
	state         *warmodels.RiverRaceState
	rows          map[string]*warmodels.Participation
	dailies       map[string]*warmodels.ParticipationDaily
	memberDailies map[string]*warmodels.MemberDaily
	standings     []*warmodels.StandingSnapshot
	colosseum     map[uint32]uint32
	failWrites    map[fakePeriod]error
	failState     error

	trackOverlap bool
	inFlight     map[string]bool
	overlapped   bool
}

func newFakeWarStore() *fakeWarStore {
	return &fakeWarStore{
		rows:          make(map[string]*warmodels.Participation),
		dailies:       make(map[string]*warmodels.ParticipationDaily),
		memberDailies: make(map[string]*warmodels.MemberDaily),
		inFlight:      make(map[string]bool),
	}
}

func (f *fakeWarStore) seedState(season, section uint32) {
	f.state = &warmodels.RiverRaceState{
		ClanTag:      testClanTag,
		SeasonID:     season,
		SectionIndex: section,
		PeriodType:   string(types.PeriodWarDay),
		CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeWarStore) seedRow(row *warmodels.Participation) {
	f.rows[row.Key()] = row
}

func (f *fakeWarStore) failPeriod(season, section uint32, err error) {
	if f.failWrites == nil {
		f.failWrites = make(map[fakePeriod]error)
	}
	f.failWrites[fakePeriod{season, section}] = err
}

func (f *fakeWarStore) row(tag string, season, section uint32) *warmodels.Participation {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := &warmodels.Participation{PlayerTag: tag, SeasonID: season, SectionIndex: section}
	stored, ok := f.rows[row.Key()]
	if !ok {
		return nil
	}
	cp := *stored
	return &cp
}

// snapshotRows copies the stored participation map with timestamps zeroed so
// runs can be compared structurally.
func (f *fakeWarStore) snapshotRows() map[string]warmodels.Participation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]warmodels.Participation, len(f.rows))
	for k, v := range f.rows {
		cp := *v
		cp.CreatedAt = time.Time{}
		cp.UpdatedAt = time.Time{}
		out[k] = cp
	}
	return out
}

func (f *fakeWarStore) DatabaseName() string { return "war_test" }

func (f *fakeWarStore) GetConnection() driver.Conn { return nil }

func (f *fakeWarStore) InitializeDB(context.Context) error { return nil }

func (f *fakeWarStore) GetState(context.Context, string) (*warmodels.RiverRaceState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == nil {
		return nil, nil
	}
	cp := *f.state
	return &cp, nil
}

func (f *fakeWarStore) UpsertState(_ context.Context, state *warmodels.RiverRaceState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failState != nil {
		return f.failState
	}
	cp := *state
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	f.state = &cp
	return nil
}

func (f *fakeWarStore) UpsertParticipations(_ context.Context, rows []*warmodels.Participation) error {
	f.mu.Lock()
	for _, r := range rows {
		if err, ok := f.failWrites[fakePeriod{r.SeasonID, r.SectionIndex}]; ok {
			f.mu.Unlock()
			return err
		}
		if f.trackOverlap {
			if f.inFlight[r.Key()] {
				f.overlapped = true
			}
			f.inFlight[r.Key()] = true
		}
	}
	f.mu.Unlock()

	if f.trackOverlap {
		// Hold the batch open long enough for a second writer to collide.
		time.Sleep(2 * time.Millisecond)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	for _, r := range rows {
		if f.trackOverlap {
			delete(f.inFlight, r.Key())
		}
		cp := *r
		if existing, ok := f.rows[r.Key()]; ok {
			cp.CreatedAt = existing.CreatedAt
		} else if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		cp.UpdatedAt = now
		f.rows[r.Key()] = &cp
	}
	return nil
}

func (f *fakeWarStore) GetPeriodParticipation(_ context.Context, seasonID, sectionIndex uint32) ([]*warmodels.Participation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*warmodels.Participation
	for _, r := range f.rows {
		if r.SeasonID == seasonID && r.SectionIndex == sectionIndex {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeWarStore) PlayerHistory(context.Context, string, int) ([]*warmodels.Participation, error) {
	return nil, nil
}

func (f *fakeWarStore) InactivePlayers(context.Context, uint32, uint32, uint32) ([]*warmodels.Participation, error) {
	return nil, nil
}

func (f *fakeWarStore) HasPeriod(_ context.Context, seasonID, sectionIndex uint32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.SeasonID == seasonID && r.SectionIndex == sectionIndex {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWarStore) ColosseumSections(context.Context) (map[uint32]uint32, error) {
	return f.colosseum, nil
}

func (f *fakeWarStore) UpsertDailies(_ context.Context, date time.Time, rows []*warmodels.ParticipationDaily) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	day := warmodels.NormalizeDate(date)
	for _, r := range rows {
		cp := *r
		cp.SnapshotDate = day
		f.dailies[cp.Key()] = &cp
	}
	return nil
}

func (f *fakeWarStore) GetDailiesByDate(context.Context, time.Time) ([]*warmodels.ParticipationDaily, error) {
	return nil, nil
}

func (f *fakeWarStore) PeriodDailies(context.Context, uint32, uint32) ([]*warmodels.ParticipationDaily, error) {
	return nil, nil
}

func (f *fakeWarStore) UpsertMemberDailies(_ context.Context, clanTag string, date time.Time, rows []*warmodels.MemberDaily) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	day := warmodels.NormalizeDate(date)
	for _, r := range rows {
		cp := *r
		cp.ClanTag = clanTag
		cp.SnapshotDate = day
		f.memberDailies[cp.PlayerTag+"/"+day.Format("2006-01-02")] = &cp
	}
	return nil
}

func (f *fakeWarStore) GetMembersByDate(context.Context, string, time.Time) ([]*warmodels.MemberDaily, error) {
	return nil, nil
}

func (f *fakeWarStore) LatestMemberDate(context.Context, string) (time.Time, error) {
	return time.Time{}, nil
}

func (f *fakeWarStore) DonationBoard(context.Context, string, time.Time) ([]*warmodels.MemberDaily, error) {
	return nil, nil
}

func (f *fakeWarStore) MemberHistory(context.Context, string, string, time.Time, time.Time) ([]*warmodels.MemberDaily, error) {
	return nil, nil
}

func (f *fakeWarStore) InsertStandingSnapshot(_ context.Context, snap *warmodels.StandingSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *snap
	f.standings = append(f.standings, &cp)
	return nil
}

func (f *fakeWarStore) StandingTrend(context.Context, string, uint32, uint32, int) ([]*warmodels.StandingSnapshot, error) {
	return nil, nil
}

func (f *fakeWarStore) LatestStanding(context.Context, string) (*warmodels.StandingSnapshot, error) {
	return nil, nil
}

func (f *fakeWarStore) TableHealth(context.Context) ([]*clickhouse.TableHealth, error) {
	return nil, nil
}

func (f *fakeWarStore) OptimizeTables(context.Context, bool) error { return nil }

func (f *fakeWarStore) Exec(context.Context, string, ...any) error { return nil }

func (f *fakeWarStore) Select(context.Context, interface{}, string, ...any) error { return nil }

func (f *fakeWarStore) Close() error { return nil }
