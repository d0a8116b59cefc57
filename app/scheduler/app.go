package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/logging"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/royale"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/temporal"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/temporal/tracker"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/utils"
	"github.com/gorilla/mux"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/robfig/cron/v3"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

// App owns the Temporal schedules that drive tracking. Every cron tick it
// compares the deployed schedules against the cadence configured in the
// environment and converges them, so a deleted or drifted schedule heals on
// the next tick.
type App struct {
	TemporalClient *temporal.Client

	Cron     *cron.Cron
	CronSpec string

	// Desired cadence, resolved once at startup.
	ClanTag       string
	FetchInterval time.Duration
	SnapshotHour  int

	// Applied tracks schedules we believe match the desired cadence;
	// readiness means both are applied.
	Applied *xsync.MapOf[string, string]

	Logger *zap.Logger

	// Server serves the liveness and readiness probes.
	Server *http.Server
}

// Initialize builds the scheduler from the environment and registers the
// reconcile tick. Cron does not fire until StartCron.
func Initialize(ctx context.Context) (*App, error) {
	logger, err := logging.New()
	if err != nil {
		panic(err) // no logger to report with
	}

	clanTag := utils.Env("CLAN_TAG", "")
	if clanTag == "" {
		logger.Fatal("CLAN_TAG is required")
	}

	temporalClient, temporalErr := temporal.NewClient(ctx, logger)
	if temporalErr != nil {
		logger.Fatal("Unable to initialize temporal client", zap.Error(temporalErr))
	}

	// The scheduler is first up in a fresh deployment, so it owns namespace
	// registration.
	if nsErr := temporalClient.EnsureNamespace(ctx, 7*24*time.Hour); nsErr != nil {
		logger.Fatal("Unable to ensure temporal namespace", zap.Error(nsErr))
	}

	app := &App{
		TemporalClient: temporalClient,
		CronSpec:       utils.Env("CRON_SPEC", "*/15 * * * * *"),
		ClanTag:        royale.NormalizeTag(clanTag),
		FetchInterval:  time.Duration(utils.EnvInt("FETCH_INTERVAL_SECONDS", 3600)) * time.Second,
		SnapshotHour:   utils.EnvInt("SNAPSHOT_UTC_HOUR", 0),
		Applied:        xsync.NewMapOf[string, string](),
		Logger:         logger,
	}

	if err := app.SetupScheduler(ctx, cron.DefaultLogger, app.CronSpec); err != nil {
		return nil, err
	}
	return app, nil
}

// SetupServer builds the probe server. /healthz is unconditional liveness;
// /readyz turns ready once both schedules are applied.
func (a *App) SetupServer() {
	addr := utils.Env("ADDR", ":3002")

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		status := http.StatusOK
		if !a.Ready() {
			status = http.StatusServiceUnavailable
		}
		w.WriteHeader(status)
	}).Methods(http.MethodGet)

	a.Server = &http.Server{Addr: addr, Handler: r}
}

// SetupScheduler registers the reconcile tick on a fresh cron instance.
// Reconcile is idempotent, so a pass that overlaps a slow predecessor would
// be harmless; skipping it is just quieter.
func (a *App) SetupScheduler(ctx context.Context, logger cron.Logger, cronSpec string) error {
	a.Cron = cron.New(cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(logger), cron.Recover(logger)))

	_, err := a.Cron.AddFunc(cronSpec, func() {
		// Bound each pass so a hung Temporal call cannot pin goroutines.
		rctx, cancel := context.WithTimeout(ctx, 25*time.Second)
		defer cancel()
		if err := a.Reconcile(rctx); err != nil {
			logger.Info("[scheduler] reconcile error", "error", err)
		}
	})
	return err
}

// StartCron starts ticking. Call after an initial ReconcileOnce so a restart
// does not wait a full tick to converge.
func (a *App) StartCron() {
	a.Cron.Start()
	a.Logger.Info("[scheduler] Cron started", zap.String("cronSpec", a.CronSpec))
}

// StopCron waits out any running pass, then releases the Temporal client.
func (a *App) StopCron() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
	a.TemporalClient.Close()
}

// Reconcile converges both tracking schedules on the Temporal server.
func (a *App) Reconcile(ctx context.Context) error {
	if err := a.EnsureFetchCycleSchedule(ctx); err != nil {
		return fmt.Errorf("fetch cycle: %w", err)
	}
	if err := a.EnsureDailySnapshotSchedule(ctx); err != nil {
		return fmt.Errorf("daily snapshot: %w", err)
	}
	return nil
}

// EnsureFetchCycleSchedule converges the fetch cycle schedule on
// FetchInterval. The overlap policy skips a firing while the previous cycle
// still runs, so at most one cycle per clan is in flight.
func (a *App) EnsureFetchCycleSchedule(ctx context.Context) error {
	desired := temporal.GetScheduleSpec(a.FetchInterval)
	return a.ensureSchedule(ctx,
		a.TemporalClient.FetchCycleScheduleID,
		a.FetchInterval.String(),
		&desired,
		func(spec *client.ScheduleSpec) bool { return intervalSpecCurrent(spec, a.FetchInterval) },
		func(id string) client.ScheduleOptions {
			return client.ScheduleOptions{
				ID:      id,
				Spec:    desired,
				Overlap: enums.SCHEDULE_OVERLAP_POLICY_SKIP,
				Action: &client.ScheduleWorkflowAction{
					Workflow:                 tracker.FetchCycleWorkflowName,
					Args:                     []interface{}{types.FetchCycleInput{ClanTag: a.ClanTag}},
					TaskQueue:                a.TemporalClient.TrackerQueue,
					WorkflowExecutionTimeout: 10 * time.Minute,
					WorkflowTaskTimeout:      2 * time.Minute,
				},
			}
		})
}

// EnsureDailySnapshotSchedule converges the daily snapshot schedule on
// SnapshotHour UTC. The workflow resolves the date itself, so the schedule
// carries no date argument.
func (a *App) EnsureDailySnapshotSchedule(ctx context.Context) error {
	desired := temporal.DailyAtHourSpec(a.SnapshotHour)
	return a.ensureSchedule(ctx,
		a.TemporalClient.DailySnapshotScheduleID,
		fmt.Sprintf("%02d:00 UTC", a.SnapshotHour),
		&desired,
		func(spec *client.ScheduleSpec) bool { return calendarSpecCurrent(spec, a.SnapshotHour) },
		func(id string) client.ScheduleOptions {
			return client.ScheduleOptions{
				ID:   id,
				Spec: desired,
				Action: &client.ScheduleWorkflowAction{
					Workflow:                 tracker.DailySnapshotWorkflowName,
					Args:                     []interface{}{types.DailySnapshotInput{ClanTag: a.ClanTag}},
					TaskQueue:                a.TemporalClient.TrackerQueue,
					WorkflowExecutionTimeout: 10 * time.Minute,
					WorkflowTaskTimeout:      2 * time.Minute,
				},
			}
		})
}

// ensureSchedule converges one schedule: create it when missing, rewrite its
// spec when drifted, and record the applied cadence either way.
func (a *App) ensureSchedule(ctx context.Context, id, cadence string, desired *client.ScheduleSpec,
	current func(*client.ScheduleSpec) bool, build func(id string) client.ScheduleOptions) error {
	h := a.TemporalClient.TSClient.GetHandle(ctx, id)
	desc, err := h.Describe(ctx)

	var notFound *serviceerror.NotFound
	switch {
	case err == nil && current(desc.Schedule.Spec):
		// already converged

	case err == nil:
		a.Logger.Info("Updating schedule", zap.String("id", id), zap.String("cadence", cadence))
		updateErr := h.Update(ctx, client.ScheduleUpdateOptions{
			DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
				input.Description.Schedule.Spec = desired
				return &client.ScheduleUpdate{Schedule: &input.Description.Schedule}, nil
			},
		})
		if updateErr != nil {
			return updateErr
		}

	case errors.As(err, &notFound):
		a.Logger.Info("Creating schedule",
			zap.String("id", id),
			zap.String("clanTag", a.ClanTag),
			zap.String("cadence", cadence))
		if _, createErr := a.TemporalClient.TSClient.Create(ctx, build(id)); createErr != nil {
			return createErr
		}

	default:
		return err
	}

	a.Applied.Store(id, cadence)
	return nil
}

// intervalSpecCurrent reports whether the deployed spec already fires every
// interval. Temporal normalizes specs server-side, so match on the values we
// set rather than deep equality.
func intervalSpecCurrent(spec *client.ScheduleSpec, interval time.Duration) bool {
	if spec == nil || len(spec.Intervals) != 1 {
		return false
	}
	return spec.Intervals[0].Every == interval
}

// calendarSpecCurrent reports whether the deployed spec already fires daily at
// the given UTC hour.
func calendarSpecCurrent(spec *client.ScheduleSpec, hour int) bool {
	if spec == nil || len(spec.Calendars) != 1 {
		return false
	}
	cal := spec.Calendars[0]
	return len(cal.Hour) == 1 && cal.Hour[0].Start == hour
}

// ReconcileOnce runs a single pass, used at startup before cron takes over.
// Failures are logged; the next tick retries.
func (a *App) ReconcileOnce(ctx context.Context) {
	if err := a.Reconcile(ctx); err != nil {
		a.Logger.Warn("Initial reconcile failed", zap.Error(err))
	}
}

// Ready reports whether both schedules are applied.
func (a *App) Ready() bool { return a.Applied.Size() >= 2 }

// Start serves the probes until ctx is cancelled, then stops cron and
// releases the Temporal client.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	_ = a.Server.Close()
	a.StopCron()
	a.Logger.Info("Чао!")
}
