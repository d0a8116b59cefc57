package tracker

import (
	"context"
	"time"

	"go.temporal.io/sdk/worker"
	temporalworkflow "go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	warstore "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/war"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/logging"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/redis"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/royale"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/temporal"
	trackercontracts "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/temporal/tracker"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/activity"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/workflow"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/utils"
)

type App struct {
	Worker         worker.Worker
	OpsWorker      worker.Worker
	TemporalClient *temporal.Client
	WarDB          warstore.Store
	Logger         *zap.Logger
}

// Start starts both workers and blocks until the context is canceled.
func (a *App) Start(ctx context.Context) {
	if err := a.Worker.Start(); err != nil {
		a.Logger.Fatal("Unable to start worker", zap.Error(err))
	}
	if err := a.OpsWorker.Start(); err != nil {
		a.Logger.Fatal("Unable to start operations worker", zap.Error(err))
	}
	<-ctx.Done()
	a.Stop()
}

// Stop stops the workers, letting in-flight activities finish, then closes
// the database under them.
func (a *App) Stop() {
	a.Worker.Stop()
	a.OpsWorker.Stop()
	_ = a.WarDB.Close()
	a.Logger.Info("Чао!")
}

// Initialize builds the worker app from the environment.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		panic(err) // no logger to report with
	}

	clanTag := utils.Env("CLAN_TAG", "")
	if clanTag == "" {
		logger.Fatal("CLAN_TAG environment variable is required")
	}

	warDb, warDbErr := warstore.New(ctx, logger, "tracker")
	if warDbErr != nil {
		logger.Fatal("Unable to initialize war database", zap.Error(warDbErr))
	}

	temporalClient, err := temporal.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}

	activityContext := &activity.Context{
		Logger:      logger,
		WarDB:       warDb,
		API:         royale.NewClient(logger, royale.OptsFromEnv()),
		RedisClient: redis.NewClientIfEnabled(ctx, logger),
		ClanTag:     royale.NormalizeTag(clanTag),
	}
	workflowContext := workflow.Context{
		TemporalClient:  temporalClient,
		ActivityContext: activityContext,
	}

	// The tracker queue carries the scheduled cycles; sized low because the
	// schedule never overlaps itself and the API is rate limited anyway.
	wkr := worker.New(
		temporalClient.TClient,
		temporalClient.TrackerQueue,
		worker.Options{
			MaxConcurrentWorkflowTaskPollers: 5,
			MaxConcurrentActivityTaskPollers: 5,
			WorkerStopTimeout:                1 * time.Minute,
		},
	)
	registerAll(wkr, workflowContext, activityContext)

	// Operator-triggered runs (manual cycles, backfills) land on their own
	// queue so a long backfill never starves the schedule.
	opsWorker := worker.New(
		temporalClient.TClient,
		temporalClient.OpsQueue,
		worker.Options{
			MaxConcurrentWorkflowTaskPollers: 2,
			MaxConcurrentActivityTaskPollers: 2,
			WorkerStopTimeout:                1 * time.Minute,
		},
	)
	registerAll(opsWorker, workflowContext, activityContext)

	return &App{
		Worker:         wkr,
		OpsWorker:      opsWorker,
		TemporalClient: temporalClient,
		WarDB:          warDb,
		Logger:         logger,
	}
}

// registerAll registers the workflow set and its activities on a worker. Both
// queues expose the same surface; only their concurrency differs.
func registerAll(wkr worker.Worker, wc workflow.Context, ac *activity.Context) {
	wkr.RegisterWorkflowWithOptions(
		wc.FetchCycleWorkflow,
		temporalworkflow.RegisterOptions{Name: trackercontracts.FetchCycleWorkflowName},
	)
	wkr.RegisterWorkflowWithOptions(
		wc.DailySnapshotWorkflow,
		temporalworkflow.RegisterOptions{Name: trackercontracts.DailySnapshotWorkflowName},
	)
	wkr.RegisterWorkflowWithOptions(
		wc.BackfillWorkflow,
		temporalworkflow.RegisterOptions{Name: trackercontracts.BackfillWorkflowName},
	)

	wkr.RegisterActivity(ac.FetchSnapshot)
	wkr.RegisterActivity(ac.ReconcileAndPersist)
	wkr.RegisterActivity(ac.CaptureStanding)
	wkr.RegisterActivity(ac.SnapshotDaily)
	wkr.RegisterActivity(ac.BackfillLog)
	wkr.RegisterActivity(ac.PublishCycleEvents)
	wkr.RegisterActivity(ac.PublishBackfillEvent)
}
