package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
)

// FetchCycleWorkflow runs one fetch-reconcile-persist cycle and reports what
// it did. The schedule that drives it uses an overlap-skip policy, so a slow
// cycle delays the next tick instead of racing it.
//
// Fetch burns a bounded retry budget inside its own activity options; when it
// still fails the cycle is reported skipped rather than failed, keeping the
// schedule green through API outages. Persistence retries lean on idempotent
// writes, so re-delivery after a timeout converges on the same rows.
func (wc *Context) FetchCycleWorkflow(ctx workflow.Context, in types.FetchCycleInput) (types.CycleReport, error) {
	logger := workflow.GetLogger(ctx)

	fetchCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    5 * time.Second,
			MaximumAttempts:    5,
		},
	})

	var fetched types.FetchOutput
	if err := workflow.ExecuteActivity(fetchCtx, wc.ActivityContext.FetchSnapshot, in).Get(fetchCtx, &fetched); err != nil {
		logger.Warn("Snapshot fetch failed, skipping cycle", "error", err)
		return types.CycleReport{Skipped: true}, nil
	}

	persistCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	})

	var reconciled types.ReconcileOutput
	reconcileIn := types.ReconcileInput{
		Snapshot:       fetched.Snapshot,
		FetchAnomalies: fetched.Anomalies,
	}
	if err := workflow.ExecuteActivity(persistCtx, wc.ActivityContext.ReconcileAndPersist, reconcileIn).Get(persistCtx, &reconciled); err != nil {
		return types.CycleReport{}, err
	}

	report := reconciled.Report
	if report.Skipped {
		return report, nil
	}

	var standing types.StandingOutput
	standingIn := types.StandingInput{Snapshot: fetched.Snapshot}
	if err := workflow.ExecuteActivity(persistCtx, wc.ActivityContext.CaptureStanding, standingIn).Get(persistCtx, &standing); err != nil {
		// Standings are trend samples; losing one doesn't void the cycle.
		logger.Warn("Standing capture failed", "error", err)
	} else if standing.Captured {
		report.StandingRank = standing.Rank
	}

	publishCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	publishIn := types.PublishCycleInput{
		ClanTag:        fetched.Snapshot.ClanTag,
		Report:         report,
		PreviousPeriod: reconciled.PreviousPeriod,
		IsColosseum:    reconciled.IsColosseum,
	}
	if err := workflow.ExecuteActivity(publishCtx, wc.ActivityContext.PublishCycleEvents, publishIn).Get(publishCtx, nil); err != nil {
		logger.Warn("Event publish failed", "error", err)
	}

	return report, nil
}
