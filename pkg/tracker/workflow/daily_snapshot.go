package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
)

// DailySnapshotWorkflow copies the active period's participation into the
// per-date history and records the roster for the day. The schedule starts it
// with an empty date; pinning the date to the workflow clock keeps retries
// and replays on the same day even across midnight.
func (wc *Context) DailySnapshotWorkflow(ctx workflow.Context, in types.DailySnapshotInput) (types.SnapshotReport, error) {
	if in.Date == "" {
		in.Date = workflow.Now(ctx).UTC().Format("2006-01-02")
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	})

	var report types.SnapshotReport
	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.SnapshotDaily, in).Get(ctx, &report); err != nil {
		return types.SnapshotReport{}, err
	}
	return report, nil
}
