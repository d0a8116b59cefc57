package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
)

// BackfillWorkflow replays past race weeks from the log into participation
// history. The replay itself runs in one activity because period ordering
// matters there; per-period failures are recorded inside the report rather
// than failing the run, so a retry only re-reads weeks that are still
// missing.
func (wc *Context) BackfillWorkflow(ctx workflow.Context, in types.BackfillInput) (types.BackfillReport, error) {
	replayCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var report types.BackfillReport
	if err := workflow.ExecuteActivity(replayCtx, wc.ActivityContext.BackfillLog, in).Get(replayCtx, &report); err != nil {
		return types.BackfillReport{}, err
	}

	publishCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	publishIn := types.PublishBackfillInput{ClanTag: in.ClanTag, Report: report}
	if err := workflow.ExecuteActivity(publishCtx, wc.ActivityContext.PublishBackfillEvent, publishIn).Get(publishCtx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("Event publish failed", "error", err)
	}

	return report, nil
}
