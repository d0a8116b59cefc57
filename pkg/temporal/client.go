package temporal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/retry"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/utils"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	taskqueuepb "go.temporal.io/api/taskqueue/v1"
	workflowservicepb "go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/durationpb"
)

// Client manages the tracker namespace. All apps share this one namespace;
// the tracker queue carries scheduled cycles and snapshots, the ops queue
// carries backfills and operator-triggered runs.
type Client struct {
	TClient   client.Client
	TSClient  client.ScheduleClient
	Namespace string
	HostPort  string
	logger    *zap.Logger

	// Task queues
	TrackerQueue string // "tracker"
	OpsQueue     string // "ops"

	// Schedule IDs
	FetchCycleScheduleID    string // "fetchcycle"
	DailySnapshotScheduleID string // "dailysnapshot"
}

// Health reports the Temporal connection status and the pollers on each queue.
type Health struct {
	ConnectionOK bool                      `json:"connection_ok"`
	TrackerQueue []*taskqueuepb.PollerInfo `json:"tracker_queue"`
	OpsQueue     []*taskqueuepb.PollerInfo `json:"ops_queue"`
}

// NewClient connects to the tracker namespace, retrying until the server
// answers a health check or five minutes pass. Temporal usually comes up
// after the apps in a fresh deployment, so the wait is normal.
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	host := utils.Env("TEMPORAL_HOSTPORT", "localhost:7233")
	ns := utils.Env("TEMPORAL_NAMESPACE", DefaultNamespace)
	logger.Info("Connecting to Temporal", zap.String("host", host), zap.String("namespace", ns))

	var tc client.Client
	err := retry.WithBackoff(connCtx, retry.DefaultConfig(), logger, "temporal_connection", func() error {
		dialed, err := client.DialContext(connCtx, client.Options{
			HostPort:  host,
			Namespace: ns,
			Logger:    NewZapAdapter(logger),
		})
		if err != nil {
			return err
		}
		if _, err = dialed.CheckHealth(connCtx, nil); err != nil {
			dialed.Close()
			return err
		}
		tc = dialed
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		TClient:                 tc,
		TSClient:                tc.ScheduleClient(),
		Namespace:               ns,
		HostPort:                host,
		logger:                  logger,
		TrackerQueue:            QueueTracker,
		OpsQueue:                QueueOps,
		FetchCycleScheduleID:    ScheduleFetchCycle,
		DailySnapshotScheduleID: ScheduleDailySnapshot,
	}, nil
}

// GetFetchCycleWorkflowID returns the workflow ID for a scheduled fetch cycle.
// e.g., "#ABC123" -> "fetch-cycle:#ABC123"
func (c *Client) GetFetchCycleWorkflowID(clanTag string) string {
	return fmt.Sprintf(WorkflowIDFetchCycle, clanTag)
}

// GetDailySnapshotWorkflowID returns the workflow ID for the daily snapshot of
// one UTC date. The fixed date keeps reruns of the same day idempotent.
func (c *Client) GetDailySnapshotWorkflowID(date time.Time) string {
	return fmt.Sprintf(WorkflowIDDailySnapshot, date.UTC().Format("2006-01-02"))
}

// GetBackfillWorkflowID returns a workflow ID for an operator-requested
// backfill. requestedAt distinguishes repeated requests for the same clan.
func (c *Client) GetBackfillWorkflowID(clanTag string, requestedAt time.Time) string {
	return fmt.Sprintf(WorkflowIDBackfill, clanTag, requestedAt.Unix())
}

// EnsureNamespace registers the namespace if it does not exist and waits for
// the registration to become visible, since Temporal applies it
// asynchronously.
func (c *Client) EnsureNamespace(ctx context.Context, retention time.Duration) error {
	nsClient, err := client.NewNamespaceClient(client.Options{
		HostPort: c.HostPort,
		Logger:   NewZapAdapter(c.logger),
	})
	if err != nil {
		return fmt.Errorf("failed to create namespace client: %w", err)
	}
	defer nsClient.Close()

	for {
		_, err = nsClient.Describe(ctx, c.Namespace)
		if err == nil {
			return nil
		}
		var notFound *serviceerror.NamespaceNotFound
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to describe namespace: %w", err)
		}

		regErr := nsClient.Register(ctx, &workflowservicepb.RegisterNamespaceRequest{
			Namespace:                        c.Namespace,
			WorkflowExecutionRetentionPeriod: durationpb.New(retention),
		})
		// A concurrent registration from another app is fine; keep polling
		// until Describe sees the namespace.
		var exists *serviceerror.NamespaceAlreadyExists
		if regErr != nil && !errors.As(regErr, &exists) {
			return fmt.Errorf("failed to register namespace: %w", regErr)
		}

		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// PauseSchedules pauses the fetch-cycle and daily-snapshot schedules.
// Used by the ops API when tracking must stop without tearing anything down.
func (c *Client) PauseSchedules(ctx context.Context, note string) error {
	return c.forEachSchedule(ctx, func(handle client.ScheduleHandle) error {
		return handle.Pause(ctx, client.SchedulePauseOptions{Note: note})
	})
}

// UnpauseSchedules resumes the fetch-cycle and daily-snapshot schedules.
func (c *Client) UnpauseSchedules(ctx context.Context, note string) error {
	return c.forEachSchedule(ctx, func(handle client.ScheduleHandle) error {
		return handle.Unpause(ctx, client.ScheduleUnpauseOptions{Note: note})
	})
}

// forEachSchedule applies fn to every tracker schedule, skipping schedules
// that do not exist yet.
func (c *Client) forEachSchedule(ctx context.Context, fn func(handle client.ScheduleHandle) error) error {
	var errs []error
	for _, id := range []string{c.FetchCycleScheduleID, c.DailySnapshotScheduleID} {
		err := fn(c.TSClient.GetHandle(ctx, id))
		var notFound *serviceerror.NotFound
		if err != nil && !errors.As(err, &notFound) {
			errs = append(errs, fmt.Errorf("schedule %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// GetQueueStats fetches queue statistics using the DescribeTaskQueueEnhanced API.
func (c *Client) GetQueueStats(ctx context.Context, queueName string) (pendingWorkflowTasks int64, pendingActivityTasks int64, pollerCount int, backlogAgeSeconds float64, err error) {
	desc, err := c.TClient.DescribeTaskQueueEnhanced(ctx, client.DescribeTaskQueueEnhancedOptions{
		TaskQueue: queueName,
		TaskQueueTypes: []client.TaskQueueType{
			client.TaskQueueTypeWorkflow,
			client.TaskQueueTypeActivity,
		},
		ReportPollers: true,
		ReportStats:   true,
	})
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("describe task queue enhanced failed: %w", err)
	}

	//nolint:staticcheck // VersionsInfo is deprecated upstream; this SDK has no replacement yet
	for _, versionInfo := range desc.VersionsInfo {
		for qtype, info := range versionInfo.TypesInfo {
			if qtype == client.TaskQueueTypeWorkflow {
				pollerCount += len(info.Pollers)
			}
			if info.Stats == nil {
				continue
			}
			switch qtype {
			case client.TaskQueueTypeWorkflow:
				pendingWorkflowTasks += info.Stats.ApproximateBacklogCount
			case client.TaskQueueTypeActivity:
				pendingActivityTasks += info.Stats.ApproximateBacklogCount
			}
			if age := info.Stats.ApproximateBacklogAge.Seconds(); age > backlogAgeSeconds {
				backlogAgeSeconds = age
			}
		}
	}

	return pendingWorkflowTasks, pendingActivityTasks, pollerCount, backlogAgeSeconds, nil
}

// Health reports whether the server answers and who is polling each queue.
func (c *Client) Health(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	var h Health
	if _, err := c.TClient.CheckHealth(ctx, nil); err == nil {
		h.ConnectionOK = true
	}

	svc := c.TClient.WorkflowService()
	if svc == nil {
		return h
	}
	queues := []struct {
		name string
		dst  *[]*taskqueuepb.PollerInfo
	}{
		{c.TrackerQueue, &h.TrackerQueue},
		{c.OpsQueue, &h.OpsQueue},
	}
	for _, q := range queues {
		rep, err := svc.DescribeTaskQueue(ctx, &workflowservicepb.DescribeTaskQueueRequest{
			Namespace:     c.Namespace,
			TaskQueue:     &taskqueuepb.TaskQueue{Name: q.name},
			TaskQueueType: enums.TASK_QUEUE_TYPE_WORKFLOW,
		})
		if err == nil {
			*q.dst = rep.GetPollers()
		}
	}
	return h
}

// Close closes the underlying Temporal client connection.
func (c *Client) Close() {
	if c.TClient != nil {
		c.TClient.Close()
	}
}
