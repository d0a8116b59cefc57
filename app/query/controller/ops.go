package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/temporal/tracker"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
)

// startOpsWorkflow runs a workflow on the ops queue. A concurrent duplicate
// of the same workflow ID is not a failure: the work the caller asked for is
// already in flight.
func (c *Controller) startOpsWorkflow(ctx context.Context, workflowID, workflowName string, input interface{}) (map[string]string, error) {
	options := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: c.App.TemporalClient.OpsQueue,
	}

	run, err := c.App.TemporalClient.TClient.ExecuteWorkflow(ctx, options, workflowName, input)
	if err != nil {
		var already *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &already) {
			return map[string]string{"status": "already_running", "workflow_id": workflowID}, nil
		}
		return nil, err
	}

	return map[string]string{
		"status":      "started",
		"workflow_id": run.GetID(),
		"run_id":      run.GetRunID(),
	}, nil
}

// HandleTriggerFetchCycle runs one fetch cycle outside the schedule.
func (c *Controller) HandleTriggerFetchCycle(w http.ResponseWriter, r *http.Request) {
	user := c.currentUser(r)

	result, err := c.startOpsWorkflow(r.Context(),
		c.App.TemporalClient.GetFetchCycleWorkflowID(c.App.ClanTag),
		tracker.FetchCycleWorkflowName,
		types.FetchCycleInput{ClanTag: c.App.ClanTag})
	if err != nil {
		c.App.Logger.Error("fetch cycle trigger failed", zap.String("user", user), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	c.App.Logger.Info("fetch cycle triggered", zap.String("user", user), zap.String("status", result["status"]))
	writeJSON(w, http.StatusOK, result)
}

// HandleTriggerDailySnapshot runs the daily snapshot, optionally for a past
// date passed as {"date": "YYYY-MM-DD"}.
func (c *Controller) HandleTriggerDailySnapshot(w http.ResponseWriter, r *http.Request) {
	user := c.currentUser(r)

	var in struct {
		Date string `json:"date"`
	}
	// An empty body means "today"
	_ = json.NewDecoder(r.Body).Decode(&in)

	date := time.Now().UTC()
	if in.Date != "" {
		parsed, err := time.Parse("2006-01-02", in.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	result, err := c.startOpsWorkflow(r.Context(),
		c.App.TemporalClient.GetDailySnapshotWorkflowID(date),
		tracker.DailySnapshotWorkflowName,
		types.DailySnapshotInput{ClanTag: c.App.ClanTag, Date: in.Date})
	if err != nil {
		c.App.Logger.Error("daily snapshot trigger failed", zap.String("user", user), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	c.App.Logger.Info("daily snapshot triggered",
		zap.String("user", user),
		zap.String("date", date.Format("2006-01-02")),
		zap.String("status", result["status"]))
	writeJSON(w, http.StatusOK, result)
}

// HandleTriggerBackfill replays finished weeks from the public race log into
// the gaps of the stored history.
func (c *Controller) HandleTriggerBackfill(w http.ResponseWriter, r *http.Request) {
	user := c.currentUser(r)

	weeks := 0 // 0 lets the workflow use its default window
	if v := r.URL.Query().Get("weeks"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 52 {
			writeError(w, http.StatusBadRequest, "invalid weeks, must be 1..52")
			return
		}
		weeks = n
	}

	result, err := c.startOpsWorkflow(r.Context(),
		c.App.TemporalClient.GetBackfillWorkflowID(c.App.ClanTag, time.Now()),
		tracker.BackfillWorkflowName,
		types.BackfillInput{ClanTag: c.App.ClanTag, Weeks: weeks})
	if err != nil {
		c.App.Logger.Error("backfill trigger failed", zap.String("user", user), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	c.App.Logger.Info("backfill triggered",
		zap.String("user", user),
		zap.Int("weeks", weeks),
		zap.String("status", result["status"]))
	writeJSON(w, http.StatusOK, result)
}

// HandlePauseSchedules pauses both tracking schedules without tearing
// anything down.
func (c *Controller) HandlePauseSchedules(w http.ResponseWriter, r *http.Request) {
	user := c.currentUser(r)

	note := fmt.Sprintf("Paused via ops API by %s at %s", user, time.Now().Format(time.RFC3339))
	if err := c.App.TemporalClient.PauseSchedules(r.Context(), note); err != nil {
		c.App.Logger.Error("pause schedules failed", zap.String("user", user), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	c.App.Logger.Info("schedules paused", zap.String("user", user))
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}

// HandleResumeSchedules resumes both tracking schedules.
func (c *Controller) HandleResumeSchedules(w http.ResponseWriter, r *http.Request) {
	user := c.currentUser(r)

	note := fmt.Sprintf("Resumed via ops API by %s at %s", user, time.Now().Format(time.RFC3339))
	if err := c.App.TemporalClient.UnpauseSchedules(r.Context(), note); err != nil {
		c.App.Logger.Error("resume schedules failed", zap.String("user", user), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	c.App.Logger.Info("schedules resumed", zap.String("user", user))
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}

// HandleStorageHealth reports per-table storage footprint so an operator can
// see whether merges are keeping up with write volume.
func (c *Controller) HandleStorageHealth(w http.ResponseWriter, r *http.Request) {
	health, err := c.App.WarDB.TableHealth(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tables": health})
}

// HandleOptimizeTables forces merges across the war tables, typically after
// a wide backfill stacked many row versions. ?final=1 also collapses parts
// that already merged once.
func (c *Controller) HandleOptimizeTables(w http.ResponseWriter, r *http.Request) {
	user := c.currentUser(r)
	final := r.URL.Query().Get("final") == "1"

	if err := c.App.WarDB.OptimizeTables(r.Context(), final); err != nil {
		c.App.Logger.Error("optimize tables failed", zap.String("user", user), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	c.App.Logger.Info("tables optimized", zap.String("user", user), zap.Bool("final", final))
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}

type queueStats struct {
	PendingWorkflowTasks int64   `json:"pending_workflow_tasks"`
	PendingActivityTasks int64   `json:"pending_activity_tasks"`
	Pollers              int     `json:"pollers"`
	BacklogAgeSeconds    float64 `json:"backlog_age_seconds"`
}

// HandleQueueStats reports backlog and poller counts for both task queues.
func (c *Controller) HandleQueueStats(w http.ResponseWriter, r *http.Request) {
	out := map[string]queueStats{}
	for _, queue := range []string{c.App.TemporalClient.TrackerQueue, c.App.TemporalClient.OpsQueue} {
		wf, act, pollers, age, err := c.App.TemporalClient.GetQueueStats(r.Context(), queue)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out[queue] = queueStats{
			PendingWorkflowTasks: wf,
			PendingActivityTasks: act,
			Pollers:              pollers,
			BacklogAgeSeconds:    age,
		}
	}

	writeJSON(w, http.StatusOK, out)
}
