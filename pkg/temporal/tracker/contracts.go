// Package tracker holds the workflow names shared between the worker that
// registers them and the apps that trigger them by string.
package tracker

// Workflow names for Temporal
const (
	FetchCycleWorkflowName    = "FetchCycleWorkflow"
	DailySnapshotWorkflowName = "DailySnapshotWorkflow"
	BackfillWorkflowName      = "BackfillWorkflow"
)
