package types

import (
	"time"
)

// Event type tags published to Redis after the corresponding write completed,
// so consumers can rely on the data being queryable when the event arrives.
const (
	EventCycleCompleted    = "cycle.completed"
	EventBoundary          = "boundary"
	EventAnomaly           = "anomaly"
	EventBackfillCompleted = "backfill.completed"
)

// CycleCompletedEvent is published after every non-skipped fetch cycle.
type CycleCompletedEvent struct {
	Event     string      `json:"event"` // Always "cycle.completed"
	ClanTag   string      `json:"clanTag"`
	Report    CycleReport `json:"report"`
	Timestamp time.Time   `json:"timestamp"`
}

// BoundaryEvent is published when a cycle detects a new period.
type BoundaryEvent struct {
	Event       string    `json:"event"` // Always "boundary"
	ClanTag     string    `json:"clanTag"`
	From        PeriodKey `json:"from"`
	To          PeriodKey `json:"to"`
	IsColosseum bool      `json:"isColosseum"`
	Timestamp   time.Time `json:"timestamp"`
}

// AnomalyEvent is published for each anomaly a cycle recorded.
type AnomalyEvent struct {
	Event     string    `json:"event"` // Always "anomaly"
	ClanTag   string    `json:"clanTag"`
	Anomaly   Anomaly   `json:"anomaly"`
	Timestamp time.Time `json:"timestamp"`
}

// BackfillCompletedEvent is published after a backfill run finishes.
type BackfillCompletedEvent struct {
	Event     string         `json:"event"` // Always "backfill.completed"
	ClanTag   string         `json:"clanTag"`
	Report    BackfillReport `json:"report"`
	Timestamp time.Time      `json:"timestamp"`
}

// GetChannel returns the Redis Pub/Sub channel name for a clan and event type.
// Channel format: riverrace:{clanTag}:{eventType}
func GetChannel(clanTag, eventType string) string {
	return "riverrace:" + clanTag + ":" + eventType
}

// GetCycleCompletedChannel returns the channel for cycle.completed events.
func GetCycleCompletedChannel(clanTag string) string {
	return GetChannel(clanTag, EventCycleCompleted)
}

// GetBoundaryChannel returns the channel for boundary events.
func GetBoundaryChannel(clanTag string) string {
	return GetChannel(clanTag, EventBoundary)
}

// GetAnomalyChannel returns the channel for anomaly events.
func GetAnomalyChannel(clanTag string) string {
	return GetChannel(clanTag, EventAnomaly)
}

// GetBackfillCompletedChannel returns the channel for backfill.completed events.
func GetBackfillCompletedChannel(clanTag string) string {
	return GetChannel(clanTag, EventBackfillCompleted)
}

// EventsStream is the Redis stream mirroring all published events, capped so
// late consumers can replay a recent window.
func EventsStream(clanTag string) string {
	return "riverrace:" + clanTag + ":events"
}
