package types

import (
	"time"
)

// DecksPerDay is the per-member war deck allowance on a single war day.
// Used to derive the minimum expected deck usage for inactivity queries.
const DecksPerDay = 4

// PeriodType tags what phase of the river race a snapshot was taken in.
type PeriodType string

const (
	PeriodTraining  PeriodType = "training"
	PeriodWarDay    PeriodType = "warDay"
	PeriodColosseum PeriodType = "colosseum"
	PeriodOther     PeriodType = "other"
)

// NormalizePeriodType maps the raw API period tag onto the known set.
// Unknown values collapse to PeriodOther instead of propagating untyped data.
func NormalizePeriodType(raw string) PeriodType {
	switch PeriodType(raw) {
	case PeriodTraining, PeriodWarDay, PeriodColosseum:
		return PeriodType(raw)
	default:
		return PeriodOther
	}
}

// PeriodKey identifies one river-race period: a (season, section) pair.
// Seasons increase monotonically; sections run 0..N within a season and
// reset on season rollover.
type PeriodKey struct {
	SeasonID     uint32 `json:"seasonId"`
	SectionIndex uint32 `json:"sectionIndex"`
}

// Compare orders two period keys lexicographically by (season, section).
// Returns -1 when k is older than other, 0 when equal, 1 when newer.
func (k PeriodKey) Compare(other PeriodKey) int {
	switch {
	case k.SeasonID < other.SeasonID:
		return -1
	case k.SeasonID > other.SeasonID:
		return 1
	case k.SectionIndex < other.SectionIndex:
		return -1
	case k.SectionIndex > other.SectionIndex:
		return 1
	default:
		return 0
	}
}

// After reports whether k is strictly newer than other.
func (k PeriodKey) After(other PeriodKey) bool { return k.Compare(other) > 0 }

// Before reports whether k is strictly older than other.
func (k PeriodKey) Before(other PeriodKey) bool { return k.Compare(other) < 0 }

// TransitionKind classifies how an incoming snapshot relates to the last
// persisted state record.
type TransitionKind string

const (
	// TransitionInitial is the first observation ever (no prior state record).
	TransitionInitial TransitionKind = "initial"
	// TransitionContinuation is another observation of the same period.
	TransitionContinuation TransitionKind = "continuation"
	// TransitionBoundary means a new period has begun since the last observation.
	TransitionBoundary TransitionKind = "boundary"
	// TransitionStale means the snapshot is older than the stored period and is discarded.
	TransitionStale TransitionKind = "stale"
)

// Participant is one clan member's cumulative counters inside a period,
// as observed in a snapshot. All counters are cumulative for the period;
// they only grow until the period advances.
type Participant struct {
	Tag          string `json:"tag"`
	Name         string `json:"name"`
	Fame         uint64 `json:"fame"`
	RepairPoints uint64 `json:"repairPoints"`
	BoatAttacks  uint32 `json:"boatAttacks"`
	DecksUsed    uint32 `json:"decksUsed"`
}

// Standing is one clan's position in the race standings of a snapshot.
// Rank is 0 when the upstream data carried no explicit rank.
type Standing struct {
	Rank uint8  `json:"rank"`
	Tag  string `json:"tag"`
	Name string `json:"name"`
	Fame uint64 `json:"fame"`
}

// Snapshot is the strictly typed observation of the clan's current river
// race, produced at the ingestion boundary. Reconciliation never sees raw
// API payloads, only this shape.
type Snapshot struct {
	ClanTag      string        `json:"clanTag"`
	Period       PeriodKey     `json:"period"`
	IsColosseum  bool          `json:"isColosseum"`
	PeriodType   PeriodType    `json:"periodType"`
	ClanScore    uint64        `json:"clanScore"`
	Participants []Participant `json:"participants"`
	Standings    []Standing    `json:"standings"`
	ObservedAt   time.Time     `json:"observedAt"`
}

// Member is one roster entry from the clan members endpoint.
type Member struct {
	Tag               string    `json:"tag"`
	Name              string    `json:"name"`
	Role              string    `json:"role"`
	ExpLevel          uint8     `json:"expLevel"`
	Trophies          uint32    `json:"trophies"`
	ClanRank          uint16    `json:"clanRank"`
	Donations         uint32    `json:"donations"`
	DonationsReceived uint32    `json:"donationsReceived"`
	LastSeen          time.Time `json:"lastSeen"`
}

// Anomaly records one non-fatal data inconsistency met during a cycle,
// e.g. a decreasing cumulative counter or a malformed participant entry.
type Anomaly struct {
	PlayerTag string `json:"playerTag,omitempty"`
	Reason    string `json:"reason"`
}

// FetchCycleInput is the input for the FetchCycleWorkflow.
type FetchCycleInput struct {
	ClanTag string `json:"clanTag"`
}

// DailySnapshotInput is the input for the DailySnapshotWorkflow.
// Date is "2006-01-02" in UTC; empty means today.
type DailySnapshotInput struct {
	ClanTag string `json:"clanTag"`
	Date    string `json:"date"`
}

// BackfillInput is the input for the BackfillWorkflow.
type BackfillInput struct {
	ClanTag string `json:"clanTag"`
	Weeks   int    `json:"weeks"`
}

// CycleReport summarizes one fetch-reconcile-persist cycle.
type CycleReport struct {
	Transition          TransitionKind `json:"transition"`
	Period              PeriodKey      `json:"period"`
	ParticipantsUpdated int            `json:"participantsUpdated"`
	Anomalies           []Anomaly      `json:"anomalies,omitempty"`
	StandingRank        uint8          `json:"standingRank,omitempty"`
	Skipped             bool           `json:"skipped"`
}

// SnapshotReport summarizes one daily snapshot run.
type SnapshotReport struct {
	Date               string    `json:"date"`
	Period             PeriodKey `json:"period"`
	ParticipantsCopied int       `json:"participantsCopied"`
	MembersRecorded    int       `json:"membersRecorded"`
	// Orphaned counts current-period participation records whose player no
	// longer appears on the roster. They are flagged here, never deleted.
	Orphaned int `json:"orphaned"`
}

// BackfillReport summarizes one historical replay run.
type BackfillReport struct {
	PeriodsFilled  int         `json:"periodsFilled"`
	PeriodsFailed  int         `json:"periodsFailed"`
	FailedPeriods  []PeriodKey `json:"failedPeriods,omitempty"`
	PlayersWritten int         `json:"playersWritten"`
}

// InactivePlayer is one row of the inactivity query result.
type InactivePlayer struct {
	Tag       string `json:"tag"`
	Name      string `json:"name"`
	DecksUsed uint32 `json:"decksUsed"`
	Fame      uint64 `json:"fame"`
}
