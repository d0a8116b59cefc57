package types

// Intermediate payloads passed between the activities of one workflow run.
// Workflow inputs and the public reports live in types.go; these shapes only
// exist so each activity stays single-purpose while the workflow forwards
// context (snapshot, transition, prior period) down the chain.

// FetchOutput carries the decoded snapshot plus anomalies raised while
// decoding it (malformed participants dropped at the boundary).
type FetchOutput struct {
	Snapshot  *Snapshot `json:"snapshot"`
	Anomalies []Anomaly `json:"anomalies,omitempty"`
}

// ReconcileInput feeds the reconcile-and-persist activity.
type ReconcileInput struct {
	Snapshot *Snapshot `json:"snapshot"`
	// FetchAnomalies are decode-time anomalies, merged into the cycle report
	// alongside anything reconciliation finds.
	FetchAnomalies []Anomaly `json:"fetchAnomalies,omitempty"`
}

// ReconcileOutput is the persistence result: the public report plus the
// transition context event publishing needs.
type ReconcileOutput struct {
	Report CycleReport `json:"report"`
	// PreviousPeriod is set on boundary transitions only.
	PreviousPeriod *PeriodKey `json:"previousPeriod,omitempty"`
	IsColosseum    bool       `json:"isColosseum"`
}

// StandingInput feeds the standings capture activity.
type StandingInput struct {
	Snapshot *Snapshot `json:"snapshot"`
}

// StandingOutput reports the captured rank. Captured is false when the
// snapshot carried no standings or the clan was absent from them.
type StandingOutput struct {
	Rank     uint8 `json:"rank"`
	Captured bool  `json:"captured"`
}

// PublishCycleInput feeds the cycle event publishing activity.
type PublishCycleInput struct {
	ClanTag        string      `json:"clanTag"`
	Report         CycleReport `json:"report"`
	PreviousPeriod *PeriodKey  `json:"previousPeriod,omitempty"`
	IsColosseum    bool        `json:"isColosseum"`
}

// PublishBackfillInput feeds the backfill event publishing activity.
type PublishBackfillInput struct {
	ClanTag string         `json:"clanTag"`
	Report  BackfillReport `json:"report"`
}
