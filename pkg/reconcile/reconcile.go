// Package reconcile compares an incoming river-race snapshot against the last
// persisted state and decides what to write: the transition kind, the period
// every write belongs to, and the per-participant daily deltas. It is pure —
// all prior state is injected, nothing is read from ambient storage — so
// cycles are deterministic and testable with synthetic state.
package reconcile

import (
	"fmt"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
)

// PriorState is the reconciliation-relevant slice of the persisted state
// record: the last period observed and its colosseum flag. Nil means no
// record exists yet (first run).
type PriorState struct {
	Period      types.PeriodKey
	IsColosseum bool
}

// Known holds the stored counters of one participant for the CURRENT stored
// period. Consulted on continuation to compute deltas and detect no-change
// replays.
type Known struct {
	Name         string
	Fame         uint64
	RepairPoints uint64
	BoatAttacks  uint32
	DecksUsed    uint32
}

// ParticipantFact is one participant's resolved counters for the period the
// snapshot belongs to. Counters are absolute values; DecksUsedToday is the
// derived daily attribution.
type ParticipantFact struct {
	types.Participant
	DecksUsedToday uint32
	// NewInPeriod marks a participant with no stored record for this period
	// (first run, period boundary, or a mid-period joiner).
	NewInPeriod bool
	// Unchanged marks a participant whose stored record already equals the
	// snapshot. The upsert skips these, so replaying an identical snapshot
	// leaves every stored record byte-identical, timestamps included.
	Unchanged bool
}

// Result is the full outcome of one reconciliation, computed before any
// write begins.
type Result struct {
	Kind         types.TransitionKind
	Period       types.PeriodKey
	IsColosseum  bool
	PeriodType   types.PeriodType
	ClanScore    uint64
	Participants []ParticipantFact
	Anomalies    []types.Anomaly
}

// Changed returns the facts the upsert must write.
func (r *Result) Changed() []ParticipantFact {
	out := make([]ParticipantFact, 0, len(r.Participants))
	for _, f := range r.Participants {
		if !f.Unchanged {
			out = append(out, f)
		}
	}
	return out
}

// Reconcile classifies snap against prior and computes per-participant facts.
//
// Transition table, comparing (season, section):
//   - prior == nil            -> INITIAL
//   - equal                   -> CONTINUATION
//   - snapshot strictly newer -> BOUNDARY (colosseum flag from the snapshot)
//   - snapshot strictly older -> STALE: returns (*types.StaleSnapshotError)
//     and no result; stored state must not be overwritten with older data.
//
// known maps player tag -> stored counters for the CURRENT stored period. It
// is consulted only on CONTINUATION; participants missing from it are treated
// as mid-period joiners and get baseline attribution.
func Reconcile(snap *types.Snapshot, prior *PriorState, known map[string]Known) (*Result, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot")
	}

	res := &Result{
		Period:      snap.Period,
		IsColosseum: snap.IsColosseum,
		PeriodType:  snap.PeriodType,
		ClanScore:   snap.ClanScore,
	}

	switch {
	case prior == nil:
		res.Kind = types.TransitionInitial
	case snap.Period.Compare(prior.Period) == 0:
		res.Kind = types.TransitionContinuation
	case snap.Period.After(prior.Period):
		res.Kind = types.TransitionBoundary
	default:
		return nil, &types.StaleSnapshotError{Stored: prior.Period, Incoming: snap.Period}
	}

	res.Participants = make([]ParticipantFact, 0, len(snap.Participants))
	for _, p := range snap.Participants {
		fact := ParticipantFact{Participant: p}

		stored, ok := known[p.Tag]
		if res.Kind == types.TransitionContinuation && ok {
			fact.DecksUsedToday = clampDelta(p.Tag, p.DecksUsed, stored.DecksUsed, &res.Anomalies)
			fact.Unchanged = p.Name == stored.Name &&
				p.Fame == stored.Fame &&
				p.RepairPoints == stored.RepairPoints &&
				p.BoatAttacks == stored.BoatAttacks &&
				p.DecksUsed == stored.DecksUsed
		} else {
			// First observation of this participant within this period: no
			// prior-in-period value exists, so the cumulative value is the
			// baseline.
			fact.DecksUsedToday = p.DecksUsed
			fact.NewInPeriod = true
		}

		res.Participants = append(res.Participants, fact)
	}

	return res, nil
}

// clampDelta computes max(0, current-stored). Cumulative counters are
// monotonic within a period; a decrease means upstream data went backwards,
// which is recorded as an anomaly and clamped instead of crashing the cycle.
func clampDelta(tag string, current, stored uint32, anomalies *[]types.Anomaly) uint32 {
	if current < stored {
		*anomalies = append(*anomalies, types.Anomaly{
			PlayerTag: tag,
			Reason:    fmt.Sprintf("decks_used decreased from %d to %d", stored, current),
		})
		return 0
	}
	return current - stored
}
