package domain

import "time"

// UnitKey identifies one WorkUnit: a (property, platform) pair.
type UnitKey struct {
	PropertyID string
	Platform   Platform
}

type UnitStatus string

const (
	UnitQueued     UnitStatus = "queued"
	UnitInProgress UnitStatus = "in_progress"
	UnitComplete   UnitStatus = "complete"
	UnitNotListed  UnitStatus = "not_listed"
	UnitFailed     UnitStatus = "failed"
)

// Terminal reports whether the status ends a unit's run. Terminal
// states are final unless an explicit retry re-queues the unit.
func (s UnitStatus) Terminal() bool {
	return s == UnitComplete || s == UnitNotListed || s == UnitFailed
}

type UnitState struct {
	Key        UnitKey
	Status     UnitStatus
	ErrorClass ErrorClass // empty unless Status is failed
	ErrorMsg   string
	StartedAt  *time.Time
	RetryCount int
}

type RunPhase string

const (
	PhaseIdle        RunPhase = "idle"
	PhaseNormalizing RunPhase = "normalizing"
	PhaseResolving   RunPhase = "resolving"
	PhaseFetching    RunPhase = "fetching"
	PhaseComplete    RunPhase = "complete"
)

var phaseRank = map[RunPhase]int{
	PhaseIdle:        0,
	PhaseNormalizing: 1,
	PhaseResolving:   2,
	PhaseFetching:    3,
	PhaseComplete:    4,
}

// Before reports phase ordering; phases only ever advance within a run.
func (p RunPhase) Before(q RunPhase) bool { return phaseRank[p] < phaseRank[q] }

type RunSummary struct {
	Complete   int
	NotListed  int
	Failed     int
	Queued     int
	InProgress int
	Total      int
}

// Settled counts units in a terminal state.
func (s RunSummary) Settled() int { return s.Complete + s.NotListed + s.Failed }
