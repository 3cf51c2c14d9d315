package refresh

import (
	"sync"
	"time"

	"repscore-engine/internal/domain"
)

// Tracker holds the UnitState for every WorkUnit of the current run,
// in scheduling order. The engine's worker is the only writer; HTTP
// handlers read concurrently, so reads return copies under an RWMutex.
// Terminal states are final: only an explicit Requeue (the retry
// actions) moves a failed unit back to queued.
type Tracker struct {
	mu    sync.RWMutex
	order []domain.UnitKey
	units map[domain.UnitKey]*domain.UnitState
}

func NewTracker(keys []domain.UnitKey) *Tracker {
	t := &Tracker{
		order: make([]domain.UnitKey, 0, len(keys)),
		units: make(map[domain.UnitKey]*domain.UnitState, len(keys)),
	}
	for _, k := range keys {
		if _, dup := t.units[k]; dup {
			continue
		}
		t.order = append(t.order, k)
		t.units[k] = &domain.UnitState{Key: k, Status: domain.UnitQueued}
	}
	return t
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

func (t *Tracker) Get(k domain.UnitKey) (domain.UnitState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.units[k]
	if !ok {
		return domain.UnitState{}, false
	}
	return *u, true
}

// All returns unit snapshots in scheduling order.
func (t *Tracker) All() []domain.UnitState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.UnitState, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, *t.units[k])
	}
	return out
}

func (t *Tracker) Summary() domain.RunSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var s domain.RunSummary
	s.Total = len(t.order)
	for _, u := range t.units {
		switch u.Status {
		case domain.UnitComplete:
			s.Complete++
		case domain.UnitNotListed:
			s.NotListed++
		case domain.UnitFailed:
			s.Failed++
		case domain.UnitInProgress:
			s.InProgress++
		default:
			s.Queued++
		}
	}
	return s
}

// FailedInOrder returns the keys of failed units in scheduling order,
// which under the sequential worker is also the order they failed in.
func (t *Tracker) FailedInOrder() []domain.UnitKey {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []domain.UnitKey
	for _, k := range t.order {
		if t.units[k].Status == domain.UnitFailed {
			out = append(out, k)
		}
	}
	return out
}

func (t *Tracker) MarkInProgress(k domain.UnitKey, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.units[k]
	if !ok || u.Status != domain.UnitQueued {
		return false
	}
	u.Status = domain.UnitInProgress
	u.StartedAt = &at
	return true
}

func (t *Tracker) MarkComplete(k domain.UnitKey) bool {
	return t.settle(k, domain.UnitComplete, "", "")
}

func (t *Tracker) MarkNotListed(k domain.UnitKey) bool {
	return t.settle(k, domain.UnitNotListed, "", "")
}

func (t *Tracker) MarkFailed(k domain.UnitKey, class domain.ErrorClass, msg string) bool {
	return t.settle(k, domain.UnitFailed, class, msg)
}

func (t *Tracker) settle(k domain.UnitKey, st domain.UnitStatus, class domain.ErrorClass, msg string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.units[k]
	if !ok || u.Status != domain.UnitInProgress {
		return false
	}
	u.Status = st
	u.ErrorClass = class
	u.ErrorMsg = msg
	return true
}

// BumpRetry increments the unit's retry counter and returns the new
// count. Called while the unit is in progress, between attempts.
func (t *Tracker) BumpRetry(k domain.UnitKey) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.units[k]
	if !ok {
		return 0
	}
	u.RetryCount++
	return u.RetryCount
}

// Requeue moves a failed unit back to queued, clearing its error.
// Requeueing any other state is refused: terminal states may only be
// reopened by an explicit retry of a failure.
func (t *Tracker) Requeue(k domain.UnitKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.units[k]
	if !ok || u.Status != domain.UnitFailed {
		return false
	}
	u.Status = domain.UnitQueued
	u.ErrorClass = ""
	u.ErrorMsg = ""
	u.StartedAt = nil
	return true
}

// Reopen moves a settled (or still queued) unit back to queued for a
// manual single-unit re-process. Unlike Requeue it accepts any state
// except in_progress and keeps the cumulative retry count.
func (t *Tracker) Reopen(k domain.UnitKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.units[k]
	if !ok || u.Status == domain.UnitInProgress {
		return false
	}
	u.Status = domain.UnitQueued
	u.ErrorClass = ""
	u.ErrorMsg = ""
	u.StartedAt = nil
	return true
}
