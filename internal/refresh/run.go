package refresh

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"repscore-engine/internal/domain"
	"repscore-engine/internal/events"
)

// run is the bulk worker: normalize -> resolve -> fetch -> complete.
// Cancellation is checked between units, never inside a provider call.
func (e *Engine) run(ctx context.Context) {
	defer func() { e.finishRun(ctx.Err() != nil) }()

	e.setPhase(domain.PhaseNormalizing)
	e.normalizeProps()
	if ctx.Err() != nil {
		return
	}

	e.setPhase(domain.PhaseResolving)
	e.resolveAll(ctx)
	if ctx.Err() != nil {
		return
	}

	e.setPhase(domain.PhaseFetching)
	e.fetchAll(ctx)
}

// runRetry replays previously failed units in their original relative
// order through the same per-unit path as a bulk run.
func (e *Engine) runRetry(ctx context.Context, keys []domain.UnitKey) {
	defer func() { e.finishRun(ctx.Err() != nil) }()

	e.setPhase(domain.PhaseFetching)
	for _, k := range keys {
		// transient resolution outcomes get a fresh attempt
		if out, ok := e.identities[k]; ok && out.err != nil && domain.ClassOf(out.err).Retryable() {
			delete(e.identities, k)
		}
	}
	for _, k := range keys {
		if ctx.Err() != nil {
			return
		}
		prop, ok := e.propByID(k.PropertyID)
		if !ok {
			continue
		}
		e.setCurrent(k.Platform)
		if !e.processUnit(ctx, prop, k.Platform) {
			return
		}
	}
}

// runSingle processes one re-queued unit. It leaves the phase machine
// and run history untouched: a row-level retry is not a run.
func (e *Engine) runSingle(ctx context.Context, prop domain.Property, pl domain.Platform) {
	defer func() {
		e.mu.Lock()
		e.running = false
		done := e.done
		e.mu.Unlock()
		close(done)
	}()

	key := domain.UnitKey{PropertyID: prop.ID, Platform: pl}
	if out, ok := e.identities[key]; ok && out.err != nil && domain.ClassOf(out.err).Retryable() {
		delete(e.identities, key)
	}
	e.processUnit(ctx, prop, pl)
}

func (e *Engine) normalizeProps() {
	for i := range e.props {
		e.props[i] = normalizeProperty(e.props[i])
	}
}

// resolveAll warms the identity map for every OTA unit before any OTA
// fetch happens. Google never waits on resolution. Live lookups are
// paced like any other remote call.
func (e *Engine) resolveAll(ctx context.Context) {
	if e.resolver == nil {
		return
	}
	for _, pl := range e.platforms {
		if !pl.RequiresResolution() {
			continue
		}
		for i := range e.props {
			if ctx.Err() != nil {
				return
			}
			p := e.props[i]
			if p.Alias(pl) != "" {
				continue
			}
			key := domain.UnitKey{PropertyID: p.ID, Platform: pl}
			if id, ok, cerr := e.resolver.Cached(ctx, p, pl); ok {
				e.identities[key] = identityOutcome{id: id, err: cerr}
				continue
			}
			if err := e.pacer.Wait(ctx); err != nil {
				return
			}
			id, err := e.resolver.Resolve(context.Background(), p, pl)
			if err != nil {
				log.Printf("[engine] resolve %s/%s: %v", p.ID, pl, err)
			}
			e.identities[key] = identityOutcome{id: id, err: err}
		}
	}
}

// fetchAll is the fetch phase: platforms in fixed major order,
// properties in their given order.
func (e *Engine) fetchAll(ctx context.Context) {
	for _, pl := range e.platforms {
		e.setCurrent(pl)
		for i := range e.props {
			if ctx.Err() != nil {
				return
			}
			if !e.processUnit(ctx, e.props[i], pl) {
				return
			}
		}
	}
}

// processUnit drives one WorkUnit to a terminal state. It returns
// false only when cancellation fired before the unit was dispatched,
// leaving it queued.
func (e *Engine) processUnit(ctx context.Context, prop domain.Property, pl domain.Platform) bool {
	key := domain.UnitKey{PropertyID: prop.ID, Platform: pl}

	id, err := e.identityFor(prop, pl)
	var prov Provider
	if err == nil {
		if prov = e.providers[pl]; prov == nil {
			err = domain.Classedf(domain.ClassConfig, pl, "no provider configured")
		}
	}
	if err != nil {
		// nothing remote to do: settle without consuming pacing
		e.tracker.MarkInProgress(key, time.Now().UTC())
		e.settleUnit(key, domain.RatingResult{}, err)
		return true
	}

	if werr := e.pacer.Wait(ctx); werr != nil {
		return false
	}
	e.tracker.MarkInProgress(key, time.Now().UTC())
	e.publish(events.TypeUnitStarted, map[string]any{"property_id": key.PropertyID, "platform": key.Platform})

	res, ferr := e.fetchWithRetry(key, prov, id)
	e.settleUnit(key, res, ferr)
	return true
}

// fetchWithRetry runs the provider call and its internal retries. A
// dispatched unit always settles: cancellation never interrupts an
// attempt or abandons a pending retry.
func (e *Engine) fetchWithRetry(key domain.UnitKey, prov Provider, id domain.Identity) (domain.RatingResult, error) {
	attempt := 0
	for {
		res, err := prov.Fetch(context.Background(), id)
		if err == nil {
			return res, nil
		}
		class := domain.ClassOf(err)
		if !e.retry.ShouldRetry(key.Platform, attempt, class) {
			return domain.RatingResult{}, err
		}
		attempt++
		n := e.tracker.BumpRetry(key)
		e.publish(events.TypeRetryStarted, map[string]any{"property_id": key.PropertyID, "platform": key.Platform, "attempt": n})
		log.Printf("[engine] retrying %s/%s in %s (%s)", key.PropertyID, key.Platform, e.retry.Backoff(attempt), class)
		time.Sleep(e.retry.Backoff(attempt))
		_ = e.pacer.Wait(context.Background())
	}
}

// settleUnit classifies the outcome, persists the observation, and
// moves the unit to its terminal state.
func (e *Engine) settleUnit(key domain.UnitKey, res domain.RatingResult, err error) {
	var status domain.UnitStatus
	var class domain.ErrorClass
	var msg string

	switch {
	case err == nil:
		if perr := e.persist(key, res, domain.SnapFound); perr != nil {
			status, class, msg = domain.UnitFailed, domain.ClassSave, perr.Error()
		} else {
			status = domain.UnitComplete
		}
	case domain.ClassOf(err) == domain.ClassNotListed:
		// confirmed absence is a processed unit, not a failure
		if perr := e.persist(key, domain.RatingResult{}, domain.SnapNotListed); perr != nil {
			status, class, msg = domain.UnitFailed, domain.ClassSave, perr.Error()
		} else {
			status = domain.UnitNotListed
		}
	default:
		status, class, msg = domain.UnitFailed, domain.ClassOf(err), err.Error()
	}

	switch status {
	case domain.UnitComplete:
		e.tracker.MarkComplete(key)
	case domain.UnitNotListed:
		e.tracker.MarkNotListed(key)
	default:
		e.tracker.MarkFailed(key, class, msg)
		log.Printf("[engine] %s/%s failed: %s: %s", key.PropertyID, key.Platform, class, msg)
	}

	retries := 0
	if u, ok := e.tracker.Get(key); ok {
		retries = u.RetryCount
	}
	data := map[string]any{
		"property_id": key.PropertyID,
		"platform":    key.Platform,
		"status":      status,
		"retry_count": retries,
	}
	if class != "" {
		data["error_class"] = class
	}
	e.publish(events.TypeUnitSettled, data)
}

func (e *Engine) persist(key domain.UnitKey, res domain.RatingResult, st domain.SnapStatus) error {
	snap := domain.Snapshot{
		PropertyID:  key.PropertyID,
		Platform:    key.Platform,
		Status:      st,
		Scale:       key.Platform.Scale(),
		CollectedAt: time.Now().UTC(),
	}
	if st == domain.SnapFound {
		raw, norm, count := res.RawScore, res.Normalized(), res.ReviewCount
		snap.RawScore = &raw
		snap.Normalized = &norm
		snap.ReviewCount = &count
		snap.Scale = res.Scale
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.store.InsertSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

// identityFor produces the unit's platform reference: configured alias
// first, then the run's warmed resolution outcome, then (for units
// retried outside the bulk pass) a live resolve.
func (e *Engine) identityFor(prop domain.Property, pl domain.Platform) (domain.Identity, error) {
	key := domain.UnitKey{PropertyID: prop.ID, Platform: pl}

	if ref := prop.Alias(pl); ref != "" {
		if pl.RequiresResolution() {
			u, err := url.Parse(ref)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return domain.Identity{}, domain.Classedf(domain.ClassMalformed, pl, "alias %q is not a listing URL", ref)
			}
		} else if strings.ContainsAny(ref, " \t") {
			return domain.Identity{}, domain.Classedf(domain.ClassMalformed, pl, "place ID %q is malformed", ref)
		}
		return domain.Identity{Property: prop, Platform: pl, Ref: ref}, nil
	}

	if !pl.RequiresResolution() {
		return domain.Identity{}, domain.Classedf(domain.ClassNoIdentity, pl, "property %s has no place ID", prop.ID)
	}

	if out, ok := e.identities[key]; ok {
		return out.id, out.err
	}

	if e.resolver == nil {
		return domain.Identity{}, domain.Classedf(domain.ClassNoIdentity, pl, "property %s has never been resolved", prop.ID)
	}
	if id, ok, cerr := e.resolver.Cached(context.Background(), prop, pl); ok {
		e.identities[key] = identityOutcome{id: id, err: cerr}
		return id, cerr
	}
	_ = e.pacer.Wait(context.Background())
	id, err := e.resolver.Resolve(context.Background(), prop, pl)
	e.identities[key] = identityOutcome{id: id, err: err}
	return id, err
}

func (e *Engine) finishRun(canceled bool) {
	e.setCurrent("")
	e.setPhase(domain.PhaseComplete)

	e.mu.Lock()
	runID := e.runID
	trigger := e.trigger
	startedAt := e.startedAt
	tr := e.tracker
	e.mu.Unlock()

	sum := tr.Summary()
	now := time.Now().UTC()
	rec := domain.RunRecord{
		RunID:      runID,
		Trigger:    trigger,
		StartedAt:  startedAt,
		FinishedAt: &now,
		Complete:   sum.Complete,
		NotListed:  sum.NotListed,
		Failed:     sum.Failed,
		Queued:     sum.Queued,
		Canceled:   canceled,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := e.store.FinishRun(ctx, rec); err != nil {
		log.Printf("[engine] finish run %s: %v", runID, err)
	}
	cancel()

	suffix := ""
	if canceled {
		suffix = " (canceled)"
	}
	log.Printf("[engine] run %s done: %d complete, %d not listed, %d failed, %d queued%s",
		runID, sum.Complete, sum.NotListed, sum.Failed, sum.Queued, suffix)
	e.publish(events.TypeRunFinished, map[string]any{
		"canceled":   canceled,
		"complete":   sum.Complete,
		"not_listed": sum.NotListed,
		"failed":     sum.Failed,
		"queued":     sum.Queued,
	})

	if e.AfterRun != nil {
		e.AfterRun(sum)
	}

	e.mu.Lock()
	e.running = false
	done := e.done
	e.mu.Unlock()
	close(done)
}

func (e *Engine) setPhase(p domain.RunPhase) {
	e.mu.Lock()
	if e.phase == p {
		e.mu.Unlock()
		return
	}
	e.phase = p
	e.mu.Unlock()
	e.publish(events.TypePhaseChanged, map[string]any{"phase": p})
}

func (e *Engine) setCurrent(pl domain.Platform) {
	e.mu.Lock()
	changed := e.current != pl
	e.current = pl
	e.mu.Unlock()
	if changed && pl != "" {
		log.Printf("[engine] fetching %s", pl.DisplayName())
	}
}

func normalizeProperty(p domain.Property) domain.Property {
	p.Name = collapseSpaces(p.Name)
	p.City = collapseSpaces(p.City)
	p.State = strings.ToUpper(strings.TrimSpace(p.State))
	if len(p.Aliases) > 0 {
		aliases := make(map[domain.Platform]string, len(p.Aliases))
		for pl, ref := range p.Aliases {
			if ref = strings.TrimSpace(ref); ref != "" {
				aliases[pl] = ref
			}
		}
		p.Aliases = aliases
	}
	return p
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
