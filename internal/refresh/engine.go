package refresh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"repscore-engine/internal/domain"
	"repscore-engine/internal/events"
)

var (
	ErrRunActive      = errors.New("a refresh run is already active")
	ErrNothingToRetry = errors.New("nothing to retry")
	ErrNoProperties   = errors.New("no properties to refresh")
	ErrUnknownUnit    = errors.New("unknown property/platform unit")
)

// Provider fetches one platform's rating for a resolved identity.
// Implementations classify their errors (domain.ClassedError) and are
// idempotent: duplicate snapshots are absorbed by latest-wins reads.
type Provider interface {
	Platform() domain.Platform
	Fetch(ctx context.Context, id domain.Identity) (domain.RatingResult, error)
}

// Resolver produces a property's platform identity. Cached returns a
// conclusive prior outcome without a remote call: ok=true with either
// an identity or a parked classified error. A miss means Resolve must
// perform a live lookup.
type Resolver interface {
	Cached(ctx context.Context, prop domain.Property, pl domain.Platform) (domain.Identity, bool, error)
	Resolve(ctx context.Context, prop domain.Property, pl domain.Platform) (domain.Identity, error)
}

// Store is the slice of persistence the engine needs: append-only
// snapshots and run history. It must never fail silently.
type Store interface {
	InsertSnapshot(ctx context.Context, snap domain.Snapshot) error
	InsertRun(ctx context.Context, rec domain.RunRecord) error
	FinishRun(ctx context.Context, rec domain.RunRecord) error
}

// Options are captured per run at Start; changing them mid-run has no
// effect on the active run.
type Options struct {
	UnitDelay       time.Duration // spacing between consecutive remote calls
	GoogleOnlyDelay time.Duration // spacing when the run fetches google alone
	MaxRetries      int           // per-unit retry budget for OTA calls
	RetryDelay      time.Duration // fixed backoff between attempts
}

// Engine sequences refresh runs: one logical worker, strictly
// sequential dispatch, at most one active run at a time.
type Engine struct {
	providers map[domain.Platform]Provider
	resolver  Resolver
	store     Store
	hub       *events.Hub

	// AfterRun, when set, runs on the worker goroutine after a bulk
	// run or retry-all pass finishes. Wired to the search sink.
	AfterRun func(domain.RunSummary)

	mu        sync.Mutex
	opts      Options
	running   bool
	phase     domain.RunPhase
	current   domain.Platform
	tracker   *Tracker
	props     []domain.Property
	platforms []domain.Platform
	runID     string
	trigger   domain.Trigger
	startedAt time.Time
	cancelRun context.CancelFunc
	done      chan struct{}

	// worker-private: handed off with the running flag, never touched
	// while another worker owns the run
	identities map[domain.UnitKey]identityOutcome
	pacer      *Pacer
	retry      Policy
}

type identityOutcome struct {
	id  domain.Identity
	err error
}

func New(providers []Provider, resolver Resolver, store Store, hub *events.Hub, opts Options) *Engine {
	m := make(map[domain.Platform]Provider, len(providers))
	for _, p := range providers {
		m[p.Platform()] = p
	}
	return &Engine{
		providers: m,
		resolver:  resolver,
		store:     store,
		hub:       hub,
		opts:      opts,
		phase:     domain.PhaseIdle,
	}
}

func (e *Engine) SetOptions(opts Options) {
	e.mu.Lock()
	e.opts = opts
	e.mu.Unlock()
}

// Start launches a refresh of properties x platforms. Empty platforms
// means all four. The returned handle identifies the run; progress is
// observed through GetSummary/Units/Phase or the events hub.
func (e *Engine) Start(props []domain.Property, platforms []domain.Platform, trigger domain.Trigger) (domain.RunHandle, error) {
	if len(props) == 0 {
		return domain.RunHandle{}, ErrNoProperties
	}
	props = dedupeProps(props)
	platforms, err := canonicalPlatforms(platforms)
	if err != nil {
		return domain.RunHandle{}, err
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return domain.RunHandle{}, ErrRunActive
	}
	e.running = true
	opts := e.opts
	e.mu.Unlock()

	handle := domain.RunHandle{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	if err := e.recordRunStart(handle, trigger); err != nil {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		return domain.RunHandle{}, err
	}

	units := buildUnits(props, platforms)
	runCtx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.tracker = NewTracker(units)
	e.props = props
	e.platforms = platforms
	e.runID = handle.RunID
	e.trigger = trigger
	e.startedAt = handle.StartedAt
	e.phase = domain.PhaseIdle
	e.current = ""
	e.cancelRun = cancel
	e.done = make(chan struct{})
	e.identities = make(map[domain.UnitKey]identityOutcome)
	e.pacer = newRunPacer(opts, platforms)
	e.retry = Policy{MaxRetries: opts.MaxRetries, Delay: opts.RetryDelay}
	e.mu.Unlock()

	log.Printf("[engine] run %s: %d properties x %d platforms (%s)", handle.RunID, len(props), len(platforms), trigger)
	e.publish(events.TypeRunStarted, map[string]any{"trigger": trigger, "total": len(units)})
	go e.run(runCtx)
	return handle, nil
}

// RetryAllFailed re-queues every failed unit and replays them, in the
// order they originally failed in, through the same pacing/retry path.
func (e *Engine) RetryAllFailed() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrRunActive
	}
	if e.tracker == nil {
		e.mu.Unlock()
		return ErrNothingToRetry
	}
	failed := e.tracker.FailedInOrder()
	if len(failed) == 0 {
		e.mu.Unlock()
		return ErrNothingToRetry
	}
	e.running = true
	opts := e.opts
	tr := e.tracker
	e.mu.Unlock()

	handle := domain.RunHandle{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	if err := e.recordRunStart(handle, domain.TriggerRetry); err != nil {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		return err
	}

	for _, k := range failed {
		tr.Requeue(k)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.runID = handle.RunID
	e.trigger = domain.TriggerRetry
	e.startedAt = handle.StartedAt
	e.cancelRun = cancel
	e.done = make(chan struct{})
	e.pacer = newRunPacer(opts, platformsOf(failed))
	e.retry = Policy{MaxRetries: opts.MaxRetries, Delay: opts.RetryDelay}
	e.mu.Unlock()

	log.Printf("[engine] run %s: retrying %d failed units", handle.RunID, len(failed))
	e.publish(events.TypeRunStarted, map[string]any{"trigger": domain.TriggerRetry, "total": len(failed)})
	go e.runRetry(runCtx, failed)
	return nil
}

// RetryUnit re-queues and immediately processes exactly one unit,
// independent of run phase. It does not advance the phase machine and
// writes no run record; the unit's events and snapshot still flow.
func (e *Engine) RetryUnit(propertyID string, pl domain.Platform) error {
	if !pl.Valid() {
		return fmt.Errorf("unknown platform %q", string(pl))
	}
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrRunActive
	}
	if e.tracker == nil {
		e.mu.Unlock()
		return ErrUnknownUnit
	}
	key := domain.UnitKey{PropertyID: propertyID, Platform: pl}
	if _, ok := e.tracker.Get(key); !ok {
		e.mu.Unlock()
		return ErrUnknownUnit
	}
	prop, ok := e.propByID(propertyID)
	if !ok {
		e.mu.Unlock()
		return ErrUnknownUnit
	}
	if !e.tracker.Reopen(key) {
		e.mu.Unlock()
		return ErrRunActive
	}
	e.running = true
	opts := e.opts
	runCtx, cancel := context.WithCancel(context.Background())
	e.cancelRun = cancel
	e.done = make(chan struct{})
	e.pacer = newRunPacer(opts, []domain.Platform{pl})
	e.retry = Policy{MaxRetries: opts.MaxRetries, Delay: opts.RetryDelay}
	e.mu.Unlock()

	log.Printf("[engine] retrying unit %s/%s", propertyID, pl)
	go e.runSingle(runCtx, prop, pl)
	return nil
}

// Cancel stops new dispatches. The in-flight provider call is not
// preemptible and always runs to completion; its result is recorded.
func (e *Engine) Cancel() {
	e.mu.Lock()
	cancel := e.cancelRun
	running := e.running
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if running {
		log.Printf("[engine] cancel requested")
	}
}

// Wait blocks until the active worker, if any, has exited.
func (e *Engine) Wait() {
	e.mu.Lock()
	d := e.done
	e.mu.Unlock()
	if d != nil {
		<-d
	}
}

func (e *Engine) GetSummary() domain.RunSummary {
	e.mu.Lock()
	tr := e.tracker
	e.mu.Unlock()
	if tr == nil {
		return domain.RunSummary{}
	}
	return tr.Summary()
}

func (e *Engine) Units() []domain.UnitState {
	e.mu.Lock()
	tr := e.tracker
	e.mu.Unlock()
	if tr == nil {
		return nil
	}
	return tr.All()
}

func (e *Engine) Phase() domain.RunPhase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Running reports whether a worker (full run, retry pass, or single
// unit) currently owns the tracker.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}

// CurrentPlatform reports which platform the fetch phase is on.
func (e *Engine) CurrentPlatform() (domain.Platform, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current, e.current != ""
}

func (e *Engine) recordRunStart(h domain.RunHandle, trigger domain.Trigger) error {
	rec := domain.RunRecord{RunID: h.RunID, Trigger: trigger, StartedAt: h.StartedAt}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.store.InsertRun(ctx, rec); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

func (e *Engine) publish(typ string, data any) {
	if e.hub == nil {
		return
	}
	e.mu.Lock()
	runID := e.runID
	e.mu.Unlock()
	e.hub.Publish(events.MakeEvent(typ, runID, data))
}

// propByID looks a property up in the current run set. Callers hold
// e.mu or own the run.
func (e *Engine) propByID(id string) (domain.Property, bool) {
	for _, p := range e.props {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Property{}, false
}

func buildUnits(props []domain.Property, platforms []domain.Platform) []domain.UnitKey {
	units := make([]domain.UnitKey, 0, len(props)*len(platforms))
	for _, pl := range platforms {
		for _, p := range props {
			units = append(units, domain.UnitKey{PropertyID: p.ID, Platform: pl})
		}
	}
	return units
}

// canonicalPlatforms validates the requested set and fixes its order
// to the platform-major fetch order.
func canonicalPlatforms(in []domain.Platform) ([]domain.Platform, error) {
	if len(in) == 0 {
		return domain.AllPlatforms(), nil
	}
	seen := make(map[domain.Platform]bool, len(in))
	for _, pl := range in {
		if !pl.Valid() {
			return nil, fmt.Errorf("unknown platform %q", string(pl))
		}
		seen[pl] = true
	}
	out := make([]domain.Platform, 0, len(seen))
	for _, pl := range domain.AllPlatforms() {
		if seen[pl] {
			out = append(out, pl)
		}
	}
	return out, nil
}

func dedupeProps(in []domain.Property) []domain.Property {
	seen := make(map[string]bool, len(in))
	out := make([]domain.Property, 0, len(in))
	for _, p := range in {
		if p.ID == "" || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

func newRunPacer(opts Options, platforms []domain.Platform) *Pacer {
	d := opts.UnitDelay
	if len(platforms) == 1 && platforms[0] == domain.PlatformGoogle {
		d = opts.GoogleOnlyDelay
	}
	return NewPacer(d)
}

func platformsOf(keys []domain.UnitKey) []domain.Platform {
	seen := make(map[domain.Platform]bool)
	var out []domain.Platform
	for _, k := range keys {
		if !seen[k.Platform] {
			seen[k.Platform] = true
			out = append(out, k.Platform)
		}
	}
	return out
}
